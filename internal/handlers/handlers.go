// Package handlers is the thin web layer over the download service. It
// parses forms, shapes JSON, and renders pages; all job logic lives in
// the core packages.
package handlers

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"vidgrab/internal/download"
	"vidgrab/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer adapts html/template to echo's Renderer interface.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded page templates.
func NewRenderer() *Renderer {
	return &Renderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// Handler holds the route handlers.
type Handler struct {
	svc *download.Service
}

// NewHandler creates the handler set over the core service.
func NewHandler(svc *download.Service) *Handler {
	return &Handler{svc: svc}
}

// Register wires all routes onto the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.Index)
	e.POST("/", h.SelectFormat)
	e.POST("/download", h.StartDownload)
	e.GET("/download_status/:id", h.Status)
	e.GET("/download_file/:name", h.File)
	e.GET("/check_file_ready/:name", h.CheckFileReady)
	e.POST("/cancel/:id", h.Cancel)
}

// Index renders the URL submission form.
func (h *Handler) Index(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", map[string]interface{}{})
}

// SelectFormat fetches the encoding catalog for the submitted URL and
// renders the quality menu.
func (h *Handler) SelectFormat(c echo.Context) error {
	url := c.FormValue("url")
	mode := formMode(c.FormValue("format"))

	title, choices, err := h.svc.FetchFormats(c.Request().Context(), url, mode)
	if err != nil {
		if errors.Is(err, download.ErrInvalidInput) {
			return c.Render(http.StatusOK, "index.html", map[string]interface{}{
				"Error": "Please enter a valid YouTube URL",
			})
		}
		log.Printf("Error processing URL %s: %v", url, err)
		return c.Render(http.StatusOK, "index.html", map[string]interface{}{
			"Error": "Error: " + err.Error(),
		})
	}

	return c.Render(http.StatusOK, "select_format.html", map[string]interface{}{
		"Title":   title,
		"Choices": choices,
		"URL":     url,
		"Mode":    string(mode),
	})
}

// StartDownload creates the job and renders the live progress page.
func (h *Handler) StartDownload(c echo.Context) error {
	url := c.FormValue("url")
	formatID := c.FormValue("format")
	mode := formMode(c.FormValue("mode"))
	title := c.FormValue("title")
	if title == "" {
		title = "Video"
	}

	id, err := h.svc.StartJob(url, formatID, mode, title)
	if err != nil {
		if errors.Is(err, download.ErrInvalidInput) {
			return c.Redirect(http.StatusSeeOther, "/")
		}
		return c.Render(http.StatusOK, "error.html", map[string]interface{}{
			"Message": err.Error(),
		})
	}

	return c.Render(http.StatusOK, "download_progress.html", map[string]interface{}{
		"ID":    id,
		"Title": title,
	})
}

// Status returns the job snapshot as JSON. Unknown ids get a well-formed
// not-found payload rather than an error, so pollers always have state
// to render.
func (h *Handler) Status(c echo.Context) error {
	rec, ok := h.svc.GetStatus(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "NotFound",
			"progress": 0,
		})
	}
	return c.JSON(http.StatusOK, rec)
}

// File serves a finished artifact as an attachment, with friendly error
// pages for missing, empty or still-processing files.
func (h *Handler) File(c echo.Context) error {
	name := c.Param("name")

	ready, reason := h.svc.ArtifactReady(name)
	if !ready {
		return c.Render(http.StatusOK, "error.html", map[string]interface{}{
			"Message": reason,
		})
	}

	path, err := h.svc.ArtifactPath(name)
	if err != nil {
		return c.Render(http.StatusOK, "error.html", map[string]interface{}{
			"Message": "Invalid file request.",
		})
	}
	return c.Attachment(path, name)
}

// CheckFileReady reports artifact readiness as JSON.
func (h *Handler) CheckFileReady(c echo.Context) error {
	ready, reason := h.svc.ArtifactReady(c.Param("name"))
	resp := map[string]interface{}{"ready": ready}
	if reason != "" {
		resp["reason"] = reason
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel requests cooperative cancellation of a job.
func (h *Handler) Cancel(c echo.Context) error {
	if !h.svc.Cancel(c.Param("id")) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// formMode maps the submitted radio value to a models.Mode. The form
// historically posts "mp3" for audio.
func formMode(v string) models.Mode {
	if v == "mp3" || v == string(models.ModeAudio) {
		return models.ModeAudio
	}
	return models.ModeVideo
}
