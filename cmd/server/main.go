package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"vidgrab/internal/download"
	"vidgrab/internal/handlers"
	"vidgrab/internal/version"
	"vidgrab/internal/youtube"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	downloadDir := os.Getenv("DOWNLOAD_DIR")
	if downloadDir == "" {
		downloadDir = "downloads"
	}

	staleAfter := time.Duration(0)
	if v := os.Getenv("STALE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid STALE_AFTER %q: %v", v, err)
		}
		staleAfter = d
	}

	svc := download.New(download.Config{
		DownloadDir: downloadDir,
		Command:     os.Getenv("YTDLP_PATH"),
		StaleAfter:  staleAfter,
	}, youtube.NewClient())

	if err := svc.CheckTool(); err != nil {
		log.Fatalf("Dependency check failed: %v", err)
	}

	svc.Start()
	defer svc.Stop()

	e := echo.New()
	e.Renderer = handlers.NewRenderer()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	handlers.NewHandler(svc).Register(e)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	log.Printf("Starting vidgrab v%s on port %s", version.Version, port)
	if err := e.Start(fmt.Sprintf(":%s", port)); err != nil {
		log.Fatal(err)
	}
}
