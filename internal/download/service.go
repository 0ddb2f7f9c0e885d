// Package download is the core facade the web layer talks to: it owns the
// job registry, spawns one runner per job, and answers status, format and
// artifact-readiness queries.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidgrab/internal/formats"
	"vidgrab/internal/models"
	"vidgrab/internal/registry"
	"vidgrab/internal/runner"
	"vidgrab/internal/sweeper"
	"vidgrab/internal/youtube"
)

// ErrInvalidInput rejects malformed requests before any job is created.
var ErrInvalidInput = errors.New("invalid input")

// sweepGate limits opportunistic sweeps triggered from the polling path.
const sweepGate = time.Minute

// CatalogFetcher is the narrow interface to the encoding catalog. The
// production implementation is youtube.Client.
type CatalogFetcher interface {
	GetVideoInfo(ctx context.Context, url string) (*youtube.VideoInfo, error)
}

// Config for the service.
type Config struct {
	// DownloadDir holds all artifacts. Created on demand.
	DownloadDir string
	// Command overrides the acquisition tool binary (tests use a stub).
	Command string
	// StaleAfter is handed to the sweeper; zero means the default.
	StaleAfter time.Duration
}

// Service wires the core components together.
type Service struct {
	reg     *registry.Registry
	runner  *runner.Runner
	sweeper *sweeper.Sweeper
	catalog CatalogFetcher
	dir     string

	baseCtx    context.Context
	baseCancel context.CancelFunc

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// New creates the service. Jobs started later outlive the requests that
// spawn them; their lifetime is bounded by Start/Stop.
func New(cfg Config, catalog CatalogFetcher) *Service {
	reg := registry.New()
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		reg:        reg,
		runner:     runner.New(reg, runner.Config{Command: cfg.Command}),
		sweeper:    sweeper.New(reg, cfg.StaleAfter),
		catalog:    catalog,
		dir:        cfg.DownloadDir,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Registry exposes the job registry for read-mostly collaborators.
func (s *Service) Registry() *registry.Registry {
	return s.reg
}

// CheckTool reports whether the acquisition tool is installed.
func (s *Service) CheckTool() error {
	return s.runner.CheckTool()
}

// Start launches background maintenance.
func (s *Service) Start() {
	s.sweeper.Start(s.baseCtx)
}

// Stop halts background maintenance and signals all runners to wind down.
func (s *Service) Stop() {
	s.sweeper.Stop()
	s.baseCancel()
}

// FetchFormats retrieves the encoding catalog for url and reduces it to
// the user-facing menu for the requested mode.
func (s *Service) FetchFormats(ctx context.Context, url string, mode models.Mode) (title string, choices []models.FormatChoice, err error) {
	if !youtube.IsValidSourceURL(url) {
		return "", nil, fmt.Errorf("%w: unrecognized source URL", ErrInvalidInput)
	}
	info, err := s.catalog.GetVideoInfo(ctx, url)
	if err != nil {
		return "", nil, err
	}
	return info.Title, formats.Choose(info.Encodings, mode), nil
}

// ChooseFormats is the pure menu reduction, exposed for callers that
// already hold a catalog.
func (s *Service) ChooseFormats(encodings []models.Encoding, mode models.Mode) []models.FormatChoice {
	return formats.Choose(encodings, mode)
}

// StartJob validates the request, registers a new job and launches its
// runner. The returned id is the polling handle.
func (s *Service) StartJob(url, formatID string, mode models.Mode, title string) (string, error) {
	if !youtube.IsValidSourceURL(url) {
		return "", fmt.Errorf("%w: unrecognized source URL", ErrInvalidInput)
	}
	if formatID == "" {
		return "", fmt.Errorf("%w: no format selected", ErrInvalidInput)
	}
	if mode != models.ModeAudio && mode != models.ModeVideo {
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	ext := "mp4"
	if mode == models.ModeAudio {
		ext = "mp3"
	}
	// Fresh random file name per job: artifact paths never collide.
	fileName := uuid.New().String() + "." + ext
	targetPath, err := filepath.Abs(filepath.Join(s.dir, fileName))
	if err != nil {
		return "", fmt.Errorf("resolving download path: %w", err)
	}

	id := s.reg.Create(registry.Meta{
		Title:      title,
		SourceURL:  url,
		FormatID:   formatID,
		Mode:       mode,
		TargetPath: targetPath,
	})

	go s.runner.Run(s.baseCtx, id)

	return id, nil
}

// GetStatus returns the latest committed snapshot for a job. Unknown ids
// report found=false; the caller decides how to shape that. Polling also
// opportunistically triggers a sweep, at most once per gate interval.
func (s *Service) GetStatus(id string) (models.JobRecord, bool) {
	s.maybeSweep()
	return s.reg.Get(id)
}

// Cancel requests cooperative cancellation. Terminal jobs are left
// untouched. Returns false for unknown ids.
func (s *Service) Cancel(id string) bool {
	return s.reg.Update(id, func(rec *models.JobRecord) {
		if rec.Status.IsTerminal() {
			return
		}
		rec.Cancelled = true
	})
}

// ArtifactReady reports whether the named artifact is safe to serve and,
// when it is not, why. Files present on disk but unknown to the registry
// are assumed ready: after a restart the registry is empty while finished
// artifacts survive. That is a documented inconsistency, not a guarantee.
func (s *Service) ArtifactReady(fileName string) (bool, string) {
	if fileName == "" || fileName != filepath.Base(fileName) {
		return false, "invalid file name"
	}
	path := filepath.Join(s.dir, fileName)

	info, err := os.Stat(path)
	if err != nil {
		return false, "file is still being prepared"
	}
	if info.Size() == 0 {
		return false, "file is empty"
	}

	known := false
	ready := false
	s.reg.ForEach(func(rec models.JobRecord) {
		if rec.FileName == fileName || filepath.Base(rec.TargetPath) == fileName {
			known = true
			ready = ready || rec.Ready
		}
	})
	if known && !ready {
		return false, "file is still being processed"
	}
	return true, ""
}

// ArtifactPath resolves a public file name to its path inside the
// download directory, rejecting anything that is not a plain base name.
func (s *Service) ArtifactPath(fileName string) (string, error) {
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return "", fmt.Errorf("%w: invalid file name", ErrInvalidInput)
	}
	return filepath.Join(s.dir, fileName), nil
}

func (s *Service) maybeSweep() {
	s.sweepMu.Lock()
	due := time.Since(s.lastSweep) > sweepGate
	if due {
		s.lastSweep = time.Now()
	}
	s.sweepMu.Unlock()

	if due {
		go s.sweeper.SweepOnce()
	}
}
