// Package runner executes one conversion job end to end: it launches the
// acquisition tool, streams its output into the progress parser, verifies
// the resulting artifact and finalizes or fails the job record. A runner
// never returns errors to its caller; every outcome lands in the registry.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"vidgrab/internal/models"
	"vidgrab/internal/progress"
	"vidgrab/internal/registry"
)

// DefaultCommand is the acquisition tool binary looked up on PATH.
const DefaultCommand = "yt-dlp"

// cancelPollInterval is how often the watch goroutine re-reads the
// cancellation flag while the tool is running.
const cancelPollInterval = 200 * time.Millisecond

// killWaitDelay caps how long Wait may block on surviving descendants
// after the tool itself was killed.
const killWaitDelay = time.Second

// Config controls how jobs are executed.
type Config struct {
	// Command is the acquisition tool to invoke. Empty means DefaultCommand.
	Command string
}

// Runner drives jobs against a shared registry. One Run call handles one
// job; calls are independent and run on their own goroutines.
type Runner struct {
	reg *registry.Registry
	cfg Config
}

// New creates a runner bound to the registry.
func New(reg *registry.Registry, cfg Config) *Runner {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	return &Runner{reg: reg, cfg: cfg}
}

// CheckTool verifies the acquisition tool is available on PATH.
func (r *Runner) CheckTool() error {
	if _, err := exec.LookPath(r.cfg.Command); err != nil {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", r.cfg.Command)
	}
	return nil
}

// Run executes the job until it reaches a terminal state. It blocks, so
// callers start it on its own goroutine. ctx bounds the whole job, not
// the request that created it.
func (r *Runner) Run(ctx context.Context, id string) {
	rec, ok := r.reg.Get(id)
	if !ok {
		return
	}

	if err := r.run(ctx, id, rec); err != nil {
		if cur, ok := r.reg.Get(id); ok && cur.Cancelled {
			r.finishCancelled(id, cur)
			return
		}
		r.fail(id, err)
	}
}

func (r *Runner) run(ctx context.Context, id string, rec models.JobRecord) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Cooperative cancellation: the flag is observed here and at each
	// phase boundary below. Killing the tool is best effort.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go r.watchCancel(ctx, cancel, id, watchDone)

	cmd := exec.CommandContext(ctx, r.cfg.Command, buildArgs(rec)...)

	// The tool forks helper processes (ffmpeg, extractors). Run it in its
	// own process group and kill the whole group on cancellation, so no
	// orphan keeps downloading or holds the output pipe open. WaitDelay
	// bounds the wait on anything that survives the kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if err == syscall.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = killWaitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", r.cfg.Command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		pw.Close()
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		r.reg.Update(id, func(rec *models.JobRecord) {
			progress.Apply(rec, line)
		})
	}

	err := <-waitErr

	if cur, ok := r.reg.Get(id); !ok {
		return nil
	} else if cur.Cancelled {
		r.finishCancelled(id, cur)
		return nil
	}

	if err != nil {
		return fmt.Errorf("download process failed: %w", err)
	}

	return r.finalize(id, rec)
}

// watchCancel cancels the process context as soon as the record's
// cancellation flag is set, or disappears from the registry.
func (r *Runner) watchCancel(ctx context.Context, cancel context.CancelFunc, id string, done <-chan struct{}) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			rec, ok := r.reg.Get(id)
			if !ok || rec.Cancelled {
				cancel()
				return
			}
		}
	}
}

// buildArgs assembles the acquisition tool invocation for one job.
func buildArgs(rec models.JobRecord) []string {
	args := []string{"-f", rec.FormatID}

	if rec.Mode == models.ModeAudio {
		args = append(args,
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", "0",
		)
	} else {
		args = append(args, "--merge-output-format", "mp4")
	}

	args = append(args,
		"-o", rec.TargetPath,
		"--newline",
		rec.SourceURL,
	)
	return args
}

// finalize verifies the artifact and marks the job Complete. The
// finalizing flag keeps the sweeper away from the record while files are
// being inspected and renamed.
func (r *Runner) finalize(id string, rec models.JobRecord) error {
	r.reg.Update(id, func(rec *models.JobRecord) {
		rec.Finalizing = true
		progress.AdvancePhase(rec, models.StatusFinalizing, 99)
	})
	defer r.reg.Update(id, func(rec *models.JobRecord) {
		rec.Finalizing = false
	})

	path, err := locateArtifact(rec.TargetPath)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found after download: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("downloaded file is empty: %s", path)
	}

	if rec.Mode == models.ModeVideo {
		path, err = normalizeContainer(path, rec.TargetPath)
		if err != nil {
			return err
		}
	}

	// The commit checks the cancellation flag under the registry lock: a
	// job cancelled at any point before this must never become ready.
	committed := false
	r.reg.Update(id, func(rec *models.JobRecord) {
		if rec.Cancelled {
			return
		}
		rec.OutputPath = path
		rec.FileName = filepath.Base(path)
		rec.Ready = true
		rec.Progress = 100
		rec.Status = models.StatusComplete
		committed = true
	})
	if !committed {
		if cur, ok := r.reg.Get(id); ok {
			r.finishCancelled(id, cur)
		}
		return nil
	}
	log.Printf("Job %s complete: %s (%d bytes)", id, path, info.Size())
	return nil
}

// locateArtifact resolves the produced file. The tool usually writes the
// exact requested path, but post-processing can change the extension, so
// a same-prefix scan of the directory is the fallback. Prefixes are
// unique per job in practice (random file names), not by guarantee.
func locateArtifact(targetPath string) (string, error) {
	if _, err := os.Stat(targetPath); err == nil {
		return targetPath, nil
	}

	dir := filepath.Dir(targetPath)
	prefix := strings.TrimSuffix(filepath.Base(targetPath), filepath.Ext(targetPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("file not found after download: %s", targetPath)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("file not found after download: %s", targetPath)
}

// normalizeContainer renames a video artifact to the target container
// path when post-processing produced a different extension.
func normalizeContainer(path, targetPath string) (string, error) {
	if path == targetPath {
		return path, nil
	}
	if err := os.Rename(path, targetPath); err != nil {
		return "", fmt.Errorf("normalizing container for %s: %w", path, err)
	}
	return targetPath, nil
}

// finishCancelled cleans up partial output and settles the record in the
// Cancelled state. Progress resets to zero.
func (r *Runner) finishCancelled(id string, rec models.JobRecord) {
	removeArtifacts(rec)
	r.reg.Update(id, func(rec *models.JobRecord) {
		rec.Status = models.StatusCancelled
		rec.Progress = 0
		rec.Ready = false
		rec.Finalizing = false
	})
	log.Printf("Job %s cancelled", id)
}

func (r *Runner) fail(id string, err error) {
	r.reg.Update(id, func(rec *models.JobRecord) {
		rec.Status = models.StatusFailed
		rec.Error = err.Error()
		rec.Ready = false
		rec.Finalizing = false
	})
	log.Printf("Job %s failed: %v", id, err)
}

// removeArtifacts deletes the job's target file plus any partial files
// sharing its prefix (the tool leaves .part and intermediate files
// around when interrupted). Failures are logged and ignored.
func removeArtifacts(rec models.JobRecord) {
	if rec.TargetPath == "" {
		return
	}
	dir := filepath.Dir(rec.TargetPath)
	prefix := strings.TrimSuffix(filepath.Base(rec.TargetPath), filepath.Ext(rec.TargetPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if err := os.Remove(full); err != nil {
			log.Printf("Failed to remove partial file %s: %v", full, err)
		}
	}
}
