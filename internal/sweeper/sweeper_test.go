package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidgrab/internal/models"
	"vidgrab/internal/registry"
)

func TestSweepRemovesStaleJobAndArtifact(t *testing.T) {
	reg := registry.New()
	dir := t.TempDir()

	target := filepath.Join(dir, "stale.mp4")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to seed artifact: %v", err)
	}

	id := reg.Create(registry.Meta{TargetPath: target})

	s := New(reg, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if evicted := s.SweepOnce(); evicted != 1 {
		t.Fatalf("Expected 1 eviction, got %d", evicted)
	}
	if _, ok := reg.Get(id); ok {
		t.Error("Stale job still in registry after sweep")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("Stale artifact not deleted")
	}
}

func TestSweepKeepsFreshJobs(t *testing.T) {
	reg := registry.New()
	id := reg.Create(registry.Meta{})

	s := New(reg, time.Hour)
	if evicted := s.SweepOnce(); evicted != 0 {
		t.Fatalf("Expected no evictions, got %d", evicted)
	}
	if _, ok := reg.Get(id); !ok {
		t.Error("Fresh job evicted")
	}
}

func TestSweepSkipsFinalizingJobs(t *testing.T) {
	reg := registry.New()
	id := reg.Create(registry.Meta{})
	reg.Update(id, func(rec *models.JobRecord) {
		rec.Finalizing = true
	})

	s := New(reg, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if evicted := s.SweepOnce(); evicted != 0 {
		t.Fatalf("Finalizing job evicted: %d", evicted)
	}
	if _, ok := reg.Get(id); !ok {
		t.Error("Finalizing job removed from registry")
	}
}

func TestSweepEvictsCancelledJobsSooner(t *testing.T) {
	reg := registry.New()
	cancelled := reg.Create(registry.Meta{})
	active := reg.Create(registry.Meta{})

	reg.Update(cancelled, func(rec *models.JobRecord) {
		rec.Status = models.StatusCancelled
		rec.Cancelled = true
	})

	s := New(reg, time.Hour)
	s.SetCancelledRetention(10 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if evicted := s.SweepOnce(); evicted != 1 {
		t.Fatalf("Expected 1 eviction, got %d", evicted)
	}
	if _, ok := reg.Get(cancelled); ok {
		t.Error("Cancelled job not evicted")
	}
	if _, ok := reg.Get(active); !ok {
		t.Error("Active job evicted alongside the cancelled one")
	}
}

func TestSweepRemovesEntryEvenIfFileDeleteFails(t *testing.T) {
	reg := registry.New()

	// A non-empty directory makes os.Remove fail with a real error.
	dir := t.TempDir()
	stubborn := filepath.Join(dir, "job-output")
	if err := os.MkdirAll(filepath.Join(stubborn, "inner"), 0o755); err != nil {
		t.Fatalf("Failed to build stubborn path: %v", err)
	}

	id := reg.Create(registry.Meta{TargetPath: stubborn})

	s := New(reg, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if evicted := s.SweepOnce(); evicted != 1 {
		t.Fatalf("Expected 1 eviction, got %d", evicted)
	}
	if _, ok := reg.Get(id); ok {
		t.Error("Registry entry survived failed file deletion")
	}
}

func TestStartStop(t *testing.T) {
	reg := registry.New()
	target := filepath.Join(t.TempDir(), "x.mp4")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to seed artifact: %v", err)
	}
	reg.Create(registry.Meta{TargetPath: target})

	s := New(reg, 5*time.Millisecond)
	s.SetInterval(10 * time.Millisecond)
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()

	if reg.Len() != 0 {
		t.Error("Background sweeper did not evict the stale job")
	}
}
