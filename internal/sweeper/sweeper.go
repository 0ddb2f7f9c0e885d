// Package sweeper reclaims registry entries and artifact files for jobs
// nobody will come back for: stale, stuck or cancelled ones.
package sweeper

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"vidgrab/internal/models"
	"vidgrab/internal/registry"
)

const (
	// DefaultStaleAfter is how long a job may go without an update
	// before it is considered abandoned, in any state.
	DefaultStaleAfter = time.Hour

	// DefaultCancelledRetention keeps cancelled jobs visible long enough
	// for the client to observe the terminal state.
	DefaultCancelledRetention = 5 * time.Minute

	// DefaultInterval between background sweeps.
	DefaultInterval = time.Minute
)

// Sweeper periodically scans the registry and evicts reclaimable jobs.
type Sweeper struct {
	reg                *registry.Registry
	staleAfter         time.Duration
	cancelledRetention time.Duration
	interval           time.Duration
	stop               chan struct{}
	wg                 sync.WaitGroup
}

// New creates a sweeper with the given staleness threshold. Zero values
// fall back to the defaults.
func New(reg *registry.Registry, staleAfter time.Duration) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Sweeper{
		reg:                reg,
		staleAfter:         staleAfter,
		cancelledRetention: DefaultCancelledRetention,
		interval:           DefaultInterval,
		stop:               make(chan struct{}),
	}
}

// SetInterval overrides the background sweep interval.
func (s *Sweeper) SetInterval(interval time.Duration) {
	s.interval = interval
}

// SetCancelledRetention overrides how long cancelled jobs stay visible.
func (s *Sweeper) SetCancelledRetention(d time.Duration) {
	s.cancelledRetention = d
}

// Start begins background sweeping.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	log.Println("Sweeper started")
}

// Stop gracefully stops background sweeping.
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("Sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce scans the registry and evicts every reclaimable job. It
// returns the number of evicted entries. Safe to call from any goroutine;
// the status-polling path triggers it opportunistically.
func (s *Sweeper) SweepOnce() int {
	evicted := 0
	s.reg.ForEach(func(rec models.JobRecord) {
		if !s.reclaimable(rec) {
			return
		}
		s.removeFiles(rec)
		// Memory-leak prevention dominates: the entry goes away even if
		// file deletion failed.
		s.reg.Delete(rec.ID)
		evicted++
		log.Printf("Swept job %s (status %s, last update %s)", rec.ID, rec.Status, rec.UpdatedAt.Format(time.RFC3339))
	})
	return evicted
}

func (s *Sweeper) reclaimable(rec models.JobRecord) bool {
	// A runner is touching the artifact right now; leave the job alone.
	if rec.Finalizing {
		return false
	}
	age := time.Since(rec.UpdatedAt)
	if rec.Status == models.StatusCancelled && age > s.cancelledRetention {
		return true
	}
	return age > s.staleAfter
}

func (s *Sweeper) removeFiles(rec models.JobRecord) {
	for _, path := range []string{rec.OutputPath, rec.TargetPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove artifact %s: %v", path, err)
		}
	}
}
