package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"vidgrab/internal/models"
)

// Meta carries the immutable fields of a job at creation time.
type Meta struct {
	Title      string
	SourceURL  string
	FormatID   string
	Mode       models.Mode
	TargetPath string
}

// Registry is the single shared store of job records. All access from
// runners, handlers and the sweeper goes through it; callers only ever
// see copies of the stored records.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*models.JobRecord
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]*models.JobRecord)}
}

// Create allocates a fresh id and stores the initial record for a job.
// Safe for concurrent use.
func (r *Registry) Create(meta Meta) string {
	id := uuid.New().String()
	now := time.Now()

	rec := &models.JobRecord{
		ID:         id,
		Status:     models.StatusStarting,
		Progress:   0,
		Speed:      "0 KiB/s",
		ETA:        "Unknown",
		Downloaded: "0 MiB",
		TotalSize:  "Unknown",
		Title:      meta.Title,
		SourceURL:  meta.SourceURL,
		FormatID:   meta.FormatID,
		Mode:       meta.Mode,
		TargetPath: meta.TargetPath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	r.jobs[id] = rec
	r.mu.Unlock()

	return id
}

// Get returns a snapshot copy of the record, so callers can never observe
// a torn read or mutate shared state.
func (r *Registry) Get(id string) (models.JobRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobs[id]
	if !ok {
		return models.JobRecord{}, false
	}
	return *rec, true
}

// Update applies fn to the stored record atomically with respect to other
// Update and Get calls. Returns false for an unknown id. UpdatedAt is
// refreshed on every call.
func (r *Registry) Update(id string, fn func(*models.JobRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.jobs[id]
	if !ok {
		return false
	}
	fn(rec)
	rec.UpdatedAt = time.Now()
	return true
}

// Delete removes the record. It never touches the filesystem; artifact
// cleanup is coordinated by the sweeper and the cancellation path.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// ForEach visits a snapshot of all records. The visitor runs without any
// registry lock held, so it may freely call Update or Delete.
func (r *Registry) ForEach(fn func(models.JobRecord)) {
	r.mu.RLock()
	snapshot := make([]models.JobRecord, 0, len(r.jobs))
	for _, rec := range r.jobs {
		snapshot = append(snapshot, *rec)
	}
	r.mu.RUnlock()

	for _, rec := range snapshot {
		fn(rec)
	}
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
