package models

import "time"

// Mode selects the conversion target for a job.
type Mode string

const (
	ModeAudio Mode = "audio" // extract audio, deliver mp3
	ModeVideo Mode = "video" // merge streams, deliver mp4
)

// JobStatus represents the lifecycle stage of a conversion job.
type JobStatus string

const (
	StatusStarting       JobStatus = "Starting"
	StatusDownloading    JobStatus = "Downloading"
	StatusPostProcessing JobStatus = "PostProcessing"
	StatusFinalizing     JobStatus = "Finalizing"
	StatusComplete       JobStatus = "Complete"
	StatusFailed         JobStatus = "Failed"
	StatusCancelled      JobStatus = "Cancelled"
)

// IsTerminal reports whether no further transitions can happen.
func (s JobStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCancelled
}

// IsActive reports whether a runner is still working on the job.
func (s JobStatus) IsActive() bool {
	return !s.IsTerminal()
}

// PhaseRank orders the non-terminal phases so that progress markers from
// the acquisition tool can only advance a job, never move it back.
func (s JobStatus) PhaseRank() int {
	switch s {
	case StatusStarting:
		return 0
	case StatusDownloading:
		return 1
	case StatusPostProcessing:
		return 2
	case StatusFinalizing:
		return 3
	default:
		return 4
	}
}

// JobRecord is the full tracked state of one conversion job.
//
// The registry hands out copies of this struct; only the job's own runner
// (and the cancellation path) mutate it, always through Registry.Update.
type JobRecord struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`

	// Advisory display strings scraped from the tool output. Never used
	// for control decisions.
	Speed      string `json:"speed"`
	ETA        string `json:"eta"`
	Downloaded string `json:"downloaded"`
	TotalSize  string `json:"total_size"`

	Title     string `json:"title"`
	SourceURL string `json:"-"`
	FormatID  string `json:"-"`
	Mode      Mode   `json:"-"`

	// TargetPath is where the acquisition tool was told to write. Set at
	// creation so cancellation and sweeping can clean up partial output.
	TargetPath string `json:"-"`

	// OutputPath and FileName are set once, when the artifact has been
	// located and verified. FileName is the public retrieval handle.
	OutputPath string `json:"-"`
	FileName   string `json:"file_name,omitempty"`

	// Ready is the single authoritative "safe to serve" flag: true only
	// after the artifact was verified to exist with size > 0.
	Ready bool `json:"file_ready"`

	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Cancelled flips from false to true exactly once. A runner that observes it
	// must never mark the job Complete afterwards.
	Cancelled bool `json:"cancelled"`

	// Finalizing locks the record against sweeper eviction while the
	// runner is verifying and renaming the artifact on disk.
	Finalizing bool `json:"-"`
}

// IsDone reports whether the job reached a terminal state.
func (r *JobRecord) IsDone() bool {
	return r.Status.IsTerminal()
}
