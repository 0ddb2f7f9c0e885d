// Package progress turns the human-readable log of the acquisition tool
// into structured job state. It is the only place that knows about the
// tool's output format; the runner just feeds it lines.
package progress

import (
	"regexp"
	"strconv"
	"strings"

	"vidgrab/internal/models"
)

var (
	percentRe = regexp.MustCompile(`(\d+\.\d+)%`)
	speedRe   = regexp.MustCompile(`(\d+\.\d+\s*[KMG]iB/s)`)
	etaRe     = regexp.MustCompile(`ETA\s+(\d+:\d+)`)
	sizeRe    = regexp.MustCompile(`(\d+\.\d+\s*[KMG]iB)\s+of\s+(\d+\.\d+\s*[KMG]iB)`)
	totalRe   = regexp.MustCompile(`of\s+(\d+\.\d+\s*[KMG]iB)`)
)

// Progress floors signalled to the UI when the tool moves past the
// download phase. They are floors, not values: an already higher
// percentage is never lowered.
const (
	postProcessingFloor = 95
	finalizingFloor     = 99
)

// Apply folds one output line into the record. Unrecognized lines are
// ignored; recognized tokens are applied independently, so a single line
// may update several fields. Re-applying a line is harmless.
func Apply(rec *models.JobRecord, line string) {
	if rec.Progress >= 100 {
		return
	}

	if m := percentRe.FindStringSubmatch(line); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			applyPercent(rec, pct)
		}
	}

	if m := speedRe.FindStringSubmatch(line); m != nil {
		rec.Speed = m[1]
	}

	if m := etaRe.FindStringSubmatch(line); m != nil {
		rec.ETA = m[1]
	}

	// Regular progress lines carry only "NN.N% of <total>"; the full
	// "<downloaded> of <total>" pair appears on other line shapes.
	if m := sizeRe.FindStringSubmatch(line); m != nil {
		rec.Downloaded = m[1]
		rec.TotalSize = m[2]
	} else if m := totalRe.FindStringSubmatch(line); m != nil {
		rec.TotalSize = m[1]
	}

	applyMarkers(rec, line)
}

func applyPercent(rec *models.JobRecord, pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	// The tool restarts percentages for each stream it fetches; reported
	// progress stays monotonic regardless.
	if pct > rec.Progress {
		rec.Progress = pct
	}
	AdvancePhase(rec, models.StatusDownloading, 0)
}

func applyMarkers(rec *models.JobRecord, line string) {
	switch {
	case strings.Contains(line, "[download] 100%"),
		strings.Contains(line, "Deleting original file"),
		strings.Contains(line, "has already been downloaded"):
		AdvancePhase(rec, models.StatusFinalizing, finalizingFloor)

	case strings.Contains(line, "Merging"),
		strings.Contains(line, "Extracting audio"),
		strings.Contains(line, "Converting"):
		AdvancePhase(rec, models.StatusPostProcessing, postProcessingFloor)

	case strings.Contains(line, "Downloading"):
		AdvancePhase(rec, models.StatusDownloading, 0)
	}
}

// AdvancePhase moves the job forward to the given phase and raises the
// progress floor. Phases never move backwards and terminal states are
// left alone, which makes marker handling idempotent. The runner shares
// it for the transitions it drives itself.
func AdvancePhase(rec *models.JobRecord, phase models.JobStatus, floor float64) {
	if rec.Status.IsTerminal() {
		return
	}
	if phase.PhaseRank() > rec.Status.PhaseRank() {
		rec.Status = phase
	}
	if floor > rec.Progress {
		rec.Progress = floor
	}
}
