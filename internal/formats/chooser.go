// Package formats builds the user-facing quality menu from the raw
// encoding catalog. Pure functions, no state.
package formats

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"vidgrab/internal/models"
)

// TargetVideoExt is the container every video job is delivered in.
const TargetVideoExt = "mp4"

const conversionNotice = " (converted to MP4)"

// Choose produces the ranked menu of choices for the given mode.
//
// Audio mode offers at most two entries: the largest qualifying
// audio-only encoding as High Quality and the smallest as Low Quality.
// Video mode offers one entry per distinct vertical resolution, highest
// first, each paired with the best available audio stream as a composite
// "<video>+<audio>" format id.
func Choose(encodings []models.Encoding, mode models.Mode) []models.FormatChoice {
	if mode == models.ModeAudio {
		return chooseAudio(encodings)
	}
	return chooseVideo(encodings)
}

func chooseAudio(encodings []models.Encoding) []models.FormatChoice {
	var audio []models.Encoding
	for _, enc := range encodings {
		if enc.HasAudio && !enc.HasVideo && enc.Size > 0 && enc.ID != "" {
			audio = append(audio, enc)
		}
	}
	if len(audio) == 0 {
		return nil
	}

	sort.SliceStable(audio, func(i, j int) bool {
		return audio[i].Size > audio[j].Size
	})

	best := audio[0]
	choices := []models.FormatChoice{{
		ID:    best.ID,
		Label: fmt.Sprintf("Audio | High Quality | %sMB", formatMB(best.Size)),
	}}

	if len(audio) > 1 {
		worst := audio[len(audio)-1]
		choices = append(choices, models.FormatChoice{
			ID:    worst.ID,
			Label: fmt.Sprintf("Audio | Low Quality | %sMB", formatMB(worst.Size)),
		})
	}
	return choices
}

func chooseVideo(encodings []models.Encoding) []models.FormatChoice {
	bestAudio, ok := bestAudioEncoding(encodings)
	if !ok {
		return nil
	}

	var video []models.Encoding
	for _, enc := range encodings {
		if enc.HasVideo {
			video = append(video, enc)
		}
	}

	// Prefer encodings already in the target container; converting is a
	// fallback, not the default.
	var matching []models.Encoding
	for _, enc := range video {
		if enc.Ext == TargetVideoExt {
			matching = append(matching, enc)
		}
	}
	if len(matching) > 0 {
		video = matching
	}

	// One winner per resolution: the encoding maximizing combined size.
	byHeight := make(map[int]models.Encoding)
	for _, enc := range video {
		if enc.Size <= 0 || enc.ID == "" || enc.Height <= 0 {
			continue
		}
		cur, seen := byHeight[enc.Height]
		if !seen || enc.Size+bestAudio.Size > cur.Size+bestAudio.Size {
			byHeight[enc.Height] = enc
		}
	}
	if len(byHeight) == 0 {
		return nil
	}

	heights := make([]int, 0, len(byHeight))
	for h := range byHeight {
		heights = append(heights, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(heights)))

	choices := make([]models.FormatChoice, 0, len(heights))
	for _, h := range heights {
		enc := byHeight[h]
		total := enc.Size + bestAudio.Size
		label := fmt.Sprintf("Video | %s (%dp) | %sMB", qualityTier(h), h, formatMB(total))
		if enc.Ext != TargetVideoExt {
			label += conversionNotice
		}
		choices = append(choices, models.FormatChoice{
			ID:    enc.ID + "+" + bestAudio.ID,
			Label: label,
		})
	}
	return choices
}

func bestAudioEncoding(encodings []models.Encoding) (models.Encoding, bool) {
	var best models.Encoding
	found := false
	for _, enc := range encodings {
		if !enc.HasAudio || enc.HasVideo || enc.ID == "" {
			continue
		}
		if !found || enc.Size > best.Size {
			best = enc
			found = true
		}
	}
	return best, found
}

func qualityTier(height int) string {
	switch {
	case height >= 1080:
		return "High Quality"
	case height >= 720:
		return "Medium Quality"
	case height >= 480:
		return "Standard Quality"
	default:
		return "Low Quality"
	}
}

// formatMB renders a byte count as MiB rounded to two decimals, with
// trailing zeros trimmed down to one decimal place ("90.0", "42.57").
func formatMB(bytes int64) string {
	mb := math.Round(float64(bytes)/(1024*1024)*100) / 100
	s := strconv.FormatFloat(mb, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}
