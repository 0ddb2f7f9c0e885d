package formats

import (
	"strings"
	"testing"

	"vidgrab/internal/models"
)

const mib = 1024 * 1024

func TestChooseAudioHighAndLow(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "a", HasAudio: true, Size: 5 * mib},
		{ID: "b", HasAudio: true, Size: 5 * mib},
		{ID: "c", HasAudio: true, Size: 50 * mib},
	}

	choices := Choose(encodings, models.ModeAudio)
	if len(choices) != 2 {
		t.Fatalf("Expected exactly 2 choices, got %d: %+v", len(choices), choices)
	}

	if choices[0].ID != "c" {
		t.Errorf("Expected high quality id c, got %s", choices[0].ID)
	}
	if choices[0].Label != "Audio | High Quality | 50.0MB" {
		t.Errorf("Unexpected high quality label %q", choices[0].Label)
	}

	if choices[1].ID != "a" && choices[1].ID != "b" {
		t.Errorf("Expected low quality id a or b, got %s", choices[1].ID)
	}
	if choices[1].Label != "Audio | Low Quality | 5.0MB" {
		t.Errorf("Unexpected low quality label %q", choices[1].Label)
	}
}

func TestChooseAudioSingleEncoding(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "a", HasAudio: true, Size: 3 * mib},
	}

	choices := Choose(encodings, models.ModeAudio)
	if len(choices) != 1 {
		t.Fatalf("Expected 1 choice, got %d", len(choices))
	}
	if choices[0].ID != "a" || !strings.Contains(choices[0].Label, "High Quality") {
		t.Errorf("Unexpected choice %+v", choices[0])
	}
}

func TestChooseAudioIgnoresUnusableEncodings(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "video", HasAudio: true, HasVideo: true, Size: 10 * mib},
		{ID: "nosize", HasAudio: true},
		{HasAudio: true, Size: 2 * mib}, // missing id
	}

	if choices := Choose(encodings, models.ModeAudio); len(choices) != 0 {
		t.Errorf("Expected empty menu, got %+v", choices)
	}
}

func TestChooseVideoCompositeID(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "v1080", HasVideo: true, Ext: "mp4", Height: 1080, Size: 80 * mib},
		{ID: "aBest", HasAudio: true, Size: 10 * mib},
	}

	choices := Choose(encodings, models.ModeVideo)
	if len(choices) != 1 {
		t.Fatalf("Expected 1 choice, got %d: %+v", len(choices), choices)
	}
	if choices[0].ID != "v1080+aBest" {
		t.Errorf("Expected composite id v1080+aBest, got %s", choices[0].ID)
	}
	if choices[0].Label != "Video | High Quality (1080p) | 90.0MB" {
		t.Errorf("Unexpected label %q", choices[0].Label)
	}
}

func TestChooseVideoOrderAndTiers(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "v360", HasVideo: true, Ext: "mp4", Height: 360, Size: 10 * mib},
		{ID: "v1080", HasVideo: true, Ext: "mp4", Height: 1080, Size: 80 * mib},
		{ID: "v720", HasVideo: true, Ext: "mp4", Height: 720, Size: 40 * mib},
		{ID: "v480", HasVideo: true, Ext: "mp4", Height: 480, Size: 20 * mib},
		{ID: "a1", HasAudio: true, Size: 10 * mib},
	}

	choices := Choose(encodings, models.ModeVideo)
	if len(choices) != 4 {
		t.Fatalf("Expected 4 choices, got %d", len(choices))
	}

	wantTiers := []string{"High Quality", "Medium Quality", "Standard Quality", "Low Quality"}
	wantIDs := []string{"v1080+a1", "v720+a1", "v480+a1", "v360+a1"}
	for i, choice := range choices {
		if choice.ID != wantIDs[i] {
			t.Errorf("Position %d: expected id %s, got %s", i, wantIDs[i], choice.ID)
		}
		if !strings.Contains(choice.Label, wantTiers[i]) {
			t.Errorf("Position %d: expected tier %q in label %q", i, wantTiers[i], choice.Label)
		}
	}
}

func TestChooseVideoPicksLargestPerResolution(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "small", HasVideo: true, Ext: "mp4", Height: 720, Size: 30 * mib},
		{ID: "big", HasVideo: true, Ext: "mp4", Height: 720, Size: 60 * mib},
		{ID: "a1", HasAudio: true, Size: 5 * mib},
	}

	choices := Choose(encodings, models.ModeVideo)
	if len(choices) != 1 {
		t.Fatalf("Expected 1 choice, got %d", len(choices))
	}
	if choices[0].ID != "big+a1" {
		t.Errorf("Expected the larger encoding to win, got %s", choices[0].ID)
	}
}

func TestChooseVideoPrefersTargetContainer(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "webm", HasVideo: true, Ext: "webm", Height: 1080, Size: 90 * mib},
		{ID: "mp4", HasVideo: true, Ext: "mp4", Height: 720, Size: 40 * mib},
		{ID: "a1", HasAudio: true, Size: 5 * mib},
	}

	choices := Choose(encodings, models.ModeVideo)
	if len(choices) != 1 {
		t.Fatalf("Expected only the mp4 subset, got %d choices", len(choices))
	}
	if choices[0].ID != "mp4+a1" {
		t.Errorf("Expected mp4 encoding, got %s", choices[0].ID)
	}
	if strings.Contains(choices[0].Label, "converted") {
		t.Errorf("Conversion notice on a matching container: %q", choices[0].Label)
	}
}

func TestChooseVideoConversionNotice(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "webm", HasVideo: true, Ext: "webm", Height: 1080, Size: 90 * mib},
		{ID: "a1", HasAudio: true, Size: 5 * mib},
	}

	choices := Choose(encodings, models.ModeVideo)
	if len(choices) != 1 {
		t.Fatalf("Expected 1 choice, got %d", len(choices))
	}
	if !strings.Contains(choices[0].Label, "converted to MP4") {
		t.Errorf("Missing conversion notice in %q", choices[0].Label)
	}
}

func TestChooseVideoNoAudioYieldsNothing(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "v1080", HasVideo: true, Ext: "mp4", Height: 1080, Size: 80 * mib},
	}

	if choices := Choose(encodings, models.ModeVideo); len(choices) != 0 {
		t.Errorf("Expected empty menu without audio encodings, got %+v", choices)
	}
}

func TestChooseVideoSkipsUnusableEncodings(t *testing.T) {
	encodings := []models.Encoding{
		{ID: "nosize", HasVideo: true, Ext: "mp4", Height: 1080},
		{ID: "noheight", HasVideo: true, Ext: "mp4", Size: 10 * mib},
		{ID: "a1", HasAudio: true, Size: 5 * mib},
	}

	if choices := Choose(encodings, models.ModeVideo); len(choices) != 0 {
		t.Errorf("Expected empty menu, got %+v", choices)
	}
}

func TestFormatMB(t *testing.T) {
	m := float64(1024 * 1024)
	oddSize := int64(42.57 * m)
	cases := []struct {
		bytes int64
		want  string
	}{
		{90 * mib, "90.0"},
		{5 * mib, "5.0"},
		{oddSize, "42.57"},
	}
	for _, tc := range cases {
		if got := formatMB(tc.bytes); got != tc.want {
			t.Errorf("formatMB(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}
