// Package youtube fetches the encoding catalog for a source URL. It is
// the only package that talks to the origin service directly; the rest of
// the system works off models.Encoding descriptors.
package youtube

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"vidgrab/internal/models"
)

// Pattern accepted by the submission form. The final group is the video id.
var sourceURLRe = regexp.MustCompile(
	`^(https?://)?(www\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/(watch\?v=|embed/|v/|.+\?v=)?([^&=%\?]{11})`)

// IsValidSourceURL reports whether url looks like a supported video URL.
// Rejected URLs never reach job creation.
func IsValidSourceURL(url string) bool {
	return sourceURLRe.MatchString(url)
}

// Client wraps the origin service API.
type Client struct {
	client youtube.Client
}

// NewClient creates a catalog client.
func NewClient() *Client {
	return &Client{client: youtube.Client{}}
}

// VideoInfo is the catalog result for one source URL.
type VideoInfo struct {
	ID        string
	Title     string
	Encodings []models.Encoding
}

// GetVideoInfo fetches the title and available encodings for a video.
func (c *Client) GetVideoInfo(ctx context.Context, url string) (*VideoInfo, error) {
	video, err := c.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching video info: %w", err)
	}

	encodings := make([]models.Encoding, 0, len(video.Formats))
	for _, f := range video.Formats {
		encodings = append(encodings, models.Encoding{
			ID:       strconv.Itoa(f.ItagNo),
			Ext:      ExtensionFromMime(f.MimeType),
			HasAudio: f.AudioChannels > 0 || strings.HasPrefix(f.MimeType, "audio/"),
			HasVideo: strings.HasPrefix(f.MimeType, "video/"),
			Size:     f.ContentLength,
			Height:   f.Height,
			Bitrate:  f.Bitrate,
		})
	}

	return &VideoInfo{
		ID:        video.ID,
		Title:     video.Title,
		Encodings: encodings,
	}, nil
}

// ExtensionFromMime maps a stream MIME type to its container extension,
// e.g. "video/mp4; codecs=..." to "mp4".
func ExtensionFromMime(mimeType string) string {
	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	if i := strings.Index(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSpace(base)
}
