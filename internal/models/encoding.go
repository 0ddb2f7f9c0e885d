package models

// Encoding describes one source-side stream variant offered by the origin
// service, as reported by the encoding catalog.
type Encoding struct {
	ID       string // format identifier understood by the acquisition tool
	Ext      string // container extension ("mp4", "webm", ...)
	HasAudio bool
	HasVideo bool
	Size     int64 // bytes, 0 when unknown
	Height   int   // pixels, 0 when unknown or audio-only
	Bitrate  int   // bps, 0 when unknown
}

// FormatChoice is one user-facing entry of the format menu.
type FormatChoice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}
