package task

import "context"

// Downloader resolves a remote URL to a local audio file under destDir.
type Downloader interface {
	Fetch(ctx context.Context, url, destDir string) (string, error)
}

// Stream is a lazily produced sequence of transcript segments. The Segments
// channel closes when the underlying engine finishes; Err must be consulted
// afterwards to distinguish a clean end from a mid-stream failure.
type Stream interface {
	// Duration is the total audio length in seconds, or 0 if unknown.
	// Used together with segment end times to derive progress.
	Duration() float64
	Segments() <-chan Segment
	Err() error
}

// Transcriber converts an audio file into a stream of timed text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Stream, error)
}

// Converter turns an arbitrary media container into transcription-ready
// audio under destDir. Local sources that are not already WAV pass through
// it before transcription.
type Converter interface {
	Convert(ctx context.Context, mediaPath, destDir string) (string, error)
}

// Turn is one speaker interval produced by diarization.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Diarizer labels which speaker talks when. Implementations may be no-ops;
// the pipeline calls it unconditionally.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]Turn, error)
}

// Summarizer turns transcript text into a structured summary. A nil summary
// with nil error means the capability is not configured.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*Summary, error)
}
