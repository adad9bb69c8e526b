package task

import "time"

// Status represents the current state of a transcription task.
type Status string

// Possible task status values. Queued is the initial state; Completed and
// Error are terminal and a task in either of them is never mutated again.
const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// SpeakerUnknown is the placeholder label for segments that diarization
// did not match to a speaker turn.
const SpeakerUnknown = "UNKNOWN"

// Segment is a single timed span of transcribed speech.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Summary is the structured AI-generated digest of a transcript.
type Summary struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Result holds the output of a completed task.
type Result struct {
	Text           string    `json:"text"`
	Segments       []Segment `json:"segments"`
	Summary        *Summary  `json:"summary,omitempty"`
	TranscriptPath string    `json:"transcript_path,omitempty"`
}

// Source identifies where a task's audio comes from. Exactly one of URL or
// LocalPath is set; this is validated at submission.
type Source struct {
	URL       string `json:"url,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
}

// Task is one submitted transcription job and its observable state. After
// submission the worker loop is the only writer; HTTP readers get copies.
type Task struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Source    Source    `json:"source"`
	TestMode  bool      `json:"test_mode,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}
