package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yonatanl/tamlil/internal/download"
)

// Progress bands per phase. Transcription progress interpolates inside its
// band from elapsed audio time over total duration.
const (
	progressDownloading     = 10
	progressTranscribeStart = 25
	progressTranscribeEnd   = 85
	progressAnalyzing       = 90
)

// workerLoop is the single background consumer. It processes exactly one
// task at a time in FIFO order and never terminates because of a task
// failure.
func (m *Manager) workerLoop() {
	defer m.wg.Done()

	for {
		id, ok := m.queue.Dequeue()
		if !ok {
			m.logger.Info("task worker stopping")
			return
		}
		m.processTask(id)
	}
}

// processTask drives one task through the pipeline and guarantees it lands
// in a terminal state. Panics from collaborator code are converted to the
// task's error state rather than killing the loop.
func (m *Manager) processTask(id string) {
	logger := m.logger.With("task_id", id)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing task", "panic", r)
			m.fail(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	t, ok := m.store.Get(id)
	if !ok {
		logger.Error("dequeued unknown task")
		return
	}

	start := time.Now()
	if err := m.runPipeline(&t); err != nil {
		logger.Error("task failed", "error", err, "elapsed", time.Since(start))
		m.fail(id, err.Error())
		return
	}
	logger.Info("task completed", "elapsed", time.Since(start))
}

func (m *Manager) fail(id, cause string) {
	if err := m.store.Fail(id, cause); err != nil {
		m.logger.Error("failed to record task error", "task_id", id, "error", err)
	}
}

// runPipeline executes the fixed phase sequence for one task:
// acquire audio, transcribe, diarize, summarize, persist. Diarization and
// summarization failures degrade gracefully; download and transcription
// failures are fatal for the task.
func (m *Manager) runPipeline(t *Task) error {
	logger := m.logger.With("task_id", t.ID)

	if t.TestMode {
		return m.runTestMode(t)
	}

	// Phase 1: resolve the audio source.
	if err := m.store.Update(t.ID, StatusDownloading, progressDownloading, "Downloading..."); err != nil {
		return err
	}

	audioPath := t.Source.LocalPath
	intermediate := false
	if t.Source.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DownloadTimeout)
		path, err := m.collab.Downloader.Fetch(ctx, t.Source.URL, m.cfg.DownloadDir)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %v", download.ErrDownload, err)
		}
		audioPath = path
		intermediate = true
	} else if needsConversion(audioPath) {
		// Uploaded and watched files arrive in whatever container the user
		// had; the engine only decodes WAV.
		if err := m.store.Update(t.ID, StatusDownloading, progressDownloading, "Extracting audio..."); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConvertTimeout)
		path, err := m.collab.Converter.Convert(ctx, audioPath, m.cfg.DownloadDir)
		cancel()
		if err != nil {
			return fmt.Errorf("audio extraction: %w", err)
		}
		audioPath = path
		intermediate = true
	}

	// Downloaded and converted intermediates are removed on every exit
	// path. A caller-supplied local file is never touched.
	if intermediate {
		defer func() {
			if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove intermediate audio", "path", audioPath, "error", err)
			}
		}()
	}

	// Phase 2: transcription.
	segments, text, partialErr, err := m.transcribe(t.ID, audioPath)
	if err != nil {
		return fmt.Errorf("transcription: %w", err)
	}

	// Phase 3: diarization. Non-fatal; unmatched segments keep the
	// placeholder speaker.
	m.diarize(t.ID, audioPath, segments)

	// Phase 4: summarization. Non-fatal; a failure just drops the summary.
	summary := m.summarize(t.ID, text)

	// Phase 5: persist output artifacts. Losing the transcript after all
	// that work is a task failure, not a degradation.
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	txtPath, err := m.writeResults(base, text, segments)
	if err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}

	message := "Done!"
	if partialErr != nil {
		message = "Done (partial transcript: engine failed mid-stream)"
		logger.Warn("completing with partial transcript", "segments", len(segments), "error", partialErr)
	}

	return m.store.Complete(t.ID, message, &Result{
		Text:           text,
		Segments:       segments,
		Summary:        summary,
		TranscriptPath: txtPath,
	})
}

// transcribe consumes the transcriber's segment stream, updating progress
// incrementally from elapsed audio time. A mid-stream engine failure after
// at least one segment degrades to a partial transcript (returned via
// partialErr); with zero segments it is fatal.
func (m *Manager) transcribe(id, audioPath string) (segments []Segment, text string, partialErr, err error) {
	if uerr := m.store.Update(id, StatusTranscribing, progressTranscribeStart, "Transcribing..."); uerr != nil {
		return nil, "", nil, uerr
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TranscribeTimeout)
	defer cancel()

	stream, err := m.collab.Transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, "", nil, err
	}

	var sb strings.Builder
	progress := progressTranscribeStart
	for seg := range stream.Segments() {
		if seg.Speaker == "" {
			seg.Speaker = SpeakerUnknown
		}
		segments = append(segments, seg)
		sb.WriteString(seg.Text)
		sb.WriteString(" ")

		if p := transcribeProgress(seg.End, stream.Duration()); p > progress {
			progress = p
			if uerr := m.store.Update(id, StatusTranscribing, progress, "Transcribing..."); uerr != nil {
				return nil, "", nil, uerr
			}
		}
	}

	if serr := stream.Err(); serr != nil {
		if len(segments) == 0 {
			return nil, "", nil, serr
		}
		partialErr = serr
	}
	if len(segments) == 0 {
		return nil, "", nil, errors.New("no speech detected")
	}

	return segments, strings.TrimSpace(sb.String()), partialErr, nil
}

// transcribeProgress maps elapsed audio seconds into the transcription
// progress band, clamped so progress never runs past the band while the
// stream is still open.
func transcribeProgress(elapsed, total float64) int {
	if total <= 0 {
		return progressTranscribeStart
	}
	frac := elapsed / total
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return progressTranscribeStart + int(frac*float64(progressTranscribeEnd-progressTranscribeStart))
}

// needsConversion reports whether a local source file must pass through the
// converter before transcription.
func needsConversion(path string) bool {
	return strings.ToLower(filepath.Ext(path)) != ".wav"
}

// diarize merges speaker turns into the segment list by matching each
// segment's midpoint against turn intervals. First matching turn wins,
// including midpoints that sit exactly on a boundary. O(segments x turns),
// fine at per-lecture scale.
func (m *Manager) diarize(id, audioPath string, segments []Segment) {
	// Progress never regresses: short audio may have finished the
	// transcription band well past the diarization floor.
	progress := 60
	if t, ok := m.store.Get(id); ok && t.Progress > progress {
		progress = t.Progress
	}
	if err := m.store.Update(id, StatusTranscribing, progress, "Identifying speakers..."); err != nil {
		m.logger.Error("failed to update diarization phase", "task_id", id, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DiarizeTimeout)
	defer cancel()

	turns, err := m.collab.Diarizer.Diarize(ctx, audioPath)
	if err != nil {
		m.logger.Error("diarization failed, keeping placeholder speakers", "task_id", id, "error", err)
		return
	}

	for i := range segments {
		mid := (segments[i].Start + segments[i].End) / 2
		for _, turn := range turns {
			if turn.Start <= mid && mid <= turn.End {
				segments[i].Speaker = turn.Speaker
				break
			}
		}
	}
}

// summarize invokes the summarizer over the transcript text, truncated
// deterministically from the start to the configured character budget.
func (m *Manager) summarize(id, text string) *Summary {
	if err := m.store.Update(id, StatusAnalyzing, progressAnalyzing, "Generating summary..."); err != nil {
		m.logger.Error("failed to update analyzing phase", "task_id", id, "error", err)
		return nil
	}

	if len(text) > m.cfg.SummaryCharBudget {
		// Back up to a rune boundary so the model never receives a split
		// multi-byte character; transcripts here are mostly Hebrew.
		cut := m.cfg.SummaryCharBudget
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SummarizeTimeout)
	defer cancel()

	summary, err := m.collab.Summarizer.Summarize(ctx, text)
	if err != nil {
		m.logger.Error("summarization failed, omitting summary", "task_id", id, "error", err)
		return nil
	}
	return summary
}

// writeResults persists the transcript as a plain text file and a companion
// segments JSON file sharing a base name under the output directory.
func (m *Manager) writeResults(base, text string, segments []Segment) (string, error) {
	if err := os.MkdirAll(m.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	txtPath := filepath.Join(m.cfg.OutputDir, base+".txt")
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	segPath := filepath.Join(m.cfg.OutputDir, base+"_segments.json")
	if err := writeSegmentsJSON(segPath, segments); err != nil {
		return txtPath, fmt.Errorf("write segments: %w", err)
	}
	return txtPath, nil
}

// runTestMode simulates the pipeline with canned output so the full submit
// and poll flow can be exercised without models or network access.
func (m *Manager) runTestMode(t *Task) error {
	m.logger.Info("running task in test mode", "task_id", t.ID)

	if err := m.store.Update(t.ID, StatusDownloading, progressDownloading, "[TEST] Simulating download..."); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)
	if err := m.store.Update(t.ID, StatusTranscribing, 50, "[TEST] Simulating transcription..."); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)

	return m.store.Complete(t.ID, "[TEST] Done!", &Result{
		Text: "Test transcription content.",
		Segments: []Segment{
			{Start: 0, End: 1, Speaker: "SPEAKER_00", Text: "Test transcription content."},
		},
		Summary: &Summary{Title: "Test", Summary: "Test summary", Tags: []string{"test"}},
	})
}
