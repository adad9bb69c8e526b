// Package transcribe runs speech-to-text over local audio files.
package transcribe

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/yonatanl/tamlil/internal/task"
	"github.com/yonatanl/tamlil/pkg/execx"
)

// Config holds settings for the whisper.cpp CLI engine.
type Config struct {
	BinaryPath string
	ModelPath  string
	Language   string
	Threads    int
}

// Whisper transcribes audio by driving the whisper.cpp CLI and parsing its
// timestamped stdout as it is produced, so the caller sees segments while
// the engine is still working.
type Whisper struct {
	cfg    Config
	probe  execx.Runner
	logger *slog.Logger
}

// NewWhisper creates a Whisper engine. probe is used for ffprobe duration
// lookups.
func NewWhisper(cfg Config, probe execx.Runner, logger *slog.Logger) *Whisper {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "whisper-cli"
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}
	return &Whisper{cfg: cfg, probe: probe, logger: logger}
}

// whisper.cpp segment lines: "[00:01:02.500 --> 00:01:05.120]   text".
var segmentLine = regexp.MustCompile(
	`^\[(\d{2}):(\d{2}):(\d{2})[.,](\d{3}) --> (\d{2}):(\d{2}):(\d{2})[.,](\d{3})\]\s*(.*)$`,
)

// Transcribe starts the engine and returns a stream of segments. The stream
// channel closes when the engine exits; Err reports a mid-stream failure.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (task.Stream, error) {
	duration, err := w.probeDuration(ctx, audioPath)
	if err != nil {
		// Duration only feeds progress estimation; transcription can
		// proceed without it.
		w.logger.Warn("could not probe audio duration", "path", audioPath, "error", err)
	}

	args := []string{
		"-m", w.cfg.ModelPath,
		"-f", audioPath,
		"-l", w.cfg.Language,
		"-t", strconv.Itoa(w.cfg.Threads),
		"--no-prints",
	}

	cmd := exec.CommandContext(ctx, w.cfg.BinaryPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("whisper stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start whisper: %w", err)
	}

	w.logger.Info("transcription started", "path", audioPath, "duration_s", duration)

	s := &stream{
		duration: duration,
		segments: make(chan task.Segment, 16),
	}

	go func() {
		defer close(s.segments)

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			seg, ok := parseSegmentLine(scanner.Text())
			if !ok {
				continue
			}
			s.segments <- seg
		}

		if err := cmd.Wait(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				s.err = fmt.Errorf("whisper: %w: %s", err, msg)
			} else {
				s.err = fmt.Errorf("whisper: %w", err)
			}
		} else if err := scanner.Err(); err != nil {
			s.err = fmt.Errorf("read whisper output: %w", err)
		}
	}()

	return s, nil
}

// probeDuration returns the audio length in seconds via ffprobe.
func (w *Whisper) probeDuration(ctx context.Context, audioPath string) (float64, error) {
	out, err := w.probe.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(out), 64)
}

func parseSegmentLine(line string) (task.Segment, bool) {
	m := segmentLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return task.Segment{}, false
	}
	text := strings.TrimSpace(m[9])
	if text == "" {
		return task.Segment{}, false
	}
	return task.Segment{
		Start:   timestampSeconds(m[1], m[2], m[3], m[4]),
		End:     timestampSeconds(m[5], m[6], m[7], m[8]),
		Speaker: task.SpeakerUnknown,
		Text:    text,
	}, true
}

func timestampSeconds(h, m, s, ms string) float64 {
	hi, _ := strconv.Atoi(h)
	mi, _ := strconv.Atoi(m)
	si, _ := strconv.Atoi(s)
	msi, _ := strconv.Atoi(ms)
	return float64(hi*3600+mi*60+si) + float64(msi)/1000
}

// stream implements task.Stream. err is written by the producing goroutine
// before the segments channel closes, which orders it before any Err call
// that follows channel close.
type stream struct {
	duration float64
	segments chan task.Segment
	err      error
}

func (s *stream) Duration() float64             { return s.duration }
func (s *stream) Segments() <-chan task.Segment { return s.segments }
func (s *stream) Err() error                    { return s.err }
