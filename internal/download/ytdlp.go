// Package download resolves remote media URLs to local audio files.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yonatanl/tamlil/pkg/execx"
)

// ErrDownload marks source-acquisition failures so operators can tell
// network/source problems apart from model problems downstream.
var ErrDownload = errors.New("download failed")

// Resolver fetches audio from URLs with yt-dlp, converting to 16kHz mono
// WAV, the input format the transcription engine expects.
type Resolver struct {
	binary string
	runner execx.Runner
	logger *slog.Logger
}

// NewResolver creates a Resolver. binary defaults to "yt-dlp" when empty.
func NewResolver(binary string, runner execx.Runner, logger *slog.Logger) *Resolver {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Resolver{binary: binary, runner: runner, logger: logger}
}

// Fetch downloads the best audio stream for url into destDir and returns
// the path of the resulting WAV file.
func (r *Resolver) Fetch(ctx context.Context, url, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	r.logger.Info("downloading audio", "url", url)

	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "wav",
		"--audio-quality", "0",
		"--postprocessor-args", "-ar 16000 -ac 1",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		"--no-simulate",
		url,
	}

	out, err := r.runner.Run(ctx, r.binary, args...)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", errors.New("yt-dlp reported no output file")
	}

	// --print emits one path per downloaded entry; single-URL submissions
	// produce exactly one line.
	path := lastLine(out)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}

	r.logger.Info("download complete", "path", path)
	return path, nil
}

func lastLine(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[i+1:]
		}
	}
	return s
}
