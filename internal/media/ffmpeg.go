// Package media converts arbitrary media containers into the audio format
// the transcription engine consumes.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yonatanl/tamlil/pkg/execx"
)

// Extractor produces 16kHz mono PCM WAV from video or audio containers by
// driving ffmpeg. Uploaded and watched files arrive in whatever container
// the user had; whisper-cli only decodes WAV.
type Extractor struct {
	binary string
	runner execx.Runner
	logger *slog.Logger
}

// NewExtractor creates an Extractor. binary defaults to "ffmpeg" when empty.
func NewExtractor(binary string, runner execx.Runner, logger *slog.Logger) *Extractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Extractor{binary: binary, runner: runner, logger: logger}
}

// Convert writes a transcription-ready WAV for mediaPath into destDir and
// returns its path. The output keeps the source base name so downstream
// artifacts stay recognizable.
func (e *Extractor) Convert(ctx context.Context, mediaPath, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create extraction directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	outPath := filepath.Join(destDir, base+".wav")

	e.logger.Info("extracting audio", "source", mediaPath, "dest", outPath)

	args := []string{
		"-i", mediaPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		outPath,
	}
	if _, err := e.runner.Run(ctx, e.binary, args...); err != nil {
		return "", fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("extracted audio missing: %w", err)
	}

	e.logger.Info("audio extracted", "path", outPath)
	return outPath, nil
}
