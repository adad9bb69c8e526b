package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	err  error
	name string
	args []string

	// write, when set, creates the output file the way ffmpeg would.
	write bool
}

func (r *stubRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	r.name = name
	r.args = args
	if r.err != nil {
		return "", r.err
	}
	if r.write {
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("wav"), 0o644); err != nil {
			return "", err
		}
	}
	return "", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractorConvert(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{write: true}
	e := NewExtractor("", runner, discardLogger())

	got, err := e.Convert(context.Background(), "/inbox/lecture.mp4", dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "lecture.wav"), got)
	assert.FileExists(t, got)
	assert.Equal(t, "ffmpeg", runner.name)
	assert.Contains(t, runner.args, "-vn")
	assert.Contains(t, runner.args, "pcm_s16le")
	assert.Equal(t, "/inbox/lecture.mp4", runner.args[1])
}

func TestExtractorConvertCommandError(t *testing.T) {
	runner := &stubRunner{err: errors.New("Invalid data found when processing input")}
	e := NewExtractor("ffmpeg", runner, discardLogger())

	_, err := e.Convert(context.Background(), "/inbox/broken.mkv", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg extract audio")
}

func TestExtractorConvertMissingOutput(t *testing.T) {
	e := NewExtractor("ffmpeg", &stubRunner{}, discardLogger())

	_, err := e.Convert(context.Background(), "/inbox/lecture.mov", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
