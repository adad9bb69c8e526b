package download

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
	out  string
	err  error
	name string
	args []string
}

func (r *stubRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	r.name = name
	r.args = args
	return r.out, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "c", lastLine("a\nb\nc"))
	assert.Equal(t, "only", lastLine("only"))
	assert.Equal(t, "", lastLine("trailing\n"))
	assert.Equal(t, "", lastLine(""))
}

func TestResolverFetch(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "abc123.wav")
	require.NoError(t, os.WriteFile(wav, []byte("audio"), 0o644))

	runner := &stubRunner{out: "[download] fetching\n" + wav}
	r := NewResolver("", runner, discardLogger())

	got, err := r.Fetch(context.Background(), "https://example.com/v", dir)
	require.NoError(t, err)
	assert.Equal(t, wav, got)
	assert.Equal(t, "yt-dlp", runner.name)
	assert.Contains(t, runner.args, "--audio-format")
	assert.Equal(t, "https://example.com/v", runner.args[len(runner.args)-1])
}

func TestResolverFetchCommandError(t *testing.T) {
	runner := &stubRunner{err: errors.New("HTTP Error 403")}
	r := NewResolver("yt-dlp", runner, discardLogger())

	_, err := r.Fetch(context.Background(), "https://example.com/v", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestResolverFetchMissingFile(t *testing.T) {
	runner := &stubRunner{out: filepath.Join(t.TempDir(), "never-created.wav")}
	r := NewResolver("yt-dlp", runner, discardLogger())

	_, err := r.Fetch(context.Background(), "https://example.com/v", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
