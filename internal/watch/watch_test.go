package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonatanl/tamlil/internal/task"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingSubmitter) Submit(req task.SubmitRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, req.LocalPath)
	return "id", nil
}

func (s *recordingSubmitter) submitted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsMediaFile(t *testing.T) {
	assert.True(t, isMediaFile("/inbox/lecture.mp4"))
	assert.True(t, isMediaFile("/inbox/LECTURE.WAV"))
	assert.False(t, isMediaFile("/inbox/notes.txt"))
	assert.False(t, isMediaFile("/inbox/partial.mp4.part"))
	assert.False(t, isMediaFile("/inbox/noext"))
}

func TestWatcherSubmitsNewMediaFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	sub := &recordingSubmitter{}

	w, err := New(dir, sub, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watcher a beat to start consuming events.
	time.Sleep(100 * time.Millisecond)

	media := filepath.Join(dir, "shiur.mp4")
	require.NoError(t, os.WriteFile(media, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return len(sub.submitted()) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{media}, sub.submitted())

	// The non-media file never arrives.
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, sub.submitted(), 1)
}

func TestWatcherCreatesInboxDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "inbox")
	w, err := New(dir, &recordingSubmitter{}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	assert.DirExists(t, dir)
}
