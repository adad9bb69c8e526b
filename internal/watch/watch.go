// Package watch auto-submits media files dropped into an inbox directory.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yonatanl/tamlil/internal/task"
)

var mediaExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".flv": true, ".mp3": true, ".wav": true, ".m4a": true,
}

// settleDelay gives the writer time to finish before the file is submitted;
// fsnotify fires on create, not on close.
const settleDelay = 500 * time.Millisecond

// submitter is the slice of the task manager the watcher needs.
type submitter interface {
	Submit(req task.SubmitRequest) (string, error)
}

// Watcher monitors an inbox directory and submits each new media file as a
// local-path transcription task.
type Watcher struct {
	dir     string
	manager submitter
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
}

// New creates a Watcher over dir, creating the directory if needed.
func New(dir string, manager submitter, logger *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{dir: dir, manager: manager, fsw: fsw, logger: logger}, nil
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("inbox watcher started", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox watcher stopped")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) || !isMediaFile(event.Name) {
				continue
			}
			time.Sleep(settleDelay)

			id, err := w.manager.Submit(task.SubmitRequest{LocalPath: event.Name})
			if err != nil {
				w.logger.Error("failed to submit watched file", "path", event.Name, "error", err)
				continue
			}
			w.logger.Info("submitted watched file", "path", event.Name, "task_id", id)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func isMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}
