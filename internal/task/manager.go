package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Submission errors, rejected synchronously before a task is created.
var (
	ErrNoSource   = errors.New("submission requires a url or a local path")
	ErrBothSource = errors.New("submission accepts either a url or a local path, not both")
)

// SubmitRequest describes a new transcription job.
type SubmitRequest struct {
	URL       string
	LocalPath string
	TestMode  bool
}

// ManagerConfig holds tunables for the task manager.
type ManagerConfig struct {
	// OutputDir receives transcript .txt and _segments.json artifacts.
	OutputDir string

	// DownloadDir receives intermediate audio fetched from URLs.
	DownloadDir string

	// SummaryCharBudget bounds the transcript text handed to the
	// summarizer. Oversized input is truncated from the front, never
	// rejected.
	SummaryCharBudget int

	// Per-phase timeouts applied at the collaborator boundary. A timeout
	// is treated as an ordinary failure of that phase.
	DownloadTimeout   time.Duration
	ConvertTimeout    time.Duration
	TranscribeTimeout time.Duration
	DiarizeTimeout    time.Duration
	SummarizeTimeout  time.Duration
}

// DefaultManagerConfig returns a ManagerConfig with reasonable defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		OutputDir:         "downloads",
		DownloadDir:       "downloads",
		SummaryCharBudget: 8000,
		DownloadTimeout:   30 * time.Minute,
		ConvertTimeout:    30 * time.Minute,
		TranscribeTimeout: 2 * time.Hour,
		DiarizeTimeout:    30 * time.Minute,
		SummarizeTimeout:  2 * time.Minute,
	}
}

// Collaborators bundles the external services the pipeline drives. Diarizer
// and Summarizer may be no-op implementations; Downloader, Converter and
// Transcriber are required.
type Collaborators struct {
	Downloader  Downloader
	Converter   Converter
	Transcriber Transcriber
	Diarizer    Diarizer
	Summarizer  Summarizer
}

// Manager owns the task store, the queue and the single background worker.
// It is the only component that mutates task state after submission.
type Manager struct {
	cfg    ManagerConfig
	collab Collaborators
	store  *Store
	queue  *Queue
	logger *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager creates a Manager and immediately runs crash recovery against
// the loaded store: any task left non-terminal by a previous process is
// failed with an interrupted-run message before the worker starts and before
// any submission can be accepted.
func NewManager(cfg ManagerConfig, collab Collaborators, store *Store, logger *slog.Logger) (*Manager, error) {
	if collab.Downloader == nil || collab.Converter == nil || collab.Transcriber == nil {
		return nil, errors.New("downloader, converter and transcriber are required")
	}
	if collab.Diarizer == nil || collab.Summarizer == nil {
		return nil, errors.New("diarizer and summarizer must be set (use the no-op implementations)")
	}
	if cfg.SummaryCharBudget <= 0 {
		cfg.SummaryCharBudget = 8000
	}

	m := &Manager{
		cfg:    cfg,
		collab: collab,
		store:  store,
		queue:  NewQueue(),
		logger: logger,
	}

	if n := store.MarkInterrupted("Server restarted during processing"); n > 0 {
		logger.Warn("failed tasks interrupted by previous shutdown", "count", n)
	}
	return m, nil
}

// Start launches the background worker. Call once.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.workerLoop()
	m.logger.Info("task worker started")
}

// Submit validates the request, records the task as queued and enqueues it.
// It never blocks on processing; the returned id can be polled immediately.
func (m *Manager) Submit(req SubmitRequest) (string, error) {
	if req.URL == "" && req.LocalPath == "" {
		return "", ErrNoSource
	}
	if req.URL != "" && req.LocalPath != "" {
		return "", ErrBothSource
	}

	id := uuid.New().String()
	m.store.Put(Task{
		ID:        id,
		Status:    StatusQueued,
		Progress:  0,
		Message:   "Waiting...",
		CreatedAt: time.Now().UTC(),
		Source:    Source{URL: req.URL, LocalPath: req.LocalPath},
		TestMode:  req.TestMode,
	})

	if err := m.queue.Enqueue(id); err != nil {
		// Shutdown raced the submission; surface it on the task record.
		if ferr := m.store.Fail(id, "server is shutting down"); ferr != nil {
			m.logger.Error("failed to fail task after enqueue error", "task_id", id, "error", ferr)
		}
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	m.logger.Info("task submitted",
		"task_id", id,
		"url", req.URL != "",
		"test_mode", req.TestMode,
		"queue_depth", m.queue.Len())
	return id, nil
}

// GetStatus returns a copy of the task with the given id.
func (m *Manager) GetStatus(id string) (Task, bool) {
	return m.store.Get(id)
}

// GetAll returns every task in insertion order. Callers re-sort for display.
func (m *Manager) GetAll() []Task {
	return m.store.GetAll()
}

// QueueDepth returns the number of tasks waiting for the worker.
func (m *Manager) QueueDepth() int {
	return m.queue.Len()
}

// ActiveCount returns the number of non-terminal tasks.
func (m *Manager) ActiveCount() int {
	return m.store.ActiveCount()
}

// Idle reports whether there is no pending or in-flight work. Consulted by
// the janitor's idle-shutdown check.
func (m *Manager) Idle() bool {
	return m.queue.Len() == 0 && m.store.ActiveCount() == 0
}

// Close stops accepting work, waits for any in-flight task to finish and
// writes a final snapshot. Queued-but-unstarted tasks are abandoned; the
// next startup's recovery pass marks them interrupted.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.queue.Close()
		m.wg.Wait()
		m.store.Flush()
		m.logger.Info("task manager stopped")
	})
}
