package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrNotFound is returned when a task id is not present in the store.
var ErrNotFound = errors.New("task not found")

// Store is the in-memory task table mirrored to an on-disk JSON snapshot.
//
// The mutex guards only the in-memory map; snapshot writes happen outside it
// so a slow disk never blocks concurrent status reads. Durability is
// write-through but best-effort: a failed write is logged and the in-memory
// state remains authoritative for the life of the process.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string
	gen   uint64

	// saveMu serializes snapshot writes. gen orders serializations taken
	// under mu so a write that lost the race to a newer state is dropped
	// instead of clobbering it on disk.
	saveMu   sync.Mutex
	savedGen uint64

	path   string
	logger *slog.Logger
}

// NewStore creates a Store backed by the snapshot file at path, loading any
// previous state. A missing snapshot starts empty; a corrupt one is logged
// and discarded rather than failing startup.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	s := &Store{
		tasks:  make(map[string]*Task),
		path:   path,
		logger: logger,
	}
	s.load()
	return s, nil
}

// Put inserts a new task record and persists the snapshot.
func (s *Store) Put(t Task) {
	s.mu.Lock()
	cp := t
	if _, exists := s.tasks[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = &cp
	data, gen := s.marshalLocked()
	s.mu.Unlock()

	s.save(data, gen)
}

// Update applies status, progress and message to the task and persists.
// Updates against a terminal task are ignored: Completed and Error are
// final states.
func (s *Store) Update(id string, status Status, progress int, message string) error {
	return s.mutate(id, func(t *Task) {
		t.Status = status
		t.Progress = progress
		t.Message = message
	})
}

// Complete transitions the task to its terminal success state with the
// attached result.
func (s *Store) Complete(id, message string, res *Result) error {
	return s.mutate(id, func(t *Task) {
		t.Status = StatusCompleted
		t.Progress = 100
		t.Message = message
		t.Result = res
		t.Error = ""
	})
}

// Fail transitions the task to its terminal error state. Progress resets to
// zero and the cause is recorded on the record.
func (s *Store) Fail(id, cause string) error {
	return s.mutate(id, func(t *Task) {
		t.Status = StatusError
		t.Progress = 0
		t.Message = cause
		t.Error = cause
		t.Result = nil
	})
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// GetAll returns copies of every task in insertion order.
func (s *Store) GetAll() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.tasks[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// Len returns the number of tasks in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// ActiveCount returns the number of tasks in a non-terminal state.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.Status.Terminal() {
			n++
		}
	}
	return n
}

// MarkInterrupted force-fails every non-terminal task. It runs once at
// startup, before the worker begins consuming, so tasks orphaned by an
// unclean shutdown do not appear perpetually in progress. Returns the number
// of tasks transitioned.
func (s *Store) MarkInterrupted(cause string) int {
	s.mu.Lock()
	n := 0
	for _, t := range s.tasks {
		if t.Status.Terminal() {
			continue
		}
		s.logger.Warn("recovering interrupted task", "task_id", t.ID, "previous_status", t.Status)
		t.Status = StatusError
		t.Progress = 0
		t.Message = cause
		t.Error = cause
		t.Result = nil
		n++
	}
	var data []byte
	var gen uint64
	if n > 0 {
		data, gen = s.marshalLocked()
	}
	s.mu.Unlock()

	if data != nil {
		s.save(data, gen)
	}
	return n
}

// Flush writes the current state to disk. Called on shutdown.
func (s *Store) Flush() {
	s.mu.Lock()
	data, gen := s.marshalLocked()
	s.mu.Unlock()
	s.save(data, gen)
}

func (s *Store) mutate(id string, fn func(*Task)) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.Status.Terminal() {
		s.mu.Unlock()
		s.logger.Warn("ignoring update to terminal task", "task_id", id, "status", t.Status)
		return nil
	}
	fn(t)
	data, gen := s.marshalLocked()
	s.mu.Unlock()

	s.save(data, gen)
	return nil
}

// marshalLocked serializes the full task map and stamps it with the next
// generation number. Caller must hold mu.
func (s *Store) marshalLocked() ([]byte, uint64) {
	s.gen++
	data, err := json.Marshal(s.tasks)
	if err != nil {
		// Task contains only JSON-encodable fields, so this indicates a
		// programming error rather than runtime state.
		s.logger.Error("failed to marshal task snapshot", "error", err)
		return nil, s.gen
	}
	return data, s.gen
}

// save writes the serialized store to a temp file and renames it over the
// canonical snapshot path, so the snapshot is never observed half-written.
// A serialization older than what is already on disk is dropped: two
// concurrent mutations can reach here in either order, and the stale one
// must not overwrite the newer state.
func (s *Store) save(data []byte, gen uint64) {
	if data == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if gen <= s.savedGen {
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("failed to write task snapshot", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Error("failed to replace task snapshot", "path", s.path, "error", err)
		return
	}
	s.savedGen = gen
}

// load reads the snapshot from disk. Insertion order is rebuilt from
// creation timestamps since the snapshot itself is an unordered map.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read task snapshot", "path", s.path, "error", err)
		}
		return
	}

	var tasks map[string]*Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		s.logger.Error("corrupt task snapshot, starting empty", "path", s.path, "error", err)
		return
	}

	order := make([]string, 0, len(tasks))
	for id := range tasks {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		return tasks[order[i]].CreatedAt.Before(tasks[order[j]].CreatedAt)
	})

	s.tasks = tasks
	s.order = order
	s.logger.Info("loaded task snapshot", "path", s.path, "tasks", len(tasks))
}
