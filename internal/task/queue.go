package task

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Enqueue after the queue has been closed.
var ErrQueueClosed = errors.New("task queue is closed")

// Queue is an unbounded FIFO of pending task ids feeding the single worker.
// Enqueue never blocks; Dequeue blocks until an item arrives or the queue is
// closed. Unbounded on purpose: Submit must accept work without ever
// stalling an HTTP request on the worker's backlog.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []string
	closed bool
}

// NewQueue creates an empty task queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a task id to the queue and wakes a blocked consumer.
func (q *Queue) Enqueue(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, id)
	q.cond.Signal()
	return nil
}

// Dequeue removes and returns the oldest task id, blocking while the queue
// is empty. The second return value is false once the queue is closed;
// undrained ids are abandoned and picked up as interrupted tasks by the
// next startup's recovery pass.
func (q *Queue) Dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes every blocked consumer.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
}
