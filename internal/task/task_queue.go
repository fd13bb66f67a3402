package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrQueueClosed   = errors.New("task queue is closed")
	ErrQueueFull     = errors.New("task queue is full")
	ErrAlreadyQueued = errors.New("task with this key is already queued")
)

// TaskQueue is a bounded FIFO of tasks waiting for a worker. It remembers
// the key of every waiting task so a session cannot be queued twice and so
// a waiting task can be cancelled before it starts.
type TaskQueue struct {
	mu      sync.Mutex
	tasks   chan Task
	waiting map[string]bool // key -> cancelled
	ids     map[uuid.UUID]struct{}
	logger  *slog.Logger
	closed  bool
}

// NewTaskQueue creates a queue holding at most size tasks.
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		tasks:   make(chan Task, size),
		waiting: make(map[string]bool),
		ids:     make(map[uuid.UUID]struct{}),
		logger:  logger,
	}
}

// Enqueue adds task without blocking.
func (q *TaskQueue) Enqueue(task Task) error {
	key := keyOf(task)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, dup := q.waiting[key]; dup {
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, key)
	}

	select {
	case q.tasks <- task:
		q.waiting[key] = false
		q.ids[task.ID()] = struct{}{}
		q.logger.Debug("task enqueued",
			"task_id", task.ID(),
			"task_key", key,
			"queue_len", len(q.tasks))
		return nil
	default:
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(q.tasks))
	}
}

// Cancel flags the waiting task with key. The worker that later claims it
// starts it with a cancelled context. It reports whether such a task waits.
func (q *TaskQueue) Cancel(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.waiting[key]; !ok {
		return false
	}
	q.waiting[key] = true
	return true
}

// Claim is called by the worker that received task from the channel. It
// forgets the task's key and reports whether it was cancelled while waiting.
func (q *TaskQueue) Claim(task Task) (cancelled bool) {
	key := keyOf(task)
	q.mu.Lock()
	defer q.mu.Unlock()
	cancelled = q.waiting[key]
	delete(q.waiting, key)
	delete(q.ids, task.ID())
	return cancelled
}

// Holds reports whether the task with id is waiting in the queue.
func (q *TaskQueue) Holds(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.ids[id]
	return ok
}

// Close stops further submissions. Tasks already queued can still be read.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
		q.logger.Info("task queue closed", "abandoned", len(q.tasks))
	}
}

// GetChannel returns the channel workers consume from.
func (q *TaskQueue) GetChannel() <-chan Task {
	return q.tasks
}

// Len reports the number of queued tasks.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}
