package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the persisted lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskTypeBatchGeneration drives one generation session from its prompts
// to a terminal state.
const TaskTypeBatchGeneration = "batch_generation"

// Task is a unit of background work. Payload is what gets persisted; a
// Rehydrator for Type must be able to rebuild the task from it alone.
type Task interface {
	ID() uuid.UUID
	Type() string
	Payload() []byte
	Status() TaskStatus

	// Execute runs until done or ctx is cancelled. A task cancelled because
	// the runner is stopping must leave its work resumable.
	Execute(ctx context.Context) error
}

// Keyed is implemented by tasks that can be addressed by a domain key,
// such as the session a generation task drives. The runner uses the key
// for cancellation.
type Keyed interface {
	Key() string
}

// Record is a task as persisted in the store. Records are turned back into
// executable tasks by a Rehydrator registered for their type.
type Record struct {
	ID           uuid.UUID
	Type         string
	Payload      []byte
	Status       TaskStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Rehydrator rebuilds an executable task from a persisted record.
type Rehydrator func(rec Record) (Task, error)

// TaskQueueReader is the consuming side of a TaskQueue.
type TaskQueueReader interface {
	GetChannel() <-chan Task
}

// TaskStore persists tasks so the runner can resume them after a restart.
type TaskStore interface {
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus sets status and error message. A missing task is
	// not an error.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	GetPendingTasks(ctx context.Context) ([]Record, error)

	// GetProcessingTasks returns processing tasks last updated more than
	// olderThan ago. Zero returns all of them.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error)

	WithTx(tx *sql.Tx) TaskStore
}
