package task

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/events"
)

// BatchGenerationTaskFactory builds generation tasks over shared dependencies.
type BatchGenerationTaskFactory struct {
	deps BatchGenerationDeps
}

// NewBatchGenerationTaskFactory validates deps and creates a factory.
func NewBatchGenerationTaskFactory(deps BatchGenerationDeps) (*BatchGenerationTaskFactory, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid batch generation dependencies: %w", err)
	}
	deps.Logger = deps.Logger.With("component", "batch_executor")
	return &BatchGenerationTaskFactory{deps: deps}, nil
}

// CreateTask builds a new pending task for payload.
func (f *BatchGenerationTaskFactory) CreateTask(payload events.BatchGenerationPayload) (Task, error) {
	return f.build(uuid.New(), payload)
}

// Rehydrate rebuilds a persisted task, keeping its ID.
func (f *BatchGenerationTaskFactory) Rehydrate(rec Record) (Task, error) {
	var payload events.BatchGenerationPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode batch generation payload: %w", err)
	}
	return f.build(rec.ID, payload)
}

func (f *BatchGenerationTaskFactory) build(id uuid.UUID, payload events.BatchGenerationPayload) (*BatchGenerationTask, error) {
	if payload.SessionID == uuid.Nil {
		return nil, fmt.Errorf("batch generation payload has no session ID")
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("batch generation payload has no user ID")
	}
	if len(payload.Request.Prompts) == 0 || payload.Request.VariationsCount < 1 {
		return nil, fmt.Errorf("batch generation payload has no work")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch generation payload: %w", err)
	}
	return &BatchGenerationTask{
		id:      id,
		payload: payload,
		raw:     raw,
		status:  TaskStatusPending,
		deps:    f.deps,
	}, nil
}
