package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/batchgen/internal/events"
)

// BatchTaskFactory creates generation tasks from event payloads.
type BatchTaskFactory interface {
	CreateTask(payload events.BatchGenerationPayload) (Task, error)
}

// Submitter accepts tasks for durable execution.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler turns batch generation events into submitted tasks.
type TaskFactoryEventHandler struct {
	factory   BatchTaskFactory
	submitter Submitter
	logger    *slog.Logger
}

// NewTaskFactoryEventHandler creates a new event handler that uses the given task factory
// to create tasks, and submits them to the provided task runner.
func NewTaskFactoryEventHandler(factory BatchTaskFactory, submitter Submitter, logger *slog.Logger) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		factory:   factory,
		submitter: submitter,
		logger:    logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent decodes the payload, builds the task and submits it. The task
// is persisted before HandleEvent returns; if the queue is full the error
// is returned but the task stays pending and runs on the next recovery.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.Type != events.TypeBatchGeneration {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload events.BatchGenerationPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	task, err := h.factory.CreateTask(payload)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"session_id", payload.SessionID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.submitter.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", task.ID(),
			"session_id", payload.SessionID,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task created and submitted successfully",
		"task_id", task.ID(),
		"session_id", payload.SessionID,
		"event_id", event.ID)
	return nil
}

var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)
