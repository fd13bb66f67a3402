package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
)

// TypeBatchGeneration requests execution of a generation session.
const TypeBatchGeneration = "batch_generation"

// ErrNoHandler is returned when an event type has no registered handler.
var ErrNoHandler = errors.New("no handler registered for event type")

// TaskRequestEvent asks for a background task to be created.
type TaskRequestEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent serializes payload into a new event of eventType.
func NewTaskRequestEvent(eventType string, payload interface{}) (*TaskRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// BatchGenerationPayload carries everything a generation task needs. It is
// persisted with the task, so a restarted process can resume the session.
type BatchGenerationPayload struct {
	SessionID uuid.UUID                `json:"session_id"`
	UserID    uuid.UUID                `json:"user_id"`
	Request   domain.GenerationRequest `json:"request"`
}

// NewBatchGenerationEvent builds the event that starts a session.
func NewBatchGenerationEvent(sessionID, userID uuid.UUID, req domain.GenerationRequest) (*TaskRequestEvent, error) {
	return NewTaskRequestEvent(TypeBatchGeneration, BatchGenerationPayload{
		SessionID: sessionID,
		UserID:    userID,
		Request:   req,
	})
}

// EventHandler processes events of the types it is registered for.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskRequestEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskRequestEvent) error {
	return f(ctx, event)
}

// EventEmitter publishes events without knowledge of their handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
