package task

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// fakeTask is a Task whose behaviour is set per test through run.
type fakeTask struct {
	id      uuid.UUID
	typ     string
	key     string
	payload []byte
	run     func(ctx context.Context) error
}

func newFakeTask(id uuid.UUID, taskType string, payload []byte) *fakeTask {
	return &fakeTask{
		id:      id,
		typ:     taskType,
		payload: payload,
		run:     func(context.Context) error { return nil },
	}
}

// newFakeSessionTask builds a batch generation style task whose payload
// names a fresh session.
func newFakeSessionTask(label string) *fakeTask {
	payload, _ := json.Marshal(map[string]string{
		"session_id": uuid.NewString(),
		"label":      label,
	})
	return newFakeTask(uuid.New(), TaskTypeBatchGeneration, payload)
}

func (t *fakeTask) ID() uuid.UUID                     { return t.id }
func (t *fakeTask) Type() string                      { return t.typ }
func (t *fakeTask) Key() string                       { return t.key }
func (t *fakeTask) Payload() []byte                   { return t.payload }
func (t *fakeTask) Status() TaskStatus                { return TaskStatusPending }
func (t *fakeTask) Execute(ctx context.Context) error { return t.run(ctx) }
