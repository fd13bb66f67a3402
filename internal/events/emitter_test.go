package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler counts and remembers the events it receives.
type recordingHandler struct {
	last  *TaskRequestEvent
	count int
	err   error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *TaskRequestEvent) error {
	h.last = event
	h.count++
	return h.err
}

func newEvent(t *testing.T) *TaskRequestEvent {
	t.Helper()
	event, err := NewBatchGenerationEvent(uuid.New(), uuid.New(), domain.GenerationRequest{
		Prompts:         []string{"a red fox"},
		VariationsCount: 1,
	})
	require.NoError(t, err)
	return event
}

func TestDispatcher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("event without handler is rejected", func(t *testing.T) {
		d := NewDispatcher(logger)
		event := newEvent(t)

		err := d.EmitEvent(context.Background(), event)
		assert.ErrorIs(t, err, ErrNoHandler)
	})

	t.Run("routes by type", func(t *testing.T) {
		d := NewDispatcher(logger)
		gen := &recordingHandler{}
		other := &recordingHandler{}
		d.Register(TypeBatchGeneration, gen)
		d.Register("other", other)

		event := newEvent(t)
		require.NoError(t, d.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, gen.count)
		assert.Same(t, event, gen.last)
		assert.Zero(t, other.count)
	})

	t.Run("failing handler does not stop the rest", func(t *testing.T) {
		d := NewDispatcher(logger)
		failing := &recordingHandler{err: errors.New("queue full")}
		ok := &recordingHandler{}
		d.Register(TypeBatchGeneration, failing)
		d.Register(TypeBatchGeneration, ok)

		event := newEvent(t)

		err := d.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "queue full")
		assert.Equal(t, 1, failing.count)
		assert.Equal(t, 1, ok.count)
	})

	t.Run("handler func adapter", func(t *testing.T) {
		d := NewDispatcher(logger)
		called := false
		d.Register(TypeBatchGeneration, HandlerFunc(func(context.Context, *TaskRequestEvent) error {
			called = true
			return nil
		}))

		event := newEvent(t)
		require.NoError(t, d.EmitEvent(context.Background(), event))
		assert.True(t, called)
	})
}
