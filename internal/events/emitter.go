package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Dispatcher is an in-process EventEmitter that routes each event to the
// handlers registered for its type, synchronously and in order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]EventHandler),
		logger:   logger.With("component", "event_dispatcher"),
	}
}

// Register adds handler for eventType.
func (d *Dispatcher) Register(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
	d.logger.Debug("registered event handler",
		"event_type", eventType,
		"handler_count", len(d.handlers[eventType]))
}

// EmitEvent delivers event to every handler of its type. All handlers run
// even if one fails; the first error is returned. An event with no handler
// is an error, since a dropped generation request would leave its session
// pending forever.
func (d *Dispatcher) EmitEvent(ctx context.Context, event *TaskRequestEvent) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.Type]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.Error("no handlers registered for event",
			"event_id", event.ID,
			"event_type", event.Type)
		return fmt.Errorf("%w: %s", ErrNoHandler, event.Type)
	}

	d.logger.Debug("emitting event",
		"event_id", event.ID,
		"event_type", event.Type,
		"handler_count", len(handlers))

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			d.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
