package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/metrics"
)

// SessionReader loads the stored state of a session.
type SessionReader func(ctx context.Context, sessionID uuid.UUID) (*domain.GenerationSession, error)

// Notifier streams a session's progress to one consumer.
type Notifier struct {
	hub     *Hub
	read    SessionReader
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewNotifier creates a Notifier over hub. read supplies the snapshot sent
// first on every stream.
func NewNotifier(hub *Hub, read SessionReader, m *metrics.Collector, logger *slog.Logger) *Notifier {
	return &Notifier{
		hub:     hub,
		read:    read,
		metrics: m,
		logger:  logger.With("component", "progress_notifier"),
	}
}

// Stream calls emit with the current snapshot of sessionID and then with
// every newer one, returning after a terminal snapshot has been emitted.
// Versions passed to emit strictly increase. Stream returns early with the
// error of emit, or with nil once ctx is done.
func (n *Notifier) Stream(ctx context.Context, sessionID uuid.UUID, emit func(Snapshot) error) error {
	// Subscribe before reading so no update between the read and the
	// subscription is lost.
	updates, unsubscribe := n.hub.Subscribe(sessionID)
	defer unsubscribe()

	n.metrics.SubscriberOpened()
	defer n.metrics.SubscriberClosed()

	session, err := n.read(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	current := SnapshotOf(session)
	if err := emit(current); err != nil {
		return err
	}
	last := current.Version
	if current.Terminal() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			n.logger.Debug("progress stream closed by consumer", "session_id", sessionID)
			return nil
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if s.Version <= last {
				continue
			}
			if err := emit(s); err != nil {
				return err
			}
			last = s.Version
			if s.Terminal() {
				return nil
			}
		}
	}
}
