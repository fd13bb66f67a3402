package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/metrics"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/progress"
	"github.com/phrazzld/batchgen/internal/store"
)

// CancelledReason is the failure reason recorded for user cancellation.
const CancelledReason = "cancelled by user"

// ErrInvalidDelta is returned for an advance that would not increase the counters.
var ErrInvalidDelta = errors.New("advance delta must be non-negative and non-zero")

// Delta is an increment of a session's counters.
type Delta struct {
	Completed int
	Failed    int
}

// SessionTracker owns the lifecycle and counters of generation sessions and
// publishes a snapshot after every change.
type SessionTracker struct {
	sessions  store.SessionStore
	publisher progress.Publisher
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewSessionTracker creates a SessionTracker.
func NewSessionTracker(
	sessions store.SessionStore,
	publisher progress.Publisher,
	m *metrics.Collector,
	logger *slog.Logger,
) *SessionTracker {
	if sessions == nil {
		panic("session store cannot be nil")
	}
	if publisher == nil {
		panic("publisher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionTracker{
		sessions:  sessions,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("component", "session_tracker"),
	}
}

// Create stores a pending session with total prompts.
func (t *SessionTracker) Create(ctx context.Context, userID uuid.UUID, total int) (*domain.GenerationSession, error) {
	session, err := domain.NewGenerationSession(userID, total)
	if err != nil {
		return nil, NewServiceError("session", "create", "invalid session", err)
	}
	if err := t.sessions.Create(ctx, session); err != nil {
		return nil, NewServiceError("session", "create", "failed to save session", err)
	}
	t.metrics.SessionStarted()
	return session, nil
}

// Start moves a pending session to processing and publishes the snapshot.
// On a terminal session the stored row is returned with
// store.ErrSessionTerminal.
func (t *SessionTracker) Start(ctx context.Context, sessionID uuid.UUID) (*domain.GenerationSession, error) {
	session, err := t.sessions.MarkProcessing(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrSessionTerminal):
		return session, err
	case err != nil:
		return nil, NewServiceError("session", "start", "failed to start session", err)
	}

	t.publish(ctx, session)
	return session, nil
}

// Advance adds d to the session counters and publishes the new snapshot.
// On a terminal session nothing changes: the stored row is returned with
// store.ErrSessionTerminal so the caller can stop.
func (t *SessionTracker) Advance(ctx context.Context, sessionID uuid.UUID, d Delta) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	if d.Completed < 0 || d.Failed < 0 || d.Completed+d.Failed == 0 {
		return nil, ErrInvalidDelta
	}

	session, err := t.sessions.Advance(ctx, sessionID, d.Completed, d.Failed)
	switch {
	case errors.Is(err, store.ErrSessionTerminal):
		log.InfoContext(ctx, "ignoring advance on terminal session",
			"session_id", sessionID,
			"status", session.Status)
		return session, err
	case err != nil:
		return session, NewServiceError("session", "advance", "failed to advance session", err)
	}

	t.publish(ctx, session)
	return session, nil
}

// Finalize marks the session completed. Finalizing a terminal session is a
// no-op that returns the stored row.
func (t *SessionTracker) Finalize(ctx context.Context, sessionID uuid.UUID) (*domain.GenerationSession, error) {
	return t.finish(ctx, sessionID, domain.SessionStatusCompleted, "")
}

// Fail marks the session failed with reason. Unprocessed prompts are counted
// as failed. Failing a terminal session is a no-op.
func (t *SessionTracker) Fail(ctx context.Context, sessionID uuid.UUID, reason string) (*domain.GenerationSession, error) {
	return t.finish(ctx, sessionID, domain.SessionStatusFailed, reason)
}

func (t *SessionTracker) finish(
	ctx context.Context,
	sessionID uuid.UUID,
	status domain.SessionStatus,
	reason string,
) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	session, err := t.sessions.Finalize(ctx, sessionID, status, reason)
	if errors.Is(err, store.ErrSessionTerminal) {
		log.DebugContext(ctx, "session already terminal",
			"session_id", sessionID,
			"status", session.Status,
			"requested_status", status)
		return session, nil
	}
	if err != nil {
		return nil, NewServiceError("session", "finalize", "failed to finalize session", err)
	}

	log.InfoContext(ctx, "session finished",
		"session_id", sessionID,
		"status", session.Status,
		"completed", session.CompletedPrompts,
		"failed", session.FailedPrompts,
		"reason", reason)
	t.metrics.SessionFinished(string(session.Status))
	t.publish(ctx, session)
	return session, nil
}

// Session returns the stored session.
func (t *SessionTracker) Session(ctx context.Context, sessionID uuid.UUID) (*domain.GenerationSession, error) {
	session, err := t.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, NewServiceError("session", "get", "failed to load session", err)
	}
	return session, nil
}

// Snapshot returns the current progress of the session from a single read.
func (t *SessionTracker) Snapshot(ctx context.Context, sessionID uuid.UUID) (progress.Snapshot, error) {
	session, err := t.Session(ctx, sessionID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return progress.SnapshotOf(session), nil
}

// publish is best effort: the stored row stays authoritative and pollers
// and new subscribers read it directly.
func (t *SessionTracker) publish(ctx context.Context, session *domain.GenerationSession) {
	if err := t.publisher.Publish(ctx, progress.SnapshotOf(session)); err != nil {
		logger.FromContextOrDefault(ctx, t.logger).WarnContext(ctx, "failed to publish progress snapshot",
			"session_id", session.ID,
			"version", session.Version,
			"error", err)
	}
}
