package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
)

// SessionStore defines the interface for generation session persistence.
// Counter mutations are single statements so concurrent readers always see
// a consistent row.
type SessionStore interface {
	// Create saves a new session.
	Create(ctx context.Context, s *domain.GenerationSession) error

	// GetByID retrieves a session by its unique ID.
	// Returns ErrSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error)

	// MarkProcessing moves a pending session to processing and bumps the
	// version. A session already processing is returned unchanged.
	// Returns ErrSessionTerminal if the session is completed or failed and
	// ErrSessionNotFound if no such session exists.
	MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error)

	// Advance adds completed and failed to the session counters, bumps the
	// version and moves a pending session to processing.
	// Returns ErrSessionTerminal if the session is completed or failed,
	// ErrSessionCounterOverflow if the totals would pass total_prompts and
	// ErrSessionNotFound if no such session exists.
	Advance(ctx context.Context, id uuid.UUID, completed, failed int) (*domain.GenerationSession, error)

	// Finalize moves a non-terminal session to status, assigning every
	// unaccounted prompt to failed_prompts so the counters sum to the total.
	// Returns ErrSessionTerminal if the session was already terminal.
	Finalize(
		ctx context.Context,
		id uuid.UUID,
		status domain.SessionStatus,
		reason string,
	) (*domain.GenerationSession, error)

	// ListByUser returns the user's sessions, newest first, with result totals.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.SessionSummary, error)

	// WithTx returns a new SessionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SessionStore
}
