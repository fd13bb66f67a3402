package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
)

// ResultStore defines the interface for generation result persistence.
type ResultStore interface {
	// Create saves a new result.
	// Returns ErrDuplicateVariation if the batch already has that variation number.
	Create(ctx context.Context, r *domain.GenerationResult) error

	// VariationNumbers lists the variation numbers already stored for a batch.
	VariationNumbers(ctx context.Context, batchID uuid.UUID) ([]int, error)

	// CountBySession returns how many results, placeholders included, are
	// stored across all batches of a session.
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)

	// ListBySession returns the session's results ordered by prompt index then
	// variation number. When selectedOnly is true only selected results are returned.
	ListBySession(ctx context.Context, sessionID uuid.UUID, selectedOnly bool) ([]*domain.ResultView, error)

	// SetSelected updates the selection flag of a result owned by userID.
	// Returns ErrResultNotFound when the result does not exist or belongs to
	// another user.
	SetSelected(ctx context.Context, id, userID uuid.UUID, selected bool) (*domain.GenerationResult, error)

	// WithTx returns a new ResultStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ResultStore
}
