package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
)

// BatchStore defines the interface for prompt batch persistence.
type BatchStore interface {
	// Create saves a new batch.
	Create(ctx context.Context, b *domain.PromptBatch) error

	// GetBySessionAndIndex returns the batch created for the prompt at index.
	// Returns ErrBatchNotFound if the prompt has no batch yet.
	GetBySessionAndIndex(ctx context.Context, sessionID uuid.UUID, index int) (*domain.PromptBatch, error)

	// MarkCompleted sets the batch status to completed.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new BatchStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) BatchStore
}
