package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/store"
)

// PostgresBatchStore implements the store.BatchStore interface
// using a PostgreSQL database as the storage backend.
type PostgresBatchStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBatchStore creates a new PostgreSQL implementation of the BatchStore interface.
func NewPostgresBatchStore(db store.DBTX, logger *slog.Logger) *PostgresBatchStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBatchStore{
		db:     db,
		logger: logger.With(slog.String("component", "batch_store")),
	}
}

// Ensure PostgresBatchStore implements store.BatchStore interface
var _ store.BatchStore = (*PostgresBatchStore)(nil)

// Create implements store.BatchStore.Create.
// Returns store.ErrInvalidEntity if the session does not exist.
func (s *PostgresBatchStore) Create(ctx context.Context, b *domain.PromptBatch) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO prompt_batches (id, session_id, prompt_index, prompt_text, reference_image_url,
			variations_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID,
		b.SessionID,
		b.PromptIndex,
		b.PromptText,
		b.ReferenceImageURL,
		b.VariationsCount,
		b.Status,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create prompt batch",
			slog.String("error", err.Error()),
			slog.String("batch_id", b.ID.String()),
			slog.String("session_id", b.SessionID.String()),
			slog.Int("prompt_index", b.PromptIndex))
		return MapError(err)
	}
	return nil
}

// GetBySessionAndIndex implements store.BatchStore.GetBySessionAndIndex.
func (s *PostgresBatchStore) GetBySessionAndIndex(
	ctx context.Context,
	sessionID uuid.UUID,
	index int,
) (*domain.PromptBatch, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, session_id, prompt_index, prompt_text, reference_image_url,
			variations_count, status, created_at, updated_at
		FROM prompt_batches
		WHERE session_id = $1 AND prompt_index = $2
	`
	var b domain.PromptBatch
	var ref sql.NullString
	var status string
	err := s.db.QueryRowContext(ctx, query, sessionID, index).Scan(
		&b.ID,
		&b.SessionID,
		&b.PromptIndex,
		&b.PromptText,
		&ref,
		&b.VariationsCount,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBatchNotFound
		}
		log.Error("failed to get prompt batch",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()),
			slog.Int("prompt_index", index))
		return nil, MapError(err)
	}
	b.ReferenceImageURL = ref.String
	b.Status = domain.BatchStatus(status)
	return &b, nil
}

// MarkCompleted implements store.BatchStore.MarkCompleted.
func (s *PostgresBatchStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE prompt_batches SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id, domain.BatchStatusCompleted, time.Now().UTC())
	if err != nil {
		log.Error("failed to mark prompt batch completed",
			slog.String("error", err.Error()),
			slog.String("batch_id", id.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "prompt batch"); err != nil {
		return store.ErrBatchNotFound
	}
	return nil
}

// WithTx implements store.BatchStore.WithTx.
func (s *PostgresBatchStore) WithTx(tx *sql.Tx) store.BatchStore {
	return &PostgresBatchStore{db: tx, logger: s.logger}
}
