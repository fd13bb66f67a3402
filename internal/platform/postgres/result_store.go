package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/store"
)

// PostgresResultStore implements the store.ResultStore interface
// using a PostgreSQL database as the storage backend.
type PostgresResultStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresResultStore creates a new PostgreSQL implementation of the ResultStore interface.
func NewPostgresResultStore(db store.DBTX, logger *slog.Logger) *PostgresResultStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresResultStore{
		db:     db,
		logger: logger.With(slog.String("component", "result_store")),
	}
}

// Ensure PostgresResultStore implements store.ResultStore interface
var _ store.ResultStore = (*PostgresResultStore)(nil)

// Create implements store.ResultStore.Create.
func (s *PostgresResultStore) Create(ctx context.Context, r *domain.GenerationResult) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal result metadata: %w", err)
	}

	query := `
		INSERT INTO generation_results (id, batch_id, variation_number, image_url, is_selected,
			metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID,
		r.BatchID,
		r.VariationNumber,
		r.ImageURL,
		r.IsSelected,
		meta,
		r.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("variation slot already filled",
				slog.String("batch_id", r.BatchID.String()),
				slog.Int("variation_number", r.VariationNumber))
			return MapError(err)
		}
		log.Error("failed to create generation result",
			slog.String("error", err.Error()),
			slog.String("batch_id", r.BatchID.String()),
			slog.Int("variation_number", r.VariationNumber))
		return MapError(err)
	}
	return nil
}

// VariationNumbers implements store.ResultStore.VariationNumbers.
func (s *PostgresResultStore) VariationNumbers(ctx context.Context, batchID uuid.UUID) ([]int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		`SELECT variation_number FROM generation_results WHERE batch_id = $1 ORDER BY variation_number`,
		batchID)
	if err != nil {
		log.Error("failed to query variation numbers",
			slog.String("error", err.Error()),
			slog.String("batch_id", batchID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// CountBySession implements store.ResultStore.CountBySession.
func (s *PostgresResultStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM generation_results r
		JOIN prompt_batches b ON b.id = r.batch_id
		WHERE b.session_id = $1
	`
	var n int
	if err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&n); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to count session results",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return 0, MapError(err)
	}
	return n, nil
}

// ListBySession implements store.ResultStore.ListBySession.
func (s *PostgresResultStore) ListBySession(
	ctx context.Context,
	sessionID uuid.UUID,
	selectedOnly bool,
) ([]*domain.ResultView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT r.id, r.batch_id, r.variation_number, r.image_url, r.is_selected, r.metadata,
			r.created_at, b.prompt_index, b.prompt_text
		FROM generation_results r
		JOIN prompt_batches b ON b.id = r.batch_id
		WHERE b.session_id = $1 AND ($2 = FALSE OR r.is_selected)
		ORDER BY b.prompt_index ASC, r.variation_number ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, selectedOnly)
	if err != nil {
		log.Error("failed to list session results",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	views := []*domain.ResultView{}
	for rows.Next() {
		var v domain.ResultView
		var meta []byte
		if err := rows.Scan(
			&v.ID,
			&v.BatchID,
			&v.VariationNumber,
			&v.ImageURL,
			&v.IsSelected,
			&meta,
			&v.CreatedAt,
			&v.PromptIndex,
			&v.PromptText,
		); err != nil {
			log.Error("failed to scan result row", slog.String("error", err.Error()))
			return nil, err
		}
		if err := json.Unmarshal(meta, &v.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode result metadata: %w", err)
		}
		views = append(views, &v)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating result rows", slog.String("error", err.Error()))
		return nil, err
	}
	return views, nil
}

// SetSelected implements store.ResultStore.SetSelected.
// Ownership is checked through the batch and session in the same statement.
func (s *PostgresResultStore) SetSelected(
	ctx context.Context,
	id, userID uuid.UUID,
	selected bool,
) (*domain.GenerationResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE generation_results r
		SET is_selected = $3
		FROM prompt_batches b, generation_sessions s
		WHERE r.id = $1 AND b.id = r.batch_id AND s.id = b.session_id AND s.user_id = $2
		RETURNING r.id, r.batch_id, r.variation_number, r.image_url, r.is_selected, r.metadata, r.created_at
	`
	var r domain.GenerationResult
	var meta []byte
	err := s.db.QueryRowContext(ctx, query, id, userID, selected).Scan(
		&r.ID,
		&r.BatchID,
		&r.VariationNumber,
		&r.ImageURL,
		&r.IsSelected,
		&meta,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResultNotFound
		}
		log.Error("failed to update result selection",
			slog.String("error", err.Error()),
			slog.String("result_id", id.String()))
		return nil, MapError(err)
	}
	if err := json.Unmarshal(meta, &r.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode result metadata: %w", err)
	}
	return &r, nil
}

// WithTx implements store.ResultStore.WithTx.
func (s *PostgresResultStore) WithTx(tx *sql.Tx) store.ResultStore {
	return &PostgresResultStore{db: tx, logger: s.logger}
}
