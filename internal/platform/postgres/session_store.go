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

const sessionColumns = `id, user_id, status, total_prompts, completed_prompts, failed_prompts,
	version, failure_reason, created_at, updated_at`

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the SessionStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Ensure PostgresSessionStore implements store.SessionStore interface
var _ store.SessionStore = (*PostgresSessionStore)(nil)

// Create implements store.SessionStore.Create.
func (s *PostgresSessionStore) Create(ctx context.Context, session *domain.GenerationSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during create",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	query := `
		INSERT INTO generation_sessions (id, user_id, status, total_prompts, completed_prompts,
			failed_prompts, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Status,
		session.TotalPrompts,
		session.CompletedPrompts,
		session.FailedPrompts,
		session.Version,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()),
			slog.String("user_id", session.UserID.String()))
		return MapError(err)
	}

	log.Info("session created",
		slog.String("session_id", session.ID.String()),
		slog.Int("total_prompts", session.TotalPrompts))
	return nil
}

// GetByID implements store.SessionStore.GetByID.
func (s *PostgresSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + sessionColumns + ` FROM generation_sessions WHERE id = $1`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("session not found", slog.String("session_id", id.String()))
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get session by ID",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}
	return session, nil
}

// MarkProcessing implements store.SessionStore.MarkProcessing.
func (s *PostgresSessionStore) MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE generation_sessions
		SET status = 'processing',
			version = version + 1,
			updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + sessionColumns

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id, time.Now().UTC()))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to mark session processing",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}

	current, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status.IsTerminal() {
		return current, store.ErrSessionTerminal
	}
	return current, nil
}

// Advance implements store.SessionStore.Advance.
// The terminal-state guard and the total bound are part of the WHERE clause,
// so the check and the increment are a single atomic step.
func (s *PostgresSessionStore) Advance(
	ctx context.Context,
	id uuid.UUID,
	completed, failed int,
) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE generation_sessions
		SET completed_prompts = completed_prompts + $2,
			failed_prompts = failed_prompts + $3,
			status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
			version = version + 1,
			updated_at = $4
		WHERE id = $1
			AND status NOT IN ('completed', 'failed')
			AND completed_prompts + failed_prompts + $2 + $3 <= total_prompts
		RETURNING ` + sessionColumns

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id, completed, failed, time.Now().UTC()))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to advance session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}

	current, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status.IsTerminal() {
		return current, store.ErrSessionTerminal
	}
	return current, store.ErrSessionCounterOverflow
}

// Finalize implements store.SessionStore.Finalize.
func (s *PostgresSessionStore) Finalize(
	ctx context.Context,
	id uuid.UUID,
	status domain.SessionStatus,
	reason string,
) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.IsTerminal() {
		return nil, domain.ErrInvalidSessionStatus
	}

	query := `
		UPDATE generation_sessions
		SET status = $2,
			failed_prompts = total_prompts - completed_prompts,
			failure_reason = NULLIF($3, ''),
			version = version + 1,
			updated_at = $4
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
		RETURNING ` + sessionColumns

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id, status, reason, time.Now().UTC()))
	if err == nil {
		log.Info("session finalized",
			slog.String("session_id", id.String()),
			slog.String("status", string(session.Status)),
			slog.Int("completed_prompts", session.CompletedPrompts),
			slog.Int("failed_prompts", session.FailedPrompts))
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to finalize session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}

	current, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return current, store.ErrSessionTerminal
}

// ListByUser implements store.SessionStore.ListByUser.
func (s *PostgresSessionStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.SessionSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT s.id, s.user_id, s.status, s.total_prompts, s.completed_prompts, s.failed_prompts,
			s.version, s.failure_reason, s.created_at, s.updated_at,
			COUNT(r.id),
			COALESCE(SUM(CASE WHEN r.is_selected THEN 1 ELSE 0 END), 0)
		FROM generation_sessions s
		LEFT JOIN prompt_batches b ON b.session_id = s.id
		LEFT JOIN generation_results r ON r.batch_id = b.id
		WHERE s.user_id = $1
		GROUP BY s.id
		ORDER BY s.created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		log.Error("failed to list sessions",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []*domain.SessionSummary{}
	for rows.Next() {
		var sum domain.SessionSummary
		var reason sql.NullString
		var status string
		if err := rows.Scan(
			&sum.ID,
			&sum.UserID,
			&status,
			&sum.TotalPrompts,
			&sum.CompletedPrompts,
			&sum.FailedPrompts,
			&sum.Version,
			&reason,
			&sum.CreatedAt,
			&sum.UpdatedAt,
			&sum.ResultCount,
			&sum.SelectedCount,
		); err != nil {
			log.Error("failed to scan session row", slog.String("error", err.Error()))
			return nil, err
		}
		sum.Status = domain.SessionStatus(status)
		sum.FailureReason = reason.String
		summaries = append(summaries, &sum)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating session rows", slog.String("error", err.Error()))
		return nil, err
	}
	return summaries, nil
}

// WithTx implements store.SessionStore.WithTx.
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return &PostgresSessionStore{db: tx, logger: s.logger}
}

func scanSession(row rowScanner) (*domain.GenerationSession, error) {
	var session domain.GenerationSession
	var status string
	var reason sql.NullString
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&status,
		&session.TotalPrompts,
		&session.CompletedPrompts,
		&session.FailedPrompts,
		&session.Version,
		&reason,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	session.Status = domain.SessionStatus(status)
	session.FailureReason = reason.String
	return &session, nil
}
