package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/store"
)

const credentialColumns = `id, user_id, key_name, encrypted_key, key_fingerprint, key_preview,
	is_valid, usage_count, last_validated_at, last_used_at, created_at, updated_at`

// PostgresCredentialStore implements the store.CredentialStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCredentialStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCredentialStore creates a new PostgreSQL implementation of the CredentialStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresCredentialStore(db store.DBTX, logger *slog.Logger) *PostgresCredentialStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCredentialStore{
		db:     db,
		logger: logger.With(slog.String("component", "credential_store")),
	}
}

// Ensure PostgresCredentialStore implements store.CredentialStore interface
var _ store.CredentialStore = (*PostgresCredentialStore)(nil)

// Upsert implements store.CredentialStore.Upsert.
// A re-validated key keeps its ID and usage counter.
func (s *PostgresCredentialStore) Upsert(ctx context.Context, c *domain.Credential) (*domain.Credential, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO api_keys (id, user_id, key_name, encrypted_key, key_fingerprint, key_preview,
			is_valid, usage_count, last_validated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10)
		ON CONFLICT (user_id, key_fingerprint) DO UPDATE
		SET key_name = EXCLUDED.key_name,
			encrypted_key = EXCLUDED.encrypted_key,
			key_preview = EXCLUDED.key_preview,
			is_valid = EXCLUDED.is_valid,
			last_validated_at = EXCLUDED.last_validated_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + credentialColumns

	row := s.db.QueryRowContext(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		c.EncryptedKey,
		c.Fingerprint,
		c.Preview,
		c.IsValid,
		c.LastValidatedAt,
		c.CreatedAt,
		c.UpdatedAt,
	)

	saved, err := scanCredential(row)
	if err != nil {
		log.Error("failed to upsert credential",
			slog.String("error", err.Error()),
			slog.String("user_id", c.UserID.String()),
			slog.String("key_preview", c.Preview))
		return nil, MapError(err)
	}

	log.Debug("credential upserted",
		slog.String("credential_id", saved.ID.String()),
		slog.String("user_id", saved.UserID.String()))
	return saved, nil
}

// ListValid implements store.CredentialStore.ListValid.
func (s *PostgresCredentialStore) ListValid(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	return s.list(ctx, `
		SELECT `+credentialColumns+`
		FROM api_keys
		WHERE user_id = $1 AND is_valid = TRUE
		ORDER BY created_at ASC, id ASC`, userID)
}

// ListByUser implements store.CredentialStore.ListByUser.
func (s *PostgresCredentialStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	return s.list(ctx, `
		SELECT `+credentialColumns+`
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`, userID)
}

func (s *PostgresCredentialStore) list(ctx context.Context, query string, userID uuid.UUID) ([]*domain.Credential, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to query credentials",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			log.Error("failed to scan credential row", slog.String("error", err.Error()))
			return nil, err
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating credential rows", slog.String("error", err.Error()))
		return nil, err
	}
	return creds, nil
}

// IncrementUsage implements store.CredentialStore.IncrementUsage.
// The increment happens inside a single UPDATE so concurrent sessions never
// lose updates.
func (s *PostgresCredentialStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE api_keys
		SET usage_count = usage_count + 1, last_used_at = $2, updated_at = $2
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		log.Error("failed to increment credential usage",
			slog.String("error", err.Error()),
			slog.String("credential_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "credential"); err != nil {
		return store.ErrCredentialNotFound
	}
	return nil
}

// WithTx implements store.CredentialStore.WithTx.
func (s *PostgresCredentialStore) WithTx(tx *sql.Tx) store.CredentialStore {
	return &PostgresCredentialStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*domain.Credential, error) {
	var c domain.Credential
	var lastValidated, lastUsed sql.NullTime
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.EncryptedKey,
		&c.Fingerprint,
		&c.Preview,
		&c.IsValid,
		&c.UsageCount,
		&lastValidated,
		&lastUsed,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastValidated.Valid {
		t := lastValidated.Time
		c.LastValidatedAt = &t
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		c.LastUsedAt = &t
	}
	return &c, nil
}
