package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
)

// CredentialStore defines the interface for provider API key persistence.
type CredentialStore interface {
	// Upsert inserts the credential, or refreshes the existing row for the same
	// (user, fingerprint) pair: the sealed secret, name, validity and
	// validation time are overwritten while usage counters are preserved.
	// Returns the stored row.
	Upsert(ctx context.Context, c *domain.Credential) (*domain.Credential, error)

	// ListValid returns the user's valid credentials in a stable order
	// (creation time, then ID), which defines the round-robin index.
	ListValid(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error)

	// ListByUser returns all of the user's credentials, valid or not.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error)

	// IncrementUsage atomically adds one to the usage counter and stamps
	// last_used_at. Returns ErrCredentialNotFound if no row matched.
	IncrementUsage(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new CredentialStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) CredentialStore
}
