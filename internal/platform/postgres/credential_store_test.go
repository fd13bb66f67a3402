package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var credentialColumnNames = []string{
	"id", "user_id", "key_name", "encrypted_key", "key_fingerprint", "key_preview",
	"is_valid", "usage_count", "last_validated_at", "last_used_at", "created_at", "updated_at",
}

func credentialRow(rows *sqlmock.Rows, c *domain.Credential) *sqlmock.Rows {
	var validated interface{}
	if c.LastValidatedAt != nil {
		validated = *c.LastValidatedAt
	}
	return rows.AddRow(
		c.ID.String(), c.UserID.String(), c.Name, c.EncryptedKey, c.Fingerprint, c.Preview,
		c.IsValid, c.UsageCount, validated, nil, c.CreatedAt, c.UpdatedAt,
	)
}

func TestPostgresCredentialStore_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresCredentialStore(db, nil)

	c, err := domain.NewCredential(uuid.New(), "Key 1", "AIzaSyTESTKEY0000000", []byte("sealed"))
	require.NoError(t, err)

	existing := *c
	existing.ID = uuid.New()
	existing.UsageCount = 7

	mock.ExpectQuery("INSERT INTO api_keys (.+) ON CONFLICT \\(user_id, key_fingerprint\\) DO UPDATE").
		WithArgs(c.ID, c.UserID, c.Name, c.EncryptedKey, c.Fingerprint, c.Preview, true,
			c.LastValidatedAt, c.CreatedAt, c.UpdatedAt).
		WillReturnRows(credentialRow(sqlmock.NewRows(credentialColumnNames), &existing))

	saved, err := s.Upsert(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, saved.ID)
	assert.Equal(t, int64(7), saved.UsageCount)
	assert.NotNil(t, saved.LastValidatedAt)
	assert.Nil(t, saved.LastUsedAt)
}

func TestPostgresCredentialStore_ListValid(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresCredentialStore(db, nil)
	userID := uuid.New()

	rows := sqlmock.NewRows(credentialColumnNames)
	for i := 0; i < 2; i++ {
		now := time.Now().UTC()
		credentialRow(rows, &domain.Credential{
			ID: uuid.New(), UserID: userID, Name: "k", EncryptedKey: []byte{1},
			Fingerprint: "f", Preview: "p...", IsValid: true, LastValidatedAt: &now,
			CreatedAt: now, UpdatedAt: now,
		})
	}
	mock.ExpectQuery("FROM api_keys\\s+WHERE user_id = \\$1 AND is_valid = TRUE\\s+ORDER BY created_at ASC, id ASC").
		WithArgs(userID).
		WillReturnRows(rows)

	creds, err := s.ListValid(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, creds, 2)
}

func TestPostgresCredentialStore_IncrementUsage(t *testing.T) {
	t.Run("single atomic update", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresCredentialStore(db, nil)
		id := uuid.New()

		mock.ExpectExec("UPDATE api_keys\\s+SET usage_count = usage_count \\+ 1").
			WithArgs(id, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.IncrementUsage(context.Background(), id))
	})

	t.Run("missing credential", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresCredentialStore(db, nil)

		mock.ExpectExec("UPDATE api_keys").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.IncrementUsage(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrCredentialNotFound)
	})
}
