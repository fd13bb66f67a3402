package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/stretchr/testify/require"
)

var sessionColumnNames = []string{
	"id", "user_id", "status", "total_prompts", "completed_prompts", "failed_prompts",
	"version", "failure_reason", "created_at", "updated_at",
}

// newMockDB returns a sqlmock-backed *sql.DB that is closed and verified
// when the test ends.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func sessionRow(s *domain.GenerationSession) *sqlmock.Rows {
	var reason interface{}
	if s.FailureReason != "" {
		reason = s.FailureReason
	}
	return sqlmock.NewRows(sessionColumnNames).AddRow(
		s.ID.String(),
		s.UserID.String(),
		string(s.Status),
		s.TotalPrompts,
		s.CompletedPrompts,
		s.FailedPrompts,
		s.Version,
		reason,
		s.CreatedAt,
		s.UpdatedAt,
	)
}

func testSession(status domain.SessionStatus, total, completed, failed int) *domain.GenerationSession {
	now := time.Now().UTC()
	return &domain.GenerationSession{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Status:           status,
		TotalPrompts:     total,
		CompletedPrompts: completed,
		FailedPrompts:    failed,
		Version:          int64(completed + failed),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
