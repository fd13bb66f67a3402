package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerationSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	s, err := NewGenerationSession(userID, 3)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, userID, s.UserID)
	assert.Equal(t, SessionStatusPending, s.Status)
	assert.Equal(t, 3, s.TotalPrompts)
	assert.Equal(t, 3, s.Remaining())
	assert.False(t, s.CreatedAt.IsZero())

	_, err = NewGenerationSession(uuid.Nil, 3)
	assert.ErrorIs(t, err, ErrEmptySessionUserID)

	_, err = NewGenerationSession(userID, 0)
	assert.ErrorIs(t, err, ErrInvalidSessionTotal)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestGenerationSessionValidateCounters(t *testing.T) {
	t.Parallel()

	base := func() GenerationSession {
		return GenerationSession{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			Status:       SessionStatusProcessing,
			TotalPrompts: 4,
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *GenerationSession)
		wantErr error
	}{
		{"in progress", func(s *GenerationSession) { s.CompletedPrompts = 2; s.FailedPrompts = 1 }, nil},
		{"overflow", func(s *GenerationSession) { s.CompletedPrompts = 3; s.FailedPrompts = 2 }, ErrSessionCounters},
		{"negative", func(s *GenerationSession) { s.FailedPrompts = -1 }, ErrSessionCounters},
		{"terminal short", func(s *GenerationSession) {
			s.Status = SessionStatusCompleted
			s.CompletedPrompts = 3
		}, ErrSessionCounters},
		{"terminal exact", func(s *GenerationSession) {
			s.Status = SessionStatusCompleted
			s.CompletedPrompts = 3
			s.FailedPrompts = 1
		}, nil},
		{"unknown status", func(s *GenerationSession) { s.Status = "done" }, ErrInvalidSessionStatus},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := base()
			tc.mutate(&s)
			err := s.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSessionStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, SessionStatusPending.IsTerminal())
	assert.False(t, SessionStatusProcessing.IsTerminal())
	assert.True(t, SessionStatusCompleted.IsTerminal())
	assert.True(t, SessionStatusFailed.IsTerminal())
}
