package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a generation session.
type SessionStatus string

// Possible session status values
const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

// IsTerminal reports whether no further counter changes are allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// IsValid reports whether s is a known status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusPending, SessionStatusProcessing, SessionStatusCompleted, SessionStatusFailed:
		return true
	default:
		return false
	}
}

// Common validation errors for GenerationSession
var (
	ErrEmptySessionID       = validationError("session ID cannot be empty")
	ErrEmptySessionUserID   = validationError("session user ID cannot be empty")
	ErrInvalidSessionTotal  = validationError("session total prompts must be positive")
	ErrInvalidSessionStatus = validationError("invalid session status")
	ErrSessionCounters      = validationError("session counters out of range")
)

// GenerationSession tracks one submission of prompts through the pipeline.
// TotalPrompts is fixed at creation; CompletedPrompts and FailedPrompts only
// grow and never sum past TotalPrompts. Version increases on every mutation
// and orders snapshots for subscribers.
type GenerationSession struct {
	ID               uuid.UUID     `json:"id"`
	UserID           uuid.UUID     `json:"user_id"`
	Status           SessionStatus `json:"status"`
	TotalPrompts     int           `json:"total_prompts"`
	CompletedPrompts int           `json:"completed_prompts"`
	FailedPrompts    int           `json:"failed_prompts"`
	Version          int64         `json:"version"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewGenerationSession creates a pending session for userID with total prompts.
func NewGenerationSession(userID uuid.UUID, total int) (*GenerationSession, error) {
	now := time.Now().UTC()
	s := &GenerationSession{
		ID:           uuid.New(),
		UserID:       userID,
		Status:       SessionStatusPending,
		TotalPrompts: total,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks identifiers, status and counter bounds.
func (s *GenerationSession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySessionID
	}
	if s.UserID == uuid.Nil {
		return ErrEmptySessionUserID
	}
	if s.TotalPrompts <= 0 {
		return ErrInvalidSessionTotal
	}
	if !s.Status.IsValid() {
		return ErrInvalidSessionStatus
	}
	if s.CompletedPrompts < 0 || s.FailedPrompts < 0 ||
		s.CompletedPrompts+s.FailedPrompts > s.TotalPrompts {
		return ErrSessionCounters
	}
	if s.Status.IsTerminal() && s.CompletedPrompts+s.FailedPrompts != s.TotalPrompts {
		return ErrSessionCounters
	}
	return nil
}

// Processed is the number of prompts already accounted for.
func (s *GenerationSession) Processed() int {
	return s.CompletedPrompts + s.FailedPrompts
}

// Remaining is the number of prompts not yet accounted for.
func (s *GenerationSession) Remaining() int {
	return s.TotalPrompts - s.Processed()
}
