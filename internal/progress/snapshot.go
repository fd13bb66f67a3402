package progress

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
)

// Snapshot is the progress of a session at a given version.
type Snapshot struct {
	SessionID     uuid.UUID            `json:"sessionId"`
	Completed     int                  `json:"completed"`
	Failed        int                  `json:"failed"`
	Total         int                  `json:"total"`
	Status        domain.SessionStatus `json:"status"`
	Version       int64                `json:"version"`
	FailureReason string               `json:"failureReason,omitempty"`
}

// SnapshotOf copies the progress fields of s.
func SnapshotOf(s *domain.GenerationSession) Snapshot {
	return Snapshot{
		SessionID:     s.ID,
		Completed:     s.CompletedPrompts,
		Failed:        s.FailedPrompts,
		Total:         s.TotalPrompts,
		Status:        s.Status,
		Version:       s.Version,
		FailureReason: s.FailureReason,
	}
}

// Terminal reports whether no further snapshots will follow.
func (s Snapshot) Terminal() bool {
	return s.Status.IsTerminal()
}

// Publisher delivers a snapshot to the session's subscribers.
type Publisher interface {
	Publish(ctx context.Context, s Snapshot) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, s Snapshot) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, s Snapshot) error {
	return f(ctx, s)
}
