package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/events"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/store"
)

// Pagination bounds for session history.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// scheduleFailedReason is recorded when a session's task could not be submitted.
const scheduleFailedReason = "failed to schedule generation"

// CredentialChecker reports whether a user can generate at all.
type CredentialChecker interface {
	HasValid(ctx context.Context, userID uuid.UUID) (bool, error)
}

// TaskCanceller cancels the task identified by key if this process holds it.
type TaskCanceller interface {
	Cancel(key string) bool
}

// GenerationService accepts submissions and exposes session state to users.
type GenerationService struct {
	tracker     *SessionTracker
	sessions    store.SessionStore
	credentials CredentialChecker
	emitter     events.EventEmitter
	canceller   TaskCanceller
	limits      config.GenerationConfig
	logger      *slog.Logger
}

// NewGenerationService creates a GenerationService.
// It returns an error if any of the required dependencies are nil.
func NewGenerationService(
	tracker *SessionTracker,
	sessions store.SessionStore,
	credentials CredentialChecker,
	emitter events.EventEmitter,
	canceller TaskCanceller,
	limits config.GenerationConfig,
	logger *slog.Logger,
) (*GenerationService, error) {
	switch {
	case tracker == nil:
		return nil, &ServiceError{Service: "generation", Op: "create_service", Message: "tracker cannot be nil"}
	case sessions == nil:
		return nil, &ServiceError{Service: "generation", Op: "create_service", Message: "session store cannot be nil"}
	case credentials == nil:
		return nil, &ServiceError{Service: "generation", Op: "create_service", Message: "credential checker cannot be nil"}
	case emitter == nil:
		return nil, &ServiceError{Service: "generation", Op: "create_service", Message: "event emitter cannot be nil"}
	case canceller == nil:
		return nil, &ServiceError{Service: "generation", Op: "create_service", Message: "task canceller cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		tracker:     tracker,
		sessions:    sessions,
		credentials: credentials,
		emitter:     emitter,
		canceller:   canceller,
		limits:      limits,
		logger:      logger.With("component", "generation_service"),
	}, nil
}

// StartGeneration validates req, checks that the user has a usable
// credential, creates the session and requests its execution. No session
// is created when validation or the credential check fails. Once the
// session exists every later failure is reported through its state.
func (s *GenerationService) StartGeneration(
	ctx context.Context,
	userID uuid.UUID,
	req domain.GenerationRequest,
) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(s.limits.MaxVariationsPerPrompt, s.limits.MaxPrompts); err != nil {
		return nil, err
	}

	ok, err := s.credentials.HasValid(ctx, userID)
	if err != nil {
		return nil, NewServiceError("generation", "start", "failed to check credentials", err)
	}
	if !ok {
		log.InfoContext(ctx, "rejecting generation without valid credentials", "user_id", userID)
		return nil, credential.ErrNoCredentialsAvailable
	}

	session, err := s.tracker.Create(ctx, userID, len(req.Prompts))
	if err != nil {
		return nil, err
	}

	event, err := events.NewBatchGenerationEvent(session.ID, userID, req)
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to request generation task",
			"session_id", session.ID,
			"error", err)
		if _, failErr := s.tracker.Fail(context.WithoutCancel(ctx), session.ID, scheduleFailedReason); failErr != nil {
			log.ErrorContext(ctx, "failed to mark unscheduled session failed",
				"session_id", session.ID,
				"error", failErr)
		}
		return nil, NewServiceError("generation", "start", "failed to schedule generation", err)
	}

	log.InfoContext(ctx, "generation session accepted",
		"session_id", session.ID,
		"user_id", userID,
		"prompts", len(req.Prompts),
		"variations", req.VariationsCount)
	return session, nil
}

// Get returns the caller's session. Sessions of other users are reported
// as not found.
func (s *GenerationService) Get(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error) {
	session, err := s.tracker.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// History lists the caller's sessions, newest first.
func (s *GenerationService) History(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.SessionSummary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	summaries, err := s.sessions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, NewServiceError("generation", "history", "failed to list sessions", err)
	}
	return summaries, nil
}

// Cancel stops the caller's session. If this process runs or queues the
// session's task, the task is cancelled and the executor records the
// failure. Otherwise the session is failed directly and whichever process
// runs it stops at its next counter update.
func (s *GenerationService) Cancel(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, ErrSessionFinished
	}

	if s.canceller.Cancel(sessionID.String()) {
		log.InfoContext(ctx, "cancellation requested for local task", "session_id", sessionID)
		return session, nil
	}

	failed, err := s.tracker.Fail(ctx, sessionID, CancelledReason)
	if err != nil {
		return nil, err
	}
	if failed.Status == domain.SessionStatusCompleted {
		return failed, ErrSessionFinished
	}
	log.InfoContext(ctx, "session cancelled without a local task", "session_id", sessionID)
	return failed, nil
}
