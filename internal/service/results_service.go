package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/store"
)

// ResultsService exposes generated images for review and selection.
type ResultsService struct {
	sessions store.SessionStore
	results  store.ResultStore
	logger   *slog.Logger
}

// NewResultsService creates a ResultsService.
func NewResultsService(sessions store.SessionStore, results store.ResultStore, logger *slog.Logger) *ResultsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsService{
		sessions: sessions,
		results:  results,
		logger:   logger.With("component", "results_service"),
	}
}

// List returns the results of the caller's session ordered by prompt then
// variation. selectedOnly narrows the list to the download selection.
func (s *ResultsService) List(
	ctx context.Context,
	userID, sessionID uuid.UUID,
	selectedOnly bool,
) ([]*domain.ResultView, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, NewServiceError("results", "list", "failed to load session", err)
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}

	views, err := s.results.ListBySession(ctx, sessionID, selectedOnly)
	if err != nil {
		return nil, NewServiceError("results", "list", "failed to list results", err)
	}
	return views, nil
}

// SetSelected toggles the selection flag of one of the caller's results.
func (s *ResultsService) SetSelected(
	ctx context.Context,
	userID, resultID uuid.UUID,
	selected bool,
) (*domain.GenerationResult, error) {
	result, err := s.results.SetSelected(ctx, resultID, userID, selected)
	if err != nil {
		return nil, NewServiceError("results", "select", "failed to update selection", err)
	}
	s.logger.DebugContext(ctx, "result selection updated",
		"result_id", resultID,
		"selected", selected)
	return result, nil
}
