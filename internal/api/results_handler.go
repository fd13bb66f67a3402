package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/api/shared"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/platform/logger"
)

// ResultsService is the review API used by ResultsHandler.
type ResultsService interface {
	List(ctx context.Context, userID, sessionID uuid.UUID, selectedOnly bool) ([]*domain.ResultView, error)
	SetSelected(ctx context.Context, userID, resultID uuid.UUID, selected bool) (*domain.GenerationResult, error)
}

// ResultsHandler serves generated images and their selection state.
type ResultsHandler struct {
	results ResultsService
	logger  *slog.Logger
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(results ResultsService, logger *slog.Logger) *ResultsHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ResultsHandler")
	}
	return &ResultsHandler{
		results: results,
		logger:  logger.With(slog.String("component", "results_handler")),
	}
}

// List handles GET /generations/{id}/results. With ?selected=true only the
// selected images are returned, which is the download manifest.
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	selectedOnly := false
	if raw := r.URL.Query().Get("selected"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid selected filter")
			return
		}
		selectedOnly = v
	}

	views, err := h.results.List(r.Context(), userID, sessionID, selectedOnly)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list results")
		return
	}

	resp := ResultsResponse{
		SessionID: sessionID,
		Results:   make([]ResultResponse, 0, len(views)),
	}
	for _, v := range views {
		resp.Results = append(resp.Results, resultToResponse(v))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// SetSelection handles PATCH /results/{id}/selection.
func (h *ResultsHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, resultID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req SelectionRequest
	if !parseAndValidateRequest(w, r, &req, log) {
		return
	}

	result, err := h.results.SetSelected(r.Context(), userID, resultID, *req.Selected)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update selection")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"id":         result.ID,
		"isSelected": result.IsSelected,
	})
}
