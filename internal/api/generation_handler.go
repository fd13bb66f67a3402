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

// GenerationService is the session API used by GenerationHandler.
type GenerationService interface {
	StartGeneration(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*domain.GenerationSession, error)
	Get(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error)
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.SessionSummary, error)
	Cancel(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error)
}

// GenerationHandler handles generation session requests.
type GenerationHandler struct {
	generation GenerationService
	logger     *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generation GenerationService, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GenerationHandler")
	}
	return &GenerationHandler{
		generation: generation,
		logger:     logger.With(slog.String("component", "generation_handler")),
	}
}

// Start handles POST /generations. The session runs in the background; the
// response only acknowledges it.
func (h *GenerationHandler) Start(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserIDFromContext(w, r, log)
	if !ok {
		return
	}

	var req StartGenerationRequest
	if !parseAndValidateRequest(w, r, &req, log) {
		return
	}

	session, err := h.generation.StartGeneration(r.Context(), userID, req.toDomain())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start generation")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, StartGenerationResponse{
		SessionID:    session.ID,
		TotalPrompts: session.TotalPrompts,
	})
}

// List handles GET /generations?limit=&offset=.
func (h *GenerationHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserIDFromContext(w, r, log)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid offset")
		return
	}

	summaries, err := h.generation.History(r.Context(), userID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list generations")
		return
	}

	resp := HistoryResponse{
		Sessions: make([]SessionSummaryResponse, 0, len(summaries)),
		Limit:    limit,
		Offset:   offset,
	}
	for _, s := range summaries {
		resp.Sessions = append(resp.Sessions, summaryToResponse(s))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Get handles GET /generations/{id}, the polling fallback for progress.
func (h *GenerationHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	session, err := h.generation.Get(r.Context(), userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get generation")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// Cancel handles POST /generations/{id}/cancel. The session is reported as
// it stands when the request returns; a running task records the
// cancellation shortly after.
func (h *GenerationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	session, err := h.generation.Cancel(r.Context(), userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel generation")
		return
	}

	log.Info("generation cancel requested", slog.String("session_id", sessionID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, sessionToResponse(session))
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
