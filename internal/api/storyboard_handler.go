package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/api/shared"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/service"
)

// StoryboardService is the script API used by StoryboardHandler.
type StoryboardService interface {
	WriteScript(ctx context.Context, userID uuid.UUID, req domain.ScriptRequest) (string, error)
	ExtractCharacters(ctx context.Context, userID uuid.UUID, req domain.CharacterRequest) (*service.CharacterResult, error)
}

// StoryboardHandler handles video script and character requests.
type StoryboardHandler struct {
	storyboard StoryboardService
	logger     *slog.Logger
}

// NewStoryboardHandler creates a new StoryboardHandler.
func NewStoryboardHandler(storyboard StoryboardService, logger *slog.Logger) *StoryboardHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StoryboardHandler")
	}
	return &StoryboardHandler{
		storyboard: storyboard,
		logger:     logger.With(slog.String("component", "storyboard_handler")),
	}
}

// VideoScript handles POST /scripts/video.
func (h *StoryboardHandler) VideoScript(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserIDFromContext(w, r, log)
	if !ok {
		return
	}

	var req VideoScriptRequest
	if !parseAndValidateRequest(w, r, &req, log) {
		return
	}

	script, err := h.storyboard.WriteScript(r.Context(), userID, domain.ScriptRequest{
		Lyrics:         req.Lyrics,
		Feedback:       req.Feedback,
		PreviousScript: req.PreviousScript,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to write video script")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, VideoScriptResponse{Script: script})
}

// Characters handles POST /scripts/characters. The response is 202 when a
// generation session was started for the character images.
func (h *StoryboardHandler) Characters(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserIDFromContext(w, r, log)
	if !ok {
		return
	}

	var req CharactersRequest
	if !parseAndValidateRequest(w, r, &req, log) {
		return
	}

	res, err := h.storyboard.ExtractCharacters(r.Context(), userID, req.toDomain())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to extract characters")
		return
	}

	status := http.StatusOK
	resp := CharactersResponse{Characters: res.Characters}
	if res.Session != nil {
		status = http.StatusAccepted
		resp.SessionID = &res.Session.ID
	}
	shared.RespondWithJSON(w, r, status, resp)
}
