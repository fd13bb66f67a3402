package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/progress"
	"github.com/phrazzld/batchgen/internal/redact"
)

// Streamer delivers the progress snapshots of one session.
type Streamer interface {
	Stream(ctx context.Context, sessionID uuid.UUID, emit func(progress.Snapshot) error) error
}

// ProgressHandler pushes session progress over SSE or WebSocket. Both
// transports send the current snapshot first and close after the terminal
// one.
type ProgressHandler struct {
	sessions GenerationService
	streamer Streamer
	logger   *slog.Logger
}

// NewProgressHandler creates a new ProgressHandler. sessions is used to
// check that the caller owns the session before subscribing.
func NewProgressHandler(sessions GenerationService, streamer Streamer, logger *slog.Logger) *ProgressHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ProgressHandler")
	}
	return &ProgressHandler{
		sessions: sessions,
		streamer: streamer,
		logger:   logger.With(slog.String("component", "progress_handler")),
	}
}

// authorize resolves the session for the caller, writing the error
// response when it cannot be streamed.
func (h *ProgressHandler) authorize(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return uuid.Nil, false
	}
	if _, err := h.sessions.Get(r.Context(), userID, sessionID); err != nil {
		HandleAPIError(w, r, err, "Failed to open progress stream")
		return uuid.Nil, false
	}
	return sessionID, true
}

// Events handles GET /generations/{id}/events as a server-sent event stream.
func (h *ProgressHandler) Events(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := h.authorize(w, r, log)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sent := 0
	err := h.streamer.Stream(r.Context(), sessionID, func(s progress.Snapshot) error {
		sent++
		return writeSSE(w, flusher, s)
	})
	if err != nil {
		log.Warn("progress stream ended with error",
			slog.String("session_id", sessionID.String()),
			slog.String("error", redact.Error(err)))
		return
	}
	log.Debug("progress stream completed",
		slog.String("session_id", sessionID.String()),
		slog.Int("events_sent", sent))
}

// writeSSE writes a snapshot as one "progress" event.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, s progress.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", s.Version, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	flusher.Flush()
	return nil
}

// Socket handles GET /generations/{id}/ws. Each snapshot is one JSON text
// message; the server closes with StatusNormalClosure after the terminal
// snapshot.
func (h *ProgressHandler) Socket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := h.authorize(w, r, log)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", slog.String("error", redact.Error(err)))
		return
	}
	defer conn.CloseNow()

	// The client sends nothing; CloseRead handles its close frame and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	err = h.streamer.Stream(ctx, sessionID, func(s progress.Snapshot) error {
		return wsjson.Write(ctx, conn, s)
	})
	if err != nil {
		if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
			log.Warn("progress socket ended with error",
				slog.String("session_id", sessionID.String()),
				slog.String("error", redact.Error(err)))
		}
		conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
