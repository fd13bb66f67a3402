package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/api/shared"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/progress"
	"github.com/phrazzld/batchgen/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerationService struct {
	startFn   func(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*domain.GenerationSession, error)
	getFn     func(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error)
	historyFn func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.SessionSummary, error)
	cancelFn  func(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error)
}

func (f *fakeGenerationService) StartGeneration(
	ctx context.Context,
	userID uuid.UUID,
	req domain.GenerationRequest,
) (*domain.GenerationSession, error) {
	return f.startFn(ctx, userID, req)
}

func (f *fakeGenerationService) Get(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error) {
	return f.getFn(ctx, userID, sessionID)
}

func (f *fakeGenerationService) History(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.SessionSummary, error) {
	return f.historyFn(ctx, userID, limit, offset)
}

func (f *fakeGenerationService) Cancel(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error) {
	return f.cancelFn(ctx, userID, sessionID)
}

type fakeResultsService struct {
	listFn   func(ctx context.Context, userID, sessionID uuid.UUID, selectedOnly bool) ([]*domain.ResultView, error)
	selectFn func(ctx context.Context, userID, resultID uuid.UUID, selected bool) (*domain.GenerationResult, error)
}

func (f *fakeResultsService) List(
	ctx context.Context,
	userID, sessionID uuid.UUID,
	selectedOnly bool,
) ([]*domain.ResultView, error) {
	return f.listFn(ctx, userID, sessionID, selectedOnly)
}

func (f *fakeResultsService) SetSelected(
	ctx context.Context,
	userID, resultID uuid.UUID,
	selected bool,
) (*domain.GenerationResult, error) {
	return f.selectFn(ctx, userID, resultID, selected)
}

type fakeCredentialService struct {
	validateFn func(ctx context.Context, userID uuid.UUID, keys []string) ([]credential.ValidationResult, error)
	listFn     func(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error)
}

func (f *fakeCredentialService) ValidateAndSave(
	ctx context.Context,
	userID uuid.UUID,
	keys []string,
) ([]credential.ValidationResult, error) {
	return f.validateFn(ctx, userID, keys)
}

func (f *fakeCredentialService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	return f.listFn(ctx, userID)
}

type fakeStreamer struct {
	snapshots []progress.Snapshot
	err       error
}

func (f *fakeStreamer) Stream(ctx context.Context, _ uuid.UUID, emit func(progress.Snapshot) error) error {
	for _, s := range f.snapshots {
		if err := emit(s); err != nil {
			return err
		}
	}
	return f.err
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser injects the authenticated user the way the auth middleware does.
func withUser(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newSession(userID uuid.UUID, status domain.SessionStatus) *domain.GenerationSession {
	now := time.Now().UTC()
	return &domain.GenerationSession{
		ID:               uuid.New(),
		UserID:           userID,
		Status:           status,
		TotalPrompts:     3,
		CompletedPrompts: 1,
		Version:          2,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGenerationHandler(t *testing.T) {
	userID := uuid.New()

	newRouter := func(svc *fakeGenerationService) http.Handler {
		h := NewGenerationHandler(svc, testLogger())
		r := chi.NewRouter()
		r.Use(withUser(userID))
		r.Post("/generations", h.Start)
		r.Get("/generations", h.List)
		r.Get("/generations/{id}", h.Get)
		r.Post("/generations/{id}/cancel", h.Cancel)
		return r
	}

	t.Run("start accepts request", func(t *testing.T) {
		session := newSession(userID, domain.SessionStatusProcessing)
		var got domain.GenerationRequest
		svc := &fakeGenerationService{
			startFn: func(_ context.Context, u uuid.UUID, req domain.GenerationRequest) (*domain.GenerationSession, error) {
				assert.Equal(t, userID, u)
				got = req
				return session, nil
			},
		}

		rr := doJSON(t, newRouter(svc), http.MethodPost, "/generations", StartGenerationRequest{
			Prompts:         []string{"a", "b", "c"},
			VariationsCount: 2,
		})

		require.Equal(t, http.StatusAccepted, rr.Code)
		var resp StartGenerationResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, session.ID, resp.SessionID)
		assert.Equal(t, 3, resp.TotalPrompts)
		assert.Equal(t, []string{"a", "b", "c"}, got.Prompts)
		assert.Equal(t, 2, got.VariationsCount)
	})

	t.Run("start without credentials", func(t *testing.T) {
		svc := &fakeGenerationService{
			startFn: func(context.Context, uuid.UUID, domain.GenerationRequest) (*domain.GenerationSession, error) {
				return nil, credential.ErrNoCredentialsAvailable
			},
		}

		rr := doJSON(t, newRouter(svc), http.MethodPost, "/generations", StartGenerationRequest{
			Prompts:         []string{"a"},
			VariationsCount: 1,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), ErrorCodeNoValidCredentials)
	})

	t.Run("start rejects invalid body", func(t *testing.T) {
		svc := &fakeGenerationService{}
		rr := doJSON(t, newRouter(svc), http.MethodPost, "/generations", map[string]interface{}{
			"prompts": []string{},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("start surfaces service validation", func(t *testing.T) {
		svc := &fakeGenerationService{
			startFn: func(context.Context, uuid.UUID, domain.GenerationRequest) (*domain.GenerationSession, error) {
				return nil, domain.ErrInvalidVariations
			},
		}
		rr := doJSON(t, newRouter(svc), http.MethodPost, "/generations", StartGenerationRequest{
			Prompts:         []string{"a"},
			VariationsCount: 99,
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list passes paging", func(t *testing.T) {
		summary := &domain.SessionSummary{
			GenerationSession: *newSession(userID, domain.SessionStatusCompleted),
			ResultCount:       6,
			SelectedCount:     2,
		}
		svc := &fakeGenerationService{
			historyFn: func(_ context.Context, _ uuid.UUID, limit, offset int) ([]*domain.SessionSummary, error) {
				assert.Equal(t, 5, limit)
				assert.Equal(t, 10, offset)
				return []*domain.SessionSummary{summary}, nil
			},
		}

		rr := doJSON(t, newRouter(svc), http.MethodGet, "/generations?limit=5&offset=10", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp HistoryResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp.Sessions, 1)
		assert.Equal(t, 6, resp.Sessions[0].ResultCount)
		assert.Equal(t, 2, resp.Sessions[0].SelectedCount)
		assert.Equal(t, "completed", resp.Sessions[0].Status)
	})

	t.Run("list rejects bad limit", func(t *testing.T) {
		rr := doJSON(t, newRouter(&fakeGenerationService{}), http.MethodGet, "/generations?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("get returns progress", func(t *testing.T) {
		session := newSession(userID, domain.SessionStatusProcessing)
		svc := &fakeGenerationService{
			getFn: func(_ context.Context, _, id uuid.UUID) (*domain.GenerationSession, error) {
				assert.Equal(t, session.ID, id)
				return session, nil
			},
		}

		rr := doJSON(t, newRouter(svc), http.MethodGet, "/generations/"+session.ID.String(), nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp SessionResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, 1, resp.Completed)
		assert.Equal(t, 3, resp.Total)
		assert.Equal(t, int64(2), resp.Version)
	})

	t.Run("get of foreign session is not found", func(t *testing.T) {
		svc := &fakeGenerationService{
			getFn: func(context.Context, uuid.UUID, uuid.UUID) (*domain.GenerationSession, error) {
				return nil, service.ErrSessionNotFound
			},
		}
		rr := doJSON(t, newRouter(svc), http.MethodGet, "/generations/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("get rejects malformed id", func(t *testing.T) {
		rr := doJSON(t, newRouter(&fakeGenerationService{}), http.MethodGet, "/generations/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("cancel finished session conflicts", func(t *testing.T) {
		svc := &fakeGenerationService{
			cancelFn: func(context.Context, uuid.UUID, uuid.UUID) (*domain.GenerationSession, error) {
				return nil, service.ErrSessionFinished
			},
		}
		rr := doJSON(t, newRouter(svc), http.MethodPost, "/generations/"+uuid.NewString()+"/cancel", nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("cancel accepted", func(t *testing.T) {
		session := newSession(userID, domain.SessionStatusProcessing)
		svc := &fakeGenerationService{
			cancelFn: func(context.Context, uuid.UUID, uuid.UUID) (*domain.GenerationSession, error) {
				return session, nil
			},
		}
		rr := doJSON(t, newRouter(svc), http.MethodPost, "/generations/"+session.ID.String()+"/cancel", nil)
		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("missing user", func(t *testing.T) {
		h := NewGenerationHandler(&fakeGenerationService{}, testLogger())
		rr := doJSON(t, http.HandlerFunc(h.List), http.MethodGet, "/generations", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestResultsHandler(t *testing.T) {
	userID := uuid.New()

	newRouter := func(svc *fakeResultsService) http.Handler {
		h := NewResultsHandler(svc, testLogger())
		r := chi.NewRouter()
		r.Use(withUser(userID))
		r.Get("/generations/{id}/results", h.List)
		r.Patch("/results/{id}/selection", h.SetSelection)
		return r
	}

	t.Run("list selected only", func(t *testing.T) {
		sessionID := uuid.New()
		view := &domain.ResultView{
			GenerationResult: domain.GenerationResult{
				ID:              uuid.New(),
				VariationNumber: 2,
				ImageURL:        "https://img.example/1.png",
				IsSelected:      true,
				Metadata:        domain.ResultMetadata{Model: "m", APIKeyIndex: 1},
			},
			PromptIndex: 0,
			PromptText:  "a red fox",
		}
		svc := &fakeResultsService{
			listFn: func(_ context.Context, _, id uuid.UUID, selectedOnly bool) ([]*domain.ResultView, error) {
				assert.Equal(t, sessionID, id)
				assert.True(t, selectedOnly)
				return []*domain.ResultView{view}, nil
			},
		}

		rr := doJSON(t, newRouter(svc), http.MethodGet, "/generations/"+sessionID.String()+"/results?selected=true", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp ResultsResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "a red fox", resp.Results[0].PromptText)
		assert.Equal(t, 2, resp.Results[0].VariationNumber)
		assert.Equal(t, 1, resp.Results[0].APIKeyIndex)
	})

	t.Run("list rejects bad filter", func(t *testing.T) {
		rr := doJSON(t, newRouter(&fakeResultsService{}), http.MethodGet,
			"/generations/"+uuid.NewString()+"/results?selected=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("set selection", func(t *testing.T) {
		resultID := uuid.New()
		svc := &fakeResultsService{
			selectFn: func(_ context.Context, u, id uuid.UUID, selected bool) (*domain.GenerationResult, error) {
				assert.Equal(t, userID, u)
				assert.False(t, selected)
				return &domain.GenerationResult{ID: id, IsSelected: selected}, nil
			},
		}

		rr := doJSON(t, newRouter(svc), http.MethodPatch, "/results/"+resultID.String()+"/selection",
			map[string]bool{"selected": false})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"isSelected":false`)
	})

	t.Run("set selection requires flag", func(t *testing.T) {
		rr := doJSON(t, newRouter(&fakeResultsService{}), http.MethodPatch,
			"/results/"+uuid.NewString()+"/selection", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("set selection on foreign result", func(t *testing.T) {
		svc := &fakeResultsService{
			selectFn: func(context.Context, uuid.UUID, uuid.UUID, bool) (*domain.GenerationResult, error) {
				return nil, service.ErrResultNotFound
			},
		}
		rr := doJSON(t, newRouter(svc), http.MethodPatch, "/results/"+uuid.NewString()+"/selection",
			map[string]bool{"selected": true})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCredentialHandler(t *testing.T) {
	userID := uuid.New()

	newRouter := func(svc *fakeCredentialService) http.Handler {
		h := NewCredentialHandler(svc, testLogger())
		r := chi.NewRouter()
		r.Use(withUser(userID))
		r.Post("/credentials/validate", h.Validate)
		r.Get("/credentials", h.List)
		return r
	}

	t.Run("validate returns per-key results", func(t *testing.T) {
		svc := &fakeCredentialService{
			validateFn: func(_ context.Context, _ uuid.UUID, keys []string) ([]credential.ValidationResult, error) {
				assert.Equal(t, []string{"good-key", "bad-key"}, keys)
				return []credential.ValidationResult{
					{Key: "good...key", Valid: true, Message: "valid", Secret: "good-key"},
					{Key: "bad-...key", Valid: false, Message: "authentication rejected", Secret: "bad-key"},
				}, nil
			},
		}

		rr := doJSON(t, newRouter(svc), http.MethodPost, "/credentials/validate",
			ValidateCredentialsRequest{APIKeys: []string{"good-key", "bad-key"}})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "good-key", "full keys must not be echoed")
		var resp ValidateCredentialsResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp.Results, 2)
		assert.True(t, resp.Results[0].Valid)
		assert.False(t, resp.Results[1].Valid)
	})

	t.Run("validate requires keys", func(t *testing.T) {
		rr := doJSON(t, newRouter(&fakeCredentialService{}), http.MethodPost, "/credentials/validate",
			ValidateCredentialsRequest{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list", func(t *testing.T) {
		svc := &fakeCredentialService{
			listFn: func(context.Context, uuid.UUID) ([]*domain.Credential, error) {
				return []*domain.Credential{{ID: uuid.New(), Name: "Key 1", Preview: "AIza...wxyz", IsValid: true}}, nil
			},
		}

		rr := doJSON(t, newRouter(svc), http.MethodGet, "/credentials", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp CredentialsResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp.Credentials, 1)
		assert.Equal(t, "AIza...wxyz", resp.Credentials[0].Preview)
	})

	t.Run("list failure hides detail", func(t *testing.T) {
		svc := &fakeCredentialService{
			listFn: func(context.Context, uuid.UUID) ([]*domain.Credential, error) {
				return nil, errors.New("dial tcp 10.0.0.1:5432: refused")
			},
		}
		rr := doJSON(t, newRouter(svc), http.MethodGet, "/credentials", nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "10.0.0.1")
	})
}

func progressSnapshots(sessionID uuid.UUID) []progress.Snapshot {
	return []progress.Snapshot{
		{SessionID: sessionID, Completed: 1, Total: 2, Status: domain.SessionStatusProcessing, Version: 2},
		{SessionID: sessionID, Completed: 2, Total: 2, Status: domain.SessionStatusCompleted, Version: 3},
	}
}

func TestProgressHandler_Events(t *testing.T) {
	userID := uuid.New()

	newRouter := func(gen *fakeGenerationService, streamer Streamer) http.Handler {
		h := NewProgressHandler(gen, streamer, testLogger())
		r := chi.NewRouter()
		r.Use(withUser(userID))
		r.Get("/generations/{id}/events", h.Events)
		return r
	}

	t.Run("streams snapshots as events", func(t *testing.T) {
		session := newSession(userID, domain.SessionStatusProcessing)
		gen := &fakeGenerationService{
			getFn: func(context.Context, uuid.UUID, uuid.UUID) (*domain.GenerationSession, error) {
				return session, nil
			},
		}
		streamer := &fakeStreamer{snapshots: progressSnapshots(session.ID)}

		rr := doJSON(t, newRouter(gen, streamer), http.MethodGet, "/generations/"+session.ID.String()+"/events", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))

		body := rr.Body.String()
		var got []progress.Snapshot
		scanner := bufio.NewScanner(strings.NewReader(body))
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var s progress.Snapshot
				require.NoError(t, json.Unmarshal([]byte(data), &s))
				got = append(got, s)
			}
		}
		require.Len(t, got, 2)
		assert.Equal(t, int64(2), got[0].Version)
		assert.Equal(t, domain.SessionStatusCompleted, got[1].Status)
		assert.Contains(t, body, "event: progress")
	})

	t.Run("foreign session is not found", func(t *testing.T) {
		gen := &fakeGenerationService{
			getFn: func(context.Context, uuid.UUID, uuid.UUID) (*domain.GenerationSession, error) {
				return nil, service.ErrSessionNotFound
			},
		}
		rr := doJSON(t, newRouter(gen, &fakeStreamer{}), http.MethodGet,
			"/generations/"+uuid.NewString()+"/events", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestProgressHandler_Socket(t *testing.T) {
	userID := uuid.New()
	session := newSession(userID, domain.SessionStatusProcessing)
	gen := &fakeGenerationService{
		getFn: func(context.Context, uuid.UUID, uuid.UUID) (*domain.GenerationSession, error) {
			return session, nil
		},
	}
	h := NewProgressHandler(gen, &fakeStreamer{snapshots: progressSnapshots(session.ID)}, testLogger())

	r := chi.NewRouter()
	r.Use(withUser(userID))
	r.Get("/generations/{id}/ws", h.Socket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/generations/" + session.ID.String() + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var first, last progress.Snapshot
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.NoError(t, wsjson.Read(ctx, conn, &last))
	assert.Equal(t, int64(2), first.Version)
	assert.Equal(t, domain.SessionStatusCompleted, last.Status)

	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(fakePinger{}, testLogger())
		rr := doJSON(t, http.HandlerFunc(h.Check), http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	})

	t.Run("database down", func(t *testing.T) {
		h := NewHealthHandler(fakePinger{err: errors.New("connection refused")}, testLogger())
		rr := doJSON(t, http.HandlerFunc(h.Check), http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}
