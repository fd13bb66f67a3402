package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/events"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/metrics"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/redact"
	"github.com/phrazzld/batchgen/internal/service"
	"github.com/phrazzld/batchgen/internal/store"
)

// Failure reasons recorded on sessions the executor could not finish.
const (
	reasonNoCredentials = "no valid credentials available"
	reasonInternal      = "internal error during generation"
)

// SessionTracker is the part of service.SessionTracker the executor uses.
type SessionTracker interface {
	Session(ctx context.Context, sessionID uuid.UUID) (*domain.GenerationSession, error)
	Start(ctx context.Context, sessionID uuid.UUID) (*domain.GenerationSession, error)
	Advance(ctx context.Context, sessionID uuid.UUID, d service.Delta) (*domain.GenerationSession, error)
	Finalize(ctx context.Context, sessionID uuid.UUID) (*domain.GenerationSession, error)
	Fail(ctx context.Context, sessionID uuid.UUID, reason string) (*domain.GenerationSession, error)
}

// PoolLoader loads a user's credential pool.
type PoolLoader interface {
	Load(ctx context.Context, userID uuid.UUID) (*credential.Pool, error)
}

// BatchGenerationDeps are the collaborators shared by every generation task.
type BatchGenerationDeps struct {
	Tracker        SessionTracker
	Credentials    PoolLoader
	Batches        store.BatchStore
	Results        store.ResultStore
	Provider       generation.Provider
	PlaceholderURL string
	Metrics        *metrics.Collector
	Logger         *slog.Logger
}

func (d BatchGenerationDeps) validate() error {
	switch {
	case d.Tracker == nil:
		return errors.New("tracker cannot be nil")
	case d.Credentials == nil:
		return errors.New("credential loader cannot be nil")
	case d.Batches == nil:
		return errors.New("batch store cannot be nil")
	case d.Results == nil:
		return errors.New("result store cannot be nil")
	case d.Provider == nil:
		return errors.New("provider cannot be nil")
	case d.PlaceholderURL == "":
		return errors.New("placeholder URL cannot be empty")
	case d.Logger == nil:
		return errors.New("logger cannot be nil")
	}
	return nil
}

// BatchGenerationTask drives one session: prompts run in order, each
// rendered VariationsCount times with keys taken round-robin from the
// user's pool. A failed variation is stored as a labelled placeholder and
// never aborts the session. Execution is resumable: prompts already
// counted on the session are skipped, and within the current prompt the
// batch and any stored variations are reused.
type BatchGenerationTask struct {
	id      uuid.UUID
	payload events.BatchGenerationPayload
	raw     []byte
	status  TaskStatus
	deps    BatchGenerationDeps

	// calls counts provider attempts and picks the next key. A resumed run
	// seeds it with the results already stored for the session.
	calls int
}

var (
	_ Task  = (*BatchGenerationTask)(nil)
	_ Keyed = (*BatchGenerationTask)(nil)
)

// ID returns the task ID.
func (t *BatchGenerationTask) ID() uuid.UUID { return t.id }

// Type returns TaskTypeBatchGeneration.
func (t *BatchGenerationTask) Type() string { return TaskTypeBatchGeneration }

// Key returns the session ID, the key used to cancel the task.
func (t *BatchGenerationTask) Key() string { return t.payload.SessionID.String() }

// Status returns the last known status of the task.
func (t *BatchGenerationTask) Status() TaskStatus { return t.status }

// SessionID returns the session the task drives.
func (t *BatchGenerationTask) SessionID() uuid.UUID { return t.payload.SessionID }

// Payload returns the JSON payload persisted with the task.
func (t *BatchGenerationTask) Payload() []byte { return t.raw }

// Execute runs the session to a terminal state. It returns nil when the
// session ends normally or was already terminal. When ctx is cancelled with
// ErrTaskCancelled the session is failed as cancelled by the user and the
// cause returned. Any other cancellation (shutdown) leaves the session
// untouched so a later run resumes it.
func (t *BatchGenerationTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	err := t.run(ctx)
	if err != nil {
		t.status = TaskStatusFailed
		return err
	}
	t.status = TaskStatusCompleted
	return nil
}

func (t *BatchGenerationTask) run(ctx context.Context) error {
	sessionID := t.payload.SessionID
	log := logger.FromContextOrDefault(ctx, t.deps.Logger).With("session_id", sessionID)
	ctx = logger.WithLogger(ctx, log)

	// Bookkeeping writes complete even after cancellation.
	storeCtx := context.WithoutCancel(ctx)

	session, err := t.deps.Tracker.Session(storeCtx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.Status.IsTerminal() {
		log.InfoContext(ctx, "session already finished, nothing to do", "status", session.Status)
		return nil
	}
	if err := t.interrupted(ctx); err != nil {
		return t.stop(ctx, err)
	}

	if _, err := t.deps.Tracker.Start(storeCtx, sessionID); err != nil {
		if errors.Is(err, store.ErrSessionTerminal) {
			log.InfoContext(ctx, "session finished elsewhere before start")
			return nil
		}
		t.fail(ctx, reasonInternal)
		return fmt.Errorf("failed to start session %s: %w", sessionID, err)
	}

	pool, err := t.deps.Credentials.Load(ctx, t.payload.UserID)
	if err != nil {
		if interrupt := t.interrupted(ctx); interrupt != nil {
			return t.stop(ctx, interrupt)
		}
		reason := reasonInternal
		if errors.Is(err, credential.ErrNoCredentialsAvailable) {
			reason = reasonNoCredentials
		}
		t.fail(ctx, reason)
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	pool.OnUsage(func(_ uuid.UUID, err error) {
		t.deps.Metrics.CredentialUsage(err)
	})

	t.calls, err = t.deps.Results.CountBySession(storeCtx, sessionID)
	if err != nil {
		t.fail(ctx, reasonInternal)
		return fmt.Errorf("failed to count stored results: %w", err)
	}

	prompts := t.payload.Request.Prompts
	start := session.Processed()
	if start > 0 || t.calls > 0 {
		log.InfoContext(ctx, "resuming session",
			"processed", start,
			"stored_results", t.calls,
			"total", len(prompts))
	}

	for idx := start; idx < len(prompts); idx++ {
		if err := t.interrupted(ctx); err != nil {
			return t.stop(ctx, err)
		}

		ok, err := t.runPrompt(ctx, pool, idx)
		if err != nil {
			if t.interrupted(ctx) == nil {
				t.fail(ctx, reasonInternal)
			}
			return t.stop(ctx, err)
		}

		delta := service.Delta{Completed: 1}
		outcome := "completed"
		if !ok {
			delta = service.Delta{Failed: 1}
			outcome = "failed"
		}
		t.deps.Metrics.PromptProcessed(outcome)

		if _, err := t.deps.Tracker.Advance(storeCtx, sessionID, delta); err != nil {
			if errors.Is(err, store.ErrSessionTerminal) {
				log.InfoContext(ctx, "session finished elsewhere, stopping", "prompt_index", idx)
				return nil
			}
			t.fail(ctx, reasonInternal)
			return fmt.Errorf("failed to advance session: %w", err)
		}
	}

	if _, err := t.deps.Tracker.Finalize(storeCtx, sessionID); err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}
	return nil
}

// runPrompt renders every missing variation of the prompt at idx. It
// reports whether the prompt completed; a non-nil error means execution
// was interrupted.
func (t *BatchGenerationTask) runPrompt(ctx context.Context, pool *credential.Pool, idx int) (bool, error) {
	log := logger.FromContextOrDefault(ctx, t.deps.Logger).With("prompt_index", idx)
	storeCtx := context.WithoutCancel(ctx)
	req := t.payload.Request
	prompt := req.Prompts[idx]
	n := req.VariationsCount

	batch, err := t.batchFor(storeCtx, idx)
	if err != nil {
		log.ErrorContext(ctx, "failed to create prompt batch", "error", err)
		return false, nil
	}

	stored, err := t.deps.Results.VariationNumbers(storeCtx, batch.ID)
	if err != nil {
		log.ErrorContext(ctx, "failed to read stored variations", "batch_id", batch.ID, "error", err)
		return false, nil
	}
	done := make(map[int]bool, len(stored))
	for _, v := range stored {
		done[v] = true
	}

	persisted := true
	for v := 1; v <= n; v++ {
		if done[v] {
			continue
		}
		if err := t.interrupted(ctx); err != nil {
			return false, err
		}

		key, err := pool.Select(t.calls)
		if err != nil {
			return false, err
		}
		t.calls++

		img, meta, err := t.generate(ctx, pool, key, prompt, req.ReferenceImageURL)
		if err != nil {
			return false, err
		}

		result, err := domain.NewGenerationResult(batch.ID, v, img.Location(), meta)
		if err == nil {
			err = t.deps.Results.Create(storeCtx, result)
		}
		if err != nil && !errors.Is(err, store.ErrDuplicateVariation) {
			log.ErrorContext(ctx, "failed to store variation",
				"batch_id", batch.ID,
				"variation", v,
				"error", err)
			persisted = false
		}
	}

	if !persisted {
		return false, nil
	}
	if err := t.deps.Batches.MarkCompleted(storeCtx, batch.ID); err != nil {
		log.ErrorContext(ctx, "failed to mark batch completed", "batch_id", batch.ID, "error", err)
		return false, nil
	}
	return true, nil
}

// generate makes one provider call with key and records its usage. A
// provider failure yields the placeholder image; the returned error is
// non-nil only when ctx was cancelled during the call.
func (t *BatchGenerationTask) generate(
	ctx context.Context,
	pool *credential.Pool,
	key credential.Key,
	prompt, referenceURL string,
) (*generation.Image, domain.ResultMetadata, error) {
	log := logger.FromContextOrDefault(ctx, t.deps.Logger)
	provider := t.deps.Provider.Name()

	meta := domain.ResultMetadata{
		Prompt:       prompt,
		APIKeyIndex:  key.Index,
		CredentialID: key.CredentialID,
	}

	started := time.Now()
	img, err := t.deps.Provider.Generate(ctx, generation.Request{
		Prompt:            prompt,
		ReferenceImageURL: referenceURL,
	}, key.Secret)
	elapsed := time.Since(started)

	// Usage counts every attempted call, attributed to the key that made it.
	pool.RecordUsage(context.WithoutCancel(ctx), key.CredentialID)

	if err != nil {
		if interrupt := t.interrupted(ctx); interrupt != nil {
			return nil, meta, interrupt
		}
		kind := generation.KindOf(err)
		log.WarnContext(ctx, "variation failed, storing placeholder",
			"key_preview", key.Preview,
			"failure_kind", kind,
			"error", redact.Error(err))
		t.deps.Metrics.ProviderCall(provider, string(kind), elapsed)

		meta.Placeholder = true
		meta.FailureKind = string(kind)
		meta.Model = "placeholder"
		return generation.Placeholder(t.deps.PlaceholderURL), meta, nil
	}

	t.deps.Metrics.ProviderCall(provider, "", elapsed)
	meta.Model = img.Model
	return img, meta, nil
}

// batchFor returns the batch of the prompt at idx, creating it on first use.
func (t *BatchGenerationTask) batchFor(ctx context.Context, idx int) (*domain.PromptBatch, error) {
	sessionID := t.payload.SessionID
	batch, err := t.deps.Batches.GetBySessionAndIndex(ctx, sessionID, idx)
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, store.ErrBatchNotFound) {
		return nil, err
	}

	req := t.payload.Request
	batch, err = domain.NewPromptBatch(sessionID, idx, req.Prompts[idx], req.ReferenceImageURL, req.VariationsCount)
	if err != nil {
		return nil, err
	}
	if err := t.deps.Batches.Create(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// interrupted returns the cancellation cause once ctx is done.
func (t *BatchGenerationTask) interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return context.Cause(ctx)
}

// stop ends execution after an interruption. User cancellation fails the
// session; anything else leaves it for a later run.
func (t *BatchGenerationTask) stop(ctx context.Context, cause error) error {
	if errors.Is(cause, ErrTaskCancelled) {
		t.fail(ctx, service.CancelledReason)
	}
	return cause
}

func (t *BatchGenerationTask) fail(ctx context.Context, reason string) {
	if _, err := t.deps.Tracker.Fail(context.WithoutCancel(ctx), t.payload.SessionID, reason); err != nil {
		logger.FromContextOrDefault(ctx, t.deps.Logger).ErrorContext(ctx, "failed to mark session failed",
			"reason", reason,
			"error", err)
	}
}
