package credential

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultProbeConcurrency bounds concurrent probe calls per request.
const DefaultProbeConcurrency = 4

// Prober makes the minimal call that proves a key works.
type Prober interface {
	Probe(ctx context.Context, apiKey string) error
}

// ValidationResult is the outcome of probing one key. Secret is never
// serialized.
type ValidationResult struct {
	Key     string `json:"key"`
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Secret  string `json:"-"`
}

// Validator probes candidate keys against the provider.
type Validator struct {
	prober      Prober
	concurrency int
	logger      *slog.Logger
}

// NewValidator creates a Validator. concurrency <= 0 uses DefaultProbeConcurrency.
func NewValidator(prober Prober, concurrency int, logger *slog.Logger) *Validator {
	if concurrency <= 0 {
		concurrency = DefaultProbeConcurrency
	}
	return &Validator{
		prober:      prober,
		concurrency: concurrency,
		logger:      logger.With("component", "credential_validator"),
	}
}

// Validate probes every key and returns one result per key in input order.
// A failing probe yields an invalid result, not an error; the returned error
// is non-nil only if ctx ends first.
func (v *Validator) Validate(ctx context.Context, keys []string) ([]ValidationResult, error) {
	log := logger.FromContextOrDefault(ctx, v.logger)
	results := make([]ValidationResult, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)

	for i, raw := range keys {
		key := strings.TrimSpace(raw)
		results[i] = ValidationResult{Key: domain.KeyPreview(key), Secret: key}
		if key == "" {
			results[i].Message = "API key is empty"
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := v.prober.Probe(gctx, key)
			if err == nil {
				results[i].Valid = true
				results[i].Message = "API key is valid"
				return nil
			}
			if errors.Is(err, context.Canceled) && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i].Message = failureMessage(err)
			log.InfoContext(gctx, "credential probe failed",
				"key_preview", results[i].Key,
				"failure_kind", generation.KindOf(err))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func failureMessage(err error) string {
	switch generation.KindOf(err) {
	case generation.KindAuthenticationRejected:
		return "API key was rejected by the provider"
	case generation.KindRateLimited:
		return "API key is rate limited, try again later"
	case generation.KindTimeout:
		return "provider did not respond in time"
	case generation.KindMalformedResponse:
		return "provider rejected the validation request"
	default:
		return "provider is unavailable"
	}
}
