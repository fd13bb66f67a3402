package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/platform/logger"
)

// DefaultCharacterVariations is used when a character render request
// does not name a variation count.
const DefaultCharacterVariations = 3

const scriptInstruction = `You are a music video director. Write a scene by scene script for the song lyrics you are given.
For every scene describe the setting, the action and the camera in plain prose. Answer with the script only.`

const characterInstruction = `You read music video scripts and list their recurring characters.
Answer with a JSON object of the form {"characters":[{"name":"","description":"","role":""}]}.
Every description must be a self-contained visual description that works as an image prompt on its own.`

// PoolLoader loads a user's credential pool.
type PoolLoader interface {
	Load(ctx context.Context, userID uuid.UUID) (*credential.Pool, error)
}

// GenerationStarter submits an image generation session.
type GenerationStarter interface {
	StartGeneration(ctx context.Context, userID uuid.UUID, req domain.GenerationRequest) (*domain.GenerationSession, error)
}

// CharacterResult holds the extracted characters and, when images were
// requested, the session rendering them.
type CharacterResult struct {
	Characters []domain.Character
	Session    *domain.GenerationSession
}

// StoryboardService writes video scripts from lyrics and extracts the
// characters of a script, using the caller's own credentials.
type StoryboardService struct {
	pools   PoolLoader
	text    generation.TextGenerator
	starter GenerationStarter
	limits  config.GenerationConfig
	logger  *slog.Logger

	next atomic.Uint64
}

// NewStoryboardService creates a StoryboardService.
func NewStoryboardService(
	pools PoolLoader,
	text generation.TextGenerator,
	starter GenerationStarter,
	limits config.GenerationConfig,
	logger *slog.Logger,
) (*StoryboardService, error) {
	switch {
	case pools == nil:
		return nil, &ServiceError{Service: "storyboard", Op: "create_service", Message: "pool loader cannot be nil"}
	case text == nil:
		return nil, &ServiceError{Service: "storyboard", Op: "create_service", Message: "text generator cannot be nil"}
	case starter == nil:
		return nil, &ServiceError{Service: "storyboard", Op: "create_service", Message: "generation starter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StoryboardService{
		pools:   pools,
		text:    text,
		starter: starter,
		limits:  limits,
		logger:  logger.With("component", "storyboard_service"),
	}, nil
}

// WriteScript returns a video script for req.Lyrics, or a revision of
// req.PreviousScript when feedback is given.
func (s *StoryboardService) WriteScript(ctx context.Context, userID uuid.UUID, req domain.ScriptRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	var prompt strings.Builder
	prompt.WriteString("Lyrics:\n")
	prompt.WriteString(req.Lyrics)
	if strings.TrimSpace(req.Feedback) != "" {
		prompt.WriteString("\n\nPrevious script:\n")
		prompt.WriteString(req.PreviousScript)
		prompt.WriteString("\n\nRevise the previous script according to this feedback:\n")
		prompt.WriteString(req.Feedback)
	}

	script, err := s.complete(ctx, userID, generation.TextRequest{
		System: scriptInstruction,
		Prompt: prompt.String(),
	})
	if err != nil {
		return "", err
	}

	logger.FromContextOrDefault(ctx, s.logger).InfoContext(ctx, "video script written",
		"user_id", userID,
		"revision", req.Feedback != "",
		"length", len(script))
	return script, nil
}

// ExtractCharacters lists the characters of req.Script. With RenderImages
// every character description becomes one prompt of a new generation
// session.
func (s *StoryboardService) ExtractCharacters(
	ctx context.Context,
	userID uuid.UUID,
	req domain.CharacterRequest,
) (*CharacterResult, error) {
	if err := req.Validate(s.limits.MaxVariationsPerPrompt); err != nil {
		return nil, err
	}

	var prompt strings.Builder
	prompt.WriteString("Script:\n")
	prompt.WriteString(req.Script)
	if strings.TrimSpace(req.Feedback) != "" {
		previous, err := json.Marshal(map[string][]domain.Character{"characters": req.Previous})
		if err != nil {
			return nil, NewServiceError("storyboard", "extract_characters", "failed to encode previous characters", err)
		}
		prompt.WriteString("\n\nPrevious characters:\n")
		prompt.Write(previous)
		prompt.WriteString("\n\nRevise the previous characters according to this feedback:\n")
		prompt.WriteString(req.Feedback)
	}

	text, err := s.complete(ctx, userID, generation.TextRequest{
		System: characterInstruction,
		Prompt: prompt.String(),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	characters, err := parseCharacters(text)
	if err != nil {
		return nil, generation.NewProviderError(s.text.Name(), generation.KindMalformedResponse, "no characters in response", err)
	}
	result := &CharacterResult{Characters: characters}

	log := logger.FromContextOrDefault(ctx, s.logger)
	if !req.RenderImages {
		log.InfoContext(ctx, "characters extracted", "user_id", userID, "characters", len(characters))
		return result, nil
	}

	variations := req.VariationsCount
	if variations == 0 {
		variations = min(DefaultCharacterVariations, s.limits.MaxVariationsPerPrompt)
	}
	prompts := make([]string, len(characters))
	for i, c := range characters {
		prompts[i] = c.Description
	}
	result.Session, err = s.starter.StartGeneration(ctx, userID, domain.GenerationRequest{
		Prompts:         prompts,
		VariationsCount: variations,
	})
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "characters extracted and submitted for rendering",
		"user_id", userID,
		"characters", len(characters),
		"session_id", result.Session.ID)
	return result, nil
}

// complete runs req with the caller's keys. Keys are taken round-robin and
// the next key is tried only when one is rejected or rate limited.
func (s *StoryboardService) complete(ctx context.Context, userID uuid.UUID, req generation.TextRequest) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	pool, err := s.pools.Load(ctx, userID)
	if errors.Is(err, credential.ErrNoCredentialsAvailable) {
		return "", err
	}
	if err != nil {
		return "", NewServiceError("storyboard", "load_credentials", "failed to load credentials", err)
	}

	start := int(s.next.Add(1) - 1)
	var lastErr error
	for i := 0; i < pool.Len(); i++ {
		key, err := pool.Select(start + i)
		if err != nil {
			return "", err
		}
		text, err := s.text.GenerateText(ctx, req, key.Secret)
		pool.RecordUsage(context.WithoutCancel(ctx), key.CredentialID)
		if err == nil {
			return text, nil
		}

		kind := generation.KindOf(err)
		log.WarnContext(ctx, "text generation failed",
			"credential_id", key.CredentialID,
			"kind", kind,
			"error", err)
		if kind != generation.KindAuthenticationRejected && kind != generation.KindRateLimited {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// parseCharacters reads the JSON object between the first '{' and the
// last '}' of text. Entries without a description are dropped.
func parseCharacters(text string) ([]domain.Character, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object found")
	}

	var payload struct {
		Characters []domain.Character `json:"characters"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, err
	}

	characters := make([]domain.Character, 0, len(payload.Characters))
	for _, c := range payload.Characters {
		c.Name = strings.TrimSpace(c.Name)
		c.Description = strings.TrimSpace(c.Description)
		c.Role = strings.TrimSpace(c.Role)
		if c.Description == "" {
			continue
		}
		characters = append(characters, c)
	}
	if len(characters) == 0 {
		return nil, errors.New("empty character list")
	}
	return characters, nil
}
