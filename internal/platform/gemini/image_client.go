package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"google.golang.org/genai"
)

// ProviderName identifies this provider in errors, logs and metrics.
const ProviderName = "gemini"

// probePrompt is the minimal request used to validate a key.
const probePrompt = "Hello"

// contentGenerator is the subset of genai.Models used by the client.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// clientFactory builds a contentGenerator bound to one API key.
type clientFactory func(ctx context.Context, apiKey string) (contentGenerator, error)

// ImageClient generates images with Gemini.
type ImageClient struct {
	logger     *slog.Logger
	config     config.ProviderConfig
	httpClient *http.Client
	newClient  clientFactory
}

var (
	_ generation.Provider      = (*ImageClient)(nil)
	_ generation.TextGenerator = (*ImageClient)(nil)
)

// NewImageClient creates a Gemini image client.
func NewImageClient(cfg config.ProviderConfig, logger *slog.Logger) (*ImageClient, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", generation.ErrInvalidConfig)
	}

	httpClient := &http.Client{}
	c := &ImageClient{
		logger:     logger.With("component", "gemini_image_client"),
		config:     cfg,
		httpClient: httpClient,
	}
	c.newClient = func(ctx context.Context, apiKey string) (contentGenerator, error) {
		clientConfig := &genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		}
		if cfg.Endpoint != "" {
			clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
		}
		client, err := genai.NewClient(ctx, clientConfig)
		if err != nil {
			return nil, err
		}
		return client.Models, nil
	}
	return c, nil
}

// Name implements generation.Provider.
func (c *ImageClient) Name() string {
	return ProviderName
}

// Generate implements generation.Provider.
func (c *ImageClient) Generate(ctx context.Context, req generation.Request, apiKey string) (*generation.Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "empty prompt", generation.ErrEmptyPrompt)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	log := logger.FromContextOrDefault(ctx, c.logger)

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.ReferenceImageURL != "" {
		data, mime, err := generation.FetchReference(ctx, c.httpClient, ProviderName, req.ReferenceImageURL)
		if err != nil {
			return nil, err
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}})
	}

	models, err := c.newClient(ctx, apiKey)
	if err != nil {
		return nil, generation.NewProviderError(ProviderName, generation.KindProviderUnavailable, "client setup failed", err)
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := models.GenerateContent(ctx, c.config.Model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		log.DebugContext(ctx, "gemini generate failed", "model", c.config.Model)
		return nil, classify(ctx, err)
	}

	img := firstImage(resp)
	if img == nil {
		return nil, generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "no image in response", nil)
	}
	img.Model = c.config.Model

	log.DebugContext(ctx, "gemini image generated",
		"model", c.config.Model,
		"mime_type", img.MIMEType,
		"bytes", len(img.Data))
	return img, nil
}

// Probe implements generation.Provider.
func (c *ImageClient) Probe(ctx context.Context, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	models, err := c.newClient(ctx, apiKey)
	if err != nil {
		return generation.NewProviderError(ProviderName, generation.KindProviderUnavailable, "client setup failed", err)
	}

	if _, err := models.GenerateContent(ctx, c.config.ProbeModel, genai.Text(probePrompt), nil); err != nil {
		return classify(ctx, err)
	}
	return nil
}

// GenerateText implements generation.TextGenerator with the text model.
func (c *ImageClient) GenerateText(ctx context.Context, req generation.TextRequest, apiKey string) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "empty prompt", generation.ErrEmptyPrompt)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	models, err := c.newClient(ctx, apiKey)
	if err != nil {
		return "", generation.NewProviderError(ProviderName, generation.KindProviderUnavailable, "client setup failed", err)
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := models.GenerateContent(ctx, c.config.TextModel, genai.Text(req.Prompt), cfg)
	if err != nil {
		logger.FromContextOrDefault(ctx, c.logger).DebugContext(ctx, "gemini text request failed", "model", c.config.TextModel)
		return "", classify(ctx, err)
	}

	var text string
	if resp != nil {
		text = strings.TrimSpace(resp.Text())
	}
	if text == "" {
		return "", generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "no text in response", nil)
	}
	return text, nil
}

// firstImage returns the first inline image part of the response.
func firstImage(resp *genai.GenerateContentResponse) *generation.Image {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &generation.Image{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				}
			}
		}
	}
	return nil
}

// classify converts a genai error into a *generation.ProviderError.
func classify(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		kind := generation.KindForStatus(apiErr.Code)
		// Gemini reports a bad key as 400 INVALID_ARGUMENT.
		if apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "API key") {
			kind = generation.KindAuthenticationRejected
		}
		return generation.NewProviderError(ProviderName, kind, apiErr.Status, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return generation.NewProviderError(ProviderName, generation.KindTimeout, "request timed out", err)
	}
	return generation.NewProviderError(ProviderName, generation.KindProviderUnavailable, "request failed", err)
}
