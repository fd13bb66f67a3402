package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/platform/logger"
)

// ProviderName identifies this provider in errors, logs and metrics.
const ProviderName = "openai"

// ImageClient generates images with the OpenAI images API.
type ImageClient struct {
	logger     *slog.Logger
	config     config.ProviderConfig
	httpClient *http.Client
}

var (
	_ generation.Provider      = (*ImageClient)(nil)
	_ generation.TextGenerator = (*ImageClient)(nil)
)

// NewImageClient creates an OpenAI image client.
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
	return &ImageClient{
		logger:     logger.With("component", "openai_image_client"),
		config:     cfg,
		httpClient: &http.Client{},
	}, nil
}

// Name implements generation.Provider.
func (c *ImageClient) Name() string {
	return ProviderName
}

func (c *ImageClient) client(apiKey string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	}
	if c.config.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(c.config.Endpoint))
	}
	return openai.NewClient(opts...)
}

// Generate implements generation.Provider. With a reference image the edit
// endpoint is used, otherwise the generation endpoint.
func (c *ImageClient) Generate(ctx context.Context, req generation.Request, apiKey string) (*generation.Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "empty prompt", generation.ErrEmptyPrompt)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	log := logger.FromContextOrDefault(ctx, c.logger)
	client := c.client(apiKey)

	var (
		resp *openai.ImagesResponse
		err  error
	)
	if req.ReferenceImageURL != "" {
		data, mime, fetchErr := generation.FetchReference(ctx, c.httpClient, ProviderName, req.ReferenceImageURL)
		if fetchErr != nil {
			return nil, fetchErr
		}
		resp, err = client.Images.Edit(ctx, openai.ImageEditParams{
			Image: openai.ImageEditParamsImageUnion{
				OfFile: openai.File(bytes.NewReader(data), "reference"+extensionFor(mime), mime),
			},
			Prompt:         req.Prompt,
			Model:          openai.ImageModel(c.config.Model),
			N:              openai.Int(1),
			ResponseFormat: openai.ImageEditParamsResponseFormatB64JSON,
		})
	} else {
		resp, err = client.Images.Generate(ctx, openai.ImageGenerateParams{
			Prompt:         req.Prompt,
			Model:          openai.ImageModel(c.config.Model),
			N:              openai.Int(1),
			ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		})
	}
	if err != nil {
		log.DebugContext(ctx, "openai image request failed", "model", c.config.Model)
		return nil, classify(ctx, err)
	}

	if resp == nil || len(resp.Data) == 0 {
		return nil, generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "no image in response", nil)
	}

	first := resp.Data[0]
	img := &generation.Image{Model: c.config.Model}
	switch {
	case first.B64JSON != "":
		data, decodeErr := base64.StdEncoding.DecodeString(first.B64JSON)
		if decodeErr != nil {
			return nil, generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "invalid base64 image", decodeErr)
		}
		img.Data = data
		img.MIMEType = http.DetectContentType(data)
	case first.URL != "":
		img.URL = first.URL
	default:
		return nil, generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "empty image entry", nil)
	}
	return img, nil
}

// Probe implements generation.Provider by listing models.
func (c *ImageClient) Probe(ctx context.Context, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	client := c.client(apiKey)
	if _, err := client.Models.List(ctx); err != nil {
		return classify(ctx, err)
	}
	return nil
}

// GenerateText implements generation.TextGenerator with chat completions.
func (c *ImageClient) GenerateText(ctx context.Context, req generation.TextRequest, apiKey string) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "empty prompt", generation.ErrEmptyPrompt)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    c.config.TextModel,
		Messages: messages,
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}

	client := c.client(apiKey)
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.FromContextOrDefault(ctx, c.logger).DebugContext(ctx, "openai chat request failed", "model", c.config.TextModel)
		return "", classify(ctx, err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", generation.NewProviderError(ProviderName, generation.KindMalformedResponse, "no text in response", nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return generation.NewProviderError(ProviderName, generation.KindForStatus(apiErr.StatusCode), apiErr.Message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return generation.NewProviderError(ProviderName, generation.KindTimeout, "request timed out", err)
	}
	return generation.NewProviderError(ProviderName, generation.KindProviderUnavailable, "request failed", err)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
