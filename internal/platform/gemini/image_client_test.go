package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
	block    bool
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = cfg
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func testConfig() config.ProviderConfig {
	return config.ProviderConfig{
		Name:       "gemini",
		Timeout:    time.Second,
		Model:      "gemini-2.5-flash-image",
		ProbeModel: "gemini-2.5-flash",
		TextModel:  "gemini-2.5-pro",
	}
}

func newTestClient(t *testing.T, fake *fakeModels) *ImageClient {
	t.Helper()
	c, err := NewImageClient(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	c.newClient = func(ctx context.Context, apiKey string) (contentGenerator, error) {
		return fake, nil
	}
	return c
}

func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here you go"},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}},
			}},
		}},
	}
}

func TestNewImageClientValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewImageClient(testConfig(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Model = ""
	_, err = NewImageClient(cfg, logger)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	cfg = testConfig()
	cfg.Timeout = 0
	_, err = NewImageClient(cfg, logger)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateReturnsInlineImage(t *testing.T) {
	fake := &fakeModels{resp: imageResponse([]byte{1, 2, 3})}
	c := newTestClient(t, fake)

	img, err := c.Generate(context.Background(), generation.Request{Prompt: "a red fox"}, "AIza-test")

	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, "gemini-2.5-flash-image", img.Model)
	assert.Equal(t, "gemini-2.5-flash-image", fake.model)
	require.Len(t, fake.contents, 1)
	assert.Equal(t, "a red fox", fake.contents[0].Parts[0].Text)
}

func TestGenerateSendsReferenceImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("ref"))
	}))
	defer srv.Close()

	fake := &fakeModels{resp: imageResponse([]byte{9})}
	c := newTestClient(t, fake)

	_, err := c.Generate(context.Background(),
		generation.Request{Prompt: "restyle", ReferenceImageURL: srv.URL + "/ref.jpg"}, "key")

	require.NoError(t, err)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("ref"), parts[1].InlineData.Data)
}

func TestGenerateClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeModels
		want generation.ErrorKind
	}{
		{"auth rejected", &fakeModels{err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}}, generation.KindAuthenticationRejected},
		{"rate limited", &fakeModels{err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}}, generation.KindRateLimited},
		{"server error", &fakeModels{err: genai.APIError{Code: 503, Status: "UNAVAILABLE"}}, generation.KindProviderUnavailable},
		{"network error", &fakeModels{err: errors.New("connection refused")}, generation.KindProviderUnavailable},
		{"no image", &fakeModels{resp: &genai.GenerateContentResponse{}}, generation.KindMalformedResponse},
		{"timeout", &fakeModels{block: true}, generation.KindTimeout},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.fake)
			c.config.Timeout = 20 * time.Millisecond

			img, err := c.Generate(context.Background(), generation.Request{Prompt: "p"}, "key")

			assert.Nil(t, img)
			var pe *generation.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.want, pe.Kind)
			assert.Equal(t, ProviderName, pe.Provider)
		})
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	c := newTestClient(t, &fakeModels{})
	_, err := c.Generate(context.Background(), generation.Request{Prompt: "  "}, "key")
	assert.ErrorIs(t, err, generation.ErrEmptyPrompt)
}

func TestProbe(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{}}
	c := newTestClient(t, fake)

	require.NoError(t, c.Probe(context.Background(), "key"))
	assert.Equal(t, "gemini-2.5-flash", fake.model)

	fake.err = genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid"}
	err := c.Probe(context.Background(), "bad")
	assert.Equal(t, generation.KindAuthenticationRejected, generation.KindOf(err))
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGenerateText(t *testing.T) {
	t.Run("uses text model with system instruction", func(t *testing.T) {
		fake := &fakeModels{resp: textResponse("  Verse one: a neon city at dusk.\n")}
		c := newTestClient(t, fake)

		text, err := c.GenerateText(context.Background(), generation.TextRequest{
			System: "You write music video scripts.",
			Prompt: "Lyrics: city lights",
		}, "key")

		require.NoError(t, err)
		assert.Equal(t, "Verse one: a neon city at dusk.", text)
		assert.Equal(t, "gemini-2.5-pro", fake.model)
		require.NotNil(t, fake.config)
		require.NotNil(t, fake.config.SystemInstruction)
		assert.Equal(t, "You write music video scripts.", fake.config.SystemInstruction.Parts[0].Text)
		assert.Empty(t, fake.config.ResponseMIMEType)
	})

	t.Run("requests JSON when asked", func(t *testing.T) {
		fake := &fakeModels{resp: textResponse(`{"characters":[]}`)}
		c := newTestClient(t, fake)

		_, err := c.GenerateText(context.Background(), generation.TextRequest{Prompt: "script", JSON: true}, "key")

		require.NoError(t, err)
		assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
		assert.Nil(t, fake.config.SystemInstruction)
	})

	t.Run("empty response is malformed", func(t *testing.T) {
		c := newTestClient(t, &fakeModels{resp: &genai.GenerateContentResponse{}})

		_, err := c.GenerateText(context.Background(), generation.TextRequest{Prompt: "script"}, "key")

		assert.Equal(t, generation.KindMalformedResponse, generation.KindOf(err))
	})

	t.Run("rejected key is classified", func(t *testing.T) {
		c := newTestClient(t, &fakeModels{err: genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"}})

		_, err := c.GenerateText(context.Background(), generation.TextRequest{Prompt: "script"}, "key")

		assert.Equal(t, generation.KindAuthenticationRejected, generation.KindOf(err))
	})

	t.Run("empty prompt", func(t *testing.T) {
		fake := &fakeModels{}
		c := newTestClient(t, fake)

		_, err := c.GenerateText(context.Background(), generation.TextRequest{Prompt: " "}, "key")

		assert.True(t, errors.Is(err, generation.ErrEmptyPrompt))
		assert.Empty(t, fake.model)
	})
}
