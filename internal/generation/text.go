package generation

import "context"

// TextRequest is one text completion: a system instruction and the user
// prompt. When JSON is set the provider is asked for a JSON object.
type TextRequest struct {
	System string
	Prompt string
	JSON   bool
}

// TextGenerator produces text with a caller supplied API key.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest, apiKey string) (string, error)
	Name() string
}
