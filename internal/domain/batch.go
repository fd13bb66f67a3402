package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the processing state of one prompt.
type BatchStatus string

// Possible batch status values
const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

// Common validation errors for PromptBatch and GenerationRequest
var (
	ErrEmptyBatchSessionID = validationError("batch session ID cannot be empty")
	ErrEmptyPrompt         = validationError("prompt text cannot be empty")
	ErrNoPrompts           = validationError("at least one prompt is required")
	ErrTooManyPrompts      = validationError("too many prompts")
	ErrInvalidVariations   = validationError("variations count out of range")
	ErrInvalidReferenceURL = validationError("reference image URL must be an absolute http(s) URL")
	ErrInvalidPromptIndex  = validationError("prompt index cannot be negative")
)

// PromptBatch is one prompt of a session together with its requested
// variation count.
type PromptBatch struct {
	ID                uuid.UUID   `json:"id"`
	SessionID         uuid.UUID   `json:"session_id"`
	PromptIndex       int         `json:"prompt_index"`
	PromptText        string      `json:"prompt_text"`
	ReferenceImageURL string      `json:"reference_image_url,omitempty"`
	VariationsCount   int         `json:"variations_count"`
	Status            BatchStatus `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NewPromptBatch creates a processing batch for the prompt at index.
func NewPromptBatch(sessionID uuid.UUID, index int, prompt, referenceURL string, variations int) (*PromptBatch, error) {
	if sessionID == uuid.Nil {
		return nil, ErrEmptyBatchSessionID
	}
	if index < 0 {
		return nil, ErrInvalidPromptIndex
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if variations < 1 {
		return nil, ErrInvalidVariations
	}
	now := time.Now().UTC()
	return &PromptBatch{
		ID:                uuid.New(),
		SessionID:         sessionID,
		PromptIndex:       index,
		PromptText:        prompt,
		ReferenceImageURL: referenceURL,
		VariationsCount:   variations,
		Status:            BatchStatusProcessing,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// GenerationRequest is a user's submission: every prompt is rendered
// VariationsCount times, optionally guided by a shared reference image.
type GenerationRequest struct {
	Prompts           []string `json:"prompts"`
	VariationsCount   int      `json:"variationsCount"`
	ReferenceImageURL string   `json:"referenceImageUrl,omitempty"`
}

// Validate checks the request against the configured limits.
func (r GenerationRequest) Validate(maxVariations, maxPrompts int) error {
	if len(r.Prompts) == 0 {
		return ErrNoPrompts
	}
	if maxPrompts > 0 && len(r.Prompts) > maxPrompts {
		return ErrTooManyPrompts
	}
	for _, p := range r.Prompts {
		if strings.TrimSpace(p) == "" {
			return ErrEmptyPrompt
		}
	}
	if r.VariationsCount < 1 || r.VariationsCount > maxVariations {
		return ErrInvalidVariations
	}
	if r.ReferenceImageURL != "" {
		u, err := url.Parse(r.ReferenceImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidReferenceURL
		}
	}
	return nil
}
