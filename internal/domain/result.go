package domain

import (
	"time"

	"github.com/google/uuid"
)

// Common validation errors for GenerationResult
var (
	ErrEmptyResultBatchID   = validationError("result batch ID cannot be empty")
	ErrInvalidVariationSlot = validationError("variation number must be positive")
	ErrEmptyImageURL        = validationError("result image URL cannot be empty")
)

// ResultMetadata records how a variation was produced.
type ResultMetadata struct {
	Prompt       string    `json:"prompt"`
	APIKeyIndex  int       `json:"api_key_index"`
	CredentialID uuid.UUID `json:"credential_id"`
	Model        string    `json:"model,omitempty"`
	Placeholder  bool      `json:"placeholder,omitempty"`
	FailureKind  string    `json:"failure_kind,omitempty"`
}

// GenerationResult is one produced image (or labelled placeholder) for a
// variation slot of a batch. VariationNumber is unique per batch.
type GenerationResult struct {
	ID              uuid.UUID      `json:"id"`
	BatchID         uuid.UUID      `json:"batch_id"`
	VariationNumber int            `json:"variation_number"`
	ImageURL        string         `json:"image_url"`
	IsSelected      bool           `json:"is_selected"`
	Metadata        ResultMetadata `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
}

// NewGenerationResult creates an unselected result for the given slot.
func NewGenerationResult(batchID uuid.UUID, variation int, imageURL string, meta ResultMetadata) (*GenerationResult, error) {
	if batchID == uuid.Nil {
		return nil, ErrEmptyResultBatchID
	}
	if variation < 1 {
		return nil, ErrInvalidVariationSlot
	}
	if imageURL == "" {
		return nil, ErrEmptyImageURL
	}
	return &GenerationResult{
		ID:              uuid.New(),
		BatchID:         batchID,
		VariationNumber: variation,
		ImageURL:        imageURL,
		Metadata:        meta,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// ResultView is a result joined with its batch position, as listed to users.
type ResultView struct {
	GenerationResult
	PromptIndex int    `json:"prompt_index"`
	PromptText  string `json:"prompt_text"`
}

// SessionSummary is a history row: a session plus its result totals.
type SessionSummary struct {
	GenerationSession
	ResultCount   int `json:"result_count"`
	SelectedCount int `json:"selected_count"`
}
