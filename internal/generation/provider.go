package generation

import (
	"context"
	"encoding/base64"
)

// Request describes one image to generate.
type Request struct {
	Prompt string

	// ReferenceImageURL is optional. When set the provider downloads it and
	// sends it alongside the prompt.
	ReferenceImageURL string
}

// Image is a single generated image. Exactly one of Data or URL is set.
type Image struct {
	Data     []byte
	MIMEType string
	URL      string
	Model    string
}

// Provider generates images with a caller-supplied API key. Implementations
// make exactly one upstream call per Generate and never retry. Every failure
// is returned as a *ProviderError.
type Provider interface {
	// Generate produces one image for req using apiKey.
	Generate(ctx context.Context, req Request, apiKey string) (*Image, error)

	// Probe makes the cheapest call that proves apiKey is accepted.
	Probe(ctx context.Context, apiKey string) error

	// Name identifies the provider in logs and metrics.
	Name() string
}

// Location returns where the image can be loaded from: its URL, or a data
// URI carrying the bytes inline.
func (i *Image) Location() string {
	if i.URL != "" {
		return i.URL
	}
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}
