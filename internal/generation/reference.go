package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxReferenceImageBytes bounds the size of a downloaded reference image.
const MaxReferenceImageBytes = 20 << 20

// FetchReference downloads a reference image and returns its bytes and MIME
// type. Failures are returned as a *ProviderError attributed to provider.
func FetchReference(ctx context.Context, client *http.Client, provider, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", NewProviderError(provider, KindMalformedResponse, "invalid reference image url", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		kind := KindProviderUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, "", NewProviderError(provider, kind, "reference image download failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", NewProviderError(provider, KindProviderUnavailable,
			fmt.Sprintf("reference image download returned status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxReferenceImageBytes+1))
	if err != nil {
		return nil, "", NewProviderError(provider, KindProviderUnavailable, "reference image read failed", err)
	}
	if len(data) > MaxReferenceImageBytes {
		return nil, "", NewProviderError(provider, KindMalformedResponse, "reference image too large", nil)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", NewProviderError(provider, KindMalformedResponse, "reference is not an image", nil)
	}

	return data, mime, nil
}
