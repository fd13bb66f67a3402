package generation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestFetchReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed.jpg":
			w.Header().Set("Content-Type", "image/jpeg; charset=binary")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/sniffed":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(pngHeader)
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Run("uses content type header", func(t *testing.T) {
		data, mime, err := FetchReference(context.Background(), srv.Client(), "test", srv.URL+"/typed.jpg")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", mime)
		assert.Equal(t, []byte("jpeg-bytes"), data)
	})

	t.Run("sniffs when header is generic", func(t *testing.T) {
		_, mime, err := FetchReference(context.Background(), srv.Client(), "test", srv.URL+"/sniffed")
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
	})

	t.Run("rejects non image", func(t *testing.T) {
		_, _, err := FetchReference(context.Background(), srv.Client(), "test", srv.URL+"/text")
		require.Error(t, err)
		assert.Equal(t, KindMalformedResponse, KindOf(err))
	})

	t.Run("non 200 status", func(t *testing.T) {
		_, _, err := FetchReference(context.Background(), srv.Client(), "test", srv.URL+"/missing")
		require.Error(t, err)
		assert.Equal(t, KindProviderUnavailable, KindOf(err))
	})
}

func TestImageLocation(t *testing.T) {
	assert.Equal(t, "https://img/x.png", (&Image{URL: "https://img/x.png"}).Location())
	assert.Equal(t, "data:image/jpeg;base64,AQI=", (&Image{Data: []byte{1, 2}, MIMEType: "image/jpeg"}).Location())
	assert.Equal(t, "data:image/png;base64,AQI=", (&Image{Data: []byte{1, 2}}).Location())
}
