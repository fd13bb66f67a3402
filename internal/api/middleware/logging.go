package middleware

import (
	"net/http"

	"github.com/phrazzld/batchgen/internal/redact"
)

// RedactRequestURI masks credential query parameters in r.RequestURI before
// the access log sees it. r.URL is left alone so Authenticate still reads
// the access_token parameter.
func RedactRequestURI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			r2 := r.Clone(r.Context())
			r2.RequestURI = redact.RequestURI(r.RequestURI)
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}
