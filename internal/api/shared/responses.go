package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/redact"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	// ErrorCode is a stable machine-readable code for errors clients branch on.
	ErrorCode string `json:"code,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
}

// ResponseOption customizes an error response.
type ResponseOption func(*responseOptions)

type responseOptions struct {
	errorCode  string
	retryAfter time.Duration
}

// WithErrorCode sets the machine-readable code of the error response.
func WithErrorCode(code string) ResponseOption {
	return func(opts *responseOptions) {
		opts.errorCode = code
	}
}

// WithRetryAfter sets the Retry-After header, rounded up to whole seconds.
func WithRetryAfter(d time.Duration) ResponseOption {
	return func(opts *responseOptions) {
		opts.retryAfter = d
	}
}

// RespondWithJSON writes data as JSON with the given status.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			ErrorContext(r.Context(), "failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes an error response for a failure that has no
// underlying error worth logging, such as a malformed header.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithErrorAndLog(w, r, status, message, nil)
}

// RespondWithErrorAndLog writes userMessage to the client and logs err,
// redacted, with the trace ID. The raw error never reaches the response.
//
// 5xx responses log at ERROR, 429 at WARN and other 4xx at DEBUG.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	userMessage string,
	err error,
	opts ...ResponseOption,
) {
	var o responseOptions
	for _, opt := range opts {
		opt(&o)
	}
	traceID := GetTraceID(r.Context())

	attrs := []slog.Attr{
		slog.String("trace_id", traceID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	level := slog.LevelDebug
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status == http.StatusTooManyRequests:
		level = slog.LevelWarn
	}
	logger.FromContextOrDefault(r.Context(), slog.Default()).
		LogAttrs(r.Context(), level, "API error response", attrs...)

	if o.retryAfter > 0 {
		secs := int((o.retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	RespondWithJSON(w, r, status, ErrorResponse{
		Error:     userMessage,
		ErrorCode: o.errorCode,
		TraceID:   traceID,
	})
}
