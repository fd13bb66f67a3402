package shared

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"
)

// ContextKey namespaces values this package stores in a request context.
type ContextKey string

const (
	// UserIDContextKey holds the authenticated user's uuid.UUID.
	UserIDContextKey ContextKey = "userID"

	// TraceIDKey holds the request trace ID.
	TraceIDKey ContextKey = "traceID"
)

// traceIDHexLen is the length of a trace ID: 16 random bytes, hex encoded.
const traceIDHexLen = 32

// WithUserID stores the authenticated user in ctx.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// UserIDFromContext returns the authenticated user. A missing or nil ID
// reports false.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// SetTraceID stores a freshly generated trace ID in ctx.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, "")
}

// WithTraceID stores incoming in ctx when it is a well-formed trace ID, so a
// caller's X-Trace-ID survives into logs and error bodies. Anything else is
// replaced with a generated ID.
func WithTraceID(ctx context.Context, incoming string) context.Context {
	if !ValidTraceID(incoming) {
		incoming = newTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, incoming)
}

// GetTraceID returns the trace ID in ctx, or "" when none is set.
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// ValidTraceID reports whether id is 32 lowercase or uppercase hex characters.
func ValidTraceID(id string) bool {
	if len(id) != traceIDHexLen {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

func newTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// Version 1 IDs need no entropy beyond the clock sequence.
		slog.Error("random trace ID unavailable, using time based ID", "error", err)
		id, err = uuid.NewUUID()
		if err != nil {
			return "00000000000000000000000000000000"
		}
	}
	return hex.EncodeToString(id[:])
}
