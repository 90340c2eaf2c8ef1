package core

import (
	"context"

	"github.com/google/uuid"
)

// RequestIDHeader is the header used to propagate request ids.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID retrieves the request ID from context, or "" when absent
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateRequestID generates a new request ID
func GenerateRequestID() string {
	return uuid.NewString()
}

// EnsureRequestID returns id when it is usable, otherwise a fresh one.
// Client supplied ids longer than 128 bytes are replaced.
func EnsureRequestID(id string) string {
	if id == "" || len(id) > 128 {
		return GenerateRequestID()
	}
	return id
}
