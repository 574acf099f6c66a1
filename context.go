package rankdesk

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request ID (uuid.UUID). It is sent as X-Request-ID
	// and attached to any notification raised by the same operation.
	RequestIDKey contextKey = "RequestID"
)

// ContextWithRequestID returns a copy of ctx carrying requestID.
func ContextWithRequestID(ctx context.Context, requestID uuid.UUID) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFromContext returns the request ID from the context if it exists
func RequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(RequestIDKey).(uuid.UUID)
	return id, ok
}

// NewRequestContext tags ctx with a fresh v7 request ID unless it already has one.
func NewRequestContext(ctx context.Context) context.Context {
	if _, ok := RequestIDFromContext(ctx); ok {
		return ctx
	}
	id, err := uuid.NewV7()
	if err != nil {
		return ctx
	}
	return ContextWithRequestID(ctx, id)
}
