package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

type requestIDKey struct{}

// WithRequestID carries the originating request id so work done later, like
// a background job run, still logs under the request that caused it.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return Default(ctx)
	}
	return context.WithValue(Default(ctx), requestIDKey{}, id)
}

// RequestID returns the carried request id, or "" when absent.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type userIDKey struct{}

// WithUserID stamps the authenticated user onto the request context.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(Default(ctx), userIDKey{}, id)
}

// UserID returns the authenticated user id, or uuid.Nil when absent.
func UserID(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if id, ok := ctx.Value(userIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
