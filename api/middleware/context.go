package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxAccountID contextKey = "account_id"
	ctxAccessID  contextKey = "access_id"
	ctxSessionID contextKey = "session_id"
)

// AccountIDFromContext returns the authenticated account, if any.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(ctxAccountID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// AccessIDFromContext returns the jti of the access token used on this request.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext returns the guest cart session id.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// WithAccountID injects the authenticated account into the context.
func WithAccountID(ctx context.Context, accountID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccountID, accountID)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccessID, accessID)
}

// WithSessionID injects the guest session id into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}
