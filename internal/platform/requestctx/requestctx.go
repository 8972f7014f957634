package requestctx

import (
	"context"
	"time"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	adminKey     ctxKey = "admin_session"
)

// AdminSession is placed on the context once an admin token has been verified.
type AdminSession struct {
	ID        string
	Subject   string
	ExpiresAt time.Time
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func WithAdmin(ctx context.Context, session AdminSession) context.Context {
	return context.WithValue(ctx, adminKey, session)
}

func GetAdmin(ctx context.Context) (AdminSession, bool) {
	session, ok := ctx.Value(adminKey).(AdminSession)
	return session, ok
}
