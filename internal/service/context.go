package service

import "context"

type contextKey struct{ name string }

var userIDKey = &contextKey{"user_id"}

// WithUserID returns a context carrying the authenticated user's id. The
// transport layer sets this after resolving authentication; services treat
// it as the acting user for audited operations.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user id from the context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
