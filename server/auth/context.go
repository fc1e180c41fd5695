package auth

import "context"

type contextKey int

// UserIDContextKey is the key under which the authenticated user id is stored.
const UserIDContextKey contextKey = iota

// SetUserIDInContext returns a copy of ctx carrying userID.
func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDContextKey).(string)
	return userID
}
