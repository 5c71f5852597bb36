package identity

import "context"

type contextKey string

const userIDKey contextKey = "identity_user_id"

// WithUserID stores the authenticated user ID in the context. Set by the HTTP
// session middleware after token verification.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// ContextProvider resolves identity from the request context populated by the
// session middleware.
type ContextProvider struct{}

// CurrentUserID returns the authenticated user ID, or false for a guest.
func (ContextProvider) CurrentUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
