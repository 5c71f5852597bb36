package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joa111/ecom-mang/internal/identity"
	"github.com/joa111/ecom-mang/pkg/httputil"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// sessionIDKey is the context key for the cart session ID.
const sessionIDKey contextKey = "session_id"

// SessionContext is middleware that reads the X-Session-ID header (generated
// by the storefront client and stable for the browser session) and stores it
// in the request context. Requests without a session ID are rejected. When an
// Authorization bearer token is present and valid, the resolved user ID is
// stored alongside it; an invalid token leaves the request a guest rather
// than failing it, since the cart must keep working through token expiry.
func SessionContext(verifier *identity.TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := r.Header.Get("X-Session-ID")
			if sid == "" {
				httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "X-Session-ID header is required"},
				})
				return
			}
			ctx := context.WithValue(r.Context(), sessionIDKey, sid)

			if auth := r.Header.Get("Authorization"); auth != "" {
				userID, err := verifier.UserIDFromToken(auth)
				if err != nil {
					logger.DebugContext(ctx, "bearer token rejected, continuing as guest",
						slog.String("error", err.Error()),
					)
				} else {
					ctx = identity.WithUserID(ctx, userID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionIDFromContext extracts the cart session ID from the request context.
func sessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok && sid != ""
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
