package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/joa111/ecom-mang/pkg/httputil"
)

// Recovery converts handler panics into a JSON 500 response and keeps the
// server alive. Mounted first so it also covers the other middleware.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					attrs := []any{
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					}
					if sid := r.Header.Get("X-Session-ID"); sid != "" {
						attrs = append(attrs, slog.String("session_id", sid))
					}
					l.ErrorContext(r.Context(), "panic recovered", attrs...)

					httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
						Error: &httputil.ErrorResponse{
							Code:    "INTERNAL_ERROR",
							Message: "an internal error occurred",
						},
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
