package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joa111/ecom-mang/internal/identity"
	"github.com/joa111/ecom-mang/internal/session"
	"github.com/joa111/ecom-mang/pkg/health"
	"github.com/joa111/ecom-mang/pkg/middleware"
)

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(
	sessions *session.Manager,
	verifier *identity.TokenVerifier,
	notifier *identity.Notifier,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsOrigin string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("cartsync"))
	r.Use(middleware.Tracing("cartsync"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(corsOrigin))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Cart API endpoints
	cartHandler := NewCartHandler(sessions, &identity.ContextProvider{}, notifier, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionContext(verifier, logger))

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)

		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{productId}", cartHandler.SetQuantity)
		r.Delete("/items/{productId}", cartHandler.RemoveItem)

		r.Post("/session/signin", cartHandler.SignIn)
		r.Post("/session/signout", cartHandler.SignOut)
	})

	return r
}
