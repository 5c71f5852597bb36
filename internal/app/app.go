package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/joa111/ecom-mang/internal/catalog"
	"github.com/joa111/ecom-mang/internal/config"
	"github.com/joa111/ecom-mang/internal/domain"
	"github.com/joa111/ecom-mang/internal/event"
	handler "github.com/joa111/ecom-mang/internal/handler/http"
	"github.com/joa111/ecom-mang/internal/identity"
	"github.com/joa111/ecom-mang/internal/reconciler"
	postgresrepo "github.com/joa111/ecom-mang/internal/repository/postgres"
	redisrepo "github.com/joa111/ecom-mang/internal/repository/redis"
	"github.com/joa111/ecom-mang/internal/session"
	"github.com/joa111/ecom-mang/pkg/database"
	"github.com/joa111/ecom-mang/pkg/health"
	pkgkafka "github.com/joa111/ecom-mang/pkg/kafka"
)

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	rdb        *redis.Client
	pool       *pgxpool.Pool
	producer   *pkgkafka.Producer
	sessions   *session.Manager
	sweepStop  context.CancelFunc
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Redis holds guest cart snapshots.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// PostgreSQL holds the authenticated remote cart store.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Kafka producer for cart domain events.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	guestTTL := time.Duration(cfg.GuestCartTTL) * time.Hour
	local := redisrepo.NewGuestStorage(rdb, guestTTL)
	store := postgresrepo.NewCartStore(pool)
	cat := catalog.NewClient(catalog.DefaultClientConfig(cfg.CatalogBaseURL), logger)
	eventProducer := event.NewProducer(producer, logger)

	recCfg := reconciler.Config{
		Pricing: domain.Pricing{
			ShippingFee:     cfg.ShippingFee,
			FreeShippingMin: cfg.FreeShippingMin,
		},
		WriteMaxTries: cfg.WriteMaxTries,
	}
	idleTTL := time.Duration(cfg.SessionIdleMinutes) * time.Minute
	sessions := session.NewManager(store, local, cat, eventProducer, recCfg, idleTTL, logger)

	// Identity change notifications, for components that care about
	// sign-in/sign-out beyond the owning session.
	notifier := identity.NewNotifier()
	notifier.Subscribe(func(ctx context.Context, change identity.Change) {
		if change.SignedIn() {
			logger.Info("user signed in", slog.String("user_id", change.UserID))
			return
		}
		logger.Info("user signed out")
	})

	verifier := identity.NewTokenVerifier(cfg.JWTSecret)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(sessions, verifier, notifier, healthHandler, logger, cfg.CORSOrigin)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		rdb:        rdb,
		pool:       pool,
		producer:   producer,
		sessions:   sessions,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Evict idle sessions in the background, flushing their pending writes.
	sweepCtx, sweepStop := context.WithCancel(context.Background())
	a.sweepStop = sweepStop
	go a.sessions.Sweep(sweepCtx, time.Minute)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	if a.sweepStop != nil {
		a.sweepStop()
	}

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Flush pending write-throughs for every live session before the
	// stores go away.
	a.sessions.Close(shutdownCtx)

	// Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	// Close database connections.
	a.pool.Close()
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
