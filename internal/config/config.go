package config

import (
	"fmt"

	pkgconfig "github.com/joa111/ecom-mang/pkg/config"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort   int    `env:"CART_HTTP_PORT" envDefault:"8003"`
	CORSOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	// PostgreSQL (remote cart store)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"cart"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"cart_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"cart"`
	PostgresSSL  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Redis (guest cart snapshots)
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Guest snapshot TTL in hours (default: 7 days)
	GuestCartTTL int `env:"GUEST_CART_TTL_HOURS" envDefault:"168"`

	// In-memory session eviction after this many minutes idle
	SessionIdleMinutes int `env:"SESSION_IDLE_MINUTES" envDefault:"30"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Product catalog service
	CatalogBaseURL string `env:"CATALOG_BASE_URL" envDefault:"http://localhost:8001"`

	// Identity provider token verification
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	// Shipping: flat fee, waived at or above the free-shipping minimum.
	// Amounts in cents.
	ShippingFee     int64 `env:"SHIPPING_FEE_CENTS" envDefault:"1000"`
	FreeShippingMin int64 `env:"FREE_SHIPPING_MIN_CENTS" envDefault:"15000"`

	// Write-through retry attempts per key
	WriteMaxTries uint `env:"WRITE_MAX_TRIES" envDefault:"3"`

	// Tracing
	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.ShippingFee < 0 {
		return fmt.Errorf("shipping fee must not be negative: %d", c.ShippingFee)
	}
	if c.FreeShippingMin < 0 {
		return fmt.Errorf("free shipping minimum must not be negative: %d", c.FreeShippingMin)
	}
	return nil
}
