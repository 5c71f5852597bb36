package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables declared with `env` struct tags,
// applying envDefault values for anything unset.
//
// Example:
//
//	type Config struct {
//	    HTTPPort   int      `env:"CART_HTTP_PORT" envDefault:"8003"`
//	    KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
