package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envconfigPrefix = "CONSUMER"

// Config represents consumer configuration.
type Config struct {
	// MaxConcurrentCalls caps how many messages are handled at once.
	MaxConcurrentCalls int `envconfig:"MAX_CONCURRENT_CALLS" default:"1"`
	// MaxAttempts is the number of deliveries after which a message that is
	// still being retried is dead-lettered instead.
	MaxAttempts int `envconfig:"MAX_ATTEMPTS" default:"5"`
	// RetryDelay is how long a message is held back before redelivery when
	// handling it failed unexpectedly.
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"10s"`
	// MetricsPort is the port on which Prometheus metrics are served. Zero
	// disables the metrics server.
	MetricsPort int `envconfig:"METRICS_PORT" default:"9090"`
}

// GetConfigFromEnvironment returns configuration derived from environment
// variables
func GetConfigFromEnvironment() (Config, error) {
	c := Config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting consumer configuration from environment",
		)
	}
	if c.MaxConcurrentCalls < 1 {
		return c, errors.Errorf(
			"CONSUMER_MAX_CONCURRENT_CALLS must be at least 1; got %d",
			c.MaxConcurrentCalls,
		)
	}
	if c.MaxAttempts < 1 {
		return c, errors.Errorf(
			"CONSUMER_MAX_ATTEMPTS must be at least 1; got %d",
			c.MaxAttempts,
		)
	}
	return c, nil
}
