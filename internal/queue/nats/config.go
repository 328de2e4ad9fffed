package nats

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envconfigPrefix = "NATS"

// Config represents configuration options for a NATS connection.
type Config struct {
	URL string `envconfig:"URL" default:"nats://127.0.0.1:4222"`
}

// GetConfigFromEnvironment returns a Config populated from environment
// variables.
func GetConfigFromEnvironment() (Config, error) {
	c := Config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting NATS configuration from environment",
		)
	}
	return c, nil
}
