package rabbitmq

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envconfigPrefix = "RABBITMQ"

// Config represents configuration options for a RabbitMQ connection.
type Config struct {
	URL string `envconfig:"URL" required:"true"`
}

// GetConfigFromEnvironment returns a Config populated from environment
// variables.
func GetConfigFromEnvironment() (Config, error) {
	c := Config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting RabbitMQ configuration from environment",
		)
	}
	return c, nil
}
