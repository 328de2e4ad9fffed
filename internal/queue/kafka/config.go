package kafka

import (
	"crypto/tls"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

const envconfigPrefix = "KAFKA"

// Config represents configuration options for a Kafka cluster.
type Config struct {
	Brokers           []string `envconfig:"BROKERS" required:"true"`
	ConsumerGroup     string   `envconfig:"CONSUMER_GROUP" default:"queuebridge"`
	Partitions        int32    `envconfig:"PARTITIONS" default:"1"`
	ReplicationFactor int16    `envconfig:"REPLICATION_FACTOR" default:"1"`
	TLSEnabled        bool     `envconfig:"TLS_ENABLED" default:"false"`
	SASLUsername      string   `envconfig:"SASL_USERNAME"`
	SASLPassword      string   `envconfig:"SASL_PASSWORD"`
}

// GetConfigFromEnvironment returns a Config populated from environment
// variables.
func GetConfigFromEnvironment() (Config, error) {
	c := Config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting Kafka configuration from environment",
		)
	}
	return c, nil
}

// clientOpts returns the options common to all clients.
func (c Config) clientOpts() []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.Brokers...),
	}
	if c.TLSEnabled {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{}))
	}
	if c.SASLUsername != "" {
		opts = append(
			opts,
			kgo.SASL(
				plain.Auth{
					User: c.SASLUsername,
					Pass: c.SASLPassword,
				}.AsMechanism(),
			),
		)
	}
	return opts
}
