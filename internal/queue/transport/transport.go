package transport

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/krancour/queuebridge/internal/queue"
	"github.com/krancour/queuebridge/internal/queue/amqp"
	"github.com/krancour/queuebridge/internal/queue/kafka"
	"github.com/krancour/queuebridge/internal/queue/nats"
	"github.com/krancour/queuebridge/internal/queue/rabbitmq"
	"github.com/krancour/queuebridge/internal/queue/redis"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const envconfigPrefix = "QUEUE"

// Supported transports
const (
	AMQP     = "amqp"
	Redis    = "redis"
	RabbitMQ = "rabbitmq"
	Kafka    = "kafka"
	NATS     = "nats"
)

// Config selects a transport and names the queue that producer and consumer
// share.
type Config struct {
	Transport string `envconfig:"TRANSPORT" default:"amqp"`
	Name      string `envconfig:"NAME" required:"true"`
}

// GetConfigFromEnvironment returns a Config populated from environment
// variables.
func GetConfigFromEnvironment() (Config, error) {
	c := Config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting queue configuration from environment",
		)
	}
	c.Transport = strings.ToLower(c.Transport)
	switch c.Transport {
	case AMQP, Redis, RabbitMQ, Kafka, NATS:
	default:
		return c, errors.Errorf("unsupported queue transport %q", c.Transport)
	}
	return c, nil
}

// GetWriterFactoryFromEnvironment returns a queue.WriterFactory for the named
// transport, configured from that transport's environment variables.
func GetWriterFactoryFromEnvironment(
	transport string,
	logger *zap.Logger,
) (queue.WriterFactory, error) {
	switch transport {
	case AMQP:
		config, err := amqp.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return amqp.NewWriterFactory(config, logger)
	case Redis:
		config, err := redis.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return redis.NewWriterFactory(config)
	case RabbitMQ:
		config, err := rabbitmq.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return rabbitmq.NewWriterFactory(config, logger)
	case Kafka:
		config, err := kafka.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return kafka.NewWriterFactory(config)
	case NATS:
		config, err := nats.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return nats.NewWriterFactory(config, logger)
	}
	return nil, errors.Errorf("unsupported queue transport %q", transport)
}

// GetReaderFactoryFromEnvironment returns a queue.ReaderFactory for the named
// transport, configured from that transport's environment variables.
func GetReaderFactoryFromEnvironment(
	transport string,
	logger *zap.Logger,
) (queue.ReaderFactory, error) {
	switch transport {
	case AMQP:
		config, err := amqp.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return amqp.NewReaderFactory(config, logger)
	case Redis:
		config, err := redis.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return redis.NewReaderFactory(config, nil, logger)
	case RabbitMQ:
		config, err := rabbitmq.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return rabbitmq.NewReaderFactory(config, logger)
	case Kafka:
		config, err := kafka.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return kafka.NewReaderFactory(config, logger)
	case NATS:
		config, err := nats.GetConfigFromEnvironment()
		if err != nil {
			return nil, err
		}
		return nats.NewReaderFactory(config, logger)
	}
	return nil, errors.Errorf("unsupported queue transport %q", transport)
}
