package amqp

import (
	"context"
	"strings"
	"sync"
	"time"

	amqp "github.com/Azure/go-amqp"
	"github.com/krancour/queuebridge/internal/retries"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// connection wraps an AMQP client that is shared by all the links a factory
// creates. It re-dials when a session or link can't be established.
type connection struct {
	address           string
	dialOpts          []amqp.ConnOption
	isAzureServiceBus bool
	logger            *zap.Logger
	client            *amqp.Client
	mu                sync.Mutex
}

func newConnection(config Config, logger *zap.Logger) (*connection, error) {
	c := &connection{
		address: config.Address,
		dialOpts: []amqp.ConnOption{
			amqp.ConnSASLPlain(config.Username, config.Password),
		},
		isAzureServiceBus: config.IsAzureServiceBus,
		logger:            logger,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect must be called while holding the lock, or before the connection is
// shared.
func (c *connection) connect() error {
	return retries.ManageRetries(
		context.Background(),
		c.logger,
		"connect",
		10,
		10*time.Second,
		func() (bool, error) {
			if c.client != nil {
				c.client.Close() // nolint: errcheck
			}
			var err error
			if c.client, err = amqp.Dial(c.address, c.dialOpts...); err != nil {
				return true, errors.Wrap(err, "error dialing endpoint")
			}
			return false, nil
		},
	)
}

// newSession establishes a new session and uses it to create a link. If either
// fails, it reconnects and tries again.
func (c *connection) newSession(
	newLink func(*amqp.Session) error,
) (*amqp.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		session, err := c.client.NewSession()
		if err != nil {
			c.logger.Warn("error creating AMQP session", zap.Error(err))
			if err = c.connect(); err != nil {
				return nil, err
			}
			continue
		}
		if err = newLink(session); err != nil {
			c.logger.Warn("error creating AMQP link", zap.Error(err))
			session.Close(context.TODO()) // nolint: errcheck
			if err = c.connect(); err != nil {
				return nil, err
			}
			continue
		}
		return session, nil
	}
}

func (c *connection) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.client.Close(); err != nil {
		return errors.Wrap(err, "error closing AMQP client")
	}
	return nil
}

// splitQueueName splits a queue name with exactly one "." into a base name and
// a group ID when talking to Azure Service Bus. Azure Service Bus permits only
// a small number of queues per namespace, but it can multiplex one queue by
// group ID, which approximates a queue per group.
func (c *connection) splitQueueName(queueName string) (string, string) {
	if !c.isAzureServiceBus {
		return queueName, ""
	}
	tokens := strings.Split(queueName, ".")
	if len(tokens) != 2 {
		return queueName, ""
	}
	return tokens[0], tokens[1]
}
