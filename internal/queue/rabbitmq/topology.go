package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/krancour/queuebridge/internal/retries"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func deadLetterQueueName(queueName string) string {
	return fmt.Sprintf("%s.deadletter", queueName)
}

// delayedQueueName returns the name of the queue that holds messages for the
// given delay before routing them back to the main queue.
func delayedQueueName(queueName string, delay time.Duration) string {
	return fmt.Sprintf("%s.delayed.%ds", queueName, int64(delay/time.Second))
}

// delayBucket rounds a delay up to a whole number of seconds. RabbitMQ only
// expires messages from the head of a queue, so every message in one delayed
// queue must share the same TTL. Bucketing keeps the number of such queues
// small.
func delayBucket(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return ((delay + time.Second - 1) / time.Second) * time.Second
}

// queueArgs returns the arguments for the main queue and its dead-letter
// queue. Rejected messages are routed to the dead-letter queue. Writers and
// readers must declare identical arguments or the broker will refuse the
// declaration.
func queueArgs(queueName string) map[string]amqp.Table {
	return map[string]amqp.Table{
		deadLetterQueueName(queueName): nil,
		queueName: {
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": deadLetterQueueName(queueName),
		},
	}
}

// delayedQueueArgs returns the arguments for a delayed queue. Its messages
// expire after the delay and are routed back to the main queue.
func delayedQueueArgs(queueName string, delay time.Duration) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             delay.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queueName,
	}
}

func declareTopology(ch *amqp.Channel, queueName string) error {
	// The dead-letter queue is declared first so that nothing routed to it is
	// ever dropped.
	for _, name := range []string{
		deadLetterQueueName(queueName),
		queueName,
	} {
		if err := declareQueue(ch, name, queueArgs(queueName)[name]); err != nil {
			return err
		}
	}
	return nil
}

func declareDelayedQueue(
	ch *amqp.Channel,
	queueName string,
	delay time.Duration,
) error {
	return declareQueue(
		ch,
		delayedQueueName(queueName, delay),
		delayedQueueArgs(queueName, delay),
	)
}

func declareQueue(ch *amqp.Channel, name string, args amqp.Table) error {
	if _, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		args,
	); err != nil {
		return errors.Wrapf(err, "error declaring queue %q", name)
	}
	return nil
}

func dial(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	err := retries.ManageRetries(
		context.Background(),
		logger,
		"connect",
		10,
		10*time.Second,
		func() (bool, error) {
			var err error
			if conn, err = amqp.Dial(url); err != nil {
				return true, errors.Wrap(err, "error dialing RabbitMQ")
			}
			return false, nil
		},
	)
	return conn, err
}
