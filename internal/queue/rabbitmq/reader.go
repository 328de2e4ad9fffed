package rabbitmq

import (
	"context"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type readerFactory struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

// NewReaderFactory returns a queue.ReaderFactory that consumes messages from
// RabbitMQ with manual acknowledgement.
func NewReaderFactory(
	config Config,
	logger *zap.Logger,
) (queue.ReaderFactory, error) {
	logger = logger.Named("rabbitmq-reader-factory")
	conn, err := dial(config.URL, logger)
	if err != nil {
		return nil, err
	}
	return &readerFactory{
		conn:   conn,
		logger: logger,
	}, nil
}

func (r *readerFactory) NewReader(
	queueName string,
	opts *queue.ReaderOptions,
) (queue.Reader, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "error opening RabbitMQ channel")
	}
	if err = declareTopology(ch, queueName); err != nil {
		ch.Close() // nolint: errcheck
		return nil, err
	}
	// The broker will not push more unacknowledged messages than the consumer
	// can work on at once.
	if err = ch.Qos(opts.PrefetchOrDefault(), 0, false); err != nil {
		ch.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "error setting RabbitMQ prefetch")
	}
	deliveries, err := ch.Consume(
		queueName,
		"",    // Let the broker generate a consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close() // nolint: errcheck
		return nil, errors.Wrapf(err, "error consuming from queue %q", queueName)
	}
	return &reader{
		queueName:  queueName,
		ch:         ch,
		deliveries: deliveries,
		logger:     r.logger,
	}, nil
}

func (r *readerFactory) Close(context.Context) error {
	if err := r.conn.Close(); err != nil {
		return errors.Wrap(err, "error closing RabbitMQ connection")
	}
	return nil
}

type reader struct {
	queueName  string
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	logger     *zap.Logger
}

func (r *reader) Read(ctx context.Context) (*queue.Message, error) {
	select {
	case delivery, ok := <-r.deliveries:
		if !ok {
			return nil, errors.Errorf(
				"delivery channel for queue %q was closed",
				r.queueName,
			)
		}
		return r.newMessage(delivery), nil
	case <-ctx.Done():
		return nil, errors.Wrapf(
			ctx.Err(),
			"error reading from queue %q",
			r.queueName,
		)
	}
}

func (r *reader) newMessage(delivery amqp.Delivery) *queue.Message {
	return &queue.Message{
		ID:   delivery.MessageId,
		Body: delivery.Body,
		Ack: func(context.Context) error {
			return errors.Wrap(
				delivery.Ack(false),
				"error acknowledging RabbitMQ delivery",
			)
		},
		Nack: func(_ context.Context, reason string) error {
			// RabbitMQ records its own reason in the x-death header, so ours is
			// only logged.
			r.logger.Info(
				"rejecting message",
				zap.String("queue", r.queueName),
				zap.String("messageID", delivery.MessageId),
				zap.String("reason", reason),
			)
			return errors.Wrap(
				delivery.Nack(false, false),
				"error rejecting RabbitMQ delivery",
			)
		},
	}
}

func (r *reader) Close(context.Context) error {
	if err := r.ch.Close(); err != nil {
		return errors.Wrapf(
			err,
			"error closing RabbitMQ channel for queue %q",
			r.queueName,
		)
	}
	return nil
}
