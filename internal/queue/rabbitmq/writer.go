package rabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type writerFactory struct {
	conn *amqp.Connection
}

// NewWriterFactory returns a queue.WriterFactory that publishes messages to
// RabbitMQ with publisher confirms.
func NewWriterFactory(
	config Config,
	logger *zap.Logger,
) (queue.WriterFactory, error) {
	conn, err := dial(config.URL, logger.Named("rabbitmq-writer-factory"))
	if err != nil {
		return nil, err
	}
	return &writerFactory{
		conn: conn,
	}, nil
}

func (w *writerFactory) NewWriter(queueName string) (queue.Writer, error) {
	ch, err := w.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "error opening RabbitMQ channel")
	}
	if err = declareTopology(ch, queueName); err != nil {
		ch.Close() // nolint: errcheck
		return nil, err
	}
	if err = ch.Confirm(false); err != nil {
		ch.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "error enabling publisher confirms")
	}
	return &writer{
		queueName:     queueName,
		ch:            ch,
		delayedQueues: map[time.Duration]struct{}{},
	}, nil
}

func (w *writerFactory) Close(context.Context) error {
	if err := w.conn.Close(); err != nil {
		return errors.Wrap(err, "error closing RabbitMQ connection")
	}
	return nil
}

type writer struct {
	queueName string
	ch        *amqp.Channel
	// delayedQueues tracks the delayed queues already declared, by delay.
	delayedQueues   map[time.Duration]struct{}
	delayedQueuesMu sync.Mutex
}

func (w *writer) Write(
	ctx context.Context,
	body []byte,
	opts *queue.WriteOptions,
) error {
	routingKey, delay, publishing := w.newPublishing(body, opts, time.Now())
	if delay > 0 {
		if err := w.ensureDelayedQueue(delay); err != nil {
			return err
		}
	}
	confirmation, err := w.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		"", // Default exchange
		routingKey,
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return errors.Wrapf(
			err,
			"error publishing message to queue %q",
			w.queueName,
		)
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return errors.Wrapf(
			err,
			"error awaiting confirmation of message for queue %q",
			w.queueName,
		)
	}
	if !acked {
		return errors.Errorf(
			"broker refused message for queue %q",
			w.queueName,
		)
	}
	return nil
}

func (w *writer) ensureDelayedQueue(delay time.Duration) error {
	w.delayedQueuesMu.Lock()
	defer w.delayedQueuesMu.Unlock()
	if _, ok := w.delayedQueues[delay]; ok {
		return nil
	}
	if err := declareDelayedQueue(w.ch, w.queueName, delay); err != nil {
		return err
	}
	w.delayedQueues[delay] = struct{}{}
	return nil
}

// newPublishing returns the routing key, delay, and message for a write.
// Messages that must not be delivered before some time are routed through the
// delayed queue for that delay, rounded up to the second.
func (w *writer) newPublishing(
	body []byte,
	opts *queue.WriteOptions,
	now time.Time,
) (string, time.Duration, amqp.Publishing) {
	if opts == nil {
		opts = &queue.WriteOptions{}
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    opts.MessageID,
		Timestamp:    now,
		Body:         body,
	}
	if opts.NotBefore == nil {
		return w.queueName, 0, publishing
	}
	delay := delayBucket(opts.NotBefore.Sub(now))
	if delay == 0 {
		return w.queueName, 0, publishing
	}
	return delayedQueueName(w.queueName, delay), delay, publishing
}

func (w *writer) Close(context.Context) error {
	if err := w.ch.Close(); err != nil {
		return errors.Wrapf(
			err,
			"error closing RabbitMQ channel for queue %q",
			w.queueName,
		)
	}
	return nil
}
