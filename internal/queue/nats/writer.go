package nats

import (
	"context"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type writerFactory struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewWriterFactory returns a queue.WriterFactory that publishes messages to
// NATS JetStream work queue streams.
func NewWriterFactory(
	config Config,
	logger *zap.Logger,
) (queue.WriterFactory, error) {
	nc, err := connect(config.URL, logger.Named("nats-writer-factory"))
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "error obtaining JetStream context")
	}
	return &writerFactory{
		nc: nc,
		js: js,
	}, nil
}

func (w *writerFactory) NewWriter(queueName string) (queue.Writer, error) {
	if err := ensureStreams(w.js, queueName); err != nil {
		return nil, err
	}
	return &writer{
		queueName: queueName,
		js:        w.js,
	}, nil
}

func (w *writerFactory) Close(context.Context) error {
	if err := w.nc.Drain(); err != nil {
		return errors.Wrap(err, "error draining NATS connection")
	}
	return nil
}

type writer struct {
	queueName string
	js        nats.JetStreamContext
}

func (w *writer) Write(
	ctx context.Context,
	body []byte,
	opts *queue.WriteOptions,
) error {
	msg, pubOpts := newMsg(w.queueName, body, opts)
	pubOpts = append(pubOpts, nats.Context(ctx))
	if _, err := w.js.PublishMsg(msg, pubOpts...); err != nil {
		return errors.Wrapf(
			err,
			"error publishing message to queue %q",
			w.queueName,
		)
	}
	return nil
}

func newMsg(
	queueName string,
	body []byte,
	opts *queue.WriteOptions,
) (*nats.Msg, []nats.PubOpt) {
	if opts == nil {
		opts = &queue.WriteOptions{}
	}
	msg := nats.NewMsg(subjectName(queueName))
	msg.Data = body
	var pubOpts []nats.PubOpt
	if opts.MessageID != "" {
		// The ID doubles as JetStream's de-duplication key.
		pubOpts = append(pubOpts, nats.MsgId(opts.MessageID))
	}
	if opts.NotBefore != nil {
		msg.Header.Set(
			notBeforeHeader,
			opts.NotBefore.UTC().Format(time.RFC3339Nano),
		)
	}
	return msg, pubOpts
}

func (w *writer) Close(context.Context) error {
	return nil
}
