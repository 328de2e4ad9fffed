package nats

import (
	"context"
	"strconv"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type readerFactory struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewReaderFactory returns a queue.ReaderFactory that pulls messages from NATS
// JetStream work queue streams through a durable consumer.
func NewReaderFactory(
	config Config,
	logger *zap.Logger,
) (queue.ReaderFactory, error) {
	logger = logger.Named("nats-reader-factory")
	nc, err := connect(config.URL, logger)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "error obtaining JetStream context")
	}
	return &readerFactory{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

func (r *readerFactory) NewReader(
	queueName string,
	opts *queue.ReaderOptions,
) (queue.Reader, error) {
	if err := ensureStreams(r.js, queueName); err != nil {
		return nil, err
	}
	prefetch := opts.PrefetchOrDefault()
	sub, err := r.js.PullSubscribe(
		subjectName(queueName),
		durableName(queueName),
		nats.BindStream(streamName(queueName)),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxAckPending(prefetch),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error subscribing to queue %q", queueName)
	}
	return &reader{
		queueName: queueName,
		js:        r.js,
		sub:       sub,
		prefetch:  prefetch,
		logger:    r.logger,
	}, nil
}

func (r *readerFactory) Close(context.Context) error {
	if err := r.nc.Drain(); err != nil {
		return errors.Wrap(err, "error draining NATS connection")
	}
	return nil
}

type reader struct {
	queueName string
	js        nats.JetStreamContext
	sub       *nats.Subscription
	prefetch  int
	buffer    []*nats.Msg
	logger    *zap.Logger
}

func (r *reader) Read(ctx context.Context) (*queue.Message, error) {
	for {
		for len(r.buffer) == 0 {
			fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			msgs, err := r.sub.Fetch(r.prefetch, nats.Context(fetchCtx))
			cancel()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Wrapf(
					ctxErr,
					"error reading from queue %q",
					r.queueName,
				)
			}
			if err != nil && !errors.Is(err, context.DeadlineExceeded) &&
				!errors.Is(err, nats.ErrTimeout) {
				return nil, errors.Wrapf(
					err,
					"error fetching from queue %q",
					r.queueName,
				)
			}
			r.buffer = msgs
		}
		msg := r.buffer[0]
		r.buffer = r.buffer[1:]
		if delay := r.delay(msg); delay > 0 {
			// Not due yet. The server redelivers it once the delay elapses.
			if err := msg.NakWithDelay(delay); err != nil {
				return nil, errors.Wrap(err, "error deferring NATS message")
			}
			continue
		}
		return r.newMessage(msg), nil
	}
}

// delay returns how long the message must wait before it is due.
func (r *reader) delay(msg *nats.Msg) time.Duration {
	value := msg.Header.Get(notBeforeHeader)
	if value == "" {
		return 0
	}
	due, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		r.logger.Warn(
			"ignoring malformed header",
			zap.String("queue", r.queueName),
			zap.String("header", notBeforeHeader),
			zap.String("value", value),
		)
		return 0
	}
	return time.Until(due)
}

func (r *reader) newMessage(msg *nats.Msg) *queue.Message {
	var id string
	if meta, err := msg.Metadata(); err == nil {
		id = msg.Header.Get(nats.MsgIdHdr)
		if id == "" {
			id = meta.Stream + "/" + strconv.FormatUint(meta.Sequence.Stream, 10)
		}
	}
	return &queue.Message{
		ID:   id,
		Body: msg.Data,
		Ack: func(ctx context.Context) error {
			return errors.Wrap(
				msg.AckSync(nats.Context(ctx)),
				"error acknowledging NATS message",
			)
		},
		Nack: func(ctx context.Context, reason string) error {
			deadLetter := nats.NewMsg(deadLetterSubjectName(r.queueName))
			deadLetter.Data = msg.Data
			for key, values := range msg.Header {
				for _, value := range values {
					deadLetter.Header.Add(key, value)
				}
			}
			// A de-duplication ID would cause the dead letter to be dropped.
			deadLetter.Header.Del(nats.MsgIdHdr)
			deadLetter.Header.Set(reasonHeader, reason)
			if _, err := r.js.PublishMsg(
				deadLetter,
				nats.Context(ctx),
			); err != nil {
				return errors.Wrap(err, "error publishing NATS dead letter")
			}
			return errors.Wrap(msg.Term(), "error terminating NATS message")
		},
	}
}

func (r *reader) Close(context.Context) error {
	if err := r.sub.Unsubscribe(); err != nil {
		return errors.Wrapf(
			err,
			"error unsubscribing from queue %q",
			r.queueName,
		)
	}
	return nil
}
