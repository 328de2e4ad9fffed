package kafka

import (
	"context"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type readerFactory struct {
	config Config
	logger *zap.Logger
}

// NewReaderFactory returns a queue.ReaderFactory that consumes Kafka topics as
// a member of the configured consumer group. Offsets are committed only once a
// record has been acknowledged or dead-lettered.
func NewReaderFactory(
	config Config,
	logger *zap.Logger,
) (queue.ReaderFactory, error) {
	return &readerFactory{
		config: config,
		logger: logger.Named("kafka-reader-factory"),
	}, nil
}

func (r *readerFactory) NewReader(
	topic string,
	opts *queue.ReaderOptions,
) (queue.Reader, error) {
	kcl, err := kgo.NewClient(
		append(
			r.config.clientOpts(),
			kgo.ConsumeTopics(topic),
			kgo.ConsumerGroup(r.config.ConsumerGroup),
			kgo.DisableAutoCommit(),
		)...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating Kafka client")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err = ensureTopics(ctx, kcl, r.config, topic); err != nil {
		kcl.Close()
		return nil, err
	}
	return &reader{
		topic:    topic,
		kcl:      kcl,
		prefetch: opts.PrefetchOrDefault(),
		logger:   r.logger,
	}, nil
}

// Close is a no-op. Each reader owns and closes its own client.
func (r *readerFactory) Close(context.Context) error {
	return nil
}

type reader struct {
	topic    string
	kcl      *kgo.Client
	prefetch int
	buffer   []*kgo.Record
	logger   *zap.Logger
}

func (r *reader) Read(ctx context.Context) (*queue.Message, error) {
	for len(r.buffer) == 0 {
		fetches := r.kcl.PollRecords(ctx, r.prefetch)
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "error reading from topic %q", r.topic)
		}
		if fetches.IsClientClosed() {
			return nil, errors.Errorf("client for topic %q is closed", r.topic)
		}
		if err := fetches.Err(); err != nil {
			return nil, errors.Wrapf(err, "error fetching from topic %q", r.topic)
		}
		r.buffer = fetches.Records()
	}
	record := r.buffer[0]
	r.buffer = r.buffer[1:]
	if err := r.holdUntilDue(ctx, record); err != nil {
		// The record goes back to the front of the line so it isn't skipped if
		// this reader is used again.
		r.buffer = append([]*kgo.Record{record}, r.buffer...)
		return nil, err
	}
	return r.newMessage(record), nil
}

// holdUntilDue blocks until the record's not-before time, if any, has elapsed.
// Records are consumed in order, so holding one also holds those behind it on
// the same partition.
func (r *reader) holdUntilDue(ctx context.Context, record *kgo.Record) error {
	due, ok, err := notBefore(record)
	if err != nil {
		r.logger.Warn(
			"ignoring malformed header",
			zap.String("topic", r.topic),
			zap.Error(err),
		)
		return nil
	}
	if !ok {
		return nil
	}
	delay := time.Until(due)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "error reading from topic %q", r.topic)
	}
}

func (r *reader) newMessage(record *kgo.Record) *queue.Message {
	return &queue.Message{
		ID:   string(record.Key),
		Body: record.Value,
		Ack: func(ctx context.Context) error {
			return errors.Wrapf(
				r.kcl.CommitRecords(ctx, record),
				"error committing offset for topic %q",
				r.topic,
			)
		},
		Nack: func(ctx context.Context, reason string) error {
			deadLetter := &kgo.Record{
				Topic: deadLetterTopicName(r.topic),
				Key:   record.Key,
				Value: record.Value,
				Headers: append(
					append([]kgo.RecordHeader(nil), record.Headers...),
					kgo.RecordHeader{Key: reasonHeader, Value: []byte(reason)},
				),
			}
			if err := r.kcl.ProduceSync(ctx, deadLetter).FirstErr(); err != nil {
				return errors.Wrapf(
					err,
					"error producing record to topic %q",
					deadLetter.Topic,
				)
			}
			return errors.Wrapf(
				r.kcl.CommitRecords(ctx, record),
				"error committing offset for topic %q",
				r.topic,
			)
		},
	}
}

func (r *reader) Close(context.Context) error {
	r.kcl.Close()
	return nil
}
