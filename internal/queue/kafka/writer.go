package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"
)

type writerFactory struct {
	config Config
	kcl    *kgo.Client
	// ensured tracks topics that have already been created.
	ensured   map[string]struct{}
	ensuredMu sync.Mutex
}

// NewWriterFactory returns a queue.WriterFactory that produces records to
// Kafka topics.
func NewWriterFactory(config Config) (queue.WriterFactory, error) {
	kcl, err := kgo.NewClient(config.clientOpts()...)
	if err != nil {
		return nil, errors.Wrap(err, "error creating Kafka client")
	}
	return &writerFactory{
		config:  config,
		kcl:     kcl,
		ensured: map[string]struct{}{},
	}, nil
}

func (w *writerFactory) NewWriter(topic string) (queue.Writer, error) {
	w.ensuredMu.Lock()
	defer w.ensuredMu.Unlock()
	if _, ok := w.ensured[topic]; !ok {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := ensureTopics(ctx, w.kcl, w.config, topic); err != nil {
			return nil, err
		}
		w.ensured[topic] = struct{}{}
	}
	return &writer{
		topic: topic,
		kcl:   w.kcl,
	}, nil
}

func (w *writerFactory) Close(context.Context) error {
	w.kcl.Close()
	return nil
}

type writer struct {
	topic string
	kcl   *kgo.Client
}

func (w *writer) Write(
	ctx context.Context,
	body []byte,
	opts *queue.WriteOptions,
) error {
	if err := w.kcl.ProduceSync(ctx, newRecord(w.topic, body, opts)).
		FirstErr(); err != nil {
		return errors.Wrapf(err, "error producing record to topic %q", w.topic)
	}
	return nil
}

func newRecord(
	topic string,
	body []byte,
	opts *queue.WriteOptions,
) *kgo.Record {
	if opts == nil {
		opts = &queue.WriteOptions{}
	}
	record := &kgo.Record{
		Topic: topic,
		Value: body,
	}
	if opts.MessageID != "" {
		record.Key = []byte(opts.MessageID)
	}
	if opts.NotBefore != nil {
		record.Headers = append(
			record.Headers,
			kgo.RecordHeader{
				Key:   notBeforeHeader,
				Value: []byte(opts.NotBefore.UTC().Format(time.RFC3339Nano)),
			},
		)
	}
	return record
}

// Close is a no-op. All writers share the factory's client.
func (w *writer) Close(context.Context) error {
	return nil
}
