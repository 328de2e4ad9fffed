package redis

import (
	"context"

	"github.com/go-redis/redis"
	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

type writerFactory struct {
	redisClient *redis.Client
	prefix      string
}

// NewWriterFactory returns a queue.WriterFactory that writes messages to
// Redis-backed queues.
func NewWriterFactory(config Config) (queue.WriterFactory, error) {
	redisClient := newClient(config)
	if err := redisClient.Ping().Err(); err != nil {
		redisClient.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "error pinging redis")
	}
	return &writerFactory{
		redisClient: redisClient,
		prefix:      config.Prefix,
	}, nil
}

func (w *writerFactory) NewWriter(queueName string) (queue.Writer, error) {
	return &writer{
		queueName:        queueName,
		redisClient:      w.redisClient,
		pendingListName:  pendingListName(w.prefix, queueName),
		messagesHashName: messagesHashName(w.prefix, queueName),
		scheduledSetName: scheduledSetName(w.prefix, queueName),
	}, nil
}

func (w *writerFactory) Close(context.Context) error {
	if err := w.redisClient.Close(); err != nil {
		return errors.Wrap(err, "error closing redis client")
	}
	return nil
}

type writer struct {
	queueName   string
	redisClient *redis.Client
	// pendingListName is the key for the list of IDs for messages ready to be
	// handled.
	pendingListName string
	// messagesHashName is the key for the hash of messages indexed by message
	// ID.
	messagesHashName string
	// scheduledSetName is the key for the sorted set of IDs for messages to be
	// handled at or after some message-specific time in the future.
	scheduledSetName string
}

func (w *writer) Write(
	_ context.Context,
	body []byte,
	opts *queue.WriteOptions,
) error {
	if opts == nil {
		opts = &queue.WriteOptions{}
	}
	messageID := opts.MessageID
	if messageID == "" {
		messageID = uuid.NewV4().String()
	}

	pipeline := w.redisClient.TxPipeline()
	pipeline.HSet(w.messagesHashName, messageID, body)
	if opts.NotBefore == nil {
		pipeline.LPush(w.pendingListName, messageID)
	} else {
		pipeline.ZAdd(
			w.scheduledSetName,
			redis.Z{
				Score:  float64(opts.NotBefore.Unix()),
				Member: messageID,
			},
		)
	}
	if _, err := pipeline.Exec(); err != nil {
		return errors.Wrapf(
			err,
			"error writing message %q to queue %q",
			messageID,
			w.queueName,
		)
	}
	return nil
}

func (w *writer) Close(context.Context) error {
	return nil
}
