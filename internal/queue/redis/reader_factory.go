package redis

import (
	"context"

	"github.com/go-redis/redis"
	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"
)

type readerFactory struct {
	redisClient        *redis.Client
	prefix             string
	options            ReaderFactoryOptions
	logger             *zap.Logger
	schedulerScriptSHA string
	cleanerScriptSHA   string
}

// NewReaderFactory returns a queue.ReaderFactory that reads messages from
// Redis-backed queues. Each reader it creates heartbeats, moves due scheduled
// messages onto the pending list, and reclaims unsettled messages from readers
// that have stopped heartbeating.
func NewReaderFactory(
	config Config,
	options *ReaderFactoryOptions,
	logger *zap.Logger,
) (queue.ReaderFactory, error) {
	if options == nil {
		options = &ReaderFactoryOptions{}
	}
	opts := *options
	opts.applyDefaults()
	redisClient := newClient(config)
	r := &readerFactory{
		redisClient: redisClient,
		prefix:      config.Prefix,
		options:     opts,
		logger:      logger.Named("redis-reader-factory"),
	}
	var err error
	if r.schedulerScriptSHA, err =
		redisClient.ScriptLoad(schedulerScript).Result(); err != nil {
		redisClient.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "error loading scheduler script")
	}
	if r.cleanerScriptSHA, err =
		redisClient.ScriptLoad(cleanerScript).Result(); err != nil {
		redisClient.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "error loading cleaner script")
	}
	return r, nil
}

func (r *readerFactory) NewReader(
	queueName string,
	_ *queue.ReaderOptions,
) (queue.Reader, error) {
	consumerID := uuid.NewV4().String()
	rdr := &reader{
		id:                        consumerID,
		queueName:                 queueName,
		redisClient:               r.redisClient,
		options:                   r.options,
		logger:                    r.logger.With(zap.String("consumer", consumerID)),
		schedulerScriptSHA:        r.schedulerScriptSHA,
		cleanerScriptSHA:          r.cleanerScriptSHA,
		pendingListName:           pendingListName(r.prefix, queueName),
		messagesHashName:          messagesHashName(r.prefix, queueName),
		scheduledSetName:          scheduledSetName(r.prefix, queueName),
		deadLetterListName:        deadLetterListName(r.prefix, queueName),
		deadLetterReasonsHashName: deadLetterReasonsHashName(r.prefix, queueName),
		consumersSetName:          consumersSetName(r.prefix, queueName),
		activeListName:            activeListName(r.prefix, queueName, consumerID),
		errCh:                     make(chan error, 1),
		doneCh:                    make(chan struct{}),
	}
	// A reader is eligible for cleanup as soon as it is in the consumers set,
	// so the first heartbeat, which is also what adds it to that set, is sent
	// synchronously.
	if err := rdr.heartbeat(); err != nil {
		return nil, err
	}
	var ctx context.Context
	ctx, rdr.cancel = context.WithCancel(context.Background())
	go rdr.runMaintenance(ctx)
	return rdr, nil
}

func (r *readerFactory) Close(context.Context) error {
	if err := r.redisClient.Close(); err != nil {
		return errors.Wrap(err, "error closing redis client")
	}
	return nil
}
