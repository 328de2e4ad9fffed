package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis"
	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type reader struct {
	id                 string
	queueName          string
	redisClient        *redis.Client
	options            ReaderFactoryOptions
	logger             *zap.Logger
	schedulerScriptSHA string
	cleanerScriptSHA   string
	// pendingListName is the key for the list of IDs for messages ready to be
	// handled.
	pendingListName string
	// messagesHashName is the key for the hash of messages indexed by message
	// ID.
	messagesHashName string
	// scheduledSetName is the key for the sorted set of IDs for messages to be
	// handled at or after some message-specific time in the future.
	scheduledSetName string
	// deadLetterListName is the key for the list of IDs for rejected messages.
	deadLetterListName string
	// deadLetterReasonsHashName is the key for the hash of rejection reasons
	// indexed by message ID.
	deadLetterReasonsHashName string
	// consumersSetName is the key for the sorted set of all readers' active
	// lists, scored by each reader's most recent heartbeat.
	consumersSetName string
	// activeListName is the key for the list of IDs for messages this reader has
	// received but not yet settled.
	activeListName string

	cancel context.CancelFunc
	errCh  chan error
	doneCh chan struct{}
}

func (r *reader) Read(ctx context.Context) (*queue.Message, error) {
	for {
		select {
		case err := <-r.errCh:
			return nil, errors.Wrapf(
				err,
				"queue %q consumer %q is broken",
				r.queueName,
				r.id,
			)
		case <-ctx.Done():
			return nil, errors.Wrapf(
				ctx.Err(),
				"error reading from queue %q",
				r.queueName,
			)
		default:
		}
		messageID, err := r.redisClient.BRPopLPush(
			r.pendingListName,
			r.activeListName,
			r.options.ReceiveTimeout,
		).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(
				err,
				"error receiving message from queue %q",
				r.queueName,
			)
		}
		body, err := r.redisClient.HGet(r.messagesHashName, messageID).Bytes()
		if err == redis.Nil {
			// The message was settled by someone else after being reclaimed. Drop
			// the stale ID and move on.
			r.logger.Warn(
				"dropping ID of message with no body",
				zap.String("messageID", messageID),
			)
			if err = r.redisClient.LRem(
				r.activeListName,
				-1,
				messageID,
			).Err(); err != nil {
				return nil, errors.Wrapf(
					err,
					"error removing message %q from active list",
					messageID,
				)
			}
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(
				err,
				"error retrieving message %q from queue %q",
				messageID,
				r.queueName,
			)
		}
		return &queue.Message{
			ID:   messageID,
			Body: body,
			Ack: func(context.Context) error {
				return r.ack(messageID)
			},
			Nack: func(_ context.Context, reason string) error {
				return r.nack(messageID, reason)
			},
		}, nil
	}
}

func (r *reader) ack(messageID string) error {
	pipeline := r.redisClient.TxPipeline()
	pipeline.LRem(r.activeListName, -1, messageID)
	pipeline.HDel(r.messagesHashName, messageID)
	if _, err := pipeline.Exec(); err != nil {
		return errors.Wrapf(
			err,
			"error acknowledging message %q from queue %q",
			messageID,
			r.queueName,
		)
	}
	return nil
}

func (r *reader) nack(messageID string, reason string) error {
	pipeline := r.redisClient.TxPipeline()
	pipeline.LRem(r.activeListName, -1, messageID)
	pipeline.LPush(r.deadLetterListName, messageID)
	pipeline.HSet(r.deadLetterReasonsHashName, messageID, reason)
	if _, err := pipeline.Exec(); err != nil {
		return errors.Wrapf(
			err,
			"error dead-lettering message %q from queue %q",
			messageID,
			r.queueName,
		)
	}
	return nil
}

// Close stops maintenance, returns any unsettled messages to the pending list,
// and withdraws this reader from the consumers set.
func (r *reader) Close(context.Context) error {
	r.cancel()
	<-r.doneCh
	for {
		err := r.redisClient.RPopLPush(
			r.activeListName,
			r.pendingListName,
		).Err()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return errors.Wrapf(
				err,
				"error returning unsettled messages to queue %q",
				r.queueName,
			)
		}
	}
	if err := r.redisClient.ZRem(
		r.consumersSetName,
		r.activeListName,
	).Err(); err != nil {
		return errors.Wrapf(
			err,
			"error removing consumer %q from queue %q consumers set",
			r.id,
			r.queueName,
		)
	}
	return nil
}

// heartbeat records proof of life to prevent other readers from reclaiming
// work currently assigned to this reader.
func (r *reader) heartbeat() error {
	if err := r.redisClient.ZAdd(
		r.consumersSetName,
		redis.Z{
			Score:  float64(time.Now().Unix()),
			Member: r.activeListName,
		},
	).Err(); err != nil {
		return errors.Wrapf(
			err,
			"error sending heartbeat for queue %q consumer %q",
			r.queueName,
			r.id,
		)
	}
	return nil
}

// schedule moves messages whose scheduled time has elapsed to the pending list.
func (r *reader) schedule() error {
	if err := r.redisClient.EvalSha(
		r.schedulerScriptSHA,
		[]string{r.scheduledSetName, r.pendingListName},
		time.Now().Unix(),
		50, // Max number of messages to move in one shot
	).Err(); err != nil {
		return errors.Wrapf(
			err,
			"error scheduling messages for queue %q",
			r.queueName,
		)
	}
	return nil
}

// clean returns unsettled messages from dead readers to the pending list.
func (r *reader) clean() error {
	if err := r.redisClient.EvalSha(
		r.cleanerScriptSHA,
		[]string{r.consumersSetName, r.pendingListName},
		time.Now().Add(-r.options.DeadConsumerThreshold).Unix(),
	).Err(); err != nil {
		return errors.Wrapf(
			err,
			"error reclaiming messages for queue %q",
			r.queueName,
		)
	}
	return nil
}

// runMaintenance heartbeats, schedules, and cleans at regular intervals until
// the context is canceled. If any one of these fails too many consecutive
// times, the reader is marked broken and Read will return an error.
func (r *reader) runMaintenance(ctx context.Context) {
	defer close(r.doneCh)
	heartbeatTicker := time.NewTicker(r.options.HeartbeatInterval)
	defer heartbeatTicker.Stop()
	schedulerTicker := time.NewTicker(r.options.SchedulerInterval)
	defer schedulerTicker.Stop()
	cleanerTicker := time.NewTicker(r.options.CleanerInterval)
	defer cleanerTicker.Stop()
	failures := map[string]uint8{}
	for {
		var task string
		var fn func() error
		select {
		case <-heartbeatTicker.C:
			task, fn = "heartbeat", r.heartbeat
		case <-schedulerTicker.C:
			task, fn = "scheduler", r.schedule
		case <-cleanerTicker.C:
			task, fn = "cleaner", r.clean
		case <-ctx.Done():
			return
		}
		if err := fn(); err != nil {
			failures[task]++
			r.logger.Warn(
				"maintenance task failed",
				zap.String("task", task),
				zap.Uint8("failures", failures[task]),
				zap.Error(err),
			)
			if failures[task] >= r.options.MaxMaintenanceFailures {
				select {
				case r.errCh <- err:
				default:
				}
				return
			}
			continue
		}
		failures[task] = 0
	}
}
