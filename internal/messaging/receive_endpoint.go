package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/krancour/queuebridge/internal/metrics"
	"github.com/krancour/queuebridge/internal/queue"
	"github.com/krancour/queuebridge/internal/retries"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConsumeContext carries a decoded message and its envelope metadata to a
// Consumer.
type ConsumeContext[T Contract] struct {
	MessageID string
	SentTime  time.Time
	// Attempt is 1 for the first delivery and increases with every retry.
	Attempt int
	Message T
}

// Consumer is an interface for components that handle one type of contract.
type Consumer[T Contract] interface {
	// Consume handles a single message and returns what should become of it.
	Consume(ctx context.Context, consumeContext ConsumeContext[T]) Result
}

// ConsumerFunc adapts an ordinary function to the Consumer interface.
type ConsumerFunc[T Contract] func(context.Context, ConsumeContext[T]) Result

// Consume calls f.
func (f ConsumerFunc[T]) Consume(
	ctx context.Context,
	consumeContext ConsumeContext[T],
) Result {
	return f(ctx, consumeContext)
}

// ReceiveEndpointConfig represents configuration for a ReceiveEndpoint.
type ReceiveEndpointConfig struct {
	// QueueName is the queue the endpoint reads from.
	QueueName string
	// MaxConcurrentCalls caps how many Consume invocations may run at once.
	// Values less than 1 are treated as 1.
	MaxConcurrentCalls int
	// MaxAttempts is the number of deliveries after which a Retry result
	// becomes a Nack. Values less than 1 are treated as 1.
	MaxAttempts int
	// RetryDelay is the delay applied to a retry when a Consume invocation
	// panics.
	RetryDelay time.Duration
	// SettleTimeout bounds each Ack, Nack, or retry write. Defaults to 10
	// seconds.
	SettleTimeout time.Duration
	// MaxRebuildBackoff caps the delay before replacing a reader that failed.
	// Defaults to 30 seconds.
	MaxRebuildBackoff time.Duration
}

// ReceiveEndpoint is an interface for components that deliver messages from a
// single queue to a Consumer.
type ReceiveEndpoint interface {
	// Run reads and dispatches messages until the context is canceled or an
	// unrecoverable error occurs. When the context is canceled, Run returns
	// only after in-flight invocations have finished and been settled.
	Run(ctx context.Context) error
}

type receiveEndpoint[T Contract] struct {
	readerFactory queue.ReaderFactory
	writerFactory queue.WriterFactory
	config        ReceiveEndpointConfig
	consumer      Consumer[T]
	messageType   string
	logger        *zap.Logger

	retryWriter   queue.Writer
	retryWriterMu sync.Mutex
}

// NewReceiveEndpoint returns a ReceiveEndpoint that reads from the configured
// queue using the given queue.ReaderFactory and dispatches to the given
// Consumer. Retries are written back to the same queue using the given
// queue.WriterFactory.
func NewReceiveEndpoint[T Contract](
	readerFactory queue.ReaderFactory,
	writerFactory queue.WriterFactory,
	config ReceiveEndpointConfig,
	consumer Consumer[T],
	logger *zap.Logger,
) ReceiveEndpoint {
	if config.MaxConcurrentCalls < 1 {
		config.MaxConcurrentCalls = 1
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.SettleTimeout <= 0 {
		config.SettleTimeout = 10 * time.Second
	}
	if config.MaxRebuildBackoff <= 0 {
		config.MaxRebuildBackoff = 30 * time.Second
	}
	var zero T
	return &receiveEndpoint[T]{
		readerFactory: readerFactory,
		writerFactory: writerFactory,
		config:        config,
		consumer:      consumer,
		messageType:   zero.MessageType(),
		logger: logger.Named("receive-endpoint").With(
			zap.String("queue", config.QueueName),
		),
	}
}

func (r *receiveEndpoint[T]) Run(ctx context.Context) error {
	// Each slot in the semaphore is one Consume invocation that may run.
	slots := make(chan struct{}, r.config.MaxConcurrentCalls)
	var wg sync.WaitGroup
	var reader queue.Reader
	var cancelReader context.CancelFunc
	// Reader failures since the last successful Read
	var failures uint8
	readerFailed := func() {
		if ctx.Err() == nil && failures < math.MaxUint8 {
			failures++
		}
	}

	defer r.closeRetryWriter()

outerLoop:
	for {

		// In-flight invocations settle through the current reader, so they must
		// finish before it is closed.
		wg.Wait()
		if reader != nil {
			cancelReader()
			func() {
				closeCtx, cancelCloseCtx :=
					context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelCloseCtx()
				if err := reader.Close(closeCtx); err != nil {
					r.logger.Warn("error closing reader", zap.Error(err))
				}
			}()
			reader = nil
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if failures > 0 {
			delay := retries.JitteredExpBackoff(
				failures,
				r.config.MaxRebuildBackoff,
			)
			r.logger.Debug(
				"waiting before replacing reader",
				zap.Uint8("failures", failures),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
		}

		var err error
		if reader, err = r.readerFactory.NewReader(
			r.config.QueueName,
			&queue.ReaderOptions{
				Prefetch: r.config.MaxConcurrentCalls,
			},
		); err != nil { // It's fatal if we can't get a queue reader
			return errors.Wrapf(
				err,
				"error creating reader for queue %q",
				r.config.QueueName,
			)
		}
		// A failed disposition cancels readerCtx, which abandons this reader.
		var readerCtx context.Context
		readerCtx, cancelReader = context.WithCancel(ctx)

		for {
			// Don't take a message off the queue until there's a slot to work on
			// it, otherwise we could end up claiming work we're not ready to do.
			select {
			case slots <- struct{}{}:
			case <-readerCtx.Done():
				readerFailed()
				continue outerLoop
			}

			msg, err := reader.Read(readerCtx)
			if err != nil {
				<-slots
				if readerCtx.Err() == nil {
					r.logger.Warn("error reading message", zap.Error(err))
				}
				readerFailed()
				continue outerLoop // Try again with a new reader
			}
			failures = 0

			wg.Add(1)
			go func(abandonReader context.CancelFunc) {
				defer wg.Done()
				defer func() { <-slots }()
				if err := r.handle(ctx, msg); err != nil {
					r.logger.Error(
						"error settling message; abandoning reader",
						zap.String("messageID", msg.ID),
						zap.Error(err),
					)
					abandonReader()
				}
			}(cancelReader)
		}

	}
}

// handle decodes, consumes, and settles a single message. The returned error
// is non-nil only if the message could not be settled.
func (r *receiveEndpoint[T]) handle(ctx context.Context, msg *queue.Message) error {
	start := time.Now()
	envelope, result := r.dispatch(ctx, msg)
	metrics.ConsumeDuration.WithLabelValues(r.config.QueueName).
		Observe(time.Since(start).Seconds())

	if result.Kind == ResultKindRetry && envelope.Attempt >= r.config.MaxAttempts {
		result = Nack("maximum attempts exceeded")
	}

	// Settling must outlive shutdown so that finished work isn't redelivered.
	settleCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx),
		r.config.SettleTimeout,
	)
	defer cancel()

	var err error
	switch result.Kind {
	case ResultKindAck:
		err = msg.Ack(settleCtx)
	case ResultKindNack:
		r.logger.Warn(
			"rejecting message",
			zap.String("messageID", envelope.MessageID),
			zap.String("reason", result.Reason),
		)
		err = msg.Nack(settleCtx, result.Reason)
	case ResultKindRetry:
		if err = r.scheduleRetry(settleCtx, envelope, result.Delay); err == nil {
			err = msg.Ack(settleCtx)
		}
	default:
		err = errors.Errorf("unknown result kind %d", result.Kind)
	}
	if err != nil {
		return errors.Wrapf(
			err,
			"error applying %s to message %q",
			result.Kind,
			envelope.MessageID,
		)
	}
	metrics.MessagesConsumed.WithLabelValues(
		r.config.QueueName,
		result.Kind.String(),
	).Inc()
	return nil
}

// dispatch decodes a message and hands it to the consumer. Messages that can't
// be decoded, or that are of the wrong type, are poison and get a Nack.
func (r *receiveEndpoint[T]) dispatch(
	ctx context.Context,
	msg *queue.Message,
) (Envelope, Result) {
	envelope, err := DecodeEnvelope(msg.Body)
	if err != nil {
		return envelope, Nack(fmt.Sprintf("malformed envelope: %s", err))
	}
	if envelope.MessageType != r.messageType {
		return envelope, Nack(
			fmt.Sprintf("unexpected message type %q", envelope.MessageType),
		)
	}
	var contract T
	if err = json.Unmarshal(envelope.Message, &contract); err != nil {
		return envelope, Nack(fmt.Sprintf("malformed message: %s", err))
	}
	return envelope, r.consume(
		ctx,
		ConsumeContext[T]{
			MessageID: envelope.MessageID,
			SentTime:  envelope.SentTime,
			Attempt:   envelope.Attempt,
			Message:   contract,
		},
	)
}

// consume invokes the consumer, converting a panic into a Retry.
func (r *receiveEndpoint[T]) consume(
	ctx context.Context,
	consumeContext ConsumeContext[T],
) (result Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error(
				"consumer panicked",
				zap.String("messageID", consumeContext.MessageID),
				zap.Any("panic", p),
			)
			result = Retry(r.config.RetryDelay)
		}
	}()
	return r.consumer.Consume(ctx, consumeContext)
}

// scheduleRetry writes the next attempt of a message back to the queue, not
// to be delivered until the delay has elapsed.
func (r *receiveEndpoint[T]) scheduleRetry(
	ctx context.Context,
	envelope Envelope,
	delay time.Duration,
) error {
	writer, err := r.getRetryWriter()
	if err != nil {
		return err
	}
	next := envelope.Next()
	nextJSON, err := next.Encode()
	if err != nil {
		return err
	}
	notBefore := time.Now().Add(delay)
	if err = writer.Write(
		ctx,
		nextJSON,
		&queue.WriteOptions{
			MessageID: next.DeliveryID(),
			NotBefore: &notBefore,
		},
	); err != nil {
		return errors.Wrapf(
			err,
			"error scheduling attempt %d of message %q",
			next.Attempt,
			next.MessageID,
		)
	}
	return nil
}

func (r *receiveEndpoint[T]) getRetryWriter() (queue.Writer, error) {
	r.retryWriterMu.Lock()
	defer r.retryWriterMu.Unlock()
	if r.retryWriter == nil {
		var err error
		if r.retryWriter, err = r.writerFactory.NewWriter(
			r.config.QueueName,
		); err != nil {
			return nil, errors.Wrapf(
				err,
				"error creating writer for queue %q",
				r.config.QueueName,
			)
		}
	}
	return r.retryWriter, nil
}

func (r *receiveEndpoint[T]) closeRetryWriter() {
	r.retryWriterMu.Lock()
	defer r.retryWriterMu.Unlock()
	if r.retryWriter == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.retryWriter.Close(closeCtx); err != nil {
		r.logger.Warn("error closing retry writer", zap.Error(err))
	}
	r.retryWriter = nil
}
