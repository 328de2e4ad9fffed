package messaging

import (
	"context"
	"sync"

	"github.com/krancour/queuebridge/internal/metrics"
	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SendEndpoint is an interface for components that hand contracts to a
// broker.
type SendEndpoint interface {
	// Send wraps the contract in a new Envelope and writes it to the queue
	// that the endpoint conventions map its type to. It returns the ID of the
	// message that was sent.
	Send(ctx context.Context, contract Contract) (string, error)
	// Close closes all writers and the underlying writer factory.
	Close(context.Context) error
}

type sendEndpoint struct {
	writerFactory queue.WriterFactory
	conventions   *EndpointConventions
	logger        *zap.Logger
	writers       map[string]queue.Writer
	writersMu     sync.Mutex
}

// NewSendEndpoint returns a SendEndpoint that writes through the given
// queue.WriterFactory. One writer per queue is created on first use and
// reused after that.
func NewSendEndpoint(
	writerFactory queue.WriterFactory,
	conventions *EndpointConventions,
	logger *zap.Logger,
) SendEndpoint {
	return &sendEndpoint{
		writerFactory: writerFactory,
		conventions:   conventions,
		logger:        logger.Named("send-endpoint"),
		writers:       map[string]queue.Writer{},
	}
}

func (s *sendEndpoint) Send(
	ctx context.Context,
	contract Contract,
) (string, error) {
	queueName, ok := s.conventions.QueueFor(contract.MessageType())
	if !ok {
		return "", errors.Errorf(
			"no endpoint convention for message type %q",
			contract.MessageType(),
		)
	}
	envelope, err := NewEnvelope(contract)
	if err != nil {
		return "", err
	}
	envelopeJSON, err := envelope.Encode()
	if err != nil {
		return "", err
	}
	writer, err := s.getWriter(queueName)
	if err != nil {
		metrics.MessagesSent.WithLabelValues(queueName, metrics.ResultFailure).Inc()
		return "", errors.Wrapf(err, "error getting writer for queue %q", queueName)
	}
	if err = writer.Write(
		ctx,
		envelopeJSON,
		&queue.WriteOptions{
			MessageID: envelope.DeliveryID(),
		},
	); err != nil {
		metrics.MessagesSent.WithLabelValues(queueName, metrics.ResultFailure).Inc()
		return "", errors.Wrapf(
			err,
			"error sending message %q to queue %q",
			envelope.MessageID,
			queueName,
		)
	}
	metrics.MessagesSent.WithLabelValues(queueName, metrics.ResultSuccess).Inc()
	s.logger.Debug(
		"sent message",
		zap.String("queue", queueName),
		zap.String("messageID", envelope.MessageID),
		zap.String("messageType", envelope.MessageType),
	)
	return envelope.MessageID, nil
}

func (s *sendEndpoint) getWriter(queueName string) (queue.Writer, error) {
	s.writersMu.Lock()
	defer s.writersMu.Unlock()
	if writer, ok := s.writers[queueName]; ok {
		return writer, nil
	}
	writer, err := s.writerFactory.NewWriter(queueName)
	if err != nil {
		return nil, err
	}
	s.writers[queueName] = writer
	return writer, nil
}

func (s *sendEndpoint) Close(ctx context.Context) error {
	s.writersMu.Lock()
	defer s.writersMu.Unlock()
	for queueName, writer := range s.writers {
		if err := writer.Close(ctx); err != nil {
			s.logger.Warn(
				"error closing writer",
				zap.String("queue", queueName),
				zap.Error(err),
			)
		}
		delete(s.writers, queueName)
	}
	return s.writerFactory.Close(ctx)
}
