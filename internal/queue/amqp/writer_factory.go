package amqp

import (
	"context"

	amqp "github.com/Azure/go-amqp"
	"github.com/krancour/queuebridge/internal/queue"
	"go.uber.org/zap"
)

type writerFactory struct {
	conn *connection
}

// NewWriterFactory returns a queue.WriterFactory that sends messages over a
// single AMQP 1.0 connection.
func NewWriterFactory(
	config Config,
	logger *zap.Logger,
) (queue.WriterFactory, error) {
	conn, err := newConnection(config, logger.Named("amqp-writer-factory"))
	if err != nil {
		return nil, err
	}
	return &writerFactory{
		conn: conn,
	}, nil
}

func (w *writerFactory) NewWriter(queueName string) (queue.Writer, error) {
	baseName, groupID := w.conn.splitQueueName(queueName)
	var sender *amqp.Sender
	session, err := w.conn.newSession(func(session *amqp.Session) error {
		var err error
		sender, err = session.NewSender(amqp.LinkTargetAddress(baseName))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &writer{
		queueName: baseName,
		groupID:   groupID,
		session:   session,
		sender:    sender,
	}, nil
}

func (w *writerFactory) Close(context.Context) error {
	return w.conn.close()
}
