package amqp

import (
	"context"

	amqp "github.com/Azure/go-amqp"
	"github.com/krancour/queuebridge/internal/queue"
	"go.uber.org/zap"
)

type readerFactory struct {
	conn *connection
}

// NewReaderFactory returns a queue.ReaderFactory that receives messages over a
// single AMQP 1.0 connection.
func NewReaderFactory(
	config Config,
	logger *zap.Logger,
) (queue.ReaderFactory, error) {
	conn, err := newConnection(config, logger.Named("amqp-reader-factory"))
	if err != nil {
		return nil, err
	}
	return &readerFactory{
		conn: conn,
	}, nil
}

func (r *readerFactory) NewReader(
	queueName string,
	opts *queue.ReaderOptions,
) (queue.Reader, error) {
	baseName, groupID := r.conn.splitQueueName(queueName)
	linkOpts := r.linkOptions(baseName, groupID, opts)
	var receiver *amqp.Receiver
	session, err := r.conn.newSession(func(session *amqp.Session) error {
		var err error
		receiver, err = session.NewReceiver(linkOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &reader{
		queueName: baseName,
		session:   session,
		receiver:  receiver,
	}, nil
}

func (r *readerFactory) linkOptions(
	baseName string,
	groupID string,
	opts *queue.ReaderOptions,
) []amqp.LinkOption {
	linkOpts := []amqp.LinkOption{
		amqp.LinkSourceAddress(baseName),
		// Credit is kept equal to the number of messages the consumer can work on
		// at once so that nothing piles up in a client-side buffer.
		amqp.LinkCredit(uint32(opts.PrefetchOrDefault())),
	}
	if r.conn.isAzureServiceBus {
		linkOpts = append(linkOpts, linkAzureSessionFilter(groupID))
	}
	return linkOpts
}

func (r *readerFactory) Close(context.Context) error {
	return r.conn.close()
}

func linkAzureSessionFilter(sessionID string) amqp.LinkOption {
	const name = "com.microsoft:session-filter"
	const code = uint64(0x00000137000000C)
	return amqp.LinkSourceFilter(name, code, sessionID)
}
