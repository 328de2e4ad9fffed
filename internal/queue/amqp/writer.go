package amqp

import (
	"context"

	amqp "github.com/Azure/go-amqp"
	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
)

// scheduledEnqueueTimeAnnotation asks Azure Service Bus to withhold a message
// until the given time.
const scheduledEnqueueTimeAnnotation = "x-opt-scheduled-enqueue-time"

type writer struct {
	queueName string
	groupID   string
	session   *amqp.Session
	sender    *amqp.Sender
}

func (w *writer) Write(
	ctx context.Context,
	body []byte,
	opts *queue.WriteOptions,
) error {
	if err := w.sender.Send(ctx, w.newMessage(body, opts)); err != nil {
		return errors.Wrapf(
			err,
			"error sending AMQP message for queue %q",
			w.queueName,
		)
	}
	return nil
}

func (w *writer) newMessage(
	body []byte,
	opts *queue.WriteOptions,
) *amqp.Message {
	if opts == nil {
		opts = &queue.WriteOptions{}
	}
	msg := &amqp.Message{
		Header: &amqp.MessageHeader{
			Durable: true,
		},
		Data: [][]byte{body},
	}
	if opts.MessageID != "" || w.groupID != "" {
		msg.Properties = &amqp.MessageProperties{
			GroupID: w.groupID,
		}
		if opts.MessageID != "" {
			msg.Properties.MessageID = opts.MessageID
		}
	}
	if opts.NotBefore != nil {
		msg.Annotations = amqp.Annotations{
			scheduledEnqueueTimeAnnotation: opts.NotBefore.UTC(),
		}
	}
	return msg
}

func (w *writer) Close(ctx context.Context) error {
	if err := w.sender.Close(ctx); err != nil {
		return errors.Wrapf(
			err,
			"error closing AMQP sender for queue %q",
			w.queueName,
		)
	}
	if err := w.session.Close(ctx); err != nil {
		return errors.Wrapf(
			err,
			"error closing AMQP session for queue %q",
			w.queueName,
		)
	}
	return nil
}
