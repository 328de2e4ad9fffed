package amqp

import (
	"context"
	"fmt"

	amqp "github.com/Azure/go-amqp"
	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
)

// rejectCondition is the error condition reported to the broker when a message
// is rejected.
const rejectCondition = amqp.ErrorCondition("queuebridge:rejected")

type reader struct {
	queueName string
	session   *amqp.Session
	receiver  *amqp.Receiver
}

func (r *reader) Read(ctx context.Context) (*queue.Message, error) {
	amqpMsg, err := r.receiver.Receive(ctx)
	if err != nil {
		return nil, errors.Wrapf(
			err,
			"error receiving AMQP message for queue %q",
			r.queueName,
		)
	}
	return &queue.Message{
		ID:   messageID(amqpMsg),
		Body: amqpMsg.GetData(),
		Ack: func(context.Context) error {
			return errors.Wrap(amqpMsg.Accept(), "error accepting AMQP message")
		},
		Nack: func(_ context.Context, reason string) error {
			return errors.Wrap(
				amqpMsg.Reject(
					&amqp.Error{
						Condition:   rejectCondition,
						Description: reason,
					},
				),
				"error rejecting AMQP message",
			)
		},
	}, nil
}

func messageID(amqpMsg *amqp.Message) string {
	if amqpMsg.Properties == nil || amqpMsg.Properties.MessageID == nil {
		return ""
	}
	return fmt.Sprintf("%v", amqpMsg.Properties.MessageID)
}

func (r *reader) Close(ctx context.Context) error {
	if err := r.receiver.Close(ctx); err != nil {
		return errors.Wrapf(
			err,
			"error closing AMQP receiver for queue %q",
			r.queueName,
		)
	}
	if err := r.session.Close(ctx); err != nil {
		return errors.Wrapf(
			err,
			"error closing AMQP session for queue %q",
			r.queueName,
		)
	}
	return nil
}
