package core

import (
	"context"

	"github.com/krancour/queuebridge/internal/messaging"
	"github.com/krancour/queuebridge/sdk"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TestMessageValue is the value carried by Messages created without caller
// input.
const TestMessageValue = "Test"

// MessagesService is the specialized interface for handing Messages to the
// queue.
type MessagesService interface {
	// Create sends a Message whose value is TestMessageValue.
	Create(ctx context.Context) error
	// Send sends the provided Message and returns a receipt bearing the ID it
	// was sent with.
	Send(ctx context.Context, message sdk.Message) (sdk.MessageReceipt, error)
}

type messagesService struct {
	sendEndpoint messaging.SendEndpoint
	logger       *zap.Logger
}

// NewMessagesService returns a specialized interface for handing Messages to
// the queue.
func NewMessagesService(
	sendEndpoint messaging.SendEndpoint,
	logger *zap.Logger,
) MessagesService {
	return &messagesService{
		sendEndpoint: sendEndpoint,
		logger:       logger.Named("messages-service"),
	}
}

func (m *messagesService) Create(ctx context.Context) error {
	_, err := m.Send(ctx, sdk.Message{Value: TestMessageValue})
	return err
}

func (m *messagesService) Send(
	ctx context.Context,
	message sdk.Message,
) (sdk.MessageReceipt, error) {
	id, err := m.sendEndpoint.Send(ctx, message)
	if err != nil {
		return sdk.MessageReceipt{}, errors.Wrap(err, "error sending message")
	}
	m.logger.Debug("sent message", zap.String("messageID", id))
	return sdk.MessageReceipt{ID: id}, nil
}
