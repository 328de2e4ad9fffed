package main

import (
	"context"

	"github.com/krancour/queuebridge/internal/messaging"
	"github.com/krancour/queuebridge/sdk"
	"go.uber.org/zap"
)

type messageConsumer struct {
	logger *zap.Logger
}

func newMessageConsumer(logger *zap.Logger) messaging.Consumer[sdk.Message] {
	return &messageConsumer{
		logger: logger.Named("message-consumer"),
	}
}

func (m *messageConsumer) Consume(
	_ context.Context,
	consumeContext messaging.ConsumeContext[sdk.Message],
) messaging.Result {
	m.logger.Info(
		"Value",
		zap.String("value", consumeContext.Message.Value),
		zap.String("messageID", consumeContext.MessageID),
		zap.Int("attempt", consumeContext.Attempt),
	)
	return messaging.Ack()
}
