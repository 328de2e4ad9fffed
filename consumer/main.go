package main

import (
	"context"
	"log"
	"time"

	"github.com/krancour/queuebridge/internal/logging"
	"github.com/krancour/queuebridge/internal/messaging"
	"github.com/krancour/queuebridge/internal/queue/transport"
	"github.com/krancour/queuebridge/internal/signals"
	"github.com/krancour/queuebridge/internal/version"
	"github.com/krancour/queuebridge/sdk"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.NewLoggerFromEnvironment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() // nolint: errcheck

	logger.Info(
		"Starting queuebridge Consumer",
		zap.String("version", version.Version()),
		zap.String("commit", version.Commit()),
	)

	config, err := GetConfigFromEnvironment()
	if err != nil {
		logger.Fatal("error getting consumer configuration", zap.Error(err))
	}

	queueConfig, err := transport.GetConfigFromEnvironment()
	if err != nil {
		logger.Fatal("error getting queue configuration", zap.Error(err))
	}
	readerFactory, err := transport.GetReaderFactoryFromEnvironment(
		queueConfig.Transport,
		logger,
	)
	if err != nil {
		logger.Fatal("error initializing queue reader factory", zap.Error(err))
	}
	// Retries are scheduled by writing back to the same queue.
	writerFactory, err := transport.GetWriterFactoryFromEnvironment(
		queueConfig.Transport,
		logger,
	)
	if err != nil {
		logger.Fatal("error initializing queue writer factory", zap.Error(err))
	}

	receiveEndpoint := messaging.NewReceiveEndpoint[sdk.Message](
		readerFactory,
		writerFactory,
		messaging.ReceiveEndpointConfig{
			QueueName:          queueConfig.Name,
			MaxConcurrentCalls: config.MaxConcurrentCalls,
			MaxAttempts:        config.MaxAttempts,
			RetryDelay:         config.RetryDelay,
		},
		newMessageConsumer(logger),
		logger,
	)

	if err = NewConsumer(config, receiveEndpoint, logger).Run(
		signals.Context(),
	); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := readerFactory.Close(ctx); err != nil {
		logger.Error("error closing queue reader factory", zap.Error(err))
	}
	if err := writerFactory.Close(ctx); err != nil {
		logger.Error("error closing queue writer factory", zap.Error(err))
	}
}
