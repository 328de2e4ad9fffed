package main

import (
	"context"
	"log"
	"time"

	"github.com/krancour/queuebridge/internal/logging"
	"github.com/krancour/queuebridge/internal/signals"
	"github.com/krancour/queuebridge/internal/version"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.NewLoggerFromEnvironment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() // nolint: errcheck

	logger.Info(
		"Starting queuebridge API Server",
		zap.String("version", version.Version()),
		zap.String("commit", version.Commit()),
	)

	apiServer, sendEndpoint, err := getAPIServerFromEnvironment(logger)
	if err != nil {
		logger.Fatal("error initializing API server", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sendEndpoint.Close(ctx); err != nil {
			logger.Error("error closing send endpoint", zap.Error(err))
		}
	}()

	if err := apiServer.ListenAndServe(signals.Context()); err != nil {
		logger.Error("API server stopped", zap.Error(err))
	}
}
