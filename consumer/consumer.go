package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/krancour/queuebridge/internal/messaging"
	"github.com/krancour/queuebridge/internal/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Consumer is an interface for the component that handles messages from the
// queue until told to stop.
type Consumer interface {
	Run(context.Context) error
}

type consumer struct {
	config          Config
	receiveEndpoint messaging.ReceiveEndpoint
	logger          *zap.Logger
	errCh           chan error // All goroutines will send fatal errors here
}

// NewConsumer returns a Consumer that runs the given ReceiveEndpoint alongside
// a metrics server.
func NewConsumer(
	config Config,
	receiveEndpoint messaging.ReceiveEndpoint,
	logger *zap.Logger,
) Consumer {
	return &consumer{
		config:          config,
		receiveEndpoint: receiveEndpoint,
		logger:          logger.Named("consumer"),
		errCh:           make(chan error, 2),
	}
}

func (c *consumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.receiveEndpoint.Run(ctx); err != nil {
			c.errCh <- errors.Wrap(err, "receive endpoint stopped")
		}
	}()

	if c.config.MetricsPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.serveMetrics(ctx); err != nil {
				c.errCh <- err
			}
		}()
	}

	// Wait for an error or a completed context
	var err error
	select {
	case err = <-c.errCh:
		cancel() // Shut it all down
	case <-ctx.Done():
	}

	wg.Wait()
	return err
}

func (c *consumer) serveMetrics(ctx context.Context) error {
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.MetricsPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	c.logger.Info(
		"metrics server is listening",
		zap.Int("port", c.config.MetricsPort),
	)
	select {
	case err := <-errCh:
		return errors.Wrap(err, "error serving metrics")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "error stopping metrics server")
}
