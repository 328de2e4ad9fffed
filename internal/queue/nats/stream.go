package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/krancour/queuebridge/internal/retries"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	notBeforeHeader = "Not-Before"
	reasonHeader    = "Reason"
)

// streamName returns the name of the work queue stream backing a queue.
// Stream names may not contain ".", so those are replaced.
func streamName(queueName string) string {
	return strings.ToUpper(strings.ReplaceAll(queueName, ".", "_"))
}

func subjectName(queueName string) string {
	return fmt.Sprintf("queuebridge.%s", queueName)
}

func deadLetterSubjectName(queueName string) string {
	return fmt.Sprintf("queuebridge.%s.deadletter", queueName)
}

func durableName(queueName string) string {
	return fmt.Sprintf("%s-consumer", streamName(queueName))
}

func connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	var nc *nats.Conn
	err := retries.ManageRetries(
		context.Background(),
		logger,
		"connect",
		10,
		10*time.Second,
		func() (bool, error) {
			var err error
			if nc, err = nats.Connect(url); err != nil {
				return true, errors.Wrap(err, "error connecting to NATS")
			}
			return false, nil
		},
	)
	return nc, err
}

// ensureStreams creates the work queue stream for a queue and the stream that
// retains its dead letters if they do not already exist.
func ensureStreams(js nats.JetStreamContext, queueName string) error {
	for _, cfg := range []*nats.StreamConfig{
		{
			Name:      streamName(queueName),
			Subjects:  []string{subjectName(queueName)},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
		},
		{
			Name:      streamName(queueName) + "_DEADLETTER",
			Subjects:  []string{deadLetterSubjectName(queueName)},
			Retention: nats.LimitsPolicy,
			Storage:   nats.FileStorage,
		},
	} {
		_, err := js.StreamInfo(cfg.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return errors.Wrapf(err, "error looking up stream %q", cfg.Name)
		}
		if _, err = js.AddStream(cfg); err != nil {
			return errors.Wrapf(err, "error creating stream %q", cfg.Name)
		}
	}
	return nil
}
