package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	notBeforeHeader = "not-before"
	reasonHeader    = "reason"
)

func deadLetterTopicName(topic string) string {
	return fmt.Sprintf("%s.deadletter", topic)
}

// ensureTopics creates the topic and its dead-letter topic if they do not
// already exist.
func ensureTopics(
	ctx context.Context,
	kcl *kgo.Client,
	config Config,
	topic string,
) error {
	resps, err := kadm.NewClient(kcl).CreateTopics(
		ctx,
		config.Partitions,
		config.ReplicationFactor,
		nil,
		topic,
		deadLetterTopicName(topic),
	)
	if err != nil {
		return errors.Wrapf(err, "error creating topics for %q", topic)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return errors.Wrapf(resp.Err, "error creating topic %q", resp.Topic)
		}
	}
	return nil
}

func header(record *kgo.Record, key string) (string, bool) {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}

// notBefore returns the time before which a record must not be handled, if
// any.
func notBefore(record *kgo.Record) (time.Time, bool, error) {
	value, ok := header(record, notBeforeHeader)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, errors.Wrapf(
			err,
			"error parsing %s header %q",
			notBeforeHeader,
			value,
		)
	}
	return t, true, nil
}
