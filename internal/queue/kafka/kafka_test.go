package kafka

import (
	"testing"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestNewRecord(t *testing.T) {
	due := time.Date(2030, 1, 2, 3, 4, 5, 6, time.UTC)
	testCases := []struct {
		name       string
		opts       *queue.WriteOptions
		assertions func(*testing.T, *kgo.Record)
	}{
		{
			name: "nil options",
			assertions: func(t *testing.T, record *kgo.Record) {
				require.Equal(t, "foo", record.Topic)
				require.Equal(t, []byte("bar"), record.Value)
				require.Nil(t, record.Key)
				require.Empty(t, record.Headers)
				_, ok, err := notBefore(record)
				require.NoError(t, err)
				require.False(t, ok)
			},
		},
		{
			name: "message ID and not before",
			opts: &queue.WriteOptions{MessageID: "42", NotBefore: &due},
			assertions: func(t *testing.T, record *kgo.Record) {
				require.Equal(t, []byte("42"), record.Key)
				nb, ok, err := notBefore(record)
				require.NoError(t, err)
				require.True(t, ok)
				require.True(t, due.Equal(nb))
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			testCase.assertions(t, newRecord("foo", []byte("bar"), testCase.opts))
		})
	}
}

func TestNotBeforeMalformed(t *testing.T) {
	_, _, err := notBefore(
		&kgo.Record{
			Headers: []kgo.RecordHeader{
				{Key: notBeforeHeader, Value: []byte("tomorrow")},
			},
		},
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "error parsing not-before header")
}

func TestDeadLetterTopicName(t *testing.T) {
	require.Equal(t, "foo.deadletter", deadLetterTopicName("foo"))
}

func TestGetConfigFromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-0:9092,kafka-1:9092")
	c, err := GetConfigFromEnvironment()
	require.NoError(t, err)
	require.Equal(t, []string{"kafka-0:9092", "kafka-1:9092"}, c.Brokers)
	require.Equal(t, "queuebridge", c.ConsumerGroup)
	require.Equal(t, int32(1), c.Partitions)
	require.Equal(t, int16(1), c.ReplicationFactor)
	require.Len(t, c.clientOpts(), 1)

	t.Setenv("KAFKA_TLS_ENABLED", "true")
	t.Setenv("KAFKA_SASL_USERNAME", "foo")
	t.Setenv("KAFKA_SASL_PASSWORD", "bar")
	c, err = GetConfigFromEnvironment()
	require.NoError(t, err)
	require.Len(t, c.clientOpts(), 3)
}
