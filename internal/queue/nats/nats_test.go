package nats

import (
	"testing"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNames(t *testing.T) {
	require.Equal(t, "FOO_BAR", streamName("foo.bar"))
	require.Equal(t, "queuebridge.foo", subjectName("foo"))
	require.Equal(t, "queuebridge.foo.deadletter", deadLetterSubjectName("foo"))
	require.Equal(t, "FOO-consumer", durableName("foo"))
}

func TestNewMsg(t *testing.T) {
	due := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	testCases := []struct {
		name       string
		opts       *queue.WriteOptions
		assertions func(*testing.T, *nats.Msg, []nats.PubOpt)
	}{
		{
			name: "nil options",
			assertions: func(t *testing.T, msg *nats.Msg, pubOpts []nats.PubOpt) {
				require.Equal(t, "queuebridge.foo", msg.Subject)
				require.Equal(t, []byte("bar"), msg.Data)
				require.Empty(t, msg.Header.Get(notBeforeHeader))
				require.Empty(t, pubOpts)
			},
		},
		{
			name: "message ID and not before",
			opts: &queue.WriteOptions{MessageID: "42", NotBefore: &due},
			assertions: func(t *testing.T, msg *nats.Msg, pubOpts []nats.PubOpt) {
				require.Equal(
					t,
					"2030-01-02T03:04:05Z",
					msg.Header.Get(notBeforeHeader),
				)
				require.Len(t, pubOpts, 1)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			msg, pubOpts := newMsg("foo", []byte("bar"), testCase.opts)
			testCase.assertions(t, msg, pubOpts)
		})
	}
}

func TestReaderDelay(t *testing.T) {
	r := &reader{queueName: "foo", logger: zap.NewNop()}
	msg := nats.NewMsg("queuebridge.foo")
	require.Zero(t, r.delay(msg))
	msg.Header.Set(notBeforeHeader, "tomorrow")
	require.Zero(t, r.delay(msg))
	msg.Header.Set(
		notBeforeHeader,
		time.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano),
	)
	require.Greater(t, r.delay(msg), 59*time.Minute)
	msg.Header.Set(
		notBeforeHeader,
		time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano),
	)
	require.LessOrEqual(t, r.delay(msg), time.Duration(0))
}

func TestGetConfigFromEnvironment(t *testing.T) {
	c, err := GetConfigFromEnvironment()
	require.NoError(t, err)
	require.Equal(t, "nats://127.0.0.1:4222", c.URL)
	t.Setenv("NATS_URL", "nats://nats:4222")
	c, err = GetConfigFromEnvironment()
	require.NoError(t, err)
	require.Equal(t, "nats://nats:4222", c.URL)
}
