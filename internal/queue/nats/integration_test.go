//go:build integration

package nats

import (
	"context"
	"testing"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	"go.uber.org/zap/zaptest"
)

// startNATS starts a JetStream-enabled NATS server.
func startNATS(t *testing.T) Config {
	ctx := context.Background()
	container, err := tcnats.Run(ctx, "nats:2.10-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})
	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return Config{URL: url}
}

func TestRoundTrip(t *testing.T) {
	config := startNATS(t)
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	writerFactory, err := NewWriterFactory(config, logger)
	require.NoError(t, err)
	defer writerFactory.Close(ctx)
	readerFactory, err := NewReaderFactory(config, logger)
	require.NoError(t, err)
	defer readerFactory.Close(ctx)

	w, err := writerFactory.NewWriter("foo")
	require.NoError(t, err)
	r, err := readerFactory.NewReader("foo", nil)
	require.NoError(t, err)
	defer r.Close(ctx)

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Immediate delivery, then Ack
	require.NoError(
		t,
		w.Write(ctx, []byte("bar"), &queue.WriteOptions{MessageID: "1"}),
	)
	msg, err := r.Read(readCtx)
	require.NoError(t, err)
	require.Equal(t, "1", msg.ID)
	require.Equal(t, "bar", string(msg.Body))
	require.NoError(t, msg.Ack(ctx))

	// A write that repeats an ID is dropped as a duplicate
	require.NoError(
		t,
		w.Write(ctx, []byte("bar"), &queue.WriteOptions{MessageID: "1"}),
	)

	// Nack publishes the message to the dead-letter subject
	require.NoError(
		t,
		w.Write(ctx, []byte("bat"), &queue.WriteOptions{MessageID: "2"}),
	)
	msg, err = r.Read(readCtx)
	require.NoError(t, err)
	require.Equal(t, "2", msg.ID)
	require.NoError(t, msg.Nack(ctx, "no good"))
	nc, err := nats.Connect(config.URL)
	require.NoError(t, err)
	defer nc.Close()
	js, err := nc.JetStream()
	require.NoError(t, err)
	deadLetter, err := js.GetLastMsg(
		streamName("foo")+"_DEADLETTER",
		deadLetterSubjectName("foo"),
	)
	require.NoError(t, err)
	require.Equal(t, "bat", string(deadLetter.Data))
	require.Equal(t, "no good", deadLetter.Header.Get(reasonHeader))

	// Scheduled delivery
	notBefore := time.Now().Add(time.Second)
	require.NoError(
		t,
		w.Write(
			ctx,
			[]byte("baz"),
			&queue.WriteOptions{MessageID: "3", NotBefore: &notBefore},
		),
	)
	msg, err = r.Read(readCtx)
	require.NoError(t, err)
	require.Equal(t, "3", msg.ID)
	require.False(t, time.Now().Before(notBefore.Truncate(time.Second)))
	require.NoError(t, msg.Ack(ctx))
}
