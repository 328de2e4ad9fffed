package messaging

import (
	"context"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
)

type testMessage struct {
	Value string `json:"value"`
}

func (testMessage) MessageType() string {
	return "urn:message:queuebridge:Test"
}

type otherMessage struct {
	Count int `json:"count"`
}

func (otherMessage) MessageType() string {
	return "urn:message:queuebridge:Other"
}

type mockWriterFactory struct {
	NewWriterFn func(queueName string) (queue.Writer, error)
	CloseFn     func(context.Context) error
}

func (m *mockWriterFactory) NewWriter(queueName string) (queue.Writer, error) {
	return m.NewWriterFn(queueName)
}

func (m *mockWriterFactory) Close(ctx context.Context) error {
	if m.CloseFn == nil {
		return nil
	}
	return m.CloseFn(ctx)
}

type mockWriter struct {
	WriteFn func(context.Context, []byte, *queue.WriteOptions) error
	closed  bool
}

func (m *mockWriter) Write(
	ctx context.Context,
	body []byte,
	opts *queue.WriteOptions,
) error {
	return m.WriteFn(ctx, body, opts)
}

func (m *mockWriter) Close(context.Context) error {
	m.closed = true
	return nil
}

type mockReaderFactory struct {
	NewReaderFn func(string, *queue.ReaderOptions) (queue.Reader, error)
}

func (m *mockReaderFactory) NewReader(
	queueName string,
	opts *queue.ReaderOptions,
) (queue.Reader, error) {
	return m.NewReaderFn(queueName, opts)
}

func (m *mockReaderFactory) Close(context.Context) error {
	return nil
}

var errBrokerUnavailable = errors.New("broker unavailable")
