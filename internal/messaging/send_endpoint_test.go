package messaging

import (
	"context"
	"testing"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/krancour/queuebridge/internal/queue/memory"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendEndpointSend(t *testing.T) {
	testCases := []struct {
		name          string
		writerFactory func(*testing.T) queue.WriterFactory
		contract      Contract
		assertions    func(t *testing.T, messageID string, err error)
	}{
		{
			name: "no endpoint convention",
			writerFactory: func(t *testing.T) queue.WriterFactory {
				return &mockWriterFactory{
					NewWriterFn: func(string) (queue.Writer, error) {
						require.Fail(t, "NewWriter should not have been called")
						return nil, nil
					},
				}
			},
			contract: otherMessage{Count: 1},
			assertions: func(t *testing.T, _ string, err error) {
				require.Error(t, err)
				require.Contains(t, err.Error(), "no endpoint convention")
			},
		},
		{
			name: "error getting writer",
			writerFactory: func(*testing.T) queue.WriterFactory {
				return &mockWriterFactory{
					NewWriterFn: func(string) (queue.Writer, error) {
						return nil, errBrokerUnavailable
					},
				}
			},
			contract: testMessage{Value: "Test"},
			assertions: func(t *testing.T, _ string, err error) {
				require.Error(t, err)
				require.Equal(t, errBrokerUnavailable, errors.Cause(err))
			},
		},
		{
			name: "error writing",
			writerFactory: func(*testing.T) queue.WriterFactory {
				return &mockWriterFactory{
					NewWriterFn: func(string) (queue.Writer, error) {
						return &mockWriter{
							WriteFn: func(
								context.Context,
								[]byte,
								*queue.WriteOptions,
							) error {
								return errBrokerUnavailable
							},
						}, nil
					},
				}
			},
			contract: testMessage{Value: "Test"},
			assertions: func(t *testing.T, _ string, err error) {
				require.Error(t, err)
				require.Contains(t, err.Error(), `to queue "foo"`)
				require.Equal(t, errBrokerUnavailable, errors.Cause(err))
			},
		},
		{
			name: "success",
			writerFactory: func(t *testing.T) queue.WriterFactory {
				return &mockWriterFactory{
					NewWriterFn: func(queueName string) (queue.Writer, error) {
						require.Equal(t, "foo", queueName)
						return &mockWriter{
							WriteFn: func(
								_ context.Context,
								body []byte,
								opts *queue.WriteOptions,
							) error {
								envelope, err := DecodeEnvelope(body)
								require.NoError(t, err)
								require.Equal(t, envelope.MessageID, opts.MessageID)
								require.Nil(t, opts.NotBefore)
								require.JSONEq(
									t,
									`{"value":"Test"}`,
									string(envelope.Message),
								)
								return nil
							},
						}, nil
					},
				}
			},
			contract: testMessage{Value: "Test"},
			assertions: func(t *testing.T, messageID string, err error) {
				require.NoError(t, err)
				require.NotEmpty(t, messageID)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			endpoint := NewSendEndpoint(
				testCase.writerFactory(t),
				NewEndpointConventions().Map(testMessage{}, "foo"),
				zap.NewNop(),
			)
			messageID, err := endpoint.Send(context.Background(), testCase.contract)
			testCase.assertions(t, messageID, err)
		})
	}
}

func TestSendEndpointReusesWriters(t *testing.T) {
	var newWriterCalls int
	writer := &mockWriter{
		WriteFn: func(context.Context, []byte, *queue.WriteOptions) error {
			return nil
		},
	}
	var factoryClosed bool
	endpoint := NewSendEndpoint(
		&mockWriterFactory{
			NewWriterFn: func(string) (queue.Writer, error) {
				newWriterCalls++
				return writer, nil
			},
			CloseFn: func(context.Context) error {
				factoryClosed = true
				return nil
			},
		},
		NewEndpointConventions().Map(testMessage{}, "foo"),
		zap.NewNop(),
	)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := endpoint.Send(ctx, testMessage{Value: "Test"})
		require.NoError(t, err)
	}
	require.Equal(t, 1, newWriterCalls)
	require.NoError(t, endpoint.Close(ctx))
	require.True(t, writer.closed)
	require.True(t, factoryClosed)
}

func TestSendEndpointWithMemoryBroker(t *testing.T) {
	broker := memory.NewBroker()
	endpoint := NewSendEndpoint(
		broker.WriterFactory(),
		NewEndpointConventions().Map(testMessage{}, "foo"),
		zap.NewNop(),
	)
	messageID, err := endpoint.Send(
		context.Background(),
		testMessage{Value: "Test"},
	)
	require.NoError(t, err)
	require.Equal(t, 1, broker.Ready("foo"))

	reader, err := broker.ReaderFactory().NewReader("foo", nil)
	require.NoError(t, err)
	msg, err := reader.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, messageID, msg.ID)
	envelope, err := DecodeEnvelope(msg.Body)
	require.NoError(t, err)
	require.Equal(t, messageID, envelope.MessageID)
}
