package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	before := time.Now().UTC()
	envelope, err := NewEnvelope(testMessage{Value: "Test"})
	require.NoError(t, err)
	require.NotEmpty(t, envelope.MessageID)
	require.Equal(t, "urn:message:queuebridge:Test", envelope.MessageType)
	require.Equal(t, 1, envelope.Attempt)
	require.False(t, envelope.SentTime.Before(before))
	require.JSONEq(t, `{"value":"Test"}`, string(envelope.Message))
	require.Equal(t, envelope.MessageID, envelope.DeliveryID())
}

func TestDecodeEnvelope(t *testing.T) {
	testCases := []struct {
		name         string
		envelopeJSON string
		assertions   func(*testing.T, Envelope, error)
	}{
		{
			name:         "not JSON",
			envelopeJSON: "Test",
			assertions: func(t *testing.T, _ Envelope, err error) {
				require.Error(t, err)
				require.Contains(t, err.Error(), "error decoding envelope")
			},
		},
		{
			name:         "missing message ID",
			envelopeJSON: `{"messageType":"foo","attempt":1,"message":{}}`,
			assertions: func(t *testing.T, _ Envelope, err error) {
				require.EqualError(t, err, "envelope has no message ID")
			},
		},
		{
			name:         "missing message type",
			envelopeJSON: `{"messageId":"42","attempt":1,"message":{}}`,
			assertions: func(t *testing.T, _ Envelope, err error) {
				require.EqualError(t, err, "envelope has no message type")
			},
		},
		{
			name:         "invalid attempt",
			envelopeJSON: `{"messageId":"42","messageType":"foo","message":{}}`,
			assertions: func(t *testing.T, _ Envelope, err error) {
				require.EqualError(t, err, "envelope has invalid attempt 0")
			},
		},
		{
			name:         "missing message",
			envelopeJSON: `{"messageId":"42","messageType":"foo","attempt":1}`,
			assertions: func(t *testing.T, _ Envelope, err error) {
				require.EqualError(t, err, "envelope has no message")
			},
		},
		{
			name: "valid",
			envelopeJSON: `{"messageId":"42","messageType":"foo",` +
				`"sentTime":"2030-01-02T03:04:05Z","attempt":2,` +
				`"message":{"value":"Test"}}`,
			assertions: func(t *testing.T, envelope Envelope, err error) {
				require.NoError(t, err)
				require.Equal(t, "42", envelope.MessageID)
				require.Equal(t, "foo", envelope.MessageType)
				require.Equal(
					t,
					time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
					envelope.SentTime,
				)
				require.Equal(t, 2, envelope.Attempt)
				msg := testMessage{}
				require.NoError(t, json.Unmarshal(envelope.Message, &msg))
				require.Equal(t, "Test", msg.Value)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			envelope, err := DecodeEnvelope([]byte(testCase.envelopeJSON))
			testCase.assertions(t, envelope, err)
		})
	}
}

func TestEnvelopeNext(t *testing.T) {
	envelope, err := NewEnvelope(testMessage{Value: "Test"})
	require.NoError(t, err)
	next := envelope.Next()
	require.Equal(t, 1, envelope.Attempt)
	require.Equal(t, 2, next.Attempt)
	require.Equal(t, envelope.MessageID, next.MessageID)
	require.Equal(t, envelope.SentTime, next.SentTime)
	require.Equal(t, envelope.MessageID+".2", next.DeliveryID())

	nextJSON, err := next.Encode()
	require.NoError(t, err)
	decoded, err := DecodeEnvelope(nextJSON)
	require.NoError(t, err)
	require.Equal(t, next.MessageID, decoded.MessageID)
	require.Equal(t, 2, decoded.Attempt)
}
