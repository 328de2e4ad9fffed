package sdk

import (
	"encoding/json"

	"github.com/krancour/queuebridge/sdk/meta"
)

// MessageType is the URN under which Messages travel through the queue.
const MessageType = "urn:message:queuebridge:Message"

// Message is the unit of work handed from the producer to the consumer by way
// of the queue.
type Message struct {
	// Value is the message payload.
	Value string `json:"value"`
}

// MessageType returns the URN by which a Message is identified on the wire.
func (m Message) MessageType() string {
	return MessageType
}

// MessageReceipt is returned by the API server once a Message has been handed
// to the queue.
type MessageReceipt struct {
	// ID is the identifier assigned to the Message when it was sent.
	ID string `json:"id"`
}

// MarshalJSON amends MessageReceipt instances with type metadata so that
// clients do not need to be concerned with the tedium of doing so.
func (m MessageReceipt) MarshalJSON() ([]byte, error) {
	type Alias MessageReceipt
	return json.Marshal(
		struct {
			meta.TypeMeta `json:",inline"`
			Alias         `json:",inline"`
		}{
			TypeMeta: meta.TypeMeta{
				APIVersion: meta.APIVersion,
				Kind:       "MessageReceipt",
			},
			Alias: (Alias)(m),
		},
	)
}
