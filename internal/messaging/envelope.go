package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Contract is implemented by every type that can be sent through a broker.
type Contract interface {
	// MessageType returns a URN that uniquely identifies the contract, e.g.
	// urn:message:queuebridge:Message.
	MessageType() string
}

// Envelope wraps a contract with the metadata that travels with it through the
// broker.
type Envelope struct {
	MessageID   string          `json:"messageId"`
	MessageType string          `json:"messageType"`
	SentTime    time.Time       `json:"sentTime"`
	Attempt     int             `json:"attempt"`
	Message     json.RawMessage `json:"message"`
}

// NewEnvelope wraps a contract in a new Envelope for its first delivery
// attempt.
func NewEnvelope(contract Contract) (Envelope, error) {
	messageJSON, err := json.Marshal(contract)
	if err != nil {
		return Envelope{}, errors.Wrapf(
			err,
			"error encoding message of type %q",
			contract.MessageType(),
		)
	}
	return Envelope{
		MessageID:   uuid.NewV4().String(),
		MessageType: contract.MessageType(),
		SentTime:    time.Now().UTC(),
		Attempt:     1,
		Message:     messageJSON,
	}, nil
}

// DecodeEnvelope unmarshals an Envelope and checks that it is complete.
func DecodeEnvelope(envelopeJSON []byte) (Envelope, error) {
	e := Envelope{}
	if err := json.Unmarshal(envelopeJSON, &e); err != nil {
		return e, errors.Wrap(err, "error decoding envelope")
	}
	switch {
	case e.MessageID == "":
		return e, errors.New("envelope has no message ID")
	case e.MessageType == "":
		return e, errors.New("envelope has no message type")
	case e.Attempt < 1:
		return e, errors.Errorf("envelope has invalid attempt %d", e.Attempt)
	case len(e.Message) == 0:
		return e, errors.New("envelope has no message")
	}
	return e, nil
}

// Next returns a copy of the Envelope for the next delivery attempt.
func (e Envelope) Next() Envelope {
	next := e
	next.Attempt++
	return next
}

// DeliveryID identifies one delivery attempt of a message. Brokers that
// de-duplicate by ID must see a distinct ID for each attempt.
func (e Envelope) DeliveryID() string {
	if e.Attempt <= 1 {
		return e.MessageID
	}
	return fmt.Sprintf("%s.%d", e.MessageID, e.Attempt)
}

// Encode marshals the Envelope.
func (e Envelope) Encode() ([]byte, error) {
	envelopeJSON, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "error encoding envelope %q", e.MessageID)
	}
	return envelopeJSON, nil
}
