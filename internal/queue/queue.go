package queue

import (
	"context"
	"time"
)

// WriterFactory is an interface for any component that can furnish an
// implementation of the Writer interface capable of writing messages to a
// specific queue.
type WriterFactory interface {
	// NewWriter returns a Writer for the named queue.
	NewWriter(queueName string) (Writer, error)
	// Close releases the factory's connection to the underlying broker. Writers
	// obtained from the factory should be closed first.
	Close(context.Context) error
}

// Writer is an interface for a component that writes messages to a single
// queue.
type Writer interface {
	// Write hands a message body to the broker. When opts specifies a NotBefore
	// time, the broker should not deliver the message until that time has
	// elapsed.
	Write(ctx context.Context, body []byte, opts *WriteOptions) error
	// Close releases resources held by the Writer.
	Close(context.Context) error
}

// WriteOptions represents optional, per-message instructions to the broker.
type WriteOptions struct {
	// MessageID, if set, is conveyed to the broker as the message's identifier.
	MessageID string
	// NotBefore, if set, indicates the message should not be delivered to any
	// consumer before the specified time.
	NotBefore *time.Time
}

// ReaderFactory is an interface for any component that can furnish an
// implementation of the Reader interface capable of reading messages from a
// specific queue.
type ReaderFactory interface {
	// NewReader returns a Reader for the named queue.
	NewReader(queueName string, opts *ReaderOptions) (Reader, error)
	// Close releases the factory's connection to the underlying broker. Readers
	// obtained from the factory should be closed first.
	Close(context.Context) error
}

// ReaderOptions represents options for a Reader.
type ReaderOptions struct {
	// Prefetch is the maximum number of messages the broker may deliver to the
	// Reader ahead of them being acknowledged. Values less than 1 are treated as
	// 1.
	Prefetch int
}

// PrefetchOrDefault returns the configured prefetch, defaulting to 1.
func (r *ReaderOptions) PrefetchOrDefault() int {
	if r == nil || r.Prefetch < 1 {
		return 1
	}
	return r.Prefetch
}

// Reader is an interface for a component that reads messages from a single
// queue.
type Reader interface {
	// Read blocks until a message is available or the context is canceled.
	Read(context.Context) (*Message, error)
	// Close releases resources held by the Reader. Messages that were read but
	// neither acknowledged nor rejected are returned to the broker.
	Close(context.Context) error
}

// Message represents a single message read from a queue along with the means
// of settling it with the broker. Exactly one of Ack or Nack should be called.
type Message struct {
	// ID is the broker-assigned or writer-assigned identifier, if known.
	ID string
	// Body is the raw message body.
	Body []byte
	// Ack informs the broker the message was handled and can be discarded.
	Ack func(context.Context) error
	// Nack informs the broker the message cannot be handled and should not be
	// redelivered. Most brokers move such messages to a dead-letter queue.
	Nack func(ctx context.Context, reason string) error
}
