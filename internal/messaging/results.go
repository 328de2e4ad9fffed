package messaging

import (
	"time"

	"github.com/krancour/queuebridge/internal/metrics"
)

// ResultKind enumerates the dispositions a consumer may ask for.
type ResultKind int

const (
	// ResultKindAck indicates the message was handled and may be removed.
	ResultKindAck ResultKind = iota
	// ResultKindNack indicates the message can never be handled and should be
	// rejected (dead-lettered).
	ResultKindNack
	// ResultKindRetry indicates the message should be delivered again later.
	ResultKindRetry
)

func (r ResultKind) String() string {
	switch r {
	case ResultKindAck:
		return metrics.ResultAck
	case ResultKindNack:
		return metrics.ResultNack
	case ResultKindRetry:
		return metrics.ResultRetry
	}
	return "unknown"
}

// Result is returned by a consumer to tell the receive endpoint what to do
// with the message it was given.
type Result struct {
	Kind ResultKind
	// Reason explains a Nack.
	Reason string
	// Delay is how long to wait before redelivering after a Retry.
	Delay time.Duration
}

// Ack returns a Result that acknowledges the message.
func Ack() Result {
	return Result{Kind: ResultKindAck}
}

// Nack returns a Result that rejects the message for the given reason.
func Nack(reason string) Result {
	return Result{
		Kind:   ResultKindNack,
		Reason: reason,
	}
}

// Retry returns a Result that schedules the message for redelivery after the
// given delay.
func Retry(delay time.Duration) Result {
	return Result{
		Kind:  ResultKindRetry,
		Delay: delay,
	}
}
