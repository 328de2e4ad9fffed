package memory

import (
	"context"
	"sync"
	"time"

	"github.com/krancour/queuebridge/internal/queue"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// DeadLetter is a message that was rejected by a consumer.
type DeadLetter struct {
	ID     string
	Body   []byte
	Reason string
}

type entry struct {
	id   string
	body []byte
}

type memoryQueue struct {
	ready       []*entry
	waiters     []chan *entry
	inFlight    map[string]*entry
	deadLetters []DeadLetter
}

// Broker is an in-process broker. It offers the same contract as the network
// transports and is suitable for tests and for wiring a producer and consumer
// together inside a single process. Nothing it holds survives the process.
type Broker struct {
	mu     sync.Mutex
	queues map[string]*memoryQueue
	timers []*time.Timer
}

// NewBroker returns a new, empty Broker.
func NewBroker() *Broker {
	return &Broker{
		queues: map[string]*memoryQueue{},
	}
}

// WriterFactory returns a queue.WriterFactory that writes to this Broker.
func (b *Broker) WriterFactory() queue.WriterFactory {
	return &writerFactory{broker: b}
}

// ReaderFactory returns a queue.ReaderFactory that reads from this Broker.
func (b *Broker) ReaderFactory() queue.ReaderFactory {
	return &readerFactory{broker: b}
}

// Ready returns the number of messages in the named queue that are awaiting
// delivery.
func (b *Broker) Ready(queueName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.getQueue(queueName).ready)
}

// InFlight returns the number of messages from the named queue that have been
// delivered but not yet settled.
func (b *Broker) InFlight(queueName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.getQueue(queueName).inFlight)
}

// DeadLetters returns a copy of all messages rejected from the named queue.
func (b *Broker) DeadLetters(queueName string) []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.getQueue(queueName)
	deadLetters := make([]DeadLetter, len(q.deadLetters))
	copy(deadLetters, q.deadLetters)
	return deadLetters
}

// Stop cancels delivery of any messages that are still scheduled for the
// future.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, timer := range b.timers {
		timer.Stop()
	}
	b.timers = nil
}

// getQueue must be called while holding the lock.
func (b *Broker) getQueue(queueName string) *memoryQueue {
	q, ok := b.queues[queueName]
	if !ok {
		q = &memoryQueue{
			inFlight: map[string]*entry{},
		}
		b.queues[queueName] = q
	}
	return q
}

func (b *Broker) enqueue(queueName string, e *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.getQueue(queueName)
	if len(q.waiters) > 0 {
		waiter := q.waiters[0]
		q.waiters = q.waiters[1:]
		q.inFlight[e.id] = e
		waiter <- e // Buffered; never blocks
		return
	}
	q.ready = append(q.ready, e)
}

func (b *Broker) schedule(queueName string, e *entry, notBefore time.Time) {
	delay := time.Until(notBefore)
	if delay <= 0 {
		b.enqueue(queueName, e)
		return
	}
	timer := time.AfterFunc(delay, func() {
		b.enqueue(queueName, e)
	})
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timers = append(b.timers, timer)
}

func (b *Broker) dequeue(
	ctx context.Context,
	queueName string,
) (*entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	q := b.getQueue(queueName)
	if len(q.ready) > 0 {
		e := q.ready[0]
		q.ready = q.ready[1:]
		q.inFlight[e.id] = e
		b.mu.Unlock()
		return e, nil
	}
	waiter := make(chan *entry, 1)
	q.waiters = append(q.waiters, waiter)
	b.mu.Unlock()

	select {
	case e := <-waiter:
		return e, nil
	case <-ctx.Done():
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range q.waiters {
		if w == waiter {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			break
		}
	}
	// A message may have been handed over between the context being canceled
	// and the lock being reacquired. Put it back at the front of the line.
	select {
	case e := <-waiter:
		delete(q.inFlight, e.id)
		q.ready = append([]*entry{e}, q.ready...)
	default:
	}
	return nil, ctx.Err()
}

// settle removes an in-flight message. It reports false if the message was not
// in flight.
func (b *Broker) settle(queueName string, id string) (*entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.getQueue(queueName)
	e, ok := q.inFlight[id]
	if ok {
		delete(q.inFlight, id)
	}
	return e, ok
}

func (b *Broker) deadLetter(queueName string, e *entry, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.getQueue(queueName)
	q.deadLetters = append(
		q.deadLetters,
		DeadLetter{
			ID:     e.id,
			Body:   e.body,
			Reason: reason,
		},
	)
}

// requeue returns an unsettled message to the front of its queue.
func (b *Broker) requeue(queueName string, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.getQueue(queueName)
	if e, ok := q.inFlight[id]; ok {
		delete(q.inFlight, id)
		q.ready = append([]*entry{e}, q.ready...)
	}
}

type writerFactory struct {
	broker *Broker
}

func (w *writerFactory) NewWriter(queueName string) (queue.Writer, error) {
	return &writer{
		broker:    w.broker,
		queueName: queueName,
	}, nil
}

func (w *writerFactory) Close(context.Context) error {
	return nil
}

type writer struct {
	broker    *Broker
	queueName string
}

func (w *writer) Write(
	ctx context.Context,
	body []byte,
	opts *queue.WriteOptions,
) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "error writing to queue %q", w.queueName)
	}
	if opts == nil {
		opts = &queue.WriteOptions{}
	}
	e := &entry{
		id:   opts.MessageID,
		body: append([]byte(nil), body...),
	}
	if e.id == "" {
		e.id = uuid.NewV4().String()
	}
	if opts.NotBefore != nil {
		w.broker.schedule(w.queueName, e, *opts.NotBefore)
		return nil
	}
	w.broker.enqueue(w.queueName, e)
	return nil
}

func (w *writer) Close(context.Context) error {
	return nil
}

type readerFactory struct {
	broker *Broker
}

func (r *readerFactory) NewReader(
	queueName string,
	_ *queue.ReaderOptions,
) (queue.Reader, error) {
	return &reader{
		broker:    r.broker,
		queueName: queueName,
		unsettled: map[string]struct{}{},
	}, nil
}

func (r *readerFactory) Close(context.Context) error {
	return nil
}

type reader struct {
	broker    *Broker
	queueName string
	mu        sync.Mutex
	unsettled map[string]struct{}
}

func (r *reader) Read(ctx context.Context) (*queue.Message, error) {
	e, err := r.broker.dequeue(ctx, r.queueName)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading from queue %q", r.queueName)
	}
	r.mu.Lock()
	r.unsettled[e.id] = struct{}{}
	r.mu.Unlock()
	return &queue.Message{
		ID:   e.id,
		Body: e.body,
		Ack: func(context.Context) error {
			if _, ok := r.settle(e.id); !ok {
				return errors.Errorf("message %q is not in flight", e.id)
			}
			return nil
		},
		Nack: func(_ context.Context, reason string) error {
			settled, ok := r.settle(e.id)
			if !ok {
				return errors.Errorf("message %q is not in flight", e.id)
			}
			r.broker.deadLetter(r.queueName, settled, reason)
			return nil
		},
	}, nil
}

func (r *reader) settle(id string) (*entry, bool) {
	r.mu.Lock()
	delete(r.unsettled, id)
	r.mu.Unlock()
	return r.broker.settle(r.queueName, id)
}

func (r *reader) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.unsettled {
		r.broker.requeue(r.queueName, id)
	}
	r.unsettled = map[string]struct{}{}
	return nil
}
