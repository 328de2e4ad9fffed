package messaging

import "sync"

// EndpointConventions maps message types to the queues they are sent to.
type EndpointConventions struct {
	queues map[string]string
	mu     sync.RWMutex
}

// NewEndpointConventions returns an empty set of EndpointConventions.
func NewEndpointConventions() *EndpointConventions {
	return &EndpointConventions{
		queues: map[string]string{},
	}
}

// Map sends all contracts of the given contract's type to the named queue.
func (e *EndpointConventions) Map(
	contract Contract,
	queueName string,
) *EndpointConventions {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queues[contract.MessageType()] = queueName
	return e
}

// QueueFor returns the queue that messages of the given type are sent to.
func (e *EndpointConventions) QueueFor(messageType string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	queueName, ok := e.queues[messageType]
	return queueName, ok
}
