// Package subscription provides the receiving end of a broker channel.
package subscription

import "sync"

// DefaultQueueSize is the buffer size of a subscriber queue.
const DefaultQueueSize = 32

// Subscription is a single subscriber queue. Receive returns the channel
// messages are delivered on; it is closed when the subscription is removed.
type Subscription struct {
	mu     sync.Mutex
	queue  chan any
	closed bool
}

// New creates a new Subscription.
func New() *Subscription {
	return &Subscription{
		queue: make(chan any, DefaultQueueSize),
	}
}

// Send delivers a message to the subscriber without blocking. It reports
// whether the message was accepted; a full queue or a closed subscription
// drops the message.
func (s *Subscription) Send(message any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- message:
		return true
	default:
		return false
	}
}

// Receive returns the delivery channel.
func (s *Subscription) Receive() <-chan any {
	return s.queue
}

// Close closes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}
