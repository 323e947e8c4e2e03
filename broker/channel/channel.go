// Package channel provides the implementation of message channels.
package channel

import (
	"sync"

	"huddle/broker/subscription"
)

// Channel represents a message channel that can have multiple subscribers.
type Channel struct {
	mu   sync.RWMutex
	subs []*subscription.Subscription
}

// New creates and initializes a new Channel instance.
func New() *Channel {
	return &Channel{
		subs: make([]*subscription.Subscription, 0),
	}
}

// SendAll sends a message to every subscriber of the Channel and returns
// the number of subscribers that accepted it.
func (c *Channel) SendAll(message any) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	delivered := 0
	for _, sub := range c.subs {
		if sub.Send(message) {
			delivered++
		}
	}
	return delivered
}

// AddSubscription adds a new Subscription to the Channel.
func (c *Channel) AddSubscription(sub *subscription.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs = append(c.subs, sub)
}

// RemoveSubscription removes a Subscription from the Channel and closes it.
// It reports whether the subscription was found.
func (c *Channel) RemoveSubscription(sub *subscription.Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			sub.Close()
			return true
		}
	}
	return false
}

// Empty reports whether the Channel has no subscribers left.
func (c *Channel) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0
}
