// Package broker provides in-process pub/sub between the signal controller
// and the coordinator.
package broker

import (
	"errors"
	"fmt"
	"sync"

	"huddle/broker/channel"
	"huddle/broker/subscription"
)

// Topic is a coarse message category.
type Topic int

// Topics used across huddle.
const (
	// Client carries requests parsed from client sockets.
	Client Topic = iota

	// ClientSocket carries responses addressed to a single socket. The
	// Detail is the connection ID.
	ClientSocket
)

// Detail scopes a subscription within a Topic.
type Detail string

// Details for the Client topic.
const (
	JOIN       Detail = "JOIN"
	LEAVE      Detail = "LEAVE"
	END        Detail = "END"
	SIGNAL     Detail = "SIGNAL"
	DEACTIVATE Detail = "DEACTIVATE"
)

// ErrNoSubscribers is returned when a publish reaches no subscriber.
var ErrNoSubscribers = errors.New("no subscribers")

// Broker routes messages from publishers to detail-scoped subscribers.
type Broker struct {
	mu       sync.RWMutex
	channels map[string]*channel.Channel
}

// New creates a new Broker.
func New() *Broker {
	return &Broker{
		channels: make(map[string]*channel.Channel),
	}
}

func key(topic Topic, detail Detail) string {
	return fmt.Sprintf("%d/%s", topic, detail)
}

// Publish sends a message to all subscribers of the topic and detail.
func (b *Broker) Publish(topic Topic, detail Detail, message any) error {
	b.mu.RLock()
	ch, ok := b.channels[key(topic, detail)]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%d/%s: %w", topic, detail, ErrNoSubscribers)
	}
	if ch.SendAll(message) == 0 {
		return fmt.Errorf("%d/%s: %w", topic, detail, ErrNoSubscribers)
	}
	return nil
}

// Subscribe registers a new subscription for the topic and detail.
func (b *Broker) Subscribe(topic Topic, detail Detail) *subscription.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key(topic, detail)
	ch, ok := b.channels[k]
	if !ok {
		ch = channel.New()
		b.channels[k] = ch
	}
	sub := subscription.New()
	ch.AddSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription and closes it. Removing the last
// subscription drops the channel.
func (b *Broker) Unsubscribe(topic Topic, detail Detail, sub *subscription.Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key(topic, detail)
	ch, ok := b.channels[k]
	if !ok {
		return fmt.Errorf("%d/%s: %w", topic, detail, ErrNoSubscribers)
	}
	if !ch.RemoveSubscription(sub) {
		return fmt.Errorf("%d/%s: %w", topic, detail, ErrNoSubscribers)
	}
	if ch.Empty() {
		delete(b.channels, k)
	}
	return nil
}
