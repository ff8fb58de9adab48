// Package events fans evaluation events out to live subscribers such as the
// status API's Server-Sent Events stream.
package events

import (
	"sync"
	"time"
)

const subscriberBuffer = 100

// Event is the wire form of one evaluation.
type Event struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	State       int       `json:"state"`
	Status      int       `json:"status"`
	Label       string    `json:"label"`
	Message     string    `json:"message"`
	Previous    int       `json:"previous"`
	Decision    string    `json:"decision"`
	LatencyMs   int64     `json:"latency_ms"`
	CheckedAt   time.Time `json:"checked_at"`
	NextCheckAt time.Time `json:"next_check_at"`
}

// Broker is an in-memory publish-subscribe hub for [Event] values.
//
// Subscribers receive events via buffered channels (buffer size 100). Sends
// are non-blocking; if a subscriber's buffer is full, the event is dropped
// for that subscriber so a slow client never stalls the probe loop.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroker creates a ready-to-use [Broker].
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[chan Event]struct{})}
}

// Publish sends ev to every subscriber without blocking.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber, drop
		}
	}
}

// Subscribe returns a channel receiving future events. Callers must call
// [Broker.Unsubscribe] when done.
func (b *Broker) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// more than once or with an unknown channel.
func (b *Broker) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub == ch {
			delete(b.subscribers, sub)
			close(sub)
			return
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
