// Package broker provides an in-memory pub/sub hub for vote events.
// It is used to push ledger changes to SSE and WebSocket connections.
package broker

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trackvote/backend/internal/ledger"
)

// DefaultBuffer is the per-subscriber queue length used by New.
const DefaultBuffer = 64

// Subscription is one connected observer.
type Subscription struct {
	ID uuid.UUID
	ch chan ledger.Event
}

// C delivers events in publish order. It is closed when the subscription is
// removed, either by Unsubscribe or because the observer fell too far behind.
func (s *Subscription) C() <-chan ledger.Event { return s.ch }

// Broker fans events out to every current subscriber. Publish never blocks:
// each subscriber has its own buffered queue, and a subscriber whose queue is
// full is dropped so that it reconnects instead of stalling everyone else.
type Broker struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	onDrop func(*Subscription)
}

// Option configures a Broker.
type Option func(*Broker)

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithDropHandler registers a callback for subscribers evicted for being slow.
// It runs with the broker lock held and must not call back into the broker.
func WithDropHandler(fn func(*Subscription)) Option {
	return func(b *Broker) { b.onDrop = fn }
}

// New creates a ready-to-use Broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		subs:   make(map[*Subscription]struct{}),
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new observer. It only receives events published after
// this call returns.
func (b *Broker) Subscribe() *Subscription {
	sub := &Subscription{ID: uuid.New(), ch: make(chan ledger.Event, b.buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Calling it
// more than once, or after the subscription was dropped, is a no-op.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// Publish delivers ev to every subscriber without blocking. A subscriber
// whose buffer is full is dropped without ev and must refetch state.
func (b *Broker) Publish(ev ledger.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.removeLocked(sub)
			if b.onDrop != nil {
				b.onDrop(sub)
			}
		}
	}
}

// Count returns the number of current subscribers.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) removeLocked(sub *Subscription) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}
