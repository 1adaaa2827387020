// Package broadcast provides a small generic publish/subscribe primitive.
//
// The limiter publishes eviction events through a Broadcaster so that
// observers (audit trails, user messaging, metrics) can react without the
// core depending on any of them. Slow consumers never block a publish;
// their messages are dropped instead.
package broadcast

import (
	"context"
	"sync"
)

// Message wraps data of type T for type-safe broadcasting.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns a channel for receiving broadcast messages. The
	// context allows implementations backed by external brokers to respect
	// cancellation; the in-memory implementation ignores it.
	Receive(ctx context.Context) <-chan Message[T]

	// Close closes the subscriber and releases resources. Close is
	// idempotent; after Close the receive channel is closed.
	Close() error
}

// Broadcaster sends messages to multiple subscribers. Publishing must not
// block on slow consumers.
type Broadcaster[T any] interface {
	// Subscribe creates a subscriber receiving all subsequent messages.
	// Cancelling the context cleans up the subscription.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast sends a message to all active subscribers. Messages may be
	// dropped for subscribers whose buffers are full.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Close shuts down the broadcaster and closes all subscribers.
	Close() error
}

type subscriber[T any] struct {
	ch     chan Message[T]
	closed bool
	mu     sync.RWMutex
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan Message[T], bufferSize)}
}

func (s *subscriber[T]) Receive(ctx context.Context) <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send attempts a non-blocking delivery. Returns false when the
// subscriber is closed or its buffer is full.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
