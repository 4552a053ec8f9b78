package signal

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Subscription.Next once the subscription is
// cancelled or the bus closed, and every queued signal has been read.
var ErrClosed = errors.New("signal: subscription closed")

// Bus is an in-process Sink fanning every signal out to its subscribers.
// Publish never blocks: each subscriber has its own unbounded queue.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish delivers s to every current subscriber whose filter accepts it.
func (b *Bus) Publish(s Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.filter == nil || sub.filter(s) {
			sub.q.push(s)
		}
	}
}

// Subscribe registers a subscriber receiving signals accepted by filter,
// or every signal if filter is nil. Subscribing to a closed bus yields a
// subscription that is already closed.
func (b *Bus) Subscribe(filter func(Signal) bool) *Subscription {
	sub := &Subscription{bus: b, q: newQueue(), filter: filter}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.q.close()
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Close closes every subscription. Subscribers can still drain what was
// already queued.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.q.close()
	}
	clear(b.subs)
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

// Subscription is one subscriber's view of a Bus.
type Subscription struct {
	bus    *Bus
	q      *queue
	filter func(Signal) bool
}

// Next blocks until a signal is available, the context is done, or the
// subscription is closed and drained.
func (s *Subscription) Next(ctx context.Context) (Signal, error) {
	for {
		if sig, ok := s.q.pop(); ok {
			return sig, nil
		}
		if s.q.drained() {
			return Signal{}, ErrClosed
		}
		select {
		case <-ctx.Done():
			return Signal{}, ctx.Err()
		case <-s.q.wait():
		}
	}
}

// TryNext returns the next queued signal without blocking.
func (s *Subscription) TryNext() (Signal, bool) {
	return s.q.pop()
}

// Len returns the number of queued signals.
func (s *Subscription) Len() int {
	return s.q.len()
}

// Cancel unsubscribes. Queued signals remain readable.
func (s *Subscription) Cancel() {
	s.bus.remove(s)
	s.q.close()
}
