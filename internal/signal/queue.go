package signal

import "sync"

// queue is a thread-safe unbounded FIFO of signals.
//
// Unbounded so that Publish never blocks on a slow subscriber. The signal
// channel (buffered, size 1) lets readers wait with a context.
type queue struct {
	mu      sync.Mutex
	signals []Signal
	closed  bool
	ready   chan struct{}
}

func newQueue() *queue {
	return &queue{
		signals: make([]Signal, 0, 16),
		ready:   make(chan struct{}, 1),
	}
}

// push appends s. Returns false if the queue is closed.
func (q *queue) push(s Signal) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.signals = append(q.signals, s)

	// Buffer of 1 coalesces wakeups.
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// pop removes the front signal without blocking.
func (q *queue) pop() (Signal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.signals) == 0 {
		return Signal{}, false
	}
	s := q.signals[0]

	// Clear the slot so the backing array does not pin edge slices.
	q.signals[0] = Signal{}
	if len(q.signals) == 1 {
		q.signals = q.signals[:0]
	} else {
		q.signals = q.signals[1:]
	}
	return s, true
}

// drained reports whether the queue is closed and empty.
func (q *queue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.signals) == 0
}

func (q *queue) wait() <-chan struct{} {
	return q.ready
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.signals)
}

// close stops further pushes and wakes waiters. Queued signals remain
// readable.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}
