// Package queue provides the unbounded FIFO used as the single hand-off point
// between chunk producers and the stream consumer.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Get once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded, goroutine-safe FIFO. Put never blocks; Get blocks
// until an item is available, the queue is closed and drained, or ctx ends.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{} // signalled (non-blocking) whenever state changes
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Put appends v. It reports false when the queue is already closed, in which
// case v is dropped.
func (q *Queue[T]) Put(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.notify()
	return true
}

// Close marks the end of the sequence. Items already queued are still
// delivered. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Get removes and returns the oldest item.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			more := len(q.items) > 0 || q.closed
			q.mu.Unlock()
			if more {
				// pass the wakeup on to another waiting reader
				q.notify()
			}
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			q.notify()
			var zero T
			return zero, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
