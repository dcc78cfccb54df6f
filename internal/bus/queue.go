package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("bus: queue full")
	ErrQueueClosed = errors.New("bus: queue closed")
)

// Queue is a bounded, non-blocking queue between the control loop and a slow consumer.
type Queue[T any] struct {
	ch     chan T
	closed atomic.Bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPublish enqueues without blocking.
func (q *Queue[T]) TryPublish(v T) (err error) {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	defer func() {
		// Close raced with the send.
		if recover() != nil {
			err = ErrQueueClosed
		}
	}()
	select {
	case q.ch <- v:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new values. Queued values are still delivered.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Run consumes values until the context is done or the queue is closed and drained.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-q.ch:
			if !ok {
				return
			}
			handler(v)
		}
	}
}
