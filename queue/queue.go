// Package queue provides the unbounded FIFO hand-off used between a single
// consumer loop and its producers.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push after Close, and by Pop once a closed queue
// has been drained.
var ErrClosed = errors.New("queue is closed")

// Hooks provides optional callbacks for queue operations. All are optional no-ops by default.
type Hooks[T any] struct {
	OnPush func(item T)
	OnPop  func(item T)
	// OnDone receives the number of items still unacknowledged after TaskDone.
	OnDone func(unfinished int)
}

// Options configures the queue behavior.
type Options[T any] struct {
	// Hooks are optional callbacks for instrumentation; all nil means no-op.
	Hooks Hooks[T]
}

// Unbounded is an order-preserving queue without a capacity bound. Push never
// blocks and no item is ever dropped. It is safe for concurrent producers; Pop
// is meant for a single consumer.
type Unbounded[T any] struct {
	mu         sync.Mutex
	items      []T
	ready      chan struct{} // signaled when items become available
	idle       chan struct{} // closed while unfinished == 0
	stopCh     chan struct{}
	unfinished int
	closed     bool
	opts       Options[T]
}

// New creates an empty queue.
func New[T any]() *Unbounded[T] {
	return NewWithOptions(Options[T]{})
}

// NewWithOptions creates an empty queue with options.
func NewWithOptions[T any](opts Options[T]) *Unbounded[T] {
	idle := make(chan struct{})
	close(idle)
	return &Unbounded[T]{
		ready:  make(chan struct{}, 1),
		idle:   idle,
		stopCh: make(chan struct{}),
		opts:   opts,
	}
}

// Push appends item to the tail of the queue.
func (q *Unbounded[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	if q.unfinished == 0 {
		q.idle = make(chan struct{})
	}
	q.unfinished++
	q.mu.Unlock()

	q.signal()
	if q.opts.Hooks.OnPush != nil {
		q.opts.Hooks.OnPush(item)
	}
	return nil
}

// Pop removes and returns the head of the queue, waiting until an item is
// available, the queue is closed and drained, or ctx is done.
func (q *Unbounded[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()

			if more {
				q.signal()
			}
			if q.opts.Hooks.OnPop != nil {
				q.opts.Hooks.OnPop(item)
			}
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.stopCh:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TaskDone acknowledges one previously pushed item.
func (q *Unbounded[T]) TaskDone() error {
	q.mu.Lock()
	if q.unfinished == 0 {
		q.mu.Unlock()
		return errors.New("task done called more times than items pushed")
	}
	q.unfinished--
	left := q.unfinished
	if left == 0 {
		close(q.idle)
	}
	q.mu.Unlock()

	if q.opts.Hooks.OnDone != nil {
		q.opts.Hooks.OnDone(left)
	}
	return nil
}

// Join waits until every pushed item has been acknowledged with TaskDone.
func (q *Unbounded[T]) Join(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of READY items. Items popped but not yet
// acknowledged are NOT included; see Unfinished.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished returns the number of items pushed but not yet acknowledged.
func (q *Unbounded[T]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Close rejects further pushes. Items already queued are still returned by
// Pop; once drained, Pop returns ErrClosed.
func (q *Unbounded[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.stopCh)
	return nil
}

func (q *Unbounded[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
