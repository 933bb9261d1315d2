// Package loop provides the serial execution context that owns a consumer's
// queue. Producers running on other goroutines post callbacks onto it instead
// of touching consumer state in place.
package loop

import (
	"context"
	"errors"
	"sync"

	"github.com/KamdynS/toolstream/queue"
)

// ErrClosed is returned by Post once the loop has been closed.
var ErrClosed = errors.New("loop is closed")

// Executor runs callbacks on behalf of producers. Callbacks posted from a
// single goroutine run in post order.
type Executor interface {
	Post(fn func()) error
}

// Inline runs callbacks immediately on the calling goroutine. It suits
// producers that already run on the consumer's goroutine or that serialize
// their own calls.
type Inline struct{}

// Post implements Executor.
func (Inline) Post(fn func()) error {
	fn()
	return nil
}

// Loop runs posted callbacks one at a time on a dedicated goroutine, in the
// order they were posted.
type Loop struct {
	tasks  *queue.Unbounded[func()]
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates and starts a loop.
func New() *Loop {
	l := &Loop{tasks: queue.New[func()]()}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	ctx := context.Background()
	for {
		fn, err := l.tasks.Pop(ctx)
		if err != nil {
			return
		}
		fn()
		_ = l.tasks.TaskDone()
	}
}

// Post schedules fn to run on the loop goroutine. It never blocks.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return errors.New("nil callback")
	}
	if err := l.tasks.Push(fn); err != nil {
		return ErrClosed
	}
	return nil
}

// Drain waits until every callback posted so far has run.
func (l *Loop) Drain(ctx context.Context) error {
	return l.tasks.Join(ctx)
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close stops accepting callbacks, runs the ones already posted and waits for
// the loop goroutine to exit. It must not be called from a callback.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	_ = l.tasks.Close()
	l.wg.Wait()
	return nil
}

type executorKey struct{}

// WithExecutor attaches an Executor to a context.
func WithExecutor(ctx context.Context, e Executor) context.Context {
	return context.WithValue(ctx, executorKey{}, e)
}

// FromContext extracts an Executor from context if present.
func FromContext(ctx context.Context) (Executor, bool) {
	v := ctx.Value(executorKey{})
	if v == nil {
		return nil, false
	}
	e, ok := v.(Executor)
	return e, ok
}
