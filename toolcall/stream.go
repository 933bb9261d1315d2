package toolcall

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/KamdynS/toolstream/queue"
)

// Source yields tool call events until io.EOF. Stream implements it, as do
// wrappers that observe a stream while forwarding its events.
type Source interface {
	Recv(ctx context.Context) (Event, error)
}

// Stream is the consumer side of a tool call: a lazy, single-pass sequence of
// domain events. It is not safe for concurrent use and cannot be restarted.
type Stream struct {
	queue   *queue.Unbounded[Event]
	pending bool // an item was handed out and awaits acknowledgement
	done    bool
}

// NewStream wraps q as a Stream.
func NewStream(q *queue.Unbounded[Event]) *Stream {
	return &Stream{queue: q}
}

// Recv returns the next event. It returns io.EOF once End has been observed
// and on every call after that. Recv blocks until an event is available or
// ctx is done.
func (s *Stream) Recv(ctx context.Context) (Event, error) {
	if s.done {
		return nil, io.EOF
	}
	s.ack()

	ev, err := s.queue.Pop(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrClosed) {
			s.done = true
			return nil, io.EOF
		}
		return nil, err
	}
	if _, ok := ev.(End); ok {
		s.done = true
		_ = s.queue.TaskDone()
		return nil, io.EOF
	}
	s.pending = true
	return ev, nil
}

// ack acknowledges the previously yielded item.
func (s *Stream) ack() {
	if s.pending {
		s.pending = false
		_ = s.queue.TaskDone()
	}
}

// Collect drains the stream and returns every event.
func (s *Stream) Collect(ctx context.Context) ([]Event, error) {
	var out []Event
	for {
		ev, err := s.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

// All returns an iterator over the remaining events. Iteration stops after
// End or at the first error, which is yielded with a nil event.
func (s *Stream) All(ctx context.Context) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := s.Recv(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

var _ Source = (*Stream)(nil)

// Done reports whether End has been observed.
func (s *Stream) Done() bool { return s.done }

// Create builds the queue shared by a new Stream and Controller, and emits
// Begin. An empty toolCallID is replaced by GenerateID.
func Create(ctx context.Context, toolName, toolCallID string, opts ...Option) (*Stream, *Controller, error) {
	if toolCallID == "" {
		toolCallID = GenerateID()
	}
	q := queue.New[Event]()
	ctrl, err := NewController(ctx, q, toolName, toolCallID, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewStream(q), ctrl, nil
}
