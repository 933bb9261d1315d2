package toolcall

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KamdynS/toolstream/loop"
	"github.com/KamdynS/toolstream/observability"
	"github.com/KamdynS/toolstream/queue"
)

// ErrControllerClosed is returned by lifecycle calls made after SetResponse
// or Close.
var ErrControllerClosed = errors.New("tool call controller is closed")

// Option configures a Controller.
type Option func(*options)

type options struct {
	parentID *string
	hooks    *observability.Hooks
	executor loop.Executor
}

// WithParentID links the tool call to an enclosing call.
func WithParentID(id string) Option {
	return func(o *options) { o.parentID = &id }
}

// WithHooks sets observability hooks.
func WithHooks(h *observability.Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithExecutor overrides the executor captured from the context.
func WithExecutor(e loop.Executor) Option {
	return func(o *options) { o.executor = e }
}

// ResponseOption configures SetResponse.
type ResponseOption func(*Result)

// WithArtifact attaches an auxiliary artifact to the result.
func WithArtifact(artifact any) ResponseOption {
	return func(r *Result) { r.Artifact = artifact }
}

// WithIsError marks the result as an error outcome.
func WithIsError(isError bool) ResponseOption {
	return func(r *Result) { r.IsError = isError }
}

// Controller is the producer-side handle of one tool call. Its methods may be
// called from any goroutine; every enqueue after Begin is marshaled onto the
// consumer's executor.
type Controller struct {
	toolName   string
	toolCallID string
	parentID   *string
	queue      *queue.Unbounded[Event]
	executor   loop.Executor
	hooks      *observability.Hooks
	// ctx is the construction context, passed to hooks.
	ctx context.Context

	mu   sync.Mutex
	done bool
}

// NewController captures the consumer executor from ctx (falling back to
// loop.Inline) and enqueues the Begin event.
func NewController(ctx context.Context, q *queue.Unbounded[Event], toolName, toolCallID string, opts ...Option) (*Controller, error) {
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if toolCallID == "" {
		return nil, fmt.Errorf("tool call id is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	exec := o.executor
	if exec == nil {
		if e, ok := loop.FromContext(ctx); ok {
			exec = e
		} else {
			exec = loop.Inline{}
		}
	}

	c := &Controller{
		toolName:   toolName,
		toolCallID: toolCallID,
		parentID:   o.parentID,
		queue:      q,
		executor:   exec,
		hooks:      o.hooks,
		ctx:        ctx,
	}
	begin := Begin{ToolCallID: toolCallID, ToolName: toolName, ParentID: o.parentID}
	if err := q.Push(begin); err != nil {
		return nil, fmt.Errorf("enqueue begin: %w", err)
	}
	c.hooks.SafeEvent(ctx, toolCallID, string(KindBegin))
	return c, nil
}

// ToolName returns the tool name.
func (c *Controller) ToolName() string { return c.toolName }

// ToolCallID returns the tool call id.
func (c *Controller) ToolCallID() string { return c.toolCallID }

// ParentID returns the parent call id, or "" when unset.
func (c *Controller) ParentID() string {
	if c.parentID == nil {
		return ""
	}
	return *c.parentID
}

// Done reports whether SetResponse or Close has been called.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// AppendArgsText enqueues a Delta carrying an arguments text fragment.
func (c *Controller) AppendArgsText(delta string) error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	notify, err := c.post(Delta{ToolCallID: c.toolCallID, ArgsTextDelta: delta})
	c.mu.Unlock()
	notify()
	return err
}

// SetResponse enqueues the terminal Result followed by End.
func (c *Controller) SetResponse(result any, opts ...ResponseOption) error {
	r := Result{ToolCallID: c.toolCallID, Result: result}
	for _, opt := range opts {
		opt(&r)
	}

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	c.done = true
	notify, err := c.post(r, End{})
	c.mu.Unlock()
	notify()
	return err
}

// SetResult sets the result of the tool call.
//
// Deprecated: Use SetResponse instead.
func (c *Controller) SetResult(result any) error {
	c.hooks.Deprecated(c.ctx, "SetResult", "SetResponse")
	return c.SetResponse(result)
}

// Close ends the stream without a Result. Calling it after the controller
// has terminated is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return nil
	}
	c.done = true
	notify, err := c.post(End{})
	c.mu.Unlock()
	notify()
	return err
}

// hookBatch holds hook calls produced by a callback that ran while Post was
// still in progress, i.e. while the controller lock is held.
type hookBatch struct {
	mu      sync.Mutex
	posting bool
	calls   []func()
}

func (b *hookBatch) run(fn func()) {
	b.mu.Lock()
	if b.posting {
		b.calls = append(b.calls, fn)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	fn()
}

func (b *hookBatch) flush() {
	b.mu.Lock()
	calls := b.calls
	b.calls = nil
	b.mu.Unlock()
	for _, fn := range calls {
		fn()
	}
}

// post must be called with c.mu held. Hooks never run under c.mu: the
// returned func fires any that the executor produced synchronously and must
// be called after c.mu is released.
func (c *Controller) post(events ...Event) (func(), error) {
	batch := &hookBatch{posting: true}
	err := c.executor.Post(func() {
		for _, ev := range events {
			if err := c.queue.Push(ev); err != nil {
				kind := ev.Kind()
				batch.run(func() {
					c.hooks.Log(c.ctx, "error", "failed to enqueue tool call event", map[string]any{
						"tool_call_id": c.toolCallID,
						"kind":         string(kind),
						"error":        err.Error(),
					})
				})
				return
			}
			if kind := ev.Kind(); kind != KindEnd {
				batch.run(func() { c.hooks.SafeEvent(c.ctx, c.toolCallID, string(kind)) })
			}
		}
	})
	if err != nil {
		kind := events[0].Kind()
		batch.run(func() {
			c.hooks.Log(c.ctx, "error", "failed to schedule tool call event on consumer", map[string]any{
				"tool_call_id": c.toolCallID,
				"kind":         string(kind),
				"error":        err.Error(),
			})
		})
	}
	batch.mu.Lock()
	batch.posting = false
	batch.mu.Unlock()
	if err != nil {
		return batch.flush, fmt.Errorf("post %s for %s: %w", events[0].Kind(), c.toolCallID, err)
	}
	return batch.flush, nil
}
