package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/KamdynS/toolstream/observability"
	"github.com/KamdynS/toolstream/toolcall"
)

// BridgeConfig configures how provider deltas are turned into tool calls.
type BridgeConfig struct {
	// OnToolCall receives the consumer stream and producer controller of each
	// tool call as soon as the provider starts it. Required.
	OnToolCall func(ctx context.Context, stream *toolcall.Stream, ctrl *toolcall.Controller)
	// OnToolCallEnd is called once the provider finished streaming the call's
	// arguments. args holds the complete argument text.
	OnToolCallEnd func(ctx context.Context, ctrl *toolcall.Controller, args string)
	// OnText receives assistant text deltas.
	OnText func(ctx context.Context, text string)

	// ParentID links every created tool call to a parent message.
	ParentID string
	Hooks    *observability.Hooks
}

type bridgeCall struct {
	ctrl *toolcall.Controller
	args strings.Builder
}

// Bridge reads a provider Stream and drives one toolcall.Controller per
// streamed tool call.
type Bridge struct {
	cfg BridgeConfig

	mu     sync.Mutex
	active map[int]*bridgeCall
	all    []*toolcall.Controller
}

// NewBridge validates cfg and returns a Bridge.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.OnToolCall == nil {
		return nil, fmt.Errorf("OnToolCall is required")
	}
	return &Bridge{cfg: cfg, active: make(map[int]*bridgeCall)}, nil
}

// Run consumes s until the provider reports completion. The controllers'
// events are marshaled onto the executor carried by ctx. Controllers that
// never receive a response stay open; see CloseAll.
func (b *Bridge) Run(ctx context.Context, s Stream) error {
	defer s.Close()
	for {
		d, err := s.Recv(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, ErrStreamClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		switch d.Type {
		case DeltaTypeText:
			if b.cfg.OnText != nil && d.Text != "" {
				b.cfg.OnText(ctx, d.Text)
			}
		case DeltaTypeToolCallStart:
			if err := b.start(ctx, d.ToolChunk); err != nil {
				return err
			}
		case DeltaTypeToolCallDelta:
			if err := b.appendArgs(d.ToolChunk); err != nil {
				return err
			}
		case DeltaTypeToolCallEnd:
			if err := b.end(ctx, d.ToolChunk); err != nil {
				return err
			}
		case DeltaTypeDone:
			return nil
		}
	}
}

func (b *Bridge) start(ctx context.Context, chunk *ToolCallChunk) error {
	if chunk == nil {
		return fmt.Errorf("tool call start without chunk")
	}
	opts := []toolcall.Option{toolcall.WithHooks(b.cfg.Hooks)}
	if b.cfg.ParentID != "" {
		opts = append(opts, toolcall.WithParentID(b.cfg.ParentID))
	}
	stream, ctrl, err := toolcall.Create(ctx, chunk.Name, chunk.ID, opts...)
	if err != nil {
		return fmt.Errorf("start tool call %q: %w", chunk.Name, err)
	}
	b.mu.Lock()
	b.active[chunk.Index] = &bridgeCall{ctrl: ctrl}
	b.all = append(b.all, ctrl)
	b.mu.Unlock()

	b.cfg.Hooks.SafeLog(ctx, "debug", "tool call started", map[string]any{
		"tool_call_id": ctrl.ToolCallID(),
		"tool_name":    ctrl.ToolName(),
		"index":        chunk.Index,
	})
	b.cfg.OnToolCall(ctx, stream, ctrl)
	if chunk.Arguments != "" {
		return b.appendArgs(chunk)
	}
	return nil
}

func (b *Bridge) lookup(chunk *ToolCallChunk, what string) (*bridgeCall, error) {
	if chunk == nil {
		return nil, fmt.Errorf("tool call %s without chunk", what)
	}
	b.mu.Lock()
	c, ok := b.active[chunk.Index]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("tool call %s for unknown index %d", what, chunk.Index)
	}
	return c, nil
}

func (b *Bridge) appendArgs(chunk *ToolCallChunk) error {
	c, err := b.lookup(chunk, "delta")
	if err != nil {
		return err
	}
	if chunk.Arguments == "" {
		return nil
	}
	c.args.WriteString(chunk.Arguments)
	return c.ctrl.AppendArgsText(chunk.Arguments)
}

func (b *Bridge) end(ctx context.Context, chunk *ToolCallChunk) error {
	c, err := b.lookup(chunk, "end")
	if err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.active, chunk.Index)
	b.mu.Unlock()
	if b.cfg.OnToolCallEnd != nil {
		b.cfg.OnToolCallEnd(ctx, c.ctrl, c.args.String())
	}
	return nil
}

// Controllers returns every controller the bridge created, in start order.
func (b *Bridge) Controllers() []*toolcall.Controller {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*toolcall.Controller, len(b.all))
	copy(out, b.all)
	return out
}

// CloseAll closes controllers that have not terminated yet.
func (b *Bridge) CloseAll() error {
	var errs []error
	for _, c := range b.Controllers() {
		if c.Done() {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
