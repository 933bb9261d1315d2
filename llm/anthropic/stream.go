package anthropic

import (
	"context"

	base "github.com/KamdynS/toolstream/llm"
	anth "github.com/anthropics/anthropic-sdk-go"
)

// streamCore matches the subset of the SDK event stream we use.
type streamCore interface {
	Next() bool
	Current() anth.MessageStreamEventUnion
	Err() error
	Close() error
}

// deltaStream maps Messages API stream events onto base deltas.
// Only tool_use content blocks produce tool call deltas; the block index is
// used as the tool call index.
type deltaStream struct {
	inner    streamCore
	model    string
	tools    map[int64]bool
	closed   bool
	onFinish func(err error)
}

// Wrap adapts an SDK message stream, such as the one returned by
// Messages.NewStreaming, into a base.Stream.
func Wrap(core streamCore, model string) base.Stream {
	return newDeltaStream(core, model, nil)
}

func newDeltaStream(core streamCore, model string, onFinish func(error)) *deltaStream {
	return &deltaStream{inner: core, model: model, tools: make(map[int64]bool), onFinish: onFinish}
}

func (w *deltaStream) delta(t base.DeltaType) base.Delta {
	return base.Delta{Type: t, Provider: provider, Model: w.model}
}

func (w *deltaStream) toolDelta(t base.DeltaType, chunk base.ToolCallChunk) base.Delta {
	d := w.delta(t)
	d.ToolChunk = &chunk
	return d
}

func (w *deltaStream) finish(err error) {
	w.closed = true
	if w.onFinish != nil {
		w.onFinish(err)
		w.onFinish = nil
	}
}

func (w *deltaStream) Recv(ctx context.Context) (base.Delta, error) {
	if w.closed {
		return base.Delta{}, base.ErrStreamClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return base.Delta{}, err
		}
		if !w.inner.Next() {
			if err := w.inner.Err(); err != nil {
				w.finish(err)
				return base.Delta{}, err
			}
			w.finish(nil)
			return w.delta(base.DeltaTypeDone), nil
		}
		switch ev := w.inner.Current().AsAny().(type) {
		case anth.ContentBlockStartEvent:
			if tu, ok := ev.ContentBlock.AsAny().(anth.ToolUseBlock); ok {
				w.tools[ev.Index] = true
				// the start block carries an empty input object; arguments arrive as input_json_delta
				return w.toolDelta(base.DeltaTypeToolCallStart, base.ToolCallChunk{Index: int(ev.Index), ID: tu.ID, Name: tu.Name}), nil
			}
		case anth.ContentBlockDeltaEvent:
			switch d := ev.Delta.AsAny().(type) {
			case anth.TextDelta:
				if d.Text != "" {
					out := w.delta(base.DeltaTypeText)
					out.Text = d.Text
					return out, nil
				}
			case anth.InputJSONDelta:
				if w.tools[ev.Index] && d.PartialJSON != "" {
					return w.toolDelta(base.DeltaTypeToolCallDelta, base.ToolCallChunk{Index: int(ev.Index), Arguments: d.PartialJSON}), nil
				}
			}
		case anth.ContentBlockStopEvent:
			if w.tools[ev.Index] {
				delete(w.tools, ev.Index)
				return w.toolDelta(base.DeltaTypeToolCallEnd, base.ToolCallChunk{Index: int(ev.Index)}), nil
			}
		case anth.MessageStopEvent:
			w.finish(nil)
			return w.delta(base.DeltaTypeDone), nil
		}
	}
}

func (w *deltaStream) Close() error {
	if !w.closed {
		w.finish(nil)
	}
	return w.inner.Close()
}
