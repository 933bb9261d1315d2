package openai

import (
	"context"

	base "github.com/KamdynS/toolstream/llm"
	oa "github.com/openai/openai-go/v3"
)

// streamCore matches the subset of the OpenAI stream API we use.
type streamCore interface {
	Next() bool
	Current() oa.ChatCompletionChunk
	Err() error
	Close() error
}

// deltaStream maps chat completion chunks onto base deltas. One chunk may
// carry several tool call fragments, so mapped deltas are buffered.
//
// A fragment with an id starts a call at its index; later fragments for the
// same index only carry argument text. Calls end when the choice reports a
// finish reason, or when the stream ends without one.
type deltaStream struct {
	inner    streamCore
	model    string
	pending  []base.Delta
	open     []int
	finished bool
	onFinish func(err error)
}

// Wrap adapts an SDK chunk stream, such as the one returned by
// Chat.Completions.NewStreaming, into a base.Stream.
func Wrap(core streamCore, model string) base.Stream {
	return newDeltaStream(core, model, nil)
}

func newDeltaStream(core streamCore, model string, onFinish func(error)) *deltaStream {
	return &deltaStream{inner: core, model: model, onFinish: onFinish}
}

func (w *deltaStream) push(t base.DeltaType, chunk *base.ToolCallChunk, text string) {
	w.pending = append(w.pending, base.Delta{Type: t, Text: text, ToolChunk: chunk, Provider: provider, Model: w.model})
}

func (w *deltaStream) isOpen(idx int) bool {
	for _, i := range w.open {
		if i == idx {
			return true
		}
	}
	return false
}

func (w *deltaStream) endOpen() {
	for _, idx := range w.open {
		w.push(base.DeltaTypeToolCallEnd, &base.ToolCallChunk{Index: idx}, "")
	}
	w.open = w.open[:0]
}

func (w *deltaStream) finish(err error) {
	w.finished = true
	if w.onFinish != nil {
		w.onFinish(err)
		w.onFinish = nil
	}
}

func (w *deltaStream) handle(chunk oa.ChatCompletionChunk) {
	for _, ch := range chunk.Choices {
		// n > 1 completions are not bridged
		if ch.Index != 0 {
			continue
		}
		if ch.Delta.Content != "" {
			w.push(base.DeltaTypeText, nil, ch.Delta.Content)
		}
		for _, tc := range ch.Delta.ToolCalls {
			idx := int(tc.Index)
			if !w.isOpen(idx) {
				w.open = append(w.open, idx)
				w.push(base.DeltaTypeToolCallStart, &base.ToolCallChunk{
					Index:     idx,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}, "")
				continue
			}
			if tc.Function.Arguments != "" {
				w.push(base.DeltaTypeToolCallDelta, &base.ToolCallChunk{Index: idx, Arguments: tc.Function.Arguments}, "")
			}
		}
		if ch.FinishReason != "" {
			w.endOpen()
		}
	}
}

func (w *deltaStream) Recv(ctx context.Context) (base.Delta, error) {
	for len(w.pending) == 0 {
		if w.finished {
			return base.Delta{}, base.ErrStreamClosed
		}
		if err := ctx.Err(); err != nil {
			return base.Delta{}, err
		}
		if !w.inner.Next() {
			if err := w.inner.Err(); err != nil {
				w.pending = nil
				w.finish(err)
				return base.Delta{}, err
			}
			w.endOpen()
			w.push(base.DeltaTypeDone, nil, "")
			w.finish(nil)
			break
		}
		w.handle(w.inner.Current())
	}
	d := w.pending[0]
	w.pending = w.pending[1:]
	return d, nil
}

func (w *deltaStream) Close() error {
	if !w.finished {
		w.finish(nil)
	}
	w.pending = nil
	return w.inner.Close()
}
