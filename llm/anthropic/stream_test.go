package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	base "github.com/KamdynS/toolstream/llm"
	"github.com/KamdynS/toolstream/observability"
	"github.com/KamdynS/toolstream/toolcall"
	anth "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseEvent struct {
	event string
	data  string
}

func toolUseEvents() []sseEvent {
	return []sseEvent{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-3-5-haiku-latest","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":100,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me check."}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{}}}`},
		{"ping", `{"type":"ping"}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":" \"SF\"}"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":1}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":42}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}
}

// testDecoder feeds a fixed sequence of events to the ssestream.Stream.
type testDecoder struct {
	events []ssestream.Event
	i      int
	err    error
}

func (d *testDecoder) Event() ssestream.Event { return d.events[d.i-1] }

func (d *testDecoder) Next() bool {
	if d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}

func (d *testDecoder) Close() error { return nil }
func (d *testDecoder) Err() error   { return d.err }

func decoderFor(events []sseEvent) *testDecoder {
	dec := &testDecoder{}
	for _, e := range events {
		dec.events = append(dec.events, ssestream.Event{Type: e.event, Data: []byte(e.data)})
	}
	return dec
}

func collect(t *testing.T, s base.Stream) []base.Delta {
	t.Helper()
	var out []base.Delta
	for {
		d, err := s.Recv(context.Background())
		if errors.Is(err, base.ErrStreamClosed) {
			return out
		}
		require.NoError(t, err)
		out = append(out, d)
	}
}

func TestWrap_ToolUse(t *testing.T) {
	t.Parallel()
	s := Wrap(ssestream.NewStream[anth.MessageStreamEventUnion](decoderFor(toolUseEvents()), nil), "claude-test")
	defer s.Close()

	deltas := collect(t, s)
	require.Len(t, deltas, 6)

	assert.Equal(t, base.DeltaTypeText, deltas[0].Type)
	assert.Equal(t, "Let me check.", deltas[0].Text)
	assert.Equal(t, "anthropic", deltas[0].Provider)
	assert.Equal(t, "claude-test", deltas[0].Model)

	assert.Equal(t, base.DeltaTypeToolCallStart, deltas[1].Type)
	assert.Equal(t, &base.ToolCallChunk{Index: 1, ID: "toolu_1", Name: "get_weather"}, deltas[1].ToolChunk)

	// the empty partial_json fragment is dropped
	assert.Equal(t, &base.ToolCallChunk{Index: 1, Arguments: `{"city":`}, deltas[2].ToolChunk)
	assert.Equal(t, &base.ToolCallChunk{Index: 1, Arguments: ` "SF"}`}, deltas[3].ToolChunk)

	assert.Equal(t, base.DeltaTypeToolCallEnd, deltas[4].Type)
	assert.Equal(t, 1, deltas[4].ToolChunk.Index)
	assert.Equal(t, base.DeltaTypeDone, deltas[5].Type)
}

func TestWrap_TextBlockStopIsNotToolEnd(t *testing.T) {
	t.Parallel()
	events := []sseEvent{
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
	}
	// no message_stop: end of the event stream also completes
	s := Wrap(ssestream.NewStream[anth.MessageStreamEventUnion](decoderFor(events), nil), "m")
	deltas := collect(t, s)
	require.Len(t, deltas, 2)
	assert.Equal(t, base.DeltaTypeText, deltas[0].Type)
	assert.Equal(t, base.DeltaTypeDone, deltas[1].Type)
}

func TestWrap_PropagatesStreamError(t *testing.T) {
	t.Parallel()
	dec := decoderFor(toolUseEvents()[:5])
	dec.err = errors.New("connection reset")
	s := Wrap(ssestream.NewStream[anth.MessageStreamEventUnion](dec, nil), "m")

	var err error
	for err == nil {
		_, err = s.Recv(context.Background())
	}
	assert.ErrorContains(t, err, "connection reset")
	_, err = s.Recv(context.Background())
	assert.ErrorIs(t, err, base.ErrStreamClosed)
}

func sseHandler(events []sseEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, evt := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.event, evt.data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func TestClient_ToolStreamBridgesIntoController(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(sseHandler(toolUseEvents()))
	t.Cleanup(srv.Close)

	var finished atomic.Bool
	hooks := &observability.Hooks{
		OnLLMResponse: func(ctx context.Context, provider, model string, latency time.Duration, meta map[string]any) {
			finished.Store(true)
		},
	}
	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Hooks: hooks})
	require.NoError(t, err)

	ctx := context.Background()
	s, err := c.ToolStream(ctx, &base.ChatRequest{
		Messages: []base.Message{{Role: "user", Content: "Weather in SF?"}},
		Tools:    []base.Tool{{Type: "function", Function: base.ToolFunction{Name: "get_weather"}}},
	})
	require.NoError(t, err)

	var stream *toolcall.Stream
	var args string
	b, err := base.NewBridge(base.BridgeConfig{
		OnToolCall: func(_ context.Context, s *toolcall.Stream, _ *toolcall.Controller) { stream = s },
		OnToolCallEnd: func(_ context.Context, c *toolcall.Controller, a string) {
			args = a
			require.NoError(t, c.SetResponse(map[string]any{"temp_c": 18}))
		},
	})
	require.NoError(t, err)
	require.NoError(t, b.Run(ctx, s))

	assert.Equal(t, `{"city": "SF"}`, args)
	assert.True(t, finished.Load())

	evs, err := stream.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, evs, 4)
	assert.Equal(t, toolcall.Begin{ToolCallID: "toolu_1", ToolName: "get_weather"}, evs[0])
	assert.Equal(t, toolcall.Delta{ToolCallID: "toolu_1", ArgsTextDelta: `{"city":`}, evs[1])
	assert.Equal(t, toolcall.Delta{ToolCallID: "toolu_1", ArgsTextDelta: ` "SF"}`}, evs[2])
	assert.Equal(t, toolcall.KindResult, evs[3].Kind())
}

func TestClient_RetriesStreamOpen(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	ok := sseHandler(toolUseEvents())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
			return
		}
		ok(w, r)
	}))
	t.Cleanup(srv.Close)

	var retries []int
	hooks := &observability.Hooks{OnLLMRetry: func(ctx context.Context, p, model string, attempt int, err error) {
		assert.Equal(t, provider, p)
		assert.Error(t, err)
		retries = append(retries, attempt)
	}}
	c, err := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Retry:   base.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond},
		Hooks:   hooks,
	})
	require.NoError(t, err)

	s, err := c.ToolStream(context.Background(), &base.ChatRequest{Messages: []base.Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	deltas := collect(t, s)
	assert.Len(t, deltas, 6)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []int{2}, retries)
}
