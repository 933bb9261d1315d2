package llm

import (
	"context"
	"errors"
)

// DeltaType identifies the kind of streaming event emitted by a provider.
type DeltaType string

const (
	DeltaTypeText          DeltaType = "text"
	DeltaTypeToolCallStart DeltaType = "tool_call_start"
	DeltaTypeToolCallDelta DeltaType = "tool_call_delta"
	DeltaTypeToolCallEnd   DeltaType = "tool_call_end"
	DeltaTypeDone          DeltaType = "done"
)

// ToolCallChunk represents an incremental tool call payload.
// Index identifies the call within one model response; providers only send
// the ID and Name on the first chunk of a call.
type ToolCallChunk struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"` // chunked JSON string
}

// Delta is a provider-neutral streaming event.
type Delta struct {
	Type      DeltaType      `json:"type"`
	Text      string         `json:"text,omitempty"`
	ToolChunk *ToolCallChunk `json:"tool_chunk,omitempty"`
	// Provider/model are optional hints for observability
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Stream provides a pull-based API over provider event streams.
// Implementations return (Delta{Type: DeltaTypeDone}, nil) once the response
// is complete and ErrStreamClosed on any later call.
type Stream interface {
	Recv(ctx context.Context) (Delta, error)
	Close() error
}

// ErrStreamClosed indicates Recv was called after Close or terminal event.
var ErrStreamClosed = errors.New("stream closed")
