// Package toolcall turns the imperative lifecycle of a single tool call
// (begin, argument text deltas, result, close) into an ordered stream of
// event records for a downstream consumer.
package toolcall

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the type of a tool call event.
type Kind string

const (
	KindBegin  Kind = "tool-call-begin"
	KindDelta  Kind = "tool-call-delta"
	KindResult Kind = "tool-result"
	// KindEnd marks the end of the stream. It is never serialized.
	KindEnd Kind = "end"
)

var (
	// ErrEndNotSerializable is returned when marshaling the End marker.
	ErrEndNotSerializable = errors.New("end marker is not a serializable event")
	// ErrUnknownKind is returned when decoding an event with an unknown type.
	ErrUnknownKind = errors.New("unknown tool call event type")
)

// Event is a sealed interface over Begin, Delta, Result and End.
type Event interface {
	Kind() Kind
	event()
}

// Begin opens a tool call stream. ParentID optionally links to an
// enclosing call.
type Begin struct {
	ToolCallID string
	ToolName   string
	ParentID   *string
}

func (Begin) Kind() Kind { return KindBegin }
func (Begin) event()     {}

// Delta appends a fragment of serialized arguments text.
type Delta struct {
	ToolCallID    string
	ArgsTextDelta string
}

func (Delta) Kind() Kind { return KindDelta }
func (Delta) event()     {}

// Result is the terminal outcome of a tool call.
type Result struct {
	ToolCallID string
	Result     any
	Artifact   any
	IsError    bool
}

func (Result) Kind() Kind { return KindResult }
func (Result) event()     {}

// End signals that no further events will arrive. Consumers stop at the first
// End and never hand it downstream.
type End struct{}

func (End) Kind() Kind { return KindEnd }
func (End) event()     {}

var (
	_ Event = Begin{}
	_ Event = Delta{}
	_ Event = Result{}
	_ Event = End{}
)

// CallID returns the tool call id carried by ev, or "" for End.
func CallID(ev Event) string {
	switch e := ev.(type) {
	case Begin:
		return e.ToolCallID
	case Delta:
		return e.ToolCallID
	case Result:
		return e.ToolCallID
	}
	return ""
}

type beginJSON struct {
	Type       Kind    `json:"type"`
	ToolCallID string  `json:"tool_call_id"`
	ToolName   string  `json:"tool_name"`
	ParentID   *string `json:"parent_id"`
}

type deltaJSON struct {
	Type          Kind   `json:"type"`
	ToolCallID    string `json:"tool_call_id"`
	ArgsTextDelta string `json:"args_text_delta"`
}

type resultJSON struct {
	Type       Kind   `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Result     any    `json:"result"`
	Artifact   any    `json:"artifact"`
	IsError    bool   `json:"is_error"`
}

// MarshalEvent serializes a domain event to its wire shape.
func MarshalEvent(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case Begin:
		return json.Marshal(beginJSON{Type: KindBegin, ToolCallID: e.ToolCallID, ToolName: e.ToolName, ParentID: e.ParentID})
	case Delta:
		return json.Marshal(deltaJSON{Type: KindDelta, ToolCallID: e.ToolCallID, ArgsTextDelta: e.ArgsTextDelta})
	case Result:
		return json.Marshal(resultJSON{Type: KindResult, ToolCallID: e.ToolCallID, Result: e.Result, Artifact: e.Artifact, IsError: e.IsError})
	case End:
		return nil, ErrEndNotSerializable
	}
	return nil, fmt.Errorf("marshal %T: %w", ev, ErrUnknownKind)
}

// UnmarshalEvent decodes a domain event from its wire shape.
func UnmarshalEvent(data []byte) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case KindBegin:
		var b beginJSON
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Begin{ToolCallID: b.ToolCallID, ToolName: b.ToolName, ParentID: b.ParentID}, nil
	case KindDelta:
		var d deltaJSON
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return Delta{ToolCallID: d.ToolCallID, ArgsTextDelta: d.ArgsTextDelta}, nil
	case KindResult:
		var r resultJSON
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return Result{ToolCallID: r.ToolCallID, Result: r.Result, Artifact: r.Artifact, IsError: r.IsError}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
}
