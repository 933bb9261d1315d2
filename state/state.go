// Package state persists tool call events so that streams can be replayed
// and resumed after a consumer disconnects.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KamdynS/toolstream/toolcall"
)

// Record is a persisted tool call event.
type Record struct {
	ToolCallID string        `json:"tool_call_id"`
	Seq        int64         `json:"seq"`
	Kind       toolcall.Kind `json:"kind"`
	// Data holds the event in its wire shape (see toolcall.MarshalEvent).
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRecord builds an unsequenced record from a domain event.
func NewRecord(ev toolcall.Event) (*Record, error) {
	data, err := toolcall.MarshalEvent(ev)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", ev.Kind(), err)
	}
	return &Record{
		ToolCallID: toolcall.CallID(ev),
		Kind:       ev.Kind(),
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// NewEndRecord builds the record that marks the end of a tool call stream.
func NewEndRecord(toolCallID string) *Record {
	return &Record{
		ToolCallID: toolCallID,
		Kind:       toolcall.KindEnd,
		Timestamp:  time.Now().UTC(),
	}
}

// Event decodes the stored event.
func (r *Record) Event() (toolcall.Event, error) {
	if r.Kind == toolcall.KindEnd {
		return toolcall.End{}, nil
	}
	return toolcall.UnmarshalEvent(r.Data)
}

// IsTerminal reports whether the record ends its tool call stream.
func (r *Record) IsTerminal() bool {
	return r.Kind == toolcall.KindEnd
}

// Store defines the interface for persisting tool call events
type Store interface {
	// Append assigns the next sequence number for the record's tool call and stores it
	Append(ctx context.Context, rec *Record) error

	// Events retrieves all records for a tool call
	Events(ctx context.Context, toolCallID string) ([]*Record, error)

	// EventsSince retrieves records with a sequence number greater than since
	EventsSince(ctx context.Context, toolCallID string, since int64) ([]*Record, error)

	// Delete removes all records of a tool call
	Delete(ctx context.Context, toolCallID string) error
}
