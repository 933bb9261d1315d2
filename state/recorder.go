package state

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/KamdynS/toolstream/toolcall"
)

// Recorder forwards events from a source and appends each one to a Store
// before handing it to the caller. When the source ends, an end record is
// appended so that replays know the stream is complete.
type Recorder struct {
	src        toolcall.Source
	store      Store
	toolCallID string
	ended      bool
	// LastSeq is the sequence number of the most recently recorded event.
	LastSeq int64
}

// NewRecorder wraps src so that every received event is persisted in store.
func NewRecorder(src toolcall.Source, store Store) *Recorder {
	return &Recorder{src: src, store: store}
}

// Recv implements toolcall.Source.
func (r *Recorder) Recv(ctx context.Context) (toolcall.Event, error) {
	ev, err := r.src.Recv(ctx)
	if errors.Is(err, io.EOF) {
		if !r.ended && r.toolCallID != "" {
			r.ended = true
			if aerr := r.append(ctx, NewEndRecord(r.toolCallID)); aerr != nil {
				return nil, aerr
			}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	rec, err := NewRecord(ev)
	if err != nil {
		return nil, err
	}
	if r.toolCallID == "" {
		r.toolCallID = rec.ToolCallID
	}
	if err := r.append(ctx, rec); err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *Recorder) append(ctx context.Context, rec *Record) error {
	if err := r.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("append %s for %s: %w", rec.Kind, rec.ToolCallID, err)
	}
	r.LastSeq = rec.Seq
	return nil
}

var _ toolcall.Source = (*Recorder)(nil)
