package agenthttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/KamdynS/toolstream/state"
	"github.com/KamdynS/toolstream/toolcall"
)

// EventsSinceGetter fetches tool call records since a given sequence.
type EventsSinceGetter func(ctx context.Context, toolCallID string, since int64) ([]*state.Record, error)

const (
	defaultPollInterval      = 500 * time.Millisecond
	defaultHeartbeatInterval = 15 * time.Second
)

func startSSE(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("stream unsupported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, nil
}

func writeFrame(w io.Writer, seq int64, kind toolcall.Kind, data []byte) {
	fmt.Fprintf(w, "id: %d\n", seq)
	fmt.Fprintf(w, "event: %s\n", kind)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeDone(w io.Writer) {
	fmt.Fprintf(w, "event: done\ndata: {}\n\n")
}

// ParseLastEventID returns the sequence a client has already seen. Empty or
// malformed values resume from the beginning.
func ParseLastEventID(lastEventID string) int64 {
	if lastEventID == "" {
		return 0
	}
	v, err := strconv.ParseInt(lastEventID, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

type recvResult struct {
	ev  toolcall.Event
	err error
}

// StreamToolCall streams live events from src over SSE.
//   - Frames carry a per-call sequence id starting at 1, matching the
//     sequence numbers a state.Recorder assigns
//   - Sends heartbeat comments ": ping" at heartbeatInterval (default 15s)
//   - Emits "event: done" once src reports the end of the stream
func StreamToolCall(
	ctx context.Context,
	w http.ResponseWriter,
	src toolcall.Source,
	heartbeatInterval time.Duration,
) error {
	flusher, err := startSSE(w)
	if err != nil {
		return err
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = defaultHeartbeatInterval
	}
	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Recv blocks, so it runs on its own goroutine and hands results over one
	// at a time; the next Recv only starts after the previous frame is written.
	results := make(chan recvResult)
	next := make(chan struct{}, 1)
	next <- struct{}{}
	go func() {
		defer close(results)
		for {
			select {
			case <-ctx.Done():
				return
			case <-next:
			}
			ev, err := src.Recv(ctx)
			select {
			case results <- recvResult{ev: ev, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-results:
			if !ok {
				return nil
			}
			if errors.Is(r.err, io.EOF) {
				writeDone(w)
				flusher.Flush()
				return nil
			}
			if r.err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return r.err
			}
			b, err := toolcall.MarshalEvent(r.ev)
			if err != nil {
				return err
			}
			seq++
			writeFrame(w, seq, r.ev.Kind(), b)
			flusher.Flush()
			next <- struct{}{}
		case <-hb.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// ReplayToolCall streams persisted tool call records over SSE using the
// provided getter.
//   - Respects Last-Event-ID for resume (pass empty string if none)
//   - Sends heartbeat comments ": ping" at heartbeatInterval (default 15s)
//   - Polls for new records at pollInterval (default 500ms)
//   - Emits "event: done" and returns on the end record
func ReplayToolCall(
	ctx context.Context,
	w http.ResponseWriter,
	lastEventID string,
	getSince EventsSinceGetter,
	toolCallID string,
	pollInterval time.Duration,
	heartbeatInterval time.Duration,
) error {
	flusher, err := startSSE(w)
	if err != nil {
		return err
	}
	since := ParseLastEventID(lastEventID)

	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = defaultHeartbeatInterval
	}
	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	// first poll happens immediately so resumed clients catch up without delay
	poll := func() (bool, error) {
		recs, err := getSince(ctx, toolCallID, since)
		if err != nil {
			return false, err
		}
		for _, rec := range recs {
			if rec.Seq > since {
				since = rec.Seq
			}
			if rec.IsTerminal() {
				writeDone(w)
				flusher.Flush()
				return true, nil
			}
			writeFrame(w, rec.Seq, rec.Kind, rec.Data)
		}
		if len(recs) > 0 {
			flusher.Flush()
		}
		return false, nil
	}

	if done, err := poll(); done || err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if done, err := poll(); done || err != nil {
				return err
			}
		case <-hb.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
