package state

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/KamdynS/toolstream/toolcall"
)

func mustRecord(t *testing.T, ev toolcall.Event) *Record {
	t.Helper()
	rec, err := NewRecord(ev)
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	return rec
}

func TestInMemoryStore_AppendAssignsPerCallSequence(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	recs := []*Record{
		mustRecord(t, toolcall.Begin{ToolCallID: "call_a", ToolName: "x"}),
		mustRecord(t, toolcall.Begin{ToolCallID: "call_b", ToolName: "y"}),
		mustRecord(t, toolcall.Delta{ToolCallID: "call_a", ArgsTextDelta: "{}"}),
	}
	for _, r := range recs {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if recs[0].Seq != 1 || recs[1].Seq != 1 || recs[2].Seq != 2 {
		t.Fatalf("unexpected sequences %d %d %d", recs[0].Seq, recs[1].Seq, recs[2].Seq)
	}

	all, _ := store.Events(ctx, "call_a")
	if len(all) != 2 {
		t.Fatalf("want 2 records for call_a got %d", len(all))
	}
	since, _ := store.EventsSince(ctx, "call_a", 1)
	if len(since) != 1 || since[0].Kind != toolcall.KindDelta {
		t.Fatalf("unexpected since result %#v", since)
	}

	// returned records are copies
	all[0].Kind = "mutated"
	again, _ := store.Events(ctx, "call_a")
	if again[0].Kind != toolcall.KindBegin {
		t.Fatalf("store leaked internal record")
	}
}

func TestInMemoryStore_AppendValidation(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Append(context.Background(), &Record{}); err == nil {
		t.Fatalf("expected error for record without tool call id")
	}
}

func TestInMemoryStore_EventsWindow_Table(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, mustRecord(t, toolcall.Delta{ToolCallID: "call_w", ArgsTextDelta: "x"}))
	}

	cases := []struct {
		name     string
		since    int64
		limit    int
		wantLen  int
		wantNext int64
	}{
		{"first_page", 0, 2, 2, 2},
		{"middle_page", 2, 2, 2, 4},
		{"last_page", 4, 2, 1, 5},
		{"past_end", 5, 2, 0, 5},
		{"zero_limit", 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, next, err := store.EventsWindow(ctx, "call_w", tc.since, tc.limit)
			if err != nil {
				t.Fatalf("window: %v", err)
			}
			if len(got) != tc.wantLen || next != tc.wantNext {
				t.Fatalf("want (%d,%d) got (%d,%d)", tc.wantLen, tc.wantNext, len(got), next)
			}
		})
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	_ = store.Append(ctx, mustRecord(t, toolcall.Begin{ToolCallID: "call_d", ToolName: "x"}))
	_ = store.Delete(ctx, "call_d")
	if evs, _ := store.Events(ctx, "call_d"); len(evs) != 0 {
		t.Fatalf("expected no events after delete, got %d", len(evs))
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	rec := mustRecord(t, toolcall.Result{ToolCallID: "call_r", Result: "ok", IsError: true})
	if rec.IsTerminal() {
		t.Fatalf("only the end record is terminal")
	}
	ev, err := rec.Event()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := toolcall.Result{ToolCallID: "call_r", Result: "ok", IsError: true}
	if !reflect.DeepEqual(ev, want) {
		t.Fatalf("want %#v got %#v", want, ev)
	}
	if _, err := NewRecord(toolcall.End{}); !errors.Is(err, toolcall.ErrEndNotSerializable) {
		t.Fatalf("want ErrEndNotSerializable got %v", err)
	}

	end := NewEndRecord("call_r")
	if !end.IsTerminal() {
		t.Fatalf("end record should be terminal")
	}
	if ev, err := end.Event(); err != nil || ev.Kind() != toolcall.KindEnd {
		t.Fatalf("end record decodes to %v, %v", ev, err)
	}
}

func TestRecorder_PersistsWhileForwarding(t *testing.T) {
	store := NewInMemoryStore()
	stream, ctrl, err := toolcall.Create(context.Background(), "get_weather", "call_rec")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = ctrl.AppendArgsText(`{"city":"NYC"}`)
	_ = ctrl.SetResponse(map[string]any{"temp": 72})

	rec := NewRecorder(stream, store)
	ctx := context.Background()
	var forwarded []toolcall.Kind
	for {
		ev, err := rec.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		forwarded = append(forwarded, ev.Kind())
	}

	stored, _ := store.Events(ctx, "call_rec")
	if len(forwarded) != 3 || len(stored) != 4 {
		t.Fatalf("want 3 forwarded and 4 stored, got %d forwarded %d stored", len(forwarded), len(stored))
	}
	for i, k := range forwarded {
		if stored[i].Kind != k || stored[i].Seq != int64(i+1) {
			t.Fatalf("record %d mismatch: %#v", i, stored[i])
		}
	}
	if !stored[3].IsTerminal() {
		t.Fatalf("last stored record should be the end marker, got %s", stored[3].Kind)
	}
	if rec.LastSeq != 4 {
		t.Fatalf("LastSeq want 4 got %d", rec.LastSeq)
	}

	// further Recv calls keep returning EOF without appending again
	if _, err := rec.Recv(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("want io.EOF got %v", err)
	}
	if again, _ := store.Events(ctx, "call_rec"); len(again) != 4 {
		t.Fatalf("end record appended twice")
	}
}
