package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/KamdynS/toolstream/state"
)

// Ensure Store implements state.Store
var _ state.Store = (*Store)(nil)

// ---------- Key helpers ----------

func (s *Store) eventsKey(id string) string { return fmt.Sprintf("%s:call:%s:events", s.prefix, id) }
func (s *Store) seqKey(id string) string    { return fmt.Sprintf("%s:call:%s:seq", s.prefix, id) }

// ---------- Events ----------

// Append implements state.Store.
func (s *Store) Append(ctx context.Context, rec *state.Record) error {
	if rec == nil || rec.ToolCallID == "" {
		return fmt.Errorf("record with tool call id is required")
	}
	stored := *rec
	stored.Seq = 0
	b, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	keys := []string{s.seqKey(rec.ToolCallID), s.eventsKey(rec.ToolCallID)}
	args := []interface{}{string(b), s.ttl.Milliseconds()}

	if s.appendSHA != "" {
		if seq, err := s.rdb.EvalSha(ctx, s.appendSHA, keys, args...).Int64(); err == nil {
			rec.Seq = seq
			return nil
		}
		// if NOSCRIPT or other error, fall through to EVAL
	}
	seq, err := s.rdb.Eval(ctx, luaAppendEvent, keys, args...).Int64()
	if err != nil {
		return fmt.Errorf("redis eval append event: %w", err)
	}
	rec.Seq = seq
	return nil
}

// Events implements state.Store.
func (s *Store) Events(ctx context.Context, toolCallID string) ([]*state.Record, error) {
	return s.EventsSince(ctx, toolCallID, 0)
}

// EventsSince implements state.Store.
func (s *Store) EventsSince(ctx context.Context, toolCallID string, since int64) ([]*state.Record, error) {
	// ZRANGEBYSCORE (since, +inf] using exclusive min
	opt := &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since, 10),
		Max: "+inf",
	}
	vals, err := s.rdb.ZRangeByScore(ctx, s.eventsKey(toolCallID), opt).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore events: %w", err)
	}
	out := make([]*state.Record, 0, len(vals))
	for _, v := range vals {
		rec, uerr := decodeMember(v)
		if uerr != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete implements state.Store.
func (s *Store) Delete(ctx context.Context, toolCallID string) error {
	if err := s.rdb.Del(ctx, s.eventsKey(toolCallID), s.seqKey(toolCallID)).Err(); err != nil {
		return fmt.Errorf("redis del tool call: %w", err)
	}
	return nil
}

// decodeMember parses a "<seq>:<json>" ZSET member.
func decodeMember(member string) (*state.Record, error) {
	seqStr, payload, ok := strings.Cut(member, ":")
	if !ok {
		return nil, fmt.Errorf("malformed member")
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed sequence %q: %w", seqStr, err)
	}
	var rec state.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, err
	}
	rec.Seq = seq
	return &rec, nil
}
