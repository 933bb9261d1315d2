package state

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryStore is an in-memory implementation of Store
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]*Record
}

// NewInMemoryStore creates a new in-memory event store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[string][]*Record),
	}
}

// Append implements Store
func (s *InMemoryStore) Append(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ToolCallID == "" {
		return fmt.Errorf("record with tool call id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events[rec.ToolCallID]

	// Set sequence number
	rec.Seq = int64(len(events)) + 1

	// Create a copy to avoid external mutations
	recCopy := *rec
	s.events[rec.ToolCallID] = append(events, &recCopy)
	return nil
}

// Events implements Store
func (s *InMemoryStore) Events(ctx context.Context, toolCallID string) ([]*Record, error) {
	return s.EventsSince(ctx, toolCallID, 0)
}

// EventsSince implements Store
func (s *InMemoryStore) EventsSince(ctx context.Context, toolCallID string, since int64) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Record, 0)
	for _, rec := range s.events[toolCallID] {
		if rec.Seq > since {
			recCopy := *rec
			result = append(result, &recCopy)
		}
	}
	return result, nil
}

// EventsWindow returns up to limit records strictly after 'since', and the next
// sequence to request (the last record's Seq or 'since' if none).
func (s *InMemoryStore) EventsWindow(ctx context.Context, toolCallID string, since int64, limit int) ([]*Record, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, exists := s.events[toolCallID]
	if !exists || limit <= 0 {
		return []*Record{}, since, nil
	}

	window := make([]*Record, 0, limit)
	next := since
	for _, rec := range events {
		if rec.Seq > since {
			recCopy := *rec
			window = append(window, &recCopy)
			next = rec.Seq
			if len(window) >= limit {
				break
			}
		}
	}
	return window, next, nil
}

// Delete implements Store
func (s *InMemoryStore) Delete(ctx context.Context, toolCallID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, toolCallID)
	return nil
}
