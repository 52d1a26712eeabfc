package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/agenthands/feekg/internal/core/model"
)

// Source supplies time-ordered event records to the engine. Implementations
// return events sorted by (timestamp, id).
type Source interface {
	// All returns every event.
	All(ctx context.Context) ([]*model.Event, error)
	// Range returns events with timestamp in [from, to].
	Range(ctx context.Context, from, to time.Time) ([]*model.Event, error)
}

// Sink accepts ingested events.
type Sink interface {
	Put(ctx context.Context, events ...*model.Event) error
}

// MemoryStore holds events sorted by (timestamp, id) behind an RWMutex.
// Serves the pre-fetched, CPU-bound scoring path: range queries are two
// binary searches.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*model.Event
}

func NewMemoryStore(events ...*model.Event) *MemoryStore {
	s := &MemoryStore{}
	s.events = append(s.events, events...)
	s.sortLocked()
	return s
}

func (s *MemoryStore) sortLocked() {
	sort.SliceStable(s.events, func(i, j int) bool {
		if s.events[i].Timestamp.Equal(s.events[j].Timestamp) {
			return s.events[i].ID < s.events[j].ID
		}
		return s.events[i].Timestamp.Before(s.events[j].Timestamp)
	})
}

// Put inserts or replaces events by id and restores timestamp order.
func (s *MemoryStore) Put(ctx context.Context, events ...*model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]int, len(s.events))
	for i, e := range s.events {
		byID[e.ID] = i
	}
	for _, e := range events {
		if i, ok := byID[e.ID]; ok {
			s.events[i] = e
		} else {
			byID[e.ID] = len(s.events)
			s.events = append(s.events, e)
		}
	}
	s.sortLocked()
	return nil
}

func (s *MemoryStore) All(ctx context.Context) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryStore) Range(ctx context.Context, from, to time.Time) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := sort.Search(len(s.events), func(i int) bool {
		return !s.events[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Timestamp.After(to)
	})
	out := make([]*model.Event, hi-lo)
	copy(out, s.events[lo:hi])
	return out, nil
}

// Get returns the event with the given id, or nil.
func (s *MemoryStore) Get(id string) *model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// LoadFile reads a JSON array of events from disk.
func LoadFile(path string) ([]*model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file '%s': %w", path, err)
	}
	var events []*model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events file '%s': %w", path, err)
	}
	return events, nil
}
