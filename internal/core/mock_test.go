package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agenthands/feekg/internal/core/linkstore"
	"github.com/agenthands/feekg/internal/core/model"
)

var errWriteRefused = errors.New("write refused")

// flakyStore wraps the in-memory link store and fails rebuild upserts for
// chosen pairs a configured number of times. A count of -1 fails forever.
type flakyStore struct {
	*linkstore.MemoryStore

	mu       sync.Mutex
	failures map[string]int
	attempts map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		MemoryStore: linkstore.NewMemoryStore(),
		failures:    make(map[string]int),
		attempts:    make(map[string]int),
	}
}

func pairLabel(from, to string) string {
	return fmt.Sprintf("%s->%s", from, to)
}

// failPair makes rebuild upserts of (from, to) fail count times; -1 forever.
func (s *flakyStore) failPair(from, to string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pairLabel(from, to)] = count
}

func (s *flakyStore) attemptCount(from, to string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[pairLabel(from, to)]
}

func (s *flakyStore) BeginRebuild(ctx context.Context, runID string) (linkstore.Rebuild, error) {
	rb, err := s.MemoryStore.BeginRebuild(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &flakyRebuild{store: s, inner: rb}, nil
}

type flakyRebuild struct {
	store *flakyStore
	inner linkstore.Rebuild
}

func (r *flakyRebuild) Upsert(ctx context.Context, link *model.EvolutionLink) error {
	key := pairLabel(link.FromID, link.ToID)

	r.store.mu.Lock()
	r.store.attempts[key]++
	remaining := r.store.failures[key]
	if remaining != 0 {
		if remaining > 0 {
			r.store.failures[key] = remaining - 1
		}
		r.store.mu.Unlock()
		return errWriteRefused
	}
	r.store.mu.Unlock()

	return r.inner.Upsert(ctx, link)
}

func (r *flakyRebuild) Commit(ctx context.Context) error { return r.inner.Commit(ctx) }
func (r *flakyRebuild) Merge(ctx context.Context) error  { return r.inner.Merge(ctx) }

// failingSource returns an error from All, for exercising the load path.
type failingSource struct{ err error }

func (s *failingSource) All(ctx context.Context) ([]*model.Event, error) {
	return nil, s.err
}

func (s *failingSource) Range(ctx context.Context, from, to time.Time) ([]*model.Event, error) {
	return nil, s.err
}
