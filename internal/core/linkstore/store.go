package linkstore

import (
	"context"
	"sort"
	"sync"

	"github.com/agenthands/feekg/internal/core/model"
)

// Store persists accepted evolution links keyed by the ordered
// (from_id, to_id) pair. Upsert replaces in place; query results are
// deterministically ordered by aggregate score descending with id
// tie-breaks.
type Store interface {
	Upsert(ctx context.Context, link *model.EvolutionLink) error
	QueryFrom(ctx context.Context, id string) ([]*model.EvolutionLink, error)
	QueryTo(ctx context.Context, id string) ([]*model.EvolutionLink, error)
	QueryAbove(ctx context.Context, threshold float64) ([]*model.EvolutionLink, error)

	// BeginRebuild starts a staged recompute. Readers keep seeing the old
	// data until the rebuild commits; no lock is held across the rebuild.
	BeginRebuild(ctx context.Context, runID string) (Rebuild, error)
}

// Rebuild is one staged recompute pass.
type Rebuild interface {
	Upsert(ctx context.Context, link *model.EvolutionLink) error
	// Commit replaces the store contents with the staged links. Links the
	// run did not write are gone afterwards.
	Commit(ctx context.Context) error
	// Merge overlays the staged links without removing anything, used when
	// a run is cancelled or partially failed: fully upserted pairs are
	// preserved, prior links stay intact.
	Merge(ctx context.Context) error
}

type pairKey struct {
	from string
	to   string
}

// MemoryStore is the in-process Store. Safe for concurrent upserts.
type MemoryStore struct {
	mu    sync.RWMutex
	links map[pairKey]*model.EvolutionLink
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{links: make(map[pairKey]*model.EvolutionLink)}
}

func (s *MemoryStore) Upsert(ctx context.Context, link *model.EvolutionLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[pairKey{link.FromID, link.ToID}] = link
	return nil
}

func (s *MemoryStore) QueryFrom(ctx context.Context, id string) ([]*model.EvolutionLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.EvolutionLink
	for k, l := range s.links {
		if k.from == id {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Aggregate != out[j].Aggregate {
			return out[i].Aggregate > out[j].Aggregate
		}
		return out[i].ToID < out[j].ToID
	})
	return out, nil
}

func (s *MemoryStore) QueryTo(ctx context.Context, id string) ([]*model.EvolutionLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.EvolutionLink
	for k, l := range s.links {
		if k.to == id {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Aggregate != out[j].Aggregate {
			return out[i].Aggregate > out[j].Aggregate
		}
		return out[i].FromID < out[j].FromID
	})
	return out, nil
}

func (s *MemoryStore) QueryAbove(ctx context.Context, threshold float64) ([]*model.EvolutionLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.EvolutionLink
	for _, l := range s.links {
		if l.Aggregate >= threshold {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Aggregate != out[j].Aggregate {
			return out[i].Aggregate > out[j].Aggregate
		}
		if out[i].FromID != out[j].FromID {
			return out[i].FromID < out[j].FromID
		}
		return out[i].ToID < out[j].ToID
	})
	return out, nil
}

// Len reports the number of stored links.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

func (s *MemoryStore) BeginRebuild(ctx context.Context, runID string) (Rebuild, error) {
	return &memoryRebuild{
		store:   s,
		staging: make(map[pairKey]*model.EvolutionLink),
	}, nil
}

// memoryRebuild stages into a shadow map; the committed map stays readable
// untouched until Commit swaps it.
type memoryRebuild struct {
	mu      sync.Mutex
	store   *MemoryStore
	staging map[pairKey]*model.EvolutionLink
}

func (r *memoryRebuild) Upsert(ctx context.Context, link *model.EvolutionLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staging[pairKey{link.FromID, link.ToID}] = link
	return nil
}

func (r *memoryRebuild) Commit(ctx context.Context) error {
	r.mu.Lock()
	staged := r.staging
	r.staging = make(map[pairKey]*model.EvolutionLink)
	r.mu.Unlock()

	r.store.mu.Lock()
	r.store.links = staged
	r.store.mu.Unlock()
	return nil
}

func (r *memoryRebuild) Merge(ctx context.Context) error {
	r.mu.Lock()
	staged := r.staging
	r.staging = make(map[pairKey]*model.EvolutionLink)
	r.mu.Unlock()

	r.store.mu.Lock()
	for k, l := range staged {
		r.store.links[k] = l
	}
	r.store.mu.Unlock()
	return nil
}
