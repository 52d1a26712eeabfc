package candidate

import (
	"sort"
	"time"

	"github.com/agenthands/feekg/internal/core/model"
)

// Generator bounds the pairwise search space. Events are held sorted by
// (timestamp, id) so each source's candidate set is retrieved with two
// binary searches instead of a full scan: O(n*k) over the run, never the
// O(n^2) cross join.
type Generator struct {
	events []*model.Event
	window time.Duration
}

// NewGenerator copies and sorts the event slice. Events with identical
// timestamps are ordered by id; this is the documented tie-break, and such
// events are candidates of each other in both directions.
func NewGenerator(events []*model.Event, window time.Duration) *Generator {
	sorted := make([]*model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return &Generator{events: sorted, window: window}
}

// Sources returns the events in scoring order. Workers partition a rebuild
// by index into this slice.
func (g *Generator) Sources() []*model.Event {
	return g.events
}

// Candidates returns the targets for the source at index i: every other
// event whose timestamp lies in [t, t+window]. Equal-timestamp events are
// included; events beyond the window are never produced.
func (g *Generator) Candidates(i int) []*model.Event {
	src := g.events[i]
	lo := sort.Search(len(g.events), func(j int) bool {
		return !g.events[j].Timestamp.Before(src.Timestamp)
	})
	limit := src.Timestamp.Add(g.window)
	hi := sort.Search(len(g.events), func(j int) bool {
		return g.events[j].Timestamp.After(limit)
	})

	var targets []*model.Event
	for j := lo; j < hi; j++ {
		if j == i {
			continue
		}
		targets = append(targets, g.events[j])
	}
	return targets
}

// Pairs materializes the candidate pairs for one source event.
func (g *Generator) Pairs(i int) []model.CandidatePair {
	src := g.events[i]
	candidates := g.Candidates(i)
	pairs := make([]model.CandidatePair, 0, len(candidates))
	for _, tgt := range candidates {
		pairs = append(pairs, model.CandidatePair{Source: src, Target: tgt})
	}
	return pairs
}
