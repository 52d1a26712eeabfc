package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/feekg/internal/config"
	"github.com/agenthands/feekg/internal/core/eventstore"
	"github.com/agenthands/feekg/internal/core/linkstore"
	"github.com/agenthands/feekg/internal/core/model"
)

func evt(id, ts, category string, entities ...string) *model.Event {
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return &model.Event{ID: id, Timestamp: parsed, Category: category, EntityIDs: entities}
}

// lehmanCascade is the September 2008 sequence used throughout: the filing,
// the AIG bailout a day later, the crash two weeks after that.
func lehmanCascade() []*model.Event {
	return []*model.Event{
		evt("evt_lehman", "2008-09-15T00:00:00Z", "bankruptcy_filing", "ent_lehman"),
		evt("evt_aig", "2008-09-16T00:00:00Z", "bailout_announcement", "ent_aig", "ent_fed"),
		evt("evt_crash", "2008-09-29T00:00:00Z", "stock_crash", "ent_dow"),
	}
}

func newTestEngine(store linkstore.Store, events ...*model.Event) *Engine {
	e := NewEngine(eventstore.NewMemoryStore(events...), store, config.Default())
	e.Now = func() time.Time { return time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC) }
	seq := 0
	e.NewRunID = func() string { seq++; return fmt.Sprintf("run-%d", seq) }
	return e
}

func TestRebuild_LehmanCascade(t *testing.T) {
	store := linkstore.NewMemoryStore()
	e := newTestEngine(store, lehmanCascade()...)

	report, err := e.Rebuild(context.Background())
	require.NoError(t, err)

	// Three forward pairs inside the 30-day window
	assert.Equal(t, int64(3), report.PairsConsidered)
	assert.Equal(t, int64(1), report.PairsAccepted)
	assert.Equal(t, int64(0), report.MalformedEvents)
	assert.Equal(t, int64(0), report.FailedPersist)
	assert.Equal(t, "run-1", report.RunID)

	links, err := store.QueryFrom(context.Background(), "evt_lehman")
	require.NoError(t, err)
	require.Len(t, links, 1)

	l := links[0]
	assert.Equal(t, "evt_aig", l.ToID)
	assert.InDelta(t, math.Exp(-0.1), l.Scores.Temporal, 1e-9)
	assert.Equal(t, 0.0, l.Scores.EntityOverlap)
	assert.Equal(t, 0.0, l.Scores.Semantic)
	assert.Equal(t, 0.7, l.Scores.Topic)
	assert.Equal(t, 0.9, l.Scores.Causality)
	assert.Equal(t, 0.5, l.Scores.Emotional)
	assert.InDelta(t, 0.581209, l.Aggregate, 1e-6)
	assert.Equal(t, e.Now(), l.ComputedAt)

	// The crash pairs score below threshold and leave no link
	out, err := store.QueryTo(context.Background(), "evt_crash")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRebuild_MalformedEventsSkippedAndCounted(t *testing.T) {
	store := linkstore.NewMemoryStore()
	events := append(lehmanCascade(),
		&model.Event{ID: "", Timestamp: time.Date(2008, 9, 15, 0, 0, 0, 0, time.UTC)},
		&model.Event{ID: "evt_no_time"},
	)
	e := newTestEngine(store, events...)

	report, err := e.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.MalformedEvents)
	// The well-formed events are still scored
	assert.Equal(t, int64(3), report.PairsConsidered)
	assert.Equal(t, int64(1), report.PairsAccepted)
}

func TestRebuild_WindowExcludesDistantPairs(t *testing.T) {
	store := linkstore.NewMemoryStore()
	e := newTestEngine(store,
		evt("evt_a", "2008-01-01T00:00:00Z", "credit_downgrade", "ent_x"),
		evt("evt_b", "2009-02-04T00:00:00Z", "debt_default", "ent_x"), // 400 days later
	)

	report, err := e.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.PairsConsidered)
	assert.Equal(t, 0, store.Len())
}

func TestRebuild_SameDayEventsLinkBothWays(t *testing.T) {
	store := linkstore.NewMemoryStore()
	e := newTestEngine(store,
		evt("evt_q2_call", "2021-04-20T00:00:00Z", "earnings_call", "ent_acme"),
		evt("evt_guidance", "2021-04-20T00:00:00Z", "earnings_call", "ent_acme"),
	)

	report, err := e.Rebuild(context.Background())
	require.NoError(t, err)

	// Equal timestamps: each event is a candidate of the other
	assert.Equal(t, int64(2), report.PairsConsidered)
	assert.Equal(t, int64(2), report.PairsAccepted)

	forward, err := store.QueryFrom(context.Background(), "evt_q2_call")
	require.NoError(t, err)
	backward, err := store.QueryFrom(context.Background(), "evt_guidance")
	require.NoError(t, err)
	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, forward[0].Aggregate, backward[0].Aggregate)
}

func TestRebuild_MissingEnrichmentStillScores(t *testing.T) {
	// No embeddings, no sentiment anywhere: the fallbacks keep every pair
	// evaluable and no event is treated as malformed.
	store := linkstore.NewMemoryStore()
	e := newTestEngine(store, lehmanCascade()...)

	report, err := e.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.MalformedEvents)
	assert.Equal(t, int64(3), report.PairsConsidered)
}

func TestRebuild_RerunProducesIdenticalLinks(t *testing.T) {
	store := linkstore.NewMemoryStore()
	e := newTestEngine(store, lehmanCascade()...)

	_, err := e.Rebuild(context.Background())
	require.NoError(t, err)
	first, err := store.QueryAbove(context.Background(), 0.0)
	require.NoError(t, err)

	_, err = e.Rebuild(context.Background())
	require.NoError(t, err)
	second, err := store.QueryAbove(context.Background(), 0.0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRebuild_LowerThresholdAcceptsSuperset(t *testing.T) {
	run := func(threshold float64) map[string]bool {
		cfg := config.Default()
		cfg.Evolution.Threshold = threshold
		store := linkstore.NewMemoryStore()
		e := NewEngine(eventstore.NewMemoryStore(lehmanCascade()...), store, cfg)
		e.Now = func() time.Time { return time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC) }
		e.NewRunID = func() string { return "run" }

		_, err := e.Rebuild(context.Background())
		require.NoError(t, err)

		links, err := store.QueryAbove(context.Background(), 0.0)
		require.NoError(t, err)
		accepted := make(map[string]bool)
		for _, l := range links {
			accepted[l.FromID+"->"+l.ToID] = true
		}
		return accepted
	}

	strict := run(0.5)
	loose := run(0.1)

	assert.Greater(t, len(loose), len(strict))
	for pair := range strict {
		assert.True(t, loose[pair], "pair %s lost when threshold dropped", pair)
	}
}

func TestRebuild_RetriesTransientWriteFailure(t *testing.T) {
	store := newFlakyStore()
	store.failPair("evt_lehman", "evt_aig", 2)

	e := newTestEngine(store, lehmanCascade()...)
	report, err := e.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.PairsAccepted)
	assert.Equal(t, int64(0), report.FailedPersist)
	assert.Equal(t, 3, store.attemptCount("evt_lehman", "evt_aig"))
}

func TestRebuild_PartialPersist(t *testing.T) {
	store := newFlakyStore()
	store.failPair("evt_lehman", "evt_aig", -1)

	// A prior link that the failed run must not destroy
	prior := &model.EvolutionLink{FromID: "evt_old", ToID: "evt_older", Aggregate: 0.8}
	require.NoError(t, store.Upsert(context.Background(), prior))

	e := newTestEngine(store, lehmanCascade()...)
	report, err := e.Rebuild(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPartialPersist))

	assert.Equal(t, int64(1), report.FailedPersist)
	require.Len(t, report.FailedPairs, 1)
	assert.Equal(t, PairRef{FromID: "evt_lehman", ToID: "evt_aig"}, report.FailedPairs[0])

	// The overlay keeps the prior link; nothing was swept
	out, err := store.QueryFrom(context.Background(), "evt_old")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRebuild_CancelledBeforeStart(t *testing.T) {
	store := linkstore.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(),
		&model.EvolutionLink{FromID: "evt_old", ToID: "evt_older", Aggregate: 0.8}))

	e := newTestEngine(store, lehmanCascade()...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.Rebuild(ctx)
	require.Error(t, err)
	require.NotNil(t, report)

	// Prior links survive a cancelled run
	out, qerr := store.QueryFrom(context.Background(), "evt_old")
	require.NoError(t, qerr)
	assert.Len(t, out, 1)
}

func TestRebuild_CommitSweepsStaleLinks(t *testing.T) {
	store := linkstore.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(),
		&model.EvolutionLink{FromID: "evt_removed", ToID: "evt_gone", Aggregate: 0.9}))

	e := newTestEngine(store, lehmanCascade()...)
	_, err := e.Rebuild(context.Background())
	require.NoError(t, err)

	out, err := store.QueryFrom(context.Background(), "evt_removed")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRebuild_EventLoadError(t *testing.T) {
	e := newTestEngine(linkstore.NewMemoryStore())
	e.Events = &failingSource{err: errors.New("store offline")}

	_, err := e.Rebuild(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
}

func TestRebuild_EmptyEventSet(t *testing.T) {
	store := linkstore.NewMemoryStore()
	e := newTestEngine(store)

	report, err := e.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.PairsConsidered)
	assert.Equal(t, 0, store.Len())
}
