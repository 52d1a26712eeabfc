package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/feekg/internal/config"
	"github.com/agenthands/feekg/internal/core/candidate"
	"github.com/agenthands/feekg/internal/core/eventstore"
	"github.com/agenthands/feekg/internal/core/linkstore"
	"github.com/agenthands/feekg/internal/core/model"
	"github.com/agenthands/feekg/internal/core/signal"
)

// ErrPartialPersist is returned when a rebuild completed scoring but some
// accepted links could not be written after retries. The report enumerates
// the unwritten pairs; everything that was written stays written.
var ErrPartialPersist = errors.New("some links could not be persisted")

// Engine runs the evolution scoring pipeline: candidate generation, the six
// signals, aggregation, and staged persistence. Workers partition a rebuild
// by source event, so link writes for distinct source events never touch
// the same (from, to) key.
type Engine struct {
	Events eventstore.Source
	Links  linkstore.Store

	Scorer     *signal.Scorer
	Aggregator *signal.Aggregator

	Window         time.Duration
	Workers        int
	PersistRetries int

	// Injectable for deterministic tests.
	Now      func() time.Time
	NewRunID func() string
}

func NewEngine(events eventstore.Source, links linkstore.Store, cfg *config.Config) *Engine {
	return &Engine{
		Events:         events,
		Links:          links,
		Scorer:         signal.NewScorer(cfg.Evolution),
		Aggregator:     signal.NewAggregator(cfg.Evolution.Weights, cfg.Evolution.Threshold),
		Window:         time.Duration(cfg.Evolution.WindowDays) * 24 * time.Hour,
		Workers:        cfg.Concurrency.RebuildWorkers,
		PersistRetries: cfg.Concurrency.PersistRetries,
		Now:            time.Now,
		NewRunID:       func() string { return uuid.New().String() },
	}
}

// PairRef identifies an ordered event pair.
type PairRef struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// RunReport is the accounting for one rebuild. Nothing is dropped silently:
// every considered pair lands in exactly one of accepted, rejected (the
// remainder), or failed; malformed events are counted before pairing.
type RunReport struct {
	RunID           string    `json:"run_id"`
	PairsConsidered int64     `json:"pairs_considered"`
	PairsAccepted   int64     `json:"pairs_accepted"`
	MalformedEvents int64     `json:"malformed_events"`
	FailedPersist   int64     `json:"failed_persist"`
	FailedPairs     []PairRef `json:"failed_pairs,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Rebuild recomputes every candidate pair and replaces the link store
// contents. Reads keep serving the previous links until the staged rebuild
// commits. Cancellation takes effect at source-event granularity: pairs
// already fully upserted are preserved, nothing is left half-written.
func (e *Engine) Rebuild(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     e.NewRunID(),
		StartedAt: e.Now().UTC(),
	}

	all, err := e.Events.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	var valid []*model.Event
	for _, ev := range all {
		if verr := ev.Validate(); verr != nil {
			report.MalformedEvents++
			log.Printf("Skipping malformed event: %v", verr)
			continue
		}
		valid = append(valid, ev)
	}

	gen := candidate.NewGenerator(valid, e.Window)

	rb, err := e.Links.BeginRebuild(ctx, report.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to begin rebuild: %w", err)
	}

	var considered, accepted, failedCount atomic.Int64
	var failedMu sync.Mutex
	var failed []PairRef

	g, gctx := errgroup.WithContext(ctx)
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	sources := gen.Sources()
	for i := range sources {
		i := i
		g.Go(func() error {
			// Batch boundary: a cancelled run abandons whole source
			// events, never a half-scored one.
			if gctx.Err() != nil {
				return gctx.Err()
			}
			for _, pair := range gen.Pairs(i) {
				considered.Add(1)

				scores := e.Scorer.Score(pair)
				aggregate, accept := e.Aggregator.Aggregate(scores)
				if !accept {
					continue
				}

				link := &model.EvolutionLink{
					FromID:     pair.Source.ID,
					ToID:       pair.Target.ID,
					Scores:     scores,
					Aggregate:  aggregate,
					ComputedAt: e.Now().UTC(),
				}
				if err := e.upsertWithRetry(gctx, rb, link); err != nil {
					failedCount.Add(1)
					failedMu.Lock()
					failed = append(failed, PairRef{FromID: link.FromID, ToID: link.ToID})
					failedMu.Unlock()
					log.Printf("Failed to persist link %s->%s: %v", link.FromID, link.ToID, err)
					continue
				}
				accepted.Add(1)
			}
			return nil
		})
	}

	waitErr := g.Wait()

	report.PairsConsidered = considered.Load()
	report.PairsAccepted = accepted.Load()
	report.FailedPersist = failedCount.Load()
	sort.Slice(failed, func(i, j int) bool {
		if failed[i].FromID != failed[j].FromID {
			return failed[i].FromID < failed[j].FromID
		}
		return failed[i].ToID < failed[j].ToID
	})
	report.FailedPairs = failed
	report.FinishedAt = e.Now().UTC()

	if waitErr != nil {
		// Cancelled mid-run: keep whatever was fully upserted, leave
		// prior links in place.
		if mergeErr := rb.Merge(context.WithoutCancel(ctx)); mergeErr != nil {
			log.Printf("Failed to merge partial rebuild %s: %v", report.RunID, mergeErr)
		}
		return report, waitErr
	}

	if report.FailedPersist > 0 {
		// Scoring finished but some writes exhausted their retries. A full
		// replace would drop the prior links for those pairs, so overlay
		// instead and surface the partial result.
		if mergeErr := rb.Merge(ctx); mergeErr != nil {
			return report, fmt.Errorf("failed to merge partial rebuild: %w", mergeErr)
		}
		return report, fmt.Errorf("%w: %d pairs unwritten", ErrPartialPersist, report.FailedPersist)
	}

	if err := rb.Commit(ctx); err != nil {
		return report, fmt.Errorf("failed to commit rebuild: %w", err)
	}
	return report, nil
}

// upsertWithRetry retries a failed write with bounded backoff at
// single-link granularity.
func (e *Engine) upsertWithRetry(ctx context.Context, rb linkstore.Rebuild, link *model.EvolutionLink) error {
	var lastErr error
	for attempt := 0; attempt <= e.PersistRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(50*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if lastErr = rb.Upsert(ctx, link); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
