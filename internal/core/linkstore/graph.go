package linkstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/feekg/internal/core/model"
	"github.com/agenthands/feekg/internal/driver"
)

// GraphStore persists links as EVOLVES_TO edges between Event nodes. The
// MERGE in the save query makes Upsert idempotent per (from, to) pair, and
// in-place replacement keeps old edges queryable while a rebuild runs; a
// committed rebuild then drops the edges the run did not write.
type GraphStore struct {
	Driver driver.GraphDriver
}

func NewGraphStore(d driver.GraphDriver) *GraphStore {
	return &GraphStore{Driver: d}
}

func (s *GraphStore) Upsert(ctx context.Context, link *model.EvolutionLink) error {
	return s.upsert(ctx, link, "")
}

func (s *GraphStore) upsert(ctx context.Context, link *model.EvolutionLink, runID string) error {
	params := map[string]interface{}{
		"from_uuid":      link.FromID,
		"to_uuid":        link.ToID,
		"temporal":       link.Scores.Temporal,
		"entity_overlap": link.Scores.EntityOverlap,
		"semantic":       link.Scores.Semantic,
		"topic":          link.Scores.Topic,
		"causality":      link.Scores.Causality,
		"emotional":      link.Scores.Emotional,
		"aggregate":      link.Aggregate,
		"computed_at":    link.ComputedAt.UTC().Format(time.RFC3339),
		"run_id":         runID,
	}
	if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveEvolutionEdgeQuery, params); err != nil {
		return fmt.Errorf("failed to save link %s->%s: %w", link.FromID, link.ToID, err)
	}
	return nil
}

func (s *GraphStore) QueryFrom(ctx context.Context, id string) ([]*model.EvolutionLink, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetLinksFromQuery, map[string]interface{}{"uuid": id})
	if err != nil {
		return nil, err
	}
	return linksFromRecords(res.Records)
}

func (s *GraphStore) QueryTo(ctx context.Context, id string) ([]*model.EvolutionLink, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetLinksToQuery, map[string]interface{}{"uuid": id})
	if err != nil {
		return nil, err
	}
	return linksFromRecords(res.Records)
}

func (s *GraphStore) QueryAbove(ctx context.Context, threshold float64) ([]*model.EvolutionLink, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetLinksAboveQuery, map[string]interface{}{"threshold": threshold})
	if err != nil {
		return nil, err
	}
	return linksFromRecords(res.Records)
}

func (s *GraphStore) BeginRebuild(ctx context.Context, runID string) (Rebuild, error) {
	if runID == "" {
		return nil, fmt.Errorf("rebuild requires a run id")
	}
	return &graphRebuild{store: s, runID: runID}, nil
}

// graphRebuild tags each written edge with the run id. Existing edges are
// replaced in place as pairs are recomputed, so reads never block; Commit
// sweeps away edges from prior runs.
type graphRebuild struct {
	store *GraphStore
	runID string
}

func (r *graphRebuild) Upsert(ctx context.Context, link *model.EvolutionLink) error {
	return r.store.upsert(ctx, link, r.runID)
}

func (r *graphRebuild) Commit(ctx context.Context) error {
	params := map[string]interface{}{"run_id": r.runID}
	if _, err := r.store.Driver.ExecuteQuery(ctx, driver.DeleteStaleLinksQuery, params); err != nil {
		return fmt.Errorf("failed to remove stale links: %w", err)
	}
	return nil
}

// Merge keeps whatever the run managed to write alongside the prior edges.
func (r *graphRebuild) Merge(ctx context.Context) error {
	return nil
}

func linksFromRecords(records []*neo4j.Record) ([]*model.EvolutionLink, error) {
	var links []*model.EvolutionLink
	for _, rec := range records {
		l, err := linkFromRecord(rec)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

func linkFromRecord(rec *neo4j.Record) (*model.EvolutionLink, error) {
	l := &model.EvolutionLink{}

	getString := func(key string) string {
		if v, ok := rec.Get(key); ok {
			s, _ := v.(string)
			return s
		}
		return ""
	}
	getFloat := func(key string) float64 {
		if v, ok := rec.Get(key); ok {
			f, _ := v.(float64)
			return f
		}
		return 0
	}

	l.FromID = getString("from_uuid")
	l.ToID = getString("to_uuid")
	l.Scores = model.ComponentScores{
		Temporal:      getFloat("temporal"),
		EntityOverlap: getFloat("entity_overlap"),
		Semantic:      getFloat("semantic"),
		Topic:         getFloat("topic"),
		Causality:     getFloat("causality"),
		Emotional:     getFloat("emotional"),
	}
	l.Aggregate = getFloat("aggregate")

	if raw := getString("computed_at"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("link %s->%s has malformed computed_at %q: %w", l.FromID, l.ToID, raw, err)
		}
		l.ComputedAt = ts
	}
	return l, nil
}
