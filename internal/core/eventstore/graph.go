package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/feekg/internal/core/model"
	"github.com/agenthands/feekg/internal/driver"
)

// GraphStore reads and writes Event nodes through the graph driver.
// Timestamps are stored as RFC3339 strings so the ORDER BY and range
// comparisons in the Cypher match the engine's ordering.
type GraphStore struct {
	Driver driver.GraphDriver
}

func NewGraphStore(d driver.GraphDriver) *GraphStore {
	return &GraphStore{Driver: d}
}

func (s *GraphStore) Put(ctx context.Context, events ...*model.Event) error {
	for _, e := range events {
		params := map[string]interface{}{
			"uuid":       e.ID,
			"timestamp":  e.Timestamp.UTC().Format(time.RFC3339),
			"category":   e.Category,
			"entity_ids": e.EntityIDs,
			"summary":    e.Summary,
			"embedding":  e.Embedding,
			"sentiment":  nil,
		}
		if e.Sentiment != nil {
			params["sentiment"] = *e.Sentiment
		}
		if _, err := s.Driver.ExecuteQuery(ctx, driver.SaveEventNodeQuery, params); err != nil {
			return fmt.Errorf("failed to save event %s: %w", e.ID, err)
		}
	}
	return nil
}

func (s *GraphStore) All(ctx context.Context) ([]*model.Event, error) {
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetAllEventsQuery, nil)
	if err != nil {
		return nil, err
	}
	return eventsFromRecords(res.Records)
}

func (s *GraphStore) Range(ctx context.Context, from, to time.Time) ([]*model.Event, error) {
	params := map[string]interface{}{
		"from": from.UTC().Format(time.RFC3339),
		"to":   to.UTC().Format(time.RFC3339),
	}
	res, err := s.Driver.ExecuteQuery(ctx, driver.GetEventsInRangeQuery, params)
	if err != nil {
		return nil, err
	}
	return eventsFromRecords(res.Records)
}

func eventsFromRecords(records []*neo4j.Record) ([]*model.Event, error) {
	var events []*model.Event
	for _, rec := range records {
		e, err := eventFromRecord(rec)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func eventFromRecord(rec *neo4j.Record) (*model.Event, error) {
	e := &model.Event{}

	if v, ok := rec.Get("uuid"); ok {
		e.ID, _ = v.(string)
	}
	if v, ok := rec.Get("timestamp"); ok {
		raw, _ := v.(string)
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("event %s has malformed timestamp %q: %w", e.ID, raw, err)
		}
		e.Timestamp = ts
	}
	if v, ok := rec.Get("category"); ok {
		e.Category, _ = v.(string)
	}
	if v, ok := rec.Get("summary"); ok {
		e.Summary, _ = v.(string)
	}
	if v, ok := rec.Get("entity_ids"); ok {
		if list, ok := v.([]interface{}); ok {
			for _, item := range list {
				if id, ok := item.(string); ok {
					e.EntityIDs = append(e.EntityIDs, id)
				}
			}
		}
	}
	if v, ok := rec.Get("embedding"); ok {
		if list, ok := v.([]interface{}); ok {
			for _, item := range list {
				if f, ok := item.(float64); ok {
					e.Embedding = append(e.Embedding, float32(f))
				}
			}
		}
	}
	if v, ok := rec.Get("sentiment"); ok && v != nil {
		if f, ok := v.(float64); ok {
			e.Sentiment = &f
		}
	}
	return e, nil
}
