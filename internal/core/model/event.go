package model

import (
	"errors"
	"time"
)

// Event is an immutable financial event record. Events are created by
// ingestion and never mutated by the engine; the optional embedding and
// sentiment are attached before scoring by the enrichment step.
type Event struct {
	ID        string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	// EntityIDs are the participating entity identifiers. The first entry
	// is the acting entity when the ingestion source distinguishes one.
	EntityIDs []string  `json:"entity_ids,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	Sentiment *float64  `json:"sentiment,omitempty"`
}

var (
	ErrMissingID        = errors.New("event has no id")
	ErrMissingTimestamp = errors.New("event has no timestamp")
)

// Validate reports whether the event is well-formed enough to score.
// Malformed events are skipped and counted, never scored.
func (e *Event) Validate() error {
	if e == nil || e.ID == "" {
		return ErrMissingID
	}
	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// Actor returns the acting entity id, or "" when none is recorded.
func (e *Event) Actor() string {
	if len(e.EntityIDs) == 0 {
		return ""
	}
	return e.EntityIDs[0]
}

// CandidatePair is an ordered (source, target) pair under consideration.
// Ephemeral: it exists only for the duration of a scoring pass and is never
// persisted. Source.Timestamp <= Target.Timestamp always holds.
type CandidatePair struct {
	Source *Event
	Target *Event
}
