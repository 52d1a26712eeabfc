package model

import "time"

// ComponentScores is the fixed-shape record of the six evolution signals.
// Every field lies in [0,1], including fallback cases.
type ComponentScores struct {
	Temporal      float64 `json:"temporal"`
	EntityOverlap float64 `json:"entity_overlap"`
	Semantic      float64 `json:"semantic"`
	Topic         float64 `json:"topic"`
	Causality     float64 `json:"causality"`
	Emotional     float64 `json:"emotional"`
}

// EvolutionLink is a persisted directed relationship asserting that the
// event ToID plausibly continues or derives from FromID. At most one link
// exists per ordered (FromID, ToID) pair; recomputation replaces in place.
type EvolutionLink struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`

	Scores ComponentScores `json:"scores"`

	// Aggregate is the weighted sum of the six components under the weight
	// vector in force at computation time. Reproducible, no hidden state.
	Aggregate  float64   `json:"aggregate"`
	ComputedAt time.Time `json:"computed_at"`
}
