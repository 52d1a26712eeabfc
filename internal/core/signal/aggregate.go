package signal

import (
	"github.com/agenthands/feekg/internal/config"
	"github.com/agenthands/feekg/internal/core/model"
)

// Aggregator folds the six component scores into a single confidence value
// and decides acceptance. Pure: the same components and configuration
// always yield the same aggregate and the same decision.
type Aggregator struct {
	weights   config.Weights
	threshold float64
}

// NewAggregator assumes the weight vector was validated at config load
// (sums to 1); it does not re-validate per call.
func NewAggregator(weights config.Weights, threshold float64) *Aggregator {
	return &Aggregator{weights: weights, threshold: threshold}
}

func (a *Aggregator) Threshold() float64 {
	return a.threshold
}

// Aggregate returns the weighted sum and whether it clears the acceptance
// threshold.
func (a *Aggregator) Aggregate(c model.ComponentScores) (float64, bool) {
	score := a.weights.Temporal*c.Temporal +
		a.weights.EntityOverlap*c.EntityOverlap +
		a.weights.Semantic*c.Semantic +
		a.weights.Topic*c.Topic +
		a.weights.Causality*c.Causality +
		a.weights.Emotional*c.Emotional
	return score, score >= a.threshold
}
