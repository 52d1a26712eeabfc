package signal

import (
	"math"

	"github.com/agenthands/feekg/internal/config"
	"github.com/agenthands/feekg/internal/core/common"
	"github.com/agenthands/feekg/internal/core/model"
)

// Scorer computes the six evolution signals for a candidate pair. Every
// method is a pure function of the two events and the immutable config, so
// workers may score pairs concurrently without coordination.
type Scorer struct {
	cfg config.EvolutionConfig
}

func NewScorer(cfg config.EvolutionConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score evaluates all six signals for the pair.
func (s *Scorer) Score(pair model.CandidatePair) model.ComponentScores {
	return model.ComponentScores{
		Temporal:      s.Temporal(pair.Source, pair.Target),
		EntityOverlap: s.EntityOverlap(pair.Source, pair.Target),
		Semantic:      s.Semantic(pair.Source, pair.Target),
		Topic:         s.Topic(pair.Source, pair.Target),
		Causality:     s.Causality(pair.Source, pair.Target),
		Emotional:     s.Emotional(pair.Source, pair.Target),
	}
}

// Temporal is the exponential decay clamp(K * e^(-alpha*days), 0, 1) over
// the gap between the two timestamps. A target preceding its source scores
// 0; a zero gap scores the maximum.
func (s *Scorer) Temporal(a, b *model.Event) float64 {
	days := b.Timestamp.Sub(a.Timestamp).Hours() / 24
	if days < 0 {
		return 0
	}
	return common.Clamp(s.cfg.TemporalK*math.Exp(-s.cfg.TemporalAlpha*days), 0, 1)
}

// EntityOverlap is the Jaccard similarity of the two entity sets, with a
// continuity bonus when both events share the same acting entity. Either
// set empty scores 0.
func (s *Scorer) EntityOverlap(a, b *model.Event) float64 {
	score := common.Jaccard(a.EntityIDs, b.EntityIDs)
	if score == 0 {
		return 0
	}
	if actor := a.Actor(); actor != "" && actor == b.Actor() {
		score += s.cfg.ActorBonus
	}
	return common.Clamp(score, 0, 1)
}

// Semantic is the cosine similarity of the two embeddings rescaled from
// [-1,1] to [0,1]. Either embedding absent scores 0.
func (s *Scorer) Semantic(a, b *model.Event) float64 {
	if len(a.Embedding) == 0 || len(b.Embedding) == 0 {
		return 0
	}
	cos := common.CosineSimilarity(a.Embedding, b.Embedding)
	return common.Clamp((cos+1)/2, 0, 1)
}

// Topic scores 1.0 for an exact category match, the affinity-table value
// for a known partial match, and 0 otherwise.
func (s *Scorer) Topic(a, b *model.Event) float64 {
	if a.Category == "" || b.Category == "" {
		return 0
	}
	if a.Category == b.Category {
		return 1.0
	}
	if v, ok := s.cfg.TopicAffinity[a.Category][b.Category]; ok {
		return v
	}
	if v, ok := s.cfg.TopicAffinity[b.Category][a.Category]; ok {
		return v
	}
	return 0
}

// Causality looks up the empirical causal strength of the directed category
// pair. Absent pairs, including the reverse direction of a known pair,
// score 0.
func (s *Scorer) Causality(a, b *model.Event) float64 {
	if v, ok := s.cfg.Causality[a.Category][b.Category]; ok {
		return v
	}
	return 0
}

// Emotional maps the sentiment distance in [0,2] to a consistency score in
// [0,1]: 1 - |sa - sb| / 2. Either sentiment absent scores a neutral 0.5.
func (s *Scorer) Emotional(a, b *model.Event) float64 {
	if a.Sentiment == nil || b.Sentiment == nil {
		return 0.5
	}
	return common.Clamp(1-math.Abs(*a.Sentiment-*b.Sentiment)/2, 0, 1)
}
