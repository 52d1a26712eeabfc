package llm

import (
	"context"
	"fmt"

	"github.com/agenthands/feekg/internal/core/common"
	"github.com/agenthands/feekg/internal/core/model"
)

// SentimentAnnotator fills in missing event sentiment at ingestion time.
// When a model client is available it scores the event summary; otherwise
// it falls back to the per-category default table. The scoring engine only
// ever reads the stored value.
type SentimentAnnotator struct {
	LLM      LLMClient
	Defaults map[string]float64
}

func NewSentimentAnnotator(client LLMClient, defaults map[string]float64) *SentimentAnnotator {
	return &SentimentAnnotator{LLM: client, Defaults: defaults}
}

type sentimentResponse struct {
	Sentiment float64 `json:"sentiment"`
}

// Annotate sets ev.Sentiment if absent. Events that already carry a
// sentiment are left untouched.
func (a *SentimentAnnotator) Annotate(ctx context.Context, ev *model.Event) error {
	if ev.Sentiment == nil && a.LLM != nil && ev.Summary != "" {
		prompt := fmt.Sprintf(`Rate the market sentiment of the following financial event on a scale from -1.0 (strongly negative) to 1.0 (strongly positive).
Respond with a JSON object only, e.g. {"sentiment": -0.8}

Event: %s`, ev.Summary)

		response, err := a.LLM.Generate(ctx, prompt)
		if err != nil {
			return fmt.Errorf("failed to generate sentiment: %w", err)
		}
		parsed, err := common.ParseJSON[sentimentResponse](response)
		if err != nil {
			return fmt.Errorf("failed to parse sentiment response: %w", err)
		}
		s := common.Clamp(parsed.Sentiment, -1, 1)
		ev.Sentiment = &s
		return nil
	}

	if ev.Sentiment == nil {
		if s, ok := a.Defaults[ev.Category]; ok {
			v := s
			ev.Sentiment = &v
		}
	}
	return nil
}
