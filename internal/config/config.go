package config

import (
	"fmt"
	"math"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Weights is the fixed weight vector applied to the six component scores.
// Validate requires the six values to sum to 1.
type Weights struct {
	Temporal      float64 `toml:"temporal"`
	EntityOverlap float64 `toml:"entity_overlap"`
	Semantic      float64 `toml:"semantic"`
	Topic         float64 `toml:"topic"`
	Causality     float64 `toml:"causality"`
	Emotional     float64 `toml:"emotional"`
}

func (w Weights) Sum() float64 {
	return w.Temporal + w.EntityOverlap + w.Semantic + w.Topic + w.Causality + w.Emotional
}

// EvolutionConfig holds all scoring parameters. Constructed once at startup
// and treated as immutable afterwards so concurrent workers share it safely.
type EvolutionConfig struct {
	Threshold     float64 `toml:"threshold"`
	WindowDays    int     `toml:"window_days"`
	TemporalK     float64 `toml:"temporal_k"`
	TemporalAlpha float64 `toml:"temporal_alpha"`
	// ActorBonus is added to the entity overlap score when the two events
	// share their acting (first-listed) entity. Capped at 1.0 in the scorer.
	ActorBonus float64 `toml:"actor_bonus"`

	Weights Weights `toml:"weights"`

	// TopicAffinity[a][b] is the partial-match score for distinct
	// categories a and b. Looked up both ways; exact match is always 1.0.
	TopicAffinity map[string]map[string]float64 `toml:"topic_affinity"`

	// Causality[from][to] is the empirical causal strength of category
	// "from" preceding category "to". Directed; absent pairs score 0.
	Causality map[string]map[string]float64 `toml:"causality"`

	// CategorySentiment supplies a default sentiment per category for the
	// ingestion-side annotator. The scorer itself never consults it.
	CategorySentiment map[string]float64 `toml:"category_sentiment"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type EmbedderConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type StorageConfig struct {
	// Backend is "memory" or "memgraph".
	Backend string `toml:"backend"`
}

type ConcurrencyConfig struct {
	RebuildWorkers int `toml:"rebuild_workers"`
	PersistRetries int `toml:"persist_retries"`
}

type Config struct {
	Evolution   EvolutionConfig   `toml:"evolution"`
	Memgraph    MemgraphConfig    `toml:"memgraph"`
	Embedder    EmbedderConfig    `toml:"embedder"`
	Storage     StorageConfig     `toml:"storage"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
}

// Default returns the configuration the engine ships with: the financial
// event taxonomy tables and the scoring constants calibrated on the crisis
// corpora the graph was built from.
func Default() *Config {
	return &Config{
		Evolution: EvolutionConfig{
			Threshold:     0.5,
			WindowDays:    30,
			TemporalK:     1.0,
			TemporalAlpha: 0.1,
			ActorBonus:    0.2,
			Weights: Weights{
				Temporal:      0.25,
				EntityOverlap: 0.15,
				Semantic:      0.15,
				Topic:         0.15,
				Causality:     0.25,
				Emotional:     0.05,
			},
			TopicAffinity:     defaultTopicAffinity(),
			Causality:         defaultCausality(),
			CategorySentiment: defaultCategorySentiment(),
		},
		Storage: StorageConfig{Backend: "memory"},
		Concurrency: ConcurrencyConfig{
			RebuildWorkers: 4,
			PersistRetries: 3,
		},
	}
}

// Load reads a TOML file over the defaults. Values absent from the file keep
// their default; the tables are replaced wholesale when present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the fatal-at-startup rules. The engine refuses to run on
// an invalid weight vector rather than produce unverifiable scores.
func (c *Config) Validate() error {
	ev := c.Evolution

	if math.Abs(ev.Weights.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("evolution weights must sum to 1, got %v", ev.Weights.Sum())
	}
	if ev.Threshold < 0 || ev.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %v", ev.Threshold)
	}
	if ev.WindowDays <= 0 {
		return fmt.Errorf("window_days must be positive, got %d", ev.WindowDays)
	}
	if ev.TemporalK <= 0 || ev.TemporalAlpha < 0 {
		return fmt.Errorf("invalid temporal constants k=%v alpha=%v", ev.TemporalK, ev.TemporalAlpha)
	}
	for from, row := range ev.TopicAffinity {
		for to, v := range row {
			if v < 0 || v > 1 {
				return fmt.Errorf("topic_affinity[%s][%s] out of [0,1]: %v", from, to, v)
			}
		}
	}
	for from, row := range ev.Causality {
		for to, v := range row {
			if v < 0 || v > 1 {
				return fmt.Errorf("causality[%s][%s] out of [0,1]: %v", from, to, v)
			}
		}
	}
	for cat, v := range ev.CategorySentiment {
		if v < -1 || v > 1 {
			return fmt.Errorf("category_sentiment[%s] out of [-1,1]: %v", cat, v)
		}
	}
	if c.Concurrency.RebuildWorkers < 1 {
		return fmt.Errorf("rebuild_workers must be at least 1, got %d", c.Concurrency.RebuildWorkers)
	}
	return nil
}

// Topic groups: credit, market, corporate, regulatory. Categories in the
// same group score 1.0, related groups 0.7, everything else falls through
// to 0 in the scorer.
func defaultTopicAffinity() map[string]map[string]float64 {
	groups := map[string][]string{
		"credit":     {"credit_downgrade", "debt_default", "missed_payment", "liquidity_warning"},
		"market":     {"stock_decline", "stock_crash", "earnings_call"},
		"corporate":  {"restructuring_announcement", "bankruptcy_filing"},
		"regulatory": {"regulatory_pressure", "regulatory_intervention", "bailout_announcement"},
	}
	related := map[string][]string{
		"credit":     {"market", "corporate", "regulatory"},
		"market":     {"credit", "corporate"},
		"corporate":  {"credit", "market", "regulatory"},
		"regulatory": {"credit", "corporate"},
	}

	affinity := make(map[string]map[string]float64)
	add := func(a, b string, v float64) {
		if a == b {
			return
		}
		if affinity[a] == nil {
			affinity[a] = make(map[string]float64)
		}
		affinity[a][b] = v
	}

	for _, members := range groups {
		for _, a := range members {
			for _, b := range members {
				add(a, b, 1.0)
			}
		}
	}
	for g, rel := range related {
		for _, other := range rel {
			for _, a := range groups[g] {
				for _, b := range groups[other] {
					add(a, b, 0.7)
				}
			}
		}
	}
	return affinity
}

// Direct causal hops score 0.9, known two-hop chains 0.6.
func defaultCausality() map[string]map[string]float64 {
	direct := map[string][]string{
		"regulatory_pressure": {"liquidity_warning", "credit_downgrade"},
		"liquidity_warning":   {"credit_downgrade", "missed_payment", "debt_default"},
		"credit_downgrade":    {"debt_default", "stock_decline", "liquidity_warning"},
		"missed_payment":      {"debt_default", "credit_downgrade"},
		"debt_default":        {"stock_crash", "bankruptcy_filing", "credit_downgrade"},
		"stock_decline":       {"stock_crash", "liquidity_warning"},
		"stock_crash":         {"bankruptcy_filing", "regulatory_intervention"},
		"bankruptcy_filing":   {"bailout_announcement", "regulatory_intervention"},
	}

	causality := make(map[string]map[string]float64)
	set := func(from, to string, v float64) {
		if causality[from] == nil {
			causality[from] = make(map[string]float64)
		}
		if cur, ok := causality[from][to]; !ok || v > cur {
			causality[from][to] = v
		}
	}

	for from, tos := range direct {
		for _, to := range tos {
			set(from, to, 0.9)
		}
	}
	// Two-hop closure over the direct table.
	for from, tos := range direct {
		for _, mid := range tos {
			for _, to := range direct[mid] {
				if _, ok := causality[from][to]; !ok {
					set(from, to, 0.6)
				}
			}
		}
	}
	return causality
}

func defaultCategorySentiment() map[string]float64 {
	return map[string]float64{
		"debt_default":               -0.9,
		"stock_crash":                -0.9,
		"bankruptcy_filing":          -0.9,
		"credit_downgrade":           -0.8,
		"stock_decline":              -0.7,
		"missed_payment":             -0.7,
		"liquidity_warning":          -0.6,
		"regulatory_pressure":        -0.4,
		"regulatory_intervention":    -0.3,
		"earnings_call":              0.0,
		"restructuring_announcement": 0.2,
		"bailout_announcement":       0.3,
	}
}
