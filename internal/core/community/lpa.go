package community

import (
	"sort"

	"github.com/agenthands/feekg/internal/core/model"
)

// LabelPropagationDetector clusters events with weighted label propagation,
// using each link's aggregate score as the edge weight so strong evolution
// chains pull harder than borderline ones.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
	}
}

func (d *LabelPropagationDetector) Detect(events []*model.Event, links []*model.EvolutionLink) ([][]*model.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	byID := make(map[string]*model.Event, len(events))
	adj := make(map[string]map[string]float64) // event -> neighbor -> weight
	for _, e := range events {
		byID[e.ID] = e
		adj[e.ID] = make(map[string]float64)
	}
	for _, l := range links {
		if _, ok := byID[l.FromID]; !ok {
			continue
		}
		if _, ok := byID[l.ToID]; !ok {
			continue
		}
		// Undirected for clustering purposes.
		adj[l.FromID][l.ToID] += l.Aggregate
		adj[l.ToID][l.FromID] += l.Aggregate
	}

	// Each event starts in its own community.
	labels := make(map[string]string, len(events))
	ids := make([]string, len(events))
	for i, e := range events {
		labels[e.ID] = e.ID
		ids[i] = e.ID
	}
	// Fixed processing order keeps the result deterministic across runs.
	sort.Strings(ids)

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0

		for _, u := range ids {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			weightByLabel := make(map[string]float64)
			maxWeight := 0.0
			for v, w := range neighbors {
				label := labels[v]
				weightByLabel[label] += w
				if weightByLabel[label] > maxWeight {
					maxWeight = weightByLabel[label]
				}
			}

			var candidates []string
			for label, w := range weightByLabel {
				if w == maxWeight {
					candidates = append(candidates, label)
				}
			}
			// Deterministic tie-break: lexicographically largest label.
			sort.Strings(candidates)
			best := candidates[len(candidates)-1]

			if labels[u] != best {
				labels[u] = best
				changed++
			}
		}

		if changed == 0 {
			break
		}
	}

	grouped := make(map[string][]*model.Event)
	for _, id := range ids {
		grouped[labels[id]] = append(grouped[labels[id]], byID[id])
	}

	var clusters [][]*model.Event
	for _, cluster := range grouped {
		if len(cluster) >= 2 {
			clusters = append(clusters, cluster)
		}
	}
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return clusters[i][0].ID < clusters[j][0].ID
	})
	return clusters, nil
}
