package community

import (
	"github.com/agenthands/feekg/internal/core/model"
)

// Detector groups events into clusters using the accepted evolution links
// as (undirected) edges. Downstream consumers use the clusters to pull
// whole crisis cascades out of the graph.
type Detector interface {
	Detect(events []*model.Event, links []*model.EvolutionLink) ([][]*model.Event, error)
}

// ComponentDetector clusters by simple connectivity: every connected
// component with at least two events is a cluster.
type ComponentDetector struct{}

func NewComponentDetector() *ComponentDetector {
	return &ComponentDetector{}
}

func (d *ComponentDetector) Detect(events []*model.Event, links []*model.EvolutionLink) ([][]*model.Event, error) {
	byID := make(map[string]*model.Event, len(events))
	adj := make(map[string][]string)

	for _, e := range events {
		byID[e.ID] = e
	}
	for _, l := range links {
		if _, ok := byID[l.FromID]; !ok {
			continue
		}
		if _, ok := byID[l.ToID]; !ok {
			continue
		}
		adj[l.FromID] = append(adj[l.FromID], l.ToID)
		adj[l.ToID] = append(adj[l.ToID], l.FromID)
	}

	visited := make(map[string]bool)
	var clusters [][]*model.Event

	for _, e := range events {
		if visited[e.ID] {
			continue
		}
		var componentIDs []string
		d.dfs(e.ID, adj, visited, &componentIDs)

		// Singletons are not cascades.
		if len(componentIDs) < 2 {
			continue
		}
		cluster := make([]*model.Event, 0, len(componentIDs))
		for _, id := range componentIDs {
			cluster = append(cluster, byID[id])
		}
		clusters = append(clusters, cluster)
	}

	return clusters, nil
}

func (d *ComponentDetector) dfs(u string, adj map[string][]string, visited map[string]bool, component *[]string) {
	visited[u] = true
	*component = append(*component, u)
	for _, v := range adj[u] {
		if !visited[v] {
			d.dfs(v, adj, visited, component)
		}
	}
}
