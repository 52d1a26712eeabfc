package community

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/feekg/internal/core/model"
)

func TestLPA_TwoTightTriangles(t *testing.T) {
	evts := events("a1", "a2", "a3", "b1", "b2", "b3")
	links := []*model.EvolutionLink{
		link("a1", "a2", 0.9),
		link("a2", "a3", 0.9),
		link("a1", "a3", 0.9),
		link("b1", "b2", 0.9),
		link("b2", "b3", 0.9),
		link("b1", "b3", 0.9),
		// Weak bridge between the groups
		link("a3", "b1", 0.1),
	}

	clusters, err := NewLabelPropagationDetector().Detect(evts, links)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	// The weak bridge never merges the triangles
	assert.Equal(t, map[string]bool{"a1": true, "a2": true, "a3": true}, clusterIDs(clusters[0]))
	assert.Equal(t, map[string]bool{"b1": true, "b2": true, "b3": true}, clusterIDs(clusters[1]))
}

func TestLPA_WeightsDecideMembership(t *testing.T) {
	// "mid" sits between two pairs; the heavier edge wins.
	evts := events("left", "mid", "right", "far")
	links := []*model.EvolutionLink{
		link("left", "mid", 0.9),
		link("mid", "right", 0.2),
		link("right", "far", 0.9),
	}

	clusters, err := NewLabelPropagationDetector().Detect(evts, links)
	require.NoError(t, err)
	require.NotEmpty(t, clusters)

	for _, c := range clusters {
		ids := clusterIDs(c)
		if ids["mid"] {
			assert.True(t, ids["left"], "mid should follow its strongest edge")
		}
	}
}

func TestLPA_SingletonsExcluded(t *testing.T) {
	evts := events("a", "b", "isolated")
	links := []*model.EvolutionLink{link("a", "b", 0.8)}

	clusters, err := NewLabelPropagationDetector().Detect(evts, links)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.False(t, clusterIDs(clusters[0])["isolated"])
}

func TestLPA_EmptyInput(t *testing.T) {
	clusters, err := NewLabelPropagationDetector().Detect(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestLPA_Deterministic(t *testing.T) {
	evts := events("a", "b", "c", "d", "e")
	links := []*model.EvolutionLink{
		link("a", "b", 0.6),
		link("b", "c", 0.6),
		link("c", "d", 0.6),
		link("d", "e", 0.6),
		link("a", "e", 0.6),
	}

	d := NewLabelPropagationDetector()
	first, err := d.Detect(evts, links)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := d.Detect(evts, links)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, clusterIDs(first[j]), clusterIDs(again[j]))
		}
	}
}

func TestLPA_ParallelLinksAccumulateWeight(t *testing.T) {
	// Both directions between a and b sum into one heavy undirected edge
	// that outweighs the single b-c link.
	evts := events("a", "b", "c", "d")
	links := []*model.EvolutionLink{
		link("a", "b", 0.5),
		link("b", "a", 0.5),
		link("b", "c", 0.6),
		link("c", "d", 0.9),
	}

	clusters, err := NewLabelPropagationDetector().Detect(evts, links)
	require.NoError(t, err)
	require.NotEmpty(t, clusters)

	for _, c := range clusters {
		ids := clusterIDs(c)
		if ids["b"] {
			assert.True(t, ids["a"])
		}
	}
}
