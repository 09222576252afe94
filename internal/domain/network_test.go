package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStreetGraph_IndexesParallelEdges(t *testing.T) {
	g, err := NewStreetGraph(
		[]Node{{ID: 1, Point: orb.Point{-117.39, 33.95}}, {ID: 2, Point: orb.Point{-117.38, 33.95}}},
		[]Edge{{From: 1, To: 2, Length: 100}, {From: 1, To: 2, Length: 140}, {From: 2, To: 1, Length: 100}},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())

	var lengths []float64
	g.Outgoing(1, func(e Edge) bool {
		lengths = append(lengths, e.Length)
		return true
	})
	assert.Equal(t, []float64{100, 140}, lengths)
}

func TestNewStreetGraph_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		edges []Edge
	}{
		{
			name:  "duplicate node",
			nodes: []Node{{ID: 1}, {ID: 1}},
		},
		{
			name:  "unknown edge endpoint",
			nodes: []Node{{ID: 1}},
			edges: []Edge{{From: 1, To: 9, Length: 10}},
		},
		{
			name:  "non-finite length",
			nodes: []Node{{ID: 1}, {ID: 2}},
			edges: []Edge{{From: 1, To: 2, Length: math.NaN()}},
		},
		{
			name:  "non-finite coordinate",
			nodes: []Node{{ID: 1, Point: orb.Point{math.Inf(1), 0}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStreetGraph(tt.nodes, tt.edges)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidGraph))
		})
	}
}

func TestStreetGraph_WithEdgesSharesNodes(t *testing.T) {
	g, err := NewStreetGraph([]Node{{ID: 1}, {ID: 2}}, []Edge{{From: 1, To: 2, Length: 10}})
	require.NoError(t, err)

	annotated := g.WithEdges([]Edge{{From: 1, To: 2, Length: 10, TravelTime: 7.2}})

	assert.Equal(t, 0.0, g.Edges()[0].TravelTime)
	assert.Equal(t, 7.2, annotated.Edges()[0].TravelTime)
	assert.True(t, annotated.HasNode(2))
}

func TestStreetGraph_Bound(t *testing.T) {
	g, err := NewStreetGraph([]Node{
		{ID: 1, Point: orb.Point{-117.40, 33.90}},
		{ID: 2, Point: orb.Point{-117.30, 34.00}},
	}, nil)
	require.NoError(t, err)

	b := g.Bound()
	assert.Equal(t, orb.Point{-117.40, 33.90}, b.Min)
	assert.Equal(t, orb.Point{-117.30, 34.00}, b.Max)
}

func TestNodeSet(t *testing.T) {
	a := NodeSet{}
	a.Add(3)
	a.Add(1)

	b := NodeSet{}
	b.Add(2)
	b.Union(a)

	assert.Equal(t, []int64{1, 2, 3}, b.Sorted())
	assert.True(t, a.IsSubsetOf(b))
	assert.False(t, b.IsSubsetOf(a))
}

func TestAsSkip(t *testing.T) {
	err := Skipf(ReasonNoSourceNode, "nearest node is %.0f m away", 812.0)

	skip, ok := AsSkip(err, "isochrones", "park-7")
	require.True(t, ok)
	assert.Equal(t, Skip{
		Stage:  "isochrones",
		ItemID: "park-7",
		Reason: ReasonNoSourceNode,
		Detail: "nearest node is 812 m away",
	}, skip)

	_, ok = AsSkip(errors.New("boom"), "isochrones", "park-7")
	assert.False(t, ok)
}
