package domain

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// Node is a street intersection or shape point.
type Node struct {
	ID    int64
	Point orb.Point // lon, lat
}

// Edge is a directed street segment.
type Edge struct {
	From       int64
	To         int64
	Length     float64 // meters
	TravelTime float64 // seconds, set by network.WithTravelTimes
}

// StreetGraph is an immutable directed multigraph. Build one with
// NewStreetGraph; the zero value is an empty graph.
type StreetGraph struct {
	nodes []Node
	index map[int64]int
	edges []Edge
	out   [][]int // dense node index -> indexes into edges
}

// NewStreetGraph validates nodes and edges and indexes adjacency.
func NewStreetGraph(nodes []Node, edges []Edge) (*StreetGraph, error) {
	g := &StreetGraph{
		nodes: make([]Node, len(nodes)),
		index: make(map[int64]int, len(nodes)),
		edges: make([]Edge, len(edges)),
		out:   make([][]int, len(nodes)),
	}
	copy(g.nodes, nodes)
	copy(g.edges, edges)

	for i, n := range g.nodes {
		if _, dup := g.index[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %d", ErrInvalidGraph, n.ID)
		}
		if !finite(n.Point[0]) || !finite(n.Point[1]) {
			return nil, fmt.Errorf("%w: node %d has non-finite coordinates", ErrInvalidGraph, n.ID)
		}
		g.index[n.ID] = i
	}

	for i, e := range g.edges {
		from, ok := g.index[e.From]
		if !ok {
			return nil, fmt.Errorf("%w: edge %d references unknown node %d", ErrInvalidGraph, i, e.From)
		}
		if _, ok := g.index[e.To]; !ok {
			return nil, fmt.Errorf("%w: edge %d references unknown node %d", ErrInvalidGraph, i, e.To)
		}
		if !finite(e.Length) {
			return nil, fmt.Errorf("%w: edge %d->%d has non-finite length", ErrInvalidGraph, e.From, e.To)
		}
		g.out[from] = append(g.out[from], i)
	}

	return g, nil
}

// WithEdges returns a graph sharing this graph's nodes and adjacency but
// carrying the given edges. The edges must be the same segments in the same
// order, only annotated differently.
func (g *StreetGraph) WithEdges(edges []Edge) *StreetGraph {
	if len(edges) != len(g.edges) {
		panic("domain: WithEdges called with a different edge count")
	}
	return &StreetGraph{
		nodes: g.nodes,
		index: g.index,
		edges: edges,
		out:   g.out,
	}
}

// NodeCount returns the number of nodes.
func (g *StreetGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, parallel edges included.
func (g *StreetGraph) EdgeCount() int { return len(g.edges) }

// Nodes returns a copy of the node list in construction order.
func (g *StreetGraph) Nodes() []Node { return slices.Clone(g.nodes) }

// Edges returns a copy of the edge list in construction order.
func (g *StreetGraph) Edges() []Edge { return slices.Clone(g.edges) }

// Node looks up a node by ID.
func (g *StreetGraph) Node(id int64) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// HasNode reports whether id is a node of the graph.
func (g *StreetGraph) HasNode(id int64) bool {
	_, ok := g.index[id]
	return ok
}

// Outgoing calls fn for every edge leaving id. It stops early when fn
// returns false.
func (g *StreetGraph) Outgoing(id int64, fn func(Edge) bool) {
	i, ok := g.index[id]
	if !ok {
		return
	}
	for _, ei := range g.out[i] {
		if !fn(g.edges[ei]) {
			return
		}
	}
}

// Bound returns the WGS84 bounding box of all nodes.
func (g *StreetGraph) Bound() orb.Bound {
	if len(g.nodes) == 0 {
		return orb.Bound{}
	}
	b := g.nodes[0].Point.Bound()
	for _, n := range g.nodes[1:] {
		b = b.Extend(n.Point)
	}
	return b
}

// NodeSet is a set of node IDs.
type NodeSet map[int64]struct{}

// Add inserts id.
func (s NodeSet) Add(id int64) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s NodeSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Union adds every member of other.
func (s NodeSet) Union(other NodeSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted returns the members in ascending order.
func (s NodeSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsSubsetOf reports whether every member of s is in other.
func (s NodeSet) IsSubsetOf(other NodeSet) bool {
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
