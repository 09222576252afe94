package network

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/geo"
)

// indexedNode places a graph node in projected meters.
type indexedNode struct {
	id int64
	p  orb.Point
}

func (n indexedNode) Point() orb.Point { return n.p }

// NodeIndex finds the graph node nearest to a projected point. It is safe
// for concurrent lookups once built.
type NodeIndex struct {
	qt      *quadtree.Quadtree
	maxSnap float64
}

// NewNodeIndex projects every node of g with proj and indexes it. A positive
// maxSnap rejects matches farther than maxSnap meters; zero means no limit.
func NewNodeIndex(g *domain.StreetGraph, proj *geo.Projection, maxSnap float64) (*NodeIndex, error) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil, domain.ErrEmptyGraph
	}

	projected := make([]indexedNode, len(nodes))
	for i, n := range nodes {
		projected[i] = indexedNode{id: n.ID, p: proj.ToPlanar(n.Point)}
	}
	bound := projected[0].p.Bound()
	for _, n := range projected[1:] {
		bound = bound.Extend(n.p)
	}

	qt := quadtree.New(bound.Pad(1))
	for _, n := range projected {
		if err := qt.Add(n); err != nil {
			return nil, fmt.Errorf("index node %d: %w", n.id, err)
		}
	}
	return &NodeIndex{qt: qt, maxSnap: maxSnap}, nil
}

// Nearest returns the closest node to p and its distance in meters. ok is
// false when the index is empty or the node lies beyond the snap limit.
func (ix *NodeIndex) Nearest(p orb.Point) (id int64, dist float64, ok bool) {
	found := ix.qt.Find(p)
	if found == nil {
		return 0, 0, false
	}
	n := found.(indexedNode)
	dist = planar.Distance(p, n.p)
	if ix.maxSnap > 0 && dist > ix.maxSnap {
		return n.id, dist, false
	}
	return n.id, dist, true
}

// Sources resolves entry points to their nearest nodes, dropping failures and
// duplicates. The result is sorted.
func (ix *NodeIndex) Sources(points []orb.Point) []int64 {
	var ids []int64
	for _, p := range points {
		if id, _, ok := ix.Nearest(p); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
