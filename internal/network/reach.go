package network

import (
	"container/heap"
	"fmt"

	"github.com/couchcryptid/park-access/internal/domain"
)

// Reacher answers single-source reachability for a fixed graph and budget.
type Reacher interface {
	ReachableFrom(source int64) (domain.NodeSet, error)
}

// Dijkstra is the uncached Reacher.
type Dijkstra struct {
	graph  *domain.StreetGraph
	budget float64
}

// NewDijkstra binds a travel-time annotated graph and a budget in seconds.
func NewDijkstra(g *domain.StreetGraph, budgetSeconds float64) *Dijkstra {
	return &Dijkstra{graph: g, budget: budgetSeconds}
}

// Budget returns the cutoff in seconds.
func (d *Dijkstra) Budget() float64 { return d.budget }

// ReachableFrom returns every node within the budget of source.
func (d *Dijkstra) ReachableFrom(source int64) (domain.NodeSet, error) {
	times, err := ShortestTimes(d.graph, source, d.budget)
	if err != nil {
		return nil, err
	}
	set := make(domain.NodeSet, len(times))
	for id := range times {
		set.Add(id)
	}
	return set, nil
}

// Reachable returns the nodes whose travel time from any source is at most
// budget seconds.
func Reachable(g *domain.StreetGraph, sources []int64, budget float64) (domain.NodeSet, error) {
	return ReachableWith(NewDijkstra(g, budget), sources)
}

// ReachableWith unions the single-source results of r over sources.
func ReachableWith(r Reacher, sources []int64) (domain.NodeSet, error) {
	if len(sources) == 0 {
		return nil, domain.ErrNoSources
	}
	out := domain.NodeSet{}
	for _, src := range sources {
		set, err := r.ReachableFrom(src)
		if err != nil {
			return nil, err
		}
		out.Union(set)
	}
	return out, nil
}

// ShortestTimes runs Dijkstra over edge travel times from source and stops
// expanding once the frontier exceeds budget. The result maps every node
// with shortest time <= budget to that time. A negative budget reaches
// nothing.
func ShortestTimes(g *domain.StreetGraph, source int64, budget float64) (map[int64]float64, error) {
	if !g.HasNode(source) {
		return nil, fmt.Errorf("%w: source %d", domain.ErrUnknownNode, source)
	}
	dist := map[int64]float64{}
	if budget < 0 {
		return dist, nil
	}

	best := map[int64]float64{source: 0}
	pq := &timeQueue{}
	heap.Push(pq, &queued{node: source, time: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*queued)
		if _, done := dist[item.node]; done {
			continue
		}
		dist[item.node] = item.time

		g.Outgoing(item.node, func(e domain.Edge) bool {
			if _, done := dist[e.To]; done {
				return true
			}
			t := item.time + e.TravelTime
			if t > budget {
				return true
			}
			if prev, seen := best[e.To]; seen && prev <= t {
				return true
			}
			best[e.To] = t
			heap.Push(pq, &queued{node: e.To, time: t})
			return true
		})
	}
	return dist, nil
}

type queued struct {
	node int64
	time float64
}

type timeQueue []*queued

func (q timeQueue) Len() int { return len(q) }

// Less breaks ties on node ID so expansion order is deterministic.
func (q timeQueue) Less(i, j int) bool {
	if q[i].time == q[j].time {
		return q[i].node < q[j].node
	}
	return q[i].time < q[j].time
}

func (q timeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timeQueue) Push(x any) {
	*q = append(*q, x.(*queued))
}

func (q *timeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
