// Package network annotates street graphs with walking times and answers
// reachability questions over them.
package network

import (
	"math"

	"github.com/couchcryptid/park-access/internal/domain"
)

// SpeedMPS converts km/h to m/s.
func SpeedMPS(kmh float64) float64 {
	return kmh * 1000 / 3600
}

// WithTravelTimes returns a copy of g whose edges carry the seconds needed to
// walk them at speedKmh. Edges with non-positive length take no time. A
// non-positive speed makes every positive-length edge impassable (+Inf).
// g itself is left untouched so it can be shared between runs.
func WithTravelTimes(g *domain.StreetGraph, speedKmh float64) *domain.StreetGraph {
	mps := SpeedMPS(speedKmh)
	edges := g.Edges()
	for i := range edges {
		edges[i].TravelTime = travelTime(edges[i].Length, mps)
	}
	return g.WithEdges(edges)
}

func travelTime(length, mps float64) float64 {
	switch {
	case length <= 0:
		return 0
	case mps <= 0:
		return math.Inf(1)
	default:
		return length / mps
	}
}
