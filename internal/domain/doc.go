// Package domain models the inputs and outputs of the park accessibility
// analysis: the walkable street network, parks, census-style area units,
// coarser regions, and the coverage records derived from them.
//
// # Coordinates
//
// Every geometry held by this package is WGS84 longitude/latitude, stored as
// [orb.Point] values in (lon, lat) order. Metric work (buffers, areas,
// distances) never happens on these values directly; callers project them
// with the run's local metric projection first and project results back before storing
// them here.
//
// # Street network
//
// The street graph is a directed multigraph. Parallel edges between the same
// pair of nodes are distinct street segments and are all kept. Edge length is
// in meters; TravelTime is in seconds and is filled in by the travel-time
// model, which returns a new graph value rather than annotating in place:
//
//	walked := network.WithTravelTimes(g, 5.0) // g is untouched
//
// # Coverage
//
// An area unit's population is assumed to be spread uniformly over its
// polygon, so the share of its area inside the union of park isochrones is
// used as the share of its population with access:
//
//	coverage_fraction    = clamp(area(unit ∩ isochrones) / area(unit), 0, 1)
//	population_reachable = population × coverage_fraction
//	accessibility_score  = 100 × coverage_fraction
//
// Regions have no population of their own. They sum the populations of every
// area unit they intersect, so a unit on a border counts fully in each region
// it touches. This over-counts along borders and is kept as a known
// approximation.
//
// # Underserved
//
// Strict: the region has residents and none of them have access.
//
//	is_underserved = total_population > 0 && total_population_reachable == 0
//
// Threshold (optional, default 50%): the share of residents without access is
// at least the configured percentage. Regions without population are never
// flagged.
//
// # Failures
//
// Problems with a single park or area unit are reported as [SkipError] values
// and recorded as [Skip] entries; the batch continues. Problems with the
// inputs as a whole are returned as the sentinel errors in errors.go and stop
// the run before anything is written.
package domain
