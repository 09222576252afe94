// Package coverage measures how much of each area unit lies inside the
// walkable area around parks.
//
// Residents are assumed to be spread evenly over their unit, so the covered
// share of the unit's area stands in for the share of residents with access.
package coverage

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/geo"
	"github.com/couchcryptid/park-access/internal/rollup"
)

const stage = "coverage"

// Aggregator computes per-unit coverage. It owns a GEOS engine and is not
// safe for concurrent use.
type Aggregator struct {
	proj         *geo.Projection
	engine       *geo.Engine
	thresholdPct *float64
}

// NewAggregator measures areas in proj. thresholdPct is passed to
// rollup.Classify; nil disables the threshold flag.
func NewAggregator(proj *geo.Projection, engine *geo.Engine, thresholdPct *float64) *Aggregator {
	return &Aggregator{proj: proj, engine: engine, thresholdPct: thresholdPct}
}

// Compute dissolves all isochrones into one area and measures every unit
// against it, so a unit near two parks is not counted twice. Results follow
// the order of units. Units that cannot be measured get zero coverage and a
// Skip naming the cause.
func (a *Aggregator) Compute(isochrones []domain.Isochrone, units []domain.AreaUnit) ([]domain.AreaCoverage, []domain.Skip, error) {
	if len(isochrones) == 0 {
		return nil, nil, domain.ErrNoIsochrones
	}
	if len(units) == 0 {
		return nil, nil, domain.ErrNoAreaUnits
	}

	union, err := a.union(isochrones)
	if err != nil {
		return nil, nil, fmt.Errorf("union isochrones: %w", err)
	}

	out := make([]domain.AreaCoverage, len(units))
	var skips []domain.Skip
	for i, u := range units {
		fraction, err := a.fraction(u, union)
		if err != nil {
			s, ok := domain.AsSkip(err, stage, u.ID)
			if !ok {
				return nil, nil, fmt.Errorf("area unit %s: %w", u.ID, err)
			}
			skips = append(skips, s)
			fraction = 0
		}
		out[i] = domain.AreaCoverage{Unit: u, CoverageResult: a.result(u.Population, fraction)}
	}
	return out, skips, nil
}

// union dissolves isochrones in POI order so the result does not depend on
// the order workers finished in.
func (a *Aggregator) union(isochrones []domain.Isochrone) (geo.Shape, error) {
	sorted := slices.Clone(isochrones)
	slices.SortStableFunc(sorted, func(x, y domain.Isochrone) int {
		return strings.Compare(x.POIID, y.POIID)
	})

	projected := make([]orb.Geometry, 0, len(sorted))
	for _, iso := range sorted {
		projected = append(projected, a.proj.Forward(iso.Geometry))
	}
	return a.engine.UnionAll(projected)
}

func (a *Aggregator) fraction(u domain.AreaUnit, union geo.Shape) (float64, error) {
	if u.Population <= 0 {
		return 0, domain.Skipf(domain.ReasonZeroPopulation, "population is %g", u.Population)
	}
	if geo.IsEmpty(u.Geometry) {
		return 0, domain.Skipf(domain.ReasonEmptyGeometry, "geometry is empty")
	}
	polys := geo.Polygons(u.Geometry)
	if len(polys) == 0 {
		return 0, domain.Skipf(domain.ReasonUnsupportedGeometry, "%s is not polygonal", u.Geometry.GeoJSONType())
	}

	shape, err := a.engine.FromOrb(a.proj.Forward(polys))
	if err != nil {
		return 0, domain.Skipf(domain.ReasonGeometryError, "%v", err)
	}
	if shape.Validate() != nil {
		if shape, err = a.engine.MakeValid(shape); err != nil {
			return 0, domain.Skipf(domain.ReasonGeometryError, "%v", err)
		}
	}

	area := shape.Area()
	if area <= 0 {
		return 0, domain.Skipf(domain.ReasonEmptyGeometry, "geometry has no area")
	}

	inter, err := a.engine.Intersection(shape, union)
	if err != nil {
		return 0, domain.Skipf(domain.ReasonGeometryError, "%v", err)
	}
	return Clamp(inter.Area() / area), nil
}

func (a *Aggregator) result(population, fraction float64) domain.CoverageResult {
	reachable := math.Max(population, 0) * fraction
	c := rollup.Classify(population, reachable, a.thresholdPct)
	return domain.CoverageResult{
		CoverageFraction:       fraction,
		PopulationReachable:    reachable,
		AccessibilityScore:     100 * fraction,
		IsUnderserved:          c.Strict,
		IsUnderservedThreshold: c.Threshold,
	}
}

// Clamp limits f to [0, 1]. NaN becomes 0.
func Clamp(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
