package rollup

import (
	"fmt"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/geo"
)

// Options control membership and classification.
type Options struct {
	// ThresholdPct enables the threshold rule. Nil disables it.
	ThresholdPct *float64
	// ExcludeTouching drops units that only share a boundary with a region.
	ExcludeTouching bool
}

// Aggregator joins area units to regions. It owns a GEOS engine and is not
// safe for concurrent use.
type Aggregator struct {
	opts   Options
	proj   *geo.Projection
	engine *geo.Engine
}

// New returns an Aggregator that evaluates spatial predicates in proj.
func New(opts Options, proj *geo.Projection, engine *geo.Engine) *Aggregator {
	return &Aggregator{opts: opts, proj: proj, engine: engine}
}

type placed struct {
	shape geo.Shape
	bound orb.Bound
}

// Aggregate returns one RegionCoverage per region, in input order.
//
// A unit belongs to every region it intersects and counts fully in each, so
// population along region borders is counted more than once. Regions with no
// members are returned as no-data and reported as skips, as are units or
// regions whose geometry cannot be evaluated.
func (a *Aggregator) Aggregate(units []domain.AreaCoverage, regions []domain.Region) ([]domain.RegionCoverage, []domain.Skip, error) {
	var skips []domain.Skip

	unitShapes := make([]*placed, len(units))
	for i, u := range units {
		p, err := a.place(u.Unit.Geometry)
		if err != nil {
			if s, ok := domain.AsSkip(err, "rollup", u.Unit.ID); ok {
				skips = append(skips, s)
				continue
			}
			return nil, nil, fmt.Errorf("area unit %s: %w", u.Unit.ID, err)
		}
		unitShapes[i] = p
	}

	out := make([]domain.RegionCoverage, 0, len(regions))
	for _, r := range regions {
		var members []int
		rp, err := a.place(r.Geometry)
		if err != nil {
			s, ok := domain.AsSkip(err, "rollup", r.Name)
			if !ok {
				return nil, nil, fmt.Errorf("region %s: %w", r.Name, err)
			}
			skips = append(skips, s)
		} else {
			members, err = a.members(rp, unitShapes)
			if err != nil {
				return nil, nil, fmt.Errorf("region %s: %w", r.Name, err)
			}
		}

		rc := a.summarize(r, units, members)
		if len(members) == 0 && err == nil {
			skips = append(skips, domain.Skip{
				Stage:  "rollup",
				ItemID: r.Name,
				Reason: domain.ReasonNoMembers,
				Detail: "region intersects no area units",
			})
		}
		out = append(out, rc)
	}
	return out, skips, nil
}

func (a *Aggregator) place(g orb.Geometry) (*placed, error) {
	if geo.IsEmpty(g) {
		return nil, domain.Skipf(domain.ReasonEmptyGeometry, "geometry is empty")
	}
	polys := geo.Polygons(g)
	if len(polys) == 0 {
		return nil, domain.Skipf(domain.ReasonUnsupportedGeometry, "%s is not polygonal", g.GeoJSONType())
	}
	projected := a.proj.Forward(polys)
	shape, err := a.engine.FromOrb(projected)
	if err != nil {
		return nil, domain.Skipf(domain.ReasonGeometryError, "%v", err)
	}
	if shape.Validate() != nil {
		if shape, err = a.engine.MakeValid(shape); err != nil {
			return nil, domain.Skipf(domain.ReasonGeometryError, "%v", err)
		}
	}
	return &placed{shape: shape, bound: projected.Bound()}, nil
}

func (a *Aggregator) members(region *placed, units []*placed) ([]int, error) {
	var idx []int
	for i, u := range units {
		if u == nil || !region.bound.Intersects(u.bound) {
			continue
		}
		hit, err := a.engine.Intersects(region.shape, u.shape)
		if err != nil {
			return nil, err
		}
		if !hit {
			continue
		}
		if a.opts.ExcludeTouching {
			touch, err := a.engine.Touches(region.shape, u.shape)
			if err != nil {
				return nil, err
			}
			if touch {
				continue
			}
		}
		idx = append(idx, i)
	}
	return idx, nil
}

func (a *Aggregator) summarize(r domain.Region, units []domain.AreaCoverage, members []int) domain.RegionCoverage {
	rc := domain.RegionCoverage{
		Region:       r,
		Members:      make([]string, 0, len(members)),
		ThresholdPct: a.opts.ThresholdPct,
		Label:        r.Name,
	}

	// Plain sequential sums so totals equal the member sums bit for bit.
	pops := make([]float64, 0, len(members))
	scores := make([]float64, 0, len(members))
	for _, i := range members {
		u := units[i]
		rc.Members = append(rc.Members, u.Unit.ID)
		rc.TotalPopulation += u.Unit.Population
		rc.TotalPopulationReachable += u.PopulationReachable
		pops = append(pops, u.Unit.Population)
		scores = append(scores, u.AccessibilityScore)
	}

	if rc.TotalPopulation > 0 {
		rc.CoverageFraction = rc.TotalPopulationReachable / rc.TotalPopulation
		score := stat.Mean(scores, pops)
		rc.AccessibilityScore = &score
	} else {
		rc.NoData = true
	}

	c := Classify(rc.TotalPopulation, rc.TotalPopulationReachable, a.opts.ThresholdPct)
	rc.PopulationWithout = c.PopulationWithout
	rc.PctWithout = c.PctWithout
	rc.IsUnderserved = c.Strict
	rc.IsUnderservedThreshold = c.Threshold
	return rc
}
