// Package isochrone turns reachable node sets into walkable-area polygons.
package isochrone

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/geo"
)

// Mode selects how nodes become a polygon.
type Mode string

const (
	// ModeTight buffers each node and dissolves the disks.
	ModeTight Mode = "tight"
	// ModeHull takes the convex hull of the nodes. It includes unreachable
	// interior land and is only for quick checks.
	ModeHull Mode = "hull"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeTight || m == ModeHull
}

// Options tune polygon construction. Lengths are meters.
type Options struct {
	Mode               Mode    `json:"polygon_mode"`
	BufferRadiusM      float64 `json:"buffer_radius_m"`
	SimplifyToleranceM float64 `json:"simplify_tolerance_m"` // 0 disables simplification
	QuadSegs           int     `json:"buffer_quad_segs"`
}

// DefaultOptions returns tight mode with a 60 m buffer and 10 m tolerance.
func DefaultOptions() Options {
	return Options{
		Mode:               ModeTight,
		BufferRadiusM:      60,
		SimplifyToleranceM: 10,
		QuadSegs:           8,
	}
}

// Builder builds isochrone polygons. It holds a GEOS engine, so use one
// Builder per goroutine.
type Builder struct {
	opts   Options
	proj   *geo.Projection
	engine *geo.Engine
}

// NewBuilder returns a builder projecting with proj.
func NewBuilder(opts Options, proj *geo.Projection, engine *geo.Engine) *Builder {
	if opts.QuadSegs <= 0 {
		opts.QuadSegs = DefaultOptions().QuadSegs
	}
	if opts.Mode == "" {
		opts.Mode = ModeTight
	}
	return &Builder{opts: opts, proj: proj, engine: engine}
}

// Build returns the WGS84 polygon covering the reachable nodes of g and its
// area in square meters. Failures that only concern this node set are
// returned as *domain.SkipError.
func (b *Builder) Build(g *domain.StreetGraph, reachable domain.NodeSet) (orb.Geometry, float64, error) {
	ids := reachable.Sorted()
	if len(ids) == 0 {
		return nil, 0, domain.Skipf(domain.ReasonNoReachableNodes, "reachable set is empty")
	}

	pts := make([]orb.Point, 0, len(ids))
	for _, id := range ids {
		n, ok := g.Node(id)
		if !ok {
			return nil, 0, fmt.Errorf("%w: reachable node %d", domain.ErrUnknownNode, id)
		}
		pts = append(pts, b.proj.ToPlanar(n.Point))
	}

	shape, err := b.outline(pts)
	if err != nil {
		return nil, 0, domain.Skipf(domain.ReasonInvalidPolygon, "%v", err)
	}
	if shape.IsEmpty() || shape.Area() <= 0 {
		return nil, 0, domain.Skipf(domain.ReasonDegeneratePolygon, "%s outline of %d nodes has no area", b.opts.Mode, len(pts))
	}
	if err := shape.Validate(); err != nil {
		return nil, 0, domain.Skipf(domain.ReasonInvalidPolygon, "%v", err)
	}

	planar, err := b.engine.ToOrb(shape)
	if err != nil {
		return nil, 0, domain.Skipf(domain.ReasonInvalidPolygon, "%v", err)
	}
	if len(geo.Polygons(planar)) == 0 {
		return nil, 0, domain.Skipf(domain.ReasonDegeneratePolygon, "outline is a %s", planar.GeoJSONType())
	}
	return b.proj.Inverse(planar), shape.Area(), nil
}

func (b *Builder) outline(pts []orb.Point) (geo.Shape, error) {
	mp, err := b.engine.MultiPoint(pts)
	if err != nil {
		return geo.Shape{}, err
	}

	if b.opts.Mode == ModeHull {
		return b.engine.ConvexHull(mp)
	}

	shape, err := b.engine.Buffer(mp, b.opts.BufferRadiusM, b.opts.QuadSegs)
	if err != nil {
		return geo.Shape{}, err
	}
	if b.opts.SimplifyToleranceM > 0 {
		return b.engine.Simplify(shape, b.opts.SimplifyToleranceM)
	}
	return shape, nil
}
