package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// ErrGeometry wraps every failure reported by the geometry engine.
var ErrGeometry = errors.New("geometry operation failed")

// Engine runs planar geometry operations on GEOS. An Engine owns one GEOS
// context and is not meant to be shared across goroutines; give each worker
// its own.
type Engine struct {
	ctx *geos.Context
}

// NewEngine returns an engine with a fresh GEOS context.
func NewEngine() *Engine {
	return &Engine{ctx: geos.NewContext()}
}

// Shape is a geometry held by the engine that created it.
type Shape struct {
	g *geos.Geom
}

// Area returns the planar area of s in squared projection units.
func (s Shape) Area() float64 {
	if s.g == nil {
		return 0
	}
	return s.g.Area()
}

// IsEmpty reports whether s has no points.
func (s Shape) IsEmpty() bool {
	return s.g == nil || s.g.IsEmpty()
}

// Validate returns nil for a valid geometry and the GEOS reason otherwise.
func (s Shape) Validate() error {
	if s.g == nil {
		return fmt.Errorf("%w: nil geometry", ErrGeometry)
	}
	if s.g.IsValid() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrGeometry, s.g.IsValidReason())
}

// guard converts a GEOS panic into an error.
func guard[T any](op string, fn func() T) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrGeometry, op, r)
		}
	}()
	return fn(), nil
}

func (e *Engine) shape(op string, fn func() *geos.Geom) (Shape, error) {
	g, err := guard(op, fn)
	if err != nil {
		return Shape{}, err
	}
	if g == nil {
		return Shape{}, fmt.Errorf("%w: %s returned no geometry", ErrGeometry, op)
	}
	return Shape{g: g}, nil
}

// FromOrb loads an orb geometry into the engine through WKB.
func (e *Engine) FromOrb(g orb.Geometry) (Shape, error) {
	b, err := wkb.Marshal(g)
	if err != nil {
		return Shape{}, fmt.Errorf("%w: encode wkb: %w", ErrGeometry, err)
	}
	geom, err := e.ctx.NewGeomFromWKB(b)
	if err != nil {
		return Shape{}, fmt.Errorf("%w: decode wkb: %w", ErrGeometry, err)
	}
	return Shape{g: geom}, nil
}

// ToOrb converts s back into an orb geometry.
func (e *Engine) ToOrb(s Shape) (orb.Geometry, error) {
	b, err := guard("to wkb", s.g.ToWKB)
	if err != nil {
		return nil, err
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%w: read wkb: %w", ErrGeometry, err)
	}
	return g, nil
}

// MultiPoint loads pts as a single multipoint.
func (e *Engine) MultiPoint(pts []orb.Point) (Shape, error) {
	return e.FromOrb(orb.MultiPoint(pts))
}

// Buffer returns every point within radius of s. quadSegs controls how many
// segments approximate a quarter circle.
func (e *Engine) Buffer(s Shape, radius float64, quadSegs int) (Shape, error) {
	return e.shape("buffer", func() *geos.Geom { return s.g.Buffer(radius, quadSegs) })
}

// Simplify reduces vertices within tolerance without changing topology.
func (e *Engine) Simplify(s Shape, tolerance float64) (Shape, error) {
	return e.shape("simplify", func() *geos.Geom { return s.g.TopologyPreserveSimplify(tolerance) })
}

// ConvexHull returns the smallest convex polygon containing s.
func (e *Engine) ConvexHull(s Shape) (Shape, error) {
	return e.shape("convex hull", s.g.ConvexHull)
}

// MakeValid repairs self-intersections and similar defects.
func (e *Engine) MakeValid(s Shape) (Shape, error) {
	return e.shape("make valid", s.g.MakeValid)
}

// Intersection returns the part of a that lies inside b.
func (e *Engine) Intersection(a, b Shape) (Shape, error) {
	return e.shape("intersection", func() *geos.Geom { return a.g.Intersection(b.g) })
}

// Intersects reports whether a and b share at least one point.
func (e *Engine) Intersects(a, b Shape) (bool, error) {
	return guard("intersects", func() bool { return a.g.Intersects(b.g) })
}

// Touches reports whether a and b meet only on their boundaries.
func (e *Engine) Touches(a, b Shape) (bool, error) {
	return guard("touches", func() bool { return a.g.Touches(b.g) })
}

// UnionAll dissolves the polygonal parts of gs into one shape, so
// overlapping inputs are counted once.
func (e *Engine) UnionAll(gs []orb.Geometry) (Shape, error) {
	var parts orb.Collection
	for _, g := range gs {
		for _, poly := range Polygons(g) {
			parts = append(parts, poly)
		}
	}
	s, err := e.FromOrb(parts)
	if err != nil {
		return Shape{}, err
	}
	return e.shape("union", s.g.UnaryUnion)
}
