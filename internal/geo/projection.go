// Package geo holds the metric side of the analysis: a local planar
// projection, entry-point sampling along park boundaries, and a GEOS-backed
// engine for buffer, union, intersection and simplification.
//
// Geometries cross package boundaries as orb values. GEOS handles never leave
// the Engine that created them.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projection maps WGS84 lon/lat to a planar system in meters centered on a
// reference point. It is Web Mercator rescaled by the Mercator scale factor
// at the reference latitude, which keeps distances and areas accurate to
// well under one percent across a city.
type Projection struct {
	ref    orb.Point
	origin orb.Point // reference point in Mercator coordinates
	scale  float64   // Mercator units per meter at the reference latitude
}

// NewProjection returns a projection centered on ref (lon, lat).
func NewProjection(ref orb.Point) *Projection {
	return &Projection{
		ref:    ref,
		origin: project.WGS84.ToMercator(ref),
		scale:  project.MercatorScaleFactor(ref),
	}
}

// ProjectionFor centers a projection on the middle of b.
func ProjectionFor(b orb.Bound) *Projection {
	return NewProjection(b.Center())
}

// Reference returns the lon/lat the projection is centered on.
func (p *Projection) Reference() orb.Point { return p.ref }

// ToPlanar projects a lon/lat point to meters.
func (p *Projection) ToPlanar(pt orb.Point) orb.Point {
	m := project.WGS84.ToMercator(pt)
	return orb.Point{
		(m[0] - p.origin[0]) / p.scale,
		(m[1] - p.origin[1]) / p.scale,
	}
}

// ToWGS84 is the inverse of ToPlanar.
func (p *Projection) ToWGS84(pt orb.Point) orb.Point {
	return project.Mercator.ToWGS84(orb.Point{
		pt[0]*p.scale + p.origin[0],
		pt[1]*p.scale + p.origin[1],
	})
}

// Forward projects a copy of g to meters. g is not modified.
func (p *Projection) Forward(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), p.ToPlanar)
}

// Inverse projects a copy of g back to lon/lat. g is not modified.
func (p *Projection) Inverse(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), p.ToWGS84)
}

// IsEmpty reports whether g carries no coordinates at all.
func IsEmpty(g orb.Geometry) bool {
	if g == nil {
		return true
	}
	switch v := g.(type) {
	case orb.Point:
		return math.IsNaN(v[0]) || math.IsNaN(v[1])
	case orb.MultiPoint:
		return len(v) == 0
	case orb.LineString:
		return len(v) == 0
	case orb.Ring:
		return len(v) == 0
	case orb.Polygon:
		return len(v) == 0 || len(v[0]) == 0
	case orb.MultiPolygon:
		for _, poly := range v {
			if len(poly) > 0 && len(poly[0]) > 0 {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, c := range v {
			if !IsEmpty(c) {
				return false
			}
		}
		return true
	}
	return false
}

// Polygons flattens the polygonal parts of g into a MultiPolygon.
func Polygons(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		return orb.MultiPolygon{v}
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(v))
		for _, poly := range v {
			if len(poly) > 0 {
				out = append(out, poly)
			}
		}
		return out
	case orb.Collection:
		var out orb.MultiPolygon
		for _, c := range v {
			out = append(out, Polygons(c)...)
		}
		return out
	}
	return nil
}
