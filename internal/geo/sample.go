package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// EntryPoints returns the points from which a park is entered, in projected
// meters. A point park is its own entry point. A polygonal park contributes
// its centroid plus points spaced evenly along each exterior ring, at most
// interval meters apart and never fewer than minSamples per ring.
func EntryPoints(g orb.Geometry, interval float64, minSamples int) []orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.MultiPoint:
		return append([]orb.Point(nil), v...)
	case orb.Polygon:
		return polygonEntryPoints(v, interval, minSamples)
	case orb.MultiPolygon:
		var pts []orb.Point
		for _, poly := range v {
			pts = append(pts, polygonEntryPoints(poly, interval, minSamples)...)
		}
		return pts
	}
	return nil
}

func polygonEntryPoints(p orb.Polygon, interval float64, minSamples int) []orb.Point {
	if len(p) == 0 || len(p[0]) == 0 {
		return nil
	}
	var pts []orb.Point
	if c, area := planar.CentroidArea(p); area > 0 {
		pts = append(pts, c)
	}
	return append(pts, SampleRing(p[0], interval, minSamples)...)
}

// SampleRing places n evenly spaced points along r, starting at its first
// vertex, where n = max(minSamples, ceil(perimeter/interval)).
func SampleRing(r orb.Ring, interval float64, minSamples int) []orb.Point {
	perimeter := planar.Length(orb.LineString(r))
	if perimeter <= 0 {
		if len(r) > 0 {
			return []orb.Point{r[0]}
		}
		return nil
	}

	n := minSamples
	if interval > 0 {
		n = max(n, int(math.Ceil(perimeter/interval)))
	}
	if n < 1 {
		n = 1
	}
	step := perimeter / float64(n)

	pts := make([]orb.Point, 0, n)
	seg, walked := 0, 0.0
	for k := 0; k < n; k++ {
		target := float64(k) * step
		for seg < len(r)-1 {
			segLen := planar.Distance(r[seg], r[seg+1])
			if walked+segLen >= target {
				t := 0.0
				if segLen > 0 {
					t = (target - walked) / segLen
				}
				pts = append(pts, interpolate(r[seg], r[seg+1], t))
				break
			}
			walked += segLen
			seg++
		}
	}
	return pts
}

func interpolate(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}
