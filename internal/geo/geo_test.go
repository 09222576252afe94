package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var riverside = orb.Point{-117.3961, 33.9533}

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}
}

func TestProjection_PreservesDistances(t *testing.T) {
	p := NewProjection(riverside)
	a := orb.Point{-117.40, 33.95}
	b := orb.Point{-117.37, 33.97}

	want := orbgeo.Distance(a, b)
	got := planar.Distance(p.ToPlanar(a), p.ToPlanar(b))

	assert.InEpsilon(t, want, got, 0.005)
}

func TestProjection_RoundTrip(t *testing.T) {
	p := NewProjection(riverside)
	pt := orb.Point{-117.41, 33.96}

	back := p.ToWGS84(p.ToPlanar(pt))
	assert.InDelta(t, pt[0], back[0], 1e-9)
	assert.InDelta(t, pt[1], back[1], 1e-9)
	assert.InDelta(t, 0, p.ToPlanar(riverside)[0], 1e-6)
}

func TestProjection_ForwardDoesNotMutate(t *testing.T) {
	p := ProjectionFor(orb.Bound{Min: orb.Point{-117.41, 33.94}, Max: orb.Point{-117.38, 33.96}})
	poly := orb.Polygon{{{-117.40, 33.95}, {-117.39, 33.95}, {-117.39, 33.96}, {-117.40, 33.95}}}

	projected := p.Forward(poly).(orb.Polygon)

	assert.Equal(t, -117.40, poly[0][0][0])
	assert.Greater(t, math.Abs(projected[0][0][0]), 100.0)
}

func TestSampleRing_SpacingAndMinimum(t *testing.T) {
	ring := square(0, 0, 100)[0]

	pts := SampleRing(ring, 50, 4)
	require.Len(t, pts, 8)
	assert.Equal(t, orb.Point{0, 0}, pts[0])
	assert.Equal(t, orb.Point{50, 0}, pts[1])
	assert.Equal(t, orb.Point{100, 50}, pts[3])

	small := SampleRing(square(0, 0, 10)[0], 50, 4)
	require.Len(t, small, 4)
	assert.Equal(t, orb.Point{10, 10}, small[2])
}

func TestEntryPoints(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
		want int
	}{
		{name: "point", geom: orb.Point{5, 5}, want: 1},
		{name: "polygon", geom: square(0, 0, 100), want: 1 + 8},
		{name: "multipolygon", geom: orb.MultiPolygon{square(0, 0, 100), square(500, 0, 10)}, want: 9 + 5},
		{name: "line is unsupported", geom: orb.LineString{{0, 0}, {1, 1}}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, EntryPoints(tt.geom, 50, 4), tt.want)
		})
	}
}

func TestEngine_BufferPoint(t *testing.T) {
	e := NewEngine()
	mp, err := e.MultiPoint([]orb.Point{{0, 0}})
	require.NoError(t, err)

	disk, err := e.Buffer(mp, 10, 8)
	require.NoError(t, err)

	assert.InEpsilon(t, math.Pi*100, disk.Area(), 0.02)
	assert.NoError(t, disk.Validate())
}

func TestEngine_UnionAllCountsOverlapOnce(t *testing.T) {
	e := NewEngine()
	u, err := e.UnionAll([]orb.Geometry{
		square(0, 0, 10),
		orb.MultiPolygon{square(5, 0, 10)},
	})
	require.NoError(t, err)

	assert.InDelta(t, 150, u.Area(), 1e-9)
}

func TestEngine_Intersection(t *testing.T) {
	e := NewEngine()
	a, err := e.FromOrb(square(0, 0, 10))
	require.NoError(t, err)
	b, err := e.FromOrb(square(5, 5, 10))
	require.NoError(t, err)

	inter, err := e.Intersection(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 25, inter.Area(), 1e-9)

	g, err := e.ToOrb(inter)
	require.NoError(t, err)
	assert.InDelta(t, 25, planar.Area(g), 1e-9)
}

func TestEngine_TouchesAndIntersects(t *testing.T) {
	e := NewEngine()
	a, _ := e.FromOrb(square(0, 0, 10))
	b, _ := e.FromOrb(square(10, 0, 10))

	hit, err := e.Intersects(a, b)
	require.NoError(t, err)
	assert.True(t, hit)

	touch, err := e.Touches(a, b)
	require.NoError(t, err)
	assert.True(t, touch)
}

func TestEngine_MakeValidRepairsBowtie(t *testing.T) {
	e := NewEngine()
	bowtie, err := e.FromOrb(orb.Polygon{{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}})
	require.NoError(t, err)

	err = bowtie.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeometry))

	fixed, err := e.MakeValid(bowtie)
	require.NoError(t, err)
	assert.NoError(t, fixed.Validate())
	assert.InDelta(t, 50, fixed.Area(), 1e-9)
}

func TestPolygons(t *testing.T) {
	got := Polygons(orb.Collection{square(0, 0, 1), orb.Point{3, 3}, orb.MultiPolygon{square(2, 2, 1)}})
	assert.Len(t, got, 2)
	assert.Nil(t, Polygons(orb.LineString{{0, 0}, {1, 1}}))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(orb.Polygon{}))
	assert.True(t, IsEmpty(orb.MultiPolygon{{}}))
	assert.False(t, IsEmpty(square(0, 0, 1)))
}
