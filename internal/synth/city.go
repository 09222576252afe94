// Package synth builds a small deterministic city: a street grid, parks,
// tracts and neighborhoods. It backs cmd/genmock and the pipeline tests.
package synth

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/couchcryptid/park-access/internal/domain"
)

const metersPerDegreeLat = 111320.0

// Options size the city.
type Options struct {
	Origin   orb.Point // south-west corner, lon/lat
	Rows     int
	Cols     int
	SpacingM float64 // block length
}

// DefaultOptions is a 12 x 12 grid of 100 m blocks in Riverside, CA.
func DefaultOptions() Options {
	return Options{
		Origin:   orb.Point{-117.4100, 33.9400},
		Rows:     12,
		Cols:     12,
		SpacingM: 100,
	}
}

// City holds the generated inputs.
type City struct {
	Graph     *domain.StreetGraph
	POIs      []domain.PointOfInterest
	AreaUnits []domain.AreaUnit
	Regions   []domain.Region

	opts       Options
	dLon, dLat float64
}

// NewCity generates a city. The same options always give the same city.
func NewCity(opts Options) (*City, error) {
	if opts.Rows < 4 || opts.Cols < 4 {
		return nil, fmt.Errorf("synthetic city needs at least 4x4 nodes, got %dx%d", opts.Rows, opts.Cols)
	}
	if opts.SpacingM <= 0 {
		return nil, fmt.Errorf("spacing must be positive, got %g", opts.SpacingM)
	}

	c := &City{
		opts: opts,
		dLat: opts.SpacingM / metersPerDegreeLat,
		dLon: opts.SpacingM / (metersPerDegreeLat * math.Cos(opts.Origin[1]*math.Pi/180)),
	}

	g, err := c.streets()
	if err != nil {
		return nil, err
	}
	c.Graph = g
	c.POIs = c.parks()
	c.AreaUnits = c.tracts()
	c.Regions = c.neighborhoods()
	return c, nil
}

// At returns the lon/lat of grid position (row, col). Fractions are allowed.
func (c *City) At(row, col float64) orb.Point {
	return orb.Point{
		c.opts.Origin[0] + col*c.dLon,
		c.opts.Origin[1] + row*c.dLat,
	}
}

// Box returns the rectangle between two grid positions.
func (c *City) Box(row0, col0, row1, col1 float64) orb.Polygon {
	a, b := c.At(row0, col0), c.At(row1, col1)
	return orb.Polygon{{
		{a[0], a[1]}, {b[0], a[1]}, {b[0], b[1]}, {a[0], b[1]}, {a[0], a[1]},
	}}
}

// NodeID returns the ID of the node at (row, col).
func (c *City) NodeID(row, col int) int64 {
	return int64(row*c.opts.Cols + col)
}

func (c *City) streets() (*domain.StreetGraph, error) {
	nodes := make([]domain.Node, 0, c.opts.Rows*c.opts.Cols)
	for r := 0; r < c.opts.Rows; r++ {
		for col := 0; col < c.opts.Cols; col++ {
			nodes = append(nodes, domain.Node{ID: c.NodeID(r, col), Point: c.At(float64(r), float64(col))})
		}
	}

	var edges []domain.Edge
	link := func(a, b domain.Node) {
		d := geo.Distance(a.Point, b.Point)
		edges = append(edges,
			domain.Edge{From: a.ID, To: b.ID, Length: d},
			domain.Edge{From: b.ID, To: a.ID, Length: d},
		)
	}
	for r := 0; r < c.opts.Rows; r++ {
		for col := 0; col < c.opts.Cols; col++ {
			n := nodes[r*c.opts.Cols+col]
			if col+1 < c.opts.Cols {
				link(n, nodes[r*c.opts.Cols+col+1])
			}
			if r+1 < c.opts.Rows {
				link(n, nodes[(r+1)*c.opts.Cols+col])
			}
		}
	}
	return domain.NewStreetGraph(nodes, edges)
}

// parks places a polygon park in the south-west, a plaza in the north-east
// and a reservoir well outside the grid.
func (c *City) parks() []domain.PointOfInterest {
	rows, cols := float64(c.opts.Rows-1), float64(c.opts.Cols-1)
	return []domain.PointOfInterest{
		{ID: "0", Name: "Fairmount Park", Geometry: c.Box(1.5, 1.5, 3.5, 3.5)},
		{ID: "1", Name: "Library Plaza", Geometry: c.At(rows-2, cols-2)},
		{ID: "2", Name: "", Geometry: c.Box(rows+20, cols+20, rows+22, cols+22)},
	}
}

// tracts splits the grid into four quadrants. The north-east quadrant is a
// rail yard with no residents.
func (c *City) tracts() []domain.AreaUnit {
	rows, cols := float64(c.opts.Rows-1), float64(c.opts.Cols-1)
	midR, midC := rows/2, cols/2
	return []domain.AreaUnit{
		{ID: "06065000100", Population: 1200, Geometry: c.Box(0, 0, midR, midC)},
		{ID: "06065000200", Population: 800, Geometry: c.Box(0, midC, midR, cols)},
		{ID: "06065000300", Population: 1500, Geometry: c.Box(midR, 0, rows, midC)},
		{ID: "06065000400", Population: 0, Geometry: c.Box(midR, midC, rows, cols)},
	}
}

// neighborhoods splits the grid into west and east halves plus a lake with
// no tracts. Names carry the messy casing seen in source data.
func (c *City) neighborhoods() []domain.Region {
	rows, cols := float64(c.opts.Rows-1), float64(c.opts.Cols-1)
	midC := cols / 2
	return []domain.Region{
		{Name: "wood streets", Geometry: c.Box(0, 0, rows, midC)},
		{Name: "EASTSIDE", Geometry: c.Box(0, midC, rows, cols)},
		{Name: "Lake  Evans", Geometry: c.Box(rows+5, 0, rows+8, 3)},
	}
}
