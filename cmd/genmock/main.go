// Command genmock writes a small synthetic city as input files for manual
// runs and demos: a node-link street graph plus parks, tracts and
// neighborhoods as GeoJSON, and a config file pointing at them.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//	go run ./cmd/parkaccess --config data/mock/parkaccess.toml
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"

	geojsonadapter "github.com/couchcryptid/park-access/internal/adapter/geojson"
	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/synth"
)

const configTemplate = `graph_path = %q
parks_path = %q
area_units_path = %q
regions_path = %q
output_dir = %q
budget_minutes = 5
max_snap_distance_m = 200
log_format = "text"
`

type manifest struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Options     synth.Options `json:"options"`
	Nodes       int           `json:"nodes"`
	Edges       int           `json:"edges"`
	Parks       int           `json:"parks"`
	Tracts      int           `json:"tracts"`
	Regions     int           `json:"regions"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	def := synth.DefaultOptions()
	out := flag.String("out", "", "output directory for the mock inputs")
	rows := flag.Int("rows", def.Rows, "street grid rows")
	cols := flag.Int("cols", def.Cols, "street grid columns")
	spacing := flag.Float64("spacing", def.SpacingM, "block length in meters")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Fixed clock for a reproducible manifest.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.May, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	opts := def
	opts.Rows, opts.Cols, opts.SpacingM = *rows, *cols, *spacing
	city, err := synth.NewCity(opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	path := func(name string) string { return filepath.Join(*out, name) }

	var graph bytes.Buffer
	if err := geojsonadapter.WriteStreetGraph(&graph, city.Graph); err != nil {
		return err
	}
	if err := os.WriteFile(path("streets.json"), graph.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing street graph: %w", err)
	}
	log.Printf("streets: %d nodes, %d edges", city.Graph.NodeCount(), city.Graph.EdgeCount())

	if err := writeFeatures(path("parks.geojson"), parks(city)); err != nil {
		return err
	}
	if err := writeFeatures(path("tracts.geojson"), tracts(city)); err != nil {
		return err
	}
	if err := writeFeatures(path("neighborhoods.geojson"), neighborhoods(city)); err != nil {
		return err
	}
	log.Printf("parks: %d, tracts: %d, neighborhoods: %d", len(city.POIs), len(city.AreaUnits), len(city.Regions))

	cfg := fmt.Sprintf(configTemplate,
		path("streets.json"), path("parks.geojson"), path("tracts.geojson"),
		path("neighborhoods.geojson"), path("output"))
	if err := os.WriteFile(path("parkaccess.toml"), []byte(cfg), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	m := manifest{
		GeneratedAt: domain.Now(),
		Options:     opts,
		Nodes:       city.Graph.NodeCount(),
		Edges:       city.Graph.EdgeCount(),
		Parks:       len(city.POIs),
		Tracts:      len(city.AreaUnits),
		Regions:     len(city.Regions),
	}
	if err := writeJSON(path("manifest.json"), m); err != nil {
		return err
	}
	log.Printf("wrote mock city to %s", *out)
	return nil
}

func parks(c *synth.City) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range c.POIs {
		f := geojson.NewFeature(p.Geometry)
		f.Properties["name"] = p.Name
		fc.Append(f)
	}
	return fc
}

func tracts(c *synth.City) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, u := range c.AreaUnits {
		f := geojson.NewFeature(u.Geometry)
		f.Properties["GEOID"] = u.ID
		f.Properties["population"] = u.Population
		fc.Append(f)
	}
	return fc
}

func neighborhoods(c *synth.City) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range c.Regions {
		f := geojson.NewFeature(r.Geometry)
		f.Properties["neighborhood_name"] = r.Name
		fc.Append(f)
	}
	return fc
}

func writeFeatures(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
