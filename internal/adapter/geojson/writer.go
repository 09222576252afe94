package geojson

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/pipeline"
)

// Output file names. %d is the walking budget in minutes.
const (
	IsochronesFile = "parks_isochrones_%dmin.geojson"
	AreaUnitsFile  = "area_units_accessibility_%dmin.geojson"
	RegionsFile    = "regions_accessibility_%dmin_flagged.geojson"
	SummaryFile    = "run_summary.json"
)

// Summary is the JSON run summary written next to the feature collections.
type Summary struct {
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Settings    pipeline.Settings     `json:"settings"`
	Stages      []domain.StageSummary `json:"stages"`
	Skips       []domain.Skip         `json:"skips"`
	Regions     pipeline.RegionStats  `json:"regions"`
	Files       []string              `json:"files"`
}

// Writer writes a run's results as GeoJSON files into a directory.
// It implements pipeline.Loader.
type Writer struct {
	dir     string
	idField string
	logger  *slog.Logger
}

// NewWriter creates a Writer for dir. Area units are written with their ID
// under idField so outputs join back to the inputs.
func NewWriter(dir, idField string, logger *slog.Logger) *Writer {
	if idField == "" {
		idField = "area_id"
	}
	return &Writer{dir: dir, idField: idField, logger: logger}
}

// Load writes the isochrone, area unit and region collections followed by
// the run summary. The region file is skipped when the run had no regions.
func (w *Writer) Load(ctx context.Context, r *pipeline.Result) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	minutes := r.Settings.BudgetMinutes

	outputs := []struct {
		name string
		fc   *geojson.FeatureCollection
	}{
		{fmt.Sprintf(IsochronesFile, minutes), IsochroneCollection(r.Isochrones)},
		{fmt.Sprintf(AreaUnitsFile, minutes), w.AreaUnitCollection(r.AreaUnits)},
	}
	if len(r.Regions) > 0 {
		outputs = append(outputs, struct {
			name string
			fc   *geojson.FeatureCollection
		}{fmt.Sprintf(RegionsFile, minutes), RegionCollection(r.Regions)})
	}

	files := make([]string, 0, len(outputs))
	for _, o := range outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := o.fc.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode %s: %w", o.name, err)
		}
		if err := w.write(o.name, data); err != nil {
			return err
		}
		files = append(files, o.name)
		w.logger.Info("wrote features", "file", o.name, "features", len(o.fc.Features))
	}

	summary := Summary{
		RunID:       r.RunID,
		GeneratedAt: r.GeneratedAt,
		Settings:    r.Settings,
		Stages:      r.Stages,
		Skips:       r.Skips,
		Regions:     r.RegionStats(),
		Files:       files,
	}
	if summary.Skips == nil {
		summary.Skips = []domain.Skip{}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	return w.write(SummaryFile, data)
}

// write replaces name atomically so readers never see a partial file.
func (w *Writer) write(name string, data []byte) error {
	tmp, err := os.CreateTemp(w.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, name)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// IsochroneCollection converts isochrones to features.
func IsochroneCollection(isos []domain.Isochrone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, iso := range isos {
		f := geojson.NewFeature(iso.Geometry)
		f.Properties = geojson.Properties{
			"poi_id":          iso.POIID,
			"poi_name":        iso.POIName,
			"minutes":         iso.BudgetMinutes,
			"mode":            iso.Mode,
			"source_nodes":    iso.SourceNodes,
			"reachable_nodes": iso.ReachableNodes,
			"area_sq_m":       iso.AreaSqM,
		}
		fc.Append(f)
	}
	return fc
}

// AreaUnitCollection converts area unit coverage to features.
func (w *Writer) AreaUnitCollection(units []domain.AreaCoverage) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, u := range units {
		f := geojson.NewFeature(u.Unit.Geometry)
		f.Properties = geojson.Properties{
			w.idField:                  u.Unit.ID,
			"population":               u.Unit.Population,
			"coverage_fraction":        u.CoverageFraction,
			"population_reachable":     u.PopulationReachable,
			"accessibility_score":      u.AccessibilityScore,
			"is_underserved":           u.IsUnderserved,
			"is_underserved_threshold": u.IsUnderservedThreshold,
		}
		fc.Append(f)
	}
	return fc
}

// RegionCollection converts region rollups to features. A missing score is
// written as null.
func RegionCollection(regions []domain.RegionCoverage) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rc := range regions {
		var score any
		if rc.AccessibilityScore != nil {
			score = *rc.AccessibilityScore
		}
		var threshold any
		if rc.ThresholdPct != nil {
			threshold = *rc.ThresholdPct
		}
		members := rc.Members
		if members == nil {
			members = []string{}
		}

		f := geojson.NewFeature(rc.Region.Geometry)
		f.Properties = geojson.Properties{
			"name":                       rc.Region.Name,
			"label":                      rc.Label,
			"members":                    members,
			"member_count":               len(members),
			"total_population":           rc.TotalPopulation,
			"total_population_reachable": rc.TotalPopulationReachable,
			"coverage_fraction":          rc.CoverageFraction,
			"accessibility_score":        score,
			"no_data":                    rc.NoData,
			"pop_without":                rc.PopulationWithout,
			"pct_without":                rc.PctWithout,
			"is_underserved":             rc.IsUnderserved,
			"is_underserved_threshold":   rc.IsUnderservedThreshold,
			"underserved_threshold_pct":  threshold,
		}
		fc.Append(f)
	}
	return fc
}
