package geojson

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/park-access/internal/config"
	"github.com/couchcryptid/park-access/internal/domain"
)

// Schema names the attributes read from each input collection.
type Schema struct {
	AreaIDField         string
	AreaPopulationField string
	RegionNameField     string
	POINameField        string
	POIIDField          string // empty: use the feature index
}

// DefaultSchema matches census tract and neighborhood exports.
func DefaultSchema() Schema {
	return Schema{
		AreaIDField:         "GEOID",
		AreaPopulationField: "population",
		RegionNameField:     "neighborhood_name",
		POINameField:        "name",
	}
}

// SchemaFromConfig copies the field names out of cfg.
func SchemaFromConfig(cfg *config.Config) Schema {
	return Schema{
		AreaIDField:         cfg.AreaIDField,
		AreaPopulationField: cfg.AreaPopulationField,
		RegionNameField:     cfg.RegionNameField,
		POINameField:        cfg.POINameField,
		POIIDField:          cfg.POIIDField,
	}
}

// Reader loads feature collections into domain values, enforcing the schema.
// A required attribute that is missing fails the whole load.
type Reader struct {
	schema Schema
	logger *slog.Logger
}

// NewReader creates a Reader for schema.
func NewReader(schema Schema, logger *slog.Logger) *Reader {
	return &Reader{schema: schema, logger: logger}
}

// LoadPOIs reads parks from a GeoJSON file.
func (r *Reader) LoadPOIs(path string) ([]domain.PointOfInterest, error) {
	fc, err := loadCollection(path)
	if err != nil {
		return nil, err
	}
	return r.POIs(fc)
}

// POIs converts parks. A park without a name is called domain.DefaultPOIName.
func (r *Reader) POIs(fc *geojson.FeatureCollection) ([]domain.PointOfInterest, error) {
	if len(fc.Features) == 0 {
		return nil, domain.ErrNoPOIs
	}

	out := make([]domain.PointOfInterest, 0, len(fc.Features))
	unnamed := 0
	for i, f := range fc.Features {
		id := strconv.Itoa(i)
		if r.schema.POIIDField != "" {
			v, err := requireProp(f, i, r.schema.POIIDField)
			if err != nil {
				return nil, err
			}
			id = stringify(v)
		}

		var name string
		if v, ok := f.Properties[r.schema.POINameField]; ok && v != nil {
			name = stringify(v)
		}
		if name == "" {
			name = domain.DefaultPOIName
			unnamed++
		}
		out = append(out, domain.PointOfInterest{ID: id, Name: name, Geometry: f.Geometry})
	}

	r.logger.Info("parks loaded", "count", len(out), "unnamed", unnamed)
	return out, nil
}

// LoadAreaUnits reads population units from a GeoJSON file.
func (r *Reader) LoadAreaUnits(path string) ([]domain.AreaUnit, error) {
	fc, err := loadCollection(path)
	if err != nil {
		return nil, err
	}
	return r.AreaUnits(fc)
}

// AreaUnits converts population units. IDs must be unique. Population may be
// a number or a numeric string and must be finite and non-negative.
func (r *Reader) AreaUnits(fc *geojson.FeatureCollection) ([]domain.AreaUnit, error) {
	if len(fc.Features) == 0 {
		return nil, domain.ErrNoAreaUnits
	}

	out := make([]domain.AreaUnit, 0, len(fc.Features))
	seen := make(map[string]int, len(fc.Features))
	var total float64
	for i, f := range fc.Features {
		idVal, err := requireProp(f, i, r.schema.AreaIDField)
		if err != nil {
			return nil, err
		}
		id := stringify(idVal)
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: feature %d: duplicate %s %q (first seen in feature %d)",
				domain.ErrInvalidFeature, i, r.schema.AreaIDField, id, prev)
		}
		seen[id] = i
		popVal, err := requireProp(f, i, r.schema.AreaPopulationField)
		if err != nil {
			return nil, err
		}
		pop, err := number(popVal)
		if err != nil || math.IsNaN(pop) || math.IsInf(pop, 0) || pop < 0 {
			return nil, fmt.Errorf("%w: feature %d: %s = %v is not a non-negative number",
				domain.ErrInvalidFeature, i, r.schema.AreaPopulationField, popVal)
		}
		out = append(out, domain.AreaUnit{ID: id, Population: pop, Geometry: f.Geometry})
		total += pop
	}

	r.logger.Info("area units loaded", "count", len(out), "population", total)
	return out, nil
}

// LoadRegions reads regions from a GeoJSON file.
func (r *Reader) LoadRegions(path string) ([]domain.Region, error) {
	fc, err := loadCollection(path)
	if err != nil {
		return nil, err
	}
	return r.Regions(fc)
}

// Regions converts regions and normalises their names.
func (r *Reader) Regions(fc *geojson.FeatureCollection) ([]domain.Region, error) {
	out := make([]domain.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		v, err := requireProp(f, i, r.schema.RegionNameField)
		if err != nil {
			return nil, err
		}
		name := NormalizeName(stringify(v))
		if name == "" {
			r.logger.Warn("region has an empty name", "feature", i)
		}
		out = append(out, domain.Region{Name: name, Geometry: f.Geometry})
	}

	r.logger.Info("regions loaded", "count", len(out))
	return out, nil
}

var title = cases.Title(language.English)

// NormalizeName trims s, collapses runs of whitespace and title-cases it.
func NormalizeName(s string) string {
	return title.String(strings.Join(strings.Fields(s), " "))
}

func loadCollection(path string) (*geojson.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open features: %w", err)
	}
	defer f.Close()

	fc, err := readCollection(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

func readCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode feature collection: %w", domain.ErrInvalidFeature, err)
	}
	return fc, nil
}

// requireProp returns the value of key, failing with the available keys
// when the attribute is absent or null.
func requireProp(f *geojson.Feature, index int, key string) (any, error) {
	if v, ok := f.Properties[key]; ok && v != nil {
		return v, nil
	}
	keys := make([]string, 0, len(f.Properties))
	for k := range f.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return nil, fmt.Errorf("%w: feature %d has no %q (available: %s)",
		domain.ErrMissingField, index, key, strings.Join(keys, ", "))
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func number(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
