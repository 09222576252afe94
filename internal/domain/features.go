package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// DefaultPOIName is used when a point of interest has no name.
const DefaultPOIName = "Unnamed"

// PointOfInterest is a park. Geometry is a Point, Polygon or MultiPolygon.
type PointOfInterest struct {
	ID       string
	Name     string
	Geometry orb.Geometry
}

// Isochrone is the walkable area around one point of interest.
type Isochrone struct {
	POIID          string       `json:"poi_id"`
	POIName        string       `json:"poi_name"`
	BudgetMinutes  int          `json:"minutes"`
	Mode           string       `json:"mode"`
	SourceNodes    int          `json:"source_nodes"`
	ReachableNodes int          `json:"reachable_nodes"`
	AreaSqM        float64      `json:"area_sq_m"`
	Geometry       orb.Geometry `json:"-"`
}

// AreaUnit is the finest unit with a population count, e.g. a census tract.
type AreaUnit struct {
	ID         string
	Population float64
	Geometry   orb.Geometry
}

// Region is a coarser polygon, e.g. a neighborhood.
type Region struct {
	Name     string
	Geometry orb.Geometry
}

// CoverageResult holds the access metrics of one area unit.
type CoverageResult struct {
	CoverageFraction       float64 `json:"coverage_fraction"`
	PopulationReachable    float64 `json:"population_reachable"`
	AccessibilityScore     float64 `json:"accessibility_score"`
	IsUnderserved          bool    `json:"is_underserved"`
	IsUnderservedThreshold bool    `json:"is_underserved_threshold"`
}

// AreaCoverage is an area unit together with its coverage.
type AreaCoverage struct {
	Unit AreaUnit
	CoverageResult
}

// RegionCoverage is the rollup of area-unit coverage to one region.
type RegionCoverage struct {
	Region  Region   `json:"-"`
	Members []string `json:"members"`

	TotalPopulation          float64 `json:"total_population"`
	TotalPopulationReachable float64 `json:"total_population_reachable"`

	// CoverageFraction is 0 and NoData is true when TotalPopulation is 0.
	CoverageFraction float64 `json:"coverage_fraction"`
	NoData           bool    `json:"no_data"`

	// AccessibilityScore is the population-weighted mean of member scores,
	// nil when the members carry no population.
	AccessibilityScore *float64 `json:"accessibility_score"`

	PopulationWithout      float64  `json:"pop_without"`
	PctWithout             float64  `json:"pct_without"`
	IsUnderserved          bool     `json:"is_underserved"`
	IsUnderservedThreshold bool     `json:"is_underserved_threshold"`
	ThresholdPct           *float64 `json:"underserved_threshold_pct"`
	Label                  string   `json:"label"`
}

// Skip records an item that a stage could not process.
type Skip struct {
	Stage  string     `json:"stage"`
	ItemID string     `json:"item_id"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// StageSummary counts the outcome of one stage.
type StageSummary struct {
	Stage     string        `json:"stage"`
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration_ns"`
}
