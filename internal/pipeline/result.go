package pipeline

import (
	"math"
	"time"

	"github.com/couchcryptid/park-access/internal/domain"
)

// Result is everything a run produced.
type Result struct {
	RunID       string
	GeneratedAt time.Time
	Settings    Settings

	Isochrones []domain.Isochrone
	AreaUnits  []domain.AreaCoverage
	Regions    []domain.RegionCoverage

	Stages []domain.StageSummary
	Skips  []domain.Skip
}

// RegionStats summarises classification over all regions.
type RegionStats struct {
	Total                   int     `json:"total_regions"`
	Underserved             int     `json:"underserved_count"`
	UnderservedThreshold    int     `json:"underserved_threshold_count"`
	UnderservedPercentage   float64 `json:"underserved_percentage"`
	NoData                  int     `json:"no_data_count"`
	TotalPopulation         float64 `json:"total_population"`
	PopulationReachable     float64 `json:"population_reachable"`
	CityCoverageFraction    float64 `json:"city_coverage_fraction"`
	AreaUnitsUnderserved    int     `json:"area_units_underserved"`
	AreaUnitsWithPopulation int     `json:"area_units_with_population"`
}

// RegionStats counts underserved regions. The percentage is rounded to one
// decimal and is 0 when there are no regions. Population totals are taken
// over area units, so units on region borders are counted once.
func (r *Result) RegionStats() RegionStats {
	s := RegionStats{Total: len(r.Regions)}
	for _, rc := range r.Regions {
		if rc.IsUnderserved {
			s.Underserved++
		}
		if rc.IsUnderservedThreshold {
			s.UnderservedThreshold++
		}
		if rc.NoData {
			s.NoData++
		}
	}
	if s.Total > 0 {
		s.UnderservedPercentage = math.Round(1000*float64(s.Underserved)/float64(s.Total)) / 10
	}

	for _, u := range r.AreaUnits {
		if u.Unit.Population > 0 {
			s.AreaUnitsWithPopulation++
			s.TotalPopulation += u.Unit.Population
			s.PopulationReachable += u.PopulationReachable
		}
		if u.IsUnderserved {
			s.AreaUnitsUnderserved++
		}
	}
	if s.TotalPopulation > 0 {
		s.CityCoverageFraction = s.PopulationReachable / s.TotalPopulation
	}
	return s
}

// Stage returns the summary of the named stage.
func (r *Result) Stage(name string) (domain.StageSummary, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return domain.StageSummary{}, false
}
