package pipeline

import (
	"runtime"

	"github.com/couchcryptid/park-access/internal/config"
	"github.com/couchcryptid/park-access/internal/isochrone"
	"github.com/couchcryptid/park-access/internal/rollup"
)

// Settings are the analysis parameters of a run.
type Settings struct {
	WalkSpeedKmh       float64           `json:"walk_speed_kmh"`
	BudgetMinutes      int               `json:"budget_minutes"`
	Isochrone          isochrone.Options `json:"isochrone"`
	SampleIntervalM    float64           `json:"sample_interval_m"`
	MinBoundarySamples int               `json:"min_boundary_samples"`
	MaxSnapDistanceM   float64           `json:"max_snap_distance_m"`
	Workers            int               `json:"workers"`
	ReachCacheSize     int               `json:"reach_cache_size"`
	MaxPOIs            int               `json:"max_pois"`
	ThresholdPct       *float64          `json:"underserved_threshold_pct"`
	ExcludeTouching    bool              `json:"rollup_exclude_touching"`
}

// DefaultSettings mirror the configuration defaults.
func DefaultSettings() Settings {
	threshold := rollup.DefaultThresholdPct
	return Settings{
		WalkSpeedKmh:       5,
		BudgetMinutes:      15,
		Isochrone:          isochrone.DefaultOptions(),
		SampleIntervalM:    50,
		MinBoundarySamples: 4,
		ReachCacheSize:     4096,
		ThresholdPct:       &threshold,
	}
}

// SettingsFromConfig copies the analysis parameters out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		WalkSpeedKmh:  cfg.WalkSpeedKmh,
		BudgetMinutes: cfg.BudgetMinutes,
		Isochrone: isochrone.Options{
			Mode:               isochrone.Mode(cfg.PolygonMode),
			BufferRadiusM:      cfg.BufferRadiusM,
			SimplifyToleranceM: cfg.SimplifyToleranceM,
			QuadSegs:           cfg.BufferQuadSegs,
		},
		SampleIntervalM:    cfg.SampleIntervalM,
		MinBoundarySamples: cfg.MinBoundarySamples,
		MaxSnapDistanceM:   cfg.MaxSnapDistanceM,
		Workers:            cfg.Workers,
		ReachCacheSize:     cfg.ReachCacheSize,
		MaxPOIs:            cfg.MaxPOIs,
		ThresholdPct:       cfg.ThresholdPct(),
		ExcludeTouching:    cfg.RollupExcludeTouching,
	}
}

// BudgetSeconds returns the walking budget in seconds.
func (s Settings) BudgetSeconds() float64 {
	return float64(s.BudgetMinutes) * 60
}

func (s Settings) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}
