package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// EnvPrefix prefixes every environment variable, e.g. PARKACCESS_BUDGET_MINUTES.
const EnvPrefix = "PARKACCESS_"

// DefaultFile is read when present and no --config flag is given.
const DefaultFile = "parkaccess.toml"

// Config holds all run settings.
type Config struct {
	GraphPath     string `koanf:"graph_path"`
	ParksPath     string `koanf:"parks_path"`
	AreaUnitsPath string `koanf:"area_units_path"`
	RegionsPath   string `koanf:"regions_path"`
	OutputDir     string `koanf:"output_dir"`

	// Attribute names in the input feature collections.
	AreaIDField         string `koanf:"area_id_field"`
	AreaPopulationField string `koanf:"area_population_field"`
	RegionNameField     string `koanf:"region_name_field"`
	POINameField        string `koanf:"poi_name_field"`
	POIIDField          string `koanf:"poi_id_field"` // empty: use the feature index

	WalkSpeedKmh       float64 `koanf:"walk_speed_kmh"`
	BudgetMinutes      int     `koanf:"budget_minutes"`
	BufferRadiusM      float64 `koanf:"buffer_radius_m"`
	SimplifyToleranceM float64 `koanf:"simplify_tolerance_m"`
	SampleIntervalM    float64 `koanf:"sample_interval_m"`
	MinBoundarySamples int     `koanf:"min_boundary_samples"`
	PolygonMode        string  `koanf:"polygon_mode"`
	BufferQuadSegs     int     `koanf:"buffer_quad_segs"`
	MaxSnapDistanceM   float64 `koanf:"max_snap_distance_m"`
	Workers            int     `koanf:"workers"`
	ReachCacheSize     int     `koanf:"reach_cache_size"`
	MaxPOIs            int     `koanf:"max_pois"`

	UnderservedThresholdPct      float64 `koanf:"underserved_threshold_pct"`
	UnderservedThresholdDisabled bool    `koanf:"underserved_threshold_disabled"`
	RollupExcludeTouching        bool    `koanf:"rollup_exclude_touching"`

	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	HTTPAddr        string        `koanf:"http_addr"`
	ServeAfterRun   bool          `koanf:"serve_after_run"`
	KafkaBrokers    []string      `koanf:"kafka_brokers"`
	KafkaTopic      string        `koanf:"kafka_topic"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"graph_path":      "",
		"parks_path":      "",
		"area_units_path": "",
		"regions_path":    "",
		"output_dir":      "output",

		"area_id_field":         "GEOID",
		"area_population_field": "population",
		"region_name_field":     "neighborhood_name",
		"poi_name_field":        "name",
		"poi_id_field":          "",

		"walk_speed_kmh":       5.0,
		"budget_minutes":       15,
		"buffer_radius_m":      60.0,
		"simplify_tolerance_m": 10.0,
		"sample_interval_m":    50.0,
		"min_boundary_samples": 4,
		"polygon_mode":         "tight",
		"buffer_quad_segs":     8,
		"max_snap_distance_m":  0.0,
		"workers":              0,
		"reach_cache_size":     4096,
		"max_pois":             0,

		"underserved_threshold_pct":      50.0,
		"underserved_threshold_disabled": false,
		"rollup_exclude_touching":        false,

		"log_level":        "info",
		"log_format":       "json",
		"http_addr":        "",
		"serve_after_run":  false,
		"kafka_brokers":    []string{},
		"kafka_topic":      "park-access-results",
		"shutdown_timeout": "10s",
	}
}

// RegisterFlags defines the command-line flags Load understands. Flag names
// are the config keys with hyphens instead of underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a TOML config file (default "+DefaultFile+" if present)")

	fs.String("graph-path", "", "street graph in node-link JSON")
	fs.String("parks-path", "", "parks GeoJSON")
	fs.String("area-units-path", "", "area units (tracts) GeoJSON with population")
	fs.String("regions-path", "", "regions (neighborhoods) GeoJSON; rollup is skipped when empty")
	fs.String("output-dir", "output", "directory for result files")

	fs.String("area-id-field", "GEOID", "area unit identifier attribute")
	fs.String("area-population-field", "population", "area unit population attribute")
	fs.String("region-name-field", "neighborhood_name", "region name attribute")
	fs.String("poi-name-field", "name", "park name attribute")
	fs.String("poi-id-field", "", "park identifier attribute (default: feature index)")

	fs.Float64("walk-speed-kmh", 5, "walking speed in km/h")
	fs.Int("budget-minutes", 15, "walking time budget in minutes")
	fs.Float64("buffer-radius-m", 60, "isochrone buffer radius in meters")
	fs.Float64("simplify-tolerance-m", 10, "isochrone simplification tolerance in meters (0 disables)")
	fs.Float64("sample-interval-m", 50, "spacing of park boundary entry points in meters")
	fs.Int("min-boundary-samples", 4, "minimum entry points per park boundary")
	fs.String("polygon-mode", "tight", "isochrone polygon mode: tight or hull")
	fs.Int("buffer-quad-segs", 8, "segments per quarter circle when buffering")
	fs.Float64("max-snap-distance-m", 0, "reject entry points farther than this from the network (0: no limit)")
	fs.Int("workers", 0, "parallel isochrone workers (0: number of CPUs)")
	fs.Int("reach-cache-size", 4096, "cached single-source searches (0 disables)")
	fs.Int("max-pois", 0, "process at most this many parks (0: all)")

	fs.Float64("underserved-threshold-pct", 50, "flag places where at least this percent lack access")
	fs.Bool("underserved-threshold-disabled", false, "disable the threshold rule")
	fs.Bool("rollup-exclude-touching", false, "ignore area units that only touch a region boundary")

	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "json", "json or text")
	fs.String("http-addr", "", "serve /healthz, /readyz and /metrics on this address")
	fs.Bool("serve-after-run", false, "keep the HTTP server up after the run until interrupted")
	fs.StringSlice("kafka-brokers", nil, "publish results to these Kafka brokers")
	fs.String("kafka-topic", "park-access-results", "Kafka topic for results")
	fs.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
}

// Load merges defaults, the TOML file, PARKACCESS_* environment variables and
// flags, in increasing priority, and validates the result. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := loadFile(k, fs); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Env and TOML values may hold one comma-separated string.
	cfg.KafkaBrokers = sharedcfg.ParseBrokers(strings.Join(cfg.KafkaBrokers, ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, fs *pflag.FlagSet) error {
	path, explicit := "", false
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			path, explicit = f.Value.String(), true
		}
	}
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultFile
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return nil
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges and required inputs.
func (c *Config) Validate() error {
	var errs []error
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	require(c.GraphPath != "", "graph_path is required")
	require(c.ParksPath != "", "parks_path is required")
	require(c.AreaUnitsPath != "", "area_units_path is required")
	require(c.OutputDir != "", "output_dir is required")
	require(c.AreaIDField != "", "area_id_field must not be empty")
	require(c.AreaPopulationField != "", "area_population_field must not be empty")
	require(c.RegionNameField != "", "region_name_field must not be empty")

	require(c.WalkSpeedKmh > 0, "walk_speed_kmh must be positive")
	require(c.BudgetMinutes > 0, "budget_minutes must be positive")
	require(c.BufferRadiusM > 0, "buffer_radius_m must be positive")
	require(c.SimplifyToleranceM >= 0, "simplify_tolerance_m must not be negative")
	require(c.SampleIntervalM > 0, "sample_interval_m must be positive")
	require(c.MinBoundarySamples >= 1, "min_boundary_samples must be at least 1")
	require(c.PolygonMode == "tight" || c.PolygonMode == "hull", "polygon_mode must be tight or hull")
	require(c.BufferQuadSegs >= 1, "buffer_quad_segs must be at least 1")
	require(c.MaxSnapDistanceM >= 0, "max_snap_distance_m must not be negative")
	require(c.Workers >= 0, "workers must not be negative")
	require(c.ReachCacheSize >= 0, "reach_cache_size must not be negative")
	require(c.MaxPOIs >= 0, "max_pois must not be negative")
	if !c.UnderservedThresholdDisabled {
		require(c.UnderservedThresholdPct > 0 && c.UnderservedThresholdPct <= 100,
			"underserved_threshold_pct must be in (0, 100]")
	}

	require(oneOf(c.LogLevel, "debug", "info", "warn", "error"), "log_level must be debug, info, warn or error")
	require(oneOf(c.LogFormat, "json", "text"), "log_format must be json or text")
	require(len(c.KafkaBrokers) == 0 || c.KafkaTopic != "", "kafka_topic is required when kafka_brokers is set")
	require(c.ShutdownTimeout > 0, "shutdown_timeout must be positive")

	return errors.Join(errs...)
}

// ThresholdPct returns the underserved threshold, or nil when disabled.
func (c *Config) ThresholdPct() *float64 {
	if c.UnderservedThresholdDisabled {
		return nil
	}
	pct := c.UnderservedThresholdPct
	return &pct
}

// BudgetSeconds returns the walking budget in seconds.
func (c *Config) BudgetSeconds() float64 {
	return float64(c.BudgetMinutes) * 60
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// mapProvider feeds a plain map to koanf.
type mapProvider map[string]interface{}

func (p mapProvider) Read() (map[string]interface{}, error) { return p, nil }

func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("not implemented")
}
