package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/park-access/internal/coverage"
	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/geo"
	"github.com/couchcryptid/park-access/internal/network"
	"github.com/couchcryptid/park-access/internal/observability"
	"github.com/couchcryptid/park-access/internal/rollup"
)

// Stage names, used in logs, metrics and the run summary.
const (
	StageTravelTimes = "travel_times"
	StageIsochrones  = "isochrones"
	StageCoverage    = "coverage"
	StageRollup      = "rollup"
)

// Loader receives the finished result of a run.
type Loader interface {
	Load(ctx context.Context, r *Result) error
}

// Inputs are the fully loaded datasets of a run. Regions may be empty, in
// which case the rollup stage is skipped.
type Inputs struct {
	Graph     *domain.StreetGraph
	POIs      []domain.PointOfInterest
	AreaUnits []domain.AreaUnit
	Regions   []domain.Region
}

// Pipeline runs the accessibility stages in order and hands the result to
// its loaders once every stage has succeeded.
type Pipeline struct {
	settings Settings
	loaders  []Loader
	logger   *slog.Logger
	metrics  *observability.Metrics
	last     atomic.Pointer[Result]
}

// New creates a Pipeline with the given settings, observability and loaders.
func New(settings Settings, logger *slog.Logger, metrics *observability.Metrics, loaders ...Loader) *Pipeline {
	return &Pipeline{
		settings: settings,
		loaders:  loaders,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why results are not available yet.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.last.Load() == nil {
		return errors.New("no accessibility run has completed yet")
	}
	return nil
}

// LastResult returns the result of the most recent successful run, or nil.
func (p *Pipeline) LastResult() *Result {
	return p.last.Load()
}

// Run computes isochrones, coverage and the regional rollup for in. Input
// errors and failures that are not tied to a single item abort the run
// before any loader is called.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	pois := in.POIs
	if p.settings.MaxPOIs > 0 && len(pois) > p.settings.MaxPOIs {
		pois = pois[:p.settings.MaxPOIs]
	}

	res := &Result{
		RunID:       uuid.NewString(),
		GeneratedAt: domain.Now(),
		Settings:    p.settings,
	}
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("run started",
		"nodes", in.Graph.NodeCount(),
		"edges", in.Graph.EdgeCount(),
		"pois", len(pois),
		"area_units", len(in.AreaUnits),
		"regions", len(in.Regions),
		"budget_minutes", p.settings.BudgetMinutes,
		"polygon_mode", p.settings.Isochrone.Mode,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var graph *domain.StreetGraph
	err := p.stage(ctx, logger, res, StageTravelTimes, func() (int, []domain.Skip, error) {
		graph = network.WithTravelTimes(in.Graph, p.settings.WalkSpeedKmh)
		return graph.EdgeCount(), nil, nil
	})
	if err != nil {
		return nil, err
	}

	proj := geo.ProjectionFor(graph.Bound())
	err = p.stage(ctx, logger, res, StageIsochrones, func() (int, []domain.Skip, error) {
		isos, skips, err := p.isochrones(ctx, logger, graph, proj, pois)
		res.Isochrones = isos
		return len(isos), skips, err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, logger, res, StageCoverage, func() (int, []domain.Skip, error) {
		agg := coverage.NewAggregator(proj, geo.NewEngine(), p.settings.ThresholdPct)
		units, skips, err := agg.Compute(res.Isochrones, in.AreaUnits)
		res.AreaUnits = units
		return len(units) - len(skips), skips, err
	})
	if err != nil {
		return nil, err
	}

	if len(in.Regions) > 0 {
		err = p.stage(ctx, logger, res, StageRollup, func() (int, []domain.Skip, error) {
			agg := rollup.New(rollup.Options{
				ThresholdPct:    p.settings.ThresholdPct,
				ExcludeTouching: p.settings.ExcludeTouching,
			}, proj, geo.NewEngine())
			regions, skips, err := agg.Aggregate(res.AreaUnits, in.Regions)
			res.Regions = regions
			joined := 0
			for _, rc := range regions {
				if len(rc.Members) > 0 {
					joined++
				}
			}
			return joined, skips, err
		})
		if err != nil {
			return nil, err
		}
		stats := res.RegionStats()
		p.metrics.UnderservedRegions.WithLabelValues("strict").Set(float64(stats.Underserved))
		p.metrics.UnderservedRegions.WithLabelValues("threshold").Set(float64(stats.UnderservedThreshold))
	} else {
		logger.Info("no regions given, skipping rollup")
	}

	for _, l := range p.loaders {
		if err := l.Load(ctx, res); err != nil {
			return nil, fmt.Errorf("load results: %w", err)
		}
	}

	p.last.Store(res)
	logger.Info("run complete",
		"isochrones", len(res.Isochrones),
		"skipped", len(res.Skips),
	)
	return res, nil
}

// stage times fn, records its summary and skips, and logs each skip.
// Succeeded counts only items that were not skipped.
func (p *Pipeline) stage(ctx context.Context, logger *slog.Logger, res *Result, name string, fn func() (int, []domain.Skip, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	succeeded, skips, err := fn()
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	for _, s := range skips {
		logger.Warn("item skipped",
			"stage", s.Stage,
			"item_id", s.ItemID,
			"reason", s.Reason,
			"detail", s.Detail,
		)
		p.metrics.ItemsSkipped.WithLabelValues(s.Stage, string(s.Reason)).Inc()
	}
	if err != nil {
		logger.Error("stage failed", "stage", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}

	p.metrics.ItemsProcessed.WithLabelValues(name).Add(float64(succeeded))

	res.Skips = append(res.Skips, skips...)
	res.Stages = append(res.Stages, domain.StageSummary{
		Stage:     name,
		Succeeded: succeeded,
		Skipped:   len(skips),
		Duration:  elapsed,
	})
	logger.Info("stage complete",
		"stage", name,
		"succeeded", succeeded,
		"skipped", len(skips),
		"duration", elapsed,
	)
	return nil
}

func validate(in Inputs) error {
	switch {
	case in.Graph == nil || in.Graph.NodeCount() == 0:
		return domain.ErrEmptyGraph
	case len(in.POIs) == 0:
		return domain.ErrNoPOIs
	case len(in.AreaUnits) == 0:
		return domain.ErrNoAreaUnits
	}
	return nil
}
