package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/geo"
	"github.com/couchcryptid/park-access/internal/isochrone"
	"github.com/couchcryptid/park-access/internal/network"
)

// outcome is the per-POI result slot filled by a worker.
type outcome struct {
	iso  *domain.Isochrone
	skip *domain.Skip
}

// isochrones builds one isochrone per POI on a bounded pool of workers. The
// graph, node index and reach cache are shared; each worker has its own
// geometry engine. Results keep the order of pois.
func (p *Pipeline) isochrones(ctx context.Context, logger *slog.Logger, graph *domain.StreetGraph, proj *geo.Projection, pois []domain.PointOfInterest) ([]domain.Isochrone, []domain.Skip, error) {
	index, err := network.NewNodeIndex(graph, proj, p.settings.MaxSnapDistanceM)
	if err != nil {
		return nil, nil, err
	}

	var reacher network.Reacher = network.NewDijkstra(graph, p.settings.BudgetSeconds())
	var cached *network.CachedReacher
	if p.settings.ReachCacheSize > 0 {
		cached = network.NewCachedReacher(reacher, p.settings.ReachCacheSize)
		reacher = cached
	}

	outcomes := make([]outcome, len(pois))
	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range pois {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workers := min(p.settings.workers(), len(pois))
	logger.Debug("building isochrones", "workers", workers, "reach_cache_size", p.settings.ReachCacheSize)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			b := isochrone.NewBuilder(p.settings.Isochrone, proj, geo.NewEngine())
			for i := range jobs {
				o, err := p.buildOne(graph, proj, index, reacher, b, pois[i])
				if err != nil {
					return fmt.Errorf("poi %s: %w", pois[i].ID, err)
				}
				outcomes[i] = o
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if cached != nil {
		hits, misses := cached.Stats()
		p.metrics.ReachCache.WithLabelValues("hit").Add(float64(hits))
		p.metrics.ReachCache.WithLabelValues("miss").Add(float64(misses))
	}

	var (
		isos  []domain.Isochrone
		skips []domain.Skip
	)
	for _, o := range outcomes {
		switch {
		case o.iso != nil:
			isos = append(isos, *o.iso)
		case o.skip != nil:
			skips = append(skips, *o.skip)
		}
	}
	if len(isos) == 0 {
		return nil, skips, fmt.Errorf("%w (%d skipped)", domain.ErrNoIsochrones, len(skips))
	}
	return isos, skips, nil
}

// buildOne resolves a POI to source nodes, searches the network and outlines
// the result. Item-level failures come back as a skip outcome.
func (p *Pipeline) buildOne(graph *domain.StreetGraph, proj *geo.Projection, index *network.NodeIndex, reacher network.Reacher, b *isochrone.Builder, poi domain.PointOfInterest) (outcome, error) {
	name := poi.Name
	if name == "" {
		name = domain.DefaultPOIName
	}

	iso, err := p.isochrone(graph, proj, index, reacher, b, poi)
	if err != nil {
		skip, ok := domain.AsSkip(err, StageIsochrones, poi.ID)
		if !ok {
			return outcome{}, err
		}
		return outcome{skip: &skip}, nil
	}
	iso.POIName = name
	return outcome{iso: &iso}, nil
}

func (p *Pipeline) isochrone(graph *domain.StreetGraph, proj *geo.Projection, index *network.NodeIndex, reacher network.Reacher, b *isochrone.Builder, poi domain.PointOfInterest) (domain.Isochrone, error) {
	if geo.IsEmpty(poi.Geometry) {
		return domain.Isochrone{}, domain.Skipf(domain.ReasonNoGeometry, "park has no geometry")
	}
	switch poi.Geometry.(type) {
	case orb.Point, orb.MultiPoint, orb.Polygon, orb.MultiPolygon:
	default:
		return domain.Isochrone{}, domain.Skipf(domain.ReasonUnsupportedGeometry, "%s parks are not supported", poi.Geometry.GeoJSONType())
	}

	entries := geo.EntryPoints(proj.Forward(poi.Geometry), p.settings.SampleIntervalM, p.settings.MinBoundarySamples)
	sources := index.Sources(entries)
	if len(sources) == 0 {
		return domain.Isochrone{}, domain.Skipf(domain.ReasonNoSourceNode,
			"none of %d entry points is within %g m of the network", len(entries), p.settings.MaxSnapDistanceM)
	}

	reachable, err := network.ReachableWith(reacher, sources)
	if err != nil {
		return domain.Isochrone{}, err
	}
	if len(reachable) == 0 {
		return domain.Isochrone{}, domain.Skipf(domain.ReasonNoReachableNodes, "no nodes within %d minutes", p.settings.BudgetMinutes)
	}
	p.metrics.ReachableNodes.Observe(float64(len(reachable)))

	geom, area, err := b.Build(graph, reachable)
	if err != nil {
		return domain.Isochrone{}, err
	}

	return domain.Isochrone{
		POIID:          poi.ID,
		BudgetMinutes:  p.settings.BudgetMinutes,
		Mode:           string(p.settings.Isochrone.Mode),
		SourceNodes:    len(sources),
		ReachableNodes: len(reachable),
		AreaSqM:        area,
		Geometry:       geom,
	}, nil
}
