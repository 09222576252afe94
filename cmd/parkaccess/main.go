// Command parkaccess computes walking-time park access for every area unit
// and region and writes the results as GeoJSON, optionally publishing them to
// Kafka and serving health, metrics and the last run over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	geojsonadapter "github.com/couchcryptid/park-access/internal/adapter/geojson"
	httpadapter "github.com/couchcryptid/park-access/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/park-access/internal/adapter/kafka"
	"github.com/couchcryptid/park-access/internal/config"
	"github.com/couchcryptid/park-access/internal/observability"
	"github.com/couchcryptid/park-access/internal/pipeline"
	"github.com/couchcryptid/park-access/internal/report"
)

func main() {
	fs := pflag.NewFlagSet("parkaccess", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loaders := []pipeline.Loader{
		geojsonadapter.NewWriter(cfg.OutputDir, cfg.AreaIDField, logger),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafkaadapter.NewPublisher(cfg, logger, metrics)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		loaders = append(loaders, publisher)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(pipeline.SettingsFromConfig(cfg), logger, metrics, loaders...)

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, nil, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer shutdown(srv, cfg, logger)
	}

	in, err := loadInputs(ctx, cfg, logger)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, in)
	if err != nil {
		return err
	}
	// Logs go to stdout, so the summary goes to stderr.
	report.Print(os.Stderr, res)

	if srv != nil && cfg.ServeAfterRun {
		logger.Info("serving results until interrupted", "addr", cfg.HTTPAddr)
		<-ctx.Done()
		logger.Info("shutting down")
	}
	return nil
}

// loadInputs reads the four inputs concurrently. Regions are optional.
func loadInputs(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Inputs, error) {
	reader := geojsonadapter.NewReader(geojsonadapter.SchemaFromConfig(cfg), logger)

	var in pipeline.Inputs
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Graph, err = geojsonadapter.LoadStreetGraph(cfg.GraphPath)
		return err
	})
	g.Go(func() (err error) {
		in.POIs, err = reader.LoadPOIs(cfg.ParksPath)
		return err
	})
	g.Go(func() (err error) {
		in.AreaUnits, err = reader.LoadAreaUnits(cfg.AreaUnitsPath)
		return err
	})
	if cfg.RegionsPath != "" {
		g.Go(func() (err error) {
			in.Regions, err = reader.LoadRegions(cfg.RegionsPath)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.Inputs{}, fmt.Errorf("load inputs: %w", err)
	}

	logger.Info("inputs loaded",
		"nodes", in.Graph.NodeCount(),
		"edges", in.Graph.EdgeCount(),
		"parks", len(in.POIs),
		"area_units", len(in.AreaUnits),
		"regions", len(in.Regions),
	)
	return in, nil
}

func shutdown(srv *httpadapter.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
