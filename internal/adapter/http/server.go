package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/pipeline"
)

// RunStatus reports whether a run has completed and exposes its result.
type RunStatus interface {
	sharedobs.ReadinessChecker
	LastResult() *pipeline.Result
}

// Server exposes health, readiness, metrics and the last run's results.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /summary and /regions routes. gatherer serves /metrics; nil uses the
// default registry.
func NewServer(addr string, status RunStatus, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	metrics := promhttp.Handler()
	if gatherer != nil {
		metrics = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(status))
	mux.Handle("GET /metrics", metrics)
	mux.HandleFunc("GET /summary", handleSummary(status))
	mux.HandleFunc("GET /regions", handleRegions(status))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type summaryResponse struct {
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Settings    pipeline.Settings     `json:"settings"`
	Stages      []domain.StageSummary `json:"stages"`
	Skipped     int                   `json:"skipped"`
	Isochrones  int                   `json:"isochrones"`
	Regions     pipeline.RegionStats  `json:"regions"`
}

func handleSummary(status RunStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		res := status.LastResult()
		if res == nil {
			writeNoRun(w)
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, summaryResponse{
			RunID:       res.RunID,
			GeneratedAt: res.GeneratedAt,
			Settings:    res.Settings,
			Stages:      res.Stages,
			Skipped:     len(res.Skips),
			Isochrones:  len(res.Isochrones),
			Regions:     res.RegionStats(),
		})
	}
}

type regionResponse struct {
	Name string `json:"name"`
	domain.RegionCoverage
}

// handleRegions lists region rollups. ?underserved=true keeps only regions
// flagged by the strict or threshold rule.
func handleRegions(status RunStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := status.LastResult()
		if res == nil {
			writeNoRun(w)
			return
		}
		onlyUnderserved := r.URL.Query().Get("underserved") == "true"

		out := make([]regionResponse, 0, len(res.Regions))
		for _, rc := range res.Regions {
			if onlyUnderserved && !rc.IsUnderserved && !rc.IsUnderservedThreshold {
				continue
			}
			out = append(out, regionResponse{Name: rc.Region.Name, RegionCoverage: rc})
		}
		sharedobs.WriteJSON(w, http.StatusOK, out)
	}
}

func writeNoRun(w http.ResponseWriter) {
	sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status": "not ready",
		"error":  "no run has completed",
	})
}
