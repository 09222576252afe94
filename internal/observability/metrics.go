package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "park_access"

// Metrics holds the Prometheus collectors for an accessibility run.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	StageDuration   *prometheus.HistogramVec // labels: stage
	ItemsProcessed  *prometheus.CounterVec   // labels: stage
	ItemsSkipped    *prometheus.CounterVec   // labels: stage, reason
	ReachableNodes  prometheus.Histogram
	ReachCache      *prometheus.CounterVec // labels: result={hit,miss}

	// UnderservedRegions is set after classification. labels: flag={strict,threshold}
	UnderservedRegions *prometheus.GaugeVec
	ResultsPublished   prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"stage"}),
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Items a stage completed successfully.",
		}, []string{"stage"}),
		ItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Items a stage skipped, by reason.",
		}, []string{"stage", "reason"}),
		ReachableNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reachable_nodes",
			Help:      "Street nodes reachable from one park within the budget.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		}),
		ReachCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reach_cache_total",
			Help:      "Single-source reachability cache lookups by result.",
		}, []string{"result"}),
		UnderservedRegions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "underserved_regions",
			Help:      "Regions flagged underserved in the last run, by rule.",
		}, []string{"flag"}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      "Area unit and region records published to Kafka.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.StageDuration,
		m.ItemsProcessed,
		m.ItemsSkipped,
		m.ReachableNodes,
		m.ReachCache,
		m.UnderservedRegions,
		m.ResultsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
