package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/park-access/internal/adapter/http"
	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/observability"
	"github.com/couchcryptid/park-access/internal/pipeline"
)

type mockStatus struct {
	err error
	res *pipeline.Result
}

func (m *mockStatus) CheckReadiness(_ context.Context) error { return m.err }
func (m *mockStatus) LastResult() *pipeline.Result { return m.res }

func newTestServer(status *mockStatus) *httpadapter.Server {
	return httpadapter.NewServer(":0", status, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func completedRun() *pipeline.Result {
	score := 20.0
	return &pipeline.Result{
		RunID:    "run-1",
		Settings: pipeline.DefaultSettings(),
		Regions: []domain.RegionCoverage{
			{Region: domain.Region{Name: "Eastside"}, CoverageFraction: 0.9, Label: "Eastside"},
			{Region: domain.Region{Name: "Wood Streets"}, CoverageFraction: 0.2, AccessibilityScore: &score, IsUnderservedThreshold: true, Label: "Wood Streets"},
			{Region: domain.Region{Name: "Lake Evans"}, NoData: true, Label: "Lake Evans"},
		},
		Stages: []domain.StageSummary{{Stage: pipeline.StageRollup, Succeeded: 2, Skipped: 1}},
		Skips:  []domain.Skip{{Stage: pipeline.StageRollup, ItemID: "Lake Evans", Reason: domain.ReasonNoMembers}},
	}
}

func get(srv http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(&mockStatus{res: completedRun()}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(&mockStatus{err: fmt.Errorf("not ready yet")}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestReadyz_PipelineBeforeFirstRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(pipeline.DefaultSettings(), logger, observability.NewMetricsForTesting())
	srv := httpadapter.NewServer(":0", p, nil, logger)

	rec := get(srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no accessibility run has completed yet", body["error"])

	assert.Equal(t, http.StatusServiceUnavailable, get(srv, "/summary").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(&mockStatus{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsEndpoint_CustomGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "park_access_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	srv := httpadapter.NewServer(":0", &mockStatus{}, reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := get(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "park_access_test_total 1")
	assert.NotContains(t, rec.Body.String(), "go_goroutines")
}

func TestSummary(t *testing.T) {
	t.Run("before first run", func(t *testing.T) {
		rec := get(newTestServer(&mockStatus{}), "/summary")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("after run", func(t *testing.T) {
		rec := get(newTestServer(&mockStatus{res: completedRun()}), "/summary")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			RunID   string               `json:"run_id"`
			Skipped int                  `json:"skipped"`
			Regions pipeline.RegionStats `json:"regions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "run-1", body.RunID)
		assert.Equal(t, 1, body.Skipped)
		assert.Equal(t, 3, body.Regions.Total)
		assert.Equal(t, 1, body.Regions.UnderservedThreshold)
		assert.Equal(t, 1, body.Regions.NoData)
	})
}

func TestRegions(t *testing.T) {
	srv := newTestServer(&mockStatus{res: completedRun()})

	tests := []struct {
		path string
		want []string
	}{
		{path: "/regions", want: []string{"Eastside", "Wood Streets", "Lake Evans"}},
		{path: "/regions?underserved=true", want: []string{"Wood Streets"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(srv, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)

			var body []map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			var names []string
			for _, r := range body {
				names = append(names, r["name"].(string))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
