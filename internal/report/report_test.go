package report

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/pipeline"
)

func init() {
	color.NoColor = true
}

func TestPrint(t *testing.T) {
	res := &pipeline.Result{
		RunID:    "run-1",
		Settings: pipeline.DefaultSettings(),
		AreaUnits: []domain.AreaCoverage{
			{Unit: domain.AreaUnit{ID: "a", Population: 100}, CoverageResult: domain.CoverageResult{PopulationReachable: 25, IsUnderserved: true, IsUnderservedThreshold: true}},
			{Unit: domain.AreaUnit{ID: "b", Population: 100}, CoverageResult: domain.CoverageResult{PopulationReachable: 100}},
		},
		Regions: []domain.RegionCoverage{
			{Label: "Wood Streets", IsUnderserved: true, IsUnderservedThreshold: true, PctWithout: 75},
			{Label: "Eastside"},
			{Label: "Lake Evans", NoData: true},
		},
		Stages: []domain.StageSummary{
			{Stage: pipeline.StageIsochrones, Succeeded: 2, Skipped: 1},
			{Stage: pipeline.StageCoverage, Succeeded: 2},
		},
		Skips: []domain.Skip{
			{Stage: pipeline.StageIsochrones, ItemID: "2", Reason: domain.ReasonNoSourceNode},
			{Stage: pipeline.StageRollup, ItemID: "Lake Evans", Reason: domain.ReasonNoMembers},
			{Stage: pipeline.StageIsochrones, ItemID: "3", Reason: domain.ReasonNoSourceNode},
		},
	}

	var buf bytes.Buffer
	Print(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Run:     run-1")
	assert.Contains(t, out, "15 min walking at 5 km/h (tight polygons)")
	assert.Contains(t, out, "isochrones")
	assert.Contains(t, out, "Population with access: 125 of 200 (62.5%)")
	assert.Contains(t, out, "Area units underserved: 1 of 2")
	assert.Contains(t, out, "Regions: 3 (1 without data)")
	assert.Contains(t, out, "Underserved: 1 strict (33.3%), 1 by threshold")
	assert.Contains(t, out, "Wood Streets")
	assert.Contains(t, out, "75.0% without access")
	assert.NotContains(t, out, "Eastside")
	assert.Contains(t, out, "isochrones/no_source_node: 2")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("isochrones/no_source_node: 2")),
		bytes.Index(buf.Bytes(), []byte("rollup/no_members: 1")))
}

func TestPrint_NoRegions(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, &pipeline.Result{RunID: "run-2", Settings: pipeline.DefaultSettings()})

	assert.Contains(t, buf.String(), "No regions given.")
	assert.NotContains(t, buf.String(), "Skipped items")
}

func TestSkipCounts(t *testing.T) {
	got := skipCounts([]domain.Skip{
		{Stage: "coverage", Reason: domain.ReasonZeroPopulation},
		{Stage: "coverage", Reason: domain.ReasonEmptyGeometry},
		{Stage: "coverage", Reason: domain.ReasonZeroPopulation},
	})
	assert.Equal(t, []string{
		"coverage/zero_population: 2",
		"coverage/empty_geometry: 1",
	}, got)
}
