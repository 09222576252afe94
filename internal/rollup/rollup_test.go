package rollup

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/geo"
)

func box(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

func ptr(f float64) *float64 { return &f }

func unit(id string, pop, fraction float64, g orb.Geometry) domain.AreaCoverage {
	return domain.AreaCoverage{
		Unit: domain.AreaUnit{ID: id, Population: pop, Geometry: g},
		CoverageResult: domain.CoverageResult{
			CoverageFraction:    fraction,
			PopulationReachable: pop * fraction,
			AccessibilityScore:  100 * fraction,
		},
	}
}

func newAggregator(opts Options) *Aggregator {
	return New(opts, geo.NewProjection(orb.Point{-117.39, 33.95}), geo.NewEngine())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		total     float64
		reachable float64
		threshold *float64
		want      Classification
	}{
		{
			name: "populated and unserved", total: 500, reachable: 0, threshold: ptr(50),
			want: Classification{PopulationWithout: 500, PctWithout: 100, Strict: true, Threshold: true},
		},
		{
			name: "exactly at threshold", total: 200, reachable: 100, threshold: ptr(50),
			want: Classification{PopulationWithout: 100, PctWithout: 50, Threshold: true},
		},
		{
			name: "threshold disabled", total: 200, reachable: 10,
			want: Classification{PopulationWithout: 190, PctWithout: 95},
		},
		{
			name: "no residents", total: 0, reachable: 0, threshold: ptr(50),
			want: Classification{},
		},
		{
			name: "reachable capped at total", total: 100, reachable: 150, threshold: ptr(50),
			want: Classification{},
		},
		{
			name: "negative inputs clamp", total: -10, reachable: -3, threshold: ptr(1),
			want: Classification{},
		},
		{
			name: "pct rounded", total: 3, reachable: 1, threshold: ptr(70),
			want: Classification{PopulationWithout: 2, PctWithout: 66.67},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.total, tt.reachable, tt.threshold)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAggregate_SumsAndWeightedScore(t *testing.T) {
	region := domain.Region{Name: "Downtown", Geometry: box(-117.40, 33.94, -117.38, 33.96)}
	units := []domain.AreaCoverage{
		unit("a", 1000, 0.25, box(-117.399, 33.941, -117.395, 33.945)),
		unit("b", 3000, 0.75, box(-117.394, 33.941, -117.390, 33.945)),
		unit("outside", 9999, 1, box(-117.30, 33.80, -117.29, 33.81)),
	}

	got, skips, err := newAggregator(Options{ThresholdPct: ptr(50)}).Aggregate(units, []domain.Region{region})
	require.NoError(t, err)
	assert.Empty(t, skips)
	require.Len(t, got, 1)

	rc := got[0]
	assert.Equal(t, []string{"a", "b"}, rc.Members)
	assert.Equal(t, 4000.0, rc.TotalPopulation)
	assert.Equal(t, units[0].PopulationReachable+units[1].PopulationReachable, rc.TotalPopulationReachable)
	assert.InDelta(t, 0.625, rc.CoverageFraction, 1e-12)
	require.NotNil(t, rc.AccessibilityScore)
	assert.InDelta(t, 62.5, *rc.AccessibilityScore, 1e-9)
	assert.False(t, rc.NoData)
	assert.False(t, rc.IsUnderserved)
	assert.InDelta(t, 37.5, rc.PctWithout, 1e-9)
	assert.Equal(t, "Downtown", rc.Label)
	assert.Equal(t, 50.0, *rc.ThresholdPct)
}

func TestAggregate_OnlyUnservedMemberIsStrict(t *testing.T) {
	region := domain.Region{Name: "Eastside", Geometry: box(-117.40, 33.94, -117.38, 33.96)}
	units := []domain.AreaCoverage{unit("t1", 800, 0, box(-117.399, 33.941, -117.395, 33.945))}

	got, _, err := newAggregator(Options{}).Aggregate(units, []domain.Region{region})
	require.NoError(t, err)

	assert.True(t, got[0].IsUnderserved)
	assert.False(t, got[0].IsUnderservedThreshold, "threshold rule is disabled")
	assert.Nil(t, got[0].ThresholdPct)
}

func TestAggregate_ZeroPopulationIsNoData(t *testing.T) {
	region := domain.Region{Name: "Industrial", Geometry: box(-117.40, 33.94, -117.38, 33.96)}
	units := []domain.AreaCoverage{unit("t1", 0, 0, box(-117.399, 33.941, -117.395, 33.945))}

	got, _, err := newAggregator(Options{ThresholdPct: ptr(50)}).Aggregate(units, []domain.Region{region})
	require.NoError(t, err)

	rc := got[0]
	assert.True(t, rc.NoData)
	assert.Nil(t, rc.AccessibilityScore)
	assert.Equal(t, 0.0, rc.CoverageFraction)
	assert.False(t, rc.IsUnderserved)
	assert.False(t, rc.IsUnderservedThreshold)
}

func TestAggregate_BorderUnitCountsInBothRegions(t *testing.T) {
	west := domain.Region{Name: "West", Geometry: box(-117.40, 33.94, -117.39, 33.96)}
	east := domain.Region{Name: "East", Geometry: box(-117.39, 33.94, -117.38, 33.96)}
	straddling := unit("t1", 100, 0.5, box(-117.392, 33.945, -117.388, 33.947))

	got, _, err := newAggregator(Options{}).Aggregate([]domain.AreaCoverage{straddling}, []domain.Region{west, east})
	require.NoError(t, err)

	assert.Equal(t, 100.0, got[0].TotalPopulation)
	assert.Equal(t, 100.0, got[1].TotalPopulation)
}

func TestAggregate_ExcludeTouching(t *testing.T) {
	region := domain.Region{Name: "West", Geometry: box(-117.40, 33.94, -117.39, 33.96)}
	neighbour := unit("next-door", 100, 1, box(-117.39, 33.94, -117.38, 33.96))

	got, _, err := newAggregator(Options{}).Aggregate([]domain.AreaCoverage{neighbour}, []domain.Region{region})
	require.NoError(t, err)
	assert.Equal(t, []string{"next-door"}, got[0].Members)

	got, skips, err := newAggregator(Options{ExcludeTouching: true}).Aggregate([]domain.AreaCoverage{neighbour}, []domain.Region{region})
	require.NoError(t, err)
	assert.Empty(t, got[0].Members)
	require.Len(t, skips, 1)
	assert.Equal(t, domain.ReasonNoMembers, skips[0].Reason)
}

func TestAggregate_RegionWithoutMembersIsKept(t *testing.T) {
	region := domain.Region{Name: "Lake", Geometry: box(-117.30, 33.80, -117.29, 33.81)}
	units := []domain.AreaCoverage{unit("t1", 100, 1, box(-117.399, 33.941, -117.395, 33.945))}

	got, skips, err := newAggregator(Options{}).Aggregate(units, []domain.Region{region})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.True(t, got[0].NoData)
	assert.NotNil(t, got[0].Members)
	require.Len(t, skips, 1)
	assert.Equal(t, domain.Skip{
		Stage: "rollup", ItemID: "Lake", Reason: domain.ReasonNoMembers, Detail: "region intersects no area units",
	}, skips[0])
}
