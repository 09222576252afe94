// Package report prints a coloured console summary of a run.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/couchcryptid/park-access/internal/domain"
	"github.com/couchcryptid/park-access/internal/pipeline"
)

// Print writes the per-stage counts, the skip reasons and the region
// classification of res to w.
func Print(w io.Writer, res *pipeline.Result) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Fprintln(w, "Park Accessibility Report")
	bold.Fprintln(w, "=========================")
	fmt.Fprintf(w, "Run:     %s\n", res.RunID)
	fmt.Fprintf(w, "Budget:  %d min walking at %g km/h (%s polygons)\n",
		res.Settings.BudgetMinutes, res.Settings.WalkSpeedKmh, res.Settings.Isochrone.Mode)
	fmt.Fprintln(w)

	bold.Fprintln(w, "Stages")
	for _, s := range res.Stages {
		c := green
		if s.Skipped > 0 {
			c = yellow
		}
		c.Fprintf(w, "  %-13s %5d ok  %4d skipped  %s\n", s.Stage, s.Succeeded, s.Skipped, s.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	if len(res.Skips) > 0 {
		yellow.Fprintln(w, "Skipped items")
		for _, line := range skipCounts(res.Skips) {
			cyan.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}

	stats := res.RegionStats()
	bold.Fprintln(w, "Coverage")
	fmt.Fprintf(w, "  Population with access: %.0f of %.0f (%.1f%%)\n",
		stats.PopulationReachable, stats.TotalPopulation, 100*stats.CityCoverageFraction)
	fmt.Fprintf(w, "  Area units underserved: %d of %d\n", stats.AreaUnitsUnderserved, len(res.AreaUnits))

	if stats.Total == 0 {
		fmt.Fprintln(w, "  No regions given.")
		return
	}
	fmt.Fprintf(w, "  Regions: %d (%d without data)\n", stats.Total, stats.NoData)

	summary := green
	if stats.Underserved > 0 || stats.UnderservedThreshold > 0 {
		summary = red
	}
	summary.Fprintf(w, "  Underserved: %d strict (%.1f%%), %d by threshold\n",
		stats.Underserved, stats.UnderservedPercentage, stats.UnderservedThreshold)

	for _, rc := range res.Regions {
		switch {
		case rc.NoData:
			cyan.Fprintf(w, "    %-24s no data\n", rc.Label)
		case rc.IsUnderserved || rc.IsUnderservedThreshold:
			red.Fprintf(w, "    %-24s %5.1f%% without access\n", rc.Label, rc.PctWithout)
		}
	}
}

// skipCounts groups skips by stage and reason, most frequent first.
func skipCounts(skips []domain.Skip) []string {
	type key struct {
		stage  string
		reason domain.SkipReason
	}
	counts := map[key]int{}
	for _, s := range skips {
		counts[key{s.Stage, s.Reason}]++
	}
	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		if keys[i].stage != keys[j].stage {
			return keys[i].stage < keys[j].stage
		}
		return keys[i].reason < keys[j].reason
	})

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s/%s: %d", k.stage, k.reason, counts[k])
	}
	return lines
}
