// Command validate checks the integrity of a parkaccess output directory:
// coverage bounds and score consistency per area unit, region totals against
// their members, underserved flags against the classification rules, and the
// run summary against the region file.
//
// Usage:
//
//	go run ./cmd/validate -dir output -minutes 15
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/paulmach/orb/geojson"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	geojsonadapter "github.com/couchcryptid/park-access/internal/adapter/geojson"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	dir       string
	minutes   int
	idField   string
	tolerance float64
}

func main() {
	var opts options
	flag.StringVar(&opts.dir, "dir", "output", "parkaccess output directory")
	flag.IntVar(&opts.minutes, "minutes", 15, "walking budget the outputs were produced with")
	flag.StringVar(&opts.idField, "id-field", "GEOID", "area unit identifier attribute")
	flag.Float64Var(&opts.tolerance, "tolerance", 1e-6, "absolute and relative tolerance for sums")
	flag.Parse()

	os.Exit(run(opts))
}

func run(opts options) int {
	fmt.Println("=== Park Access Output Validation ===")
	fmt.Println()

	units, err := loadFeatures(filepath.Join(opts.dir, fmt.Sprintf(geojsonadapter.AreaUnitsFile, opts.minutes)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load area units: %v\n", err)
		return 1
	}
	var summary geojsonadapter.Summary
	if err := loadJSON(filepath.Join(opts.dir, geojsonadapter.SummaryFile), &summary); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load run summary: %v\n", err)
		return 1
	}
	// The region file is absent when the run had no regions.
	regions := geojson.NewFeatureCollection()
	regionPath := filepath.Join(opts.dir, fmt.Sprintf(geojsonadapter.RegionsFile, opts.minutes))
	if _, err := os.Stat(regionPath); err == nil {
		if regions, err = loadFeatures(regionPath); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load regions: %v\n", err)
			return 1
		}
	}

	phases := []*phase{
		validateAreaUnits(units),
		validateRegionSums(regions, units, opts),
		validateFlags(regions),
		validateSummary(summary, regions),
	}

	green, red := color.New(color.FgGreen), color.New(color.FgRed)
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		fmt.Printf("  %-28s ", p.name)
		if p.passed() {
			green.Println("PASS")
			continue
		}
		red.Printf("FAIL (%d errors)\n", len(p.errors))
		allPassed = false
	}

	fmt.Println()
	fmt.Printf("Records: %d area units, %d regions, run %s\n", len(units.Features), len(regions.Features), summary.RunID)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateAreaUnits(units *geojson.FeatureCollection) *phase {
	p := &phase{name: "Area unit bounds"}
	for i, f := range units.Features {
		pop := f.Properties.MustFloat64("population", math.NaN())
		frac := f.Properties.MustFloat64("coverage_fraction", math.NaN())
		reach := f.Properties.MustFloat64("population_reachable", math.NaN())
		score := f.Properties.MustFloat64("accessibility_score", math.NaN())

		switch {
		case math.IsNaN(pop) || math.IsNaN(frac) || math.IsNaN(reach) || math.IsNaN(score):
			p.errorf("unit %d: missing numeric attribute", i)
			continue
		case frac < 0 || frac > 1:
			p.errorf("unit %d: coverage_fraction %g outside [0, 1]", i, frac)
		case reach > pop:
			p.errorf("unit %d: population_reachable %g exceeds population %g", i, reach, pop)
		case pop == 0 && frac != 0:
			p.errorf("unit %d: zero population with coverage %g", i, frac)
		}
		if math.Abs(score-100*frac) > 1e-9 {
			p.errorf("unit %d: accessibility_score %g != 100 x %g", i, score, frac)
		}
	}
	return p
}

func validateRegionSums(regions, units *geojson.FeatureCollection, opts options) *phase {
	p := &phase{name: "Region totals"}

	pops := map[string]float64{}
	reach := map[string]float64{}
	for _, f := range units.Features {
		id := fmt.Sprint(f.Properties[opts.idField])
		pops[id] = f.Properties.MustFloat64("population", 0)
		reach[id] = f.Properties.MustFloat64("population_reachable", 0)
	}

	for _, f := range regions.Features {
		name := f.Properties.MustString("name", "?")
		members, _ := f.Properties["members"].([]any)

		var memberPop, memberReach []float64
		for _, m := range members {
			id := fmt.Sprint(m)
			if _, ok := pops[id]; !ok {
				p.errorf("region %s: member %s not in area unit file", name, id)
				continue
			}
			memberPop = append(memberPop, pops[id])
			memberReach = append(memberReach, reach[id])
		}

		total := f.Properties.MustFloat64("total_population", math.NaN())
		totalReach := f.Properties.MustFloat64("total_population_reachable", math.NaN())
		if !scalar.EqualWithinAbsOrRel(floats.Sum(memberPop), total, opts.tolerance, opts.tolerance) {
			p.errorf("region %s: total_population %g != member sum %g", name, total, floats.Sum(memberPop))
		}
		if !scalar.EqualWithinAbsOrRel(floats.Sum(memberReach), totalReach, opts.tolerance, opts.tolerance) {
			p.errorf("region %s: total_population_reachable %g != member sum %g", name, totalReach, floats.Sum(memberReach))
		}

		noData := f.Properties.MustBool("no_data", false)
		if noData != (total == 0) {
			p.errorf("region %s: no_data=%t with total_population %g", name, noData, total)
		}
		if noData && f.Properties["accessibility_score"] != nil {
			p.errorf("region %s: no_data region has a score", name)
		}
		if total > 0 {
			frac := f.Properties.MustFloat64("coverage_fraction", math.NaN())
			if !scalar.EqualWithinAbsOrRel(frac, totalReach/total, opts.tolerance, opts.tolerance) {
				p.errorf("region %s: coverage_fraction %g != %g / %g", name, frac, totalReach, total)
			}
		}
	}
	return p
}

func validateFlags(regions *geojson.FeatureCollection) *phase {
	p := &phase{name: "Underserved flags"}
	for _, f := range regions.Features {
		name := f.Properties.MustString("name", "?")
		total := f.Properties.MustFloat64("total_population", 0)
		reach := f.Properties.MustFloat64("total_population_reachable", 0)
		pct := f.Properties.MustFloat64("pct_without", 0)

		strict := f.Properties.MustBool("is_underserved", false)
		if want := total > 0 && reach == 0; strict != want {
			p.errorf("region %s: is_underserved=%t, want %t", name, strict, want)
		}

		flagged := f.Properties.MustBool("is_underserved_threshold", false)
		threshold, ok := f.Properties["underserved_threshold_pct"].(float64)
		switch {
		case !ok && flagged:
			p.errorf("region %s: threshold flag set with the rule disabled", name)
		case ok && total > 0 && math.Abs(pct-threshold) > 0.01:
			// pct_without is rounded, so values at the threshold are not checked.
			if want := pct >= threshold; flagged != want {
				p.errorf("region %s: is_underserved_threshold=%t with %g%% without access", name, flagged, pct)
			}
		}
	}
	return p
}

func validateSummary(s geojsonadapter.Summary, regions *geojson.FeatureCollection) *phase {
	p := &phase{name: "Run summary"}
	if s.RunID == "" {
		p.errorf("run_id is empty")
	}

	var strict, threshold, noData int
	for _, f := range regions.Features {
		if f.Properties.MustBool("is_underserved", false) {
			strict++
		}
		if f.Properties.MustBool("is_underserved_threshold", false) {
			threshold++
		}
		if f.Properties.MustBool("no_data", false) {
			noData++
		}
	}
	if s.Regions.Total != len(regions.Features) {
		p.errorf("total_regions %d, region file has %d", s.Regions.Total, len(regions.Features))
	}
	if s.Regions.Underserved != strict {
		p.errorf("underserved_count %d, region file has %d", s.Regions.Underserved, strict)
	}
	if s.Regions.UnderservedThreshold != threshold {
		p.errorf("underserved_threshold_count %d, region file has %d", s.Regions.UnderservedThreshold, threshold)
	}
	if s.Regions.NoData != noData {
		p.errorf("no_data_count %d, region file has %d", s.Regions.NoData, noData)
	}
	return p
}

func loadFeatures(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
