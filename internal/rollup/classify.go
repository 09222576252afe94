// Package rollup aggregates area-unit coverage to regions and flags
// underserved places.
package rollup

import "math"

// DefaultThresholdPct is the share of residents without access at or above
// which a place is flagged by the threshold rule.
const DefaultThresholdPct = 50.0

// Classification is the underserved verdict for one population.
type Classification struct {
	PopulationWithout float64
	PctWithout        float64 // rounded to two decimals
	Strict            bool    // people live here and none of them have access
	Threshold         bool    // at least thresholdPct percent lack access
}

// Classify flags a population of total residents of which reachable have
// access. A nil thresholdPct disables the threshold rule. Places without
// residents are never flagged. Negative inputs count as zero and reachable
// is capped at total.
func Classify(total, reachable float64, thresholdPct *float64) Classification {
	total = math.Max(total, 0)
	reachable = math.Min(math.Max(reachable, 0), total)

	without := total - reachable
	pct := 0.0
	if total > 0 {
		pct = 100 * without / total
	}

	return Classification{
		PopulationWithout: without,
		PctWithout:        math.Round(pct*100) / 100,
		Strict:            total > 0 && reachable == 0,
		Threshold:         thresholdPct != nil && total > 0 && pct >= *thresholdPct,
	}
}
