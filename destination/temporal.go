package destination

import (
	"math"
	"sort"
	"time"
)

// temporalHalfLife is the age at which a result's recency factor halves.
const temporalHalfLife = 30 * 24 * time.Hour

// ApplyTemporalBoost blends retrieval scores with an exponential recency
// decay over the result's modified_at payload field and re-sorts. weight is
// the caller's scalar in [0,1]: 0 leaves the order untouched, 1 ranks purely
// by recency. Results without a timestamp decay as if infinitely old.
func ApplyTemporalBoost(results []SearchResult, weight float64, now time.Time) []SearchResult {
	if weight <= 0 || len(results) == 0 {
		return results
	}
	if weight > 1 {
		weight = 1
	}

	boosted := make([]SearchResult, len(results))
	copy(boosted, results)
	for i := range boosted {
		recency := 0.0
		if raw, ok := boosted[i].Payload["modified_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				age := now.Sub(ts)
				if age < 0 {
					age = 0
				}
				recency = halfLifeDecay(age)
			}
		}
		boosted[i].Score = (1-weight)*boosted[i].Score + weight*recency
	}

	sort.SliceStable(boosted, func(i, j int) bool { return boosted[i].Score > boosted[j].Score })
	return boosted
}

func halfLifeDecay(age time.Duration) float64 {
	halves := float64(age) / float64(temporalHalfLife)
	return math.Exp2(-halves)
}
