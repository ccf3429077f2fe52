package analysis

import (
	"math"

	"spotprice/internal/model"
)

// storageValue runs a small DP over a chronological curve for a canonical
// store: 1 kW power, 1 kWh capacity, lossless, starting half full, choosing
// charge/idle/discharge each segment. The result is the best achievable
// value in currency units and bounds what load shifting can earn that day.
//
// Segments must share one resolution; otherwise 0 is returned.
func storageValue(segs model.Curve) float64 {
	if len(segs) == 0 {
		return 0
	}
	dt := segs[0].Hours()
	if dt <= 0 || dt > 1 {
		return 0
	}
	for _, s := range segs {
		if s.Hours() != dt {
			return 0
		}
	}

	steps := int(math.Round(1.0 / dt))
	if steps < 1 {
		steps = 1
	}
	negInf := -1e100
	dp := make([]float64, steps+1)
	next := make([]float64, steps+1)
	for i := range dp {
		dp[i] = negInf
	}
	dp[steps/2] = 0

	for _, s := range segs {
		for i := range next {
			next[i] = negInf
		}
		for soc := 0; soc <= steps; soc++ {
			if dp[soc] <= negInf/2 {
				continue
			}
			if dp[soc] > next[soc] {
				next[soc] = dp[soc]
			}
			if soc < steps {
				if v := dp[soc] - s.Price*dt; v > next[soc+1] {
					next[soc+1] = v
				}
			}
			if soc > 0 {
				if v := dp[soc] + s.Price*dt; v > next[soc-1] {
					next[soc-1] = v
				}
			}
		}
		dp, next = next, dp
	}

	best := negInf
	for _, v := range dp {
		if v > best {
			best = v
		}
	}
	if best <= negInf/2 {
		return 0
	}
	return best
}
