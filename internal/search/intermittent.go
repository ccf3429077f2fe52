package search

import (
	"fmt"
	"sort"
	"time"

	"spotprice/internal/model"
)

// FindExtremeIntermittent selects the best-priced slices of w whose durations
// add up to exactly d. Slices are returned in selection order; Rank 0 is the
// best price. The last slice may be cut short to hit d exactly.
func FindExtremeIntermittent(c model.Curve, w model.Window, d time.Duration, preferHigh bool) ([]model.Interval, error) {
	if err := checkInputs(c, w, d); err != nil {
		return nil, err
	}

	candidates := make(model.Curve, 0, len(c))
	for _, seg := range c {
		if seg.Overlaps(w.EarliestStart, w.LatestEnd) {
			candidates = append(candidates, seg)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no prices overlap the window", ErrInsufficientDuration)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if preferHigh {
			return candidates[i].Price > candidates[j].Price
		}
		return candidates[i].Price < candidates[j].Price
	})

	remaining := d
	out := make([]model.Interval, 0, len(candidates))
	for _, seg := range candidates {
		start, end := seg.Start, seg.End
		if start.Before(w.EarliestStart) {
			start = w.EarliestStart
		}
		if end.After(w.LatestEnd) {
			end = w.LatestEnd
		}
		if end.Sub(start) > remaining {
			end = start.Add(remaining)
		}

		span := end.Sub(start)
		out = append(out, model.Interval{
			Start: start,
			End:   end,
			Price: seg.Price,
			Cost:  seg.Price * span.Hours(),
			Rank:  len(out),
		})
		remaining -= span
		if remaining == 0 {
			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: need %s, window holds %s", ErrInsufficientDuration, d, d-remaining)
}

// InIntervals reports whether now falls inside any of intervals.
func InIntervals(now time.Time, intervals []model.Interval) bool {
	for _, iv := range intervals {
		if iv.Contains(now) {
			return true
		}
	}
	return false
}

// TotalCost sums Cost across intervals.
func TotalCost(intervals []model.Interval) float64 {
	total := 0.0
	for _, iv := range intervals {
		total += iv.Cost
	}
	return total
}
