package search

import (
	"fmt"
	"sort"
	"time"

	"spotprice/internal/model"
)

// FindExtremeContiguous returns the single unbroken interval of length d inside
// w with the lowest (or, with preferHigh, the highest) cost.
//
// Cost is linear in the start time between segment boundaries, so only
// boundary-aligned starts are evaluated. Equal costs keep the earliest start.
func FindExtremeContiguous(c model.Curve, w model.Window, d time.Duration, preferHigh bool) (model.Interval, error) {
	if err := checkInputs(c, w, d); err != nil {
		return model.Interval{}, err
	}

	starts := candidateStarts(c, w, d)
	if len(starts) == 0 {
		return model.Interval{}, fmt.Errorf("%w: %s in [%s, %s)", ErrNoCandidates, d,
			w.EarliestStart.Format(time.RFC3339), w.LatestEnd.Format(time.RFC3339))
	}

	var (
		bestStart time.Time
		bestCost  float64
		found     bool
	)
	for _, s := range starts {
		cost, err := intervalCost(c, s, s.Add(d))
		if err != nil {
			return model.Interval{}, err
		}
		if !found || better(cost, bestCost, preferHigh) {
			bestStart, bestCost, found = s, cost, true
		}
	}

	return model.Interval{
		Start: bestStart,
		End:   bestStart.Add(d),
		Price: bestCost / d.Hours(),
		Cost:  bestCost,
	}, nil
}

func better(cost, best float64, preferHigh bool) bool {
	if preferHigh {
		return cost > best
	}
	return cost < best
}

func checkInputs(c model.Curve, w model.Window, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDuration, d)
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if len(c) == 0 || c.End().Before(w.LatestEnd) {
		return fmt.Errorf("%w: data ends %s, window ends %s", ErrInsufficientCoverage,
			c.End().Format(time.RFC3339), w.LatestEnd.Format(time.RFC3339))
	}
	return nil
}

// candidateStarts lists, in ascending order without duplicates, every start s
// with [s, s+d) inside w that is either a window edge or puts s or s+d on a
// segment boundary.
func candidateStarts(c model.Curve, w model.Window, d time.Duration) []time.Time {
	lastStart := w.LatestEnd.Add(-d)
	if lastStart.Before(w.EarliestStart) {
		return nil
	}

	seen := make(map[int64]struct{}, 4*len(c)+2)
	out := make([]time.Time, 0, 4*len(c)+2)
	add := func(s time.Time) {
		if s.Before(w.EarliestStart) || s.After(lastStart) {
			return
		}
		key := s.UnixNano()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s.UTC())
	}

	add(w.EarliestStart)
	for _, seg := range c {
		add(seg.Start)
		add(seg.End)
		add(seg.Start.Add(-d))
		add(seg.End.Add(-d))
	}
	add(lastStart)

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// intervalCost sums price * hours over [start, end). Any uncovered instant
// fails with ErrCoverageGap.
func intervalCost(c model.Curve, start, end time.Time) (float64, error) {
	i := sort.Search(len(c), func(i int) bool { return c[i].End.After(start) })

	cursor := start
	cost := 0.0
	for ; i < len(c) && cursor.Before(end); i++ {
		seg := c[i]
		if seg.Start.After(cursor) {
			return 0, gapError(cursor, seg.Start)
		}
		until := seg.End
		if until.After(end) {
			until = end
		}
		cost += seg.Price * until.Sub(cursor).Hours()
		cursor = until
	}
	if cursor.Before(end) {
		return 0, gapError(cursor, end)
	}
	return cost, nil
}

func gapError(from, to time.Time) error {
	return fmt.Errorf("%w: no price between %s and %s", ErrCoverageGap,
		from.Format(time.RFC3339), to.Format(time.RFC3339))
}
