// Package schedule evaluates daily rules against a price curve: which slice
// of today's window is the best time to run, and is that now.
package schedule

import (
	"errors"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/search"
)

// Selection is the result of one rule window.
type Selection struct {
	Window    model.Window     `json:"window"`
	Intervals []model.Interval `json:"intervals"`
	Price     float64          `json:"price_per_kwh"`
	Cost      float64          `json:"interval_price"`
}

func (s *Selection) Start() time.Time {
	start := s.Intervals[0].Start
	for _, iv := range s.Intervals[1:] {
		if iv.Start.Before(start) {
			start = iv.Start
		}
	}
	return start
}

// Plan is what a rule says at one instant.
type Plan struct {
	Rule     string     `json:"rule"`
	At       time.Time  `json:"at"`
	InWindow bool       `json:"in_window"`
	Enabled  bool       `json:"enabled"`
	Current  *Selection `json:"current,omitempty"`
	Next     *Selection `json:"next,omitempty"`
}

// Evaluate applies r at now. Current covers the window running now (or the
// one that ended earlier today); Next is the following day's window, set only
// once the curve covers all of it. A window without a result is left nil.
func Evaluate(r Rule, c model.Curve, now time.Time, loc *time.Location) (Plan, error) {
	if err := r.Validate(); err != nil {
		return Plan{}, err
	}
	if len(c) == 0 {
		return Plan{}, search.ErrNoData
	}
	if loc == nil {
		loc = time.UTC
	}

	offset := 0
	if r.wraps() && minutesOf(now, loc) < r.LatestEnd.Minutes() {
		// Past midnight inside an overnight window: it opened yesterday.
		offset = -1
	}

	p := Plan{Rule: r.ID, At: now, InWindow: r.Active(now, loc)}

	cur, err := r.selectWindow(c, now, loc, offset, false)
	if err != nil {
		return Plan{}, err
	}
	p.Current = cur
	if cur != nil {
		p.Enabled = search.InIntervals(now, cur.Intervals)
	}

	next, err := r.selectWindow(c, now, loc, offset+1, true)
	if err != nil {
		return Plan{}, err
	}
	p.Next = next
	return p, nil
}

// selectWindow runs the search for the window opening dayOffset days from
// now's local date. With full set, a window the curve only partly covers
// yields nil instead of a clamped search.
func (r Rule) selectWindow(c model.Curve, now time.Time, loc *time.Location, dayOffset int, full bool) (*Selection, error) {
	es, le := r.EarliestStart, r.LatestEnd
	q := search.WindowQuery{EarliestStart: &es, EarliestStartDayOffset: dayOffset, LatestEnd: &le}

	if full {
		unclamped, err := search.BuildSearchWindow(now, loc, q, farFuture)
		if err != nil {
			return nil, err
		}
		if c.End().Before(unclamped.LatestEnd) {
			return nil, nil
		}
	}

	w, err := search.BuildSearchWindow(now, loc, q, c.End())
	if err != nil {
		if errors.Is(err, search.ErrInvalidWindow) {
			return nil, nil
		}
		return nil, err
	}

	sel, err := r.search(c, w)
	if errors.Is(err, search.ErrNoResult) {
		return nil, nil
	}
	return sel, err
}

var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

func (r Rule) search(c model.Curve, w model.Window) (*Selection, error) {
	preferHigh := r.PriceMode.PreferHigh()
	var intervals []model.Interval
	if r.IntervalMode == model.IntervalIntermittent {
		ivs, err := search.FindExtremeIntermittent(c, w, r.Duration, preferHigh)
		if err != nil {
			return nil, err
		}
		intervals = ivs
	} else {
		iv, err := search.FindExtremeContiguous(c, w, r.Duration, preferHigh)
		if err != nil {
			return nil, err
		}
		intervals = []model.Interval{iv}
	}

	cost := search.TotalCost(intervals)
	return &Selection{
		Window:    w,
		Intervals: intervals,
		Price:     cost / r.Duration.Hours(),
		Cost:      cost,
	}, nil
}

// Active reports whether now falls inside the rule's daily window.
func (r Rule) Active(now time.Time, loc *time.Location) bool {
	return inWindow(minutesOf(now, loc), r.EarliestStart.Minutes(), r.LatestEnd.Minutes())
}

func minutesOf(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// inWindow checks whether tMins is in [start, end) on a 24h clock.
// If start == end the window spans the whole day.
// If start > end it wraps across midnight.
func inWindow(tMins, start, end int) bool {
	if start == end {
		return true
	}
	if start < end {
		return tMins >= start && tMins < end
	}
	return tMins >= start || tMins < end
}
