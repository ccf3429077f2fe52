package curve

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"spotprice/internal/model"
)

var (
	// ErrNoCurrentData means no segment covers "now". Stale or missing data;
	// callers surface it as "unavailable" rather than failing.
	ErrNoCurrentData = errors.New("no market data for current time")
	// ErrCurveInvariant means more than one segment covers the same instant.
	ErrCurveInvariant = errors.New("curve has overlapping segments")
)

// CurrentSegment returns the unique segment with Start <= now < End.
func CurrentSegment(c model.Curve, now time.Time) (model.Segment, error) {
	var (
		found model.Segment
		n     int
	)
	for _, s := range c {
		if s.Contains(now) {
			found = s
			n++
		}
	}
	switch n {
	case 0:
		return model.Segment{}, ErrNoCurrentData
	case 1:
		return found, nil
	default:
		return model.Segment{}, fmt.Errorf("%w: %d segments cover %s", ErrCurveInvariant, n, now.Format(time.RFC3339))
	}
}

// DayBounds returns [start, end) of the local calendar day containing now.
// The end is computed by calendar date, so DST days are 23 or 25 hours long.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, end
}

// Today returns the segments lying entirely inside the local day of now, in time order.
func Today(c model.Curve, now time.Time, loc *time.Location) model.Curve {
	start, end := DayBounds(now, loc)
	out := model.Curve{}
	for _, s := range c {
		if !s.Start.Before(start) && !s.End.After(end) {
			out = append(out, s)
		}
	}
	return out
}

// TodaySorted returns today's segments ordered by ascending price.
// Equal prices keep time order so rank and quantile lookups are deterministic.
func TodaySorted(c model.Curve, now time.Time, loc *time.Location) model.Curve {
	out := Today(c, now, loc)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Price < out[j].Price
	})
	return out
}
