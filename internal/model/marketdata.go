package model

import (
	"errors"
	"fmt"
	"time"
)

// Segment is one half-open price interval [Start, End).
// Price is in currency per kWh; the unit is tagged by the owning source.
type Segment struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
	Price float64   `json:"price_per_kwh"`
}

func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s Segment) Hours() float64 {
	return s.Duration().Hours()
}

// Contains reports whether t lies in [Start, End).
func (s Segment) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Overlaps reports whether the segment intersects [start, end).
func (s Segment) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && s.End.After(start)
}

func (s Segment) String() string {
	return fmt.Sprintf("Segment(start: %s, end: %s, price: %g)",
		s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339), s.Price)
}

// Curve is an ordered, non-overlapping sequence of segments for one source.
// Gaps between segments mean "no data" and are never interpolated.
// A curve is replaced wholesale on refresh and never patched.
type Curve []Segment

var ErrInvalidCurve = errors.New("invalid curve")

// Validate checks ordering, overlap and Start < End for every segment.
func (c Curve) Validate() error {
	for i, s := range c {
		if !s.Start.Before(s.End) {
			return fmt.Errorf("%w: segment %d has start %s not before end %s",
				ErrInvalidCurve, i, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
		}
		if i == 0 {
			continue
		}
		prev := c[i-1]
		if s.Start.Before(prev.End) {
			return fmt.Errorf("%w: segment %d starts at %s before previous end %s",
				ErrInvalidCurve, i, s.Start.Format(time.RFC3339), prev.End.Format(time.RFC3339))
		}
	}
	return nil
}

// Start returns the first segment's start, or the zero time for an empty curve.
func (c Curve) Start() time.Time {
	if len(c) == 0 {
		return time.Time{}
	}
	return c[0].Start
}

// End returns the last segment's end, or the zero time for an empty curve.
func (c Curve) End() time.Time {
	if len(c) == 0 {
		return time.Time{}
	}
	return c[len(c)-1].End
}

func (c Curve) Clone() Curve {
	if c == nil {
		return nil
	}
	out := make(Curve, len(c))
	copy(out, c)
	return out
}
