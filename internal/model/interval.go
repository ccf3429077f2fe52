package model

import (
	"errors"
	"fmt"
	"time"
)

// Interval is a search result.
// Units:
// - Price: currency per kWh, i.e. the time-normalized rate (per hour at 1 kW)
// - Cost: absolute cost over [Start, End) at 1 kW
// - Rank: selection order for intermittent results (0 = best price), 0 otherwise
type Interval struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
	Price float64   `json:"price_per_kwh"`
	Cost  float64   `json:"interval_price"`
	Rank  int       `json:"rank"`
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Window is the [EarliestStart, LatestEnd) range a search may place its result in.
type Window struct {
	EarliestStart time.Time `json:"earliest_start"`
	LatestEnd     time.Time `json:"latest_end"`
}

var ErrInvalidWindow = errors.New("invalid search window")

func (w Window) Validate() error {
	if w.EarliestStart.IsZero() || w.LatestEnd.IsZero() {
		return fmt.Errorf("%w: earliest_start and latest_end are required", ErrInvalidWindow)
	}
	if !w.EarliestStart.Before(w.LatestEnd) {
		return fmt.Errorf("%w: latest_end %s is not after earliest_start %s",
			ErrInvalidWindow, w.LatestEnd.Format(time.RFC3339), w.EarliestStart.Format(time.RFC3339))
	}
	return nil
}

func (w Window) Duration() time.Duration {
	return w.LatestEnd.Sub(w.EarliestStart)
}
