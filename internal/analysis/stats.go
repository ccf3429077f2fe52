package analysis

import (
	"math"
	"sort"
	"time"

	"spotprice/internal/model"
)

// DayStats summarizes one local day of a curve.
// Rank and Quantile describe the current price against the rest of the day
// and are only meaningful when HasCurrent is true.
type DayStats struct {
	Source string `json:"source"`

	DayStart time.Time `json:"day_start"`
	DayEnd   time.Time `json:"day_end"`

	Count int `json:"count"`

	Min    model.Segment `json:"min"`
	Max    model.Segment `json:"max"`
	Mean   float64       `json:"mean"`
	Median float64       `json:"median"`
	P05    float64       `json:"p05"`
	P95    float64       `json:"p95"`

	SpreadP95P05 float64 `json:"spread_p95_p05"`

	HasCurrent bool    `json:"has_current"`
	Current    float64 `json:"current,omitempty"`
	// Rank is the position of the current price in the ascending day list
	// (0 = cheapest). Equal prices share the lowest position.
	Rank     int     `json:"rank"`
	Quantile float64 `json:"quantile"`

	// StorageValue is the best-case value of shifting 1 kWh with a 1 kW
	// store over the day (see storageValue).
	StorageValue float64 `json:"storage_value"`
}

// ComputeDayStats builds stats from the day's segments sorted ascending by
// price (curve.TodaySorted). current may be nil when no segment covers now.
func ComputeDayStats(sorted model.Curve, current *model.Segment) DayStats {
	st := DayStats{Rank: -1}
	if len(sorted) == 0 {
		return st
	}
	st.Count = len(sorted)
	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]

	vals := make([]float64, 0, len(sorted))
	dayStart, dayEnd := sorted[0].Start, sorted[0].End
	sum := 0.0
	for _, s := range sorted {
		vals = append(vals, s.Price)
		sum += s.Price
		if s.Start.Before(dayStart) {
			dayStart = s.Start
		}
		if s.End.After(dayEnd) {
			dayEnd = s.End
		}
	}
	st.DayStart, st.DayEnd = dayStart, dayEnd
	st.Mean = sum / float64(len(vals))
	st.Median = percentileSorted(vals, 0.5)
	st.P05 = percentileSorted(vals, 0.05)
	st.P95 = percentileSorted(vals, 0.95)
	st.SpreadP95P05 = st.P95 - st.P05

	chrono := sorted.Clone()
	sort.SliceStable(chrono, func(i, j int) bool { return chrono[i].Start.Before(chrono[j].Start) })
	st.StorageValue = storageValue(chrono)

	if current != nil {
		st.HasCurrent = true
		st.Current = current.Price
		st.Rank = rankOf(vals, current.Price)
		st.Quantile = quantile(current.Price, st.Min.Price, st.Max.Price)
	}
	return st
}

func rankOf(sorted []float64, price float64) int {
	for i, v := range sorted {
		if v == price {
			return i
		}
	}
	return sort.SearchFloat64s(sorted, price)
}

// quantile places price on the day's [min, max] range; a flat day is 0.
func quantile(price, minv, maxv float64) float64 {
	if maxv == minv {
		return 0
	}
	return (price - minv) / (maxv - minv)
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
