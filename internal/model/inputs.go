package model

import "time"

// RawPrice is what a provider adapter hands to the normalizer:
// a start instant, a resolution in minutes and a price per kWh.
// Adapters deliver these deduplicated and sorted by start.
type RawPrice struct {
	Start           time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price_per_kwh"`
}

func (r RawPrice) End() time.Time {
	return r.Start.Add(time.Duration(r.DurationMinutes) * time.Minute)
}
