package models

import (
	"time"

	"spotprice/internal/analysis"
	"spotprice/internal/feed"
	"spotprice/internal/model"
	"spotprice/internal/schedule"
	"spotprice/internal/source"
)

// SourceInfo describes one configured source and its feed health
type SourceInfo struct {
	source.Info
	UOMPerKWh string      `json:"uom_per_kwh,omitempty"`
	Status    feed.Status `json:"status"`
}

// SourcesResponse is the response of GET /api/v1/sources
type SourcesResponse struct {
	Sources   []SourceInfo `json:"sources"`
	Providers []string     `json:"providers"`
}

// PricePoint is one segment with gross and net price per kWh
type PricePoint struct {
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	Price    float64   `json:"price_per_kwh"`
	NetPrice float64   `json:"net_price_per_kwh"`
}

// PricesResponse is the response of GET /api/v1/sources/:id/prices
type PricesResponse struct {
	Source    string       `json:"source"`
	Currency  string       `json:"currency"`
	FetchedAt time.Time    `json:"fetched_at"`
	Count     int          `json:"count"`
	Prices    []PricePoint `json:"prices"`
}

// CurrentResponse is the response of GET /api/v1/sources/:id/current.
// Available is false when no segment covers now.
type CurrentResponse struct {
	Source    string             `json:"source"`
	At        time.Time          `json:"at"`
	Available bool               `json:"available"`
	Current   *PricePoint        `json:"current,omitempty"`
	Today     *analysis.DayStats `json:"today,omitempty"`
}

// IntervalResponse is the response of GET /api/v1/sources/:id/interval
type IntervalResponse struct {
	Source          string           `json:"source"`
	Mode            string           `json:"mode"`
	PriceMode       string           `json:"price_mode"`
	DurationMinutes float64          `json:"duration_minutes"`
	Window          model.Window     `json:"window"`
	Start           time.Time        `json:"start_time"`
	End             time.Time        `json:"end_time"`
	Price           float64          `json:"price_per_kwh"`
	NetPrice        float64          `json:"net_price_per_kwh"`
	Cost            float64          `json:"interval_price"`
	Active          bool             `json:"active"`
	Intervals       []model.Interval `json:"intervals"`
}

// PlanResponse is the response of GET /api/v1/sources/:id/plan
type PlanResponse struct {
	Source string `json:"source"`
	schedule.Plan
}

// RuleInfo describes a rule preset
type RuleInfo struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	EarliestStart   string  `json:"earliest_start"`
	LatestEnd       string  `json:"latest_end"`
	DurationMinutes float64 `json:"duration_minutes"`
	IntervalMode    string  `json:"interval_mode"`
	PriceMode       string  `json:"price_mode"`
}

// RankResponse represents the response from ranking sources
type RankResponse struct {
	At       time.Time `json:"at"`
	Rankings []Ranking `json:"rankings"`
}

// Ranking represents one ranked source
type Ranking struct {
	Rank         int     `json:"rank"`
	Source       string  `json:"source"`
	Currency     string  `json:"currency"`
	Count        int     `json:"count"`
	Mean         float64 `json:"mean"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	SpreadP95P05 float64 `json:"spread_p95_p05"`
	StorageValue float64 `json:"storage_value"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
