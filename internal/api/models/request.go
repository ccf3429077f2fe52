package models

// IntervalQuery is the query string of GET /api/v1/sources/:id/interval
type IntervalQuery struct {
	Mode              string `form:"mode"`                        // "contiguous" (default) or "intermittent"
	PriceMode         string `form:"price_mode"`                  // "cheapest" (default) or "most_expensive"
	Duration          string `form:"duration" binding:"required"` // Go duration ("90m") or plain minutes ("90")
	EarliestStart     string `form:"earliest_start"`              // HH:MM[:SS], default: now
	EarliestStartPost int    `form:"earliest_start_post"`         // day offset for earliest_start
	LatestEnd         string `form:"latest_end"`                  // HH:MM[:SS], default: end of data
	LatestEndPost     int    `form:"latest_end_post"`             // day offset for latest_end
	At                string `form:"at,omitempty"`                // RFC3339 override for "now"
}

// PlanQuery is the query string of GET /api/v1/sources/:id/plan
type PlanQuery struct {
	Rule   string `form:"rule" binding:"required"`
	At     string `form:"at,omitempty"`
	Format string `form:"format,omitempty"` // "json" (default) or "csv"
}

// PricesQuery is the query string of GET /api/v1/sources/:id/prices
type PricesQuery struct {
	Day string `form:"day,omitempty"` // "all" (default) or "today"
	At  string `form:"at,omitempty"`
}

// RankQuery is the query string of GET /api/v1/rank
type RankQuery struct {
	Limit int    `form:"limit,omitempty"` // default: all sources
	At    string `form:"at,omitempty"`
}
