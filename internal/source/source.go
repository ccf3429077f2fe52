// Package source fetches raw day-ahead prices from market data providers.
//
// Each provider adapter turns its wire format into []model.RawPrice in
// currency per kWh, sorted and deduplicated. Normalizing to the configured
// resolution is left to the curve package.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"

	"github.com/shopspring/decimal"
)

var ErrUnsupported = errors.New("unsupported source option")

// Source is one configured provider + market area.
type Source interface {
	Info() Info
	Fetch(ctx context.Context) ([]model.RawPrice, error)
}

// Info describes a configured source.
type Info struct {
	ID              string              `json:"id"`
	Provider        string              `json:"provider"`
	Name            string              `json:"name"`
	MarketArea      string              `json:"market_area"`
	DurationMinutes int                 `json:"duration_minutes"`
	Mode            model.NormalizeMode `json:"mode"`
	Currency        string              `json:"currency"`
	Formula         pricing.Formula     `json:"formula"`
}

// Spec is the provider-independent description a Factory builds from.
// Zero fields take provider defaults.
type Spec struct {
	ID              string
	Provider        string
	MarketArea      string
	DurationMinutes int
	Mode            model.NormalizeMode
	Currency        string
	BaseURL         string
	Token           string
	Dataset         string
	Location        string
	Path            string
	// TimeZone decides which calendar day "today" is when asking for
	// prices. Nil means UTC.
	TimeZone *time.Location
}

// clock returns the current time in the spec's time zone.
func (s Spec) clock() func() time.Time {
	loc := s.TimeZone
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time { return time.Now().In(loc) }
}

// info fills Spec gaps with provider defaults.
func (s Spec) info(name string, duration int, mode model.NormalizeMode, formula pricing.Formula) Info {
	inf := Info{
		ID:              s.ID,
		Provider:        s.Provider,
		Name:            name,
		MarketArea:      s.MarketArea,
		DurationMinutes: s.DurationMinutes,
		Mode:            s.Mode,
		Currency:        strings.ToUpper(s.Currency),
		Formula:         formula,
	}
	if inf.ID == "" {
		inf.ID = strings.ToLower(s.Provider + "-" + s.MarketArea)
	}
	if inf.DurationMinutes == 0 {
		inf.DurationMinutes = duration
	}
	if inf.Mode == "" {
		inf.Mode = mode
	}
	if inf.Currency == "" {
		inf.Currency = "EUR"
	}
	return inf
}

func checkDuration(provider string, got int, supported ...int) error {
	if got == 0 {
		return nil
	}
	for _, d := range supported {
		if got == d {
			return nil
		}
	}
	return fmt.Errorf("%w: %s does not support %d minute prices (supported: %v)", ErrUnsupported, provider, got, supported)
}

func checkMarketArea[V any](provider, area string, areas map[string]V) error {
	if _, ok := areas[area]; ok {
		return nil
	}
	known := make([]string, 0, len(areas))
	for k := range areas {
		known = append(known, k)
	}
	sort.Strings(known)
	return fmt.Errorf("%w: %s has no market area %q (known: %s)", ErrUnsupported, provider, area, strings.Join(known, ", "))
}

// tidy sorts by start and drops later duplicates of the same start instant.
func tidy(raw []model.RawPrice) []model.RawPrice {
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Start.Before(raw[j].Start) })
	out := raw[:0]
	for i, r := range raw {
		if i > 0 && r.Start.Equal(out[len(out)-1].Start) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// perKWh converts a per-MWh price and rounds to 6 places like every adapter does.
func perKWh(perMWh float64) float64 {
	return round6(perMWh / 1000.0)
}

func round6(v float64) float64 {
	return decimal.NewFromFloat(v).Round(6).InexactFloat64()
}

// startOfDay is local midnight of t shifted by days.
func startOfDay(t time.Time, days int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+days, 0, 0, 0, 0, t.Location())
}
