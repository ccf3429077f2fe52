package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
)

const energyChartsURL = "https://api.energy-charts.info/price"

var energyChartsZones = map[string]struct{}{}

func init() {
	for _, z := range []string{
		"AT", "BE", "BG", "CH", "CZ", "DE-LU", "DE-AT-LU", "DK1", "DK2", "EE", "ES", "FI", "FR", "GR", "HR", "HU",
		"IT-Calabria", "IT-Centre-North", "IT-Centre-South", "IT-North", "IT-SACOAC", "IT-SACODC", "IT-Sardinia",
		"IT-Sicily", "IT-South", "LT", "LV", "ME", "NL", "NO1", "NO2", "NO2NSL", "NO3", "NO4", "NO5", "PL", "PT",
		"RO", "RS", "SE1", "SE2", "SE3", "SE4", "SI", "SK",
	} {
		energyChartsZones[z] = struct{}{}
	}
}

// EnergyCharts serves day-ahead prices per bidding zone. The resolution of the
// response is not announced, so it is detected from the timestamp spacing.
type EnergyCharts struct {
	info   Info
	url    string
	client *Client
	now    func() time.Time
}

func NewEnergyCharts(spec Spec, client *Client) (Source, error) {
	if err := checkMarketArea("energycharts", spec.MarketArea, energyChartsZones); err != nil {
		return nil, err
	}
	if err := checkDuration("energycharts", spec.DurationMinutes, 15, 60); err != nil {
		return nil, err
	}
	u := spec.BaseURL
	if u == "" {
		u = energyChartsURL
	}
	return &EnergyCharts{
		info:   spec.info("Energy-Charts API", 60, model.ModeAverage, pricing.FormulaStandard),
		url:    u,
		client: client,
		now:    spec.clock(),
	}, nil
}

func (e *EnergyCharts) Info() Info { return e.info }

type energyChartsResponse struct {
	UnixSeconds []int64    `json:"unix_seconds"`
	Price       []*float64 `json:"price"`
	Unit        string     `json:"unit"`
}

func (e *EnergyCharts) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	today := startOfDay(e.now(), 0)

	u, err := url.Parse(e.url)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("bzn", e.info.MarketArea)
	q.Set("start", today.Format("2006-01-02"))
	q.Set("end", today.AddDate(0, 0, 1).Format("2006-01-02"))
	u.RawQuery = q.Encode()

	body, err := e.client.Get(ctx, "energycharts", u.String(), nil)
	if err != nil {
		return nil, err
	}
	var resp energyChartsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("energycharts: failed to decode response: %w", err)
	}
	if unit := strings.ReplaceAll(resp.Unit, " ", ""); unit != "" && !strings.EqualFold(unit, "eur/mwh") {
		return nil, fmt.Errorf("energycharts: unexpected unit %q", resp.Unit)
	}
	if len(resp.UnixSeconds) != len(resp.Price) {
		return nil, fmt.Errorf("energycharts: %d timestamps but %d prices", len(resp.UnixSeconds), len(resp.Price))
	}

	step := detectStep(resp.UnixSeconds)
	out := make([]model.RawPrice, 0, len(resp.Price))
	for i, ts := range resp.UnixSeconds {
		if resp.Price[i] == nil {
			continue
		}
		out = append(out, model.RawPrice{
			Start:           time.Unix(ts, 0).UTC(),
			DurationMinutes: step,
			Price:           perKWh(*resp.Price[i]),
		})
	}
	return tidy(out), nil
}

// detectStep returns the most common spacing in minutes (60 for a single point).
func detectStep(ts []int64) int {
	counts := map[int]int{}
	best, bestCount := 60, 0
	for i := 1; i < len(ts); i++ {
		d := int((ts[i] - ts[i-1]) / 60)
		if d <= 0 {
			continue
		}
		counts[d]++
		if counts[d] > bestCount || (counts[d] == bestCount && d < best) {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
