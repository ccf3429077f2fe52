package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
)

const energyforecastURL = "https://www.energyforecast.de/api/v1/predictions/prices_for_ha"

var energyforecastAreas = map[string]struct{}{"de": {}}

// Energyforecast serves day-ahead prices plus a forecast beyond the auction,
// already in EUR/kWh. Fixed costs and VAT are requested as zero so the
// surcharge formula applies on top like for the market feeds.
type Energyforecast struct {
	info   Info
	url    string
	token  string
	client *Client
}

func NewEnergyforecast(spec Spec, client *Client) (Source, error) {
	spec.MarketArea = strings.ToLower(spec.MarketArea)
	if err := checkMarketArea("energyforecast", spec.MarketArea, energyforecastAreas); err != nil {
		return nil, err
	}
	if err := checkDuration("energyforecast", spec.DurationMinutes, 15, 60); err != nil {
		return nil, err
	}
	if spec.Token == "" {
		return nil, errors.New("energyforecast: API token is required")
	}
	u := spec.BaseURL
	if u == "" {
		u = energyforecastURL
	}
	return &Energyforecast{
		info:   spec.info("Energyforecast API V1", 60, model.ModeCompress, pricing.FormulaStandard),
		url:    u,
		token:  spec.Token,
		client: client,
	}, nil
}

func (e *Energyforecast) Info() Info { return e.info }

type energyforecastResponse struct {
	Forecast struct {
		Data []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
			Price float64   `json:"price"`
		} `json:"data"`
	} `json:"forecast"`
}

func (e *Energyforecast) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	u, err := url.Parse(e.url)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	resolution := "HOURLY"
	if e.info.DurationMinutes == 15 {
		resolution = "QUARTER_HOURLY"
	}
	q := u.Query()
	q.Set("token", e.token)
	q.Set("fixed_cost_cent", "0")
	q.Set("vat", "0")
	q.Set("resolution", resolution)
	u.RawQuery = q.Encode()

	body, err := e.client.Get(ctx, "energyforecast", u.String(), nil)
	if err != nil {
		return nil, err
	}
	var resp energyforecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("energyforecast: failed to decode response: %w", err)
	}

	out := make([]model.RawPrice, 0, len(resp.Forecast.Data))
	for _, d := range resp.Forecast.Data {
		out = append(out, model.RawPrice{
			Start:           d.Start.UTC(),
			DurationMinutes: int(d.End.Sub(d.Start) / time.Minute),
			Price:           round6(d.Price),
		})
	}
	return tidy(out), nil
}
