package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
)

const smartEnergyURL = "https://apis.smartenergy.at/market/v1/price"

// smartEnergyVAT is the Austrian VAT already included in published prices.
const smartEnergyVAT = 1.2

var smartEnergyAreas = map[string]struct{}{"at": {}}

// SmartEnergy publishes Austrian prices in ct/kWh including VAT.
type SmartEnergy struct {
	info   Info
	url    string
	client *Client
}

func NewSmartEnergy(spec Spec, client *Client) (Source, error) {
	spec.MarketArea = strings.ToLower(spec.MarketArea)
	if err := checkMarketArea("smartenergy", spec.MarketArea, smartEnergyAreas); err != nil {
		return nil, err
	}
	if err := checkDuration("smartenergy", spec.DurationMinutes, 15, 60); err != nil {
		return nil, err
	}
	u := spec.BaseURL
	if u == "" {
		u = smartEnergyURL
	}
	return &SmartEnergy{
		info:   spec.info("smartENERGY API V1", 15, model.ModeCompress, pricing.FormulaSmartEnergy),
		url:    u,
		client: client,
	}, nil
}

func (s *SmartEnergy) Info() Info { return s.info }

type smartEnergyResponse struct {
	Interval int    `json:"interval"`
	Unit     string `json:"unit"`
	Data     []struct {
		Date  time.Time `json:"date"`
		Value float64   `json:"value"`
	} `json:"data"`
}

func (s *SmartEnergy) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	body, err := s.client.Get(ctx, "smartenergy", s.url, nil)
	if err != nil {
		return nil, err
	}
	var resp smartEnergyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("smartenergy: failed to decode response: %w", err)
	}
	if !strings.EqualFold(resp.Unit, "ct/kwh") {
		return nil, fmt.Errorf("smartenergy: unexpected unit %q", resp.Unit)
	}
	if resp.Interval <= 0 {
		return nil, fmt.Errorf("smartenergy: invalid interval %d", resp.Interval)
	}

	out := make([]model.RawPrice, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, model.RawPrice{
			Start:           d.Date.UTC(),
			DurationMinutes: resp.Interval,
			// Strip VAT so the value compares with the other sources.
			Price: round6(d.Value / 100.0 / smartEnergyVAT),
		})
	}
	return tidy(out), nil
}
