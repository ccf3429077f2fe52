package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
)

var awattarAreas = map[string]string{
	"at": "https://api.awattar.at/v1/marketdata",
	"de": "https://api.awattar.de/v1/marketdata",
}

// Awattar serves hourly EPEX prices for Germany and Austria in EUR/MWh.
type Awattar struct {
	info   Info
	url    string
	client *Client
	now    func() time.Time
}

func NewAwattar(spec Spec, client *Client) (Source, error) {
	spec.MarketArea = strings.ToLower(spec.MarketArea)
	if err := checkMarketArea("awattar", spec.MarketArea, awattarAreas); err != nil {
		return nil, err
	}
	if err := checkDuration("awattar", spec.DurationMinutes, 60); err != nil {
		return nil, err
	}
	u := spec.BaseURL
	if u == "" {
		u = awattarAreas[spec.MarketArea]
	}
	return &Awattar{
		info:   spec.info("Awattar API V1", 60, model.ModeCompress, pricing.FormulaStandard),
		url:    u,
		client: client,
		now:    spec.clock(),
	}, nil
}

func (a *Awattar) Info() Info { return a.info }

type awattarResponse struct {
	Data []struct {
		StartTimestamp int64   `json:"start_timestamp"`
		EndTimestamp   int64   `json:"end_timestamp"`
		MarketPrice    float64 `json:"marketprice"`
		Unit           string  `json:"unit"`
	} `json:"data"`
}

// Fetch asks for yesterday through the end of tomorrow.
func (a *Awattar) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	start := startOfDay(a.now(), -1)
	end := start.AddDate(0, 0, 3)

	u, err := url.Parse(a.url)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(end.UnixMilli(), 10))
	u.RawQuery = q.Encode()

	body, err := a.client.Get(ctx, "awattar", u.String(), nil)
	if err != nil {
		return nil, err
	}
	var resp awattarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("awattar: failed to decode response: %w", err)
	}

	out := make([]model.RawPrice, 0, len(resp.Data))
	for _, d := range resp.Data {
		if !strings.EqualFold(d.Unit, "eur/mwh") {
			return nil, fmt.Errorf("awattar: unexpected unit %q", d.Unit)
		}
		s := time.UnixMilli(d.StartTimestamp).UTC()
		e := time.UnixMilli(d.EndTimestamp).UTC()
		out = append(out, model.RawPrice{
			Start:           s,
			DurationMinutes: int(e.Sub(s) / time.Minute),
			Price:           perKWh(d.MarketPrice),
		})
	}
	return tidy(out), nil
}
