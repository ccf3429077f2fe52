package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
)

const gridStatusURL = "https://api.gridstatus.io"

// GridStatusLMPResponse matches the JSON shape of the Grid Status location query.
//
// Example:
//
//	{
//	  "status_code": 200,
//	  "data": [ ... ]
//	}
type GridStatusLMPResponse struct {
	StatusCode int           `json:"status_code"`
	Data       []LMPInterval `json:"data"`
}

// LMPInterval is one interval row from a Grid Status LMP dataset.
type LMPInterval struct {
	IntervalStartUTC time.Time `json:"interval_start_utc"`
	IntervalEndUTC   time.Time `json:"interval_end_utc"`
	Market           string    `json:"market"`
	Location         string    `json:"location"`
	// Prices in $/MWh.
	LMP float64 `json:"lmp"`
}

// GridStatus serves US ISO nodal prices (LMP) from the Grid Status API.
// MarketArea is informational; Dataset and Location select the data,
// e.g. caiso_lmp_day_ahead_hourly / TH_NP15_GEN-APND.
type GridStatus struct {
	info     Info
	base     string
	apiKey   string
	dataset  string
	location string
	client   *Client
	now      func() time.Time
}

func NewGridStatus(spec Spec, client *Client) (Source, error) {
	if spec.Dataset == "" {
		return nil, errors.New("gridstatus: dataset is required")
	}
	if spec.Location == "" {
		return nil, errors.New("gridstatus: location is required")
	}
	if err := validateAPIKey(spec.Token); err != nil {
		return nil, err
	}
	base := spec.BaseURL
	if base == "" {
		base = gridStatusURL
	}
	if spec.Currency == "" {
		spec.Currency = "USD"
	}
	return &GridStatus{
		info:     spec.info("Grid Status API", 60, model.ModeAverage, pricing.FormulaStandard),
		base:     base,
		apiKey:   spec.Token,
		dataset:  spec.Dataset,
		location: spec.Location,
		client:   client,
		now:      spec.clock(),
	}, nil
}

func (g *GridStatus) Info() Info { return g.info }

// validateAPIKey rejects obviously bad keys before spending a request.
func validateAPIKey(key string) error {
	if key == "" {
		return &HTTPError{Provider: "gridstatus", Code: "MISSING_API_KEY", Message: "API key is required"}
	}
	if len(key) < 10 {
		return &HTTPError{Provider: "gridstatus", Code: "INVALID_API_KEY_FORMAT", Message: "API key appears to be invalid (too short)"}
	}
	return nil
}

func (g *GridStatus) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	start := startOfDay(g.now(), -1)
	end := start.AddDate(0, 0, 3)

	// /v1/datasets/{dataset_id}/query/location/{location_id}
	path := fmt.Sprintf("/v1/datasets/%s/query/location/%s", url.PathEscape(g.dataset), url.PathEscape(g.location))
	u, err := url.Parse(g.base + path)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("start_time", start.Format("2006-01-02"))
	q.Set("end_time", end.Format("2006-01-02"))
	q.Set("timezone", "market")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("x-api-key", g.apiKey)
	header.Set("Accept", "application/json")

	body, err := g.client.Get(ctx, "gridstatus", u.String(), header)
	if err != nil {
		return nil, err
	}
	var resp GridStatusLMPResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("gridstatus: failed to decode response: %w", err)
	}
	return lmpToRaw(resp.Data), nil
}

func lmpToRaw(rows []LMPInterval) []model.RawPrice {
	out := make([]model.RawPrice, 0, len(rows))
	for _, it := range rows {
		d := it.IntervalEndUTC.Sub(it.IntervalStartUTC)
		if d <= 0 {
			continue
		}
		out = append(out, model.RawPrice{
			Start:           it.IntervalStartUTC.UTC(),
			DurationMinutes: int(d / time.Minute),
			Price:           perKWh(it.LMP),
		})
	}
	return tidy(out)
}
