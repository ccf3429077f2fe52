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

const smardURL = "https://www.smard.de/app/chart_data"

// smardFilters maps market areas to SMARD chart filter ids.
var smardFilters = map[string]int{
	"DE-LU":          4169,
	"Anrainer DE-LU": 5078,
	"BE":             4996,
	"NO2":            4997,
	"AT":             4170,
	"DK1":            252,
	"DK2":            253,
	"FR":             254,
	"IT (North)":     255,
	"NL":             256,
	"PL":             257,
	"CH":             259,
	"SI":             260,
	"CZ":             261,
	"HU":             262,
}

// SMARD is the Bundesnetzagentur market data portal. Data is split into
// weekly series files listed by an index; hourly resolution only.
type SMARD struct {
	info   Info
	base   string
	filter int
	client *Client
	now    func() time.Time
}

func NewSMARD(spec Spec, client *Client) (Source, error) {
	if err := checkMarketArea("smard", spec.MarketArea, smardFilters); err != nil {
		return nil, err
	}
	if err := checkDuration("smard", spec.DurationMinutes, 60); err != nil {
		return nil, err
	}
	base := spec.BaseURL
	if base == "" {
		base = smardURL
	}
	return &SMARD{
		info:   spec.info("SMARD.de", 60, model.ModeCompress, pricing.FormulaStandard),
		base:   strings.TrimRight(base, "/"),
		filter: smardFilters[spec.MarketArea],
		client: client,
		now:    spec.clock(),
	}, nil
}

func (s *SMARD) Info() Info { return s.info }

type smardIndex struct {
	Timestamps []int64 `json:"timestamps"`
}

type smardSeries struct {
	Series [][2]*float64 `json:"series"`
}

func (s *SMARD) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	region := url.PathEscape(s.info.MarketArea)
	indexURL := fmt.Sprintf("%s/%d/%s/index_hour.json", s.base, s.filter, region)

	body, err := s.client.Get(ctx, "smard", indexURL, nil)
	if err != nil {
		return nil, err
	}
	var idx smardIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("smard: failed to decode index: %w", err)
	}
	if len(idx.Timestamps) == 0 {
		return nil, fmt.Errorf("smard: index lists no series")
	}

	// A new series starts on Sunday noon, so the newest one alone can miss
	// the start of the week.
	series := idx.Timestamps
	if len(series) > 2 {
		series = series[len(series)-2:]
	}

	from := startOfDay(s.now(), -1)
	var out []model.RawPrice
	for _, ts := range series {
		u := fmt.Sprintf("%s/%d/%s/%d_%s_hour_%d.json", s.base, s.filter, region, s.filter, region, ts)
		body, err := s.client.Get(ctx, "smard", u, nil)
		if err != nil {
			return nil, err
		}
		var data smardSeries
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("smard: failed to decode series %d: %w", ts, err)
		}
		for _, p := range data.Series {
			if p[0] == nil || p[1] == nil {
				continue
			}
			start := time.UnixMilli(int64(*p[0])).UTC()
			if start.Before(from) {
				continue
			}
			out = append(out, model.RawPrice{Start: start, DurationMinutes: 60, Price: perKWh(*p[1])})
		}
	}
	return tidy(out), nil
}
