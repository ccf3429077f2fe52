package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
)

const entsoeURL = "https://web-api.tp.entsoe.eu/api"

// entsoeAreas maps bidding zones to EIC codes.
var entsoeAreas = map[string]string{
	"AT":              "10YAT-APG------L",
	"BE":              "10YBE----------2",
	"BG":              "10YCA-BULGARIA-R",
	"CH":              "10YCH-SWISSGRIDZ",
	"CZ":              "10YCZ-CEPS-----N",
	"DE-LU":           "10Y1001A1001A82H",
	"DK1":             "10YDK-1--------W",
	"DK2":             "10YDK-2--------M",
	"EE":              "10Y1001A1001A39I",
	"ES":              "10YES-REE------0",
	"FI":              "10YFI-1--------U",
	"FR":              "10YFR-RTE------C",
	"GR":              "10YGR-HTSO-----Y",
	"HR":              "10YHR-HEP------M",
	"HU":              "10YHU-MAVIR----U",
	"IT-Calabria":     "10Y1001C--00096J",
	"IT-Centre-North": "10Y1001A1001A70O",
	"IT-Centre-South": "10Y1001A1001A71M",
	"IT-North":        "10Y1001A1001A73I",
	"IT-Sardinia":     "10Y1001A1001A74G",
	"IT-Sicily":       "10Y1001A1001A75E",
	"IT-South":        "10Y1001A1001A788",
	"LT":              "10YLT-1001A0008Q",
	"LV":              "10YLV-1001A00074",
	"ME":              "10YCS-CG-TSO---S",
	"MK":              "10YMK-MEPSO----8",
	"NL":              "10YNL----------L",
	"NO1":             "10YNO-1--------2",
	"NO2":             "10YNO-2--------T",
	"NO3":             "10YNO-3--------J",
	"NO4":             "10YNO-4--------9",
	"NO5":             "10Y1001A1001A48H",
	"PL":              "10YPL-AREA-----S",
	"PT":              "10YPT-REN------W",
	"RO":              "10YRO-TEL------P",
	"RS":              "10YCS-SERBIATSOV",
	"SE1":             "10Y1001A1001A44P",
	"SE2":             "10Y1001A1001A45N",
	"SE3":             "10Y1001A1001A46L",
	"SE4":             "10Y1001A1001A47J",
	"SI":              "10YSI-ELES-----O",
	"SK":              "10YSK-SEPS-----K",
}

var entsoeResolutions = map[string]int{"PT15M": 15, "PT30M": 30, "PT60M": 60}

// Entsoe reads A44 day-ahead documents from the ENTSO-E transparency platform.
type Entsoe struct {
	info   Info
	url    string
	token  string
	client *Client
	now    func() time.Time
}

func NewEntsoe(spec Spec, client *Client) (Source, error) {
	if err := checkMarketArea("entsoe", spec.MarketArea, entsoeAreas); err != nil {
		return nil, err
	}
	if err := checkDuration("entsoe", spec.DurationMinutes, 15, 60); err != nil {
		return nil, err
	}
	if spec.Token == "" {
		return nil, errors.New("entsoe: security token is required")
	}
	u := spec.BaseURL
	if u == "" {
		u = entsoeURL
	}
	return &Entsoe{
		info:   spec.info("ENTSO-E Transparency API", 60, model.ModeAverage, pricing.FormulaStandard),
		url:    u,
		token:  spec.Token,
		client: client,
		now:    spec.clock(),
	}, nil
}

func (e *Entsoe) Info() Info { return e.info }

type entsoeDocument struct {
	XMLName    xml.Name           `xml:"Publication_MarketDocument"`
	TimeSeries []entsoeTimeSeries `xml:"TimeSeries"`
}

type entsoeTimeSeries struct {
	// Sequence distinguishes SDAC (1) from other auctions when several are published.
	Sequence string         `xml:"classificationSequence_AttributeInstanceComponent.position"`
	Period   []entsoePeriod `xml:"Period"`
}

type entsoePeriod struct {
	TimeInterval struct {
		Start string `xml:"start"`
		End   string `xml:"end"`
	} `xml:"timeInterval"`
	Resolution string        `xml:"resolution"`
	Point      []entsoePoint `xml:"Point"`
}

type entsoePoint struct {
	Position int     `xml:"position"`
	Price    float64 `xml:"price.amount"`
}

type entsoeAck struct {
	XMLName xml.Name `xml:"Acknowledgement_MarketDocument"`
	Reason  struct {
		Text string `xml:"text"`
	} `xml:"Reason"`
}

const entsoeTimeLayout = "2006-01-02T15:04Z"

func (e *Entsoe) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	start := e.now().UTC().Truncate(time.Hour)
	end := start.Add(48 * time.Hour)

	u, err := url.Parse(e.url)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("securityToken", e.token)
	q.Set("documentType", "A44")
	q.Set("in_Domain", entsoeAreas[e.info.MarketArea])
	q.Set("out_Domain", entsoeAreas[e.info.MarketArea])
	q.Set("periodStart", start.Format("200601021504"))
	q.Set("periodEnd", end.Format("200601021504"))
	q.Set("contract_MarketAgreement.type", "A01")
	u.RawQuery = q.Encode()

	body, err := e.client.Get(ctx, "entsoe", u.String(), nil)
	if err != nil {
		return nil, err
	}
	return parseEntsoe(body)
}

// parseEntsoe flattens a day-ahead document. Positions omitted from a period
// (A03 curve compression) repeat the previous price up to the period end.
func parseEntsoe(body []byte) ([]model.RawPrice, error) {
	var doc entsoeDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		var ack entsoeAck
		if xml.Unmarshal(body, &ack) == nil {
			return nil, fmt.Errorf("entsoe: %s", ack.Reason.Text)
		}
		return nil, fmt.Errorf("entsoe: failed to decode document: %w", err)
	}

	series := doc.TimeSeries
	hasSequence := false
	for _, ts := range series {
		if ts.Sequence != "" {
			hasSequence = true
			break
		}
	}
	if hasSequence {
		filtered := series[:0:0]
		for _, ts := range series {
			if ts.Sequence == "1" {
				filtered = append(filtered, ts)
			}
		}
		series = filtered
	}

	var out []model.RawPrice
	for _, ts := range series {
		for _, p := range ts.Period {
			prices, err := expandPeriod(p)
			if err != nil {
				return nil, err
			}
			out = append(out, prices...)
		}
	}
	return tidy(out), nil
}

func expandPeriod(p entsoePeriod) ([]model.RawPrice, error) {
	start, err := time.Parse(entsoeTimeLayout, p.TimeInterval.Start)
	if err != nil {
		return nil, fmt.Errorf("entsoe: invalid period start %q: %w", p.TimeInterval.Start, err)
	}
	minutes, ok := entsoeResolutions[p.Resolution]
	if !ok {
		return nil, fmt.Errorf("entsoe: unsupported period resolution %q", p.Resolution)
	}
	step := time.Duration(minutes) * time.Minute

	slots := 0
	if end, err := time.Parse(entsoeTimeLayout, p.TimeInterval.End); err == nil {
		slots = int(end.Sub(start) / step)
	}

	out := make([]model.RawPrice, 0, slots)
	emit := func(pos int, price float64) {
		out = append(out, model.RawPrice{Start: start.Add(time.Duration(pos) * step), DurationMinutes: minutes, Price: price})
	}

	prev := -1
	var prevPrice float64
	for _, pt := range p.Point {
		pos := pt.Position - 1
		if pos < 0 {
			continue
		}
		for missing := prev + 1; prev >= 0 && missing < pos; missing++ {
			emit(missing, prevPrice)
		}
		prevPrice = perKWh(pt.Price)
		emit(pos, prevPrice)
		prev = pos
	}
	for missing := prev + 1; prev >= 0 && missing < slots; missing++ {
		emit(missing, prevPrice)
	}
	return out, nil
}
