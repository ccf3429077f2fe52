package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

func testClient() *Client {
	return NewClient(ClientOptions{
		RatePerSecond: 1000,
		RateBurst:     100,
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
	})
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRetries(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var calls int32
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		body, err := testClient().Get(context.Background(), "test", srv.URL, nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(body))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		var calls int32
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := testClient().Get(context.Background(), "test", srv.URL, nil)
		var he *HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, "UNAUTHORIZED", he.Code)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int32
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := testClient().Get(context.Background(), "test", srv.URL, nil)
		var he *HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", he.Code)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Providers(), "entsoe")
	assert.True(t, Registered("awattar"))
	assert.False(t, Registered("nordpool"))

	_, err := New(Spec{Provider: "nordpool"}, nil)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = New(Spec{Provider: "awattar", MarketArea: "fr"}, nil)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = New(Spec{Provider: "awattar", MarketArea: "DE", DurationMinutes: 15}, nil)
	assert.ErrorIs(t, err, ErrUnsupported)

	s, err := New(Spec{Provider: "awattar", MarketArea: "DE"}, nil)
	require.NoError(t, err)
	info := s.Info()
	assert.Equal(t, "awattar-de", info.ID)
	assert.Equal(t, 60, info.DurationMinutes)
	assert.Equal(t, model.ModeCompress, info.Mode)
	assert.Equal(t, "EUR", info.Currency)
}

func TestAwattar(t *testing.T) {
	var query string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"object":"list","data":[
			{"start_timestamp":1710410400000,"end_timestamp":1710414000000,"marketprice":85.2,"unit":"Eur/MWh"},
			{"start_timestamp":1710406800000,"end_timestamp":1710410400000,"marketprice":-3.1,"unit":"Eur/MWh"}]}`)
	})
	s, err := NewAwattar(Spec{Provider: "awattar", MarketArea: "de", BaseURL: srv.URL}, testClient())
	require.NoError(t, err)
	s.(*Awattar).now = func() time.Time { return fixedNow }

	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), got[0].Start)
	assert.Equal(t, 60, got[0].DurationMinutes)
	assert.Equal(t, -0.0031, got[0].Price)
	assert.Equal(t, 0.0852, got[1].Price)
	assert.Contains(t, query, "start=1710288000000")
	assert.Contains(t, query, "end=1710547200000")
}

func TestAwattarUsesConfiguredDay(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	var query string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	s, err := NewAwattar(Spec{Provider: "awattar", MarketArea: "de", BaseURL: srv.URL, TimeZone: cet}, testClient())
	require.NoError(t, err)
	a := s.(*Awattar)
	assert.Equal(t, cet, a.now().Location())

	// 23:30 UTC is already the 15th in CET, so yesterday is the 14th.
	a.now = func() time.Time { return time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC).In(cet) }
	_, err = s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, query, "start=1710370800000")
}

func TestSpecClockDefaultsToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Spec{}.clock()().Location())
}

func TestEnergyCharts(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DE-LU", r.URL.Query().Get("bzn"))
		assert.Equal(t, "2024-03-14", r.URL.Query().Get("start"))
		_, _ = io.WriteString(w, `{"unix_seconds":[1710374400,1710375300,1710376200,1710377100],
			"price":[100.0,null,80.0,120.5],"unit":"EUR / MWh"}`)
	})
	s, err := NewEnergyCharts(Spec{Provider: "energycharts", MarketArea: "DE-LU", BaseURL: srv.URL}, testClient())
	require.NoError(t, err)
	s.(*EnergyCharts).now = func() time.Time { return fixedNow }

	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 15, got[0].DurationMinutes)
	assert.Equal(t, 0.1205, got[2].Price)
	assert.Equal(t, model.ModeAverage, s.Info().Mode)
}

func TestDetectStep(t *testing.T) {
	assert.Equal(t, 60, detectStep(nil))
	assert.Equal(t, 15, detectStep([]int64{0, 900, 1800, 5400, 6300}))
}

func TestSmartEnergy(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"tariff":"SMART","unit":"ct/kWh","interval":15,"data":[
			{"date":"2024-03-14T00:00:00+01:00","value":12.0},
			{"date":"2024-03-14T00:15:00+01:00","value":6.0}]}`)
	})
	s, err := NewSmartEnergy(Spec{Provider: "smartenergy", MarketArea: "AT", BaseURL: srv.URL}, testClient())
	require.NoError(t, err)

	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC), got[0].Start)
	assert.Equal(t, 0.1, got[0].Price)
	assert.Equal(t, 15, got[0].DurationMinutes)
	assert.Equal(t, pricing.FormulaSmartEnergy, s.Info().Formula)
}

func TestSMARD(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/4169/DE-LU/index_hour.json":
			_, _ = io.WriteString(w, `{"timestamps":[1709506800000,1710111600000,1710716400000]}`)
		case "/4169/DE-LU/4169_DE-LU_hour_1710111600000.json":
			_, _ = io.WriteString(w, `{"series":[[1710190800000,50.0],[1710374400000,70.0]]}`)
		case "/4169/DE-LU/4169_DE-LU_hour_1710716400000.json":
			_, _ = io.WriteString(w, `{"series":[[1710378000000,80.0],[1710381600000,null]]}`)
		default:
			http.NotFound(w, r)
		}
	})
	s, err := NewSMARD(Spec{Provider: "smard", MarketArea: "DE-LU", BaseURL: srv.URL}, testClient())
	require.NoError(t, err)
	s.(*SMARD).now = func() time.Time { return fixedNow }

	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	// The 2024-03-11 point is older than yesterday and the null point is dropped.
	require.Len(t, got, 2)
	assert.Equal(t, 0.07, got[0].Price)
	assert.Equal(t, 0.08, got[1].Price)
}

func TestTibber(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "QUARTER_HOURLY")
		_, _ = io.WriteString(w, `{"data":{"viewer":{"homes":[{"currentSubscription":{"priceInfo":{
			"today":[{"total":0.2512,"startsAt":"2024-03-14T00:00:00.000+01:00","currency":"EUR"}],
			"tomorrow":[{"total":0.3,"startsAt":"2024-03-15T00:00:00.000+01:00","currency":"EUR"}]}}}]}}}`)
	})

	_, err := NewTibber(Spec{Provider: "tibber", MarketArea: "de"}, testClient())
	assert.Error(t, err)

	s, err := NewTibber(Spec{Provider: "tibber", MarketArea: "de", DurationMinutes: 15, Token: "secret", BaseURL: srv.URL}, testClient())
	require.NoError(t, err)
	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.2512, got[0].Price)
	assert.Equal(t, 15, got[0].DurationMinutes)
	assert.Equal(t, pricing.FormulaNone, s.Info().Formula)
}

func TestEnergyforecast(t *testing.T) {
	var query string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"forecast":{"data":[
			{"start":"2024-03-14T01:00:00+01:00","end":"2024-03-14T02:00:00+01:00","price":0.0912345678},
			{"start":"2024-03-14T00:00:00+01:00","end":"2024-03-14T01:00:00+01:00","price":0.081}]}}`)
	})

	_, err := NewEnergyforecast(Spec{Provider: "energyforecast", MarketArea: "de"}, testClient())
	assert.Error(t, err)

	s, err := NewEnergyforecast(Spec{Provider: "energyforecast", MarketArea: "DE", Token: "demo", BaseURL: srv.URL}, testClient())
	require.NoError(t, err)
	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC), got[0].Start)
	assert.Equal(t, 0.081, got[0].Price)
	assert.Equal(t, 0.091235, got[1].Price)
	assert.Equal(t, 60, got[1].DurationMinutes)
	assert.Contains(t, query, "token=demo")
	assert.Contains(t, query, "resolution=HOURLY")
	assert.Contains(t, query, "vat=0")
}

const entsoeDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3">
  <TimeSeries>
    <classificationSequence_AttributeInstanceComponent.position>1</classificationSequence_AttributeInstanceComponent.position>
    <Period>
      <timeInterval><start>2024-03-13T23:00Z</start><end>2024-03-14T00:15Z</end></timeInterval>
      <resolution>PT15M</resolution>
      <Point><position>1</position><price.amount>100</price.amount></Point>
      <Point><position>3</position><price.amount>50</price.amount></Point>
    </Period>
  </TimeSeries>
  <TimeSeries>
    <classificationSequence_AttributeInstanceComponent.position>2</classificationSequence_AttributeInstanceComponent.position>
    <Period>
      <timeInterval><start>2024-03-13T23:00Z</start><end>2024-03-14T00:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><price.amount>999</price.amount></Point>
    </Period>
  </TimeSeries>
</Publication_MarketDocument>`

func TestParseEntsoe(t *testing.T) {
	got, err := parseEntsoe([]byte(entsoeDoc))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, []float64{0.1, 0.1, 0.05, 0.05, 0.05}, []float64{got[0].Price, got[1].Price, got[2].Price, got[3].Price, got[4].Price})
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), got[4].Start)
	for _, r := range got {
		assert.Equal(t, 15, r.DurationMinutes)
	}

	_, err = parseEntsoe([]byte(`<Acknowledgement_MarketDocument><Reason><code>999</code><text>No matching data found</text></Reason></Acknowledgement_MarketDocument>`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No matching data found")

	daily := strings.Replace(entsoeDoc, "<resolution>PT15M</resolution>", "<resolution>P1D</resolution>", 1)
	_, err = parseEntsoe([]byte(daily))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P1D")
}

func TestEntsoeFetch(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tok", q.Get("securityToken"))
		assert.Equal(t, "10YAT-APG------L", q.Get("in_Domain"))
		assert.Equal(t, "202403141000", q.Get("periodStart"))
		_, _ = io.WriteString(w, entsoeDoc)
	})
	s, err := NewEntsoe(Spec{Provider: "entsoe", MarketArea: "AT", Token: "tok", BaseURL: srv.URL}, testClient())
	require.NoError(t, err)
	s.(*Entsoe).now = func() time.Time { return fixedNow }

	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestGridStatus(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/datasets/caiso_lmp_day_ahead_hourly/query/location/TH_NP15", r.URL.Path)
		assert.Equal(t, "0123456789abcdef", r.Header.Get("x-api-key"))
		assert.Equal(t, "2024-03-13", r.URL.Query().Get("start_time"))
		_, _ = io.WriteString(w, `{"status_code":200,"data":[
			{"interval_start_utc":"2024-03-14T08:00:00Z","interval_end_utc":"2024-03-14T09:00:00Z","location":"TH_NP15","lmp":42.5}]}`)
	})

	_, err := NewGridStatus(Spec{Provider: "gridstatus", Dataset: "d", Location: "l", Token: "short"}, testClient())
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "INVALID_API_KEY_FORMAT", he.Code)

	s, err := NewGridStatus(Spec{
		Provider: "gridstatus", MarketArea: "CAISO", Dataset: "caiso_lmp_day_ahead_hourly",
		Location: "TH_NP15", Token: "0123456789abcdef", BaseURL: srv.URL,
	}, testClient())
	require.NoError(t, err)
	s.(*GridStatus).now = func() time.Time { return fixedNow }

	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0425, got[0].Price)
	assert.Equal(t, "USD", s.Info().Currency)
}

func TestFileSourceAndJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.json")
	prices := []model.RawPrice{
		{Start: fixedNow.Add(time.Hour), DurationMinutes: 60, Price: 0.2},
		{Start: fixedNow, DurationMinutes: 60, Price: 0.1},
	}
	require.NoError(t, SaveRawJSON(path, prices))

	s, err := New(Spec{Provider: "file", Path: path}, nil)
	require.NoError(t, err)
	got, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Start.Equal(fixedNow))

	_, err = New(Spec{Provider: "file"}, nil)
	assert.Error(t, err)
}

type countingSource struct {
	calls int
}

func (c *countingSource) Info() Info { return Info{ID: "counting", DurationMinutes: 60} }

func (c *countingSource) Fetch(context.Context) ([]model.RawPrice, error) {
	c.calls++
	return []model.RawPrice{{Start: fixedNow, DurationMinutes: 60, Price: 1}}, nil
}

func TestCached(t *testing.T) {
	inner := &countingSource{}
	cache := NewResponseCache(time.Hour)
	now := fixedNow
	cache.now = func() time.Time { return now }
	s := WithCache(inner, cache)

	for i := 0; i < 3; i++ {
		got, err := s.Fetch(context.Background())
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	assert.Equal(t, 1, inner.calls)

	now = now.Add(2 * time.Hour)
	_, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	assert.Same(t, inner, WithCache(inner, nil))
}

func TestTidy(t *testing.T) {
	got := tidy([]model.RawPrice{
		{Start: fixedNow.Add(time.Hour), Price: 2},
		{Start: fixedNow, Price: 1},
		{Start: fixedNow, Price: 9},
	})
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Price)
	assert.True(t, strings.HasPrefix(got[1].Start.Format(time.RFC3339), "2024-03-14T11"))
}
