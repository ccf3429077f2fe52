package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
)

const tibberURL = "https://api.tibber.com/v1-beta/gql"

const tibberQuery = `{
  viewer {
    homes {
      currentSubscription {
        priceInfo(resolution: %s) {
          today { total startsAt currency }
          tomorrow { total startsAt currency }
        }
      }
    }
  }
}`

var tibberAreas = map[string]struct{}{"de": {}, "nl": {}, "no": {}, "se": {}}

// Tibber returns the customer's total price (energy + tax + fees) per kWh,
// so no surcharge is applied on top.
type Tibber struct {
	info   Info
	url    string
	token  string
	client *Client
}

func NewTibber(spec Spec, client *Client) (Source, error) {
	spec.MarketArea = strings.ToLower(spec.MarketArea)
	if err := checkMarketArea("tibber", spec.MarketArea, tibberAreas); err != nil {
		return nil, err
	}
	if err := checkDuration("tibber", spec.DurationMinutes, 15, 60); err != nil {
		return nil, err
	}
	if spec.Token == "" {
		return nil, errors.New("tibber: API token is required")
	}
	u := spec.BaseURL
	if u == "" {
		u = tibberURL
	}
	return &Tibber{
		info:   spec.info("Tibber API v1-beta", 60, model.ModeCompress, pricing.FormulaNone),
		url:    u,
		token:  spec.Token,
		client: client,
	}, nil
}

func (t *Tibber) Info() Info { return t.info }

type tibberPrice struct {
	Total    *float64  `json:"total"`
	StartsAt time.Time `json:"startsAt"`
	Currency string    `json:"currency"`
}

type tibberResponse struct {
	Data struct {
		Viewer struct {
			Homes []struct {
				CurrentSubscription *struct {
					PriceInfo struct {
						Today    []tibberPrice `json:"today"`
						Tomorrow []tibberPrice `json:"tomorrow"`
					} `json:"priceInfo"`
				} `json:"currentSubscription"`
			} `json:"homes"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (t *Tibber) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	resolution := "HOURLY"
	if t.info.DurationMinutes == 15 {
		resolution = "QUARTER_HOURLY"
	}
	payload, err := json.Marshal(map[string]string{"query": fmt.Sprintf(tibberQuery, resolution)})
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.token)
	header.Set("Content-Type", "application/json")

	body, err := t.client.Do(ctx, Request{Provider: "tibber", Method: http.MethodPost, URL: t.url, Header: header, Body: payload})
	if err != nil {
		return nil, err
	}
	var resp tibberResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("tibber: failed to decode response: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("tibber: %s", resp.Errors[0].Message)
	}
	homes := resp.Data.Viewer.Homes
	if len(homes) == 0 || homes[0].CurrentSubscription == nil {
		return nil, errors.New("tibber: account has no home with an active subscription")
	}

	info := homes[0].CurrentSubscription.PriceInfo
	out := make([]model.RawPrice, 0, len(info.Today)+len(info.Tomorrow))
	for _, p := range append(info.Today, info.Tomorrow...) {
		if p.Total == nil {
			continue
		}
		out = append(out, model.RawPrice{
			Start:           p.StartsAt.UTC(),
			DurationMinutes: t.info.DurationMinutes,
			Price:           round6(*p.Total),
		})
	}
	return tidy(out), nil
}
