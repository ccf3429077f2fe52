package model

import (
	"fmt"
	"strings"
)

// Localize holds display units for one currency. Lookup only; no conversion.
type Localize struct {
	UOMPerMWh      string `json:"uom_per_mwh"`
	UOMPerKWh      string `json:"uom_per_kwh"`
	AttrNamePerMWh string `json:"attr_name_per_mwh"`
	AttrNamePerKWh string `json:"attr_name_per_kwh"`
	// SubunitFactor converts currency/kWh to the display subunit (ct, pence, cents).
	SubunitFactor float64 `json:"subunit_factor"`
}

var Currencies = map[string]Localize{
	"EUR": {
		UOMPerMWh:      "EUR/MWh",
		UOMPerKWh:      "ct/kWh",
		AttrNamePerMWh: "price_eur_per_mwh",
		AttrNamePerKWh: "price_ct_per_kwh",
		SubunitFactor:  100,
	},
	"GBP": {
		UOMPerMWh:      "GBP/MWh",
		UOMPerKWh:      "pence/kWh",
		AttrNamePerMWh: "price_gbp_per_mwh",
		AttrNamePerKWh: "price_pence_per_kwh",
		SubunitFactor:  100,
	},
	"USD": {
		UOMPerMWh:      "USD/MWh",
		UOMPerKWh:      "cents/kWh",
		AttrNamePerMWh: "price_usd_per_mwh",
		AttrNamePerKWh: "price_cents_per_kwh",
		SubunitFactor:  100,
	},
}

func LookupCurrency(code string) (Localize, error) {
	l, ok := Currencies[strings.ToUpper(code)]
	if !ok {
		return Localize{}, fmt.Errorf("unsupported currency %q", code)
	}
	return l, nil
}
