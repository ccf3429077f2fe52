// Package pricing turns wholesale spot prices into what a household pays.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Formula selects the order surcharges and tax are applied in.
type Formula string

const (
	// FormulaStandard: p + |p|*percent/100 + absolute, then tax on top.
	FormulaStandard Formula = "standard"
	// FormulaSmartEnergy: tax first, then absolute, then percent on top.
	FormulaSmartEnergy Formula = "smartenergy"
	// FormulaNone passes prices through; the source already reports totals.
	FormulaNone Formula = "none"
)

const NetPrecision = 6

func ParseFormula(s string) (Formula, error) {
	switch Formula(strings.ToLower(strings.TrimSpace(s))) {
	case FormulaStandard, "":
		return FormulaStandard, nil
	case FormulaSmartEnergy:
		return FormulaSmartEnergy, nil
	case FormulaNone:
		return FormulaNone, nil
	default:
		return "", fmt.Errorf("invalid net price formula %q", s)
	}
}

// Surcharge holds the retail add-ons. Percent and Tax are percentages;
// Absolute is in the curve's price unit (currency per kWh).
type Surcharge struct {
	Percent  float64 `yaml:"percent" json:"percent"`
	Absolute float64 `yaml:"absolute" json:"absolute"`
	Tax      float64 `yaml:"tax" json:"tax"`
}

// DefaultSurcharge matches a typical German retail tariff, in EUR/kWh.
func DefaultSurcharge() Surcharge {
	return Surcharge{Percent: 3.0, Absolute: 0.1193, Tax: 19.0}
}

func (s Surcharge) Validate() error {
	if s.Percent < 0 || s.Tax < 0 {
		return fmt.Errorf("surcharge percent and tax must be >= 0 (got %.2f, %.2f)", s.Percent, s.Tax)
	}
	return nil
}

// Net applies s to price using formula f, rounded to NetPrecision places.
func (s Surcharge) Net(price float64, f Formula) float64 {
	hundred := decimal.NewFromInt(100)
	p := decimal.NewFromFloat(price)
	pct := decimal.NewFromFloat(s.Percent).Div(hundred)
	abs := decimal.NewFromFloat(s.Absolute)
	tax := decimal.NewFromInt(1).Add(decimal.NewFromFloat(s.Tax).Div(hundred))

	switch f {
	case FormulaNone:
	case FormulaSmartEnergy:
		p = p.Mul(tax).Add(abs).Mul(decimal.NewFromInt(1).Add(pct))
	default:
		p = p.Add(p.Abs().Mul(pct)).Add(abs).Mul(tax)
	}
	return p.Round(NetPrecision).InexactFloat64()
}
