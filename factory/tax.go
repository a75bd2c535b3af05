package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/tax"
	"github.com/warp/payroll-engine/termination"
)

// =============================================================================
// TAX TABLES
// =============================================================================

// TaxTableJSON is one tax year:
//
//	{
//	  "name": "ZA 2025",
//	  "brackets": [{"threshold": 0, "base": 0, "rate": 0.18}, ...],
//	  "rebate": 17235,
//	  "uif": {"rate": 0.01, "monthly_cap": 177.12},
//	  "sdl": {"rate": 0.01}
//	}
type TaxTableJSON struct {
	Name     string            `json:"name"`
	Brackets []BracketJSON     `json:"brackets"`
	Rebate   decimal.Decimal   `json:"rebate"`
	UIF      *ContributionJSON `json:"uif,omitempty"`
	SDL      *ContributionJSON `json:"sdl,omitempty"`
}

type BracketJSON struct {
	Threshold decimal.Decimal `json:"threshold"`
	Base      decimal.Decimal `json:"base"`
	Rate      decimal.Decimal `json:"rate"`
}

type ContributionJSON struct {
	Rate       decimal.Decimal `json:"rate"`
	MonthlyCap decimal.Decimal `json:"monthly_cap,omitempty"`
}

// ParseTaxRules parses a tax table and returns rules ready for the
// payslip calculator.
func (f *PolicyFactory) ParseTaxRules(jsonStr string, currency generic.Currency) (*tax.BracketRules, error) {
	var tj TaxTableJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return nil, fmt.Errorf("failed to parse tax table JSON: %w", err)
	}
	return tax.NewBracketRules(f.TaxTableFromJSON(tj), currency)
}

// TaxTableFromJSON converts TaxTableJSON to a tax.Table. Validation
// happens in tax.NewBracketRules.
func (f *PolicyFactory) TaxTableFromJSON(tj TaxTableJSON) tax.Table {
	t := tax.Table{Name: tj.Name, Rebate: tj.Rebate}
	for _, b := range tj.Brackets {
		t.Brackets = append(t.Brackets, tax.Bracket{Threshold: b.Threshold, Base: b.Base, Rate: b.Rate})
	}
	if tj.UIF != nil {
		t.UIFRate = tj.UIF.Rate
		t.UIFMonthlyCap = tj.UIF.MonthlyCap
	}
	if tj.SDL != nil {
		t.SDLRate = tj.SDL.Rate
	}
	return t
}

// =============================================================================
// SEVERANCE
// =============================================================================

// SeveranceJSON selects a severance formula:
//
//	{"type": "days_per_year", "days": 7}
//	{"type": "none"}
type SeveranceJSON struct {
	Type string          `json:"type"`
	Days decimal.Decimal `json:"days,omitempty"`
}

// ParseSeverance parses a severance formula.
func (f *PolicyFactory) ParseSeverance(jsonStr string) (termination.SeverancePolicy, error) {
	var sj SeveranceJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse severance JSON: %w", err)
	}
	return f.SeveranceFromJSON(sj)
}

func (f *PolicyFactory) SeveranceFromJSON(sj SeveranceJSON) (termination.SeverancePolicy, error) {
	switch sj.Type {
	case "days_per_year":
		if !sj.Days.IsPositive() {
			return nil, generic.NewValidationFailed("SEVERANCE_DAYS_INVALID", "days_per_year requires a positive number of days")
		}
		return termination.DaysPerYear{Days: sj.Days}, nil
	case "none", "":
		return termination.SeveranceFunc(func(termination.SeveranceInput) (decimal.Decimal, error) {
			return decimal.Zero, nil
		}), nil
	}
	return nil, generic.NewValidationFailed("SEVERANCE_TYPE_INVALID", fmt.Sprintf("unknown severance type %q", sj.Type))
}
