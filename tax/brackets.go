/*
Package tax provides a table-driven implementation of payslip.TaxRules.

PURPOSE:
  Statutory deductions differ by jurisdiction and change every tax year,
  so the payslip calculator only sees the payslip.TaxRules capability.
  BracketRules is the implementation shipped with the server: a
  progressive annual bracket table for PAYE plus flat-rate social
  contributions.

HOW PAYE IS COMPUTED:
  annual  = taxable gross x periods per year
  bracket = last bracket whose threshold <= annual
  tax     = bracket.base + (annual - bracket.threshold) x bracket.rate
  tax     = max(0, tax - rebate)
  period  = tax / periods per year, rounded to currency precision

CONTRIBUTIONS:
  - UIF: rate x gross, capped per month, paid equally by employee and employer
  - SDL: rate x gross, employer only

SEE ALSO:
  - payslip/types.go: TaxRules capability
  - factory/tax.go: JSON tax tables
*/
package tax

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payslip"
)

// Bracket is one row of an annual progressive table.
type Bracket struct {
	Threshold decimal.Decimal // annual income where the bracket starts
	Base      decimal.Decimal // tax due on income up to Threshold
	Rate      decimal.Decimal // marginal rate above Threshold
}

// Table is one tax year's configuration.
type Table struct {
	Name     string
	Brackets []Bracket
	Rebate   decimal.Decimal // annual

	UIFRate       decimal.Decimal
	UIFMonthlyCap decimal.Decimal // zero means uncapped
	SDLRate       decimal.Decimal
}

// Validate checks the table is usable. Brackets must be strictly
// ascending by threshold and every rate must lie in [0, 1].
func (t Table) Validate() error {
	var codes, msgs []string
	fail := func(code, msg string) {
		codes = append(codes, code)
		msgs = append(msgs, msg)
	}

	if len(t.Brackets) == 0 {
		fail("TAX_BRACKETS_REQUIRED", "at least one bracket is required")
	}
	for i, b := range t.Brackets {
		if !validRate(b.Rate) {
			fail("TAX_RATE_INVALID", fmt.Sprintf("bracket %d: rate %s outside [0, 1]", i, b.Rate))
		}
		if i > 0 && !b.Threshold.GreaterThan(t.Brackets[i-1].Threshold) {
			fail("TAX_BRACKETS_UNORDERED", fmt.Sprintf("bracket %d: threshold %s not above previous", i, b.Threshold))
		}
	}
	if !validRate(t.UIFRate) || !validRate(t.SDLRate) {
		fail("CONTRIBUTION_RATE_INVALID", "contribution rates must lie in [0, 1]")
	}
	if t.UIFMonthlyCap.IsNegative() || t.Rebate.IsNegative() {
		fail("TAX_AMOUNT_NEGATIVE", "rebate and caps cannot be negative")
	}

	if len(codes) > 0 {
		return &generic.ValidationFailedError{Codes: codes, Messages: msgs}
	}
	return nil
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(decimal.NewFromInt(1))
}

// BracketRules implements payslip.TaxRules over a Table.
type BracketRules struct {
	Table    Table
	Currency generic.Currency
}

// NewBracketRules returns rules over a copy of t with brackets sorted.
func NewBracketRules(t Table, currency generic.Currency) (*BracketRules, error) {
	t.Brackets = append([]Bracket(nil), t.Brackets...)
	sort.SliceStable(t.Brackets, func(i, j int) bool {
		return t.Brackets[i].Threshold.LessThan(t.Brackets[j].Threshold)
	})
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("tax table %q: %w", t.Name, err)
	}
	return &BracketRules{Table: t, Currency: currency}, nil
}

// Statutory implements payslip.TaxRules.
func (r *BracketRules) Statutory(in payslip.TaxInput) ([]payslip.StatutoryDeduction, error) {
	if in.PeriodsPerYear <= 0 {
		return nil, fmt.Errorf("periods per year must be positive, got %d", in.PeriodsPerYear)
	}
	if len(r.Table.Brackets) == 0 {
		return nil, fmt.Errorf("tax table %q has no brackets", r.Table.Name)
	}

	periods := decimal.NewFromInt(int64(in.PeriodsPerYear))
	out := []payslip.StatutoryDeduction{{
		Code:     payslip.CodePAYE,
		Name:     "PAYE",
		Employee: r.Currency.Round(r.AnnualTax(in.TaxableGross.Mul(periods)).Div(periods)),
		Tax:      true,
	}}

	gross := decimal.Max(in.Gross, decimal.Zero)
	if r.Table.UIFRate.IsPositive() {
		uif := gross.Mul(r.Table.UIFRate)
		if r.Table.UIFMonthlyCap.IsPositive() {
			periodCap := r.Table.UIFMonthlyCap.Mul(decimal.NewFromInt(12)).Div(periods)
			uif = decimal.Min(uif, periodCap)
		}
		uif = r.Currency.Round(uif)
		out = append(out, payslip.StatutoryDeduction{
			Code: payslip.CodeUIF, Name: "UIF", Employee: uif, Employer: uif,
		})
	}
	if r.Table.SDLRate.IsPositive() {
		out = append(out, payslip.StatutoryDeduction{
			Code: payslip.CodeSDL, Name: "SDL", Employer: r.Currency.Round(gross.Mul(r.Table.SDLRate)),
		})
	}
	return out, nil
}

// AnnualTax returns tax due on an annual taxable income after the rebate.
func (r *BracketRules) AnnualTax(annual decimal.Decimal) decimal.Decimal {
	if !annual.IsPositive() {
		return decimal.Zero
	}
	var b Bracket
	for _, candidate := range r.Table.Brackets {
		if candidate.Threshold.GreaterThan(annual) {
			break
		}
		b = candidate
	}
	due := b.Base.Add(annual.Sub(b.Threshold).Mul(b.Rate)).Sub(r.Table.Rebate)
	return decimal.Max(due, decimal.Zero)
}
