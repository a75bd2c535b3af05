/*
Package payslip computes one employee's gross-to-net for one pay period.

PURPOSE:
  Calculate is a pure function of its Input: the same input always gives
  the same Payslip, bit for bit. The payrun engine relies on this to
  recompute freely while a run is in draft.

KEY CONCEPTS:
  - EarningLine: taxable/required flags, optional hours x rate
  - DeductionLine: statutory (from TaxRules) or voluntary, skippable
    unless required
  - TaxRules: injected capability mapping gross to statutory deductions
  - Errors: recorded on the payslip as {code, message} issues; the
    calculation never aborts, so a reviewer sees the faulty figure

ROUNDING:
  Every line amount is rounded half-to-even at currency precision before
  summation, so totals always equal the sum of the figures shown.

SEE ALSO:
  - calculator.go: The calculation
  - edit.go: Line edits and the required-line rule
  - tax/brackets.go: Bracket-based TaxRules implementation
*/
package payslip

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/validation"
)

// Line codes the engine itself produces.
const (
	CodeBasic       = "BASIC"
	CodePAYE        = "PAYE"
	CodeUIF         = "UIF"
	CodeSDL         = "SDL"
	CodeUnpaidLeave = "UNPAID_LEAVE"
)

// =============================================================================
// LINES
// =============================================================================

type EarningLine struct {
	Code          string
	Name          string
	Amount        decimal.Decimal
	Hours         *decimal.Decimal
	Rate          *decimal.Decimal
	Taxable       bool
	Required      bool
	AllowNegative bool
	Note          string
}

type DeductionLine struct {
	Code      string
	Name      string
	Amount    decimal.Decimal
	Required  bool
	Skipped   bool
	Statutory bool
	Tax       bool // counts towards year-to-date tax
	Note      string
}

// EmployerContribution is a statutory cost borne by the employer. It is
// reported on the payslip but never deducted from the employee.
type EmployerContribution struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// LineKind is a closed enum over the two line families.
type LineKind int

const (
	LineEarning LineKind = iota + 1
	LineDeduction
)

func (k LineKind) String() string {
	switch k {
	case LineEarning:
		return "earning"
	case LineDeduction:
		return "deduction"
	}
	return fmt.Sprintf("LineKind(%d)", int(k))
}

// =============================================================================
// TAX RULES CAPABILITY
// =============================================================================

// TaxInput is what the statutory computation sees.
type TaxInput struct {
	EmployeeID     generic.EntityID
	Period         generic.Period
	Gross          decimal.Decimal
	TaxableGross   decimal.Decimal
	PeriodsPerYear int
	YTD            YTD
}

// StatutoryDeduction is one statutory line. Employee is deducted from the
// employee, Employer is reported as an employer contribution; either may
// be zero.
type StatutoryDeduction struct {
	Code     string
	Name     string
	Employee decimal.Decimal
	Employer decimal.Decimal
	Tax      bool
}

// TaxRules maps gross pay to statutory deductions. Implementations must
// be deterministic and free of side effects.
type TaxRules interface {
	Statutory(in TaxInput) ([]StatutoryDeduction, error)
}

// TaxRulesFunc adapts a function to TaxRules.
type TaxRulesFunc func(in TaxInput) ([]StatutoryDeduction, error)

func (f TaxRulesFunc) Statutory(in TaxInput) ([]StatutoryDeduction, error) { return f(in) }

// =============================================================================
// INPUT
// =============================================================================

// YTD is a year-to-date snapshot.
type YTD struct {
	Gross decimal.Decimal
	Tax   decimal.Decimal
	Net   decimal.Decimal
}

// Definitions lists the line codes that must be present on the payslip.
type Definitions struct {
	RequiredEarnings   []string
	RequiredDeductions []string
}

func (d Definitions) requiresEarning(code string) bool   { return contains(d.RequiredEarnings, code) }
func (d Definitions) requiresDeduction(code string) bool { return contains(d.RequiredDeductions, code) }

// StatutoryOverride replaces a computed statutory amount after review.
type StatutoryOverride struct {
	Amount *decimal.Decimal
	Note   string
}

// Input is everything the calculation depends on.
type Input struct {
	Employee       generic.Employee
	Period         generic.Period
	PeriodsPerYear int

	Earnings   []EarningLine
	Deductions []DeductionLine // voluntary and debt lines
	Definitions

	PriorYTD YTD

	// Approved unpaid leave in the period, charged at DailyRate.
	UnpaidLeaveDays decimal.Decimal
	DailyRate       decimal.Decimal

	StatutoryOverrides map[string]StatutoryOverride
}

// Clone returns a deep copy so edits never alias the original.
func (in Input) Clone() Input {
	out := in
	out.Earnings = append([]EarningLine(nil), in.Earnings...)
	out.Deductions = append([]DeductionLine(nil), in.Deductions...)
	out.RequiredEarnings = append([]string(nil), in.RequiredEarnings...)
	out.RequiredDeductions = append([]string(nil), in.RequiredDeductions...)
	if in.StatutoryOverrides != nil {
		out.StatutoryOverrides = make(map[string]StatutoryOverride, len(in.StatutoryOverrides))
		for k, v := range in.StatutoryOverrides {
			out.StatutoryOverrides[k] = v
		}
	}
	return out
}

// =============================================================================
// PAYSLIP
// =============================================================================

type Payslip struct {
	EmployeeID   generic.EntityID
	EmployeeName string
	Period       generic.Period

	Earnings              []EarningLine
	Deductions            []DeductionLine
	EmployerContributions []EmployerContribution

	Gross           decimal.Decimal
	TaxableGross    decimal.Decimal
	TotalDeductions decimal.Decimal
	Net             decimal.Decimal

	HasErrors bool
	Errors    []validation.Issue

	YTDGross decimal.Decimal
	YTDTax   decimal.Decimal
	YTDNet   decimal.Decimal
}

// Clone returns a copy that shares no slices with p.
func (p Payslip) Clone() Payslip {
	out := p
	out.Earnings = append([]EarningLine(nil), p.Earnings...)
	out.Deductions = append([]DeductionLine(nil), p.Deductions...)
	out.EmployerContributions = append([]EmployerContribution(nil), p.EmployerContributions...)
	out.Errors = append([]validation.Issue(nil), p.Errors...)
	return out
}

// Deduction returns the non-skipped amount for a code, zero if absent.
func (p Payslip) Deduction(code string) decimal.Decimal {
	for _, d := range p.Deductions {
		if d.Code == code && !d.Skipped {
			return d.Amount
		}
	}
	return decimal.Zero
}

// Tax sums the non-skipped tax deductions.
func (p Payslip) Tax() decimal.Decimal {
	total := decimal.Zero
	for _, d := range p.Deductions {
		if d.Tax && !d.Skipped {
			total = total.Add(d.Amount)
		}
	}
	return total
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
