package payrun

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/roster"
)

// Source supplies the payslip inputs a run snapshots. PriorYTD is filled
// in by the engine.
type Source interface {
	Inputs(ctx context.Context, org generic.OrganizationID, period generic.Period, freq Frequency, payPoints []string) ([]payslip.Input, error)
}

// UnpaidLeave reports approved unpaid leave inside a period.
type UnpaidLeave interface {
	UnpaidDays(ctx context.Context, org generic.OrganizationID, employeeID generic.EntityID, period generic.Period) (decimal.Decimal, error)
}

// Settlement is the final-pay content for a departing employee. It
// replaces the regular salary lines in the run covering the last working
// day.
type Settlement struct {
	Earnings   []payslip.EarningLine
	Deductions []payslip.DeductionLine
}

// Settlements looks up a termination awaiting payroll in period.
type Settlements interface {
	Settlement(ctx context.Context, org generic.OrganizationID, employeeID generic.EntityID, period generic.Period) (Settlement, bool, error)
}

// =============================================================================
// ROSTER SOURCE
// =============================================================================

// RosterSource builds inputs from compensation profiles. Monthly amounts
// are scaled to the run frequency.
type RosterSource struct {
	Profiles    roster.Store
	Leave       UnpaidLeave // optional
	Settlements Settlements // optional
	Definitions payslip.Definitions
}

func (s *RosterSource) Inputs(ctx context.Context, org generic.OrganizationID, period generic.Period, freq Frequency, payPoints []string) ([]payslip.Input, error) {
	ppy := freq.PeriodsPerYear()
	if ppy == 0 {
		return nil, fmt.Errorf("frequency %s: %w", freq, generic.ErrValidationFailed)
	}
	scale := decimal.NewFromInt(12).Div(decimal.NewFromInt(int64(ppy)))

	profiles, err := s.Profiles.ListProfiles(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	var inputs []payslip.Input
	for _, p := range profiles {
		if !p.EmployedDuring(period) || !onPayPoint(p.Employee.PayPoint, payPoints) {
			continue
		}
		in := payslip.Input{
			Employee:       p.Employee,
			Period:         period,
			PeriodsPerYear: ppy,
			Definitions:    s.Definitions,
			DailyRate:      p.DailyRate(),
		}

		if s.Settlements != nil {
			st, ok, err := s.Settlements.Settlement(ctx, org, p.Employee.ID, period)
			if err != nil {
				return nil, fmt.Errorf("settlement for %s: %w", p.Employee.ID, err)
			}
			if ok {
				in.Earnings = append([]payslip.EarningLine(nil), st.Earnings...)
				in.Deductions = append([]payslip.DeductionLine(nil), st.Deductions...)
				in.Definitions = payslip.Definitions{RequiredDeductions: s.Definitions.RequiredDeductions}
				inputs = append(inputs, in)
				continue
			}
		}

		in.Earnings = append(in.Earnings, payslip.EarningLine{
			Code:     payslip.CodeBasic,
			Name:     "Basic salary",
			Amount:   p.MonthlySalary.Mul(scale),
			Taxable:  true,
			Required: true,
		})
		for _, a := range p.Allowances {
			a.Amount = a.Amount.Mul(scale)
			in.Earnings = append(in.Earnings, a)
		}
		for _, d := range p.Deductions {
			d.Amount = d.Amount.Mul(scale)
			in.Deductions = append(in.Deductions, d)
		}

		if s.Leave != nil {
			days, err := s.Leave.UnpaidDays(ctx, org, p.Employee.ID, period)
			if err != nil {
				return nil, fmt.Errorf("unpaid leave for %s: %w", p.Employee.ID, err)
			}
			in.UnpaidLeaveDays = days
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func onPayPoint(payPoint string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, p := range filter {
		if p == payPoint {
			return true
		}
	}
	return false
}
