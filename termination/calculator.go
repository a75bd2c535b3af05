package termination

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/roster"
)

// =============================================================================
// CAPABILITIES
// =============================================================================

type SeveranceInput struct {
	Reason          Reason
	CompletedYears  int
	DailyRate       decimal.Decimal
	MonthlySalary   decimal.Decimal
	StartDate       generic.TimePoint
	TerminationDate generic.TimePoint
}

// SeverancePolicy is the jurisdiction-specific severance formula. It is
// only consulted for reasons that qualify.
type SeverancePolicy interface {
	Severance(in SeveranceInput) (decimal.Decimal, error)
}

type SeveranceFunc func(in SeveranceInput) (decimal.Decimal, error)

func (f SeveranceFunc) Severance(in SeveranceInput) (decimal.Decimal, error) { return f(in) }

// DaysPerYear pays a fixed number of days per completed year of service.
type DaysPerYear struct {
	Days decimal.Decimal
}

func (d DaysPerYear) Severance(in SeveranceInput) (decimal.Decimal, error) {
	return d.Days.Mul(decimal.NewFromInt(int64(in.CompletedYears))).Mul(in.DailyRate), nil
}

// LeaveProjector projects a balance to a date without persisting it.
// *leave.Ledger satisfies it.
type LeaveProjector interface {
	Project(ctx context.Context, lt leave.LeaveType, emp generic.Employee, asOf generic.TimePoint) (leave.Balance, error)
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Payslip    payslip.Calculator
	Leave      LeaveProjector
	LeaveTypes leave.TypeStore
	Calendar   generic.Calendar
	Severance  SeverancePolicy

	// PeriodsPerYear annualises the final payslip for tax. Zero = 12.
	PeriodsPerYear int
}

// Compute derives the settlement for t. It has no side effects.
func (c *Calculator) Compute(ctx context.Context, t Termination, profile roster.Profile) (PayComponents, error) {
	emp := profile.Employee
	cur := c.Payslip.Currency
	rate := profile.DailyRate()
	comp := PayComponents{DailyRate: rate}

	// Final salary
	from := t.paidThrough().AddDays(1)
	if from.Before(emp.StartDate) {
		from = emp.StartDate
	}
	if !t.LastWorkingDay.IsZero() && !from.After(t.LastWorkingDay) {
		comp.FinalSalaryDays = generic.WorkingDaysBetween(c.Calendar, emp.ID, from, t.LastWorkingDay)
	}
	comp.FinalSalary = cur.Round(decimal.NewFromInt(int64(comp.FinalSalaryDays)).Mul(rate))

	// Notice
	if t.PaidInLieu && t.NoticeDays > 0 {
		comp.NoticePay = cur.Round(decimal.NewFromInt(int64(t.NoticeDays)).Mul(rate))
	}

	// Severance
	comp.SeverancePay = decimal.Zero
	if t.Reason.QualifiesForSeverance() && c.Severance != nil {
		amount, err := c.Severance.Severance(SeveranceInput{
			Reason:          t.Reason,
			CompletedYears:  generic.CompletedYears(emp.StartDate, t.TerminationDate),
			DailyRate:       rate,
			MonthlySalary:   profile.MonthlySalary,
			StartDate:       emp.StartDate,
			TerminationDate: t.TerminationDate,
		})
		if err != nil {
			return PayComponents{}, fmt.Errorf("severance: %w", err)
		}
		comp.SeverancePay = cur.Round(amount)
	}

	// Leave
	if err := c.leave(ctx, t, emp, &comp); err != nil {
		return PayComponents{}, err
	}
	comp.LeavePayoutAmount = cur.Round(comp.LeavePayoutDays.Mul(rate))

	// Earnings
	earnings := []payslip.EarningLine{{
		Code:    CodeFinalSalary,
		Name:    "Final salary",
		Amount:  comp.FinalSalary,
		Taxable: true,
		Note:    fmt.Sprintf("%d working days", comp.FinalSalaryDays),
	}}
	add := func(code, name string, amount decimal.Decimal, note string) {
		if amount.IsZero() {
			return
		}
		earnings = append(earnings, payslip.EarningLine{Code: code, Name: name, Amount: amount, Taxable: true, Note: note})
	}
	add(CodeNoticePay, "Notice pay", comp.NoticePay, fmt.Sprintf("%d days in lieu", t.NoticeDays))
	add(CodeSeverance, "Severance pay", comp.SeverancePay, t.Reason.String())

	comp.ProRataEarnings = decimal.Zero
	if !t.LastWorkingDay.IsZero() {
		y, m := t.LastWorkingDay.Year(), t.LastWorkingDay.Month()
		fraction := decimal.NewFromInt(int64(t.LastWorkingDay.Day())).Div(decimal.NewFromInt(int64(generic.DaysInMonth(y, m))))
		for _, a := range profile.Allowances {
			amount := cur.Round(a.Amount.Mul(fraction))
			comp.ProRataEarnings = comp.ProRataEarnings.Add(amount)
			if !amount.IsZero() {
				earnings = append(earnings, payslip.EarningLine{
					Code:    ProRataPrefix + a.Code,
					Name:    a.Name + " (pro-rata)",
					Amount:  amount,
					Taxable: a.Taxable,
					Note:    fmt.Sprintf("%d/%d days", t.LastWorkingDay.Day(), generic.DaysInMonth(y, m)),
				})
			}
		}
	}
	add(CodeLeavePayout, "Leave payout", comp.LeavePayoutAmount, comp.LeavePayoutDays.String()+" days")

	// Deductions
	var deductions []payslip.DeductionLine
	if comp.LeaveOverdrawn.IsPositive() {
		deductions = append(deductions, payslip.DeductionLine{
			Code:   CodeLeaveRecovery,
			Name:   "Leave overdrawn recovery",
			Amount: cur.Round(comp.LeaveOverdrawn.Mul(rate)),
			Note:   comp.LeaveOverdrawn.String() + " days",
		})
	}
	for _, d := range profile.Debts {
		if !d.Outstanding.IsPositive() {
			continue
		}
		deductions = append(deductions, payslip.DeductionLine{
			Code:     d.Code,
			Name:     d.Name,
			Amount:   d.Outstanding,
			Required: d.Required,
		})
	}

	in := payslip.Input{
		Employee:       emp,
		Period:         t.FinalPeriod(),
		PeriodsPerYear: c.periodsPerYear(),
		Earnings:       earnings,
		Deductions:     deductions,
	}
	in, err := c.Payslip.ApplyEdits(in, t.Edits...)
	if err != nil {
		return PayComponents{}, err
	}
	p := c.Payslip.Calculate(in)

	comp.Earnings = p.Earnings
	comp.Deductions = p.Deductions
	comp.EmployerContributions = p.EmployerContributions
	comp.Errors = p.Errors
	comp.Summary = Summary{
		Gross:      p.Gross,
		Deductions: p.TotalDeductions,
		Net:        p.Net,
		PAYE:       p.Deduction(payslip.CodePAYE),
		UIF:        p.Deduction(payslip.CodeUIF),
	}
	return comp, nil
}

// leave sums projected available days over paid, active leave types.
func (c *Calculator) leave(ctx context.Context, t Termination, emp generic.Employee, comp *PayComponents) error {
	comp.LeavePayoutDays = decimal.Zero
	comp.LeaveOverdrawn = decimal.Zero
	if c.Leave == nil || c.LeaveTypes == nil || t.TerminationDate.IsZero() {
		return nil
	}
	types, err := c.LeaveTypes.ListLeaveTypes(ctx, emp.OrganizationID)
	if err != nil {
		return fmt.Errorf("list leave types: %w", err)
	}
	for _, lt := range types {
		if !lt.IsPaid || !lt.IsActive {
			continue
		}
		b, err := c.Leave.Project(ctx, lt, emp, t.TerminationDate)
		if err != nil {
			return fmt.Errorf("project %s: %w", lt.ID, err)
		}
		avail := b.Available()
		switch {
		case avail.IsPositive():
			comp.LeavePayoutDays = comp.LeavePayoutDays.Add(avail)
		case avail.IsNegative():
			comp.LeaveOverdrawn = comp.LeaveOverdrawn.Add(avail.Neg())
		}
	}
	return nil
}

func (c *Calculator) periodsPerYear() int {
	if c.PeriodsPerYear <= 0 {
		return 12
	}
	return c.PeriodsPerYear
}
