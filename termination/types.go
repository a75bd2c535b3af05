/*
Package termination computes and tracks an employee's final settlement.

LIFECYCLE:

	draft --submit--> pending_payroll --complete--> completed

  - submit runs the settlement rules; blocking errors keep the termination
    in draft, warnings are returned alongside the result
  - complete requires the final payrun to be finalized for the employee
  - completed terminations are immutable

COMPONENTS:
  final salary   working days after the paid-through date up to the last
                 working day x daily rate
  notice pay     notice days x daily rate, only when paid in lieu
  severance      SeverancePolicy, zero for reasons that do not qualify
  pro-rata       monthly allowances x calendar-day fraction of the final month
  leave payout   positive available balance of paid, active leave types,
                 projected to the termination date, x daily rate

  Overdrawn paid leave becomes a skippable LEAVE_RECOVERY deduction.
  Statutory deductions come from the payslip calculator on the combined
  gross, so the summary satisfies net = gross - deductions.

SEE ALSO:
  - calculator.go: Component computation
  - validate.go: Settlement rules
  - service.go: Lifecycle
*/
package termination

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/validation"
)

// Line codes on a settlement.
const (
	CodeFinalSalary   = "FINAL_SALARY"
	CodeNoticePay     = "NOTICE_PAY"
	CodeSeverance     = "SEVERANCE"
	CodeLeavePayout   = "LEAVE_PAYOUT"
	CodeLeaveRecovery = "LEAVE_RECOVERY"
	ProRataPrefix     = "PRORATA_"
)

// =============================================================================
// REASON
// =============================================================================

type Reason int

const (
	ReasonResignation Reason = iota + 1
	ReasonDismissal
	ReasonRetrenchment
	ReasonRetirement
	ReasonDeath
	ReasonContractEnd
	ReasonMutualAgreement
)

func (r Reason) String() string {
	switch r {
	case ReasonResignation:
		return "resignation"
	case ReasonDismissal:
		return "dismissal"
	case ReasonRetrenchment:
		return "retrenchment"
	case ReasonRetirement:
		return "retirement"
	case ReasonDeath:
		return "death"
	case ReasonContractEnd:
		return "contract_end"
	case ReasonMutualAgreement:
		return "mutual_agreement"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

func ParseReason(s string) (Reason, error) {
	switch s {
	case "resignation":
		return ReasonResignation, nil
	case "dismissal":
		return ReasonDismissal, nil
	case "retrenchment":
		return ReasonRetrenchment, nil
	case "retirement":
		return ReasonRetirement, nil
	case "death":
		return ReasonDeath, nil
	case "contract_end":
		return ReasonContractEnd, nil
	case "mutual_agreement":
		return ReasonMutualAgreement, nil
	}
	return 0, fmt.Errorf("unknown termination reason %q", s)
}

// QualifiesForSeverance reports whether the reason entitles the employee
// to severance pay.
func (r Reason) QualifiesForSeverance() bool {
	switch r {
	case ReasonRetrenchment, ReasonMutualAgreement:
		return true
	case ReasonResignation, ReasonDismissal, ReasonRetirement, ReasonDeath, ReasonContractEnd:
		return false
	}
	return false
}

func (r Reason) valid() bool {
	return r >= ReasonResignation && r <= ReasonMutualAgreement
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Reason) UnmarshalText(b []byte) error {
	v, err := ParseReason(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// =============================================================================
// STATUS
// =============================================================================

type Status int

const (
	StatusDraft Status = iota + 1
	StatusPendingPayroll
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusPendingPayroll:
		return "pending_payroll"
	case StatusCompleted:
		return "completed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "draft":
		return StatusDraft, nil
	case "pending_payroll":
		return StatusPendingPayroll, nil
	case "completed":
		return StatusCompleted, nil
	}
	return 0, fmt.Errorf("unknown termination status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// =============================================================================
// TERMINATION
// =============================================================================

type Summary struct {
	Gross      decimal.Decimal
	Deductions decimal.Decimal
	Net        decimal.Decimal
	PAYE       decimal.Decimal
	UIF        decimal.Decimal
}

// PayComponents is the computed settlement.
type PayComponents struct {
	DailyRate         decimal.Decimal
	FinalSalaryDays   int
	FinalSalary       decimal.Decimal
	NoticePay         decimal.Decimal
	SeverancePay      decimal.Decimal
	ProRataEarnings   decimal.Decimal
	LeavePayoutDays   decimal.Decimal
	LeavePayoutAmount decimal.Decimal
	LeaveOverdrawn    decimal.Decimal

	Earnings              []payslip.EarningLine
	Deductions            []payslip.DeductionLine
	EmployerContributions []payslip.EmployerContribution
	Summary               Summary

	// Errors raised by the payslip calculation.
	Errors []validation.Issue
}

// Preview is a settlement with its validation outcome.
type Preview struct {
	Termination Termination
	Components  PayComponents
	Validation  validation.Result
}

type Termination struct {
	ID              string
	OrganizationID  generic.OrganizationID
	EmployeeID      generic.EntityID
	TerminationDate generic.TimePoint
	LastWorkingDay  generic.TimePoint
	Reason          Reason
	Status          Status
	NoticeDays      int
	PaidInLieu      bool
	Notes           string

	// PaidThrough overrides the default paid-through date, the day before
	// the month of the last working day.
	PaidThrough *generic.TimePoint

	// Edits to settlement lines, replayed on every computation.
	Edits []payslip.LineEdit

	Components    *PayComponents // frozen on submit
	FinalPayrunID string

	Version     int64
	CreatedBy   string
	CreatedAt   time.Time
	SubmittedBy string
	SubmittedAt *time.Time
	CompletedBy string
	CompletedAt *time.Time
}

// FinalPeriod is the pay period the settlement is paid in.
func (t Termination) FinalPeriod() generic.Period {
	return generic.Period{
		Start: generic.StartOfMonth(t.LastWorkingDay.Year(), t.LastWorkingDay.Month()),
		End:   generic.EndOfMonth(t.LastWorkingDay.Year(), t.LastWorkingDay.Month()),
	}
}

func (t Termination) paidThrough() generic.TimePoint {
	if t.PaidThrough != nil {
		return *t.PaidThrough
	}
	return t.FinalPeriod().Start.AddDays(-1)
}

func (t Termination) Clone() Termination {
	out := t
	out.Edits = append([]payslip.LineEdit(nil), t.Edits...)
	if t.Components != nil {
		c := *t.Components
		c.Earnings = append([]payslip.EarningLine(nil), t.Components.Earnings...)
		c.Deductions = append([]payslip.DeductionLine(nil), t.Components.Deductions...)
		c.EmployerContributions = append([]payslip.EmployerContribution(nil), t.Components.EmployerContributions...)
		c.Errors = append([]validation.Issue(nil), t.Components.Errors...)
		out.Components = &c
	}
	out.PaidThrough = clonePtr(t.PaidThrough)
	out.SubmittedAt = clonePtr(t.SubmittedAt)
	out.CompletedAt = clonePtr(t.CompletedAt)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
