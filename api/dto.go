/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DAYS:
  Amounts and day counts are decimal strings ("1234.56"), never floats.
  Dates are YYYY-MM-DD.

VALIDATION:
  Request types carry go-playground/validator tags; decode in
  handlers.go rejects a body that fails them with 400 before any domain
  call. Business rules stay in the domain packages.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: LeaveTypeJSON, accepted as-is by POST /api/leave/types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payrun"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/roster"
	"github.com/warp/payroll-engine/termination"
	"github.com/warp/payroll-engine/validation"
)

// =============================================================================
// EMPLOYEES AND HOLIDAYS
// =============================================================================

type AllowanceDTO struct {
	Code    string          `json:"code" validate:"required"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Taxable bool            `json:"taxable"`
}

type RecurringDeductionDTO struct {
	Code     string          `json:"code" validate:"required"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Required bool            `json:"required"`
}

type DebtDTO struct {
	Code        string          `json:"code" validate:"required"`
	Name        string          `json:"name"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Required    bool            `json:"required"`
}

// EmployeeRequest creates or replaces an employee's pay profile.
type EmployeeRequest struct {
	ID                string                  `json:"id" validate:"required"`
	Name              string                  `json:"name" validate:"required"`
	StartDate         string                  `json:"start_date" validate:"required,datetime=2006-01-02"`
	PayPoint          string                  `json:"pay_point"`
	MonthlySalary     decimal.Decimal         `json:"monthly_salary"`
	DailyRateOverride *decimal.Decimal        `json:"daily_rate_override,omitempty"`
	NoticeDays        int                     `json:"notice_days" validate:"min=0"`
	Allowances        []AllowanceDTO          `json:"allowances" validate:"dive"`
	Deductions        []RecurringDeductionDTO `json:"deductions" validate:"dive"`
	Debts             []DebtDTO               `json:"debts" validate:"dive"`
}

type EmployeeDTO struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	StartDate     string                  `json:"start_date"`
	PayPoint      string                  `json:"pay_point,omitempty"`
	MonthlySalary decimal.Decimal         `json:"monthly_salary"`
	DailyRate     decimal.Decimal         `json:"daily_rate"`
	NoticeDays    int                     `json:"notice_days"`
	Allowances    []AllowanceDTO          `json:"allowances"`
	Deductions    []RecurringDeductionDTO `json:"deductions"`
	Debts         []DebtDTO               `json:"debts"`
	LeftAt        string                  `json:"left_at,omitempty"`
}

type HolidayRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required"`
	Recurring bool   `json:"recurring"`
	Global    bool   `json:"global"` // applies to every organization
}

type HolidayDTO struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id,omitempty"`
	Date           string `json:"date"`
	Name           string `json:"name"`
	Recurring      bool   `json:"recurring"`
}

// =============================================================================
// PAYRUNS
// =============================================================================

type CreatePayrunRequest struct {
	PeriodStart string   `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string   `json:"period_end" validate:"required,datetime=2006-01-02"`
	PayDate     string   `json:"pay_date" validate:"omitempty,datetime=2006-01-02"`
	Frequency   string   `json:"frequency" validate:"omitempty,oneof=monthly fortnightly weekly"`
	PayPoints   []string `json:"pay_points"`
}

type TotalsDTO struct {
	Gross               decimal.Decimal `json:"gross"`
	Deductions          decimal.Decimal `json:"deductions"`
	Net                 decimal.Decimal `json:"net"`
	EmployeeCount       int             `json:"employee_count"`
	EmployeesWithErrors int             `json:"employees_with_errors"`
}

type EarningDTO struct {
	Code    string           `json:"code"`
	Name    string           `json:"name"`
	Amount  decimal.Decimal  `json:"amount"`
	Hours   *decimal.Decimal `json:"hours,omitempty"`
	Rate    *decimal.Decimal `json:"rate,omitempty"`
	Taxable bool             `json:"taxable"`
	Note    string           `json:"note,omitempty"`
}

type DeductionDTO struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Required  bool            `json:"required"`
	Statutory bool            `json:"statutory"`
	Skipped   bool            `json:"skipped"`
	Note      string          `json:"note,omitempty"`
}

type ContributionDTO struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type PayslipDTO struct {
	EmployeeID            string             `json:"employee_id"`
	EmployeeName          string             `json:"employee_name"`
	Computed              bool               `json:"computed"`
	Earnings              []EarningDTO       `json:"earnings"`
	Deductions            []DeductionDTO     `json:"deductions"`
	EmployerContributions []ContributionDTO  `json:"employer_contributions"`
	Gross                 decimal.Decimal    `json:"gross"`
	TaxableGross          decimal.Decimal    `json:"taxable_gross"`
	TotalDeductions       decimal.Decimal    `json:"total_deductions"`
	Net                   decimal.Decimal    `json:"net"`
	Errors                []validation.Issue `json:"errors"`
	YTDGross              decimal.Decimal    `json:"ytd_gross"`
	YTDTax                decimal.Decimal    `json:"ytd_tax"`
	YTDNet                decimal.Decimal    `json:"ytd_net"`
}

type PayrunDTO struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	PeriodStart string       `json:"period_start"`
	PeriodEnd   string       `json:"period_end"`
	PayDate     string       `json:"pay_date"`
	Frequency   string       `json:"frequency"`
	PayPoints   []string     `json:"pay_points,omitempty"`
	Version     int64        `json:"version"`
	Totals      TotalsDTO    `json:"totals"`
	Payslips    []PayslipDTO `json:"payslips,omitempty"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   string       `json:"created_at"`
	FinalizedBy string       `json:"finalized_by,omitempty"`
	FinalizedAt string       `json:"finalized_at,omitempty"`
}

// LineEditRequest changes one payslip line. Omitted fields are unchanged.
type LineEditRequest struct {
	Line    string           `json:"line" validate:"required,oneof=earning deduction"`
	Code    string           `json:"code" validate:"required"`
	Action  string           `json:"action" validate:"omitempty,oneof=update add remove"`
	Name    *string          `json:"name,omitempty"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Hours   *decimal.Decimal `json:"hours,omitempty"`
	Rate    *decimal.Decimal `json:"rate,omitempty"`
	Skip    *bool            `json:"skip,omitempty"`
	Note    *string          `json:"note,omitempty"`
	Taxable *bool            `json:"taxable,omitempty"`
}

type EditPayslipRequest struct {
	Edits []LineEditRequest `json:"edits" validate:"required,min=1,dive"`
}

// =============================================================================
// LEAVE
// =============================================================================

type LeaveRequestRequest struct {
	EmployeeID    string           `json:"employee_id" validate:"required"`
	LeaveTypeID   string           `json:"leave_type_id" validate:"required"`
	Start         string           `json:"start" validate:"required,datetime=2006-01-02"`
	End           string           `json:"end" validate:"required,datetime=2006-01-02"`
	IsPartialDay  bool             `json:"is_partial_day"`
	PartialHours  *decimal.Decimal `json:"partial_hours,omitempty"`
	Reason        string           `json:"reason"`
	AttachmentRef string           `json:"attachment_ref"`
}

type DecisionRequest struct {
	Reason string `json:"reason"`
}

type LeaveRequestDTO struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employee_id"`
	LeaveTypeID    string          `json:"leave_type_id"`
	Start          string          `json:"start"`
	End            string          `json:"end"`
	Days           decimal.Decimal `json:"days"`
	Status         string          `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	DecidedBy      string          `json:"decided_by,omitempty"`
	DecisionReason string          `json:"decision_reason,omitempty"`
	CancelledBy    string          `json:"cancelled_by,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      string          `json:"created_at"`
}

type BalanceDTO struct {
	LeaveTypeID        string          `json:"leave_type_id"`
	LeaveTypeName      string          `json:"leave_type_name"`
	Accrued            decimal.Decimal `json:"accrued"`
	Taken              decimal.Decimal `json:"taken"`
	Pending            decimal.Decimal `json:"pending"`
	Available          decimal.Decimal `json:"available"`
	CarriedRemaining   decimal.Decimal `json:"carried_remaining"`
	CarryOverExpiresAt string          `json:"carry_over_expires_at,omitempty"`
	LastAccruedAt      string          `json:"last_accrued_at,omitempty"`
	IsNegative         bool            `json:"is_negative"`
}

type ReconciliationDTO struct {
	Balance        BalanceDTO      `json:"balance"`
	JournalAccrued decimal.Decimal `json:"journal_accrued"`
	JournalTaken   decimal.Decimal `json:"journal_taken"`
	JournalPending decimal.Decimal `json:"journal_pending"`
	Balanced       bool            `json:"balanced"`
}

type AdjustmentRequest struct {
	EmployeeID     string          `json:"employee_id" validate:"required"`
	LeaveTypeID    string          `json:"leave_type_id" validate:"required"`
	Delta          decimal.Decimal `json:"delta"`
	Reason         string          `json:"reason"`
	EffectiveAt    string          `json:"effective_at" validate:"omitempty,datetime=2006-01-02"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// AccrueRequest brings balances up to AsOf (default today). An empty
// EmployeeID accrues every employee of the organization.
type AccrueRequest struct {
	AsOf       string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	EmployeeID string `json:"employee_id"`
}

type TransactionDTO struct {
	ID          string          `json:"id"`
	LeaveTypeID string          `json:"leave_type_id"`
	EffectiveAt string          `json:"effective_at"`
	Delta       decimal.Decimal `json:"delta"`
	Unit        string          `json:"unit"`
	Type        string          `json:"type"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
}

// =============================================================================
// TERMINATIONS
// =============================================================================

type TerminationRequest struct {
	EmployeeID      string `json:"employee_id" validate:"required"`
	TerminationDate string `json:"termination_date" validate:"required,datetime=2006-01-02"`
	LastWorkingDay  string `json:"last_working_day" validate:"required,datetime=2006-01-02"`
	Reason          string `json:"reason" validate:"required,oneof=resignation dismissal retrenchment retirement death contract_end mutual_agreement"`
	PaidInLieu      bool   `json:"paid_in_lieu"`
	NoticeDays      *int   `json:"notice_days,omitempty" validate:"omitempty,min=0"`
	Notes           string `json:"notes"`
	PaidThrough     string `json:"paid_through" validate:"omitempty,datetime=2006-01-02"`
}

type CompleteTerminationRequest struct {
	PayrunID string `json:"payrun_id" validate:"required"`
}

// DeductionEditRequest changes one settlement deduction, named in the URL.
type DeductionEditRequest struct {
	Action string           `json:"action" validate:"omitempty,oneof=update add remove"`
	Name   *string          `json:"name,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Skip   *bool            `json:"skip,omitempty"`
	Note   *string          `json:"note,omitempty"`
}

type ComponentsDTO struct {
	DailyRate             decimal.Decimal    `json:"daily_rate"`
	FinalSalaryDays       int                `json:"final_salary_days"`
	FinalSalary           decimal.Decimal    `json:"final_salary"`
	NoticePay             decimal.Decimal    `json:"notice_pay"`
	SeverancePay          decimal.Decimal    `json:"severance_pay"`
	ProRataEarnings       decimal.Decimal    `json:"pro_rata_earnings"`
	LeavePayoutDays       decimal.Decimal    `json:"leave_payout_days"`
	LeavePayoutAmount     decimal.Decimal    `json:"leave_payout_amount"`
	LeaveOverdrawn        decimal.Decimal    `json:"leave_overdrawn"`
	Earnings              []EarningDTO       `json:"earnings"`
	Deductions            []DeductionDTO     `json:"deductions"`
	EmployerContributions []ContributionDTO  `json:"employer_contributions"`
	Gross                 decimal.Decimal    `json:"gross"`
	TotalDeductions       decimal.Decimal    `json:"total_deductions"`
	Net                   decimal.Decimal    `json:"net"`
	PAYE                  decimal.Decimal    `json:"paye"`
	UIF                   decimal.Decimal    `json:"uif"`
	Errors                []validation.Issue `json:"errors"`
}

type TerminationDTO struct {
	ID              string             `json:"id,omitempty"`
	EmployeeID      string             `json:"employee_id"`
	TerminationDate string             `json:"termination_date"`
	LastWorkingDay  string             `json:"last_working_day"`
	Reason          string             `json:"reason"`
	Status          string             `json:"status,omitempty"`
	NoticeDays      int                `json:"notice_days"`
	PaidInLieu      bool               `json:"paid_in_lieu"`
	Notes           string             `json:"notes,omitempty"`
	FinalPayrunID   string             `json:"final_payrun_id,omitempty"`
	Version         int64              `json:"version"`
	Components      ComponentsDTO      `json:"components"`
	Validation      validation.Result  `json:"validation"`
	CreatedBy       string             `json:"created_by,omitempty"`
	SubmittedBy     string             `json:"submitted_by,omitempty"`
	CompletedBy     string             `json:"completed_by,omitempty"`
}

// =============================================================================
// EVENTS, SCENARIOS, ERRORS
// =============================================================================

type EventDTO struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Subject    string         `json:"subject"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	ActorType  string         `json:"actor_type,omitempty"`
	OccurredAt string         `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response. Codes lists every
// blocking validation error.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Codes   []string `json:"codes,omitempty"`
	Details any      `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func dateOrEmpty(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toEmployeeDTO(p roster.Profile) EmployeeDTO {
	dto := EmployeeDTO{
		ID:            string(p.Employee.ID),
		Name:          p.Employee.Name,
		StartDate:     p.Employee.StartDate.String(),
		PayPoint:      p.Employee.PayPoint,
		MonthlySalary: p.MonthlySalary,
		DailyRate:     p.DailyRate(),
		NoticeDays:    p.NoticeDays,
		Allowances:    make([]AllowanceDTO, 0, len(p.Allowances)),
		Deductions:    make([]RecurringDeductionDTO, 0, len(p.Deductions)),
		Debts:         make([]DebtDTO, 0, len(p.Debts)),
	}
	for _, a := range p.Allowances {
		dto.Allowances = append(dto.Allowances, AllowanceDTO{Code: a.Code, Name: a.Name, Amount: a.Amount, Taxable: a.Taxable})
	}
	for _, d := range p.Deductions {
		dto.Deductions = append(dto.Deductions, RecurringDeductionDTO{Code: d.Code, Name: d.Name, Amount: d.Amount, Required: d.Required})
	}
	for _, d := range p.Debts {
		dto.Debts = append(dto.Debts, DebtDTO{Code: d.Code, Name: d.Name, Outstanding: d.Outstanding, Required: d.Required})
	}
	if p.LeftAt != nil {
		dto.LeftAt = p.LeftAt.String()
	}
	return dto
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:             h.ID,
		OrganizationID: string(h.OrganizationID),
		Date:           h.Date.String(),
		Name:           h.Name,
		Recurring:      h.Recurring,
	}
}

func toEarningDTOs(lines []payslip.EarningLine) []EarningDTO {
	out := make([]EarningDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, EarningDTO{
			Code: l.Code, Name: l.Name, Amount: l.Amount,
			Hours: l.Hours, Rate: l.Rate, Taxable: l.Taxable, Note: l.Note,
		})
	}
	return out
}

func toDeductionDTOs(lines []payslip.DeductionLine) []DeductionDTO {
	out := make([]DeductionDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, DeductionDTO{
			Code: l.Code, Name: l.Name, Amount: l.Amount,
			Required: l.Required, Statutory: l.Statutory, Skipped: l.Skipped, Note: l.Note,
		})
	}
	return out
}

func toContributionDTOs(lines []payslip.EmployerContribution) []ContributionDTO {
	out := make([]ContributionDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, ContributionDTO{Code: l.Code, Name: l.Name, Amount: l.Amount})
	}
	return out
}

func toPayslipDTO(e payrun.Entry) PayslipDTO {
	dto := PayslipDTO{
		EmployeeID:   string(e.EmployeeID),
		EmployeeName: e.Input.Employee.Name,
		Errors:       []validation.Issue{},
	}
	if e.Payslip == nil {
		return dto
	}
	p := e.Payslip
	dto.Computed = !e.Dirty
	dto.Earnings = toEarningDTOs(p.Earnings)
	dto.Deductions = toDeductionDTOs(p.Deductions)
	dto.EmployerContributions = toContributionDTOs(p.EmployerContributions)
	dto.Gross = p.Gross
	dto.TaxableGross = p.TaxableGross
	dto.TotalDeductions = p.TotalDeductions
	dto.Net = p.Net
	if len(p.Errors) > 0 {
		dto.Errors = p.Errors
	}
	dto.YTDGross, dto.YTDTax, dto.YTDNet = p.YTDGross, p.YTDTax, p.YTDNet
	return dto
}

func toPayrunDTO(run payrun.Payrun, withPayslips bool) PayrunDTO {
	dto := PayrunDTO{
		ID:          run.ID,
		Status:      run.Status.String(),
		PeriodStart: run.Period.Start.String(),
		PeriodEnd:   run.Period.End.String(),
		PayDate:     dateOrEmpty(run.PayDate),
		Frequency:   run.Frequency.String(),
		PayPoints:   run.PayPoints,
		Version:     run.Version,
		Totals: TotalsDTO{
			Gross:               run.Totals.Gross,
			Deductions:          run.Totals.Deductions,
			Net:                 run.Totals.Net,
			EmployeeCount:       run.Totals.EmployeeCount,
			EmployeesWithErrors: run.Totals.EmployeesWithErrors,
		},
		CreatedBy:   run.CreatedBy,
		CreatedAt:   run.CreatedAt.UTC().Format(time.RFC3339),
		FinalizedBy: run.FinalizedBy,
		FinalizedAt: timeOrEmpty(run.FinalizedAt),
	}
	if withPayslips {
		dto.Payslips = make([]PayslipDTO, 0, len(run.Entries))
		for _, e := range run.Entries {
			dto.Payslips = append(dto.Payslips, toPayslipDTO(e))
		}
	}
	return dto
}

func toLeaveRequestDTO(r leave.Request) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:             r.ID,
		EmployeeID:     string(r.EmployeeID),
		LeaveTypeID:    string(r.LeaveTypeID),
		Start:          r.Start.String(),
		End:            r.End.String(),
		Days:           r.Days,
		Status:         r.Status.String(),
		Reason:         r.Reason,
		DecidedBy:      r.DecidedBy,
		DecisionReason: r.DecisionReason,
		CancelledBy:    r.CancelledBy,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toBalanceDTO(b leave.Balance, name string) BalanceDTO {
	return BalanceDTO{
		LeaveTypeID:        string(b.LeaveTypeID),
		LeaveTypeName:      name,
		Accrued:            b.Accrued,
		Taken:              b.Taken,
		Pending:            b.Pending,
		Available:          b.Available(),
		CarriedRemaining:   b.CarriedRemaining,
		CarryOverExpiresAt: dateOrEmpty(b.CarryOverExpiresAt),
		LastAccruedAt:      dateOrEmpty(b.LastAccruedAt),
		IsNegative:         b.IsNegative(),
	}
}

func toReconciliationDTO(r leave.Reconciliation, name string) ReconciliationDTO {
	return ReconciliationDTO{
		Balance:        toBalanceDTO(r.Balance, name),
		JournalAccrued: r.JournalAccrued,
		JournalTaken:   r.JournalTaken,
		JournalPending: r.JournalPending,
		Balanced:       r.Balanced(),
	}
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		LeaveTypeID: string(tx.PolicyID),
		EffectiveAt: tx.EffectiveAt.String(),
		Delta:       tx.Delta.Value,
		Unit:        string(tx.Delta.Unit),
		Type:        string(tx.Type),
		ReferenceID: tx.ReferenceID,
		Reason:      tx.Reason,
		CreatedBy:   tx.CreatedBy,
	}
}

func toComponentsDTO(c termination.PayComponents) ComponentsDTO {
	errs := c.Errors
	if errs == nil {
		errs = []validation.Issue{}
	}
	return ComponentsDTO{
		DailyRate:             c.DailyRate,
		FinalSalaryDays:       c.FinalSalaryDays,
		FinalSalary:           c.FinalSalary,
		NoticePay:             c.NoticePay,
		SeverancePay:          c.SeverancePay,
		ProRataEarnings:       c.ProRataEarnings,
		LeavePayoutDays:       c.LeavePayoutDays,
		LeavePayoutAmount:     c.LeavePayoutAmount,
		LeaveOverdrawn:        c.LeaveOverdrawn,
		Earnings:              toEarningDTOs(c.Earnings),
		Deductions:            toDeductionDTOs(c.Deductions),
		EmployerContributions: toContributionDTOs(c.EmployerContributions),
		Gross:                 c.Summary.Gross,
		TotalDeductions:       c.Summary.Deductions,
		Net:                   c.Summary.Net,
		PAYE:                  c.Summary.PAYE,
		UIF:                   c.Summary.UIF,
		Errors:                errs,
	}
}

func toTerminationDTO(pv termination.Preview) TerminationDTO {
	t := pv.Termination
	return TerminationDTO{
		ID:              t.ID,
		EmployeeID:      string(t.EmployeeID),
		TerminationDate: t.TerminationDate.String(),
		LastWorkingDay:  t.LastWorkingDay.String(),
		Reason:          t.Reason.String(),
		Status:          statusOrEmpty(t),
		NoticeDays:      t.NoticeDays,
		PaidInLieu:      t.PaidInLieu,
		Notes:           t.Notes,
		FinalPayrunID:   t.FinalPayrunID,
		Version:         t.Version,
		Components:      toComponentsDTO(pv.Components),
		Validation:      pv.Validation,
		CreatedBy:       t.CreatedBy,
		SubmittedBy:     t.SubmittedBy,
		CompletedBy:     t.CompletedBy,
	}
}

// statusOrEmpty leaves previews (never stored) without a status.
func statusOrEmpty(t termination.Termination) string {
	if t.ID == "" {
		return ""
	}
	return t.Status.String()
}

func toEventDTO(ev generic.Event) EventDTO {
	return EventDTO{
		ID:         ev.ID,
		Kind:       string(ev.Kind),
		Subject:    ev.Subject,
		From:       ev.From,
		To:         ev.To,
		ActorID:    ev.ActorID,
		ActorType:  ev.ActorType,
		OccurredAt: ev.OccurredAt.String(),
		Payload:    ev.Payload,
	}
}
