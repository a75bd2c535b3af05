// Package leave maintains per-employee, per-leave-type balances under
// accrual, carry-over, expiry and negative-balance rules, and drives the
// leave request lifecycle that reserves and consumes those balances.
package leave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// ACCRUAL METHOD - Closed enum
// =============================================================================

type AccrualMethod int

const (
	AccrualMonthly AccrualMethod = iota + 1
	AccrualAnnual
	AccrualNone
)

func (m AccrualMethod) String() string {
	switch m {
	case AccrualMonthly:
		return "monthly"
	case AccrualAnnual:
		return "annual"
	case AccrualNone:
		return "none"
	}
	return fmt.Sprintf("AccrualMethod(%d)", int(m))
}

func ParseAccrualMethod(s string) (AccrualMethod, error) {
	switch s {
	case "monthly":
		return AccrualMonthly, nil
	case "annual":
		return AccrualAnnual, nil
	case "none":
		return AccrualNone, nil
	}
	return 0, fmt.Errorf("unknown accrual method %q", s)
}

func (m AccrualMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *AccrualMethod) UnmarshalText(b []byte) error {
	parsed, err := ParseAccrualMethod(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// =============================================================================
// LEAVE TYPE - Immutable configuration per organization
// =============================================================================

// LeaveType configures how a balance accrues and may be spent.
//
// CarryOverLimit and CarryOverExpireMonths are optional: nil means
// unlimited / never expires. A zero limit is a valid strict policy that
// forfeits everything at the cycle boundary.
type LeaveType struct {
	ID              generic.PolicyID
	OrganizationID  generic.OrganizationID
	Name            string
	Method          AccrualMethod
	Rate            decimal.Decimal // days per month (monthly) or per cycle (annual)
	CycleStartMonth time.Month

	CarryOverLimit        *decimal.Decimal
	CarryOverExpireMonths *int

	AllowNegative      bool
	RequiresAttachment bool
	IsPaid             bool
	IsActive           bool
}

// Validate checks the configuration is internally consistent.
func (lt LeaveType) Validate() error {
	if lt.ID == "" {
		return generic.NewValidationFailed("LEAVE_TYPE_ID_REQUIRED", "leave type id is required")
	}
	switch lt.Method {
	case AccrualMonthly, AccrualAnnual:
		if lt.Rate.IsNegative() {
			return generic.NewValidationFailed("ACCRUAL_RATE_NEGATIVE", "accrual rate cannot be negative")
		}
	case AccrualNone:
	default:
		return generic.NewValidationFailed("ACCRUAL_METHOD_INVALID", fmt.Sprintf("unknown accrual method %d", int(lt.Method)))
	}
	if lt.CycleStartMonth < time.January || lt.CycleStartMonth > time.December {
		return generic.NewValidationFailed("CYCLE_START_MONTH_INVALID", "cycle start month must be 1-12")
	}
	if lt.CarryOverLimit != nil && lt.CarryOverLimit.IsNegative() {
		return generic.NewValidationFailed("CARRY_OVER_LIMIT_NEGATIVE", "carry-over limit cannot be negative")
	}
	if lt.CarryOverExpireMonths != nil && *lt.CarryOverExpireMonths < 0 {
		return generic.NewValidationFailed("CARRY_OVER_EXPIRY_NEGATIVE", "carry-over expiry cannot be negative")
	}
	return nil
}

// =============================================================================
// BALANCE
// =============================================================================

// Balance is the materialized state for one (employee, leave type) key.
// Available is always derived, never stored.
type Balance struct {
	EmployeeID  generic.EntityID
	LeaveTypeID generic.PolicyID

	Accrued decimal.Decimal
	Taken   decimal.Decimal
	Pending decimal.Decimal

	// Carried portion from the previous cycle still unused, and when it
	// lapses. Zero expiry = never.
	CarriedRemaining   decimal.Decimal
	CarryOverExpiresAt generic.TimePoint

	// Zero = never accrued.
	LastAccruedAt generic.TimePoint
}

// NewBalance returns an empty balance for the key.
func NewBalance(employeeID generic.EntityID, leaveTypeID generic.PolicyID) Balance {
	return Balance{
		EmployeeID:       employeeID,
		LeaveTypeID:      leaveTypeID,
		Accrued:          decimal.Zero,
		Taken:            decimal.Zero,
		Pending:          decimal.Zero,
		CarriedRemaining: decimal.Zero,
	}
}

// Available = accrued - taken - pending.
func (b Balance) Available() decimal.Decimal {
	return b.Accrued.Sub(b.Taken).Sub(b.Pending)
}

func (b Balance) IsNegative() bool {
	return b.Available().IsNegative()
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type RequestStatus int

const (
	RequestPending RequestStatus = iota + 1
	RequestApproved
	RequestRejected
	RequestCancelled
)

func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestApproved:
		return "approved"
	case RequestRejected:
		return "rejected"
	case RequestCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("RequestStatus(%d)", int(s))
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch s {
	case "pending":
		return RequestPending, nil
	case "approved":
		return RequestApproved, nil
	case "rejected":
		return RequestRejected, nil
	case "cancelled":
		return RequestCancelled, nil
	}
	return 0, fmt.Errorf("unknown request status %q", s)
}

func (s RequestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RequestStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseRequestStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Request is a leave request and its audit trail.
type Request struct {
	ID             string
	OrganizationID generic.OrganizationID
	EmployeeID     generic.EntityID
	LeaveTypeID    generic.PolicyID
	Start          generic.TimePoint
	End            generic.TimePoint
	IsPartialDay   bool
	PartialHours   *decimal.Decimal
	Days           decimal.Decimal
	Status         RequestStatus
	Reason         string
	AttachmentRef  string

	CreatedBy      string
	CreatedAt      time.Time
	DecidedBy      string // approver or rejecter
	DecidedAt      *time.Time
	DecisionReason string
	CancelledBy    string
	CancelledAt    *time.Time
}

// Period returns the request's date range.
func (r Request) Period() generic.Period {
	return generic.Period{Start: r.Start, End: r.End}
}

// Outcome is how a pending reservation is resolved.
type Outcome int

const (
	OutcomeApproved Outcome = iota + 1
	OutcomeRejected
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Adjustment is an administrative signed change to accrued.
type Adjustment struct {
	EmployeeID     generic.EntityID
	LeaveTypeID    generic.PolicyID
	Delta          decimal.Decimal
	Reason         string
	EffectiveAt    generic.TimePoint // zero = today
	IdempotencyKey string
}
