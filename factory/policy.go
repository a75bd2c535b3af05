/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON definitions into leave.LeaveType, tax.Table and
  termination.SeverancePolicy values. Organizations configure leave types,
  tax years and severance formulas without code changes; the factory
  validates the input and applies defaults.

JSON SCHEMA (leave type):
  {
    "id": "annual",
    "name": "Annual leave",
    "accrual": {"method": "monthly", "rate": 1.25},
    "cycle_start_month": 1,
    "carry_over": {"limit": 5, "expire_months": 6},
    "allow_negative": false,
    "requires_attachment": false,
    "paid": true
  }

  carry_over.limit omitted = unlimited, 0 = strict (forfeit everything).
  carry_over.expire_months omitted = carried days never lapse.
  "paid" and "active" default to true.

USAGE:
  f := factory.NewPolicyFactory("org-1")
  lt, err := f.ParseLeaveType(factory.AnnualLeaveJSON("annual", "Annual leave", 15, 5))

SEE ALSO:
  - leave/types.go: LeaveType definition
  - factory/tax.go: Tax tables and severance formulas
  - factory/presets.go: Ready-made definitions
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// LeaveTypeJSON is the JSON representation of a leave type.
type LeaveTypeJSON struct {
	ID                 string         `json:"id" validate:"required"`
	Name               string         `json:"name" validate:"required"`
	Accrual            AccrualJSON    `json:"accrual"`
	CycleStartMonth    int            `json:"cycle_start_month,omitempty" validate:"omitempty,min=1,max=12"`
	CarryOver          *CarryOverJSON `json:"carry_over,omitempty"`
	AllowNegative      bool           `json:"allow_negative,omitempty"`
	RequiresAttachment bool           `json:"requires_attachment,omitempty"`
	Paid               *bool          `json:"paid,omitempty"`
	Active             *bool          `json:"active,omitempty"`
}

// AccrualJSON represents accrual configuration.
type AccrualJSON struct {
	Method string          `json:"method"` // monthly, annual, none
	Rate   decimal.Decimal `json:"rate"`   // days per month or per cycle
}

// CarryOverJSON represents cycle-boundary rules.
type CarryOverJSON struct {
	Limit        *decimal.Decimal `json:"limit,omitempty"`
	ExpireMonths *int             `json:"expire_months,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON definitions for one organization.
type PolicyFactory struct {
	Organization generic.OrganizationID
}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory(org generic.OrganizationID) *PolicyFactory {
	return &PolicyFactory{Organization: org}
}

// ParseLeaveType parses a JSON string into a LeaveType.
func (f *PolicyFactory) ParseLeaveType(jsonStr string) (leave.LeaveType, error) {
	var lj LeaveTypeJSON
	if err := json.Unmarshal([]byte(jsonStr), &lj); err != nil {
		return leave.LeaveType{}, fmt.Errorf("failed to parse leave type JSON: %w", err)
	}
	return f.LeaveTypeFromJSON(lj)
}

// ParseLeaveTypes parses a JSON array of leave types.
func (f *PolicyFactory) ParseLeaveTypes(jsonStr string) ([]leave.LeaveType, error) {
	var ljs []LeaveTypeJSON
	if err := json.Unmarshal([]byte(jsonStr), &ljs); err != nil {
		return nil, fmt.Errorf("failed to parse leave types JSON: %w", err)
	}
	out := make([]leave.LeaveType, 0, len(ljs))
	for _, lj := range ljs {
		lt, err := f.LeaveTypeFromJSON(lj)
		if err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, nil
}

// LeaveTypeFromJSON converts LeaveTypeJSON to a validated LeaveType.
func (f *PolicyFactory) LeaveTypeFromJSON(lj LeaveTypeJSON) (leave.LeaveType, error) {
	method, err := parseAccrualMethod(lj.Accrual.Method)
	if err != nil {
		return leave.LeaveType{}, err
	}

	lt := leave.LeaveType{
		ID:                 generic.PolicyID(lj.ID),
		OrganizationID:     f.Organization,
		Name:               lj.Name,
		Method:             method,
		Rate:               lj.Accrual.Rate,
		CycleStartMonth:    time.January,
		AllowNegative:      lj.AllowNegative,
		RequiresAttachment: lj.RequiresAttachment,
		IsPaid:             lj.Paid == nil || *lj.Paid,
		IsActive:           lj.Active == nil || *lj.Active,
	}
	if lj.CycleStartMonth != 0 {
		lt.CycleStartMonth = time.Month(lj.CycleStartMonth)
	}
	if lj.CarryOver != nil {
		if lj.CarryOver.Limit != nil {
			limit := *lj.CarryOver.Limit
			lt.CarryOverLimit = &limit
		}
		if lj.CarryOver.ExpireMonths != nil {
			months := *lj.CarryOver.ExpireMonths
			lt.CarryOverExpireMonths = &months
		}
	}

	if err := lt.Validate(); err != nil {
		return leave.LeaveType{}, fmt.Errorf("leave type %q: %w", lj.ID, err)
	}
	return lt, nil
}

// LeaveTypeToJSON converts a LeaveType back to its JSON form.
func (f *PolicyFactory) LeaveTypeToJSON(lt leave.LeaveType) LeaveTypeJSON {
	paid, active := lt.IsPaid, lt.IsActive
	lj := LeaveTypeJSON{
		ID:                 string(lt.ID),
		Name:               lt.Name,
		Accrual:            AccrualJSON{Method: lt.Method.String(), Rate: lt.Rate},
		CycleStartMonth:    int(lt.CycleStartMonth),
		AllowNegative:      lt.AllowNegative,
		RequiresAttachment: lt.RequiresAttachment,
		Paid:               &paid,
		Active:             &active,
	}
	if lt.CarryOverLimit != nil || lt.CarryOverExpireMonths != nil {
		lj.CarryOver = &CarryOverJSON{Limit: lt.CarryOverLimit, ExpireMonths: lt.CarryOverExpireMonths}
	}
	return lj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseAccrualMethod(s string) (leave.AccrualMethod, error) {
	if s == "" {
		return leave.AccrualNone, nil
	}
	m, err := leave.ParseAccrualMethod(s)
	if err != nil {
		return 0, generic.NewValidationFailed("ACCRUAL_METHOD_INVALID", err.Error())
	}
	return m, nil
}
