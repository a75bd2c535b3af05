/*
Package generic provides the shared core of the payroll engine.

PURPOSE:
  Domain-agnostic building blocks used by the leave ledger, the payslip
  calculator, the payrun state machine and the termination calculator.
  Nothing in this package knows what a payslip or a leave type is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity of leave with a unit (e.g., 5 days, 4 hours)
  - Currency: Code + precision, owns the rounding rule for money
  - Transaction: An immutable ledger entry recording a balance change
  - Actor: Explicit organization/user context passed into every call

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: decimal.Decimal everywhere, never float64 arithmetic
  3. Determinism: money is rounded half-to-even at currency precision
  4. Auditability: every transaction carries reason, actor and idempotency key

USAGE:
  zar := generic.NewCurrency("ZAR", 2)
  net := zar.Round(gross.Sub(deductions))

  tx := generic.Transaction{
      EntityID: "emp-123",
      PolicyID: "annual-leave",
      Delta:    generic.NewAmount(5, generic.UnitDays),
      Type:     generic.TxAccrual,
  }

SEE ALSO:
  - time.go: TimePoint and the work calendar
  - ledger.go: Append-only transaction log
  - errors.go: Engine error taxonomy
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity of leave with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }

// =============================================================================
// CURRENCY - Money precision and rounding
// =============================================================================

// Currency carries the precision every money figure is rounded to.
// Rounding is half-to-even so repeated summation across a large run
// does not drift in one direction.
type Currency struct {
	Code      string
	Precision int32
}

func NewCurrency(code string, precision int32) Currency {
	return Currency{Code: code, Precision: precision}
}

// Round applies banker's rounding at the currency precision.
func (c Currency) Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(c.Precision)
}

// Sum rounds every term before adding, so totals always equal the sum of
// the figures shown on a payslip.
func (c Currency) Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(c.Round(v))
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type PolicyID string
type TransactionID string
type OrganizationID string

// Actor is the explicit call context: which organization the call acts
// on and who performs it. The engine keeps no process-wide "current
// company" state; every mutating operation receives an Actor.
type Actor struct {
	OrganizationID OrganizationID
	UserID         string
	Type           string // "user", "system", "admin"
}

// SystemActor is used by scheduled jobs.
func SystemActor(org OrganizationID) Actor {
	return Actor{OrganizationID: org, UserID: "system", Type: "system"}
}

// Employee is the identity slice of an employee the engine needs.
// Compensation lives with the payslip input, not here.
type Employee struct {
	ID             EntityID
	OrganizationID OrganizationID
	Name           string
	StartDate      TimePoint
	PayPoint       string
}

// Clock returns the current time. Injected so tests are deterministic.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

// =============================================================================
// TRANSACTION - Atomic change to a leave balance
// =============================================================================

type TransactionType string

const (
	TxAccrual     TransactionType = "accrual"     // Scheduled accrual credit
	TxPending     TransactionType = "pending"     // Days reserved by a pending request
	TxRelease     TransactionType = "release"     // Pending released (reject/cancel)
	TxConsumption TransactionType = "consumption" // Pending moved to taken on approval
	TxReversal    TransactionType = "reversal"    // Taken days returned (future approved request cancelled)
	TxAdjustment  TransactionType = "adjustment"  // Manual admin correction
	TxForfeit     TransactionType = "forfeit"     // Carry-over cap or carry-over expiry
	TxCarryOver   TransactionType = "carryover"   // Marker for the carried portion at a cycle boundary
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	PolicyID       PolicyID
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	// Audit fields
	CreatedBy     string
	CreatedByType string
	CreatedAt     TimePoint
}
