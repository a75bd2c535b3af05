/*
accrual.go - Accrual, carry-over and expiry as a pure function

PURPOSE:
  Advances a balance from its LastAccruedAt to asOf. The function is pure:
  it returns the new balance plus the ledger transactions that explain the
  change. Ledger.Accrue persists both; Ledger.Project discards them.

CHECKPOINTS:
  Every first-of-month in (LastAccruedAt, asOf] is a checkpoint. At each
  checkpoint, in this order:

    1. Monthly credit for the month that just ended. The employee's first
       month is prorated by calendar-day fraction from the start date.
    2. Expiry: if carried-over days lapse on or before the checkpoint, the
       unused part of them is forfeited.
    3. Cycle boundary (first day of CycleStartMonth): unused balance above
       CarryOverLimit is forfeited; what remains is marked as carried with
       an expiry CarryOverExpireMonths later.
    4. Annual credit for the new cycle.

  Annual types also receive the full rate on the employee's start date.

IDEMPOTENCY:
  LastAccruedAt moves forward to asOf. Re-running with the same or an
  earlier asOf processes no checkpoints and returns the balance unchanged.

EXAMPLE (limit 5, expiry 3 months, cycle starts January):
  2024-12-31  available 8
  2025-01-01  forfeit 3, carry 5 (expires 2025-04-01)
  2025-04-01  forfeit 5 still unused

SEE ALSO:
  - ledger.go: Persists the result under the per-balance lock
*/
package leave

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// dayPrecision is the rounding applied to accrued day amounts.
const dayPrecision = 4

// advance computes the balance at asOf. The input balance is not modified.
func advance(lt LeaveType, emp generic.Employee, b Balance, asOf generic.TimePoint) (Balance, []generic.Transaction) {
	a := accrualRun{lt: lt, emp: emp, b: b}

	if b.LastAccruedAt.IsZero() {
		if asOf.Before(emp.StartDate) {
			return b, nil
		}
		if lt.Method == AccrualAnnual {
			a.credit(emp.StartDate, lt.Rate, "annual grant on start date")
		}
		a.b.LastAccruedAt = emp.StartDate
	}

	if !asOf.After(a.b.LastAccruedAt) {
		return a.b, a.txs
	}

	last := a.b.LastAccruedAt
	checkpoint := generic.StartOfMonth(last.Year(), last.Month()).AddMonths(1)
	for ; checkpoint.BeforeOrEqual(asOf); checkpoint = checkpoint.AddMonths(1) {
		a.monthlyCredit(checkpoint)
		a.expire(checkpoint)
		if generic.IsCycleStart(checkpoint, lt.CycleStartMonth) {
			a.carryOver(checkpoint)
			if lt.Method == AccrualAnnual {
				a.credit(checkpoint, lt.Rate, "annual grant")
			}
		}
	}

	a.b.LastAccruedAt = asOf
	return a.b, a.txs
}

type accrualRun struct {
	lt  LeaveType
	emp generic.Employee
	b   Balance
	txs []generic.Transaction
}

func (a *accrualRun) monthlyCredit(checkpoint generic.TimePoint) {
	if a.lt.Method != AccrualMonthly {
		return
	}
	monthStart := checkpoint.AddMonths(-1)
	amount := a.lt.Rate

	start := a.emp.StartDate
	if start.Year() == monthStart.Year() && start.Month() == monthStart.Month() && start.Day() > 1 {
		daysInMonth := generic.DaysInMonth(monthStart.Year(), monthStart.Month())
		worked := daysInMonth - start.Day() + 1
		amount = amount.Mul(decimal.NewFromInt(int64(worked))).Div(decimal.NewFromInt(int64(daysInMonth)))
	}
	a.credit(checkpoint, amount, "monthly accrual for "+monthStart.Time.Format("2006-01"))
}

func (a *accrualRun) credit(at generic.TimePoint, amount decimal.Decimal, reason string) {
	amount = amount.Round(dayPrecision)
	if amount.IsZero() {
		return
	}
	a.b.Accrued = a.b.Accrued.Add(amount)
	a.txs = append(a.txs, a.tx(at, amount, generic.TxAccrual, reason, "accrual"))
}

func (a *accrualRun) expire(checkpoint generic.TimePoint) {
	if a.b.CarryOverExpiresAt.IsZero() || checkpoint.Before(a.b.CarryOverExpiresAt) {
		return
	}
	lapsed := decimal.Min(a.b.CarriedRemaining, decimal.Max(a.b.Available(), decimal.Zero))
	a.b.CarriedRemaining = decimal.Zero
	a.b.CarryOverExpiresAt = generic.TimePoint{}
	a.forfeit(checkpoint, lapsed, "carry-over expired", "forfeit-expiry")
}

func (a *accrualRun) carryOver(boundary generic.TimePoint) {
	unused := decimal.Max(a.b.Available(), decimal.Zero)
	carried := unused
	if a.lt.CarryOverLimit != nil && unused.GreaterThan(*a.lt.CarryOverLimit) {
		carried = *a.lt.CarryOverLimit
		a.forfeit(boundary, unused.Sub(carried), "above carry-over limit", "forfeit-limit")
	}

	a.b.CarriedRemaining = carried
	a.b.CarryOverExpiresAt = generic.TimePoint{}
	if carried.IsPositive() && a.lt.CarryOverExpireMonths != nil {
		a.b.CarryOverExpiresAt = boundary.AddMonths(*a.lt.CarryOverExpireMonths)
	}
	if carried.IsPositive() {
		tx := a.tx(boundary, decimal.Zero, generic.TxCarryOver, "carried into new cycle", "carryover")
		tx.Metadata = map[string]string{"carried": carried.String()}
		if !a.b.CarryOverExpiresAt.IsZero() {
			tx.Metadata["expires_at"] = a.b.CarryOverExpiresAt.String()
		}
		a.txs = append(a.txs, tx)
	}
}

func (a *accrualRun) forfeit(at generic.TimePoint, amount decimal.Decimal, reason, keyPrefix string) {
	if !amount.IsPositive() {
		return
	}
	a.b.Accrued = a.b.Accrued.Sub(amount)
	a.txs = append(a.txs, a.tx(at, amount.Neg(), generic.TxForfeit, reason, keyPrefix))
}

func (a *accrualRun) tx(at generic.TimePoint, delta decimal.Decimal, typ generic.TransactionType, reason, keyPrefix string) generic.Transaction {
	return generic.Transaction{
		EntityID:       a.b.EmployeeID,
		PolicyID:       a.b.LeaveTypeID,
		EffectiveAt:    at,
		Delta:          generic.NewAmountFromDecimal(delta, generic.UnitDays),
		Type:           typ,
		Reason:         reason,
		IdempotencyKey: fmt.Sprintf("%s:%s:%s:%s", keyPrefix, a.b.EmployeeID, a.b.LeaveTypeID, at),
	}
}

// forfeited sums the forfeit transactions produced by an accrual pass.
func forfeited(txs []generic.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Type == generic.TxForfeit {
			total = total.Add(tx.Delta.Value.Neg())
		}
	}
	return total
}
