/*
ledger.go - Leave balance keeper

PURPOSE:
  Owns every mutation of a leave balance: accrual runs, request
  reservation, approval/rejection, reversal and administrative
  adjustment. Each mutation updates the materialized Balance and appends
  explaining transactions to the append-only generic ledger.

INVARIANTS:
  1. available = accrued - taken - pending, always (it is derived).
  2. Reserve never drives available negative unless the leave type allows
     it. A refused reservation leaves the balance untouched.
  3. Single writer per (employee, leave type). Concurrent reservations are
     served in lock order; the loser sees InsufficientBalance.
  4. Adjust always applies and always emits an event.
  5. A balance write and its journal entries commit together. A failed
     save leaves no journal entry behind, and a rejected journal entry
     (duplicate idempotency key) leaves the balance untouched.
  6. Approval consumes carried-over days first. Cancelling approved leave
     hands them back to the carry-over it came from while that carry-over
     is still live.

SEE ALSO:
  - accrual.go: Pure accrual / carry-over / expiry computation
  - request.go: Request lifecycle built on Reserve/Commit/Reverse
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// STORES
// =============================================================================

// BalanceStore persists materialized balances. GetBalance returns
// generic.ErrNotFound for a key that has never been written.
type BalanceStore interface {
	GetBalance(ctx context.Context, employeeID generic.EntityID, leaveTypeID generic.PolicyID) (Balance, error)
	SaveBalance(ctx context.Context, b Balance) error
	ListBalances(ctx context.Context, employeeID generic.EntityID) ([]Balance, error)
}

// TypeStore persists leave type configuration.
type TypeStore interface {
	GetLeaveType(ctx context.Context, org generic.OrganizationID, id generic.PolicyID) (LeaveType, error)
	ListLeaveTypes(ctx context.Context, org generic.OrganizationID) ([]LeaveType, error)
	SaveLeaveType(ctx context.Context, lt LeaveType) error
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Balances BalanceStore
	Journal  generic.Ledger  // reads; nil runs without an audit trail
	Tx       generic.TxStore // writes
	Events   generic.EventSink
	Clock    generic.Clock
	Logger   *slog.Logger

	locks generic.KeyedMutex
}

func NewLedger(balances BalanceStore, journal generic.TxStore, events generic.EventSink, clock generic.Clock) *Ledger {
	if events == nil {
		events = generic.NopSink{}
	}
	if clock == nil {
		clock = generic.SystemClock
	}
	l := &Ledger{
		Balances: balances,
		Events:   events,
		Clock:    clock,
		Logger:   slog.Default(),
	}
	if journal != nil {
		l.Tx = journal
		l.Journal = generic.NewLedger(journal)
	}
	return l
}

// Balance returns the stored balance, or an empty one for a new key.
func (l *Ledger) Balance(ctx context.Context, employeeID generic.EntityID, leaveTypeID generic.PolicyID) (Balance, error) {
	b, err := l.Balances.GetBalance(ctx, employeeID, leaveTypeID)
	if errors.Is(err, generic.ErrNotFound) {
		return NewBalance(employeeID, leaveTypeID), nil
	}
	return b, err
}

// =============================================================================
// ACCRUAL
// =============================================================================

// Accrue applies every accrual checkpoint between the balance's last
// accrual and asOf. Calling it again with the same asOf is a no-op.
func (l *Ledger) Accrue(ctx context.Context, actor generic.Actor, lt LeaveType, emp generic.Employee, asOf generic.TimePoint) (Balance, error) {
	unlock := l.locks.Lock(balanceKey(emp.ID, lt.ID))
	defer unlock()

	b, err := l.Balance(ctx, emp.ID, lt.ID)
	if err != nil {
		return Balance{}, err
	}

	next, txs := advance(lt, emp, b, asOf)
	if next.LastAccruedAt.Equal(b.LastAccruedAt) && len(txs) == 0 {
		return b, nil
	}

	if err := l.write(ctx, actor, next, txs); err != nil {
		return Balance{}, err
	}

	if len(txs) > 0 {
		credited := next.Accrued.Sub(b.Accrued).Add(forfeited(txs))
		ev := generic.NewEvent(actor, generic.EventLeaveAccrued, balanceSubject(emp.ID, lt.ID), b.LastAccruedAt.String(), asOf.String(), l.today())
		ev.Payload = map[string]any{"credited": credited.String(), "accrued": next.Accrued.String()}
		l.emit(ctx, ev)
	}
	if lost := forfeited(txs); lost.IsPositive() {
		ev := generic.NewEvent(actor, generic.EventLeaveForfeited, balanceSubject(emp.ID, lt.ID), "", "", l.today())
		ev.Payload = map[string]any{"forfeited": lost.String()}
		l.emit(ctx, ev)
	}
	return next, nil
}

// Project returns the balance as it would stand after accruing to asOf,
// without persisting anything.
func (l *Ledger) Project(ctx context.Context, lt LeaveType, emp generic.Employee, asOf generic.TimePoint) (Balance, error) {
	b, err := l.Balance(ctx, emp.ID, lt.ID)
	if err != nil {
		return Balance{}, err
	}
	projected, _ := advance(lt, emp, b, asOf)
	return projected, nil
}

// =============================================================================
// RESERVATION LIFECYCLE
// =============================================================================

// Reserve adds the request's days to pending.
func (l *Ledger) Reserve(ctx context.Context, actor generic.Actor, lt LeaveType, req Request) (Balance, error) {
	unlock := l.locks.Lock(balanceKey(req.EmployeeID, lt.ID))
	defer unlock()

	b, err := l.Balance(ctx, req.EmployeeID, lt.ID)
	if err != nil {
		return Balance{}, err
	}

	remaining := b.Available().Sub(req.Days)
	if remaining.IsNegative() && !lt.AllowNegative {
		return b, &generic.InsufficientBalanceError{
			EntityID:  req.EmployeeID,
			PolicyID:  lt.ID,
			Available: dayAmount(b.Available()),
			Requested: dayAmount(req.Days),
			Shortfall: dayAmount(remaining.Neg()),
		}
	}

	b.Pending = b.Pending.Add(req.Days)
	if err := l.write(ctx, actor, b, []generic.Transaction{
		l.requestTx(actor, req, req.Days.Neg(), generic.TxPending, "pending"),
	}); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Commit resolves a reservation. Approval moves days from pending to
// taken, consuming carried-over days first. Rejection and cancellation
// release pending without touching taken.
func (l *Ledger) Commit(ctx context.Context, actor generic.Actor, req Request, outcome Outcome) (Balance, error) {
	unlock := l.locks.Lock(balanceKey(req.EmployeeID, req.LeaveTypeID))
	defer unlock()

	b, err := l.Balance(ctx, req.EmployeeID, req.LeaveTypeID)
	if err != nil {
		return Balance{}, err
	}
	if b.Pending.LessThan(req.Days) {
		return b, fmt.Errorf("commit request %s: pending %s is less than %s days: %w",
			req.ID, b.Pending, req.Days, generic.ErrConcurrentModification)
	}

	b.Pending = b.Pending.Sub(req.Days)
	txs := []generic.Transaction{
		l.requestTx(actor, req, req.Days, generic.TxRelease, "release"),
	}

	switch outcome {
	case OutcomeApproved:
		b.Taken = b.Taken.Add(req.Days)
		consume := l.requestTx(actor, req, req.Days.Neg(), generic.TxConsumption, "consume")
		if carried := decimal.Min(b.CarriedRemaining, req.Days); carried.IsPositive() {
			b.CarriedRemaining = b.CarriedRemaining.Sub(carried)
			consume.Metadata = map[string]string{metaCarried: carried.String()}
			if !b.CarryOverExpiresAt.IsZero() {
				consume.Metadata[metaCarryExpiresAt] = b.CarryOverExpiresAt.String()
			}
		}
		txs = append(txs, consume)
	case OutcomeRejected, OutcomeCancelled:
	default:
		return b, fmt.Errorf("commit request %s: unknown outcome %s", req.ID, outcome)
	}

	if err := l.write(ctx, actor, b, txs); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Reverse returns the taken days of a cancelled approved request. Days
// the approval drew from a carry-over that has not lapsed yet go back to
// that carry-over.
func (l *Ledger) Reverse(ctx context.Context, actor generic.Actor, req Request) (Balance, error) {
	unlock := l.locks.Lock(balanceKey(req.EmployeeID, req.LeaveTypeID))
	defer unlock()

	b, err := l.Balance(ctx, req.EmployeeID, req.LeaveTypeID)
	if err != nil {
		return Balance{}, err
	}
	restored, err := l.liveCarriedConsumption(ctx, req, b)
	if err != nil {
		return Balance{}, err
	}

	b.Taken = b.Taken.Sub(req.Days)
	b.CarriedRemaining = b.CarriedRemaining.Add(restored)
	reverse := l.requestTx(actor, req, req.Days, generic.TxReversal, "reverse")
	if restored.IsPositive() {
		reverse.Metadata = map[string]string{metaCarried: restored.String()}
	}
	if err := l.write(ctx, actor, b, []generic.Transaction{reverse}); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// liveCarriedConsumption returns the carried-over days req's approval
// consumed, or zero when that carry-over has lapsed or been replaced.
func (l *Ledger) liveCarriedConsumption(ctx context.Context, req Request, b Balance) (decimal.Decimal, error) {
	if l.Journal == nil || b.CarryOverExpiresAt.IsZero() {
		return decimal.Zero, nil
	}
	txs, err := l.Journal.Transactions(ctx, req.EmployeeID, req.LeaveTypeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load journal: %w", err)
	}
	for _, tx := range txs {
		if tx.Type != generic.TxConsumption || tx.ReferenceID != req.ID {
			continue
		}
		if tx.Metadata[metaCarryExpiresAt] != b.CarryOverExpiresAt.String() {
			return decimal.Zero, nil
		}
		carried, err := decimal.NewFromString(tx.Metadata[metaCarried])
		if err != nil {
			return decimal.Zero, nil
		}
		return carried, nil
	}
	return decimal.Zero, nil
}

// =============================================================================
// ADMINISTRATIVE ADJUSTMENT
// =============================================================================

// Adjust applies a signed delta to accrued. The reason is mandatory; the
// reservation check is bypassed, so the balance may go negative.
func (l *Ledger) Adjust(ctx context.Context, actor generic.Actor, adj Adjustment) (Balance, error) {
	if strings.TrimSpace(adj.Reason) == "" {
		return Balance{}, generic.NewValidationFailed("ADJUSTMENT_REASON_REQUIRED", "an adjustment requires a reason")
	}
	if adj.Delta.IsZero() {
		return Balance{}, generic.NewValidationFailed("ADJUSTMENT_ZERO", "an adjustment must change the balance")
	}

	unlock := l.locks.Lock(balanceKey(adj.EmployeeID, adj.LeaveTypeID))
	defer unlock()

	b, err := l.Balance(ctx, adj.EmployeeID, adj.LeaveTypeID)
	if err != nil {
		return Balance{}, err
	}

	at := adj.EffectiveAt
	if at.IsZero() {
		at = l.today()
	}
	tx := generic.Transaction{
		EntityID:       adj.EmployeeID,
		PolicyID:       adj.LeaveTypeID,
		EffectiveAt:    at,
		Delta:          dayAmount(adj.Delta),
		Type:           generic.TxAdjustment,
		Reason:         adj.Reason,
		IdempotencyKey: adj.IdempotencyKey,
		CreatedBy:      actor.UserID,
		CreatedByType:  actor.Type,
		CreatedAt:      l.today(),
	}
	before := b
	b.Accrued = b.Accrued.Add(adj.Delta)
	if err := l.write(ctx, actor, b, []generic.Transaction{tx}); err != nil {
		// A retried adjustment stops here with ErrDuplicateIdempotencyKey.
		return before, err
	}

	ev := generic.NewEvent(actor, generic.EventLeaveAdjusted, balanceSubject(adj.EmployeeID, adj.LeaveTypeID), "", "", l.today())
	ev.Payload = map[string]any{
		"delta":       adj.Delta.String(),
		"reason":      adj.Reason,
		"available":   b.Available().String(),
		"is_negative": b.IsNegative(),
	}
	l.emit(ctx, ev)
	return b, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Ledger) requestTx(actor generic.Actor, req Request, delta decimal.Decimal, typ generic.TransactionType, step string) generic.Transaction {
	return generic.Transaction{
		EntityID:       req.EmployeeID,
		PolicyID:       req.LeaveTypeID,
		EffectiveAt:    req.Start,
		Delta:          dayAmount(delta),
		Type:           typ,
		ReferenceID:    req.ID,
		Reason:         req.Reason,
		IdempotencyKey: fmt.Sprintf("request:%s:%s", req.ID, step),
		CreatedBy:      actor.UserID,
		CreatedByType:  actor.Type,
		CreatedAt:      l.today(),
	}
}

// Transaction metadata written on consumption and reversal.
const (
	metaCarried        = "carried"
	metaCarryExpiresAt = "carry_expires_at"
)

// balanceSaver is implemented by transactional views that keep balances
// next to the journal (store/sqlite). Other views fall back to
// l.Balances, saved after the append so a failed save rolls it back.
type balanceSaver interface {
	SaveBalance(ctx context.Context, b Balance) error
}

// write saves b and appends txs in one journal transaction.
func (l *Ledger) write(ctx context.Context, actor generic.Actor, b Balance, txs []generic.Transaction) error {
	if l.Tx == nil {
		if err := l.Balances.SaveBalance(ctx, b); err != nil {
			return fmt.Errorf("save balance: %w", err)
		}
		return nil
	}
	for i := range txs {
		if txs[i].CreatedBy == "" {
			txs[i].CreatedBy = actor.UserID
			txs[i].CreatedByType = actor.Type
			txs[i].CreatedAt = l.today()
		}
	}
	return l.Tx.WithTx(ctx, func(s generic.Store) error {
		if len(txs) > 0 {
			if err := s.AppendBatch(ctx, txs); err != nil {
				return err
			}
		}
		var saver balanceSaver = l.Balances
		if v, ok := s.(balanceSaver); ok {
			saver = v
		}
		if err := saver.SaveBalance(ctx, b); err != nil {
			return fmt.Errorf("save balance: %w", err)
		}
		return nil
	})
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// journalHorizon is later than any effective date the journal holds.
var journalHorizon = generic.NewTimePoint(9999, time.December, 31)

// Reconciliation compares a stored balance with the sums of its journal.
type Reconciliation struct {
	Balance        Balance
	JournalAccrued decimal.Decimal
	JournalTaken   decimal.Decimal
	JournalPending decimal.Decimal
}

// Balanced reports whether every stored figure matches the journal.
func (r Reconciliation) Balanced() bool {
	return r.Balance.Accrued.Equal(r.JournalAccrued) &&
		r.Balance.Taken.Equal(r.JournalTaken) &&
		r.Balance.Pending.Equal(r.JournalPending)
}

// Reconcile recomputes accrued, taken and pending from the journal.
func (l *Ledger) Reconcile(ctx context.Context, employeeID generic.EntityID, leaveTypeID generic.PolicyID) (Reconciliation, error) {
	if l.Journal == nil {
		return Reconciliation{}, errors.New("reconcile: leave ledger has no journal")
	}
	unlock := l.locks.Lock(balanceKey(employeeID, leaveTypeID))
	defer unlock()

	b, err := l.Balance(ctx, employeeID, leaveTypeID)
	if err != nil {
		return Reconciliation{}, err
	}
	net := func(types ...generic.TransactionType) (decimal.Decimal, error) {
		a, err := l.Journal.NetAt(ctx, employeeID, leaveTypeID, journalHorizon, generic.UnitDays, types...)
		return a.Value, err
	}

	r := Reconciliation{Balance: b}
	if r.JournalAccrued, err = net(generic.TxAccrual, generic.TxForfeit, generic.TxAdjustment); err != nil {
		return Reconciliation{}, err
	}
	taken, err := net(generic.TxConsumption, generic.TxReversal)
	if err != nil {
		return Reconciliation{}, err
	}
	pending, err := net(generic.TxPending, generic.TxRelease)
	if err != nil {
		return Reconciliation{}, err
	}
	r.JournalTaken = taken.Neg()
	r.JournalPending = pending.Neg()
	return r, nil
}

func (l *Ledger) emit(ctx context.Context, ev generic.Event) {
	if err := l.Events.Emit(ctx, ev); err != nil {
		l.logger().Warn("leave event emit failed", "kind", ev.Kind, "subject", ev.Subject, "error", err)
	}
}

func (l *Ledger) today() generic.TimePoint {
	return generic.TimePointOf(l.Clock())
}

func (l *Ledger) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func dayAmount(d decimal.Decimal) generic.Amount {
	return generic.NewAmountFromDecimal(d, generic.UnitDays)
}

func balanceSubject(employeeID generic.EntityID, leaveTypeID generic.PolicyID) string {
	return string(employeeID) + "/" + string(leaveTypeID)
}

// Single writer per balance key.
type balanceKeyT struct {
	employee  generic.EntityID
	leaveType generic.PolicyID
}

func balanceKey(employeeID generic.EntityID, leaveTypeID generic.PolicyID) any {
	return balanceKeyT{employee: employeeID, leaveType: leaveTypeID}
}
