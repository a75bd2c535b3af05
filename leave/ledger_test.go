package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/generic/store"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var actor = generic.Actor{OrganizationID: "org-1", UserID: "hr-1", Type: "user"}

type fixture struct {
	store   *leave.MemoryStore
	journal *store.TxMemory
	events  *store.EventLog
	ledger  *leave.Ledger
	svc     *leave.RequestService
	now     time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		store:   leave.NewMemoryStore(),
		journal: store.NewTxMemory(),
		events:  store.NewEventLog(),
		now:     now,
	}
	clock := func() time.Time { return f.now }
	f.ledger = leave.NewLedger(f.store, f.journal, f.events, clock)
	f.svc = &leave.RequestService{
		Ledger:           f.ledger,
		Types:            f.store,
		Requests:         f.store,
		Calendar:         generic.WeekdayCalendar{Organization: actor.OrganizationID},
		Events:           f.events,
		Clock:            clock,
		StandardDayHours: decimal.NewFromInt(8),
	}
	return f
}

func (f *fixture) addType(t *testing.T, lt leave.LeaveType) leave.LeaveType {
	t.Helper()
	lt.OrganizationID = actor.OrganizationID
	lt.IsActive = true
	if lt.CycleStartMonth == 0 {
		lt.CycleStartMonth = time.January
	}
	require.NoError(t, lt.Validate())
	require.NoError(t, f.store.SaveLeaveType(context.Background(), lt))
	return lt
}

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

func employee(start generic.TimePoint) generic.Employee {
	return generic.Employee{ID: "emp-1", OrganizationID: actor.OrganizationID, Name: "Thandi", StartDate: start}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// flakyBalances fails the next failures balance saves.
type flakyBalances struct {
	*leave.MemoryStore
	failures int
}

func (fb *flakyBalances) SaveBalance(ctx context.Context, b leave.Balance) error {
	if fb.failures > 0 {
		fb.failures--
		return errors.New("disk full")
	}
	return fb.MemoryStore.SaveBalance(ctx, b)
}

func assertIdentity(t *testing.T, b leave.Balance) {
	t.Helper()
	assert.True(t, b.Available().Equal(b.Accrued.Sub(b.Taken).Sub(b.Pending)))
	assert.Equal(t, b.Available().IsNegative(), b.IsNegative())
}

// =============================================================================
// ACCRUAL
// =============================================================================

func TestAccrue_Monthly_ProratesFirstMonth(t *testing.T) {
	// GIVEN: 1.25 days/month, employee starts on 15 January (17 of 31 days)
	// WHEN: Accruing to 1 April
	// THEN: Jan = 1.25 * 17/31 = 0.6855, Feb and Mar = 1.25 each
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{ID: "annual", Name: "Annual", Method: leave.AccrualMonthly, Rate: dec("1.25"), IsPaid: true})

	b, err := f.ledger.Accrue(ctx, actor, lt, employee(date(2025, time.January, 15)), date(2025, time.April, 1))
	require.NoError(t, err)

	assertDec(t, "3.1855", b.Accrued)
	assert.Equal(t, date(2025, time.April, 1), b.LastAccruedAt)
	assertIdentity(t, b)

	txs, _ := f.journal.Load(ctx, "emp-1", "annual")
	assert.Len(t, txs, 3)
}

func TestAccrue_IsIdempotentForSameAsOf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{ID: "annual", Name: "Annual", Method: leave.AccrualMonthly, Rate: dec("1.5"), IsPaid: true})
	emp := employee(date(2025, time.January, 1))

	first, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.June, 1))
	require.NoError(t, err)
	second, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.June, 1))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assertDec(t, "7.5", second.Accrued)

	// An earlier asOf is also a no-op
	third, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, first, third)

	txs, _ := f.journal.Load(ctx, "emp-1", "annual")
	assert.Len(t, txs, 5)
}

func TestAccrue_Annual_GrantsOnStartAndEachCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{ID: "annual", Name: "Annual", Method: leave.AccrualAnnual, Rate: dec("15"), IsPaid: true})
	emp := employee(date(2024, time.March, 1))

	b, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2024, time.December, 31))
	require.NoError(t, err)
	assertDec(t, "15", b.Accrued)

	b, err = f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.January, 1))
	require.NoError(t, err)
	assertDec(t, "30", b.Accrued, "unlimited carry-over keeps last cycle's days")
	assertDec(t, "15", b.CarriedRemaining)
	assert.True(t, b.CarryOverExpiresAt.IsZero(), "nil expiry means carried days never lapse")
}

func TestAccrue_BeforeStartDate_NoChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{ID: "annual", Name: "Annual", Method: leave.AccrualAnnual, Rate: dec("15"), IsPaid: true})

	b, err := f.ledger.Accrue(ctx, actor, lt, employee(date(2025, time.February, 1)), date(2025, time.January, 15))
	require.NoError(t, err)
	assert.True(t, b.Accrued.IsZero())
	assert.True(t, b.LastAccruedAt.IsZero())
}

func TestAccrue_CarryOver_LimitThenExpiry(t *testing.T) {
	// GIVEN: Carry-over limit 5, expiry 3 months, 8 unused at cycle end
	// WHEN: The cycle rolls over on 1 January
	// THEN: 5 carried (expiring 1 April), 3 forfeited
	// WHEN: 1 April passes with none of the 5 used
	// THEN: The remaining 5 are forfeited
	ctx := context.Background()
	f := newFixture(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{
		ID: "annual", Name: "Annual", Method: leave.AccrualNone, IsPaid: true,
		CarryOverLimit:        decPtr("5"),
		CarryOverExpireMonths: intPtr(3),
	})
	emp := employee(date(2024, time.January, 1))

	_, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2024, time.December, 31))
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, actor, leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("8"), Reason: "opening balance"})
	require.NoError(t, err)

	b, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.January, 1))
	require.NoError(t, err)
	assertDec(t, "5", b.Accrued)
	assertDec(t, "5", b.CarriedRemaining)
	assert.Equal(t, date(2025, time.April, 1), b.CarryOverExpiresAt)

	b, err = f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.March, 31))
	require.NoError(t, err)
	assertDec(t, "5", b.Accrued, "not yet expired")

	b, err = f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.April, 1))
	require.NoError(t, err)
	assertDec(t, "0", b.Accrued)
	assertDec(t, "0", b.CarriedRemaining)
	assert.True(t, b.CarryOverExpiresAt.IsZero())
	assertIdentity(t, b)

	forfeits, _ := f.events.Query(ctx, generic.EventFilter{Kinds: []generic.EventKind{generic.EventLeaveForfeited}})
	require.Len(t, forfeits, 2)
	assert.Equal(t, "3", forfeits[0].Payload["forfeited"])
	assert.Equal(t, "5", forfeits[1].Payload["forfeited"])
}

func TestAccrue_CarryOver_UsedCarriedDaysAreNotForfeited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{
		ID: "annual", Name: "Annual", Method: leave.AccrualNone, IsPaid: true,
		CarryOverLimit:        decPtr("5"),
		CarryOverExpireMonths: intPtr(3),
	})
	emp := employee(date(2024, time.January, 1))

	f.ledger.Accrue(ctx, actor, lt, emp, date(2024, time.December, 31))
	f.ledger.Adjust(ctx, actor, leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("8"), Reason: "opening balance"})
	f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.January, 2))

	// Mon 3 Feb - Tue 4 Feb 2025
	req, err := f.svc.Create(ctx, actor, leave.CreateRequestInput{
		EmployeeID: "emp-1", LeaveTypeID: "annual",
		Start: date(2025, time.February, 3), End: date(2025, time.February, 4),
	})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, actor, req.ID)
	require.NoError(t, err)

	b, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.April, 1))
	require.NoError(t, err)
	assertDec(t, "2", b.Accrued)
	assertDec(t, "2", b.Taken)
	assertDec(t, "0", b.Available())
}

func TestAccrue_CarryOver_CancelledLeaveReturnsCarriedDaysBeforeExpiry(t *testing.T) {
	// GIVEN: 5 carried days expiring 1 April
	// WHEN: A 3-day February request is approved, then cancelled before it starts
	// THEN: All 5 carried days are back and lapse on 1 April
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{
		ID: "annual", Name: "Annual", Method: leave.AccrualNone, IsPaid: true,
		CarryOverLimit:        decPtr("5"),
		CarryOverExpireMonths: intPtr(3),
	})
	emp := employee(date(2024, time.January, 1))

	_, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2024, time.December, 31))
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, actor, leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("8"), Reason: "opening balance"})
	require.NoError(t, err)
	_, err = f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.January, 2))
	require.NoError(t, err)

	// Mon 3 Feb - Wed 5 Feb 2025
	req, err := f.svc.Create(ctx, actor, leave.CreateRequestInput{
		EmployeeID: "emp-1", LeaveTypeID: "annual",
		Start: date(2025, time.February, 3), End: date(2025, time.February, 5),
	})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, actor, req.ID)
	require.NoError(t, err)

	b, err := f.ledger.Balance(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assertDec(t, "2", b.CarriedRemaining, "approval draws on carried days first")

	_, err = f.svc.Cancel(ctx, actor, req.ID, "plans changed")
	require.NoError(t, err)

	b, err = f.ledger.Balance(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assertDec(t, "5", b.CarriedRemaining)
	assertDec(t, "0", b.Taken)

	b, err = f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.April, 1))
	require.NoError(t, err)
	assertDec(t, "0", b.Accrued)
	assertDec(t, "0", b.Available())
	assertIdentity(t, b)
}

func TestAccrue_CarryOver_CancelAfterExpiry_DoesNotRestoreCarriedDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{
		ID: "annual", Name: "Annual", Method: leave.AccrualNone, IsPaid: true,
		CarryOverLimit:        decPtr("5"),
		CarryOverExpireMonths: intPtr(3),
	})
	emp := employee(date(2024, time.January, 1))

	f.ledger.Accrue(ctx, actor, lt, emp, date(2024, time.December, 31))
	f.ledger.Adjust(ctx, actor, leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("8"), Reason: "opening balance"})
	f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.January, 2))

	// Mon 7 Apr - Wed 9 Apr 2025, approved while the carry-over is live
	req, err := f.svc.Create(ctx, actor, leave.CreateRequestInput{
		EmployeeID: "emp-1", LeaveTypeID: "annual",
		Start: date(2025, time.April, 7), End: date(2025, time.April, 9),
	})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, actor, req.ID)
	require.NoError(t, err)

	// WHEN: The carry-over lapses and the leave is cancelled afterwards
	f.now = time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)
	b, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.April, 1))
	require.NoError(t, err)
	assertDec(t, "3", b.Accrued, "the 2 unused carried days lapse")

	_, err = f.svc.Cancel(ctx, actor, req.ID, "plans changed")
	require.NoError(t, err)

	// THEN: The days come back as ordinary days, not as carried ones
	b, err = f.ledger.Balance(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assertDec(t, "0", b.CarriedRemaining)
	assertDec(t, "3", b.Available())
}

func TestAccrue_ZeroCarryOverLimit_ForfeitsEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{
		ID: "annual", Name: "Annual", Method: leave.AccrualAnnual, Rate: dec("10"), IsPaid: true,
		CarryOverLimit: decPtr("0"),
	})

	b, err := f.ledger.Accrue(ctx, actor, lt, employee(date(2024, time.January, 1)), date(2025, time.January, 1))
	require.NoError(t, err)
	assertDec(t, "10", b.Accrued, "only the new cycle's grant remains")
	assertDec(t, "0", b.CarriedRemaining)
}

func TestProject_DoesNotPersist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{ID: "annual", Name: "Annual", Method: leave.AccrualMonthly, Rate: dec("1"), IsPaid: true})
	emp := employee(date(2025, time.January, 1))

	projected, err := f.ledger.Project(ctx, lt, emp, date(2025, time.July, 1))
	require.NoError(t, err)
	assertDec(t, "6", projected.Accrued)

	stored, err := f.ledger.Balance(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.True(t, stored.Accrued.IsZero())
	assert.True(t, stored.LastAccruedAt.IsZero())
}

// =============================================================================
// ADJUSTMENT
// =============================================================================

func TestAdjust_RequiresReason(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))

	_, err := f.ledger.Adjust(context.Background(), actor, leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("2")})
	assert.ErrorIs(t, err, generic.ErrValidationFailed)
}

func TestAdjust_MayDriveNegative_AndEmitsEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))

	b, err := f.ledger.Adjust(ctx, actor, leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("-3"), Reason: "overpaid leave recovery"})
	require.NoError(t, err)
	assertDec(t, "-3", b.Available())
	assert.True(t, b.IsNegative())
	assertIdentity(t, b)

	events, _ := f.events.Query(ctx, generic.EventFilter{Kinds: []generic.EventKind{generic.EventLeaveAdjusted}})
	require.Len(t, events, 1)
	assert.Equal(t, true, events[0].Payload["is_negative"])
	assert.Equal(t, "hr-1", events[0].ActorID)
}

func TestAdjust_IdempotencyKey_PreventsDoubleApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	adj := leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("2"), Reason: "bonus day", IdempotencyKey: "adj-42"}

	_, err := f.ledger.Adjust(ctx, actor, adj)
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, actor, adj)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	b, _ := f.ledger.Balance(ctx, "emp-1", "annual")
	assertDec(t, "2", b.Accrued)
}

func TestAdjust_BalanceSaveFails_RetryWithSameKeyApplies(t *testing.T) {
	// GIVEN: A balance store that fails the first save
	// WHEN: A keyed adjustment fails and is retried
	// THEN: The retry applies once and the journal holds a single entry
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	balances := &flakyBalances{MemoryStore: f.store, failures: 1}
	ledger := leave.NewLedger(balances, f.journal, f.events, f.ledger.Clock)
	adj := leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("4"), Reason: "migration", IdempotencyKey: "adj-7"}

	_, err := ledger.Adjust(ctx, actor, adj)
	require.Error(t, err)
	assert.NotErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	txs, _ := f.journal.Load(ctx, "emp-1", "annual")
	assert.Empty(t, txs, "the failed save rolls the journal entry back")

	b, err := ledger.Adjust(ctx, actor, adj)
	require.NoError(t, err)
	assertDec(t, "4", b.Accrued)

	stored, err := ledger.Balance(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assertDec(t, "4", stored.Accrued)
	txs, _ = f.journal.Load(ctx, "emp-1", "annual")
	assert.Len(t, txs, 1)

	adjusted, _ := f.events.Query(ctx, generic.EventFilter{Kinds: []generic.EventKind{generic.EventLeaveAdjusted}})
	assert.Len(t, adjusted, 1)
}

func TestAdjust_DuplicateKey_LeavesBalanceUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	first := leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("2"), Reason: "bonus day", IdempotencyKey: "adj-1"}
	_, err := f.ledger.Adjust(ctx, actor, first)
	require.NoError(t, err)

	// Same key, different delta
	second := first
	second.Delta = dec("10")
	b, err := f.ledger.Adjust(ctx, actor, second)

	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	assertDec(t, "2", b.Accrued)
	stored, _ := f.ledger.Balance(ctx, "emp-1", "annual")
	assertDec(t, "2", stored.Accrued)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconcile_JournalMatchesBalanceAfterLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))
	lt := f.addType(t, leave.LeaveType{ID: "annual", Name: "Annual", Method: leave.AccrualMonthly, Rate: dec("1.5"), IsPaid: true})
	emp := employee(date(2024, time.January, 1))

	_, err := f.ledger.Accrue(ctx, actor, lt, emp, date(2025, time.January, 1))
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, actor, leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("-1"), Reason: "correction"})
	require.NoError(t, err)

	approved, err := f.svc.Create(ctx, actor, leave.CreateRequestInput{
		EmployeeID: "emp-1", LeaveTypeID: "annual",
		Start: date(2025, time.February, 3), End: date(2025, time.February, 4),
	})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, actor, approved.ID)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, actor, leave.CreateRequestInput{
		EmployeeID: "emp-1", LeaveTypeID: "annual",
		Start: date(2025, time.March, 3), End: date(2025, time.March, 3),
	})
	require.NoError(t, err)

	r, err := f.ledger.Reconcile(ctx, "emp-1", "annual")

	require.NoError(t, err)
	assert.True(t, r.Balanced(), "%+v", r)
	assertDec(t, "17", r.JournalAccrued)
	assertDec(t, "2", r.JournalTaken)
	assertDec(t, "1", r.JournalPending)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	_, err := f.ledger.Adjust(ctx, actor, leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: dec("3"), Reason: "opening balance"})
	require.NoError(t, err)

	// GIVEN: A balance edited behind the ledger's back
	b, _ := f.ledger.Balance(ctx, "emp-1", "annual")
	b.Accrued = dec("5")
	require.NoError(t, f.store.SaveBalance(ctx, b))

	r, err := f.ledger.Reconcile(ctx, "emp-1", "annual")

	require.NoError(t, err)
	assert.False(t, r.Balanced())
	assertDec(t, "3", r.JournalAccrued)
}

func TestReconcile_WithoutJournal_Errors(t *testing.T) {
	ledger := leave.NewLedger(leave.NewMemoryStore(), nil, nil, time.Now)

	_, err := ledger.Reconcile(context.Background(), "emp-1", "annual")

	assert.Error(t, err)
}

// =============================================================================
// DAY COUNT
// =============================================================================

func TestCountDays(t *testing.T) {
	cal := generic.WeekdayCalendar{
		Organization: "org-1",
		Holidays:     generic.StaticHolidays{{Date: date(2025, time.April, 18), Name: "Good Friday"}},
	}
	std := decimal.NewFromInt(8)

	tests := []struct {
		name    string
		start   generic.TimePoint
		end     generic.TimePoint
		partial *decimal.Decimal
		want    string
		wantErr bool
	}{
		{name: "single weekday", start: date(2025, time.April, 14), end: date(2025, time.April, 14), want: "1"},
		{name: "week with holiday", start: date(2025, time.April, 14), end: date(2025, time.April, 20), want: "4"},
		{name: "weekend only", start: date(2025, time.April, 19), end: date(2025, time.April, 20), want: "0"},
		{name: "half day", start: date(2025, time.April, 14), end: date(2025, time.April, 14), partial: decPtr("4"), want: "0.5"},
		{name: "partial on holiday", start: date(2025, time.April, 18), end: date(2025, time.April, 18), partial: decPtr("4"), want: "0"},
		{name: "partial across days", start: date(2025, time.April, 14), end: date(2025, time.April, 15), partial: decPtr("4"), wantErr: true},
		{name: "partial too long", start: date(2025, time.April, 14), end: date(2025, time.April, 14), partial: decPtr("9"), wantErr: true},
		{name: "end before start", start: date(2025, time.April, 15), end: date(2025, time.April, 14), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := leave.CountDays(cal, "emp-1", tt.start, tt.end, tt.partial, std)
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			assertDec(t, tt.want, got)
		})
	}
}
