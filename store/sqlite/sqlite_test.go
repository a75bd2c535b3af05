package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payrun"
	"github.com/warp/payroll-engine/roster"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/termination"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func accrual(at generic.TimePoint, amount float64, key string) generic.Transaction {
	return generic.Transaction{
		EntityID:       "emp-1",
		PolicyID:       "annual",
		EffectiveAt:    at,
		Delta:          generic.NewAmount(amount, generic.UnitDays),
		Type:           generic.TxAccrual,
		IdempotencyKey: key,
	}
}

// =============================================================================
// JOURNAL
// =============================================================================

func TestStore_Append_DuplicateKeyRejected(t *testing.T) {
	// GIVEN: An accrual with key "acc-jan"
	// WHEN: The same key is appended twice
	// THEN: The second append fails and only one row exists
	ctx := context.Background()
	s := newStore(t)

	tx := accrual(date(2025, time.January, 31), 1.25, "acc-jan")
	require.NoError(t, s.Append(ctx, tx))
	assert.ErrorIs(t, s.Append(ctx, tx), generic.ErrDuplicateIdempotencyKey)

	txs, err := s.Load(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	ok, err := s.Exists(ctx, "acc-jan")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Load_OrderedByEffectiveDateThenInsertion(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Append(ctx, accrual(date(2025, time.February, 28), 1.25, "b")))
	require.NoError(t, s.Append(ctx, accrual(date(2025, time.January, 31), 1.25, "a")))
	require.NoError(t, s.Append(ctx, accrual(date(2025, time.February, 28), 0.5, "c")))

	txs, err := s.Load(ctx, "emp-1", "annual")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{txs[0].IdempotencyKey, txs[1].IdempotencyKey, txs[2].IdempotencyKey})
	assert.True(t, txs[2].Delta.Value.Equal(decimal.RequireFromString("0.5")))

	ranged, err := s.LoadRange(ctx, "emp-1", "annual", date(2025, time.February, 1), date(2025, time.February, 28))
	require.NoError(t, err)
	assert.Len(t, ranged, 2)
}

func TestStore_AppendBatch_AllOrNothing(t *testing.T) {
	// GIVEN: "acc-jan" already in the journal
	// WHEN: A batch containing a new key and "acc-jan" is appended
	// THEN: Nothing from the batch is written
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Append(ctx, accrual(date(2025, time.January, 31), 1.25, "acc-jan")))

	err := s.AppendBatch(ctx, []generic.Transaction{
		accrual(date(2025, time.February, 28), 1.25, "acc-feb"),
		accrual(date(2025, time.January, 31), 1.25, "acc-jan"),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	ok, err := s.Exists(ctx, "acc-feb")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx generic.Store) error {
		require.NoError(t, tx.Append(ctx, accrual(date(2025, time.January, 31), 1.25, "in-tx")))

		// Reads inside the transaction see its own writes.
		txs, err := tx.Load(ctx, "emp-1", "annual")
		require.NoError(t, err)
		assert.Len(t, txs, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	txs, err := s.Load(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_Metadata_RoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	tx := accrual(date(2025, time.January, 31), 1.25, "meta")
	tx.Metadata = map[string]string{"request_id": "req-1"}
	tx.CreatedBy, tx.CreatedByType = "hr-1", "user"
	require.NoError(t, s.Append(ctx, tx))

	txs, err := s.Load(ctx, "emp-1", "annual")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "req-1", txs[0].Metadata["request_id"])
	assert.Equal(t, "hr-1", txs[0].CreatedBy)
	assert.NotEmpty(t, txs[0].ID)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestStore_Events_FilteredInEmissionOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	actor := generic.Actor{OrganizationID: "org-1", UserID: "hr-1", Type: "user"}
	at := date(2025, time.March, 1)

	created := generic.NewEvent(actor, generic.EventPayrunCreated, "run-1", "", "draft", at)
	created.Payload = map[string]any{"employees": 2}
	require.NoError(t, s.Emit(ctx, created))
	require.NoError(t, s.Emit(ctx, generic.NewEvent(actor, generic.EventPayrunCalculating, "run-1", "draft", "calculating", at)))
	require.NoError(t, s.Emit(ctx, generic.NewEvent(actor, generic.EventPayrunCreated, "run-2", "", "draft", at)))

	other := actor
	other.OrganizationID = "org-2"
	require.NoError(t, s.Emit(ctx, generic.NewEvent(other, generic.EventPayrunCreated, "run-9", "", "draft", at)))

	events, err := s.Query(ctx, generic.EventFilter{OrganizationID: "org-1", Subject: "run-1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, generic.EventPayrunCreated, events[0].Kind)
	assert.Equal(t, generic.EventPayrunCalculating, events[1].Kind)
	assert.Equal(t, "calculating", events[1].To)
	assert.EqualValues(t, 2, events[0].Payload["employees"])

	created2, err := s.Query(ctx, generic.EventFilter{OrganizationID: "org-1", Kinds: []generic.EventKind{generic.EventPayrunCreated}})
	require.NoError(t, err)
	assert.Len(t, created2, 2)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestStore_LeaveTypes_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	limit := decimal.NewFromInt(5)
	expire := 3

	lt := leave.LeaveType{
		ID:                    "annual",
		OrganizationID:        "org-1",
		Name:                  "Annual Leave",
		Method:                leave.AccrualMonthly,
		Rate:                  decimal.RequireFromString("1.25"),
		CycleStartMonth:       time.January,
		CarryOverLimit:        &limit,
		CarryOverExpireMonths: &expire,
		IsPaid:                true,
		IsActive:              true,
	}
	require.NoError(t, s.SaveLeaveType(ctx, lt))

	got, err := s.GetLeaveType(ctx, "org-1", "annual")
	require.NoError(t, err)
	assert.Equal(t, leave.AccrualMonthly, got.Method)
	assert.True(t, got.Rate.Equal(lt.Rate))
	require.NotNil(t, got.CarryOverLimit)
	assert.True(t, got.CarryOverLimit.Equal(limit))
	assert.Equal(t, 3, *got.CarryOverExpireMonths)

	_, err = s.GetLeaveType(ctx, "org-2", "annual")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	all, err := s.ListLeaveTypes(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_WithTx_BalanceSaveRollsBackWithJournal(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx generic.Store) error {
		require.NoError(t, tx.Append(ctx, accrual(date(2025, time.January, 31), 1.25, "in-tx")))
		saver, ok := tx.(interface {
			SaveBalance(context.Context, leave.Balance) error
		})
		require.True(t, ok, "transaction view saves balances")
		b := leave.NewBalance("emp-1", "annual")
		b.Accrued = decimal.RequireFromString("1.25")
		require.NoError(t, saver.SaveBalance(ctx, b))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetBalance(ctx, "emp-1", "annual")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	txs, err := s.Load(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_LeaveLedger_AdjustWritesBalanceAndJournalTogether(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	clock := func() time.Time { return time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC) }
	ledger := leave.NewLedger(s, s, s, clock)
	actor := generic.Actor{OrganizationID: "org-1", UserID: "hr-1", Type: "user"}
	adj := leave.Adjustment{EmployeeID: "emp-1", LeaveTypeID: "annual", Delta: decimal.NewFromInt(4), Reason: "migration", IdempotencyKey: "adj-1"}

	_, err := ledger.Adjust(ctx, actor, adj)
	require.NoError(t, err)
	adj.Delta = decimal.NewFromInt(9)
	_, err = ledger.Adjust(ctx, actor, adj)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	b, err := s.GetBalance(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.True(t, b.Accrued.Equal(decimal.NewFromInt(4)), "accrued %s", b.Accrued)

	r, err := ledger.Reconcile(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.True(t, r.Balanced())
	txs, err := s.Load(ctx, "emp-1", "annual")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "hr-1", txs[0].CreatedBy)
}

func TestStore_Balances_UpsertAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetBalance(ctx, "emp-1", "annual")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	b := leave.NewBalance("emp-1", "annual")
	b.Accrued = decimal.NewFromInt(10)
	b.LastAccruedAt = date(2025, time.January, 31)
	require.NoError(t, s.SaveBalance(ctx, b))

	b.Taken = decimal.NewFromInt(2)
	require.NoError(t, s.SaveBalance(ctx, b))

	got, err := s.GetBalance(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.True(t, got.Available().Equal(decimal.NewFromInt(8)))
	assert.True(t, got.LastAccruedAt.Equal(date(2025, time.January, 31)))
	assert.True(t, got.CarryOverExpiresAt.IsZero())

	all, err := s.ListBalances(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_Requests_StatusUpdates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	r := leave.Request{
		ID:             "req-1",
		OrganizationID: "org-1",
		EmployeeID:     "emp-1",
		LeaveTypeID:    "annual",
		Start:          date(2025, time.April, 7),
		End:            date(2025, time.April, 9),
		Days:           decimal.NewFromInt(3),
		Status:         leave.RequestPending,
		CreatedAt:      time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveRequest(ctx, r))

	r.Status = leave.RequestApproved
	r.DecidedBy = "mgr-1"
	require.NoError(t, s.SaveRequest(ctx, r))

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, leave.RequestApproved, got.Status)
	assert.Equal(t, "mgr-1", got.DecidedBy)
	assert.True(t, got.Start.Equal(r.Start))

	list, err := s.ListRequests(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.GetRequest(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// PAYRUNS AND TERMINATIONS
// =============================================================================

func TestStore_SavePayrun_RejectsStaleVersion(t *testing.T) {
	// GIVEN: A payrun saved once (version 1)
	// WHEN: Two writers both load version 1 and save
	// THEN: The first wins; the second gets ErrConcurrentModification
	ctx := context.Background()
	s := newStore(t)

	run := payrun.Payrun{
		ID:             "run-1",
		OrganizationID: "org-1",
		Period:         generic.Period{Start: date(2025, time.March, 1), End: date(2025, time.March, 31)},
		PayDate:        date(2025, time.March, 25),
		Frequency:      payrun.FrequencyMonthly,
		Status:         payrun.StatusDraft,
		Entries:        []payrun.Entry{{EmployeeID: "emp-1"}},
	}
	saved, err := s.SavePayrun(ctx, run)
	require.NoError(t, err)
	assert.EqualValues(t, 1, saved.Version)

	_, err = s.SavePayrun(ctx, run)
	assert.ErrorIs(t, err, generic.ErrConcurrentModification, "second create of the same id")

	first := saved
	first.Status = payrun.StatusReady
	second := saved

	updated, err := s.SavePayrun(ctx, first)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated.Version)

	_, err = s.SavePayrun(ctx, second)
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	got, err := s.GetPayrun(ctx, "org-1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, payrun.StatusReady, got.Status)
	assert.EqualValues(t, 2, got.Version)
	assert.True(t, got.Period.End.Equal(run.Period.End))
	require.Len(t, got.Entries, 1)

	_, err = s.GetPayrun(ctx, "org-2", "run-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestStore_ListPayruns_OrderedByPeriod(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, r := range []struct {
		id    string
		month time.Month
	}{{"run-b", time.April}, {"run-a", time.March}} {
		_, err := s.SavePayrun(ctx, payrun.Payrun{
			ID:             r.id,
			OrganizationID: "org-1",
			Period:         generic.Period{Start: date(2025, r.month, 1), End: generic.EndOfMonth(2025, r.month)},
			Frequency:      payrun.FrequencyMonthly,
			Status:         payrun.StatusDraft,
		})
		require.NoError(t, err)
	}

	runs, err := s.ListPayruns(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestStore_SaveTermination_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	term := termination.Termination{
		ID:              "term-1",
		OrganizationID:  "org-1",
		EmployeeID:      "emp-1",
		TerminationDate: date(2025, time.March, 14),
		LastWorkingDay:  date(2025, time.March, 14),
		Reason:          termination.ReasonResignation,
		Status:          termination.StatusDraft,
		CreatedAt:       time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	saved, err := s.SaveTermination(ctx, term)
	require.NoError(t, err)

	submitted := saved
	submitted.Status = termination.StatusPendingPayroll
	_, err = s.SaveTermination(ctx, submitted)
	require.NoError(t, err)

	_, err = s.SaveTermination(ctx, saved)
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	got, err := s.GetTermination(ctx, "org-1", "term-1")
	require.NoError(t, err)
	assert.Equal(t, termination.StatusPendingPayroll, got.Status)
	assert.Equal(t, termination.ReasonResignation, got.Reason)

	list, err := s.ListTerminations(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// ROSTER
// =============================================================================

func TestStore_Profiles_ScopedByOrganization(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	p := roster.Profile{
		Employee: generic.Employee{
			ID:             "emp-1",
			OrganizationID: "org-1",
			Name:           "Thandi",
			StartDate:      date(2020, time.January, 1),
		},
		MonthlySalary: decimal.NewFromInt(30000),
		NoticeDays:    30,
	}
	require.NoError(t, s.SaveProfile(ctx, p))

	got, err := s.GetProfile(ctx, "org-1", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Thandi", got.Employee.Name)
	assert.True(t, got.MonthlySalary.Equal(p.MonthlySalary))
	assert.Nil(t, got.LeftAt)

	_, err = s.GetProfile(ctx, "org-2", "emp-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	left := date(2025, time.March, 14)
	p.LeftAt = &left
	require.NoError(t, s.SaveProfile(ctx, p))

	all, err := s.ListProfiles(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].LeftAt)
	assert.True(t, all[0].LeftAt.Equal(left))
}

func TestStore_Holidays_IncludeGlobal(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{Date: date(2025, time.January, 1), Name: "New Year", Recurring: true}))
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{OrganizationID: "org-1", Date: date(2025, time.June, 16), Name: "Youth Day"}))
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{OrganizationID: "org-2", Date: date(2025, time.August, 9), Name: "Women's Day"}))
	// Same (org, date, name) is stored once.
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{OrganizationID: "org-1", Date: date(2025, time.June, 16), Name: "Youth Day"}))

	holidays, err := s.ListHolidays(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, holidays, 2)
	assert.Equal(t, "New Year", holidays[0].Name)
	assert.True(t, holidays[0].Recurring)
	assert.Equal(t, "Youth Day", holidays[1].Name)
}
