package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LEAVE HELPERS
// =============================================================================

func (s *testServer) seedAnnualLeave(employeeID, openingDays string) {
	s.t.Helper()
	s.addEmployee(employeeID, "30000")
	s.addLeaveType(factory.AnnualLeaveJSON("annual", "Annual Leave", 15, 5))
	rec := s.do(http.MethodPost, "/api/leave/accrue", map[string]any{"employee_id": employeeID})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	if openingDays == "" {
		return
	}
	rec = s.do(http.MethodPost, "/api/leave/adjustments", map[string]any{
		"employee_id":   employeeID,
		"leave_type_id": "annual",
		"delta":         openingDays,
		"reason":        "opening balance",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) annualBalance(employeeID string) BalanceDTO {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/employees/"+employeeID+"/leave-balances", nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, b := range decodeBody[[]BalanceDTO](s.t, rec) {
		if b.LeaveTypeID == "annual" {
			return b
		}
	}
	require.FailNow(s.t, "no annual balance")
	return BalanceDTO{}
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func TestLeaveTypes_SaveAndList(t *testing.T) {
	s := newTestServer(t)
	s.addLeaveType(factory.AnnualLeaveJSON("annual", "Annual Leave", 15, 5))
	s.addLeaveType(factory.UnpaidLeaveJSON("unpaid", "Unpaid Leave"))

	rec := s.do(http.MethodGet, "/api/leave/types", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	types := decodeBody[[]factory.LeaveTypeJSON](t, rec)
	require.Len(t, types, 2)
	byID := map[string]factory.LeaveTypeJSON{}
	for _, lt := range types {
		byID[lt.ID] = lt
	}
	assert.Equal(t, "monthly", byID["annual"].Accrual.Method)
	assertDec(t, "1.25", byID["annual"].Accrual.Rate)
	require.NotNil(t, byID["unpaid"].Paid)
	assert.False(t, *byID["unpaid"].Paid)
}

func TestLeaveTypes_UnknownMethod_Unprocessable(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/leave/types", map[string]any{
		"id": "odd", "name": "Odd", "accrual": map[string]any{"method": "hourly", "rate": 1},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"ACCRUAL_METHOD_INVALID"}, decodeBody[ErrorResponse](t, rec).Codes)
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestLeaveRequest_InsufficientBalance(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")

	// WHEN: requesting far more working days than have accrued
	rec := s.do(http.MethodPost, "/api/leave/requests", map[string]any{
		"employee_id":   "emp-1",
		"leave_type_id": "annual",
		"start":         "2025-03-11",
		"end":           "2025-04-30",
	})

	// THEN: the shortfall is reported and nothing is reserved
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, []string{"INSUFFICIENT_BALANCE"}, resp.Codes)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "37", details["requested"])

	assert.True(t, s.annualBalance("emp-1").Pending.IsZero())
}

func TestLeaveRequest_ApproveThenCancelFutureLeave(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "10")
	opening := s.annualBalance("emp-1").Available

	// GIVEN: three days next week (Mon 17 to Wed 19 March)
	rec := s.do(http.MethodPost, "/api/leave/requests", map[string]any{
		"employee_id":   "emp-1",
		"leave_type_id": "annual",
		"start":         "2025-03-17",
		"end":           "2025-03-19",
		"reason":        "Family visit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decodeBody[LeaveRequestDTO](t, rec)
	assert.Equal(t, "pending", req.Status)
	assertDec(t, "3", req.Days)

	b := s.annualBalance("emp-1")
	assertDec(t, "3", b.Pending)
	assert.True(t, b.Available.Equal(opening.Sub(dec("3"))))

	// WHEN: it is approved
	rec = s.do(http.MethodPost, "/api/leave/requests/"+req.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", decodeBody[LeaveRequestDTO](t, rec).Status)

	b = s.annualBalance("emp-1")
	assertDec(t, "0", b.Pending)
	assertDec(t, "3", b.Taken)

	// WHEN: it is cancelled before it starts
	rec = s.do(http.MethodPost, "/api/leave/requests/"+req.ID+"/cancel", map[string]any{"reason": "plans changed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decodeBody[LeaveRequestDTO](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "hr-1", cancelled.CancelledBy)

	// THEN: the days are returned
	b = s.annualBalance("emp-1")
	assertDec(t, "0", b.Taken)
	assert.True(t, b.Available.Equal(opening), "available %s, opening %s", b.Available, opening)
}

func TestLeaveRequest_RejectTwice_Conflict(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "10")

	rec := s.do(http.MethodPost, "/api/leave/requests", map[string]any{
		"employee_id": "emp-1", "leave_type_id": "annual", "start": "2025-03-24", "end": "2025-03-24",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody[LeaveRequestDTO](t, rec).ID

	rec = s.do(http.MethodPost, "/api/leave/requests/"+id+"/reject", map[string]any{"reason": "month end"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decodeBody[LeaveRequestDTO](t, rec)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Equal(t, "month end", rejected.DecisionReason)
	assert.True(t, s.annualBalance("emp-1").Pending.IsZero())

	rec = s.do(http.MethodPost, "/api/leave/requests/"+id+"/reject", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"INVALID_TRANSITION"}, decodeBody[ErrorResponse](t, rec).Codes)

	rec = s.do(http.MethodPost, "/api/leave/requests/"+id+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLeaveRequest_UnknownEmployee_NotFound(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")

	rec := s.do(http.MethodPost, "/api/leave/requests", map[string]any{
		"employee_id": "emp-9", "leave_type_id": "annual", "start": "2025-03-24", "end": "2025-03-24",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveRequest_WeekendOnly_Unprocessable(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "10")

	rec := s.do(http.MethodPost, "/api/leave/requests", map[string]any{
		"employee_id": "emp-1", "leave_type_id": "annual", "start": "2025-03-15", "end": "2025-03-16",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"NO_WORKING_DAYS"}, decodeBody[ErrorResponse](t, rec).Codes)
}

func TestLeaveRequests_ListNewestFirst(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "10")
	for _, day := range []string{"2025-03-24", "2025-03-25"} {
		rec := s.do(http.MethodPost, "/api/leave/requests", map[string]any{
			"employee_id": "emp-1", "leave_type_id": "annual", "start": day, "end": day,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodGet, "/api/employees/emp-1/leave-requests", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]LeaveRequestDTO](t, rec), 2)
}

// =============================================================================
// ADJUSTMENTS AND TRANSACTIONS
// =============================================================================

func TestAdjustment_DuplicateIdempotencyKey_Conflict(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")
	body := map[string]any{
		"employee_id":     "emp-1",
		"leave_type_id":   "annual",
		"delta":           "2",
		"reason":          "migrated balance",
		"idempotency_key": "migration-emp-1",
	}

	rec := s.do(http.MethodPost, "/api/leave/adjustments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[BalanceDTO](t, rec)

	rec = s.do(http.MethodPost, "/api/leave/adjustments", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"DUPLICATE_IDEMPOTENCY_KEY"}, decodeBody[ErrorResponse](t, rec).Codes)

	// THEN: the retry did not apply twice
	assert.True(t, s.annualBalance("emp-1").Accrued.Equal(first.Accrued))
}

func TestAdjustment_MissingReason_Unprocessable(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")

	rec := s.do(http.MethodPost, "/api/leave/adjustments", map[string]any{
		"employee_id": "emp-1", "leave_type_id": "annual", "delta": "1",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"ADJUSTMENT_REASON_REQUIRED"}, decodeBody[ErrorResponse](t, rec).Codes)
}

func TestAdjustment_Negative_MarksBalanceNegative(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")

	rec := s.do(http.MethodPost, "/api/leave/adjustments", map[string]any{
		"employee_id": "emp-1", "leave_type_id": "annual", "delta": "-40", "reason": "clawback",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[BalanceDTO](t, rec).IsNegative)
}

func TestLeaveTransactions_JournalIncludesAdjustment(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "4")

	rec := s.do(http.MethodGet, "/api/employees/emp-1/leave-transactions", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var adjustments []TransactionDTO
	for _, tx := range decodeBody[[]TransactionDTO](t, rec) {
		if tx.Type == string(generic.TxAdjustment) {
			adjustments = append(adjustments, tx)
		}
	}
	require.Len(t, adjustments, 1)
	assertDec(t, "4", adjustments[0].Delta)
	assert.Equal(t, "opening balance", adjustments[0].Reason)
	assert.Equal(t, "2025-03-10", adjustments[0].EffectiveAt)
}

// =============================================================================
// ACCRUAL
// =============================================================================

func TestLeaveReconciliation_JournalMatchesBalances(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "10")
	rec := s.do(http.MethodPost, "/api/leave/requests", map[string]any{
		"employee_id":   "emp-1",
		"leave_type_id": "annual",
		"start":         "2025-03-17",
		"end":           "2025-03-18",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	approved := decodeBody[LeaveRequestDTO](t, rec)
	rec = s.do(http.MethodPost, "/api/leave/requests/"+approved.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/leave/requests", map[string]any{
		"employee_id":   "emp-1",
		"leave_type_id": "annual",
		"start":         "2025-03-24",
		"end":           "2025-03-24",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/employees/emp-1/leave-reconciliation", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recs := decodeBody[[]ReconciliationDTO](t, rec)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.True(t, r.Balanced)
	assert.Equal(t, "annual", r.Balance.LeaveTypeID)
	assert.True(t, r.JournalAccrued.Equal(r.Balance.Accrued))
	assertDec(t, "2", r.JournalTaken)
	assertDec(t, "1", r.JournalPending)
}

func TestLeaveReconciliation_UnknownEmployee_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/employees/ghost/leave-reconciliation", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccrue_BringsBalancesToDate(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")

	rec := s.do(http.MethodPost, "/api/leave/accrue", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"as_of":"2025-03-10","balances_updated":1}`, rec.Body.String())
	b := s.annualBalance("emp-1")
	assert.True(t, b.Accrued.IsPositive())
	assert.Equal(t, "2025-03-10", b.LastAccruedAt)
}

func TestLeaveBalances_ProjectionDoesNotPersist(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/leave/accrue", nil).Code)
	today := s.annualBalance("emp-1")

	rec := s.do(http.MethodGet, "/api/employees/emp-1/leave-balances?as_of=2025-05-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var projected BalanceDTO
	for _, b := range decodeBody[[]BalanceDTO](t, rec) {
		if b.LeaveTypeID == "annual" {
			projected = b
		}
	}
	assert.True(t, projected.Accrued.GreaterThan(today.Accrued))

	assert.True(t, s.annualBalance("emp-1").Accrued.Equal(today.Accrued))

	rec = s.do(http.MethodGet, "/api/employees/emp-1/leave-balances?as_of=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccrualScheduler_RunNow(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")
	s.seedAnnualLeave("emp-2", "")

	sched := NewAccrualScheduler(s.handler, []generic.OrganizationID{testOrg, "org-empty"}, s.handler.Logger)
	assert.Nil(t, sched.LastRun())

	run := sched.RunNow(context.Background())

	assert.Equal(t, "2025-03-10", run.AsOf.String())
	assert.Equal(t, 2, run.BalancesUpdated)
	assert.Equal(t, 0, run.Failures)
	require.NotNil(t, sched.LastRun())
	assert.Equal(t, 2, sched.LastRun().BalancesUpdated)
	assert.True(t, s.annualBalance("emp-2").Accrued.IsPositive())
}

func TestAccrualScheduler_NextRunTime_OneIntervalAfterLastPass(t *testing.T) {
	s := newTestServer(t)
	sched := NewAccrualScheduler(s.handler, []generic.OrganizationID{testOrg}, s.handler.Logger)
	sched.CheckInterval = 30 * time.Minute

	before := time.Now()
	assert.False(t, sched.NextRunTime().Before(before), "due immediately before the first pass")

	run := sched.RunNow(context.Background())

	assert.Equal(t, run.StartedAt.Add(30*time.Minute), sched.NextRunTime())
}

func TestAccrualScheduler_StartStop(t *testing.T) {
	s := newTestServer(t)
	s.seedAnnualLeave("emp-1", "")
	sched := NewAccrualScheduler(s.handler, []generic.OrganizationID{testOrg}, s.handler.Logger)

	sched.Start()
	sched.Start() // idempotent
	sched.Stop()
	sched.Stop()

	require.NotNil(t, sched.LastRun())
	assert.Equal(t, 1, sched.LastRun().BalancesUpdated)
}

func TestAccrualScheduler_Disabled(t *testing.T) {
	s := newTestServer(t)
	sched := NewAccrualScheduler(s.handler, []generic.OrganizationID{testOrg}, s.handler.Logger)
	sched.Enabled = false

	sched.Start()
	sched.Stop()

	assert.Nil(t, sched.LastRun())
}
