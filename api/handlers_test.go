/*
handlers_test.go - HTTP tests for the API layer

Tests for:
- Employee profiles (create, fetch, organization scoping, validation)
- Holidays and the audit trail
- Authentication (header actors and bearer tokens)
- Rate limiting and the health check

Every test drives the chi router through httptest against an in-memory
SQLite store, with the clock fixed at Monday 10 March 2025.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

const testOrg generic.OrganizationID = "org-1"

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T, configure ...func(*RouterOptions)) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	currency := generic.NewCurrency("ZAR", 2)
	pf := factory.NewPolicyFactory(testOrg)
	taxRules, err := pf.ParseTaxRules(factory.SouthAfrica2025JSON(), currency)
	require.NoError(t, err)
	severance, err := pf.ParseSeverance(factory.SeverancePerYearJSON(7))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(store, Options{
		Currency:      currency,
		Tax:           taxRules,
		Severance:     severance,
		PayrunWorkers: 2,
		Clock:         func() time.Time { return fixedNow },
		Logger:        logger,
	})

	opts := RouterOptions{DefaultOrg: testOrg, Logger: logger}
	for _, c := range configure {
		c(&opts)
	}
	return &testServer{t: t, handler: h, router: NewRouter(h, opts)}
}

// do sends a request as user hr-1. Extra headers come in name/value pairs.
func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "hr-1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) addEmployee(id, salary string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/employees", map[string]any{
		"id":             id,
		"name":           "Employee " + id,
		"start_date":     "2020-01-01",
		"pay_point":      "JHB",
		"monthly_salary": salary,
		"notice_days":    30,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) addLeaveType(definition string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/leave/types", definition)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_SaveAndGet(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: an employee with an allowance and a debt
	rec := s.do(http.MethodPost, "/api/employees", map[string]any{
		"id":             "emp-1",
		"name":           "Thandi Nkosi",
		"start_date":     "2021-06-01",
		"monthly_salary": "26000",
		"notice_days":    30,
		"allowances":     []map[string]any{{"code": "TRAVEL", "name": "Travel", "amount": "1500", "taxable": true}},
		"debts":          []map[string]any{{"code": "LOAN", "name": "Staff loan", "outstanding": "2000", "required": true}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: fetching it back
	rec = s.do(http.MethodGet, "/api/employees/emp-1", nil)

	// THEN: the profile and its derived daily rate are returned
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decodeBody[EmployeeDTO](t, rec)
	assert.Equal(t, "Thandi Nkosi", emp.Name)
	assert.Equal(t, "2021-06-01", emp.StartDate)
	assertDec(t, "26000", emp.MonthlySalary)
	assertDec(t, "1200", emp.DailyRate) // 26000 * 12 / 260
	require.Len(t, emp.Allowances, 1)
	require.Len(t, emp.Debts, 1)
	assert.True(t, emp.Debts[0].Required)
}

func TestEmployees_OtherOrganization_NotFound(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")

	rec := s.do(http.MethodGet, "/api/employees/emp-1", nil, "X-Organization-ID", "org-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/employees", nil, "X-Organization-ID", "org-2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]EmployeeDTO](t, rec))
}

func TestEmployees_MissingFields_BadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/employees", map[string]any{"name": "No ID", "start_date": "01/02/2025"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "EmployeeRequest.ID: failed required")
	assert.Contains(t, rec.Body.String(), "EmployeeRequest.StartDate: failed datetime")
}

func TestEmployees_MalformedJSON_BadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/employees", `{"id": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Invalid request body", resp.Error)
}

func TestEmployees_NegativeSalary_Unprocessable(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/employees", map[string]any{
		"id": "emp-1", "name": "Negative", "start_date": "2024-01-01", "monthly_salary": "-1",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, []string{"SALARY_NEGATIVE"}, resp.Codes)
}

// =============================================================================
// HOLIDAYS AND EVENTS
// =============================================================================

func TestHolidays_CreateAndList(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")

	rec := s.do(http.MethodPost, "/api/holidays", map[string]any{"date": "2025-03-21", "name": "Human Rights Day", "recurring": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/holidays", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	holidays := decodeBody[[]HolidayDTO](t, rec)
	require.Len(t, holidays, 1)
	assert.Equal(t, "Human Rights Day", holidays[0].Name)
	assert.True(t, holidays[0].Recurring)

	// THEN: the calendar no longer counts it as a working day
	assert.True(t, s.handler.Calendar.IsHoliday(testOrg, generic.NewTimePoint(2026, time.March, 21)))
	assert.False(t, s.handler.Calendar.IsWorkingDay("emp-1", generic.NewTimePoint(2025, time.March, 21)))
	assert.True(t, s.handler.Calendar.IsWorkingDay("emp-1", generic.NewTimePoint(2025, time.March, 20)))
}

func TestEvents_FilterBySubjectAndKind(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")
	rec := s.do(http.MethodPost, "/api/payruns", map[string]any{"period_start": "2025-03-01", "period_end": "2025-03-31"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decodeBody[PayrunDTO](t, rec)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/payruns/"+run.ID+"/run", nil).Code)

	rec = s.do(http.MethodGet, "/api/events?subject="+run.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var kinds []string
	for _, ev := range decodeBody[[]EventDTO](t, rec) {
		kinds = append(kinds, ev.Kind)
		assert.Equal(t, "hr-1", ev.ActorID)
	}
	assert.Equal(t, []string{"payrun.created", "payrun.calculating", "payrun.ready"}, kinds)

	rec = s.do(http.MethodGet, "/api/events?subject="+run.ID+"&kind=payrun.ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[[]EventDTO](t, rec)
	require.Len(t, ready, 1)
	assert.Equal(t, "draft", ready[0].From)
	assert.Equal(t, "ready", ready[0].To)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAuth_TokenRequired_WhenSecretConfigured(t *testing.T) {
	s := newTestServer(t, func(o *RouterOptions) { o.JWTSecret = "test-secret" })

	// WHEN: no token is sent
	rec := s.do(http.MethodGet, "/api/employees", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// WHEN: a token signed with another secret is sent
	bad, err := IssueToken("other-secret", testOrg, "hr-1", "", time.Hour)
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/api/employees", nil, "Authorization", "Bearer "+bad)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// WHEN: an expired token is sent
	expired, err := IssueToken("test-secret", testOrg, "hr-1", "", -time.Minute)
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/api/employees", nil, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token has expired")
}

func TestAuth_TokenClaimsBecomeActor(t *testing.T) {
	s := newTestServer(t, func(o *RouterOptions) { o.JWTSecret = "test-secret" })
	token, err := IssueToken("test-secret", "org-7", "payroll-admin", "admin", time.Hour)
	require.NoError(t, err)
	auth := []string{"Authorization", "Bearer " + token}

	// GIVEN: an employee created with the token
	rec := s.do(http.MethodPost, "/api/employees", map[string]any{
		"id": "emp-1", "name": "Token User", "start_date": "2024-01-01", "monthly_salary": "10000",
	}, auth...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: it belongs to the token's organization, not the header's
	rec = s.do(http.MethodGet, "/api/employees/emp-1", nil, append(auth, "X-Organization-ID", "org-1")...)
	assert.Equal(t, http.StatusOK, rec.Code)
	profiles, err := s.handler.Store.ListProfiles(context.Background(), "org-7")
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestAuth_HeaderActor_DefaultsToConfiguredOrganization(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")

	profiles, err := s.handler.Store.ListProfiles(context.Background(), testOrg)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

// =============================================================================
// RATE LIMITING AND HEALTH
// =============================================================================

func TestRateLimit_TooManyRequests(t *testing.T) {
	l := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 2})
	s := newTestServer(t, func(o *RouterOptions) { o.Limiter = l })

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", nil).Code)

	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHealthz_OK(t *testing.T) {
	s := newTestServer(t, func(o *RouterOptions) { o.JWTSecret = "test-secret" })

	rec := s.do(http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
