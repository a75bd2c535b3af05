/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Dates are relative to today so every scenario shows a
	current pay period.

AVAILABLE SCENARIOS:

	monthly-payroll:  Three employees, allowances, a debt, a draft payrun
	leave-lifecycle:  Accrued balances, pending/approved/unpaid requests
	retrenchment:     Long-serving employee with a draft retrenchment

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create leave types via factory presets
 3. Create employees and holidays
 4. Accrue leave up to today
 5. Drive the domain services (requests, payruns, terminations)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "monthly-payroll"}

NOTE:

	Scenarios reset the database for every organization. Only use in
	development/demo environments.

SEE ALSO:
  - factory/presets.go: Leave type JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payrun"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/roster"
	"github.com/warp/payroll-engine/termination"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "monthly-payroll",
		Name:        "Monthly Payroll",
		Description: "Three employees with allowances and a loan repayment; draft payrun for this month",
	},
	{
		ID:          "leave-lifecycle",
		Name:        "Leave Lifecycle",
		Description: "Accrued annual leave, a pending and an approved request, unpaid leave deducted in payroll",
	},
	{
		ID:          "retrenchment",
		Name:        "Retrenchment",
		Description: "Six years of service ending this month with notice in lieu, severance and leave payout",
	},
}

// Leave type IDs shared by every scenario.
const (
	annualLeaveID = "annual"
	sickLeaveID   = "sick"
	familyLeaveID = "family"
	unpaidLeaveID = "unpaid"
)

type loadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the database and loads a predefined scenario into
// the acting organization.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req loadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	actor := actorFrom(ctx)

	var load func(context.Context, generic.Actor) error
	switch req.ScenarioID {
	case "monthly-payroll":
		load = h.loadMonthlyPayrollScenario
	case "leave-lifecycle":
		load = h.loadLeaveLifecycleScenario
	case "retrenchment":
		load = h.loadRetrenchmentScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		writeDomainError(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx, actor); err != nil {
		writeDomainError(w, r, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	loggerFrom(ctx).Info("scenario loaded", "scenario", req.ScenarioID, "organization", actor.OrganizationID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMonthlyPayrollScenario(ctx context.Context, actor generic.Actor) error {
	if err := h.seedLeaveTypes(ctx, actor.OrganizationID); err != nil {
		return err
	}
	today := h.today()
	profiles := []roster.Profile{
		{
			Employee:      employee(actor.OrganizationID, "emp-001", "Thandi Nkosi", today.AddYears(-3), "JHB"),
			MonthlySalary: decimal.NewFromInt(45000),
			NoticeDays:    30,
			Allowances: []payslip.EarningLine{
				{Code: "TRAVEL", Name: "Travel allowance", Amount: decimal.NewFromInt(3500), Taxable: true},
			},
			Deductions: []payslip.DeductionLine{
				{Code: "MEDICAL", Name: "Medical aid", Amount: decimal.NewFromInt(2400)},
			},
		},
		{
			Employee:      employee(actor.OrganizationID, "emp-002", "Pieter van Wyk", today.AddYears(-1), "JHB"),
			MonthlySalary: decimal.NewFromInt(28000),
			NoticeDays:    30,
			Debts: []roster.Debt{
				{Code: "LOAN", Name: "Staff loan", Outstanding: decimal.NewFromInt(1500), Required: true},
			},
		},
		{
			Employee:      employee(actor.OrganizationID, "emp-003", "Ayesha Patel", today.AddMonths(-4), "CPT"),
			MonthlySalary: decimal.NewFromInt(62000),
			NoticeDays:    30,
		},
	}
	if err := h.seedProfiles(ctx, actor.OrganizationID, profiles); err != nil {
		return err
	}

	_, err := h.Payruns.Create(ctx, actor, payrun.CreateInput{
		Period:    currentMonth(today),
		Frequency: payrun.FrequencyMonthly,
	})
	return err
}

func (h *Handler) loadLeaveLifecycleScenario(ctx context.Context, actor generic.Actor) error {
	if err := h.seedLeaveTypes(ctx, actor.OrganizationID); err != nil {
		return err
	}
	today := h.today()
	emp := employee(actor.OrganizationID, "emp-001", "Sipho Dlamini", today.AddMonths(-18), "JHB")
	if err := h.seedProfiles(ctx, actor.OrganizationID, []roster.Profile{
		{Employee: emp, MonthlySalary: decimal.NewFromInt(32000), NoticeDays: 30},
	}); err != nil {
		return err
	}

	// Annual leave: one request approved next week, one pending after it.
	start := h.nextWorkingDay(emp.ID, today.AddDays(7))
	approved, err := h.requestLeave(ctx, actor, emp.ID, annualLeaveID, start, 2, "Family visit")
	if err != nil {
		return err
	}
	if _, err := h.Requests.Approve(ctx, actor, approved.ID); err != nil {
		return err
	}
	if _, err := h.requestLeave(ctx, actor, emp.ID, annualLeaveID, h.nextWorkingDay(emp.ID, start.AddDays(14)), 3, "Holiday"); err != nil {
		return err
	}

	// Unpaid leave inside this month is deducted by the payrun.
	unpaidStart := h.nextWorkingDay(emp.ID, generic.StartOfMonth(today.Year(), today.Month()))
	unpaid, err := h.requestLeave(ctx, actor, emp.ID, unpaidLeaveID, unpaidStart, 1, "Personal")
	if err != nil {
		return err
	}
	if _, err := h.Requests.Approve(ctx, actor, unpaid.ID); err != nil {
		return err
	}

	_, err = h.Payruns.Create(ctx, actor, payrun.CreateInput{
		Period:    currentMonth(today),
		Frequency: payrun.FrequencyMonthly,
	})
	return err
}

func (h *Handler) loadRetrenchmentScenario(ctx context.Context, actor generic.Actor) error {
	if err := h.seedLeaveTypes(ctx, actor.OrganizationID); err != nil {
		return err
	}
	today := h.today()
	emp := employee(actor.OrganizationID, "emp-001", "Johan Botha", today.AddYears(-6).AddMonths(-2), "JHB")
	if err := h.seedProfiles(ctx, actor.OrganizationID, []roster.Profile{
		{
			Employee:      emp,
			MonthlySalary: decimal.NewFromInt(38000),
			NoticeDays:    30,
			Debts: []roster.Debt{
				{Code: "LOAN", Name: "Staff loan", Outstanding: decimal.NewFromInt(4000), Required: true},
			},
		},
		{
			Employee:      employee(actor.OrganizationID, "emp-002", "Lerato Mokoena", today.AddYears(-2), "JHB"),
			MonthlySalary: decimal.NewFromInt(30000),
			NoticeDays:    30,
		},
	}); err != nil {
		return err
	}

	lwd := currentMonth(today).End
	_, err := h.Terminations.Create(ctx, actor, termination.CreateInput{
		EmployeeID:      emp.ID,
		TerminationDate: lwd,
		LastWorkingDay:  lwd,
		Reason:          termination.ReasonRetrenchment,
		PaidInLieu:      true,
		Notes:           "Branch closure",
	})
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seedLeaveTypes(ctx context.Context, org generic.OrganizationID) error {
	pf := factory.NewPolicyFactory(org)
	for _, js := range []string{
		factory.AnnualLeaveJSON(annualLeaveID, "Annual Leave", 15, 5),
		factory.SickLeaveJSON(sickLeaveID, "Sick Leave", 10),
		factory.FamilyResponsibilityJSON(familyLeaveID, "Family Responsibility", 3),
		factory.UnpaidLeaveJSON(unpaidLeaveID, "Unpaid Leave"),
	} {
		lt, err := pf.ParseLeaveType(js)
		if err != nil {
			return err
		}
		if err := h.Store.SaveLeaveType(ctx, lt); err != nil {
			return err
		}
	}
	return nil
}

// seedProfiles stores the profiles with the public holidays, refreshes
// the calendar and accrues leave to today.
func (h *Handler) seedProfiles(ctx context.Context, org generic.OrganizationID, profiles []roster.Profile) error {
	for _, hd := range publicHolidays() {
		if err := h.Store.SaveHoliday(ctx, hd); err != nil {
			return err
		}
	}
	for _, p := range profiles {
		if err := h.Store.SaveProfile(ctx, p); err != nil {
			return err
		}
	}
	if err := h.RefreshCalendar(ctx, org); err != nil {
		return err
	}
	_, err := h.AccrueOrganization(ctx, generic.SystemActor(org), h.today(), "")
	return err
}

func (h *Handler) requestLeave(ctx context.Context, actor generic.Actor, emp generic.EntityID, lt string, start generic.TimePoint, days int, reason string) (leave.Request, error) {
	end := start
	for n := 1; n < days; n++ {
		end = h.nextWorkingDay(emp, end.AddDays(1))
	}
	return h.Requests.Create(ctx, actor, leave.CreateRequestInput{
		EmployeeID:  emp,
		LeaveTypeID: generic.PolicyID(lt),
		Start:       start,
		End:         end,
		Reason:      reason,
	})
}

func (h *Handler) nextWorkingDay(emp generic.EntityID, from generic.TimePoint) generic.TimePoint {
	day := from
	for !h.Calendar.IsWorkingDay(emp, day) {
		day = day.AddDays(1)
	}
	return day
}

func employee(org generic.OrganizationID, id, name string, start generic.TimePoint, payPoint string) generic.Employee {
	return generic.Employee{
		ID:             generic.EntityID(id),
		OrganizationID: org,
		Name:           name,
		StartDate:      start,
		PayPoint:       payPoint,
	}
}

func currentMonth(today generic.TimePoint) generic.Period {
	return generic.Period{
		Start: generic.StartOfMonth(today.Year(), today.Month()),
		End:   generic.EndOfMonth(today.Year(), today.Month()),
	}
}

// publicHolidays are the recurring South African public holidays with a
// fixed date. They apply to every organization.
func publicHolidays() []generic.Holiday {
	fixed := []struct {
		month time.Month
		day   int
		name  string
	}{
		{time.January, 1, "New Year's Day"},
		{time.March, 21, "Human Rights Day"},
		{time.April, 27, "Freedom Day"},
		{time.May, 1, "Workers' Day"},
		{time.June, 16, "Youth Day"},
		{time.August, 9, "National Women's Day"},
		{time.September, 24, "Heritage Day"},
		{time.December, 16, "Day of Reconciliation"},
		{time.December, 25, "Christmas Day"},
		{time.December, 26, "Day of Goodwill"},
	}
	out := make([]generic.Holiday, 0, len(fixed))
	for _, f := range fixed {
		out = append(out, generic.Holiday{
			Date:      generic.NewTimePoint(2025, f.month, f.day),
			Name:      f.name,
			Recurring: true,
		})
	}
	return out
}
