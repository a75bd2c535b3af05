package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

// =============================================================================
// LEAVE HANDLERS
// =============================================================================
//
//   GET    /api/leave/types                         List leave types
//   POST   /api/leave/types                         Create or replace a leave type
//   POST   /api/leave/requests                      Submit (reserves days)
//   POST   /api/leave/requests/{id}/approve         pending -> approved
//   POST   /api/leave/requests/{id}/reject          pending -> rejected
//   POST   /api/leave/requests/{id}/cancel          pending|future approved -> cancelled
//   POST   /api/leave/adjustments                   Signed balance correction
//   POST   /api/leave/accrue                        Run accrual up to a date

// ListLeaveTypes returns the organization's leave types in JSON form.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	types, err := h.Store.ListLeaveTypes(r.Context(), actor.OrganizationID)
	if err != nil {
		writeDomainError(w, r, "Failed to list leave types", err)
		return
	}
	pf := factory.NewPolicyFactory(actor.OrganizationID)
	dtos := make([]factory.LeaveTypeJSON, 0, len(types))
	for _, lt := range types {
		dtos = append(dtos, pf.LeaveTypeToJSON(lt))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveLeaveType parses a leave type definition and stores it.
func (h *Handler) SaveLeaveType(w http.ResponseWriter, r *http.Request) {
	var req factory.LeaveTypeJSON
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())
	pf := factory.NewPolicyFactory(actor.OrganizationID)

	lt, err := pf.LeaveTypeFromJSON(req)
	if err != nil {
		writeDomainError(w, r, "Invalid leave type", err)
		return
	}
	if err := h.Store.SaveLeaveType(r.Context(), lt); err != nil {
		writeDomainError(w, r, "Failed to save leave type", err)
		return
	}
	writeJSON(w, http.StatusCreated, pf.LeaveTypeToJSON(lt))
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// CreateLeaveRequest brings the balance up to date, then reserves the
// requested working days.
func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequestRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	actor := actorFrom(ctx)

	profile, ok := h.employee(w, r, req.EmployeeID)
	if !ok {
		return
	}
	lt, err := h.Store.GetLeaveType(ctx, actor.OrganizationID, generic.PolicyID(req.LeaveTypeID))
	if err != nil {
		writeDomainError(w, r, "Leave type not found", err)
		return
	}
	if _, err := h.Ledger.Accrue(ctx, actor, lt, profile.Employee, h.today()); err != nil {
		writeDomainError(w, r, "Failed to accrue leave", err)
		return
	}

	start, _ := generic.ParseTimePoint(req.Start)
	end, _ := generic.ParseTimePoint(req.End)
	created, err := h.Requests.Create(ctx, actor, leave.CreateRequestInput{
		EmployeeID:    profile.Employee.ID,
		LeaveTypeID:   lt.ID,
		Start:         start,
		End:           end,
		IsPartialDay:  req.IsPartialDay,
		PartialHours:  req.PartialHours,
		Reason:        req.Reason,
		AttachmentRef: req.AttachmentRef,
	})
	if err != nil {
		writeDomainError(w, r, "Failed to create leave request", err)
		return
	}
	loggerFrom(ctx).Info("leave requested", "request_id", created.ID, "employee_id", created.EmployeeID, "days", created.Days.String())
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(created))
}

func (h *Handler) ApproveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	req, err := h.Requests.Approve(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to approve leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

func (h *Handler) RejectLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if !h.decode(w, r, &body) {
		return
	}
	actor := actorFrom(r.Context())
	req, err := h.Requests.Reject(r.Context(), actor, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeDomainError(w, r, "Failed to reject leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

func (h *Handler) CancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if !h.decode(w, r, &body) {
		return
	}
	actor := actorFrom(r.Context())
	req, err := h.Requests.Cancel(r.Context(), actor, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeDomainError(w, r, "Failed to cancel leave request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// ListLeaveRequests returns an employee's requests, newest first.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.employee(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	reqs, err := h.Store.ListRequests(r.Context(), profile.Employee.ID)
	if err != nil {
		writeDomainError(w, r, "Failed to list leave requests", err)
		return
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	dtos := make([]LeaveRequestDTO, 0, len(reqs))
	for _, req := range reqs {
		dtos = append(dtos, toLeaveRequestDTO(req))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BALANCES
// =============================================================================

// GetLeaveBalances returns one balance per leave type of the employee's
// organization. ?as_of=YYYY-MM-DD projects accrual to that date without
// persisting it.
func (h *Handler) GetLeaveBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	profile, ok := h.employee(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var asOf generic.TimePoint
	if s := r.URL.Query().Get("as_of"); s != "" {
		var err error
		if asOf, err = generic.ParseTimePoint(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
			return
		}
	}

	types, err := h.Store.ListLeaveTypes(ctx, actor.OrganizationID)
	if err != nil {
		writeDomainError(w, r, "Failed to list leave types", err)
		return
	}
	dtos := make([]BalanceDTO, 0, len(types))
	for _, lt := range types {
		var b leave.Balance
		if asOf.IsZero() {
			b, err = h.Ledger.Balance(ctx, profile.Employee.ID, lt.ID)
		} else {
			b, err = h.Ledger.Project(ctx, lt, profile.Employee, asOf)
		}
		if err != nil {
			writeDomainError(w, r, "Failed to load balance", err)
			return
		}
		dtos = append(dtos, toBalanceDTO(b, lt.Name))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListLeaveTransactions returns the employee's journal across leave types.
func (h *Handler) ListLeaveTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	profile, ok := h.employee(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	types, err := h.Store.ListLeaveTypes(ctx, actor.OrganizationID)
	if err != nil {
		writeDomainError(w, r, "Failed to list leave types", err)
		return
	}

	var txs []generic.Transaction
	for _, lt := range types {
		loaded, err := h.Store.Load(ctx, profile.Employee.ID, lt.ID)
		if err != nil {
			writeDomainError(w, r, "Failed to load transactions", err)
			return
		}
		txs = append(txs, loaded...)
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].EffectiveAt.Before(txs[j].EffectiveAt) })

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReconcileLeave compares each stored balance with the sums of its journal.
func (h *Handler) ReconcileLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	profile, ok := h.employee(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	types, err := h.Store.ListLeaveTypes(ctx, actor.OrganizationID)
	if err != nil {
		writeDomainError(w, r, "Failed to list leave types", err)
		return
	}

	dtos := make([]ReconciliationDTO, 0, len(types))
	for _, lt := range types {
		rec, err := h.Ledger.Reconcile(ctx, profile.Employee.ID, lt.ID)
		if err != nil {
			writeDomainError(w, r, "Failed to reconcile balance", err)
			return
		}
		if !rec.Balanced() {
			h.Logger.Warn("leave balance drifted from journal",
				"employee_id", profile.Employee.ID,
				"leave_type_id", lt.ID,
				"accrued", rec.Balance.Accrued.String(),
				"journal_accrued", rec.JournalAccrued.String(),
			)
		}
		dtos = append(dtos, toReconciliationDTO(rec, lt.Name))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdjustment applies a signed correction to a balance.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	actor := actorFrom(ctx)

	profile, ok := h.employee(w, r, req.EmployeeID)
	if !ok {
		return
	}
	if _, err := h.Store.GetLeaveType(ctx, actor.OrganizationID, generic.PolicyID(req.LeaveTypeID)); err != nil {
		writeDomainError(w, r, "Leave type not found", err)
		return
	}

	adj := leave.Adjustment{
		EmployeeID:     profile.Employee.ID,
		LeaveTypeID:    generic.PolicyID(req.LeaveTypeID),
		Delta:          req.Delta,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.EffectiveAt != "" {
		adj.EffectiveAt, _ = generic.ParseTimePoint(req.EffectiveAt)
	}
	b, err := h.Ledger.Adjust(ctx, actor, adj)
	if err != nil {
		writeDomainError(w, r, "Failed to adjust balance", err)
		return
	}
	lt, _ := h.Store.GetLeaveType(ctx, actor.OrganizationID, adj.LeaveTypeID)
	writeJSON(w, http.StatusCreated, toBalanceDTO(b, lt.Name))
}

// =============================================================================
// ACCRUAL
// =============================================================================

// AccrueLeave runs accrual for one employee or the whole organization.
func (h *Handler) AccrueLeave(w http.ResponseWriter, r *http.Request) {
	var req AccrueRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())

	asOf := h.today()
	if req.AsOf != "" {
		asOf, _ = generic.ParseTimePoint(req.AsOf)
	}
	if req.EmployeeID != "" {
		if _, ok := h.employee(w, r, req.EmployeeID); !ok {
			return
		}
	}

	n, err := h.AccrueOrganization(r.Context(), actor, asOf, generic.EntityID(req.EmployeeID))
	if err != nil {
		writeDomainError(w, r, "Failed to accrue leave", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"as_of": asOf.String(), "balances_updated": n})
}

// AccrueOrganization accrues every active leave type for the
// organization's current employees up to asOf. A non-empty only limits
// it to one employee. It returns the number of balances touched.
func (h *Handler) AccrueOrganization(ctx context.Context, actor generic.Actor, asOf generic.TimePoint, only generic.EntityID) (int, error) {
	types, err := h.Store.ListLeaveTypes(ctx, actor.OrganizationID)
	if err != nil {
		return 0, fmt.Errorf("list leave types: %w", err)
	}
	profiles, err := h.Store.ListProfiles(ctx, actor.OrganizationID)
	if err != nil {
		return 0, fmt.Errorf("list employees: %w", err)
	}

	n := 0
	for _, p := range profiles {
		if only != "" && p.Employee.ID != only {
			continue
		}
		// Leavers stop accruing on their leaving date.
		until := asOf
		if p.LeftAt != nil && p.LeftAt.Before(until) {
			until = *p.LeftAt
		}
		for _, lt := range types {
			if !lt.IsActive {
				continue
			}
			if _, err := h.Ledger.Accrue(ctx, actor, lt, p.Employee, until); err != nil {
				return n, fmt.Errorf("accrue %s for %s: %w", lt.ID, p.Employee.ID, err)
			}
			n++
		}
	}
	return n, nil
}
