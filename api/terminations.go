package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/termination"
)

// =============================================================================
// TERMINATION HANDLERS
// =============================================================================
//
//   GET    /api/terminations                         List terminations
//   POST   /api/terminations                         Create a draft
//   POST   /api/terminations/preview                 Compute without saving
//   GET    /api/terminations/{id}                    Current settlement
//   POST   /api/terminations/{id}/submit             draft -> pending_payroll
//   POST   /api/terminations/{id}/complete           pending_payroll -> completed
//   PATCH  /api/terminations/{id}/deductions/{code}  Edit a settlement deduction

// ListTerminations returns the organization's terminations without
// recomputing their settlements.
func (h *Handler) ListTerminations(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	all, err := h.Store.ListTerminations(r.Context(), actor.OrganizationID)
	if err != nil {
		writeDomainError(w, r, "Failed to list terminations", err)
		return
	}
	dtos := make([]TerminationDTO, 0, len(all))
	for _, t := range all {
		pv := termination.Preview{Termination: t}
		if t.Components != nil {
			pv.Components = *t.Components
		}
		dtos = append(dtos, toTerminationDTO(pv))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTermination stores a draft and returns it with its settlement.
func (h *Handler) CreateTermination(w http.ResponseWriter, r *http.Request) {
	in, ok := h.terminationInput(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	actor := actorFrom(ctx)

	t, err := h.Terminations.Create(ctx, actor, in)
	if err != nil {
		writeDomainError(w, r, "Failed to create termination", err)
		return
	}
	pv, err := h.Terminations.Evaluate(ctx, actor.OrganizationID, t.ID)
	if err != nil {
		writeDomainError(w, r, "Failed to compute settlement", err)
		return
	}
	loggerFrom(ctx).Info("termination created", "termination_id", t.ID, "employee_id", t.EmployeeID, "reason", t.Reason.String())
	writeJSON(w, http.StatusCreated, toTerminationDTO(pv))
}

// PreviewTermination computes a settlement without saving anything.
func (h *Handler) PreviewTermination(w http.ResponseWriter, r *http.Request) {
	in, ok := h.terminationInput(w, r)
	if !ok {
		return
	}
	pv, err := h.Terminations.Preview(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeDomainError(w, r, "Failed to preview termination", err)
		return
	}
	writeJSON(w, http.StatusOK, toTerminationDTO(pv))
}

func (h *Handler) terminationInput(w http.ResponseWriter, r *http.Request) (termination.CreateInput, bool) {
	var req TerminationRequest
	if !h.decode(w, r, &req) {
		return termination.CreateInput{}, false
	}
	reason, _ := termination.ParseReason(req.Reason)
	in := termination.CreateInput{
		EmployeeID: generic.EntityID(req.EmployeeID),
		Reason:     reason,
		PaidInLieu: req.PaidInLieu,
		NoticeDays: req.NoticeDays,
		Notes:      req.Notes,
	}
	in.TerminationDate, _ = generic.ParseTimePoint(req.TerminationDate)
	in.LastWorkingDay, _ = generic.ParseTimePoint(req.LastWorkingDay)
	if req.PaidThrough != "" {
		pt, _ := generic.ParseTimePoint(req.PaidThrough)
		in.PaidThrough = &pt
	}
	return in, true
}

// GetTermination returns the termination with its current settlement.
func (h *Handler) GetTermination(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	pv, err := h.Terminations.Evaluate(r.Context(), actor.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Termination not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toTerminationDTO(pv))
}

// SubmitTermination freezes the settlement for the final payrun. Blocking
// validation errors return 422 with their codes.
func (h *Handler) SubmitTermination(w http.ResponseWriter, r *http.Request) {
	_, pv, err := h.Terminations.Submit(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Failed to submit termination", err)
		return
	}
	writeJSON(w, http.StatusOK, toTerminationDTO(pv))
}

// CompleteTermination closes a termination once its final payrun is
// finalized.
func (h *Handler) CompleteTermination(w http.ResponseWriter, r *http.Request) {
	var req CompleteTerminationRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	actor := actorFrom(ctx)

	t, err := h.Terminations.Complete(ctx, actor, chi.URLParam(r, "id"), req.PayrunID)
	if err != nil {
		writeDomainError(w, r, "Failed to complete termination", err)
		return
	}
	pv, err := h.Terminations.Evaluate(ctx, actor.OrganizationID, t.ID)
	if err != nil {
		writeDomainError(w, r, "Failed to load settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toTerminationDTO(pv))
}

// EditTerminationDeduction changes one settlement deduction. Required
// and statutory lines cannot be skipped or removed.
func (h *Handler) EditTerminationDeduction(w http.ResponseWriter, r *http.Request) {
	var req DeductionEditRequest
	if !h.decode(w, r, &req) {
		return
	}
	edit := payslip.LineEdit{
		Line:   payslip.LineDeduction,
		Code:   chi.URLParam(r, "code"),
		Action: parseEditAction(req.Action),
		Name:   req.Name,
		Amount: req.Amount,
		Skip:   req.Skip,
		Note:   req.Note,
	}
	_, pv, err := h.Terminations.EditDeduction(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), edit)
	if err != nil {
		writeDomainError(w, r, "Failed to edit deduction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTerminationDTO(pv))
}
