package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payrun"
	"github.com/warp/payroll-engine/payslip"
)

// =============================================================================
// PAYRUN HANDLERS
// =============================================================================
//
//   GET    /api/payruns                               List payruns
//   POST   /api/payruns                               Create a draft
//   GET    /api/payruns/{id}                          Get with payslips
//   POST   /api/payruns/{id}/run                      Calculate payslips
//   POST   /api/payruns/{id}/cancel                   Discard in-flight results
//   POST   /api/payruns/{id}/finalize                 Lock the run
//   PATCH  /api/payruns/{id}/payslips/{employeeID}    Edit payslip lines

// ListPayruns returns the organization's payruns without payslips.
func (h *Handler) ListPayruns(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	runs, err := h.Payruns.List(r.Context(), actor.OrganizationID)
	if err != nil {
		writeDomainError(w, r, "Failed to list payruns", err)
		return
	}
	dtos := make([]PayrunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toPayrunDTO(run, false))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayrun creates a draft payrun for a period.
func (h *Handler) CreatePayrun(w http.ResponseWriter, r *http.Request) {
	var req CreatePayrunRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, _ := generic.ParseTimePoint(req.PeriodStart)
	end, _ := generic.ParseTimePoint(req.PeriodEnd)
	in := payrun.CreateInput{
		Period:    generic.Period{Start: start, End: end},
		Frequency: payrun.FrequencyMonthly,
		PayPoints: req.PayPoints,
	}
	if req.PayDate != "" {
		in.PayDate, _ = generic.ParseTimePoint(req.PayDate)
	}
	if req.Frequency != "" {
		in.Frequency, _ = payrun.ParseFrequency(req.Frequency)
	}

	run, err := h.Payruns.Create(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeDomainError(w, r, "Failed to create payrun", err)
		return
	}
	loggerFrom(r.Context()).Info("payrun created", "payrun_id", run.ID, "period", run.Period.String())
	writeJSON(w, http.StatusCreated, toPayrunDTO(run, false))
}

// GetPayrun returns a payrun with its payslips.
func (h *Handler) GetPayrun(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	run, err := h.Payruns.Get(r.Context(), actor.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Payrun not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrunDTO(run, true))
}

// RunPayrun calculates every pending payslip. The response is the run as
// it stands after the pass: ready, or draft if it was cancelled meanwhile.
func (h *Handler) RunPayrun(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Failed to run payrun", h.Payruns.Run)
}

func (h *Handler) CancelPayrun(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Failed to cancel payrun", h.Payruns.Cancel)
}

// FinalizePayrun locks a ready payrun with no payslip errors.
func (h *Handler) FinalizePayrun(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Failed to finalize payrun", h.Payruns.Finalize)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, message string, move func(ctx context.Context, actor generic.Actor, id string) (payrun.Payrun, error)) {
	run, err := move(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, message, err)
		return
	}
	loggerFrom(r.Context()).Info("payrun transition", "payrun_id", run.ID, "status", run.Status.String())
	writeJSON(w, http.StatusOK, toPayrunDTO(run, true))
}

// EditPayslip applies line edits to one employee's payslip and returns
// the recomputed run.
func (h *Handler) EditPayslip(w http.ResponseWriter, r *http.Request) {
	var req EditPayslipRequest
	if !h.decode(w, r, &req) {
		return
	}

	edits := make([]payslip.LineEdit, 0, len(req.Edits))
	for _, e := range req.Edits {
		edits = append(edits, toLineEdit(e))
	}

	run, err := h.Payruns.EditPayslip(r.Context(), actorFrom(r.Context()),
		chi.URLParam(r, "id"), generic.EntityID(chi.URLParam(r, "employeeID")), edits...)
	if err != nil {
		writeDomainError(w, r, "Failed to edit payslip", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrunDTO(run, true))
}

func toLineEdit(e LineEditRequest) payslip.LineEdit {
	edit := payslip.LineEdit{
		Line:    payslip.LineEarning,
		Code:    e.Code,
		Action:  parseEditAction(e.Action),
		Name:    e.Name,
		Amount:  e.Amount,
		Hours:   e.Hours,
		Rate:    e.Rate,
		Skip:    e.Skip,
		Note:    e.Note,
		Taxable: e.Taxable,
	}
	if e.Line == "deduction" {
		edit.Line = payslip.LineDeduction
	}
	return edit
}

func parseEditAction(s string) payslip.EditAction {
	switch s {
	case "add":
		return payslip.EditAdd
	case "remove":
		return payslip.EditRemove
	}
	return payslip.EditUpdate
}
