package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TERMINATION HELPERS
// =============================================================================

func terminationBody(reason string) map[string]any {
	return map[string]any{
		"employee_id":      "emp-1",
		"termination_date": "2025-03-31",
		"last_working_day": "2025-03-31",
		"reason":           reason,
		"paid_in_lieu":     true,
	}
}

func (s *testServer) createTermination(body map[string]any) TerminationDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/terminations", body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[TerminationDTO](s.t, rec)
}

func findDeduction(c ComponentsDTO, code string) (DeductionDTO, bool) {
	for _, d := range c.Deductions {
		if d.Code == code {
			return d, true
		}
	}
	return DeductionDTO{}, false
}

func findEarning(lines []EarningDTO, code string) (EarningDTO, bool) {
	for _, e := range lines {
		if e.Code == code {
			return e, true
		}
	}
	return EarningDTO{}, false
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestTermination_Preview_RetrenchmentDoesNotPersist(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")

	rec := s.do(http.MethodPost, "/api/terminations/preview", terminationBody("retrenchment"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pv := decodeBody[TerminationDTO](t, rec)
	assert.Empty(t, pv.ID)
	assert.Empty(t, pv.Status)
	assert.Equal(t, "retrenchment", pv.Reason)
	assert.Equal(t, 30, pv.NoticeDays)
	assert.True(t, pv.Components.NoticePay.IsPositive())
	assert.True(t, pv.Components.SeverancePay.IsPositive())
	assert.True(t, pv.Components.Net.Equal(pv.Components.Gross.Sub(pv.Components.TotalDeductions)))

	rec = s.do(http.MethodGet, "/api/terminations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]TerminationDTO](t, rec))
}

func TestTermination_Preview_ResignationHasNoSeverance(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")

	rec := s.do(http.MethodPost, "/api/terminations/preview", terminationBody("resignation"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[TerminationDTO](t, rec).Components.SeverancePay.IsZero())
}

func TestTermination_Preview_UnknownReason_BadRequest(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")

	rec := s.do(http.MethodPost, "/api/terminations/preview", terminationBody("walked_out"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "TerminationRequest.Reason: failed oneof")
}

func TestTermination_Preview_UnknownEmployee_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/terminations/preview", terminationBody("resignation"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestTermination_SubmitPayrollComplete(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")

	// GIVEN: a draft resignation
	created := s.createTermination(terminationBody("resignation"))
	assert.Equal(t, "draft", created.Status)
	assert.Equal(t, "hr-1", created.CreatedBy)

	rec := s.do(http.MethodPost, "/api/terminations", terminationBody("resignation"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"TERMINATION_EXISTS"}, decodeBody[ErrorResponse](t, rec).Codes)

	// WHEN: it is submitted
	rec = s.do(http.MethodPost, "/api/terminations/"+created.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	submitted := decodeBody[TerminationDTO](t, rec)

	// THEN: the settlement is frozen and employment ends
	assert.Equal(t, "pending_payroll", submitted.Status)
	assert.Equal(t, "hr-1", submitted.SubmittedBy)
	rec = s.do(http.MethodGet, "/api/employees/emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03-31", decodeBody[EmployeeDTO](t, rec).LeftAt)

	// WHEN: completing against a payrun that is not finalized
	run := s.createMarchPayrun()
	rec = s.do(http.MethodPost, "/api/terminations/"+created.ID+"/complete", map[string]any{"payrun_id": run.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"FINAL_PAYRUN_NOT_FINALIZED"}, decodeBody[ErrorResponse](t, rec).Codes)

	// WHEN: the final payrun carries the settlement and is finalized
	ready := s.payrunAction(run.ID, "run")
	slip := payslipFor(t, ready, "emp-1")
	assert.True(t, slip.Gross.Equal(submitted.Components.Gross), "payslip gross %s, settlement gross %s", slip.Gross, submitted.Components.Gross)
	_, hasBasic := findEarning(slip.Earnings, "BASIC")
	assert.False(t, hasBasic, "settlement replaces the regular salary")
	s.payrunAction(run.ID, "finalize")

	rec = s.do(http.MethodPost, "/api/terminations/"+created.ID+"/complete", map[string]any{"payrun_id": run.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeBody[TerminationDTO](t, rec)

	// THEN: the termination is closed against that run
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, run.ID, done.FinalPayrunID)
	assert.Equal(t, "hr-1", done.CompletedBy)
	assert.True(t, done.Components.Net.Equal(submitted.Components.Net))

	rec = s.do(http.MethodPost, "/api/terminations/"+created.ID+"/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/terminations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]TerminationDTO](t, rec)
	require.Len(t, all, 1)
	assert.Equal(t, "completed", all[0].Status)
}

func TestTermination_Submit_BlockingErrors_Unprocessable(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")
	body := terminationBody("resignation")
	body["termination_date"] = "2025-03-20"
	created := s.createTermination(body)
	assert.Contains(t, created.Validation.ErrorCodes(), "TERMINATION_BEFORE_LAST_WORKING_DAY")

	rec := s.do(http.MethodPost, "/api/terminations/"+created.ID+"/submit", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"TERMINATION_BEFORE_LAST_WORKING_DAY"}, decodeBody[ErrorResponse](t, rec).Codes)

	rec = s.do(http.MethodGet, "/api/terminations/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft", decodeBody[TerminationDTO](t, rec).Status)
}

func TestTermination_Complete_FromDraft_Conflict(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")
	created := s.createTermination(terminationBody("resignation"))

	rec := s.do(http.MethodPost, "/api/terminations/"+created.ID+"/complete", map[string]any{"payrun_id": "run-1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTermination_OtherOrganization_NotFound(t *testing.T) {
	s := newTestServer(t)
	s.addEmployee("emp-1", "30000")
	created := s.createTermination(terminationBody("resignation"))

	rec := s.do(http.MethodGet, "/api/terminations/"+created.ID, nil, "X-Organization-ID", "org-2")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// DEDUCTION EDITS
// =============================================================================

func TestTermination_EditDeductions(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/employees", map[string]any{
		"id":             "emp-1",
		"name":           "Johan Botha",
		"start_date":     "2019-01-01",
		"monthly_salary": "38000",
		"notice_days":    30,
		"debts": []map[string]any{
			{"code": "LOAN", "name": "Staff loan", "outstanding": "4000"},
			{"code": "GARNISHEE", "name": "Court order", "outstanding": "800", "required": true},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := s.createTermination(terminationBody("retrenchment"))
	loan, ok := findDeduction(created.Components, "LOAN")
	require.True(t, ok)
	assertDec(t, "4000", loan.Amount)

	// WHEN: the voluntary loan recovery is skipped
	rec = s.do(http.MethodPatch, "/api/terminations/"+created.ID+"/deductions/LOAN", map[string]any{"skip": true, "note": "written off"})

	// THEN: net pay rises by the loan
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeBody[TerminationDTO](t, rec)
	loan, ok = findDeduction(edited.Components, "LOAN")
	require.True(t, ok)
	assert.True(t, loan.Skipped)
	assert.True(t, edited.Components.Net.Equal(created.Components.Net.Add(dec("4000"))),
		"net %s, before %s", edited.Components.Net, created.Components.Net)

	// WHEN: skipping a required debt or a statutory line
	for _, code := range []string{"GARNISHEE", "PAYE"} {
		rec = s.do(http.MethodPatch, "/api/terminations/"+created.ID+"/deductions/"+code, map[string]any{"skip": true})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, code)
		assert.Equal(t, []string{"INVALID_LINE_MODIFICATION"}, decodeBody[ErrorResponse](t, rec).Codes, code)
	}
}
