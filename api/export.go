package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payrun"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/validation"
)

// =============================================================================
// EXPORTS
// =============================================================================
//
//   GET    /api/payruns/{id}/register.xlsx                 Payroll register
//   GET    /api/payruns/{id}/payslips/{employeeID}         One payslip as JSON
//   GET    /api/payruns/{id}/payslips/{employeeID}.pdf     One payslip as PDF

const registerSheet = "Register"

var registerHeader = []any{
	"Employee ID", "Employee", "Gross", "Taxable gross", "PAYE", "UIF",
	"Total deductions", "Net", "Errors",
}

// ExportRegister writes the payrun's register as an Excel workbook, one
// row per employee and a totals row.
func (h *Handler) ExportRegister(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	run, err := h.Payruns.Get(r.Context(), actor.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Payrun not found", err)
		return
	}

	var buf bytes.Buffer
	if err := writeRegister(&buf, run); err != nil {
		writeDomainError(w, r, "Failed to build register", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payrun-%s-register.xlsx", run.Period.Start.String()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeRegister(buf *bytes.Buffer, run payrun.Payrun) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(registerSheet, "A1", &registerHeader); err != nil {
		return err
	}

	row := 2
	for _, e := range run.Entries {
		values := []any{string(e.EmployeeID), e.Input.Employee.Name}
		if p := e.Payslip; p != nil {
			values = append(values,
				money(p.Gross), money(p.TaxableGross),
				money(p.Deduction(payslip.CodePAYE)), money(p.Deduction(payslip.CodeUIF)),
				money(p.TotalDeductions), money(p.Net), issueCodes(p.Errors),
			)
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(registerSheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	totals := []any{"TOTAL", fmt.Sprintf("%d employees", run.Totals.EmployeeCount),
		money(run.Totals.Gross), nil, nil, nil, money(run.Totals.Deductions), money(run.Totals.Net),
		fmt.Sprintf("%d with errors", run.Totals.EmployeesWithErrors)}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(registerSheet, cell, &totals); err != nil {
		return err
	}
	if err := f.SetColWidth(registerSheet, "A", "I", 16); err != nil {
		return err
	}
	return f.Write(buf)
}

// GetPayslip returns one employee's payslip. A ".pdf" suffix on the
// employee ID renders the computed payslip as a PDF.
func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	run, err := h.Payruns.Get(r.Context(), actor.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "Payrun not found", err)
		return
	}
	param := chi.URLParam(r, "employeeID")
	employeeID := generic.EntityID(strings.TrimSuffix(param, ".pdf"))
	entry, ok := run.Entry(employeeID)
	if !ok {
		writeError(w, http.StatusNotFound, "Payslip not found", fmt.Errorf("payrun %s has no entry for %s", run.ID, employeeID))
		return
	}
	if !strings.HasSuffix(param, ".pdf") {
		writeJSON(w, http.StatusOK, toPayslipDTO(entry))
		return
	}
	if entry.Payslip == nil {
		writeError(w, http.StatusNotFound, "Payslip not found", fmt.Errorf("payslip for %s has not been computed", employeeID))
		return
	}

	var buf bytes.Buffer
	if err := writePayslipPDF(&buf, run, *entry.Payslip, h.Currency.Code); err != nil {
		writeDomainError(w, r, "Failed to render payslip", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=payslip-%s-%s.pdf", employeeID, run.Period.Start.String()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writePayslipPDF(buf *bytes.Buffer, run payrun.Payrun, p payslip.Payslip, currency string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s (%s)", p.EmployeeName, p.EmployeeID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", run.Period.Start, run.Period.End))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Pay date: %s   Status: %s", run.PayDate, run.Status))
	pdf.Ln(10)

	section := func(title string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, title)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
	}
	line := func(label string, amount decimal.Decimal) {
		pdf.CellFormat(120, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%s %s", amount.StringFixed(2), currency), "", 1, "R", false, 0, "")
	}

	section("Earnings")
	for _, l := range p.Earnings {
		line(l.Name, l.Amount)
	}
	section("Deductions")
	for _, l := range p.Deductions {
		if l.Skipped {
			continue
		}
		line(l.Name, l.Amount)
	}
	if len(p.EmployerContributions) > 0 {
		section("Employer contributions")
		for _, l := range p.EmployerContributions {
			line(l.Name, l.Amount)
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	line("Gross", p.Gross)
	line("Total deductions", p.TotalDeductions)
	line("Net pay", p.Net)

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("Year to date: gross %s, tax %s, net %s",
		p.YTDGross.StringFixed(2), p.YTDTax.StringFixed(2), p.YTDNet.StringFixed(2)))

	return pdf.Output(buf)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func issueCodes(issues []validation.Issue) string {
	codes := make([]string, 0, len(issues))
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	return strings.Join(codes, ", ")
}
