package payslip

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/validation"
)

// Issue codes recorded on a payslip.
const (
	IssueRequiredLineMissing = "REQUIRED_LINE_MISSING"
	IssueRequiredLineSkipped = "REQUIRED_LINE_SKIPPED"
	IssueNegativeAmount      = "NEGATIVE_AMOUNT"
	IssueHoursExceedMax      = "HOURS_EXCEED_MAX"
	IssueStatutoryFailed     = "STATUTORY_COMPUTATION_FAILED"
)

// Calculator holds the configuration shared by every payslip in a run.
type Calculator struct {
	Tax      TaxRules
	Currency generic.Currency

	// MaxHoursPerLine caps hours on a single earning line. Zero = no cap.
	MaxHoursPerLine decimal.Decimal
}

// Calculate computes the payslip. It never fails: problems are recorded
// as errors on the payslip alongside best-effort totals.
func (c Calculator) Calculate(in Input) Payslip {
	var findings []validation.Finding
	p := Payslip{
		EmployeeID:   in.Employee.ID,
		EmployeeName: in.Employee.Name,
		Period:       in.Period,
	}

	// Earnings
	for _, line := range in.Earnings {
		line.Required = line.Required || in.requiresEarning(line.Code)
		if line.Hours != nil && line.Rate != nil {
			line.Amount = line.Hours.Mul(*line.Rate)
			if c.MaxHoursPerLine.IsPositive() && line.Hours.GreaterThan(c.MaxHoursPerLine) {
				findings = append(findings, validation.Error(lineCode(IssueHoursExceedMax, line.Code),
					fmt.Sprintf("%s: %s hours exceeds the maximum of %s", line.Code, line.Hours, c.MaxHoursPerLine)))
			}
		}
		line.Amount = c.Currency.Round(line.Amount)
		if line.Amount.IsNegative() && !line.AllowNegative {
			findings = append(findings, validation.Error(lineCode(IssueNegativeAmount, line.Code),
				fmt.Sprintf("%s: amount %s is negative", line.Code, line.Amount.StringFixed(c.Currency.Precision))))
		}
		p.Earnings = append(p.Earnings, line)
	}

	if in.UnpaidLeaveDays.IsPositive() {
		p.Earnings = append(p.Earnings, EarningLine{
			Code:          CodeUnpaidLeave,
			Name:          "Unpaid leave",
			Amount:        c.Currency.Round(in.UnpaidLeaveDays.Mul(in.DailyRate).Neg()),
			Taxable:       true,
			AllowNegative: true,
			Note:          fmt.Sprintf("%s days at %s", in.UnpaidLeaveDays, in.DailyRate.StringFixed(c.Currency.Precision)),
		})
	}

	for _, code := range in.RequiredEarnings {
		if !hasEarning(p.Earnings, code) {
			findings = append(findings, validation.Error(lineCode(IssueRequiredLineMissing, code),
				fmt.Sprintf("required earning %s is missing", code)))
		}
	}

	var earned, taxable []decimal.Decimal
	for _, e := range p.Earnings {
		earned = append(earned, e.Amount)
		if e.Taxable {
			taxable = append(taxable, e.Amount)
		}
	}
	p.Gross = c.Currency.Sum(earned...)
	p.TaxableGross = c.Currency.Sum(taxable...)

	// Statutory deductions
	if c.Tax != nil {
		statutory, err := c.Tax.Statutory(TaxInput{
			EmployeeID:     in.Employee.ID,
			Period:         in.Period,
			Gross:          p.Gross,
			TaxableGross:   p.TaxableGross,
			PeriodsPerYear: in.PeriodsPerYear,
			YTD:            in.PriorYTD,
		})
		if err != nil {
			findings = append(findings, validation.Error(IssueStatutoryFailed,
				fmt.Sprintf("statutory deductions could not be computed: %v", err)))
		}
		for _, s := range statutory {
			employee := s.Employee
			note := ""
			if o, ok := in.StatutoryOverrides[s.Code]; ok {
				if o.Amount != nil {
					employee = *o.Amount
				}
				note = o.Note
			}
			if employee.IsPositive() || s.Tax {
				p.Deductions = append(p.Deductions, DeductionLine{
					Code:      s.Code,
					Name:      s.Name,
					Amount:    c.Currency.Round(employee),
					Required:  true,
					Statutory: true,
					Tax:       s.Tax,
					Note:      note,
				})
			}
			if s.Employer.IsPositive() {
				p.EmployerContributions = append(p.EmployerContributions, EmployerContribution{
					Code:   s.Code,
					Name:   s.Name,
					Amount: c.Currency.Round(s.Employer),
				})
			}
		}
	}

	// Voluntary deductions
	for _, line := range in.Deductions {
		line.Required = line.Required || in.requiresDeduction(line.Code)
		line.Statutory = false
		line.Amount = c.Currency.Round(line.Amount)
		if line.Amount.IsNegative() {
			findings = append(findings, validation.Error(lineCode(IssueNegativeAmount, line.Code),
				fmt.Sprintf("%s: deduction %s is negative", line.Code, line.Amount.StringFixed(c.Currency.Precision))))
		}
		if line.Required && line.Skipped {
			findings = append(findings, validation.Error(lineCode(IssueRequiredLineSkipped, line.Code),
				fmt.Sprintf("required deduction %s is skipped", line.Code)))
		}
		p.Deductions = append(p.Deductions, line)
	}

	for _, code := range in.RequiredDeductions {
		if !hasDeduction(p.Deductions, code) {
			findings = append(findings, validation.Error(lineCode(IssueRequiredLineMissing, code),
				fmt.Sprintf("required deduction %s is missing", code)))
		}
	}

	// Totals
	var deducted []decimal.Decimal
	for _, d := range p.Deductions {
		if !d.Skipped {
			deducted = append(deducted, d.Amount)
		}
	}
	p.TotalDeductions = c.Currency.Sum(deducted...)
	p.Net = p.Gross.Sub(p.TotalDeductions)

	p.YTDGross = in.PriorYTD.Gross.Add(p.Gross)
	p.YTDTax = in.PriorYTD.Tax.Add(p.Tax())
	p.YTDNet = in.PriorYTD.Net.Add(p.Net)

	res := validation.FromFindings(findings)
	p.Errors = res.Errors
	p.HasErrors = res.HasErrors()
	return p
}

// StatutoryCodes returns the codes the tax rules produce for this input.
func (c Calculator) StatutoryCodes(in Input) []string {
	var codes []string
	for _, d := range c.Calculate(in).Deductions {
		if d.Statutory {
			codes = append(codes, d.Code)
		}
	}
	return codes
}

func lineCode(issue, line string) string {
	return issue + ":" + line
}

func hasEarning(lines []EarningLine, code string) bool {
	for _, l := range lines {
		if l.Code == code {
			return true
		}
	}
	return false
}

func hasDeduction(lines []DeductionLine, code string) bool {
	for _, l := range lines {
		if l.Code == code {
			return true
		}
	}
	return false
}
