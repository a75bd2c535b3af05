/*
Package validation is the shared rule checker used by payrun finalization
and termination settlement.

PURPOSE:
  Rules are small independent functions over a context value. Each one
  returns zero or more findings, either blocking ERRORS or non-blocking
  WARNINGS. Validate runs every rule and folds the findings into a Result.

CONTRACT:
  - Rules are order-insensitive: the Result is sorted by code.
  - Results are deduplicated by code. If the same code is reported as both
    an error and a warning, the error wins.
  - Warnings are never failures. Only Result.Err() turns errors into a
    generic.ValidationFailedError carrying the code list.

EXAMPLE:
  res := validation.Validate(input,
      requireTerminationAfterLastDay,
      warnHighLeavePayout(20),
  )
  if err := res.Err(); err != nil {
      return err // errors.Is(err, generic.ErrValidationFailed)
  }

SEE ALSO:
  - payrun/engine.go: Finalization gate
  - termination/validate.go: Settlement rules
*/
package validation

import (
	"sort"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// ISSUES AND FINDINGS
// =============================================================================

// Issue is the {code, message} pair surfaced to callers for both errors
// and warnings.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return "unknown"
}

// Finding is what a rule reports.
type Finding struct {
	Severity Severity
	Issue
}

func Error(code, message string) Finding {
	return Finding{Severity: SeverityError, Issue: Issue{Code: code, Message: message}}
}

func Warning(code, message string) Finding {
	return Finding{Severity: SeverityWarning, Issue: Issue{Code: code, Message: message}}
}

// Rule inspects a context value and reports findings. A passing rule
// returns nil.
type Rule[C any] func(c C) []Finding

// When wraps a single finding in a rule that fires only if cond holds.
func When[C any](cond func(C) bool, f func(C) Finding) Rule[C] {
	return func(c C) []Finding {
		if cond(c) {
			return []Finding{f(c)}
		}
		return nil
	}
}

// =============================================================================
// RESULT
// =============================================================================

type Result struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Validate runs every rule against c.
func Validate[C any](c C, rules ...Rule[C]) Result {
	var findings []Finding
	for _, rule := range rules {
		findings = append(findings, rule(c)...)
	}
	return FromFindings(findings)
}

// FromFindings folds raw findings into a deduplicated, sorted Result.
func FromFindings(findings []Finding) Result {
	byCode := make(map[string]Finding, len(findings))
	for _, f := range findings {
		existing, ok := byCode[f.Code]
		if !ok || (existing.Severity == SeverityWarning && f.Severity == SeverityError) {
			byCode[f.Code] = f
		}
	}

	res := Result{Errors: []Issue{}, Warnings: []Issue{}}
	for _, f := range byCode {
		switch f.Severity {
		case SeverityError:
			res.Errors = append(res.Errors, f.Issue)
		case SeverityWarning:
			res.Warnings = append(res.Warnings, f.Issue)
		}
	}
	sortIssues(res.Errors)
	sortIssues(res.Warnings)
	return res
}

// Merge combines two results under the same dedup rules.
func (r Result) Merge(other Result) Result {
	findings := make([]Finding, 0, len(r.Errors)+len(r.Warnings)+len(other.Errors)+len(other.Warnings))
	for _, res := range []Result{r, other} {
		for _, e := range res.Errors {
			findings = append(findings, Finding{Severity: SeverityError, Issue: e})
		}
		for _, w := range res.Warnings {
			findings = append(findings, Finding{Severity: SeverityWarning, Issue: w})
		}
	}
	return FromFindings(findings)
}

func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// ErrorCodes returns the codes of every blocking error.
func (r Result) ErrorCodes() []string {
	codes := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		codes[i] = e.Code
	}
	return codes
}

// Err returns a *generic.ValidationFailedError when blocking errors exist.
func (r Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return &generic.ValidationFailedError{Codes: r.ErrorCodes(), Messages: msgs}
}

func sortIssues(issues []Issue) {
	sort.Slice(issues, func(i, j int) bool { return issues[i].Code < issues[j].Code })
}
