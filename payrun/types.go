/*
Package payrun drives a pay period from draft to finalized.

STATE MACHINE:

	draft --run--> calculating --(all payslips computed)--> ready --finalize--> finalized
	  ^                 |                                     |
	  +----cancel-------+-------------cancel / edit-----------+

  - run snapshots inputs on the first pass and afterwards recomputes only
    entries that are dirty or were never computed
  - edits are accepted in draft and ready; an edit in ready moves the run
    back to draft and recomputes that entry and the totals only
  - finalize requires ready and zero payslips with errors; it is terminal
  - cancel discards in-flight results by bumping the generation counter

Every refused move returns a *generic.TransitionError and leaves the run
unchanged.

SEE ALSO:
  - engine.go: Transitions and the concurrent fan-out
  - source.go: Snapshotting employee inputs
  - payslip/: The per-employee calculation
*/
package payrun

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payslip"
)

// =============================================================================
// STATUS
// =============================================================================

type Status int

const (
	StatusDraft Status = iota + 1
	StatusCalculating
	StatusReady
	StatusFinalized
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusCalculating:
		return "calculating"
	case StatusReady:
		return "ready"
	case StatusFinalized:
		return "finalized"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "draft":
		return StatusDraft, nil
	case "calculating":
		return StatusCalculating, nil
	case "ready":
		return StatusReady, nil
	case "finalized":
		return StatusFinalized, nil
	}
	return 0, fmt.Errorf("unknown payrun status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// =============================================================================
// FREQUENCY
// =============================================================================

type Frequency int

const (
	FrequencyMonthly Frequency = iota + 1
	FrequencyFortnightly
	FrequencyWeekly
)

func (f Frequency) String() string {
	switch f {
	case FrequencyMonthly:
		return "monthly"
	case FrequencyFortnightly:
		return "fortnightly"
	case FrequencyWeekly:
		return "weekly"
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

func ParseFrequency(s string) (Frequency, error) {
	switch s {
	case "monthly":
		return FrequencyMonthly, nil
	case "fortnightly":
		return FrequencyFortnightly, nil
	case "weekly":
		return FrequencyWeekly, nil
	}
	return 0, fmt.Errorf("unknown pay frequency %q", s)
}

// PeriodsPerYear returns 0 for an unknown frequency.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case FrequencyMonthly:
		return 12
	case FrequencyFortnightly:
		return 26
	case FrequencyWeekly:
		return 52
	}
	return 0
}

func (f Frequency) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Frequency) UnmarshalText(b []byte) error {
	v, err := ParseFrequency(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// =============================================================================
// PAYRUN
// =============================================================================

// Entry is one employee in a run: the snapshotted input and, once
// computed, its payslip.
type Entry struct {
	EmployeeID generic.EntityID
	Input      payslip.Input
	Payslip    *payslip.Payslip
	Dirty      bool
}

func (e Entry) computed() bool {
	return e.Payslip != nil && !e.Dirty
}

type Totals struct {
	Gross               decimal.Decimal
	Deductions          decimal.Decimal
	Net                 decimal.Decimal
	EmployeeCount       int
	EmployeesWithErrors int
}

type Payrun struct {
	ID             string
	OrganizationID generic.OrganizationID
	Period         generic.Period
	PayDate        generic.TimePoint
	Frequency      Frequency
	PayPoints      []string // empty = every pay point
	Status         Status
	Totals         Totals
	Entries        []Entry

	// Version is bumped by every save; stores reject stale writes.
	Version int64
	// Generation is bumped whenever a calculation pass starts or is
	// cancelled. A pass whose generation is stale is discarded.
	Generation int64

	CreatedBy   string
	CreatedAt   time.Time
	FinalizedBy string
	FinalizedAt *time.Time
}

// Entry returns the entry for an employee.
func (r Payrun) Entry(employeeID generic.EntityID) (Entry, bool) {
	if i := r.entryIndex(employeeID); i >= 0 {
		return r.Entries[i], true
	}
	return Entry{}, false
}

func (r Payrun) entryIndex(employeeID generic.EntityID) int {
	i := sort.Search(len(r.Entries), func(i int) bool { return r.Entries[i].EmployeeID >= employeeID })
	if i < len(r.Entries) && r.Entries[i].EmployeeID == employeeID {
		return i
	}
	return -1
}

// recomputeTotals sums the computed payslips. Net is a straight sum of
// payslip nets, so it equals gross minus deductions at run level too.
func (r *Payrun) recomputeTotals() {
	t := Totals{Gross: decimal.Zero, Deductions: decimal.Zero, Net: decimal.Zero}
	for _, e := range r.Entries {
		t.EmployeeCount++
		if e.Payslip == nil {
			continue
		}
		t.Gross = t.Gross.Add(e.Payslip.Gross)
		t.Deductions = t.Deductions.Add(e.Payslip.TotalDeductions)
		t.Net = t.Net.Add(e.Payslip.Net)
		if e.Payslip.HasErrors {
			t.EmployeesWithErrors++
		}
	}
	r.Totals = t
}

// Clone deep-copies entries and their payslips so callers cannot alias a
// stored run.
func (r Payrun) Clone() Payrun {
	out := r
	out.PayPoints = append([]string(nil), r.PayPoints...)
	out.Entries = nil
	for _, e := range r.Entries {
		e.Input = e.Input.Clone()
		if e.Payslip != nil {
			p := e.Payslip.Clone()
			e.Payslip = &p
		}
		out.Entries = append(out.Entries, e)
	}
	if r.FinalizedAt != nil {
		at := *r.FinalizedAt
		out.FinalizedAt = &at
	}
	return out
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].EmployeeID < entries[j].EmployeeID })
}
