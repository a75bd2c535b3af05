package generic

import "time"

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive [Start, End] date range. Pay periods, leave
// cycles and leave request ranges are all periods.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// CYCLE - Leave year anchored on a start month
// =============================================================================

// CycleFor returns the 12-month cycle containing date, where every cycle
// starts on the first day of startMonth. Works like a fiscal year.
func CycleFor(date TimePoint, startMonth time.Month) Period {
	if startMonth < time.January || startMonth > time.December {
		startMonth = time.January
	}
	start := NewTimePoint(date.Year(), startMonth, 1)
	if date.Before(start) {
		start = NewTimePoint(date.Year()-1, startMonth, 1)
	}
	return Period{Start: start, End: start.AddYears(1).AddDays(-1)}
}

// IsCycleStart reports whether day is the first day of a cycle.
func IsCycleStart(day TimePoint, startMonth time.Month) bool {
	return day.Day() == 1 && day.Month() == startMonth
}

// TaxYearFor is CycleFor under a name that reads better at payroll call sites.
func TaxYearFor(date TimePoint, startMonth time.Month) Period {
	return CycleFor(date, startMonth)
}
