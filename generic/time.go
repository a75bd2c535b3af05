package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Day-granular time abstraction
// =============================================================================

// TimePoint is a calendar day in UTC. Payroll and leave never need
// anything finer; partial days are expressed as fractional amounts.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func TimePointOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return TimePointOf(time.Now().UTC())
}

// ParseTimePoint parses a YYYY-MM-DD date.
func ParseTimePoint(s string) (TimePoint, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return TimePoint{}, err
	}
	return TimePointOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, n, 0)} }
func (tp TimePoint) AddYears(n int) TimePoint  { return TimePoint{Time: tp.normalize().AddDate(n, 0, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (tp TimePoint) String() string {
	return tp.Time.Format(time.DateOnly)
}

func (tp TimePoint) MarshalText() ([]byte, error) {
	if tp.IsZero() {
		return []byte{}, nil
	}
	return []byte(tp.String()), nil
}

func (tp *TimePoint) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*tp = TimePoint{}
		return nil
	}
	parsed, err := ParseTimePoint(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// WORK CALENDAR - Which days count as working days for an employee
// =============================================================================

// Holiday represents an organization holiday that does not count as a
// working day.
type Holiday struct {
	ID             string
	OrganizationID OrganizationID // Empty = applies to every organization
	Date           TimePoint
	Name           string
	Recurring      bool // true = same month/day every year
}

// Calendar answers whether a day is a working day for an employee.
// It is an external collaborator: the engine only consumes it.
type Calendar interface {
	IsWorkingDay(employeeID EntityID, day TimePoint) bool
}

// HolidayCalendar provides holiday lookup for an organization.
type HolidayCalendar interface {
	IsHoliday(org OrganizationID, date TimePoint) bool
}

// WeekdayCalendar treats Monday-Friday as working days, minus holidays.
type WeekdayCalendar struct {
	Organization OrganizationID
	Holidays     HolidayCalendar // may be nil
}

func (c WeekdayCalendar) IsWorkingDay(_ EntityID, day TimePoint) bool {
	if day.IsWeekend() {
		return false
	}
	if c.Holidays != nil && c.Holidays.IsHoliday(c.Organization, day) {
		return false
	}
	return true
}

// StaticHolidays is an in-memory HolidayCalendar.
type StaticHolidays []Holiday

func (hs StaticHolidays) IsHoliday(org OrganizationID, date TimePoint) bool {
	for _, h := range hs {
		if h.OrganizationID != "" && h.OrganizationID != org {
			continue
		}
		if h.Recurring {
			if h.Date.Month() == date.Month() && h.Date.Day() == date.Day() {
				return true
			}
			continue
		}
		if h.Date.Equal(date) {
			return true
		}
	}
	return false
}

// WorkingDaysBetween counts working days in [from, to].
func WorkingDaysBetween(cal Calendar, employeeID EntityID, from, to TimePoint) int {
	count := 0
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if cal.IsWorkingDay(employeeID, d) {
			count++
		}
	}
	return count
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween returns the number of calendar days from -> to.
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

func StartOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month, 1)
}

func EndOfMonth(year int, month time.Month) TimePoint {
	return StartOfMonth(year, month).AddMonths(1).AddDays(-1)
}

func DaysInMonth(year int, month time.Month) int {
	return EndOfMonth(year, month).Day()
}

// CompletedYears returns whole years between from and to.
func CompletedYears(from, to TimePoint) int {
	years := to.Year() - from.Year()
	if to.Before(from.AddYears(years)) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
