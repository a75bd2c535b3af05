package leave

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// DefaultStandardDayHours is used when no standard day length is configured.
var DefaultStandardDayHours = decimal.NewFromInt(8)

// CountDays returns the leave days a request for [start, end] consumes:
// whole working days per the calendar, or partialHours / standardDayHours
// for a single-day partial request. A nil partialHours means whole days.
func CountDays(cal generic.Calendar, employeeID generic.EntityID, start, end generic.TimePoint, partialHours *decimal.Decimal, standardDayHours decimal.Decimal) (decimal.Decimal, error) {
	if end.Before(start) {
		return decimal.Zero, generic.NewValidationFailed("LEAVE_RANGE_INVALID", "end date is before start date")
	}

	if partialHours == nil {
		return decimal.NewFromInt(int64(generic.WorkingDaysBetween(cal, employeeID, start, end))), nil
	}

	if !start.Equal(end) {
		return decimal.Zero, generic.NewValidationFailed("PARTIAL_DAY_RANGE", "a partial-day request must cover a single day")
	}
	if !standardDayHours.IsPositive() {
		standardDayHours = DefaultStandardDayHours
	}
	if !partialHours.IsPositive() || partialHours.GreaterThan(standardDayHours) {
		return decimal.Zero, generic.NewValidationFailed("PARTIAL_HOURS_INVALID",
			fmt.Sprintf("partial hours must be between 0 and %s", standardDayHours))
	}
	if !cal.IsWorkingDay(employeeID, start) {
		return decimal.Zero, nil
	}
	return partialHours.Div(standardDayHours).Round(dayPrecision), nil
}
