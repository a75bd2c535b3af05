package roster

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// Calendar is a generic.Calendar backed by the roster: weekends and the
// holidays of the employee's organization are non-working days. It keeps
// a snapshot that Refresh reloads after holidays or employees change.
type Calendar struct {
	Profiles Store
	Holidays HolidayStore

	mu        sync.RWMutex
	holidays  map[generic.OrganizationID]generic.StaticHolidays
	employers map[generic.EntityID]generic.OrganizationID
}

func NewCalendar(profiles Store, holidays HolidayStore) *Calendar {
	return &Calendar{
		Profiles:  profiles,
		Holidays:  holidays,
		holidays:  make(map[generic.OrganizationID]generic.StaticHolidays),
		employers: make(map[generic.EntityID]generic.OrganizationID),
	}
}

var (
	_ generic.Calendar        = (*Calendar)(nil)
	_ generic.HolidayCalendar = (*Calendar)(nil)
)

// Refresh reloads the snapshot for one organization.
func (c *Calendar) Refresh(ctx context.Context, org generic.OrganizationID) error {
	holidays, err := c.Holidays.ListHolidays(ctx, org)
	if err != nil {
		return fmt.Errorf("list holidays: %w", err)
	}
	profiles, err := c.Profiles.ListProfiles(ctx, org)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.holidays[org] = generic.StaticHolidays(holidays)
	for _, p := range profiles {
		c.employers[p.Employee.ID] = org
	}
	return nil
}

func (c *Calendar) IsHoliday(org generic.OrganizationID, date generic.TimePoint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.holidays[org].IsHoliday(org, date)
}

// IsWorkingDay treats an employee the calendar has not seen as working
// Monday to Friday with no holidays.
func (c *Calendar) IsWorkingDay(employeeID generic.EntityID, day generic.TimePoint) bool {
	if day.IsWeekend() {
		return false
	}
	c.mu.RLock()
	org, ok := c.employers[employeeID]
	c.mu.RUnlock()
	if !ok {
		return true
	}
	return !c.IsHoliday(org, day)
}
