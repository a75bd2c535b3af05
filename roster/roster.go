/*
Package roster holds the employee compensation profiles the payroll and
termination calculators read from.

PURPOSE:
  A Profile is the employee's standing pay structure: monthly salary,
  recurring allowances and deductions, outstanding debts and notice
  period. Payruns snapshot it into payslip inputs; terminations derive
  the daily rate and pro-rata allowances from it.

DAILY RATE:
  Unless overridden, the daily rate is monthly salary x 12 / 260 working
  days per year.

SEE ALSO:
  - payrun/source.go: Turns profiles into payslip inputs
  - termination/calculator.go: Settlement figures
*/
package roster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payslip"
)

// WorkingDaysPerYear converts a monthly salary to a daily rate.
const WorkingDaysPerYear = 260

// Debt is an outstanding amount recovered on termination.
type Debt struct {
	Code        string
	Name        string
	Outstanding decimal.Decimal
	Required    bool
}

type Profile struct {
	Employee      generic.Employee
	MonthlySalary decimal.Decimal

	// DailyRateOverride replaces the derived daily rate when set.
	DailyRateOverride *decimal.Decimal
	NoticeDays        int

	Allowances []payslip.EarningLine   // monthly amounts
	Deductions []payslip.DeductionLine // recurring voluntary deductions
	Debts      []Debt

	LeftAt *generic.TimePoint
}

// DailyRate returns the rate used for leave, notice and final salary.
func (p Profile) DailyRate() decimal.Decimal {
	if p.DailyRateOverride != nil {
		return *p.DailyRateOverride
	}
	return p.MonthlySalary.Mul(decimal.NewFromInt(12)).Div(decimal.NewFromInt(WorkingDaysPerYear))
}

// EmployedDuring reports whether the employee was on the books for any
// day of period.
func (p Profile) EmployedDuring(period generic.Period) bool {
	if !p.Employee.StartDate.IsZero() && p.Employee.StartDate.After(period.End) {
		return false
	}
	if p.LeftAt != nil && p.LeftAt.Before(period.Start) {
		return false
	}
	return true
}

func (p Profile) Validate() error {
	var codes, msgs []string
	if p.Employee.ID == "" {
		codes, msgs = append(codes, "EMPLOYEE_ID_REQUIRED"), append(msgs, "employee id is required")
	}
	if p.Employee.StartDate.IsZero() {
		codes, msgs = append(codes, "START_DATE_REQUIRED"), append(msgs, "start date is required")
	}
	if p.MonthlySalary.IsNegative() {
		codes, msgs = append(codes, "SALARY_NEGATIVE"), append(msgs, "monthly salary cannot be negative")
	}
	if p.NoticeDays < 0 {
		codes, msgs = append(codes, "NOTICE_DAYS_NEGATIVE"), append(msgs, "notice days cannot be negative")
	}
	for _, d := range p.Debts {
		if d.Outstanding.IsNegative() {
			codes, msgs = append(codes, "DEBT_NEGATIVE"), append(msgs, fmt.Sprintf("debt %s cannot be negative", d.Code))
			break
		}
	}
	if len(codes) > 0 {
		return &generic.ValidationFailedError{Codes: codes, Messages: msgs}
	}
	return nil
}

// =============================================================================
// STORES
// =============================================================================

// Store persists profiles. GetProfile returns generic.ErrNotFound for an
// unknown employee or one belonging to another organization.
type Store interface {
	GetProfile(ctx context.Context, org generic.OrganizationID, id generic.EntityID) (Profile, error)
	ListProfiles(ctx context.Context, org generic.OrganizationID) ([]Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
}

// HolidayStore persists organization holidays.
type HolidayStore interface {
	ListHolidays(ctx context.Context, org generic.OrganizationID) ([]generic.Holiday, error)
	SaveHoliday(ctx context.Context, h generic.Holiday) error
}

// MemoryStore implements Store and HolidayStore.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[generic.EntityID]Profile
	holidays []generic.Holiday
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[generic.EntityID]Profile)}
}

func (m *MemoryStore) GetProfile(_ context.Context, org generic.OrganizationID, id generic.EntityID) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok || p.Employee.OrganizationID != org {
		return Profile{}, fmt.Errorf("employee %s: %w", id, generic.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryStore) ListProfiles(_ context.Context, org generic.OrganizationID) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Profile
	for _, p := range m.profiles {
		if p.Employee.OrganizationID == org {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Employee.ID < out[j].Employee.ID })
	return out, nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Employee.ID] = p
	return nil
}

func (m *MemoryStore) ListHolidays(_ context.Context, org generic.OrganizationID) ([]generic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.Holiday
	for _, h := range m.holidays {
		if h.OrganizationID == "" || h.OrganizationID == org {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveHoliday(_ context.Context, h generic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, h)
	return nil
}
