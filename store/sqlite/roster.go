package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/roster"
)

var (
	_ roster.Store        = (*Store)(nil)
	_ roster.HolidayStore = (*Store)(nil)
)

// =============================================================================
// EMPLOYEE PROFILES
// =============================================================================

func (s *Store) SaveProfile(ctx context.Context, p roster.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO employees (id, organization_id, name, start_date, pay_point, profile_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organization_id = excluded.organization_id,
			name = excluded.name,
			start_date = excluded.start_date,
			pay_point = excluded.pay_point,
			profile_json = excluded.profile_json,
			updated_at = excluded.updated_at
	`,
		string(p.Employee.ID),
		string(p.Employee.OrganizationID),
		p.Employee.Name,
		p.Employee.StartDate.String(),
		nullString(p.Employee.PayPoint),
		string(data),
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, org generic.OrganizationID, id generic.EntityID) (roster.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT profile_json FROM employees WHERE id = ? AND organization_id = ?",
		string(id), string(org),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return roster.Profile{}, fmt.Errorf("employee %s: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return roster.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	var p roster.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return roster.Profile{}, fmt.Errorf("employee %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context, org generic.OrganizationID) ([]roster.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT profile_json FROM employees WHERE organization_id = ? ORDER BY id ASC",
		string(org),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []roster.Profile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p roster.Profile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday saves a holiday. The same (organization, date, name) is
// stored once.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, organization_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, date, name) DO UPDATE SET
			recurring = excluded.recurring
	`,
		h.ID,
		string(h.OrganizationID),
		h.Date.String(),
		h.Name,
		h.Recurring,
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

// ListHolidays returns the organization's holidays plus global ones.
func (s *Store) ListHolidays(ctx context.Context, org generic.OrganizationID) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, date, name, recurring
		FROM holidays
		WHERE organization_id = ? OR organization_id = ''
		ORDER BY date ASC
	`, string(org))
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	var holidays []generic.Holiday
	for rows.Next() {
		var (
			h       generic.Holiday
			dateStr string
		)
		if err := rows.Scan(&h.ID, &h.OrganizationID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = generic.ParseTimePoint(dateStr); err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
