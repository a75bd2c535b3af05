package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payrun"
	"github.com/warp/payroll-engine/termination"
)

var (
	_ payrun.Store      = (*Store)(nil)
	_ termination.Store = (*Store)(nil)
)

// =============================================================================
// PAYRUNS
// =============================================================================

// SavePayrun writes run if its Version matches the stored one (0 = new)
// and returns it with the version bumped.
func (s *Store) SavePayrun(ctx context.Context, run payrun.Payrun) (payrun.Payrun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := run.Version
	run = run.Clone()
	run.Version++
	data, err := json.Marshal(run)
	if err != nil {
		return payrun.Payrun{}, fmt.Errorf("failed to encode payrun: %w", err)
	}

	if expected == 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO payruns (id, organization_id, period_start, period_end, status, version, data_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, string(run.OrganizationID), run.Period.Start.String(), run.Period.End.String(),
			run.Status.String(), run.Version, string(data), now())
		if isUniqueConstraintError(err) {
			return payrun.Payrun{}, fmt.Errorf("payrun %s already exists: %w", run.ID, generic.ErrConcurrentModification)
		}
		if err != nil {
			return payrun.Payrun{}, fmt.Errorf("failed to insert payrun: %w", err)
		}
		return run, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payruns SET status = ?, version = ?, data_json = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, run.Status.String(), run.Version, string(data), now(), run.ID, expected)
	if err != nil {
		return payrun.Payrun{}, fmt.Errorf("failed to update payrun: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return payrun.Payrun{}, fmt.Errorf("payrun %s version %d: %w", run.ID, expected, err)
	}
	return run, nil
}

func (s *Store) GetPayrun(ctx context.Context, org generic.OrganizationID, id string) (payrun.Payrun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data_json FROM payruns WHERE id = ? AND organization_id = ?",
		id, string(org),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return payrun.Payrun{}, fmt.Errorf("payrun %s: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return payrun.Payrun{}, fmt.Errorf("failed to get payrun: %w", err)
	}
	var run payrun.Payrun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return payrun.Payrun{}, fmt.Errorf("payrun %s: %w", id, err)
	}
	return run, nil
}

func (s *Store) ListPayruns(ctx context.Context, org generic.OrganizationID) ([]payrun.Payrun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT data_json FROM payruns WHERE organization_id = ? ORDER BY period_start ASC, id ASC",
		string(org),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payruns: %w", err)
	}
	defer rows.Close()

	var out []payrun.Payrun
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var run payrun.Payrun
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, fmt.Errorf("failed to decode payrun: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// =============================================================================
// TERMINATIONS
// =============================================================================

// SaveTermination has the same compare-and-set contract as SavePayrun.
func (s *Store) SaveTermination(ctx context.Context, t termination.Termination) (termination.Termination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := t.Version
	t = t.Clone()
	t.Version++
	data, err := json.Marshal(t)
	if err != nil {
		return termination.Termination{}, fmt.Errorf("failed to encode termination: %w", err)
	}

	if expected == 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO terminations (id, organization_id, employee_id, status, version, data_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, string(t.OrganizationID), string(t.EmployeeID), t.Status.String(), t.Version, string(data), now(), now())
		if isUniqueConstraintError(err) {
			return termination.Termination{}, fmt.Errorf("termination %s already exists: %w", t.ID, generic.ErrConcurrentModification)
		}
		if err != nil {
			return termination.Termination{}, fmt.Errorf("failed to insert termination: %w", err)
		}
		return t, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE terminations SET status = ?, version = ?, data_json = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, t.Status.String(), t.Version, string(data), now(), t.ID, expected)
	if err != nil {
		return termination.Termination{}, fmt.Errorf("failed to update termination: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return termination.Termination{}, fmt.Errorf("termination %s version %d: %w", t.ID, expected, err)
	}
	return t, nil
}

func (s *Store) GetTermination(ctx context.Context, org generic.OrganizationID, id string) (termination.Termination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data_json FROM terminations WHERE id = ? AND organization_id = ?",
		id, string(org),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return termination.Termination{}, fmt.Errorf("termination %s: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return termination.Termination{}, fmt.Errorf("failed to get termination: %w", err)
	}
	var t termination.Termination
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return termination.Termination{}, fmt.Errorf("termination %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) ListTerminations(ctx context.Context, org generic.OrganizationID) ([]termination.Termination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT data_json FROM terminations WHERE organization_id = ? ORDER BY created_at ASC, id ASC",
		string(org),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminations: %w", err)
	}
	defer rows.Close()

	var out []termination.Termination
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t termination.Termination
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("failed to decode termination: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// expectOneRow maps a conditional update that matched nothing to
// generic.ErrConcurrentModification.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return generic.ErrConcurrentModification
	}
	return nil
}
