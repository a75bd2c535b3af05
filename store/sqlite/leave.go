package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
)

var (
	_ leave.TypeStore    = (*Store)(nil)
	_ leave.BalanceStore = (*Store)(nil)
	_ leave.RequestStore = (*Store)(nil)
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := json.Marshal(lt)
	if err != nil {
		return fmt.Errorf("failed to encode leave type: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leave_types (organization_id, id, name, config_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, string(lt.OrganizationID), string(lt.ID), lt.Name, string(config), now())
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func (s *Store) GetLeaveType(ctx context.Context, org generic.OrganizationID, id generic.PolicyID) (leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var config string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM leave_types WHERE organization_id = ? AND id = ?",
		string(org), string(id),
	).Scan(&config)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveType{}, fmt.Errorf("leave type %s: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return leave.LeaveType{}, fmt.Errorf("failed to get leave type: %w", err)
	}
	var lt leave.LeaveType
	if err := json.Unmarshal([]byte(config), &lt); err != nil {
		return leave.LeaveType{}, fmt.Errorf("leave type %s: %w", id, err)
	}
	return lt, nil
}

func (s *Store) ListLeaveTypes(ctx context.Context, org generic.OrganizationID) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT config_json FROM leave_types WHERE organization_id = ? ORDER BY id ASC",
		string(org),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave types: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveType
	for rows.Next() {
		var config string
		if err := rows.Scan(&config); err != nil {
			return nil, err
		}
		var lt leave.LeaveType
		if err := json.Unmarshal([]byte(config), &lt); err != nil {
			return nil, fmt.Errorf("failed to decode leave type: %w", err)
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) SaveBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveBalance(ctx, s.db, b)
}

// SaveBalance writes through the open transaction, so the balance commits
// with the journal entries appended next to it.
func (ts *txStore) SaveBalance(ctx context.Context, b leave.Balance) error {
	return saveBalance(ctx, ts.tx, b)
}

func saveBalance(ctx context.Context, db execer, b leave.Balance) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO leave_balances
		(employee_id, leave_type_id, accrued, taken, pending, carried_remaining, carry_over_expires_at, last_accrued_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, leave_type_id) DO UPDATE SET
			accrued = excluded.accrued,
			taken = excluded.taken,
			pending = excluded.pending,
			carried_remaining = excluded.carried_remaining,
			carry_over_expires_at = excluded.carry_over_expires_at,
			last_accrued_at = excluded.last_accrued_at,
			updated_at = excluded.updated_at
	`,
		string(b.EmployeeID),
		string(b.LeaveTypeID),
		b.Accrued.String(),
		b.Taken.String(),
		b.Pending.String(),
		b.CarriedRemaining.String(),
		dateString(b.CarryOverExpiresAt),
		dateString(b.LastAccruedAt),
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

const balanceColumns = `employee_id, leave_type_id, accrued, taken, pending, carried_remaining, carry_over_expires_at, last_accrued_at`

func (s *Store) GetBalance(ctx context.Context, employeeID generic.EntityID, leaveTypeID generic.PolicyID) (leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+balanceColumns+" FROM leave_balances WHERE employee_id = ? AND leave_type_id = ?",
		string(employeeID), string(leaveTypeID),
	)
	if err != nil {
		return leave.Balance{}, fmt.Errorf("failed to get balance: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return leave.Balance{}, err
		}
		return leave.Balance{}, generic.ErrNotFound
	}
	return scanBalance(rows)
}

func (s *Store) ListBalances(ctx context.Context, employeeID generic.EntityID) ([]leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+balanceColumns+" FROM leave_balances WHERE employee_id = ? ORDER BY leave_type_id ASC",
		string(employeeID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []leave.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBalance(rows *sql.Rows) (leave.Balance, error) {
	var (
		b                                leave.Balance
		accrued, taken, pending, carried string
		expiresAt, lastAccruedAt         sql.NullString
	)
	if err := rows.Scan(&b.EmployeeID, &b.LeaveTypeID, &accrued, &taken, &pending, &carried, &expiresAt, &lastAccruedAt); err != nil {
		return leave.Balance{}, fmt.Errorf("failed to scan balance: %w", err)
	}
	b.Accrued = generic.MustParseDecimal(accrued)
	b.Taken = generic.MustParseDecimal(taken)
	b.Pending = generic.MustParseDecimal(pending)
	b.CarriedRemaining = generic.MustParseDecimal(carried)

	var err error
	if b.CarryOverExpiresAt, err = parseDate(expiresAt); err != nil {
		return leave.Balance{}, fmt.Errorf("balance %s/%s: %w", b.EmployeeID, b.LeaveTypeID, err)
	}
	if b.LastAccruedAt, err = parseDate(lastAccruedAt); err != nil {
		return leave.Balance{}, fmt.Errorf("balance %s/%s: %w", b.EmployeeID, b.LeaveTypeID, err)
	}
	return b, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leave_requests
		(id, organization_id, employee_id, leave_type_id, start_date, end_date, status, data_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			data_json = excluded.data_json,
			updated_at = excluded.updated_at
	`,
		r.ID,
		string(r.OrganizationID),
		string(r.EmployeeID),
		string(r.LeaveTypeID),
		r.Start.String(),
		r.End.String(),
		r.Status.String(),
		string(data),
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data_json FROM leave_requests WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Request{}, fmt.Errorf("leave request %s: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return leave.Request{}, fmt.Errorf("failed to get request: %w", err)
	}
	var r leave.Request
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return leave.Request{}, fmt.Errorf("leave request %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, employeeID generic.EntityID) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT data_json FROM leave_requests WHERE employee_id = ? ORDER BY start_date ASC, id ASC",
		string(employeeID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r leave.Request
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
