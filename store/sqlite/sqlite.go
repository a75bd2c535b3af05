/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the engine defines using a single
  SQLite database. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.TxStore:     Leave transaction journal (append-only); the
                       transaction view also saves leave balances, so a
                       balance and its journal entries commit together
  generic.EventLog:    Transition events (append-only)
  leave.TypeStore:     Leave type configuration
  leave.BalanceStore:  Materialized balances
  leave.RequestStore:  Leave requests
  payrun.Store:        Payruns (version compare-and-set)
  termination.Store:   Terminations (version compare-and-set)
  roster.Store:        Employee pay profiles
  roster.HolidayStore: Organization holidays

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on the transactions and events tables
  - Corrections via reversal transactions only

AGGREGATES:
  Payruns, terminations and profiles are stored as a JSON document plus
  the columns needed to query them. Payrun and termination writes are
  conditional on the stored version:

    UPDATE payruns SET ..., version = version + 1 WHERE id = ? AND version = ?

  Zero rows affected means another writer got there first and the caller
  receives generic.ErrConcurrentModification.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases coherent across calls.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := leave.NewLedger(store, store, store, generic.SystemClock)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - generic/store.go: Journal and event interfaces
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/payroll-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Leave journal (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_by_type TEXT,
		created_at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_policy_date
		ON transactions(entity_id, policy_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Transition events (append-only)
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		organization_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT,
		actor_id TEXT,
		actor_type TEXT,
		occurred_at TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_org_subject
		ON events(organization_id, subject);

	-- Leave types
	CREATE TABLE IF NOT EXISTS leave_types (
		organization_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (organization_id, id)
	);

	-- Materialized balances
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		accrued TEXT NOT NULL,
		taken TEXT NOT NULL,
		pending TEXT NOT NULL,
		carried_remaining TEXT NOT NULL,
		carry_over_expires_at TEXT,
		last_accrued_at TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, leave_type_id)
	);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);

	-- Payruns
	CREATE TABLE IF NOT EXISTS payruns (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payruns_org_period
		ON payruns(organization_id, period_start);

	-- Terminations
	CREATE TABLE IF NOT EXISTS terminations (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		data_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_terminations_org_employee
		ON terminations(organization_id, employee_id);

	-- Employee pay profiles
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		pay_point TEXT,
		profile_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_org
		ON employees(organization_id);

	-- Holidays (organization-specific and global)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(organization_id, date, name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all data (for demos and tests).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transactions", "events", "leave_types", "leave_balances", "leave_requests", "payruns", "terminations", "employees", "holidays"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// dateString stores a zero TimePoint as NULL.
func dateString(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseDate(s sql.NullString) (generic.TimePoint, error) {
	if !s.Valid || s.String == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseTimePoint(s.String)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
