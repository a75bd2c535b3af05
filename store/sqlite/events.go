package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/generic"
)

var _ generic.EventLog = (*Store)(nil)

// =============================================================================
// EVENT LOG (generic.EventLog interface)
// =============================================================================

// Emit appends an event. Events are never updated.
func (s *Store) Emit(ctx context.Context, ev generic.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	var payload sql.NullString
	if len(ev.Payload) > 0 {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode event payload: %w", err)
		}
		payload = nullString(string(b))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, organization_id, kind, subject, from_status, to_status, actor_id, actor_type, occurred_at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		string(ev.OrganizationID),
		string(ev.Kind),
		ev.Subject,
		nullString(ev.From),
		nullString(ev.To),
		nullString(ev.ActorID),
		nullString(ev.ActorType),
		ev.OccurredAt.String(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Query returns matching events in emission order.
func (s *Store) Query(ctx context.Context, filter generic.EventFilter) ([]generic.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, organization_id, kind, subject, from_status, to_status, actor_id, actor_type, occurred_at, payload_json
		FROM events
		WHERE 1 = 1
	`
	var args []any
	if filter.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, string(filter.OrganizationID))
	}
	if filter.Subject != "" {
		query += " AND subject = ?"
		args = append(args, filter.Subject)
	}
	if len(filter.Kinds) > 0 {
		query += " AND kind IN (?" + strings.Repeat(", ?", len(filter.Kinds)-1) + ")"
		for _, k := range filter.Kinds {
			args = append(args, string(k))
		}
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []generic.Event
	for rows.Next() {
		var (
			ev                 generic.Event
			from, to           sql.NullString
			actorID, actorType sql.NullString
			occurredAt         string
			payload            sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.OrganizationID, &ev.Kind, &ev.Subject, &from, &to, &actorID, &actorType, &occurredAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.From, ev.To = from.String, to.String
		ev.ActorID, ev.ActorType = actorID.String, actorType.String
		if ev.OccurredAt, err = generic.ParseTimePoint(occurredAt); err != nil {
			return nil, fmt.Errorf("event %s: occurred_at: %w", ev.ID, err)
		}
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &ev.Payload); err != nil {
				return nil, fmt.Errorf("event %s: payload: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
