/*
store.go - Persistence interfaces for transactions and transition events

PURPOSE:
  Defines the interface between the domain logic and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:     Core transaction persistence (append, load, exists)
  TxStore:   Transactional operations (atomic multi-table writes). A
             view may implement extra save methods (leave balances) so
             callers can write them in the same transaction.
  EventSink: Append-only record of state transitions

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write may carry an idempotency key. If the key already exists,
  the write is rejected. Accrual runs and network retries rely on this.

EVENTS:
  Every state change in the engine (payrun status, termination status,
  leave request status, balance adjustment) emits exactly one Event.
  The engine guarantees emission; how events are stored or forwarded is
  the sink's business.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
// Corrections are made via reversal transactions.
type Store interface {
	// Append persists a transaction. Returns error if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for entity+policy, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, policyID PolicyID) ([]Transaction, error)

	// LoadRange returns transactions in [from, to].
	LoadRange(ctx context.Context, entityID EntityID, policyID PolicyID, from, to TimePoint) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// EVENTS - One record per state transition
// =============================================================================

type EventKind string

const (
	EventPayrunCreated        EventKind = "payrun.created"
	EventPayrunCalculating    EventKind = "payrun.calculating"
	EventPayrunReady          EventKind = "payrun.ready"
	EventPayrunReverted       EventKind = "payrun.reverted_to_draft"
	EventPayrunCancelled      EventKind = "payrun.cancelled"
	EventPayrunFinalized      EventKind = "payrun.finalized"
	EventPayslipEdited        EventKind = "payslip.edited"
	EventLeaveRequested       EventKind = "leave.requested"
	EventLeaveApproved        EventKind = "leave.approved"
	EventLeaveRejected        EventKind = "leave.rejected"
	EventLeaveCancelled       EventKind = "leave.cancelled"
	EventLeaveAdjusted        EventKind = "leave.adjusted"
	EventLeaveAccrued         EventKind = "leave.accrued"
	EventLeaveForfeited       EventKind = "leave.forfeited"
	EventTerminationCreated   EventKind = "termination.created"
	EventTerminationSubmitted EventKind = "termination.submitted"
	EventTerminationCompleted EventKind = "termination.completed"
	EventTerminationEdited    EventKind = "termination.edited"
)

// Event records who did what when. Events are append-only.
type Event struct {
	ID             string
	OrganizationID OrganizationID
	Kind           EventKind
	Subject        string // payrun ID, request ID, termination ID, balance key
	From           string // previous status, empty for creation
	To             string // new status
	ActorID        string
	ActorType      string
	OccurredAt     TimePoint
	Payload        map[string]any
}

// EventSink is the external collaborator events are emitted to.
type EventSink interface {
	Emit(ctx context.Context, event Event) error
}

// EventLog is an EventSink that can be queried back.
type EventLog interface {
	EventSink
	Query(ctx context.Context, filter EventFilter) ([]Event, error)
}

type EventFilter struct {
	OrganizationID OrganizationID
	Subject        string
	Kinds          []EventKind
}

// Matches reports whether e passes the filter.
func (f EventFilter) Matches(e Event) bool {
	if f.OrganizationID != "" && e.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Subject != "" && e.Subject != f.Subject {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == e.Kind {
			return true
		}
	}
	return false
}

// NewEvent fills the actor fields from the call context.
func NewEvent(actor Actor, kind EventKind, subject, from, to string, at TimePoint) Event {
	return Event{
		OrganizationID: actor.OrganizationID,
		Kind:           kind,
		Subject:        subject,
		From:           from,
		To:             to,
		ActorID:        actor.UserID,
		ActorType:      actor.Type,
		OccurredAt:     at,
	}
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) error { return nil }
