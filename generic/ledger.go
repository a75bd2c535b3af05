/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable audit trail for every leave balance change.
  Every accrual, reservation, approval, adjustment and forfeit is recorded
  here. The leave package keeps a materialized balance for fast reads and
  idempotent accrual; the ledger is what explains how it got there.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  Mistakes are corrected with a new transaction of opposite sign
  (TxRelease, TxReversal, TxAdjustment). History is preserved.

SEE ALSO:
  - store.go: Low-level persistence interface
  - leave/ledger.go: Balance-keeping service built on top
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the audit log of all balance changes.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for entity+policy, chronologically.
	Transactions(ctx context.Context, entityID EntityID, policyID PolicyID) ([]Transaction, error)

	// NetAt sums deltas of the given types effective up to and including at.
	NetAt(ctx context.Context, entityID EntityID, policyID PolicyID, at TimePoint, unit Unit, types ...TransactionType) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, policyID PolicyID) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, policyID)
}

func (l *DefaultLedger) NetAt(ctx context.Context, entityID EntityID, policyID PolicyID, at TimePoint, unit Unit, types ...TransactionType) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, policyID)
	if err != nil {
		return Amount{}, err
	}

	wanted := make(map[TransactionType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	total := NewAmount(0, unit)
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			break
		}
		if len(wanted) > 0 && !wanted[tx.Type] {
			continue
		}
		total = total.Add(tx.Delta)
	}
	return total, nil
}
