/*
store.go - Persistence contract for balances and the audit log

PURPOSE:
  Defines the interface between the engine and the database. Two tables back
  it: a balances table unique on (account, character, item) and an append-only
  audit table. Implementations live in store/sqlite (production) and
  bank/store (in-memory, for tests).

ATOMICITY:
  UpsertMany is all-or-nothing: every entry is written (or deleted, for
  amount 0) in one transaction, together with any audit batch passed alongside.
  A failed transaction leaves both tables untouched. Single-row point writes
  (SetAmount, DeleteItem) carry the same optional audit batching.

  The store's atomicity comes from the underlying transaction mechanism, not
  from any in-process lock; cross-flow serialization per StorageKey is the
  orchestrator's job (see keylock.go).

ZERO-ROW INVARIANT:
  An amount of 0 always deletes the row. No implementation may persist a
  zero-amount balance.
*/
package bank

import "context"

// AuditQuery filters operator audit reads. CharacterID 0 means "all
// characters under the account" (which includes the account-wide pool rows).
type AuditQuery struct {
	AccountID   uint32
	CharacterID uint32
}

// ActionTotals aggregates the audit log per action.
type ActionTotals struct {
	Action AuditAction
	Events uint64
	Total  int64
}

// Mover is one item's net movement (deposits minus withdrawals).
type Mover struct {
	ItemID   uint32
	Category Category
	Net      int64
}

// Store handles persistence of balances and audit records.
type Store interface {
	// Balance returns the stored amount for one item, reporting absence via
	// ok=false (never amount 0).
	Balance(ctx context.Context, key StorageKey, itemID uint32) (amount uint64, ok bool, err error)

	// CategoryRows returns the rows of one category ordered by item id
	// descending. The ordering is stable so external callers can paginate.
	CategoryRows(ctx context.Context, key StorageKey, cat Category) ([]ItemAmount, error)

	// AllRows returns every row of the pool.
	AllRows(ctx context.Context, key StorageKey) ([]LedgerRow, error)

	// CategorySummary aggregates one category.
	CategorySummary(ctx context.Context, key StorageKey, cat Category) (CategorySummary, error)

	// CategorySummaries aggregates every non-empty category of the pool in
	// one read, for bulk cache refills.
	CategorySummaries(ctx context.Context, key StorageKey) (map[Category]CategorySummary, error)

	// UpsertMany atomically writes entries as insert-or-update-on-conflict
	// rows; an entry with amount 0 is deleted instead. The audit batch is
	// committed in the same transaction.
	UpsertMany(ctx context.Context, key StorageKey, entries map[uint32]uint64, categoryByItem map[uint32]Category, audit []AuditRecord) error

	// SetAmount atomically sets one row's amount (amount must be > 0).
	SetAmount(ctx context.Context, key StorageKey, itemID uint32, amount uint64, audit []AuditRecord) error

	// DeleteItem atomically removes one row.
	DeleteItem(ctx context.Context, key StorageKey, itemID uint32, audit []AuditRecord) error

	AuditLog
}

// AuditLog is the append-only event log of balance deltas.
type AuditLog interface {
	// AppendAudit inserts records preserving chronological insertion order.
	AppendAudit(ctx context.Context, records []AuditRecord) error

	// AuditTotals returns per-action event counts and delta sums.
	AuditTotals(ctx context.Context, q AuditQuery) ([]ActionTotals, error)

	// TopMovers returns up to limit items ordered by absolute net movement.
	TopMovers(ctx context.Context, q AuditQuery, limit int) ([]Mover, error)

	// AuditEvents returns one page of raw events, newest first, plus the
	// total row count for the filter.
	AuditEvents(ctx context.Context, q AuditQuery, limit, offset int) ([]AuditRecord, uint64, error)

	// PurgeAudit deletes matching records, optionally only those older than
	// cutoff (unix seconds; 0 disables the age filter). Returns rows deleted.
	PurgeAudit(ctx context.Context, q AuditQuery, cutoff int64) (int64, error)

	// DeleteAuditBefore deletes every record with timestamp < cutoff,
	// regardless of account. Used by the retention sweep.
	DeleteAuditBefore(ctx context.Context, cutoff int64) (int64, error)
}
