/*
Package sqlite provides the SQLite-backed implementation of bank.Store.

PURPOSE:
  Persists reagent balances and the audit log. In production the same
  patterns apply to MySQL/PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  bank_reagents: balances, unique on (account_id, guid, item_entry).
                 Invariant: amount > 0 for every stored row; writes of
                 amount 0 delete the row instead.
  bank_audit:    append-only balance deltas with an autoincrementing id, so
                 insertion order is chronological and never reordered.

ATOMICITY:
  UpsertMany batches every row write plus the accompanying audit batch into
  one transaction: all applied or none. Single-row point writes batch the
  same way when they carry audit records.

CONCURRENCY:
  sync.RWMutex serializes access on top of WAL mode. Cross-flow ordering per
  storage scope is the orchestrator's keyed lock, not this store's concern.

USAGE:
  store, err := sqlite.New("./data/reagentbank.db")  // ":memory:" for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/thornwood/reagent-bank/bank"
)

// Store implements bank.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

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

func (s *Store) migrate() error {
	schema := `
	-- Balances: one row per (scope, item), amount always > 0
	CREATE TABLE IF NOT EXISTS bank_reagents (
		account_id    INTEGER NOT NULL,
		guid          INTEGER NOT NULL,
		item_entry    INTEGER NOT NULL,
		item_subclass INTEGER NOT NULL,
		amount        INTEGER NOT NULL,
		PRIMARY KEY (account_id, guid, item_entry)
	);

	-- Category listings and summaries (hot path for menus)
	CREATE INDEX IF NOT EXISTS idx_bank_reagents_subclass
		ON bank_reagents(account_id, guid, item_subclass);

	-- Audit: append-only, id order is chronological
	CREATE TABLE IF NOT EXISTS bank_audit (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		ts            INTEGER NOT NULL,
		account_id    INTEGER NOT NULL,
		guid          INTEGER NOT NULL,
		action        TEXT NOT NULL,
		item_entry    INTEGER NOT NULL,
		item_subclass INTEGER NOT NULL,
		delta         INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bank_audit_account
		ON bank_audit(account_id, guid);
	CREATE INDEX IF NOT EXISTS idx_bank_audit_ts
		ON bank_audit(ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) Balance(ctx context.Context, key bank.StorageKey, itemID uint32) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var amount uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT amount FROM bank_reagents WHERE account_id = ? AND guid = ? AND item_entry = ?`,
		key.AccountID, key.CharacterID, itemID,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read balance: %w", err)
	}
	return amount, true, nil
}

func (s *Store) CategoryRows(ctx context.Context, key bank.StorageKey, cat bank.Category) ([]bank.ItemAmount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_entry, amount FROM bank_reagents
		 WHERE account_id = ? AND guid = ? AND item_subclass = ?
		 ORDER BY item_entry DESC`,
		key.AccountID, key.CharacterID, uint32(cat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query category rows: %w", err)
	}
	defer rows.Close()

	var out []bank.ItemAmount
	for rows.Next() {
		var r bank.ItemAmount
		if err := rows.Scan(&r.ItemID, &r.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AllRows(ctx context.Context, key bank.StorageKey) ([]bank.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_entry, item_subclass, amount FROM bank_reagents
		 WHERE account_id = ? AND guid = ?
		 ORDER BY item_entry DESC`,
		key.AccountID, key.CharacterID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []bank.LedgerRow
	for rows.Next() {
		var r bank.LedgerRow
		var subclass uint32
		if err := rows.Scan(&r.ItemID, &subclass, &r.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Category = bank.Category(subclass)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CategorySummary(ctx context.Context, key bank.StorageKey, cat bank.Category) (bank.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum bank.CategorySummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM bank_reagents
		 WHERE account_id = ? AND guid = ? AND item_subclass = ?`,
		key.AccountID, key.CharacterID, uint32(cat),
	).Scan(&sum.Distinct, &sum.Total)
	if err != nil {
		return bank.CategorySummary{}, fmt.Errorf("failed to aggregate category: %w", err)
	}
	return sum, nil
}

func (s *Store) CategorySummaries(ctx context.Context, key bank.StorageKey) (map[bank.Category]bank.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_subclass, COUNT(*), COALESCE(SUM(amount), 0) FROM bank_reagents
		 WHERE account_id = ? AND guid = ?
		 GROUP BY item_subclass`,
		key.AccountID, key.CharacterID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	defer rows.Close()

	out := make(map[bank.Category]bank.CategorySummary)
	for rows.Next() {
		var subclass uint32
		var sum bank.CategorySummary
		if err := rows.Scan(&subclass, &sum.Distinct, &sum.Total); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		out[bank.Category(subclass)] = sum
	}
	return out, rows.Err()
}

// UpsertMany writes every entry (deleting amount-0 rows) and the audit batch
// in a single transaction.
func (s *Store) UpsertMany(ctx context.Context, key bank.StorageKey, entries map[uint32]uint64, categoryByItem map[uint32]bank.Category, audit []bank.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for item, amount := range entries {
		if amount == 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM bank_reagents WHERE account_id = ? AND guid = ? AND item_entry = ?`,
				key.AccountID, key.CharacterID, item,
			); err != nil {
				return fmt.Errorf("failed to delete row: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bank_reagents (account_id, guid, item_entry, item_subclass, amount)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(account_id, guid, item_entry)
			 DO UPDATE SET item_subclass = excluded.item_subclass, amount = excluded.amount`,
			key.AccountID, key.CharacterID, item, uint32(categoryByItem[item]), amount,
		); err != nil {
			return fmt.Errorf("failed to upsert row: %w", err)
		}
	}
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SetAmount(ctx context.Context, key bank.StorageKey, itemID uint32, amount uint64, audit []bank.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE bank_reagents SET amount = ? WHERE account_id = ? AND guid = ? AND item_entry = ?`,
		amount, key.AccountID, key.CharacterID, itemID,
	); err != nil {
		return fmt.Errorf("failed to set amount: %w", err)
	}
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteItem(ctx context.Context, key bank.StorageKey, itemID uint32, audit []bank.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bank_reagents WHERE account_id = ? AND guid = ? AND item_entry = ?`,
		key.AccountID, key.CharacterID, itemID,
	); err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}
	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func appendAuditTx(ctx context.Context, tx *sql.Tx, records []bank.AuditRecord) error {
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bank_audit (ts, account_id, guid, action, item_entry, item_subclass, delta)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Timestamp, rec.Key.AccountID, rec.Key.CharacterID,
			string(rec.Action), rec.ItemID, uint32(rec.Category), rec.Delta,
		); err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
	}
	return nil
}

func (s *Store) AppendAudit(ctx context.Context, records []bank.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendAuditTx(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

// auditFilter builds the WHERE clause for operator queries. CharacterID 0
// means every character under the account, including the account-wide pool.
func auditFilter(q bank.AuditQuery) (string, []any) {
	where := "WHERE account_id = ?"
	args := []any{q.AccountID}
	if q.CharacterID != 0 {
		where += " AND guid = ?"
		args = append(args, q.CharacterID)
	}
	return where, args
}

func (s *Store) AuditTotals(ctx context.Context, q bank.AuditQuery) ([]bank.ActionTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := auditFilter(q)
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, COUNT(*), COALESCE(SUM(delta), 0) FROM bank_audit `+where+` GROUP BY action ORDER BY action`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit: %w", err)
	}
	defer rows.Close()

	var out []bank.ActionTotals
	for rows.Next() {
		var t bank.ActionTotals
		var action string
		if err := rows.Scan(&action, &t.Events, &t.Total); err != nil {
			return nil, fmt.Errorf("failed to scan audit totals: %w", err)
		}
		t.Action = bank.AuditAction(action)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) TopMovers(ctx context.Context, q bank.AuditQuery, limit int) ([]bank.Mover, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := auditFilter(q)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_entry, item_subclass,
		        SUM(CASE WHEN action = 'DEPOSIT' THEN delta ELSE -delta END) AS net
		 FROM bank_audit `+where+`
		 GROUP BY item_entry, item_subclass
		 ORDER BY ABS(net) DESC, item_entry ASC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top movers: %w", err)
	}
	defer rows.Close()

	var out []bank.Mover
	for rows.Next() {
		var m bank.Mover
		var subclass uint32
		if err := rows.Scan(&m.ItemID, &subclass, &m.Net); err != nil {
			return nil, fmt.Errorf("failed to scan mover: %w", err)
		}
		m.Category = bank.Category(subclass)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AuditEvents(ctx context.Context, q bank.AuditQuery, limit, offset int) ([]bank.AuditRecord, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := auditFilter(q)

	var total uint64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bank_audit `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit rows: %w", err)
	}

	pageArgs := append(append([]any{}, args...), limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, account_id, guid, action, item_entry, item_subclass, delta
		 FROM bank_audit `+where+`
		 ORDER BY id DESC
		 LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit rows: %w", err)
	}
	defer rows.Close()

	var out []bank.AuditRecord
	for rows.Next() {
		var rec bank.AuditRecord
		var action string
		var subclass uint32
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Key.AccountID, &rec.Key.CharacterID,
			&action, &rec.ItemID, &subclass, &rec.Delta); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit row: %w", err)
		}
		rec.Action = bank.AuditAction(action)
		rec.Category = bank.Category(subclass)
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (s *Store) PurgeAudit(ctx context.Context, q bank.AuditQuery, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := auditFilter(q)
	if cutoff > 0 {
		where += " AND ts < ?"
		args = append(args, cutoff)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM bank_audit `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteAuditBefore(ctx context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM bank_audit WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep audit rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept rows: %w", err)
	}
	return n, nil
}

var _ bank.Store = (*Store)(nil)
