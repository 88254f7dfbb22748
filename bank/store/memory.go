// Package store provides an in-memory bank.Store implementation for tests
// and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/thornwood/reagent-bank/bank"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	rows   map[bank.StorageKey]map[uint32]row
	audit  []bank.AuditRecord
	nextID int64
}

type row struct {
	category bank.Category
	amount   uint64
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[bank.StorageKey]map[uint32]row), nextID: 1}
}

// =============================================================================
// BALANCES
// =============================================================================

func (m *Memory) Balance(_ context.Context, key bank.StorageKey, itemID uint32) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[key][itemID]
	if !ok {
		return 0, false, nil
	}
	return r.amount, true, nil
}

func (m *Memory) CategoryRows(_ context.Context, key bank.StorageKey, cat bank.Category) ([]bank.ItemAmount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bank.ItemAmount
	for item, r := range m.rows[key] {
		if r.category == cat {
			out = append(out, bank.ItemAmount{ItemID: item, Amount: r.amount})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID > out[j].ItemID })
	return out, nil
}

func (m *Memory) AllRows(_ context.Context, key bank.StorageKey) ([]bank.LedgerRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bank.LedgerRow
	for item, r := range m.rows[key] {
		out = append(out, bank.LedgerRow{ItemID: item, Category: r.category, Amount: r.amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID > out[j].ItemID })
	return out, nil
}

func (m *Memory) CategorySummary(_ context.Context, key bank.StorageKey, cat bank.Category) (bank.CategorySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum bank.CategorySummary
	for _, r := range m.rows[key] {
		if r.category == cat {
			sum.Distinct++
			sum.Total += r.amount
		}
	}
	return sum, nil
}

func (m *Memory) CategorySummaries(_ context.Context, key bank.StorageKey) (map[bank.Category]bank.CategorySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[bank.Category]bank.CategorySummary)
	for _, r := range m.rows[key] {
		sum := out[r.category]
		sum.Distinct++
		sum.Total += r.amount
		out[r.category] = sum
	}
	return out, nil
}

func (m *Memory) UpsertMany(_ context.Context, key bank.StorageKey, entries map[uint32]uint64, categoryByItem map[uint32]bank.Category, audit []bank.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool := m.rows[key]
	if pool == nil {
		pool = make(map[uint32]row)
		m.rows[key] = pool
	}
	for item, amount := range entries {
		if amount == 0 {
			delete(pool, item)
			continue
		}
		pool[item] = row{category: categoryByItem[item], amount: amount}
	}
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) SetAmount(_ context.Context, key bank.StorageKey, itemID uint32, amount uint64, audit []bank.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool := m.rows[key]
	if pool == nil {
		pool = make(map[uint32]row)
		m.rows[key] = pool
	}
	r := pool[itemID]
	r.amount = amount
	pool[itemID] = r
	m.appendAuditLocked(audit)
	return nil
}

func (m *Memory) DeleteItem(_ context.Context, key bank.StorageKey, itemID uint32, audit []bank.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows[key], itemID)
	m.appendAuditLocked(audit)
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, records []bank.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendAuditLocked(records)
	return nil
}

func (m *Memory) appendAuditLocked(records []bank.AuditRecord) {
	for _, rec := range records {
		rec.ID = m.nextID
		m.nextID++
		m.audit = append(m.audit, rec)
	}
}

func (m *Memory) matches(rec bank.AuditRecord, q bank.AuditQuery) bool {
	if rec.Key.AccountID != q.AccountID {
		return false
	}
	return q.CharacterID == 0 || rec.Key.CharacterID == q.CharacterID
}

func (m *Memory) AuditTotals(_ context.Context, q bank.AuditQuery) ([]bank.ActionTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byAction := make(map[bank.AuditAction]*bank.ActionTotals)
	for _, rec := range m.audit {
		if !m.matches(rec, q) {
			continue
		}
		t := byAction[rec.Action]
		if t == nil {
			t = &bank.ActionTotals{Action: rec.Action}
			byAction[rec.Action] = t
		}
		t.Events++
		t.Total += rec.Delta
	}
	var out []bank.ActionTotals
	for _, t := range byAction {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out, nil
}

func (m *Memory) TopMovers(_ context.Context, q bank.AuditQuery, limit int) ([]bank.Mover, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type moverKey struct {
		item uint32
		cat  bank.Category
	}
	net := make(map[moverKey]int64)
	for _, rec := range m.audit {
		if !m.matches(rec, q) {
			continue
		}
		k := moverKey{rec.ItemID, rec.Category}
		if rec.Action == bank.AuditDeposit {
			net[k] += rec.Delta
		} else {
			net[k] -= rec.Delta
		}
	}
	out := make([]bank.Mover, 0, len(net))
	for k, n := range net {
		out = append(out, bank.Mover{ItemID: k.item, Category: k.cat, Net: n})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs64(out[i].Net), abs64(out[j].Net)
		if ai != aj {
			return ai > aj
		}
		return out[i].ItemID < out[j].ItemID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) AuditEvents(_ context.Context, q bank.AuditQuery, limit, offset int) ([]bank.AuditRecord, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []bank.AuditRecord
	for _, rec := range m.audit {
		if m.matches(rec, q) {
			all = append(all, rec)
		}
	}
	total := uint64(len(all))
	// Newest first.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *Memory) PurgeAudit(_ context.Context, q bank.AuditQuery, cutoff int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []bank.AuditRecord
	var deleted int64
	for _, rec := range m.audit {
		if m.matches(rec, q) && (cutoff == 0 || rec.Timestamp < cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.audit = kept
	return deleted, nil
}

func (m *Memory) DeleteAuditBefore(_ context.Context, cutoff int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []bank.AuditRecord
	var deleted int64
	for _, rec := range m.audit {
		if rec.Timestamp < cutoff {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.audit = kept
	return deleted, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ bank.Store = (*Memory)(nil)
