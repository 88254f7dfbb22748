/*
service.go - Deposit/withdraw orchestration

PURPOSE:
  Coordinates the use cases exposed to the presentation layer: deposit all,
  deposit one category, withdraw a category (or everything), withdraw a single
  item, plus the summary/listing reads and the operator audit surface. Each
  use case is a short-lived flow:

    START -> SNAPSHOT_READ -> COMPUTE -> PERSIST_WRITE -> CACHE_INVALIDATE
          -> AUDIT_APPEND -> END

  Every store call is a suspension point: the requester may disconnect while
  it is in flight. The first action after each store call is therefore a
  liveness re-check through World; a vanished requester aborts the flow with
  ErrStaleRequester and no further mutation. Real-storage mutation only ever
  happens after a liveness check has passed.

ORDERING:
  Within one flow: reads happen before simulate/accumulate, which happens
  before the persistent write, which happens before cache invalidation, which
  happens before the audit append (batched into the write's transaction).
  Across flows, the per-key lock serializes the whole span per StorageKey.

ERROR POLICY:
  Missing metadata skips that item only. A refused real-storage add stops that
  item only; other items in the batch keep their grants. Store failures abort
  the flow; real storage already mutated in the same flow is not rolled back,
  which is a documented inconsistency risk.
*/
package bank

import (
	"context"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	DefaultMaxOptionsPerPage    = 7
	DefaultAuditRetention       = 7 * 24 * time.Hour
	DefaultAuditCleanupInterval = time.Hour
)

// Config carries the engine settings. Zero values fall back to defaults in
// NewService; Clock is for tests and defaults to time.Now.
type Config struct {
	MaxOptionsPerPage    int
	AccountWide          bool
	AuditEnabled         bool
	AuditRetention       time.Duration
	AuditCleanupInterval time.Duration
	Clock                func() time.Time
}

// Service is the ledger orchestrator. Construct once with NewService and
// share; all state is internally synchronized.
type Service struct {
	store   Store
	world   World
	catalog Catalog
	cfg     Config
	cache   *Cache
	locks   *KeyLock
	now     func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

func NewService(store Store, world World, catalog Catalog, cfg Config) *Service {
	if cfg.MaxOptionsPerPage <= 0 {
		cfg.MaxOptionsPerPage = DefaultMaxOptionsPerPage
	}
	if cfg.AuditRetention <= 0 {
		cfg.AuditRetention = DefaultAuditRetention
	}
	if cfg.AuditCleanupInterval <= 0 {
		cfg.AuditCleanupInterval = DefaultAuditCleanupInterval
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   store,
		world:   world,
		catalog: catalog,
		cfg:     cfg,
		cache:   NewCache(),
		locks:   NewKeyLock(),
		now:     now,
	}
}

// Item resolves item metadata through the shared cache. Negative results are
// cached as well, so a bad id costs one catalog lookup, not one per flow.
func (s *Service) Item(id uint32) (ItemInfo, bool) {
	if info, ok, cached := s.cache.Item(id); cached {
		return info, ok
	}
	info, ok := s.catalog.Item(id)
	s.cache.StoreItem(id, info, ok)
	return info, ok
}

// keyFor resolves the requester's storage key: the character id collapses to
// the shared sentinel when the bank is account-wide.
func (s *Service) keyFor(r Requester) StorageKey {
	key := StorageKey{AccountID: r.AccountID()}
	if !s.cfg.AccountWide {
		key.CharacterID = r.CharacterID()
	}
	return key
}

func (s *Service) live(id RequesterID) (Requester, bool) {
	return s.world.Find(id)
}

// =============================================================================
// DEPOSITS
// =============================================================================

// DepositAll moves every bankable item from the requester's bags into the
// pool, merging with existing balances.
func (s *Service) DepositAll(ctx context.Context, id RequesterID) (DepositResult, error) {
	r, ok := s.live(id)
	if !ok {
		return DepositResult{}, ErrStaleRequester
	}
	key := s.keyFor(r)
	unlock := s.locks.Lock(key)
	defer unlock()

	rows, err := s.store.AllRows(ctx, key)
	if err != nil {
		return DepositResult{}, persistence(err)
	}
	r, ok = s.live(id)
	if !ok {
		return DepositResult{}, ErrStaleRequester
	}

	existing := make(map[uint32]uint64, len(rows))
	storedCat := make(map[uint32]Category, len(rows))
	for _, row := range rows {
		existing[row.ItemID] = row.Amount
		storedCat[row.ItemID] = row.Category
	}

	removed, cats := s.accumulate(r.Holdings(), nil)
	if len(removed) == 0 {
		return DepositResult{}, nil
	}
	return s.commitDeposit(ctx, key, existing, storedCat, removed, cats)
}

// DepositCategory deposits only items banking under cat.
func (s *Service) DepositCategory(ctx context.Context, id RequesterID, cat Category) (DepositResult, error) {
	r, ok := s.live(id)
	if !ok {
		return DepositResult{}, ErrStaleRequester
	}
	key := s.keyFor(r)
	unlock := s.locks.Lock(key)
	defer unlock()

	rows, err := s.store.CategoryRows(ctx, key, cat)
	if err != nil {
		return DepositResult{}, persistence(err)
	}
	r, ok = s.live(id)
	if !ok {
		return DepositResult{}, ErrStaleRequester
	}

	existing := make(map[uint32]uint64, len(rows))
	storedCat := make(map[uint32]Category, len(rows))
	for _, row := range rows {
		existing[row.ItemID] = row.Amount
		storedCat[row.ItemID] = cat
	}

	removed, cats := s.accumulate(r.Holdings(), &cat)
	if len(removed) == 0 {
		return DepositResult{}, nil
	}
	return s.commitDeposit(ctx, key, existing, storedCat, removed, cats)
}

// accumulate scans the requester's slots, removes every bankable stack that
// passes the filter, and sums the removed quantities per item. The category
// an item banks under is recorded on first sight; metadata misses and removal
// failures skip that stack only.
func (s *Service) accumulate(h Holdings, filter *Category) (map[uint32]uint64, map[uint32]Category) {
	removed := make(map[uint32]uint64)
	cats := make(map[uint32]Category)
	for _, slot := range h.Slots() {
		if slot.ItemID == 0 {
			continue
		}
		info, ok := s.Item(slot.ItemID)
		if !ok || !info.Bankable() {
			continue
		}
		cat := info.BankCategory()
		if filter != nil && cat != *filter {
			continue
		}
		if err := h.Remove(slot.Ref); err != nil {
			continue
		}
		removed[slot.ItemID] += uint64(slot.Count)
		if _, seen := cats[slot.ItemID]; !seen {
			cats[slot.ItemID] = cat
		}
	}
	return removed, cats
}

// commitDeposit merges removed quantities into existing balances, writes the
// merge atomically with its audit batch, and invalidates every touched
// category.
func (s *Service) commitDeposit(ctx context.Context, key StorageKey, existing map[uint32]uint64, storedCat map[uint32]Category, removed map[uint32]uint64, cats map[uint32]Category) (DepositResult, error) {
	final := make(map[uint32]uint64, len(removed))
	catByItem := make(map[uint32]Category, len(removed))
	touched := make(map[Category]struct{})
	items := sortedItems(removed)
	for _, item := range items {
		final[item] = existing[item] + removed[item]
		cat, ok := cats[item]
		if !ok {
			cat = storedCat[item] // fresh metadata unavailable, trust the stored row
		}
		catByItem[item] = cat
		touched[cat] = struct{}{}
	}

	var audit []AuditRecord
	if s.cfg.AuditEnabled {
		ts := s.now().Unix()
		for _, item := range items {
			audit = append(audit, AuditRecord{
				Timestamp: ts,
				Key:       key,
				Action:    AuditDeposit,
				ItemID:    item,
				Category:  catByItem[item],
				Delta:     int64(removed[item]),
			})
		}
	}

	if err := s.store.UpsertMany(ctx, key, final, catByItem, audit); err != nil {
		// The stacks already left the requester's bags; the failed write is
		// the documented inconsistency risk of this flow.
		return DepositResult{}, persistence(err)
	}
	for cat := range touched {
		s.cache.InvalidateCategory(cat)
	}

	var res DepositResult
	for _, item := range items {
		var name string
		if info, ok := s.Item(item); ok {
			name = info.Name
		}
		res.Deposited = append(res.Deposited, ItemQuantity{ItemID: item, Name: name, Amount: removed[item]})
	}
	return res, nil
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

// WithdrawCategory withdraws as much of the category's stored balances as the
// requester's free storage allows, per the capacity simulation.
func (s *Service) WithdrawCategory(ctx context.Context, id RequesterID, cat Category) (WithdrawResult, error) {
	res, err := s.withdrawCategory(ctx, id, cat)
	s.maybeSweep(ctx)
	return res, err
}

// WithdrawAll runs the category withdrawal over every known category.
func (s *Service) WithdrawAll(ctx context.Context, id RequesterID) (WithdrawResult, error) {
	var res WithdrawResult
	for _, c := range Categories() {
		part, err := s.withdrawCategory(ctx, id, c.ID)
		res.Withdrawn = append(res.Withdrawn, part.Withdrawn...)
		if err != nil {
			return res, err
		}
	}
	s.maybeSweep(ctx)
	return res, nil
}

func (s *Service) withdrawCategory(ctx context.Context, id RequesterID, cat Category) (WithdrawResult, error) {
	r, ok := s.live(id)
	if !ok {
		return WithdrawResult{}, ErrStaleRequester
	}
	key := s.keyFor(r)
	unlock := s.locks.Lock(key)
	defer unlock()

	rows, err := s.store.CategoryRows(ctx, key, cat)
	if err != nil {
		return WithdrawResult{}, persistence(err)
	}
	r, ok = s.live(id)
	if !ok {
		return WithdrawResult{}, ErrStaleRequester
	}
	if len(rows) == 0 {
		return WithdrawResult{}, nil
	}

	holdings := r.Holdings()
	snap := BuildSnapshot(holdings, catalogFunc(s.Item))

	requests := make([]WithdrawRequest, len(rows))
	for i, row := range rows {
		requests[i] = WithdrawRequest{ItemID: row.ItemID, Amount: row.Amount}
	}
	granted := Simulate(snap, requests,
		func(id uint32) uint32 {
			if info, ok := s.Item(id); ok {
				return info.MaxStack
			}
			return 0
		},
		func(id uint32) uint32 {
			if info, ok := s.Item(id); ok {
				return info.BagFamilyMask
			}
			return 0
		})

	entries := make(map[uint32]uint64)
	catByItem := make(map[uint32]Category)
	var audit []AuditRecord
	var res WithdrawResult
	ts := s.now().Unix()
	for _, row := range rows {
		allowed := granted[row.ItemID]
		if allowed == 0 {
			continue
		}
		info, ok := s.Item(row.ItemID)
		if !ok {
			continue
		}
		given := give(holdings, info, allowed)
		if given == 0 {
			continue
		}
		entries[row.ItemID] = row.Amount - given
		catByItem[row.ItemID] = cat
		if s.cfg.AuditEnabled {
			audit = append(audit, AuditRecord{
				Timestamp: ts,
				Key:       key,
				Action:    AuditWithdraw,
				ItemID:    row.ItemID,
				Category:  cat,
				Delta:     int64(given),
			})
		}
		res.Withdrawn = append(res.Withdrawn, ItemQuantity{ItemID: row.ItemID, Name: info.Name, Amount: given})
	}

	if len(entries) > 0 {
		if err := s.store.UpsertMany(ctx, key, entries, catByItem, audit); err != nil {
			return res, persistence(err)
		}
		s.cache.InvalidateCategory(cat)
	}
	return res, nil
}

// give creates real stacks one stack at a time. The first capacity refusal
// stops this item; stacks already created stand, and the shortfall stays in
// the ledger.
func give(h Holdings, info ItemInfo, allowed uint64) uint64 {
	var given uint64
	remaining := allowed
	for remaining > 0 {
		chunk := uint64(info.MaxStack)
		if chunk > remaining {
			chunk = remaining
		}
		if err := h.Add(info.ID, chunk); err != nil {
			break
		}
		given += chunk
		remaining -= chunk
	}
	return given
}

// WithdrawItem withdraws one item's balance, capped at a single stack per
// call; draining a balance larger than one stack takes repeated calls.
func (s *Service) WithdrawItem(ctx context.Context, id RequesterID, itemID uint32) (WithdrawResult, error) {
	res, err := s.withdrawItem(ctx, id, itemID)
	s.maybeSweep(ctx)
	return res, err
}

func (s *Service) withdrawItem(ctx context.Context, id RequesterID, itemID uint32) (WithdrawResult, error) {
	r, ok := s.live(id)
	if !ok {
		return WithdrawResult{}, ErrStaleRequester
	}
	key := s.keyFor(r)
	unlock := s.locks.Lock(key)
	defer unlock()

	amount, exists, err := s.store.Balance(ctx, key, itemID)
	if err != nil {
		return WithdrawResult{}, persistence(err)
	}
	r, ok = s.live(id)
	if !ok {
		return WithdrawResult{}, ErrStaleRequester
	}
	if !exists {
		return WithdrawResult{}, nil
	}

	info, ok := s.Item(itemID)
	if !ok {
		return WithdrawResult{}, ErrNotFound
	}

	grant := uint64(info.MaxStack)
	if grant > amount {
		grant = amount
	}
	if err := r.Holdings().Add(itemID, grant); err != nil {
		return WithdrawResult{}, ErrCapacityExceeded
	}

	var audit []AuditRecord
	if s.cfg.AuditEnabled {
		audit = append(audit, AuditRecord{
			Timestamp: s.now().Unix(),
			Key:       key,
			Action:    AuditWithdraw,
			ItemID:    itemID,
			Category:  info.BankCategory(),
			Delta:     int64(grant),
		})
	}

	remaining := amount - grant
	if remaining == 0 {
		err = s.store.DeleteItem(ctx, key, itemID, audit)
	} else {
		err = s.store.SetAmount(ctx, key, itemID, remaining, audit)
	}
	if err != nil {
		return WithdrawResult{}, persistence(err)
	}
	s.cache.InvalidateCategory(info.BankCategory())

	return WithdrawResult{Withdrawn: []ItemQuantity{{ItemID: itemID, Name: info.Name, Amount: grant}}}, nil
}

// =============================================================================
// READS
// =============================================================================

// CategorySummaries returns (distinct, total) per category for the
// requester's pool, serving from the cache where it is valid. A cold cache is
// refilled with one bulk read; a single invalidated category is recomputed
// alone.
func (s *Service) CategorySummaries(ctx context.Context, id RequesterID) (map[Category]CategorySummary, error) {
	r, ok := s.live(id)
	if !ok {
		return nil, ErrStaleRequester
	}
	key := s.keyFor(r)

	if s.cache.AllInvalid() {
		fresh, err := s.store.CategorySummaries(ctx, key)
		if err != nil {
			return nil, persistence(err)
		}
		if _, ok := s.live(id); !ok {
			return nil, ErrStaleRequester
		}
		for _, c := range Categories() {
			s.cache.StoreSummary(key, c.ID, fresh[c.ID])
		}
	}

	out := make(map[Category]CategorySummary, len(categoryTable))
	for _, c := range Categories() {
		if sum, hit := s.cache.Summary(key, c.ID); hit {
			out[c.ID] = sum
			continue
		}
		sum, err := s.store.CategorySummary(ctx, key, c.ID)
		if err != nil {
			return nil, persistence(err)
		}
		if _, ok := s.live(id); !ok {
			return nil, ErrStaleRequester
		}
		s.cache.StoreSummary(key, c.ID, sum)
		out[c.ID] = sum
	}
	return out, nil
}

// CategoryRows returns one page of a category's rows (item id descending) and
// remembers the view so a follow-up single-item withdrawal can land back on
// the same page.
func (s *Service) CategoryRows(ctx context.Context, id RequesterID, cat Category, page int) ([]ItemAmount, PageInfo, error) {
	r, ok := s.live(id)
	if !ok {
		return nil, PageInfo{}, ErrStaleRequester
	}
	key := s.keyFor(r)

	rows, err := s.store.CategoryRows(ctx, key, cat)
	if err != nil {
		return nil, PageInfo{}, persistence(err)
	}
	if _, ok := s.live(id); !ok {
		return nil, PageInfo{}, ErrStaleRequester
	}

	per := s.cfg.MaxOptionsPerPage
	total := len(rows)
	totalPages := 1
	if total > 0 {
		totalPages = (total-1)/per + 1
	}
	// Clamp before any arithmetic: page*per and page+1 overflow for huge
	// values. Anything past the last page is the first empty page.
	if page < 0 {
		page = 0
	}
	if page > totalPages {
		page = totalPages
	}
	var totalAmount uint64
	for _, row := range rows {
		totalAmount += row.Amount
	}
	info := PageInfo{
		Page:        page + 1,
		TotalPages:  totalPages,
		TotalItems:  total,
		TotalAmount: totalAmount,
	}

	start := page * per
	if start >= total {
		s.cache.SetView(id, cat, page)
		return nil, info, nil
	}
	end := start + per
	if end > total {
		end = total
	}
	s.cache.SetView(id, cat, page)
	return rows[start:end], info, nil
}

// LastView returns the category and page the requester last browsed.
func (s *Service) LastView(id RequesterID) (Category, int, bool) {
	return s.cache.View(id)
}

// Disconnected drops per-requester presentation state.
func (s *Service) Disconnected(id RequesterID) {
	s.cache.DropView(id)
}

func sortedItems(m map[uint32]uint64) []uint32 {
	out := make([]uint32, 0, len(m))
	for item := range m {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// catalogFunc adapts a lookup function to the Catalog interface.
type catalogFunc func(id uint32) (ItemInfo, bool)

func (f catalogFunc) Item(id uint32) (ItemInfo, bool) { return f(id) }
