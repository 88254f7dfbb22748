package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thornwood/reagent-bank/bank"
	"github.com/thornwood/reagent-bank/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var testKey = bank.StorageKey{AccountID: 100, CharacterID: 1001}

func auditRec(key bank.StorageKey, ts int64, action bank.AuditAction, item uint32, delta int64) bank.AuditRecord {
	return bank.AuditRecord{
		Timestamp: ts,
		Key:       key,
		Action:    action,
		ItemID:    item,
		Category:  bank.CategoryCloth,
		Delta:     delta,
	}
}

// =============================================================================
// BALANCE ROWS
// =============================================================================

func TestSQLiteStore_UpsertInsertAndUpdate(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Upserting a row, then upserting the same item with a new amount
	// THEN: One row exists with the latest amount

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, testKey,
		map[uint32]uint64{2589: 30}, map[uint32]bank.Category{2589: bank.CategoryCloth}, nil))
	require.NoError(t, store.UpsertMany(ctx, testKey,
		map[uint32]uint64{2589: 45}, map[uint32]bank.Category{2589: bank.CategoryCloth}, nil))

	amount, exists, err := store.Balance(ctx, testKey, 2589)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, uint64(45), amount)

	rows, err := store.AllRows(ctx, testKey)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSQLiteStore_UpsertZeroDeletesRow(t *testing.T) {
	// GIVEN: A stored balance
	// WHEN: Upserting the item with amount 0
	// THEN: The row is gone, not stored as zero

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, testKey,
		map[uint32]uint64{2589: 30}, map[uint32]bank.Category{2589: bank.CategoryCloth}, nil))
	require.NoError(t, store.UpsertMany(ctx, testKey,
		map[uint32]uint64{2589: 0}, map[uint32]bank.Category{2589: bank.CategoryCloth}, nil))

	_, exists, err := store.Balance(ctx, testKey, 2589)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteStore_BalanceMissingRow(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Reading a balance
	// THEN: exists=false with no error

	store := newTestStore(t)

	amount, exists, err := store.Balance(context.Background(), testKey, 9999)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, uint64(0), amount)
}

func TestSQLiteStore_CategoryRowsDescendingAndScoped(t *testing.T) {
	// GIVEN: Rows in two categories and under two storage keys
	// WHEN: Reading one category for one key
	// THEN: Only that key's rows of that category, item id descending

	store := newTestStore(t)
	ctx := context.Background()
	otherKey := bank.StorageKey{AccountID: 100, CharacterID: 1002}

	require.NoError(t, store.UpsertMany(ctx, testKey,
		map[uint32]uint64{2589: 10, 2592: 20, 765: 30},
		map[uint32]bank.Category{2589: bank.CategoryCloth, 2592: bank.CategoryCloth, 765: bank.CategoryHerb}, nil))
	require.NoError(t, store.UpsertMany(ctx, otherKey,
		map[uint32]uint64{2589: 99}, map[uint32]bank.Category{2589: bank.CategoryCloth}, nil))

	rows, err := store.CategoryRows(ctx, testKey, bank.CategoryCloth)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint32(2592), rows[0].ItemID)
	assert.Equal(t, uint32(2589), rows[1].ItemID)
}

func TestSQLiteStore_SetAmountAndDeleteItem(t *testing.T) {
	// GIVEN: A stored balance
	// WHEN: Setting a new amount, then deleting the item
	// THEN: Each write is visible immediately

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, testKey,
		map[uint32]uint64{2589: 45}, map[uint32]bank.Category{2589: bank.CategoryCloth}, nil))

	require.NoError(t, store.SetAmount(ctx, testKey, 2589, 25, nil))
	amount, _, err := store.Balance(ctx, testKey, 2589)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), amount)

	require.NoError(t, store.DeleteItem(ctx, testKey, 2589, nil))
	_, exists, err := store.Balance(ctx, testKey, 2589)
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestSQLiteStore_CategorySummaries(t *testing.T) {
	// GIVEN: Two cloth rows and one herb row
	// WHEN: Aggregating one category and all categories
	// THEN: Counts and sums match; absent categories are simply missing

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, testKey,
		map[uint32]uint64{2589: 10, 2592: 20, 765: 30},
		map[uint32]bank.Category{2589: bank.CategoryCloth, 2592: bank.CategoryCloth, 765: bank.CategoryHerb}, nil))

	sum, err := store.CategorySummary(ctx, testKey, bank.CategoryCloth)
	require.NoError(t, err)
	assert.Equal(t, bank.CategorySummary{Distinct: 2, Total: 30}, sum)

	all, err := store.CategorySummaries(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, bank.CategorySummary{Distinct: 1, Total: 30}, all[bank.CategoryHerb])
	_, present := all[bank.CategoryMeat]
	assert.False(t, present)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestSQLiteStore_AuditTotalsPerAction(t *testing.T) {
	// GIVEN: Two deposits and one withdrawal
	// WHEN: Aggregating totals
	// THEN: Per-action event counts and summed deltas, actions ordered

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAudit(ctx, []bank.AuditRecord{
		auditRec(testKey, 100, bank.AuditDeposit, 2589, 30),
		auditRec(testKey, 110, bank.AuditDeposit, 2589, 15),
		auditRec(testKey, 120, bank.AuditWithdraw, 2589, 20),
	}))

	totals, err := store.AuditTotals(ctx, bank.AuditQuery{AccountID: 100})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, bank.AuditDeposit, totals[0].Action)
	assert.Equal(t, uint64(2), totals[0].Events)
	assert.Equal(t, int64(45), totals[0].Total)
	assert.Equal(t, bank.AuditWithdraw, totals[1].Action)
	assert.Equal(t, int64(20), totals[1].Total)
}

func TestSQLiteStore_TopMoversNetAndOrder(t *testing.T) {
	// GIVEN: Item A nets +50, item B nets -60 (withdrawals exceed deposits)
	// WHEN: Asking for the top movers
	// THEN: B leads on absolute net; the limit is respected

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAudit(ctx, []bank.AuditRecord{
		auditRec(testKey, 100, bank.AuditDeposit, 1001, 50),
		auditRec(testKey, 110, bank.AuditDeposit, 1002, 20),
		auditRec(testKey, 120, bank.AuditWithdraw, 1002, 80),
	}))

	movers, err := store.TopMovers(ctx, bank.AuditQuery{AccountID: 100}, 5)
	require.NoError(t, err)
	require.Len(t, movers, 2)
	assert.Equal(t, uint32(1002), movers[0].ItemID)
	assert.Equal(t, int64(-60), movers[0].Net)
	assert.Equal(t, int64(50), movers[1].Net)

	movers, err = store.TopMovers(ctx, bank.AuditQuery{AccountID: 100}, 1)
	require.NoError(t, err)
	assert.Len(t, movers, 1)
}

func TestSQLiteStore_AuditEventsNewestFirstPaged(t *testing.T) {
	// GIVEN: Three audit records
	// WHEN: Reading page-sized windows
	// THEN: Newest first, total unaffected by the window

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAudit(ctx, []bank.AuditRecord{
		auditRec(testKey, 100, bank.AuditDeposit, 1, 1),
		auditRec(testKey, 110, bank.AuditDeposit, 2, 2),
		auditRec(testKey, 120, bank.AuditDeposit, 3, 3),
	}))

	events, total, err := store.AuditEvents(ctx, bank.AuditQuery{AccountID: 100}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, events, 2)
	assert.Equal(t, uint32(3), events[0].ItemID)
	assert.Equal(t, uint32(2), events[1].ItemID)

	events, _, err = store.AuditEvents(ctx, bank.AuditQuery{AccountID: 100}, 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint32(1), events[0].ItemID)
}

func TestSQLiteStore_AuditCharacterFilter(t *testing.T) {
	// GIVEN: Records for two characters under one account
	// WHEN: Querying with and without a character filter
	// THEN: CharacterID 0 covers both; a set id narrows to one

	store := newTestStore(t)
	ctx := context.Background()
	otherKey := bank.StorageKey{AccountID: 100, CharacterID: 1002}

	require.NoError(t, store.AppendAudit(ctx, []bank.AuditRecord{
		auditRec(testKey, 100, bank.AuditDeposit, 1, 1),
		auditRec(otherKey, 110, bank.AuditDeposit, 2, 2),
	}))

	_, total, err := store.AuditEvents(ctx, bank.AuditQuery{AccountID: 100}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)

	_, total, err = store.AuditEvents(ctx, bank.AuditQuery{AccountID: 100, CharacterID: 1002}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
}

func TestSQLiteStore_PurgeAuditWithCutoff(t *testing.T) {
	// GIVEN: Records at ts 100 and 200
	// WHEN: Purging the account's records older than 150, then everything
	// THEN: The first purge deletes one row, the second the rest

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAudit(ctx, []bank.AuditRecord{
		auditRec(testKey, 100, bank.AuditDeposit, 1, 1),
		auditRec(testKey, 200, bank.AuditDeposit, 2, 2),
	}))

	deleted, err := store.PurgeAudit(ctx, bank.AuditQuery{AccountID: 100}, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = store.PurgeAudit(ctx, bank.AuditQuery{AccountID: 100}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, total, err := store.AuditEvents(ctx, bank.AuditQuery{AccountID: 100}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)
}

func TestSQLiteStore_DeleteAuditBefore(t *testing.T) {
	// GIVEN: Records at ts 100 and 200 across different accounts
	// WHEN: Sweeping everything older than 150
	// THEN: Both accounts' expired rows go in one pass

	store := newTestStore(t)
	ctx := context.Background()
	otherAccount := bank.StorageKey{AccountID: 200, CharacterID: 2001}

	require.NoError(t, store.AppendAudit(ctx, []bank.AuditRecord{
		auditRec(testKey, 100, bank.AuditDeposit, 1, 1),
		auditRec(otherAccount, 100, bank.AuditDeposit, 2, 2),
		auditRec(testKey, 200, bank.AuditDeposit, 3, 3),
	}))

	deleted, err := store.DeleteAuditBefore(ctx, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestSQLiteStore_UpsertWithAuditIsAtomic(t *testing.T) {
	// GIVEN: A batch write carrying audit records
	// WHEN: Committing
	// THEN: Rows and audit entries both land

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, testKey,
		map[uint32]uint64{2589: 30}, map[uint32]bank.Category{2589: bank.CategoryCloth},
		[]bank.AuditRecord{auditRec(testKey, 100, bank.AuditDeposit, 2589, 30)}))

	amount, _, err := store.Balance(ctx, testKey, 2589)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), amount)

	_, total, err := store.AuditEvents(ctx, bank.AuditQuery{AccountID: 100}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
}
