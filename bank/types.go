/*
Package bank provides the core ledger and capacity-simulation engine for the
shared reagent bank.

PURPOSE:
  Players deposit stackable trade goods into a persistent pool scoped to their
  account (or one character) and withdraw them later, limited by the free space
  in their bags. This package owns the hard parts: the balance store contract,
  the derived category-summary cache and its invalidation rules, the dry-run
  bin-packing simulator that decides how much of a withdrawal actually fits,
  the merge-upsert deposit path, and the audit/retention subsystem.

KEY CONCEPTS IN THIS FILE (types.go):
  - StorageKey: the ownership boundary a balance belongs to
  - LedgerRow:  one persisted (item, amount) balance
  - Category:   closed set of reagent groupings (cloth, herbs, ...)
  - ItemInfo:   host catalog metadata the engine needs (stack size, family mask)
  - AuditRecord: one balance delta in the append-only audit log

DESIGN PRINCIPLES:
  1. Amounts are integral counts (uint64). A stored row always has amount > 0;
     a balance that reaches zero is deleted, never written as zero.
  2. The category set is closed and resolved into a lookup table at init.
     No runtime scans decide whether an id is a category.
  3. The engine never talks to the host directly; it consumes the narrow
     interfaces in host.go.

SEE ALSO:
  - simulator.go: dry-run bin packing over an inventory snapshot
  - service.go:   deposit/withdraw orchestration
  - store.go:     persistence contract
*/
package bank

// =============================================================================
// STORAGE KEY - Ownership boundary of a balance pool
// =============================================================================

// StorageKey identifies one logical reagent pool. CharacterID is 0 when the
// pool is account-wide; otherwise it narrows the pool to a single character.
// All rows of one pool share the same key.
type StorageKey struct {
	AccountID   uint32
	CharacterID uint32
}

// RequesterID identifies a connected player session in the host world.
type RequesterID uint64

// =============================================================================
// CATEGORIES - Closed set of reagent groupings
// =============================================================================

// Category is a coarse grouping of item types used for summarized display and
// bulk deposit/withdraw operations. Values match the host's trade-goods
// subclass codes so stored rows stay compatible with the item catalog.
type Category uint32

const (
	CategoryParts             Category = 1
	CategoryExplosives        Category = 2
	CategoryDevices           Category = 3
	CategoryJewelcrafting     Category = 4
	CategoryCloth             Category = 5
	CategoryLeather           Category = 6
	CategoryMetalStone        Category = 7
	CategoryMeat              Category = 8
	CategoryHerb              Category = 9
	CategoryElemental         Category = 10
	CategoryOtherTradeGoods   Category = 11
	CategoryEnchanting        Category = 12
	CategoryNetherMaterial    Category = 13
	CategoryArmorEnchantment  Category = 14
	CategoryWeaponEnchantment Category = 15
)

// CategoryInfo describes one known category.
type CategoryInfo struct {
	ID   Category
	Name string
}

var categoryTable = []CategoryInfo{
	{CategoryCloth, "Cloth"},
	{CategoryMeat, "Meat"},
	{CategoryMetalStone, "Metal & Stone"},
	{CategoryEnchanting, "Enchanting"},
	{CategoryElemental, "Elemental"},
	{CategoryParts, "Parts"},
	{CategoryOtherTradeGoods, "Other Trade Goods"},
	{CategoryHerb, "Herb"},
	{CategoryLeather, "Leather"},
	{CategoryJewelcrafting, "Jewelcrafting"},
	{CategoryExplosives, "Explosives"},
	{CategoryDevices, "Devices"},
	{CategoryNetherMaterial, "Nether Material"},
	{CategoryArmorEnchantment, "Armor Vellum"},
	{CategoryWeaponEnchantment, "Weapon Vellum"},
}

// categorySet is resolved once at init; IsCategory must never scan.
var categorySet = func() map[Category]CategoryInfo {
	m := make(map[Category]CategoryInfo, len(categoryTable))
	for _, c := range categoryTable {
		m[c.ID] = c
	}
	return m
}()

// Categories returns the known categories in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryTable))
	copy(out, categoryTable)
	return out
}

// IsCategory reports whether v is a known category id.
func IsCategory(v uint32) bool {
	_, ok := categorySet[Category(v)]
	return ok
}

// Name returns the display name of the category, or "Reagents" for unknown ids.
func (c Category) Name() string {
	if info, ok := categorySet[c]; ok {
		return info.Name
	}
	return "Reagents"
}

// =============================================================================
// ITEM METADATA - What the engine needs from the host catalog
// =============================================================================

// ItemClass is the host's coarse item classification.
type ItemClass uint8

const (
	ClassGem        ItemClass = 3
	ClassTradeGoods ItemClass = 7
)

// ItemInfo is the catalog metadata the engine consumes. Subclass carries the
// host's raw subclass code; use BankCategory to map an item to its ledger
// category (gems always bank under Jewelcrafting regardless of subclass).
type ItemInfo struct {
	ID            uint32
	Name          string
	Class         ItemClass
	Subclass      uint32
	MaxStack      uint32
	BagFamilyMask uint32
}

// Bankable reports whether the item may be deposited: tradeable stackable
// goods only. Items with a maximum stack size of 1 are not bankable.
func (i ItemInfo) Bankable() bool {
	if i.Class != ClassTradeGoods && i.Class != ClassGem {
		return false
	}
	return i.MaxStack > 1
}

// BankCategory returns the ledger category the item banks under.
func (i ItemInfo) BankCategory() Category {
	if i.Class == ClassGem {
		return CategoryJewelcrafting
	}
	return Category(i.Subclass)
}

// =============================================================================
// LEDGER ROWS AND SUMMARIES
// =============================================================================

// LedgerRow is one persisted balance: unique per (StorageKey, ItemID),
// amount always > 0.
type LedgerRow struct {
	ItemID   uint32
	Category Category
	Amount   uint64
}

// ItemAmount is an (item, amount) pair within one known category.
type ItemAmount struct {
	ItemID uint32
	Amount uint64
}

// CategorySummary is the derived per-category aggregate. It is disposable:
// recomputable at any time from the rows of that category.
type CategorySummary struct {
	Distinct uint32
	Total    uint64
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditAction labels the direction of a balance delta.
type AuditAction string

const (
	AuditDeposit  AuditAction = "DEPOSIT"
	AuditWithdraw AuditAction = "WITHDRAW"
)

// AuditRecord is one append-only balance delta. Records are never mutated;
// only the retention sweep or an operator purge deletes them.
type AuditRecord struct {
	ID        int64
	Timestamp int64 // unix seconds
	Key       StorageKey
	Action    AuditAction
	ItemID    uint32
	Category  Category
	Delta     int64
}

// =============================================================================
// OPERATION RESULTS - Returned to the presentation layer for rendering
// =============================================================================

// ItemQuantity reports one item moved by a deposit or withdrawal.
type ItemQuantity struct {
	ItemID uint32
	Name   string
	Amount uint64
}

// DepositResult reports the outcome of a deposit flow. Deposited is empty when
// the requester held nothing eligible; that is informational, not an error.
type DepositResult struct {
	Deposited []ItemQuantity
}

// Empty reports whether nothing was deposited.
func (r DepositResult) Empty() bool { return len(r.Deposited) == 0 }

// WithdrawResult reports the outcome of a withdrawal flow. Partial fulfillment
// is the expected behavior: an item missing from Withdrawn simply did not fit.
type WithdrawResult struct {
	Withdrawn []ItemQuantity
}

// Empty reports whether nothing was withdrawn.
func (r WithdrawResult) Empty() bool { return len(r.Withdrawn) == 0 }

// PageInfo describes one page of category rows. Page numbers are 1-based for
// display; TotalPages is at least 1 even for an empty category.
type PageInfo struct {
	Page        int
	TotalPages  int
	TotalItems  int
	TotalAmount uint64
}
