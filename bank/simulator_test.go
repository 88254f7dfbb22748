package bank_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thornwood/reagent-bank/bank"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	herbMask = uint32(0x200)

	itemCloth = uint32(2589)
	itemHerb  = uint32(765)
	itemOre   = uint32(2770)
)

// stackSize resolves every test item to a stack size of 20.
func stackSize(uint32) uint32 { return 20 }

// noFamily resolves every test item to the unrestricted family.
func noFamily(uint32) uint32 { return 0 }

func snapshot(partial map[uint32][]bank.StackSpace, empty map[uint32]uint32) *bank.InventorySnapshot {
	if partial == nil {
		partial = map[uint32][]bank.StackSpace{}
	}
	if empty == nil {
		empty = map[uint32]uint32{}
	}
	return &bank.InventorySnapshot{Partial: partial, EmptySlots: empty}
}

// =============================================================================
// GRANT COMPUTATION
// =============================================================================

func TestSimulate_PartialStacksBeforeEmptySlots(t *testing.T) {
	// GIVEN: Two partial stacks with 5 and 3 free, plus one empty slot
	// WHEN: Requesting 12 of the item
	// THEN: 5+3 come from the partial stacks and 4 from a new stack

	snap := snapshot(
		map[uint32][]bank.StackSpace{itemCloth: {{Free: 5}, {Free: 3}}},
		map[uint32]uint32{0: 1},
	)

	granted := bank.Simulate(snap, []bank.WithdrawRequest{{ItemID: itemCloth, Amount: 12}}, stackSize, noFamily)

	assert.Equal(t, uint64(12), granted[itemCloth])
}

func TestSimulate_NeverGrantsBeyondCapacity(t *testing.T) {
	// GIVEN: 5 free in one partial stack and one empty slot (20 per stack)
	// WHEN: Requesting 100
	// THEN: Grant caps at 25; the shortfall is simply not granted

	snap := snapshot(
		map[uint32][]bank.StackSpace{itemCloth: {{Free: 5}}},
		map[uint32]uint32{0: 1},
	)

	granted := bank.Simulate(snap, []bank.WithdrawRequest{{ItemID: itemCloth, Amount: 100}}, stackSize, noFamily)

	assert.Equal(t, uint64(25), granted[itemCloth])
}

func TestSimulate_ZeroCapacity(t *testing.T) {
	// GIVEN: No partial stacks and no empty slots
	// WHEN: Requesting anything
	// THEN: Nothing is granted and no error occurs

	granted := bank.Simulate(snapshot(nil, nil), []bank.WithdrawRequest{{ItemID: itemCloth, Amount: 40}}, stackSize, noFamily)

	assert.Equal(t, uint64(0), granted[itemCloth])
}

func TestSimulate_SpecialtySlotsPreferred(t *testing.T) {
	// GIVEN: One herb-only empty slot and one unrestricted empty slot
	// WHEN: An herb then an ore each request one full stack
	// THEN: The herb takes the specialty slot, leaving the generic one for the
	//       ore; both get a full stack

	snap := snapshot(nil, map[uint32]uint32{herbMask: 1, 0: 1})
	family := func(id uint32) uint32 {
		if id == itemHerb {
			return herbMask
		}
		return 0
	}

	granted := bank.Simulate(snap, []bank.WithdrawRequest{
		{ItemID: itemHerb, Amount: 20},
		{ItemID: itemOre, Amount: 20},
	}, stackSize, family)

	assert.Equal(t, uint64(20), granted[itemHerb])
	assert.Equal(t, uint64(20), granted[itemOre])
}

func TestSimulate_IncompatibleSpecialtySlotUnusable(t *testing.T) {
	// GIVEN: Only an herb-only empty slot
	// WHEN: An ore requests a stack
	// THEN: Nothing is granted; the specialty slot cannot hold it

	snap := snapshot(nil, map[uint32]uint32{herbMask: 1})

	granted := bank.Simulate(snap, []bank.WithdrawRequest{{ItemID: itemOre, Amount: 20}}, stackSize, noFamily)

	assert.Equal(t, uint64(0), granted[itemOre])
}

func TestSimulate_EarlierRequestsHavePriority(t *testing.T) {
	// GIVEN: A single empty slot
	// WHEN: Two items both request a full stack
	// THEN: The first request wins the slot; the second gets nothing

	snap := snapshot(nil, map[uint32]uint32{0: 1})

	granted := bank.Simulate(snap, []bank.WithdrawRequest{
		{ItemID: itemCloth, Amount: 20},
		{ItemID: itemOre, Amount: 20},
	}, stackSize, noFamily)

	assert.Equal(t, uint64(20), granted[itemCloth])
	assert.Equal(t, uint64(0), granted[itemOre])
}

func TestSimulate_DoesNotMutateInput(t *testing.T) {
	// GIVEN: A snapshot
	// WHEN: Simulating the same request twice against it
	// THEN: Both runs produce identical grants; the dry run left no trace

	snap := snapshot(
		map[uint32][]bank.StackSpace{itemCloth: {{Free: 7}}},
		map[uint32]uint32{0: 2},
	)
	req := []bank.WithdrawRequest{{ItemID: itemCloth, Amount: 50}}

	first := bank.Simulate(snap, req, stackSize, noFamily)
	second := bank.Simulate(snap, req, stackSize, noFamily)

	assert.Equal(t, first, second)
	assert.Equal(t, uint64(47), first[itemCloth])
}

func TestSimulate_UnknownStackSizeSkipsItem(t *testing.T) {
	// GIVEN: Metadata resolution fails for the item (stack size 0)
	// WHEN: Simulating a request for it
	// THEN: The item is skipped entirely

	snap := snapshot(nil, map[uint32]uint32{0: 5})

	granted := bank.Simulate(snap, []bank.WithdrawRequest{{ItemID: 99999, Amount: 20}},
		func(uint32) uint32 { return 0 }, noFamily)

	assert.Empty(t, granted)
}
