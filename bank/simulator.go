/*
simulator.go - Dry-run capacity simulation for withdrawals

PURPOSE:
  Given a snapshot of the requester's free storage and a batch of requested
  quantities, decide how much of each item can be granted without exceeding
  available space. The result is a hint to the orchestrator about how much can
  safely be created in real storage; the simulation itself performs no I/O and
  mutates no real inventory state.

ALGORITHM (per request, in request order - earlier requests have priority):
  1. Fill the item's existing partial stacks first, consuming free capacity.
     A stack whose free capacity reaches 0 is out of play for later requests.
  2. Spend empty slots for the remainder. A slot with a non-zero family mask
     compatible with the item is preferred over an unrestricted slot, keeping
     generic space available for items that have nowhere else to go. Each slot
     spent creates one new stack of min(maxStack, remaining).
  3. Stop when the request is satisfied or no eligible slot remains. An
     unfulfilled remainder is simply not granted; partial fulfillment is the
     defined outcome, not an error.

DETERMINISM:
  The same snapshot and request order produce the same grants on every call.
  Family masks are visited in ascending numeric order, never map order, and
  the input snapshot is cloned, so repeated calls with unmutated inputs are
  identical.
*/
package bank

import "sort"

// WithdrawRequest is one (item, requested quantity) pair.
type WithdrawRequest struct {
	ItemID uint32
	Amount uint64
}

// Simulate computes the grantable quantity per item. stackSizeOf and
// familyMaskOf resolve item metadata; an item whose stack size resolves to 0
// is skipped entirely.
func Simulate(snap *InventorySnapshot, requests []WithdrawRequest, stackSizeOf func(uint32) uint32, familyMaskOf func(uint32) uint32) map[uint32]uint64 {
	work := snap.clone()
	granted := make(map[uint32]uint64, len(requests))

	// Stable visiting order for specialty slot pools.
	masks := make([]uint32, 0, len(work.EmptySlots))
	for mask := range work.EmptySlots {
		if mask != 0 {
			masks = append(masks, mask)
		}
	}
	sort.Slice(masks, func(i, j int) bool { return masks[i] < masks[j] })

	for _, req := range requests {
		maxStack := stackSizeOf(req.ItemID)
		if maxStack == 0 {
			continue
		}
		remaining := req.Amount

		// Step 1: existing partial stacks.
		stacks := work.Partial[req.ItemID]
		for i := range stacks {
			if remaining == 0 {
				break
			}
			use := uint64(stacks[i].Free)
			if use > remaining {
				use = remaining
			}
			stacks[i].Free -= uint32(use)
			remaining -= use
			granted[req.ItemID] += use
		}
		live := stacks[:0]
		for _, st := range stacks {
			if st.Free > 0 {
				live = append(live, st)
			}
		}
		work.Partial[req.ItemID] = live

		// Step 2: empty slots, specialty before generic.
		family := familyMaskOf(req.ItemID)
		for remaining > 0 {
			mask, ok := pickSlot(work.EmptySlots, masks, family)
			if !ok {
				break
			}
			create := uint64(maxStack)
			if create > remaining {
				create = remaining
			}
			remaining -= create
			granted[req.ItemID] += create
			work.EmptySlots[mask]--
		}
	}
	return granted
}

// pickSlot chooses the slot pool for one new stack: the first compatible
// specialty pool with capacity, else the unrestricted pool.
func pickSlot(empty map[uint32]uint32, masks []uint32, family uint32) (uint32, bool) {
	for _, mask := range masks {
		if empty[mask] == 0 {
			continue
		}
		if family&mask != 0 {
			return mask, true
		}
	}
	if empty[0] > 0 {
		return 0, true
	}
	return 0, false
}
