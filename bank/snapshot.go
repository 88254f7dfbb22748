/*
snapshot.go - Point-in-time view of a requester's free storage

The snapshot is built fresh for each simulation call and discarded after use.
It never references live host objects; the simulator can consume it without
touching real inventory state.
*/
package bank

// StackSpace is the free capacity remaining in one existing partial stack.
type StackSpace struct {
	Free uint32
}

// InventorySnapshot captures, per item, the partial stacks that can still
// absorb quantity, and the count of empty slots keyed by bag family mask
// (0 = unrestricted).
type InventorySnapshot struct {
	Partial    map[uint32][]StackSpace
	EmptySlots map[uint32]uint32
}

// BuildSnapshot scans the requester's slots in their stable enumeration order.
// Occupied slots holding non-stackable items (max stack 1) contribute nothing:
// they can neither absorb deposits nor be filled further. Items the catalog
// cannot resolve are skipped.
func BuildSnapshot(h Holdings, catalog Catalog) *InventorySnapshot {
	snap := &InventorySnapshot{
		Partial:    make(map[uint32][]StackSpace),
		EmptySlots: make(map[uint32]uint32),
	}
	for _, slot := range h.Slots() {
		if slot.ItemID == 0 {
			snap.EmptySlots[slot.FamilyMask]++
			continue
		}
		info, ok := catalog.Item(slot.ItemID)
		if !ok || info.MaxStack <= 1 {
			continue
		}
		if slot.Count < info.MaxStack {
			snap.Partial[slot.ItemID] = append(snap.Partial[slot.ItemID], StackSpace{Free: info.MaxStack - slot.Count})
		}
	}
	return snap
}

// clone copies the snapshot so a simulation can consume capacity without
// mutating the caller's copy.
func (s *InventorySnapshot) clone() *InventorySnapshot {
	c := &InventorySnapshot{
		Partial:    make(map[uint32][]StackSpace, len(s.Partial)),
		EmptySlots: make(map[uint32]uint32, len(s.EmptySlots)),
	}
	for item, stacks := range s.Partial {
		c.Partial[item] = append([]StackSpace(nil), stacks...)
	}
	for mask, n := range s.EmptySlots {
		c.EmptySlots[mask] = n
	}
	return c
}
