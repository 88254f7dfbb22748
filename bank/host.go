/*
host.go - Interfaces consumed from the game host

PURPOSE:
  The engine never touches the host's player, inventory, or item-catalog
  implementations directly. It consumes these narrow interfaces; the host (or
  the in-memory world used by tests and the demo server) provides them.

LIVENESS:
  Persistence I/O is asynchronous from the host's point of view: between
  issuing a store call and acting on its result, the requester may disconnect.
  The only cancellation mechanism is re-resolving the requester through World
  after every store call and aborting silently when it is gone. Real-storage
  mutation must only happen while the requester is confirmed live.
*/
package bank

// World resolves connected requesters. A failed lookup is the liveness signal:
// the requester disconnected and the flow must stop mutating anything.
type World interface {
	Find(id RequesterID) (Requester, bool)
}

// Requester is one connected player session.
type Requester interface {
	ID() RequesterID
	AccountID() uint32
	CharacterID() uint32
	Holdings() Holdings
}

// SlotRef addresses one storage slot in the requester's real holdings.
type SlotRef struct {
	Bag  uint8
	Slot uint8
}

// Slot is the observed state of one storage slot. ItemID is 0 when the slot
// is empty. FamilyMask is the containing bag's restriction tag; 0 means the
// slot accepts anything.
type Slot struct {
	Ref        SlotRef
	FamilyMask uint32
	ItemID     uint32
	Count      uint32
}

// Holdings is the requester's live real-world storage.
type Holdings interface {
	// Slots enumerates every slot, occupied and empty, in a stable order.
	Slots() []Slot

	// Remove destroys the stack at ref.
	Remove(ref SlotRef) error

	// Add stores count of itemID, splitting across stacks and slots under the
	// same rules the simulator models. It is all-or-nothing: when the full
	// count cannot fit it returns ErrCapacityExceeded and mutates nothing.
	Add(itemID uint32, count uint64) error
}

// Catalog resolves item metadata. Lookups are read-only and cacheable; a
// missing item is reported via ok=false, never a partial ItemInfo.
type Catalog interface {
	Item(id uint32) (ItemInfo, bool)
}
