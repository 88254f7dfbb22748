/*
Package world is an in-memory implementation of the host interfaces the bank
engine consumes (bank.World, bank.Requester, bank.Holdings, bank.Catalog).

PURPOSE:
  Tests and the demo server need a world with connected players, bags that
  obey the real placement rules, and an item catalog - without a game server.
  Bags here follow the same fill rules the engine's simulator models: partial
  stacks of the same item first, then empty slots in specialty bags whose
  family mask matches, then unrestricted slots.

LIVENESS:
  Leave removes a player from the world mid-flow; the engine's re-resolution
  through Find then fails, which is exactly how disconnects surface in
  production.
*/
package world

import (
	"fmt"
	"sync"

	"github.com/thornwood/reagent-bank/bank"
)

// =============================================================================
// WORLD - Connected player registry
// =============================================================================

// World tracks connected players. Safe for concurrent use.
type World struct {
	mu      sync.RWMutex
	players map[bank.RequesterID]*Player
}

// New creates an empty world.
func New() *World {
	return &World{players: make(map[bank.RequesterID]*Player)}
}

// Join connects a player. Rejoining under the same id replaces the old session.
func (w *World) Join(p *Player) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players[p.id] = p
}

// Leave disconnects the player with the given id.
func (w *World) Leave(id bank.RequesterID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.players, id)
}

// Find resolves a connected player. ok=false means disconnected.
func (w *World) Find(id bank.RequesterID) (bank.Requester, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// =============================================================================
// PLAYER - One connected session
// =============================================================================

// Player is one connected session with its bags.
type Player struct {
	id          bank.RequesterID
	accountID   uint32
	characterID uint32
	bags        *Bags
}

// NewPlayer creates a connected player owning the given bags.
func NewPlayer(id bank.RequesterID, accountID, characterID uint32, bags *Bags) *Player {
	return &Player{id: id, accountID: accountID, characterID: characterID, bags: bags}
}

func (p *Player) ID() bank.RequesterID    { return p.id }
func (p *Player) AccountID() uint32       { return p.accountID }
func (p *Player) CharacterID() uint32     { return p.characterID }
func (p *Player) Holdings() bank.Holdings { return p.bags }

// =============================================================================
// BAGS - Real holdings with placement rules
// =============================================================================

// BagLayout describes one bag: its slot count and, for specialty bags, the
// family mask restricting what the bag accepts. Mask 0 accepts anything.
type BagLayout struct {
	Slots      uint8
	FamilyMask uint32
}

// Bags implements bank.Holdings over a fixed bag layout. Safe for concurrent
// use; Add is all-or-nothing.
type Bags struct {
	mu      sync.Mutex
	catalog bank.Catalog
	slots   []bank.Slot
}

// NewBags creates empty bags with the given layout, resolving stack sizes and
// family masks through catalog.
func NewBags(catalog bank.Catalog, layout ...BagLayout) *Bags {
	b := &Bags{catalog: catalog}
	for bagIdx, bag := range layout {
		for slotIdx := uint8(0); slotIdx < bag.Slots; slotIdx++ {
			b.slots = append(b.slots, bank.Slot{
				Ref:        bank.SlotRef{Bag: uint8(bagIdx), Slot: slotIdx},
				FamilyMask: bag.FamilyMask,
			})
		}
	}
	return b
}

// Slots returns a copy of every slot in stable order.
func (b *Bags) Slots() []bank.Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bank.Slot, len(b.slots))
	copy(out, b.slots)
	return out
}

// Remove destroys the stack at ref.
func (b *Bags) Remove(ref bank.SlotRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.slots {
		if b.slots[i].Ref != ref {
			continue
		}
		if b.slots[i].ItemID == 0 {
			return fmt.Errorf("slot %d/%d is empty", ref.Bag, ref.Slot)
		}
		b.slots[i].ItemID = 0
		b.slots[i].Count = 0
		return nil
	}
	return fmt.Errorf("no slot %d/%d", ref.Bag, ref.Slot)
}

// placement is one planned write against a slot index.
type placement struct {
	idx   int
	count uint32
}

// Add stores count of itemID: partial stacks first, then empty specialty
// slots whose mask matches, then unrestricted slots. All-or-nothing: when the
// full count does not fit, nothing is mutated and ErrCapacityExceeded is
// returned.
func (b *Bags) Add(itemID uint32, count uint64) error {
	info, ok := b.catalog.Item(itemID)
	if !ok {
		return fmt.Errorf("unknown item %d", itemID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := count
	var plan []placement

	// Top up partial stacks of the same item.
	for i := range b.slots {
		if remaining == 0 {
			break
		}
		s := &b.slots[i]
		if s.ItemID != itemID || s.Count >= info.MaxStack {
			continue
		}
		free := uint64(info.MaxStack - s.Count)
		take := free
		if take > remaining {
			take = remaining
		}
		plan = append(plan, placement{idx: i, count: uint32(take)})
		remaining -= take
	}

	// Empty slots: specialty bags before unrestricted ones.
	for _, wantSpecialty := range []bool{true, false} {
		for i := range b.slots {
			if remaining == 0 {
				break
			}
			s := &b.slots[i]
			if s.ItemID != 0 {
				continue
			}
			if wantSpecialty {
				if s.FamilyMask == 0 || s.FamilyMask&info.BagFamilyMask == 0 {
					continue
				}
			} else if s.FamilyMask != 0 {
				continue
			}
			take := uint64(info.MaxStack)
			if take > remaining {
				take = remaining
			}
			plan = append(plan, placement{idx: i, count: uint32(take)})
			remaining -= take
		}
	}

	if remaining > 0 {
		return bank.ErrCapacityExceeded
	}
	for _, p := range plan {
		s := &b.slots[p.idx]
		s.ItemID = itemID
		s.Count += p.count
	}
	return nil
}

// TotalOf sums every stack of itemID across all slots.
func (b *Bags) TotalOf(itemID uint32) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total uint64
	for _, s := range b.slots {
		if s.ItemID == itemID {
			total += uint64(s.Count)
		}
	}
	return total
}

// =============================================================================
// CATALOG - Static item metadata
// =============================================================================

// Catalog is a static bank.Catalog backed by a map.
type Catalog struct {
	items map[uint32]bank.ItemInfo
}

// NewCatalog creates a catalog containing the given items.
func NewCatalog(items ...bank.ItemInfo) *Catalog {
	c := &Catalog{items: make(map[uint32]bank.ItemInfo, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// Item resolves one item's metadata.
func (c *Catalog) Item(id uint32) (bank.ItemInfo, bool) {
	info, ok := c.items[id]
	return info, ok
}

var (
	_ bank.World     = (*World)(nil)
	_ bank.Requester = (*Player)(nil)
	_ bank.Holdings  = (*Bags)(nil)
	_ bank.Catalog   = (*Catalog)(nil)
)
