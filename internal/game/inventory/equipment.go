package inventory

import (
	"sort"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/mana"
)

// Slot identifies an equipment slot.
type Slot string

const (
	// SlotHead is the circlet or crown slot.
	SlotHead Slot = "head"
	// SlotNeck is the amulet slot.
	SlotNeck Slot = "neck"
	// SlotTorso is the body slot.
	SlotTorso Slot = "torso"
	// SlotLeftRing and SlotRightRing are the ring slots.
	SlotLeftRing  Slot = "left_ring"
	SlotRightRing Slot = "right_ring"
	// SlotFocus is the held focus slot (staff, orb, blade).
	SlotFocus Slot = "focus"
)

var validSlots = map[Slot]string{
	SlotHead:      "Head",
	SlotNeck:      "Neck",
	SlotTorso:     "Torso",
	SlotLeftRing:  "Left Hand Ring",
	SlotRightRing: "Right Hand Ring",
	SlotFocus:     "Focus",
}

// ValidSlot reports whether s names an equipment slot.
func ValidSlot(s Slot) bool {
	_, ok := validSlots[s]
	return ok
}

// Slots returns every slot in display order.
func Slots() []Slot {
	return []Slot{SlotHead, SlotNeck, SlotTorso, SlotLeftRing, SlotRightRing, SlotFocus}
}

// SlotDisplayName returns the human-readable label for a slot, or the slot itself if unknown.
func SlotDisplayName(s Slot) string {
	if label, ok := validSlots[s]; ok {
		return label
	}
	return string(s)
}

// Equipment is the set of items a character wears, one per slot.
//
// It is not safe for concurrent use; the owning character's lock serialises access.
type Equipment struct {
	slots map[Slot]*ItemDef
}

// NewEquipment returns an empty Equipment.
func NewEquipment() *Equipment {
	return &Equipment{slots: make(map[Slot]*ItemDef)}
}

// Equip places d in its slot and returns the item it displaced, if any.
//
// Precondition: d must be non-nil and valid.
func (e *Equipment) Equip(d *ItemDef) *ItemDef {
	prev := e.slots[d.Slot]
	e.slots[d.Slot] = d
	return prev
}

// Unequip empties slot and returns what was there, or nil.
func (e *Equipment) Unequip(slot Slot) *ItemDef {
	prev := e.slots[slot]
	delete(e.slots, slot)
	return prev
}

// Equipped returns the item in slot, if any.
func (e *Equipment) Equipped(slot Slot) (*ItemDef, bool) {
	d, ok := e.slots[slot]
	return d, ok
}

// Items returns the equipped items sorted by slot.
func (e *Equipment) Items() []*ItemDef {
	out := make([]*ItemDef, 0, len(e.slots))
	for _, d := range e.slots {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// ManaReduction combines every equipped item's cost reduction.
// Flat amounts are summed with saturation; percentages are summed and capped at 1.
func (e *Equipment) ManaReduction() mana.Reduction {
	var flat uint64
	var pct float64
	for _, d := range e.slots {
		flat += uint64(d.ManaFlat)
		pct += float64(d.ManaPercent)
	}
	if flat > uint64(^uint32(0)) {
		flat = uint64(^uint32(0))
	}
	if pct > 1 {
		pct = 1
	}
	return mana.Reduction{Flat: uint32(flat), Percent: float32(pct)}
}
