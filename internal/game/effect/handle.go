package effect

import (
	"fmt"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
)

// Handle identifies one active effect: slot index plus generation.
// A stale handle (slot reused or released) is rejected, never aliased.
// The zero Handle is invalid.
type Handle struct {
	index      uint32
	generation uint32
}

// IsValid reports whether h was ever issued. A valid handle may be stale.
func (h Handle) IsValid() bool {
	return h.generation != 0
}

// ID packs h into a single integer for replication and storage.
func (h Handle) ID() uint64 {
	return uint64(h.generation)<<32 | uint64(h.index)
}

// HandleFromID unpacks an ID produced by Handle.ID.
func HandleFromID(id uint64) Handle {
	return Handle{index: uint32(id), generation: uint32(id >> 32)}
}

// OwnerID is the aggregator contribution owner key for h.
func (h Handle) OwnerID() attribute.OwnerID {
	return attribute.OwnerID(h.ID())
}

func (h Handle) String() string {
	return fmt.Sprintf("ge:%d/%d", h.index, h.generation)
}

type slot struct {
	generation uint32
	effect     *ActiveEffect
}

// arena stores active effects with generation-checked slots.
type arena struct {
	slots []slot
	free  []uint32
}

func (a *arena) insert(ae *ActiveEffect) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	s := &a.slots[idx]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.effect = ae
	return Handle{index: idx, generation: s.generation}
}

func (a *arena) get(h Handle) *ActiveEffect {
	if !h.IsValid() || int(h.index) >= len(a.slots) {
		return nil
	}
	s := a.slots[h.index]
	if s.generation != h.generation {
		return nil
	}
	return s.effect
}

func (a *arena) release(h Handle) bool {
	if a.get(h) == nil {
		return false
	}
	a.slots[h.index].effect = nil
	a.free = append(a.free, h.index)
	return true
}
