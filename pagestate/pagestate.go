// Package pagestate encodes the per-frame metadata byte of the buddy
// allocator: the current block order plus the ALLOC and SPECIAL flags, and
// the table that stores one such byte per usable frame of an area.
package pagestate

import "pfn"

// Order is a block's power-of-two size class: an order-k block covers
// 2^k contiguous, naturally aligned frames.
type Order uint8

// State is the one-byte metadata carried by every frame of an area.
// Bits 0-5 hold the order, bit 6 is ALLOC, bit 7 is SPECIAL.
type State uint8

const (
	OrderMask   State = 0x3F
	AllocMask   State = 0x40
	SpecialMask State = 0x80
)

// Order extracts the block order from s. For a SPECIAL frame this value
// is meaningless and must not be relied upon.
func (s State) Order() Order {
	return Order(s & OrderMask)
}

// IsAlloc reports whether s carries the ALLOC flag.
func (s State) IsAlloc() bool {
	return s&AllocMask != 0
}

// IsSpecial reports whether s carries the SPECIAL flag.
func (s State) IsSpecial() bool {
	return s&SpecialMask != 0
}

// Free returns the state byte for a free block header/member of the
// given order.
func Free(order Order) State {
	return State(order)
}

// Allocated returns the state byte for an allocated block header/member
// of the given order.
func Allocated(order Order) State {
	return State(order) | AllocMask
}

// Special returns the state byte for a reserved, order-0 frame.
func Special() State {
	return SpecialMask
}

// Table is the per-area metadata byte array, one entry per usable frame,
// indexed by offset from the area's base PFN.
type Table []State

// Index returns the table offset for frame p in an area with the given
// base. It panics if p precedes base, mirroring the teacher's
// out-of-bounds-panics idiom (util.Readn/Writen).
func (t Table) Index(base, p pfn.PFN) int {
	if p < base {
		panic("pagestate: pfn precedes area base")
	}
	return int(p - base)
}

// Get returns the state of frame p relative to base.
func (t Table) Get(base, p pfn.PFN) State {
	return t[t.Index(base, p)]
}

// Set writes the state of frame p relative to base.
func (t Table) Set(base, p pfn.PFN, s State) {
	t[t.Index(base, p)] = s
}

// SetRun writes s to the `count` consecutive frames starting at p
// (relative to base).
func (t Table) SetRun(base, p pfn.PFN, count int, s State) {
	i := t.Index(base, p)
	for k := 0; k < count; k++ {
		t[i+k] = s
	}
}
