// Package area implements a single memory area: its usable PFN range, its
// self-carved metadata table, and the per-order freelists that seed it at
// initialization.
package area

import (
	"fmt"

	"freelist"
	"pagestate"
	"pfn"
)

// Area is a contiguous PFN range with its own metadata table and
// freelists, representing one memory class (low, normal, high, ...).
type Area struct {
	// Number is this area's slot in the owning registry.
	Number int
	// MetaBase is the first PFN of the area, where the metadata table
	// itself lives.
	MetaBase pfn.PFN
	// Base is the first usable PFN, immediately after the metadata
	// table.
	Base pfn.PFN
	// Top is the first PFN past the usable range.
	Top pfn.PFN

	// PageStates holds one byte per usable frame, indexed by offset
	// from Base.
	PageStates pagestate.Table

	// links backs the intrusive freelists: one node per usable frame,
	// indexed the same way as PageStates.
	links []freelist.Node

	// Freelists holds one doubly-linked, Nil-terminated list per block
	// order.
	Freelists []freelist.List
}

// NLists reports how many order-indexed freelists this area carries.
func (a *Area) NLists() int {
	return len(a.Freelists)
}

// UsableContainsPFN reports whether p falls in [Base, Top), the area's
// usable range.
func (a *Area) UsableContainsPFN(p pfn.PFN) bool {
	return p >= a.Base && p < a.Top
}

// ContainsPFN reports whether p falls anywhere in the area, including its
// metadata table.
func (a *Area) ContainsPFN(p pfn.PFN) bool {
	return p >= a.MetaBase && p < a.Top
}

// linkIndex returns the per-area link-table offset for frame p.
func (a *Area) linkIndex(p pfn.PFN) int32 {
	return int32(p - a.Base)
}

// FrontOf returns the PFN currently at the head of the order-k freelist,
// and whether that list is non-empty.
func (a *Area) FrontOf(order pagestate.Order) (pfn.PFN, bool) {
	l := &a.Freelists[order]
	if l.Empty() {
		return 0, false
	}
	return a.Base + pfn.PFN(l.Front()), true
}

// LinkIn adds header's frame to the order-k freelist.
func (a *Area) LinkIn(order pagestate.Order, header pfn.PFN) {
	freelist.Add(&a.Freelists[order], a.links, a.linkIndex(header))
}

// Unlink removes header's frame from the order-k freelist.
func (a *Area) Unlink(order pagestate.Order, header pfn.PFN) {
	freelist.Remove(&a.Freelists[order], a.links, a.linkIndex(header))
}

// New carves a fresh area out of [startPFN, topPFN): it computes the
// metadata table size self-consistently (the table must be able to
// describe every byte of memory that follows it), then greedily seeds
// maximal power-of-two free blocks across the remaining usable range.
//
// New panics on any precondition violation for a single area's shape: a
// degenerate or over-large range. Overlap checks against sibling areas
// are the registry's responsibility, since only the registry can see
// every area at once.
func New(number int, startPFN, topPFN pfn.PFN, pageSize uint, nlists int) *Area {
	if topPFN <= startPFN {
		panic("area: top_pfn must be greater than start_pfn")
	}
	if topPFN-startPFN <= 4 {
		panic("area: range must contain more than 4 frames")
	}
	if uint64(topPFN) >= uint64(1)<<uint(nlists) {
		panic(fmt.Sprintf("area: top_pfn %d exceeds addressable range 2^%d", topPFN, nlists))
	}

	// table_size = ceil((top-start) / (PAGE_SIZE+1)), rearranged as
	// integer division to avoid an intermediate float, exactly as
	// the C original derives it.
	npagesRange := uint64(topPFN - startPFN)
	tableSize := pfn.PFN((npagesRange + uint64(pageSize)) / (uint64(pageSize) + 1))

	a := &Area{
		Number:     number,
		MetaBase:   startPFN,
		Base:       startPFN + tableSize,
		Top:        topPFN,
		PageStates: make(pagestate.Table, topPFN-(startPFN+tableSize)),
		links:      make([]freelist.Node, topPFN-(startPFN+tableSize)),
		Freelists:  make([]freelist.List, nlists),
	}

	npages := uint64(a.Top - a.Base)
	if uint64(tableSize)*uint64(pageSize) < npages {
		panic("area: metadata table cannot describe the usable range")
	}

	for i := range a.Freelists {
		a.Freelists[i].Init()
	}

	seed(a, nlists)
	return a
}

// seed walks [Base, Top) assigning each frame to the unique decomposition
// into maximal, alignment-respecting power-of-two blocks, linking each
// block's header into its order's freelist.
func seed(a *Area, nlists int) {
	var order pagestate.Order
	for i := a.Base; i < a.Top; i += pfn.PFN(1) << order {
		for i+pfn.PFN(1)<<(order+1) <= a.Top && pfn.AlignedToOrder(i, uint8(order+1)) {
			order++
		}
		for i+pfn.PFN(1)<<order > a.Top {
			if order == 0 {
				panic("area: seeding could not fit order-0 block")
			}
			order--
		}
		if int(order) >= nlists {
			panic("area: seeded order exceeds NLISTS")
		}
		a.PageStates.SetRun(a.Base, i, 1<<order, pagestate.Free(order))
		a.LinkIn(order, i)
	}
}
