// Package buddy implements the split/coalesce/allocate/free/reserve
// engine that drives a single area. Every exported
// function here assumes the registry-wide lock is already held by the
// caller, exactly as alloc_page.c's split/coalesce/page_memalign_order
// assume the spinlock is held.
package buddy

import (
	"errors"
	"fmt"

	"area"
	"pagestate"
	"pfn"
)

// ErrOOM names the out-of-memory condition. No function in this package
// returns it: MemalignOrder reports that no free block satisfies a
// request by returning ok == false.
var ErrOOM = errors.New("buddy: out of memory")

// ErrReserveConflict is returned when a frame cannot be reserved because
// it is already allocated, already special, or outside the area.
var ErrReserveConflict = errors.New("buddy: frame unavailable for reservation")

// Split removes the free, order-k header block at `header` from its
// freelist and rewrites it as two order-(k-1) blocks, both linked into
// freelists[k-1]. The lower half keeps `header`; the upper half starts at
// header + 2^(k-1). The block must be free, of order k > 0, and wholly
// inside the area.
func Split(a *area.Area, header pfn.PFN) {
	order := a.PageStates.Get(a.Base, header).Order()
	if order == 0 {
		panic("buddy: cannot split an order-0 block")
	}
	if int(order) >= a.NLists() {
		panic("buddy: order exceeds NLISTS")
	}
	if !pfn.AlignedToOrder(header, uint8(order)) {
		panic("buddy: split header misaligned for its order")
	}
	if !a.UsableContainsPFN(header) || !a.UsableContainsPFN(header+(1<<order)-1) {
		panic("buddy: split block escapes the area")
	}

	a.Unlink(order, header)

	newOrder := order - 1
	a.PageStates.SetRun(a.Base, header, 1<<order, pagestate.Free(newOrder))

	upper := header + (1 << newOrder)
	a.LinkIn(newOrder, header)
	a.LinkIn(newOrder, upper)
}

// Coalesce attempts to merge the two adjacent, equal-order free blocks
// headed at p and q (q == p + 2^order). It returns false, leaving both
// blocks untouched, if either extent escapes the area or either header's
// order does not match exactly (not free, wrong size, or allocated).
func Coalesce(a *area.Area, order pagestate.Order, p, q pfn.PFN) bool {
	if q != p+(1<<order) {
		panic("buddy: coalesce candidates are not adjacent")
	}
	if !pfn.AlignedToOrder(p, uint8(order)) || !pfn.AlignedToOrder(q, uint8(order)) {
		panic("buddy: coalesce candidates are misaligned")
	}

	if !a.UsableContainsPFN(p) || !a.UsableContainsPFN(q+(1<<order)-1) {
		return false
	}
	if a.PageStates.Get(a.Base, p) != pagestate.Free(order) ||
		a.PageStates.Get(a.Base, q) != pagestate.Free(order) {
		return false
	}

	a.Unlink(order, p)
	a.Unlink(order, q)

	merged := order + 1
	a.PageStates.SetRun(a.Base, p, 2<<order, pagestate.Free(merged))
	a.LinkIn(merged, p)
	return true
}

// MemalignOrder returns a block satisfying both an alignment and a size
// constraint, each expressed as an order. The effective starting order is
// max(align, size): starting from align alone could yield a block smaller
// than size, and repeated splitting from the smallest non-empty freelist
// at or above that order preserves natural alignment of the header at
// every step.
func MemalignOrder(a *area.Area, alignOrder, sizeOrder pagestate.Order) (pfn.PFN, bool) {
	if int(alignOrder) >= a.NLists() || int(sizeOrder) >= a.NLists() {
		panic(fmt.Sprintf("buddy: order %d/%d out of range [0,%d)", alignOrder, sizeOrder, a.NLists()))
	}

	start := alignOrder
	if sizeOrder > start {
		start = sizeOrder
	}

	order := start
	var header pfn.PFN
	var ok bool
	for ; int(order) < a.NLists(); order++ {
		header, ok = a.FrontOf(order)
		if ok {
			break
		}
	}
	if !ok {
		return 0, false
	}

	for order > sizeOrder {
		Split(a, header)
		order--
	}

	a.Unlink(sizeOrder, header)
	a.PageStates.SetRun(a.Base, header, 1<<sizeOrder, pagestate.Allocated(sizeOrder))
	return header, true
}

// FreeInArea returns the allocated block headed at p to circulation: it
// clears ALLOC on every frame of the block, links the header into its
// order's freelist, then coalesces with adjacent buddies until no further
// merge is possible.
func FreeInArea(a *area.Area, p pfn.PFN) {
	order := a.PageStates.Get(a.Base, p).Order()
	if a.PageStates.Get(a.Base, p) != pagestate.Allocated(order) {
		panic("buddy: free of a pointer with inconsistent metadata")
	}
	if int(order) >= a.NLists() {
		panic("buddy: free of a block with an invalid order")
	}
	if !pfn.AlignedToOrder(p, uint8(order)) {
		panic("buddy: free of a misaligned block header")
	}
	if !a.UsableContainsPFN(p) || !a.UsableContainsPFN(p+(1<<order)-1) {
		panic("buddy: free of a block that escapes its area")
	}

	for i := pfn.PFN(0); i < 1<<order; i++ {
		if a.PageStates.Get(a.Base, p+i) != pagestate.Allocated(order) {
			panic("buddy: free of a block with inconsistent per-frame metadata")
		}
	}
	a.PageStates.SetRun(a.Base, p, 1<<order, pagestate.Free(order))
	a.LinkIn(order, p)

	header := p
	for {
		order = a.PageStates.Get(a.Base, header).Order()
		var buddyPFN pfn.PFN
		if pfn.AlignedToOrder(header, uint8(order+1)) {
			buddyPFN = header + (1 << order)
		} else {
			header = header - (1 << order)
			buddyPFN = header + (1 << order)
		}
		if !Coalesce(a, order, header, buddyPFN) {
			break
		}
	}
}

// ReserveOneInArea withdraws the single frame p from buddy circulation.
// The frame must currently be free (neither ALLOC nor SPECIAL); its
// enclosing block is repeatedly split down to order 0, and the resulting
// single-frame block is marked SPECIAL.
func ReserveOneInArea(a *area.Area, p pfn.PFN) error {
	s := a.PageStates.Get(a.Base, p)
	if s.IsAlloc() || s.IsSpecial() {
		return ErrReserveConflict
	}
	for a.PageStates.Get(a.Base, p) != pagestate.Free(0) {
		order := a.PageStates.Get(a.Base, p).Order()
		header := p.AlignDown(uint8(order))
		Split(a, header)
	}
	a.Unlink(0, p)
	a.PageStates.Set(a.Base, p, pagestate.Special())
	return nil
}

// UnreserveOneInArea restores a SPECIAL frame to circulation: it is
// rewritten as an allocated order-0 block (the transient state an
// observer could only ever see under the registry lock), then freed,
// which clears ALLOC and attempts to coalesce with its buddies.
func UnreserveOneInArea(a *area.Area, p pfn.PFN) {
	if !a.PageStates.Get(a.Base, p).IsSpecial() {
		panic("buddy: unreserve of a non-SPECIAL frame")
	}
	a.PageStates.Set(a.Base, p, pagestate.Allocated(0))
	FreeInArea(a, p)
}
