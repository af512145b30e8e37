// Package palloc is the public surface of the buddy page allocator: it
// owns a global, lockable registry of memory areas, plus the
// install-once {memalign, free} dispatch pair a kernel's allocator-ops
// table would install. It plays the role biscuit's mem.Physmem package
// variable and its exported Refpg_new/Refdown methods play for that
// kernel: one process-wide singleton, guarded internally, used by value
// through top-level functions.
package palloc

import (
	"fmt"
	"math/bits"

	"archcfg"
	"pagestate"
	"pfn"
	"registry"
)

// Ops is the dispatch pair a caller installs once allocation is ready to
// serve the rest of the kernel, mirroring alloc_page.c's
// `struct alloc_ops page_alloc_ops`.
type Ops struct {
	Memalign func(align, size uint64) uintptr
	Free     func(ptr uintptr)
}

var (
	reg          *registry.Registry
	installedOps *Ops
)

// Configure installs the global registry. It must be called before any
// other function in this package; real deployments call it once at boot
// with the architecture's page geometry, physical map, and area cutoffs.
func Configure(cfg archcfg.Config, pm pfn.PhysMap, cutoffs []archcfg.Cutoff) {
	reg = registry.New(cfg, pm, cutoffs)
}

func mustConfigured() {
	if reg == nil {
		panic("palloc: Configure was never called")
	}
}

// Initialized reports whether at least one area has been set up.
func Initialized() bool {
	mustConfigured()
	return reg.Initialized()
}

// InitArea carves out area number n (or archcfg.Any to auto-route by
// architecture cutoff) over [basePFN, topPFN).
func InitArea(n int, basePFN, topPFN pfn.PFN) {
	mustConfigured()
	reg.InitArea(n, basePFN, topPFN)
	fmt.Printf("palloc: area %d ready [%#x, %#x)\n", n, basePFN, topPFN)
}

// OpsEnable installs the dispatch pair once at least one area exists. It
// panics if called before any InitArea call.
func OpsEnable() {
	mustConfigured()
	if !reg.Initialized() {
		panic("palloc: OpsEnable called before any area was initialized")
	}
	installedOps = &Ops{
		Memalign: func(align, size uint64) uintptr {
			p, _ := MemalignPagesArea(registry.AllAreas, align, size)
			return p
		},
		Free: FreePages,
	}
	fmt.Println("palloc: allocator ops enabled")
}

// AllocPagesArea allocates 2^order naturally aligned, physically
// contiguous pages from any area selected by mask.
func AllocPagesArea(mask registry.Mask, order pagestate.Order) (uintptr, bool) {
	mustConfigured()
	return reg.MemalignOrderArea(mask, order, order)
}

// AllocPages allocates 2^order pages from any initialized area. It is
// sugar over AllocPagesArea(registry.AllAreas, order), matching
// alloc_page.c's single-area-implied `alloc_pages` convenience wrapper.
func AllocPages(order pagestate.Order) (uintptr, bool) {
	return AllocPagesArea(registry.AllAreas, order)
}

// MemalignPagesArea converts byte sizes to orders (ceiling log2 of the
// page count each requires) and allocates a block from any area selected
// by mask satisfying both constraints.
func MemalignPagesArea(mask registry.Mask, alignBytes, sizeBytes uint64) (uintptr, bool) {
	mustConfigured()
	pageSize := uint64(reg.PageSize())
	alignOrder := orderForBytes(alignBytes, pageSize)
	sizeOrder := orderForBytes(sizeBytes, pageSize)
	return reg.MemalignOrderArea(mask, alignOrder, sizeOrder)
}

// orderForBytes returns the ceiling-log2 page-count order needed to cover
// n bytes, i.e. order(ceil(n/pageSize)).
func orderForBytes(n, pageSize uint64) pagestate.Order {
	pages := (n + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	return pagestate.Order(bits.Len64(pages - 1))
}

// FreePages releases a previously returned pointer. A nil pointer
// (ptr == 0) is a no-op.
func FreePages(ptr uintptr) {
	mustConfigured()
	reg.FreePages(ptr)
}

// ReservePages withdraws n consecutive frames starting at physAddr from
// buddy circulation, all-or-nothing.
func ReservePages(physAddr uintptr, n int) error {
	mustConfigured()
	return reg.ReservePages(physAddr, n)
}

// UnreservePages restores n consecutive SPECIAL frames starting at
// physAddr to circulation.
func UnreservePages(physAddr uintptr, n int) {
	mustConfigured()
	reg.UnreservePages(physAddr, n)
}
