// Package registry implements the area registry: a fixed table of areas
// guarded by a single mutex, area lookup by PFN, area selection on
// allocation, and the auto-routing initializer that splits a raw PFN
// range by architecture cutoffs.
package registry

import (
	"fmt"
	"sync"

	"archcfg"
	"area"
	"buddy"
	"pagestate"
	"pfn"
)

// Mask is a set of acceptable area numbers encoded as a bitmask, one bit
// per slot.
type Mask uint32

// AllAreas selects every initialized area.
const AllAreas Mask = ^Mask(0)

// MaskOf returns the one-bit mask selecting area number n.
func MaskOf(n int) Mask {
	return Mask(1) << uint(n)
}

// Registry owns every area and the single lock that protects all of
// them, mirroring biscuit's mem.Physmem_t: one embedded sync.Mutex
// guarding the whole allocator's mutable state.
type Registry struct {
	mu sync.Mutex

	cfg       archcfg.Config
	pm        pfn.PhysMap
	nlists    int
	cutoffs   []archcfg.Cutoff
	areas     [archcfg.MaxAreas]*area.Area
	areasMask uint8
}

// New creates an empty registry for the given geometry and physical map.
// cutoffs, when non-nil, must be in descending PFN order (High, Normal,
// Low, Lowest) and is consulted by InitArea when n == archcfg.Any.
func New(cfg archcfg.Config, pm pfn.PhysMap, cutoffs []archcfg.Cutoff) *Registry {
	return &Registry{cfg: cfg, pm: pm, nlists: cfg.NLists(), cutoffs: cutoffs}
}

// PageSize returns the configured page size in bytes.
func (r *Registry) PageSize() uint {
	return r.cfg.PageSize
}

// Initialized reports whether at least one area has been set up.
func (r *Registry) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.areasMask != 0
}

// InitArea carves out area number n (or auto-routes when n == archcfg.Any)
// over [basePFN, topPFN). It panics on any of the fatal precondition
// violations for area initialization.
func (r *Registry) InitArea(n int, basePFN, topPFN pfn.PFN) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n != archcfg.Any {
		r.initOne(n, basePFN, topPFN)
		return
	}
	r.initAuto(basePFN, topPFN)
}

// initAuto splits [base, top) by descending architecture cutoffs into
// slices assigned to the enumerated area classes, exactly as
// alloc_page.c's __page_alloc_init_area does for AREA_ANY_NUMBER: a tier
// with nothing left above its cutoff is skipped, and the tier that
// reaches down to base consumes the rest of the range and terminates the
// walk (top becomes 0, which every later cutoff's "top <= cutoff" check
// then skips).
func (r *Registry) initAuto(basePFN, topPFN pfn.PFN) {
	top := topPFN
	for _, c := range r.cutoffs {
		if top <= c.PFN {
			continue
		}
		if basePFN >= c.PFN {
			r.initOne(c.AreaNumber, basePFN, top)
			top = 0
			continue
		}
		r.initOne(c.AreaNumber, c.PFN, top)
		top = c.PFN
	}
}

func (r *Registry) initOne(n int, startPFN, topPFN pfn.PFN) {
	if n < 0 || n >= archcfg.MaxAreas {
		panic(fmt.Sprintf("registry: area number %d out of range", n))
	}
	if r.areasMask&(1<<uint(n)) != 0 {
		panic(fmt.Sprintf("registry: area number %d already initialized", n))
	}

	a := area.New(n, startPFN, topPFN, r.cfg.PageSize, r.nlists)

	for i := 0; i < archcfg.MaxAreas; i++ {
		if r.areasMask&(1<<uint(i)) == 0 {
			continue
		}
		other := r.areas[i]
		if other.ContainsPFN(startPFN) || other.ContainsPFN(topPFN-1) ||
			a.ContainsPFN(other.MetaBase) || a.ContainsPFN(other.Top-1) {
			panic(fmt.Sprintf("registry: area %d range overlaps area %d", n, i))
		}
	}

	r.areas[n] = a
	r.areasMask |= 1 << uint(n)
}

// getArea returns the area owning p, or nil. Callers must hold r.mu.
func (r *Registry) getArea(p pfn.PFN) *area.Area {
	for i := 0; i < archcfg.MaxAreas; i++ {
		if r.areasMask&(1<<uint(i)) == 0 {
			continue
		}
		if r.areas[i].UsableContainsPFN(p) {
			return r.areas[i]
		}
	}
	return nil
}

// MemalignOrderArea iterates over the areas selected by mask, in
// ascending slot order, and returns the first successful allocation.
// Cross-area fairness is explicitly out of scope: first success wins.
func (r *Registry) MemalignOrderArea(mask Mask, alignOrder, sizeOrder pagestate.Order) (uintptr, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := mask & Mask(r.areasMask)
	for i := 0; i < archcfg.MaxAreas; i++ {
		if active&MaskOf(i) == 0 {
			continue
		}
		if p, ok := buddy.MemalignOrder(r.areas[i], alignOrder, sizeOrder); ok {
			return pfn.PtrOf(p, r.pm), true
		}
	}
	return 0, false
}

// FreePages returns the block headed at ptr to its area. A nil pointer
// (ptr == 0) is a no-op.
func (r *Registry) FreePages(ptr uintptr) {
	if ptr == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := pfn.Of(ptr, r.pm)
	a := r.getArea(p)
	if a == nil {
		panic("registry: free of a pointer not belonging to any area")
	}
	buddy.FreeInArea(a, p)
}

// ReservePages attempts to withdraw n consecutive frames starting at
// physAddr from buddy circulation, all-or-nothing: on the first failure
// it rolls back every frame reserved so far and returns an error.
func (r *Registry) ReservePages(physAddr uintptr, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := pfn.Of(physAddr, r.pm)
	i := 0
	for ; i < n; i++ {
		a := r.getArea(start + pfn.PFN(i))
		if a == nil {
			break
		}
		if err := buddy.ReserveOneInArea(a, start+pfn.PFN(i)); err != nil {
			break
		}
	}
	if i < n {
		for j := 0; j < i; j++ {
			a := r.getArea(start + pfn.PFN(j))
			buddy.UnreserveOneInArea(a, start+pfn.PFN(j))
		}
		return buddy.ErrReserveConflict
	}
	return nil
}

// UnreservePages restores n consecutive, currently-SPECIAL frames
// starting at physAddr to circulation.
func (r *Registry) UnreservePages(physAddr uintptr, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := pfn.Of(physAddr, r.pm)
	for i := 0; i < n; i++ {
		a := r.getArea(start + pfn.PFN(i))
		if a == nil {
			panic("registry: unreserve of a frame not belonging to any area")
		}
		buddy.UnreserveOneInArea(a, start+pfn.PFN(i))
	}
}
