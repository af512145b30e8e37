// Package archcfg isolates the architecture-specific constants and the
// physical-address-to-pointer map that the buddy allocator consumes but
// does not own: page geometry, the maximum number of
// areas, the well-known area numbers, and the PFN cutoffs that route an
// AREA_ANY_NUMBER init call to the right class of memory.
package archcfg

import "pfn"

// Area numbers. Lowest has the smallest addresses, High the largest;
// AREA_ANY_NUMBER (Any) requests auto-routing by cutoff.
const (
	Lowest = iota
	Low
	Normal
	High
	// MaxAreas bounds the number of simultaneously initialized areas.
	MaxAreas = 8
	// Any is the sentinel area number requesting auto-routing.
	Any = -1
)

// WordBits is the width, in bits, of the integer used to address a frame.
// NLISTS derives from this and PageShift: the highest representable order
// is bounded so that 2^order frames never overflows a machine word.
const WordBits = 64

// Config carries the build-time geometry a real deployment would bake in
// from the architecture layer (biscuit's mem package plays the same role
// with its PGSHIFT/PGSIZE/PGOFFSET package consts).
type Config struct {
	PageSize  uint
	PageShift uint
}

// DefaultConfig is the 4 KiB page geometry used throughout this module's
// tests and harness.
var DefaultConfig = Config{PageSize: 4096, PageShift: 12}

// NLists returns the number of distinct block orders a geometry supports:
// machine_word_bits - page_shift.
func (c Config) NLists() int {
	return WordBits - int(c.PageShift)
}

// Cutoff names one boundary of the architecture's memory-class routing
// table, consumed by InitAreaAuto in descending-cutoff order.
type Cutoff struct {
	AreaNumber int
	PFN        pfn.PFN
}

// Cutoffs returns the area-class boundaries in the descending order
// InitAreaAuto must walk them (High, Normal, Low, Lowest), skipping any
// class this architecture does not define. A real architecture layer
// would gate these behind build constants the way alloc_page.c guards
// AREA_HIGH_PFN/AREA_LOW_PFN/AREA_LOWEST_PFN with #ifdef; here an unused
// class is simply omitted by the caller instead.
func (c Config) Cutoffs(highPFN, normalPFN, lowPFN, lowestPFN pfn.PFN, haveHigh, haveLow, haveLowest bool) []Cutoff {
	var out []Cutoff
	if haveHigh {
		out = append(out, Cutoff{AreaNumber: High, PFN: highPFN})
	}
	out = append(out, Cutoff{AreaNumber: Normal, PFN: normalPFN})
	if haveLow {
		out = append(out, Cutoff{AreaNumber: Low, PFN: lowPFN})
	}
	if haveLowest {
		out = append(out, Cutoff{AreaNumber: Lowest, PFN: lowestPFN})
	}
	return out
}

// IdentityMap is a pfn.PhysMap usable by the harness and by tests: it
// treats a pointer as frame-number*PageSize, i.e. it never touches real
// memory. The allocator never dereferences the pointers it hands back,
// so an identity mapping is sufficient to exercise every invariant
// without a real backing address space.
type IdentityMap struct {
	PageShift uint
}

func (m IdentityMap) PtrOf(p pfn.PFN) uintptr {
	return uintptr(p) << m.PageShift
}

func (m IdentityMap) Of(ptr uintptr) pfn.PFN {
	return pfn.PFN(ptr >> m.PageShift)
}
