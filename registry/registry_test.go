package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"archcfg"
	"buddy"
	"pfn"
)

const pageSize = 4096

func newTestRegistry() *Registry {
	cfg := archcfg.Config{PageSize: pageSize, PageShift: 12}
	pm := archcfg.IdentityMap{PageShift: cfg.PageShift}
	return New(cfg, pm, nil)
}

func TestInitAreaAndAllocFree(t *testing.T) {
	r := newTestRegistry()
	r.InitArea(archcfg.Normal, 0x10F, 0x120)
	require.True(t, r.Initialized())

	ptr, ok := r.MemalignOrderArea(AllAreas, 2, 2)
	require.True(t, ok)
	require.NotZero(t, ptr)

	r.FreePages(ptr)

	// After the single allocation is freed, the area must have fully
	// coalesced back to one order-4 free block.
	a := r.areas[archcfg.Normal]
	header, ok := a.FrontOf(4)
	require.True(t, ok)
	require.EqualValues(t, a.Base, header)
}

func TestInitAreaOverlapPanics(t *testing.T) {
	r := newTestRegistry()
	r.InitArea(archcfg.Normal, 0x100, 0x200)
	require.Panics(t, func() {
		r.InitArea(archcfg.Low, 0x180, 0x280)
	})
}

func TestInitAreaDuplicateSlotPanics(t *testing.T) {
	r := newTestRegistry()
	r.InitArea(archcfg.Normal, 0x100, 0x200)
	require.Panics(t, func() {
		r.InitArea(archcfg.Normal, 0x300, 0x400)
	})
}

func TestInitAreaAutoRoutesByCutoff(t *testing.T) {
	r := New(
		archcfg.Config{PageSize: pageSize, PageShift: 12},
		archcfg.IdentityMap{PageShift: 12},
		[]archcfg.Cutoff{
			{AreaNumber: archcfg.High, PFN: 0x300},
			{AreaNumber: archcfg.Normal, PFN: 0x100},
			{AreaNumber: archcfg.Low, PFN: 0},
		},
	)
	r.InitArea(archcfg.Any, 0, 0x400)

	require.NotNil(t, r.areas[archcfg.High])
	require.NotNil(t, r.areas[archcfg.Normal])
	require.NotNil(t, r.areas[archcfg.Low])
	require.Nil(t, r.areas[archcfg.Lowest])

	require.True(t, r.areas[archcfg.High].ContainsPFN(0x350))
	require.True(t, r.areas[archcfg.Normal].ContainsPFN(0x200))
	require.True(t, r.areas[archcfg.Low].ContainsPFN(0x50))
}

func TestReservePagesRollsBackOnConflict(t *testing.T) {
	r := newTestRegistry()
	r.InitArea(archcfg.Normal, 0x100, 0x200)
	a := r.areas[archcfg.Normal]

	// Pre-reserve one frame inside the target run so the bulk reservation
	// must fail partway through and roll back everything it already took.
	pre := a.Base + 2
	require.NoError(t, buddy.ReserveOneInArea(a, pre))

	ptr := pfn.PtrOf(a.Base, r.pm)
	err := r.ReservePages(ptr, 4)
	require.ErrorIs(t, err, buddy.ErrReserveConflict)

	// Every frame the rollback touched must be free again except the
	// pre-existing reservation, which must be left untouched.
	for i := pfn.PFN(0); i < 4; i++ {
		p := a.Base + i
		s := a.PageStates.Get(a.Base, p)
		if p == pre {
			require.True(t, s.IsSpecial())
		} else {
			require.False(t, s.IsAlloc())
			require.False(t, s.IsSpecial())
		}
	}
}

func TestReserveUnreserveRoundTrip(t *testing.T) {
	r := newTestRegistry()
	r.InitArea(archcfg.Normal, 0x100, 0x200)
	a := r.areas[archcfg.Normal]

	ptr := pfn.PtrOf(a.Base, r.pm)
	require.NoError(t, r.ReservePages(ptr, 4))
	for i := pfn.PFN(0); i < 4; i++ {
		require.True(t, a.PageStates.Get(a.Base, a.Base+i).IsSpecial())
	}

	r.UnreservePages(ptr, 4)
	for i := pfn.PFN(0); i < 4; i++ {
		s := a.PageStates.Get(a.Base, a.Base+i)
		require.False(t, s.IsSpecial())
		require.False(t, s.IsAlloc())
	}
}

func TestFreePagesOfUnownedPointerPanics(t *testing.T) {
	r := newTestRegistry()
	r.InitArea(archcfg.Normal, 0x100, 0x200)
	require.Panics(t, func() {
		r.FreePages(pfn.PtrOf(pfn.PFN(0xF00), r.pm))
	})
}

func TestFreePagesNilIsNoop(t *testing.T) {
	r := newTestRegistry()
	require.NotPanics(t, func() { r.FreePages(0) })
}
