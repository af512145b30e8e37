package palloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"archcfg"
	"registry"
)

// palloc's package-level state is a process-wide singleton; serialize
// tests that touch it rather than letting them race on reg/installedOps.
var testMu sync.Mutex

func reset(t *testing.T) {
	testMu.Lock()
	t.Cleanup(testMu.Unlock)
	reg = nil
	installedOps = nil
}

func TestConfigureRequiredBeforeUse(t *testing.T) {
	reset(t)
	require.Panics(t, func() { Initialized() })
}

func TestInitAreaAndAllocPages(t *testing.T) {
	reset(t)
	Configure(archcfg.DefaultConfig, archcfg.IdentityMap{PageShift: archcfg.DefaultConfig.PageShift}, nil)
	InitArea(archcfg.Normal, 0x100, 0x200)
	require.True(t, Initialized())

	ptr, ok := AllocPages(0)
	require.True(t, ok)
	require.NotZero(t, ptr)

	FreePages(ptr)
}

func TestOpsEnableRequiresAnArea(t *testing.T) {
	reset(t)
	Configure(archcfg.DefaultConfig, archcfg.IdentityMap{PageShift: archcfg.DefaultConfig.PageShift}, nil)
	require.Panics(t, OpsEnable)

	InitArea(archcfg.Normal, 0x100, 0x200)
	require.NotPanics(t, OpsEnable)
	require.NotNil(t, installedOps)
}

func TestOpsDispatchRoundTrips(t *testing.T) {
	reset(t)
	Configure(archcfg.DefaultConfig, archcfg.IdentityMap{PageShift: archcfg.DefaultConfig.PageShift}, nil)
	InitArea(archcfg.Normal, 0x100, 0x200)
	OpsEnable()

	ptr := installedOps.Memalign(4096, 4096)
	require.NotZero(t, ptr)
	installedOps.Free(ptr)
}

func TestMemalignPagesAreaConvertsByteSizes(t *testing.T) {
	reset(t)
	Configure(archcfg.DefaultConfig, archcfg.IdentityMap{PageShift: archcfg.DefaultConfig.PageShift}, nil)
	InitArea(archcfg.Normal, 0x100, 0x200)

	// A 16-page alignment with a 1-page size must yield a pointer aligned
	// to 16 pages, occupying a single order-0 allocation.
	ptr, ok := MemalignPagesArea(registry.AllAreas, 16*4096, 4096)
	require.True(t, ok)
	require.Zero(t, ptr%(16*4096))
}

func TestOrderForBytes(t *testing.T) {
	require.EqualValues(t, 0, orderForBytes(1, 4096))
	require.EqualValues(t, 0, orderForBytes(4096, 4096))
	require.EqualValues(t, 1, orderForBytes(4097, 4096))
	require.EqualValues(t, 2, orderForBytes(4*4096, 4096))
	require.EqualValues(t, 0, orderForBytes(0, 4096))
}

func TestReserveUnreservePagesThroughPublicSurface(t *testing.T) {
	reset(t)
	Configure(archcfg.DefaultConfig, archcfg.IdentityMap{PageShift: archcfg.DefaultConfig.PageShift}, nil)
	InitArea(archcfg.Normal, 0x100, 0x200)

	// PFN 0x100 holds the area's metadata table; 0x101 is the first
	// usable frame.
	ptr := archcfg.IdentityMap{PageShift: archcfg.DefaultConfig.PageShift}.PtrOf(0x101)
	require.NoError(t, ReservePages(ptr, 1))
	UnreservePages(ptr, 1)
}
