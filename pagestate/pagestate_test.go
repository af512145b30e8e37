package pagestate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pfn"
)

func TestStateEncoding(t *testing.T) {
	f := Free(5)
	require.EqualValues(t, 5, f.Order())
	require.False(t, f.IsAlloc())
	require.False(t, f.IsSpecial())

	a := Allocated(5)
	require.EqualValues(t, 5, a.Order())
	require.True(t, a.IsAlloc())
	require.False(t, a.IsSpecial())

	s := Special()
	require.True(t, s.IsSpecial())
	require.False(t, s.IsAlloc())
}

func TestTableGetSet(t *testing.T) {
	base := pfn.PFN(0x100)
	tbl := make(Table, 16)
	tbl.SetRun(base, base+4, 4, Allocated(2))

	require.Equal(t, Allocated(2), tbl.Get(base, base+4))
	require.Equal(t, Allocated(2), tbl.Get(base, base+7))
	require.Equal(t, State(0), tbl.Get(base, base+8))
}

func TestIndexPanicsBelowBase(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for pfn preceding area base")
		}
	}()
	tbl := make(Table, 4)
	tbl.Get(pfn.PFN(10), pfn.PFN(9))
}
