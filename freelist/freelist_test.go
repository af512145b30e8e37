package freelist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRemoveOrdering(t *testing.T) {
	nodes := make([]Node, 4)
	var l List
	l.Init()
	require.True(t, l.Empty())

	Add(&l, nodes, 0)
	Add(&l, nodes, 1)
	Add(&l, nodes, 2)
	require.False(t, l.Empty())
	require.EqualValues(t, 2, l.Front())

	Remove(&l, nodes, 1)
	require.EqualValues(t, 2, l.Front())

	Remove(&l, nodes, 2)
	require.EqualValues(t, 0, l.Front())

	Remove(&l, nodes, 0)
	require.True(t, l.Empty())
}

func TestRemoveTail(t *testing.T) {
	nodes := make([]Node, 3)
	var l List
	l.Init()
	Add(&l, nodes, 0)
	Add(&l, nodes, 1)
	Add(&l, nodes, 2)

	// list order is 2,1,0 (head-inserted); remove the tail (0).
	Remove(&l, nodes, 0)
	require.EqualValues(t, 2, l.Front())

	Remove(&l, nodes, 2)
	require.EqualValues(t, 1, l.Front())
	Remove(&l, nodes, 1)
	require.True(t, l.Empty())
}
