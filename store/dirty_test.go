package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_PageAlignment(t *testing.T) {
	tr := newTracker()
	tr.add(100, 200)

	got := tr.coalesce()
	require.Equal(t, []Range{{Off: 0, Len: 4096}}, got)
}

func TestTracker_CoalesceAdjacentAndOverlapping(t *testing.T) {
	tr := newTracker()
	tr.add(4096, 4096)
	tr.add(8192, 4096)
	tr.add(8000, 500)
	tr.add(40960, 1)

	got := tr.coalesce()
	require.Equal(t, []Range{
		{Off: 4096, Len: 8192},
		{Off: 40960, Len: 4096},
	}, got)
}

func TestTracker_IgnoresEmptyAndResets(t *testing.T) {
	tr := newTracker()
	tr.add(10, 0)
	require.Nil(t, tr.coalesce())

	tr.add(10, 1)
	require.Len(t, tr.coalesce(), 1)
	tr.reset()
	require.Nil(t, tr.coalesce())
}
