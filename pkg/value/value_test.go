package value

import (
	"testing"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/stretchr/testify/require"
)

func TestCloneDropIsIdentity(t *testing.T) {
	h, err := heap.New(1)
	require.NoError(t, err)
	defer h.Close()

	v := NewVector(h, TI64, 4)
	copy(I64(v), []int64{1, 2, 3, 4})

	Clone(false, v)
	Clone(false, v)
	require.Equal(t, uint32(3), v.RC())

	Drop(false, v)
	require.Equal(t, uint32(2), v.RC())
	Drop(false, v)
	require.Equal(t, uint32(1), v.RC())

	before := h.Stats().UsedBytes
	require.Greater(t, before, int64(0))
	Drop(false, v)
	require.Equal(t, int64(0), h.Stats().UsedBytes)
}

func TestDropReleasesListChildren(t *testing.T) {
	h, err := heap.New(2)
	require.NoError(t, err)
	defer h.Close()

	a := NewVector(h, TI64, 2)
	b := NewVector(h, TI64, 2)
	list := NewList([]*Value{a, b})

	Drop(false, list)
	require.Equal(t, int64(0), h.Stats().UsedBytes)
}

func TestCowSharesUntilMutated(t *testing.T) {
	h, err := heap.New(3)
	require.NoError(t, err)
	defer h.Close()

	v := NewVector(h, TI64, 2)
	shared := Clone(false, v) // v.rc == 2 now; v and shared are the same object
	require.Same(t, v, shared)
	require.Equal(t, uint32(2), v.RC())

	unique := Cow(false, h, shared) // rc==2, so this must deep-copy and drop shared
	require.NotSame(t, v, unique)
	require.Equal(t, uint32(1), v.RC())
	require.Equal(t, uint32(1), unique.RC())

	Drop(false, unique)
	Drop(false, v)
	require.Equal(t, int64(0), h.Stats().UsedBytes)
}
