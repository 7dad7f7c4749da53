package sortx

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/sched"
	"github.com/rayforcedb/rayforce/pkg/value"
)

func newTestHeap(t *testing.T) *heap.Heap {
	h, err := heap.New(0, heap.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return h
}

func TestSortI64AscendingIsStableAndNullFirst(t *testing.T) {
	h := newTestHeap(t)
	vec := value.NewVector(h, value.TI64, 6)
	src := value.I64(vec)
	copy(src, []int64{5, value.NullI64, 3, 3, -1, 5})

	perm, err := Sort(h, vec, false, nil)
	require.NoError(t, err)
	idx := value.I64(perm)

	got := make([]int64, len(idx))
	for i, p := range idx {
		got[i] = src[p]
	}
	require.Equal(t, []int64{value.NullI64, -1, 3, 3, 5, 5}, got)
	// stability: the two 3s and two 5s must keep source order
	require.Equal(t, int64(2), idx[2])
	require.Equal(t, int64(3), idx[3])
	require.Equal(t, int64(0), idx[4])
	require.Equal(t, int64(5), idx[5])
}

func TestSortI64DescendingPutsNullsLast(t *testing.T) {
	h := newTestHeap(t)
	vec := value.NewVector(h, value.TI64, 4)
	copy(value.I64(vec), []int64{1, value.NullI64, 2, 0})

	perm, err := Sort(h, vec, true, nil)
	require.NoError(t, err)
	idx := value.I64(perm)
	src := value.I64(vec)
	got := make([]int64, len(idx))
	for i, p := range idx {
		got[i] = src[p]
	}
	require.Equal(t, []int64{2, 1, 0, value.NullI64}, got)
}

func TestSortAscAttrShortCircuitsToIota(t *testing.T) {
	h := newTestHeap(t)
	vec := value.NewVector(h, value.TI32, 3)
	vec.Attrs = value.AttrAsc
	copy(value.I32(vec), []int32{9, 9, 9}) // content irrelevant; attr trusted

	perm, err := Sort(h, vec, false, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2}, value.I64(perm))
}

func TestRadixMatchesComparisonSortOverRandomI64(t *testing.T) {
	h := newTestHeap(t)
	n := 500
	vec := value.NewVector(h, value.TI64, n)
	src := value.I64(vec)
	r := rand.New(rand.NewSource(1))
	for i := range src {
		src[i] = r.Int63n(1000) - 500
	}

	perm, err := Sort(h, vec, false, nil)
	require.NoError(t, err)
	idx := value.I64(perm)

	for i := 1; i < n; i++ {
		require.LessOrEqual(t, src[idx[i-1]], src[idx[i]])
	}
}

func TestParallelRadixMatchesSequential(t *testing.T) {
	h := newTestHeap(t)
	n := ParallelRowThreshold + 1000
	vec := value.NewVector(h, value.TI32, n)
	src := value.I32(vec)
	r := rand.New(rand.NewSource(2))
	for i := range src {
		src[i] = r.Int31n(1 << 20)
	}

	pool, err := sched.Create(4, h, zap.NewNop())
	require.NoError(t, err)

	seq, err := Sort(h, vec, false, nil)
	require.NoError(t, err)
	par, err := Sort(h, vec, false, pool)
	require.NoError(t, err)

	require.Equal(t, value.I64(seq), value.I64(par))
}
