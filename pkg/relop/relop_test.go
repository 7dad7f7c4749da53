package relop

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/value"
)

func newTestHeap(t *testing.T) *heap.Heap {
	t.Helper()
	h, err := heap.New(0, heap.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func i64Vec(h *heap.Heap, vals ...int64) *value.Value {
	v := value.NewVector(h, value.TI64, len(vals))
	copy(value.I64(v), vals)
	return v
}

func boolVec(h *heap.Heap, vals ...bool) *value.Value {
	v := value.NewVector(h, value.TB8, len(vals))
	copy(value.B8(v), vals)
	return v
}

func f64Vec(h *heap.Heap, vals ...float64) *value.Value {
	v := value.NewVector(h, value.TF64, len(vals))
	copy(value.F64(v), vals)
	return v
}

func TestWhereReturnsTruePositions(t *testing.T) {
	h := newTestHeap(t)
	b := boolVec(h, true, false, true, true, false)
	out, err := Where(h, b)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 2, 3}, value.I64(out))
}

func TestWhereRejectsNonBoolVector(t *testing.T) {
	h := newTestHeap(t)
	_, err := Where(h, i64Vec(h, 1, 2, 3))
	require.Error(t, err)
}

func TestAtIDsGathersI64(t *testing.T) {
	h := newTestHeap(t)
	src := i64Vec(h, 10, 20, 30, 40)
	out, err := AtIDs(h, src, []int64{3, 1, 0})
	require.NoError(t, err)
	require.Equal(t, []int64{40, 20, 10}, value.I64(out))
}

func TestAtIDsGathersListElements(t *testing.T) {
	h := newTestHeap(t)
	a, b, c := i64Vec(h, 1), i64Vec(h, 2), i64Vec(h, 3)
	src := value.NewList([]*value.Value{a, b, c})
	out, err := AtIDs(h, src, []int64{2, 0})
	require.NoError(t, err)
	require.Same(t, c, out.ListElems()[0])
	require.Same(t, a, out.ListElems()[1])
}

func TestFilterCollectMapFilterMaterializesGather(t *testing.T) {
	h := newTestHeap(t)
	base := i64Vec(h, 100, 200, 300, 400)
	idx := i64Vec(h, 3, 1)
	mf := value.NewMapFilter(base, idx)
	out, err := FilterCollect(h, mf)
	require.NoError(t, err)
	require.Equal(t, []int64{400, 200}, value.I64(out))
}

func TestFilterCollectMapCommonExpandsScalar(t *testing.T) {
	h := newTestHeap(t)
	scalar := value.NewAtom(value.TI64, uint64(42), 0)
	mc := value.NewMapCommon(scalar, 5)
	out, err := FilterCollect(h, mc)
	require.NoError(t, err)
	require.Equal(t, []int64{42, 42, 42, 42, 42}, value.I64(out))
}

func TestFilterCollectPassesThroughOtherTags(t *testing.T) {
	h := newTestHeap(t)
	v := i64Vec(h, 1, 2, 3)
	out, err := FilterCollect(h, v)
	require.NoError(t, err)
	require.Same(t, v, out)
}

func TestUnionSmallRangeUsesRoaringFastPath(t *testing.T) {
	h := newTestHeap(t)
	a := i64Vec(h, 1, 2, 3)
	b := i64Vec(h, 3, 4, 5)
	out, err := Union(h, a, b)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, value.I64(out))
}

func TestExceptSmallRange(t *testing.T) {
	h := newTestHeap(t)
	a := i64Vec(h, 1, 2, 3, 4)
	b := i64Vec(h, 2, 4)
	out, err := Except(h, a, b)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 3}, value.I64(out))
}

func TestSectSmallRange(t *testing.T) {
	h := newTestHeap(t)
	a := i64Vec(h, 1, 2, 3, 4)
	b := i64Vec(h, 2, 4, 9)
	out, err := Sect(h, a, b)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{2, 4}, value.I64(out))
}

func TestUnionFallsBackToHashOutsideRoaringRange(t *testing.T) {
	h := newTestHeap(t)
	big := int64(roaringRangeLimit) + 10
	a := i64Vec(h, big, big+1)
	b := i64Vec(h, big+1, big+2)
	out, err := Union(h, a, b)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{big, big + 1, big + 2}, value.I64(out))
}

func TestJoinEmptyLeftShortCircuits(t *testing.T) {
	h := newTestHeap(t)
	names := value.NewVector(h, value.TSymbol, 1)
	copy(value.I64(names), []int64{1})
	empty := i64Vec(h)
	left := value.NewTable(names, value.NewList([]*value.Value{empty}))

	rightNames := value.NewVector(h, value.TSymbol, 1)
	copy(value.I64(rightNames), []int64{1})
	right := value.NewTable(rightNames, value.NewList([]*value.Value{i64Vec(h, 1, 2)}))

	out, err := Join(h, left, right, []int{0}, []int{0})
	require.NoError(t, err)
	require.Equal(t, 0, out.RowCount())
}

func TestJoinMergesMatchingRowsAndKeepsLeftOnMiss(t *testing.T) {
	h := newTestHeap(t)

	leftNames := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(leftNames), []int64{1, 2}) // sym, qty
	leftSym := i64Vec(h, 10, 20, 30)
	leftQty := i64Vec(h, 1, 2, 3)
	left := value.NewTable(leftNames, value.NewList([]*value.Value{leftSym, leftQty}))

	rightNames := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(rightNames), []int64{1, 3}) // sym, price
	rightSym := i64Vec(h, 10, 30, 40)
	rightPrice := i64Vec(h, 100, 300, 400)
	right := value.NewTable(rightNames, value.NewList([]*value.Value{rightSym, rightPrice}))

	out, err := Join(h, left, right, []int{0}, []int{0})
	require.NoError(t, err)
	require.Equal(t, 3, out.RowCount())

	cols := out.TableColumns().ListElems()
	names := value.I64(out.TableNames())

	var priceCol *value.Value
	for i, n := range names {
		if n == 3 {
			priceCol = cols[i]
		}
	}
	require.NotNil(t, priceCol)
	got := value.I64(priceCol)
	require.Equal(t, int64(100), got[0])
	require.Equal(t, value.NullI64, got[1])
	require.Equal(t, int64(300), got[2])
}

func TestJoinMergesSharedColumnNameKeepingLeftValueOnMiss(t *testing.T) {
	h := newTestHeap(t)

	// Both sides carry a "note" column (sym=1, note=2): a miss must keep
	// the left row's own note rather than a right-side value.
	leftNames := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(leftNames), []int64{1, 2})
	leftSym := i64Vec(h, 10, 20)
	leftNote := i64Vec(h, 111, 222)
	left := value.NewTable(leftNames, value.NewList([]*value.Value{leftSym, leftNote}))

	rightNames := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(rightNames), []int64{1, 2})
	rightSym := i64Vec(h, 10, 30)
	rightNote := i64Vec(h, 999, 888)
	right := value.NewTable(rightNames, value.NewList([]*value.Value{rightSym, rightNote}))

	out, err := Join(h, left, right, []int{0}, []int{0})
	require.NoError(t, err)

	cols := out.TableColumns().ListElems()
	names := value.I64(out.TableNames())
	var noteCol *value.Value
	for i, n := range names {
		if n == 2 {
			noteCol = cols[i]
		}
	}
	require.NotNil(t, noteCol)
	got := value.I64(noteCol)
	require.Equal(t, int64(999), got[0]) // matched: right's note
	require.Equal(t, int64(222), got[1]) // missed: keeps left's own note
}

func TestJoinF64KeyDistinguishesValuesWithSameTruncatedIntegerPart(t *testing.T) {
	h := newTestHeap(t)

	// 1.1 and 1.9 truncate to the same integer part; a join keyed on their
	// raw bit pattern must still tell them apart instead of colliding.
	leftNames := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(leftNames), []int64{1, 2}) // key, tag
	leftKey := f64Vec(h, 1.1, 1.9, 2.99)
	leftTag := i64Vec(h, 10, 20, 30)
	left := value.NewTable(leftNames, value.NewList([]*value.Value{leftKey, leftTag}))

	rightNames := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(rightNames), []int64{1, 3}) // key, price
	rightKey := f64Vec(h, 1.9, 2.0)
	rightPrice := i64Vec(h, 190, 200)
	right := value.NewTable(rightNames, value.NewList([]*value.Value{rightKey, rightPrice}))

	out, err := Join(h, left, right, []int{0}, []int{0})
	require.NoError(t, err)
	require.Equal(t, 3, out.RowCount())

	cols := out.TableColumns().ListElems()
	names := value.I64(out.TableNames())
	var priceCol *value.Value
	for i, n := range names {
		if n == 3 {
			priceCol = cols[i]
		}
	}
	require.NotNil(t, priceCol)
	got := value.I64(priceCol)
	require.Equal(t, value.NullI64, got[0]) // 1.1 matches neither 1.9 nor 2.0
	require.Equal(t, int64(190), got[1])    // 1.9 matches 1.9, not 2.0's 200
	require.Equal(t, value.NullI64, got[2]) // 2.99 matches neither
}
