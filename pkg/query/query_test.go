package query

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/sched"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
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

func f64Vec(h *heap.Heap, vals ...float64) *value.Value {
	v := value.NewVector(h, value.TF64, len(vals))
	copy(value.F64(v), vals)
	return v
}

func TestGroupRowsPerfectHashPath(t *testing.T) {
	h := newTestHeap(t)
	keys := i64Vec(h, 5, 7, 5, 9, 7, 5)
	ga := groupRows([]*value.Value{keys}, 6)
	require.Equal(t, int32(5), ga.numGroups) // range 5..9 -> 5 slots, no nulls
	require.Equal(t, ga.groupOf[0], ga.groupOf[2])
	require.Equal(t, ga.groupOf[2], ga.groupOf[5])
	require.Equal(t, ga.groupOf[1], ga.groupOf[4])
	require.NotEqual(t, ga.groupOf[0], ga.groupOf[3])
}

func TestGroupRowsCompositeHashPathForMultipleKeys(t *testing.T) {
	h := newTestHeap(t)
	a := i64Vec(h, 1, 1, 2, 2)
	b := i64Vec(h, 10, 20, 10, 20)
	ga := groupRows([]*value.Value{a, b}, 4)
	require.Equal(t, int32(4), ga.numGroups)
	seen := map[int32]bool{}
	for _, g := range ga.groupOf {
		seen[g] = true
	}
	require.Len(t, seen, 4)
}

func TestAggregateSumCountAvgMinMaxSequential(t *testing.T) {
	h := newTestHeap(t)
	keys := i64Vec(h, 1, 1, 2, 2, 2)
	values := f64Vec(h, 10, 20, 1, 2, 3)
	ga := groupRows([]*value.Value{keys}, 5)

	sum, err := Aggregate(h, nil, values, ga, AggSum)
	require.NoError(t, err)
	sumD := value.F64(sum)

	cnt, err := Aggregate(h, nil, values, ga, AggCount)
	require.NoError(t, err)

	avg, err := Aggregate(h, nil, values, ga, AggAvg)
	require.NoError(t, err)

	mn, err := Aggregate(h, nil, values, ga, AggMin)
	require.NoError(t, err)
	mx, err := Aggregate(h, nil, values, ga, AggMax)
	require.NoError(t, err)

	g1 := ga.groupOf[0] // group for key 1
	g2 := ga.groupOf[2] // group for key 2

	require.InDelta(t, 30, sumD[g1], 1e-9)
	require.InDelta(t, 6, sumD[g2], 1e-9)
	require.Equal(t, int64(2), value.I64(cnt)[g1])
	require.Equal(t, int64(3), value.I64(cnt)[g2])
	require.InDelta(t, 15, value.F64(avg)[g1], 1e-9)
	require.InDelta(t, 2, value.F64(avg)[g2], 1e-9)
	require.InDelta(t, 10, value.F64(mn)[g1], 1e-9)
	require.InDelta(t, 1, value.F64(mn)[g2], 1e-9)
	require.InDelta(t, 20, value.F64(mx)[g1], 1e-9)
	require.InDelta(t, 3, value.F64(mx)[g2], 1e-9)
}

func TestAggregateFirstLastGatherByRow(t *testing.T) {
	h := newTestHeap(t)
	keys := i64Vec(h, 1, 2, 1, 2)
	values := i64Vec(h, 100, 200, 300, 400)
	ga := groupRows([]*value.Value{keys}, 4)

	first, err := Aggregate(h, nil, values, ga, AggFirst)
	require.NoError(t, err)
	last, err := Aggregate(h, nil, values, ga, AggLast)
	require.NoError(t, err)

	g1, g2 := ga.groupOf[0], ga.groupOf[1]
	require.Equal(t, int64(100), value.I64(first)[g1])
	require.Equal(t, int64(200), value.I64(first)[g2])
	require.Equal(t, int64(300), value.I64(last)[g1])
	require.Equal(t, int64(400), value.I64(last)[g2])
}

func TestAggregateParallelMatchesSequential(t *testing.T) {
	h := newTestHeap(t)
	n := ParallelAggThreshold + 5000
	keys := value.NewVector(h, value.TI64, n)
	values := value.NewVector(h, value.TF64, n)
	kd, vd := value.I64(keys), value.F64(values)
	for i := 0; i < n; i++ {
		kd[i] = int64(i % 37)
		vd[i] = float64(i % 5)
	}
	ga := groupRows([]*value.Value{keys}, n)

	seqSum, err := Aggregate(h, nil, values, ga, AggSum)
	require.NoError(t, err)

	pool, err := sched.Create(4, h, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	parSum, err := Aggregate(h, pool, values, ga, AggSum)
	require.NoError(t, err)

	require.InDeltaSlice(t, value.F64(seqSum), value.F64(parSum), 1e-6)
}

func TestParseAggOp(t *testing.T) {
	for _, name := range []string{"sum", "count", "avg", "min", "max", "first", "last"} {
		_, ok := ParseAggOp(name)
		require.True(t, ok, name)
	}
	_, ok := ParseAggOp("bogus")
	require.False(t, ok)
}

// fakeTable builds a two-column TABLE(sym I64, price F64) with the given
// symbol interner so Select's DICT-key comparisons resolve.
func fakeTable(h *heap.Heap, syms *symtab.Table) *value.Value {
	symName := syms.Intern("sym")
	priceName := syms.Intern("price")
	names := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(names), []int64{symName, priceName})
	sym := i64Vec(h, 1, 2, 1, 2)
	price := f64Vec(h, 10, 20, 30, 40)
	return value.NewTable(names, value.NewList([]*value.Value{sym, price}))
}

func TestSelectFetchAndProjectNoFilterNoGroup(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	table := fakeTable(h, syms)

	fromSym := value.NewSymAtom(syms.Intern("t"))
	priceCol := value.NewSymAtom(syms.Intern("price"))

	fromKey := syms.Intern("from")
	priceKey := syms.Intern("price")
	dictNames := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(dictNames), []int64{fromKey, priceKey})
	dict := value.NewDict(dictNames, value.NewList([]*value.Value{fromSym, priceCol}))

	eval := func(ctx *vmctx.Context, expr *value.Value) (*value.Value, error) {
		switch {
		case expr == fromSym:
			return table, nil
		case expr == priceCol:
			return table.TableColumns().ListElems()[1], nil
		default:
			return expr, nil
		}
	}

	ctx := vmctx.New(h)
	out, err := Select(ctx, nil, syms, dict, eval)
	require.NoError(t, err)
	require.Equal(t, 4, out.RowCount())
	require.Equal(t, []int64{10, 20, 30, 40}, func() []int64 {
		f := value.F64(out.TableColumns().ListElems()[0])
		i := make([]int64, len(f))
		for j, x := range f {
			i[j] = int64(x)
		}
		return i
	}())
}
