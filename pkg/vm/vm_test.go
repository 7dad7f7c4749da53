package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/pkg/heap"
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

func symVec(h *heap.Heap, syms *symtab.Table, names ...string) *value.Value {
	v := value.NewVector(h, value.TSymbol, len(names))
	ids := value.I64(v)
	for i, n := range names {
		ids[i] = syms.Intern(n)
	}
	return v
}

func list(vals ...*value.Value) *value.Value { return value.NewList(vals) }

func sym(syms *symtab.Table, name string) *value.Value {
	return value.NewSymAtom(syms.Intern(name))
}

func newVM(t *testing.T) (*VM, *vmctx.Context, *symtab.Table) {
	h := newTestHeap(t)
	syms := symtab.New()
	return New(syms, nil), vmctx.New(h), syms
}

// builtinCall constructs the LIST application (name arg...).
func builtinCall(syms *symtab.Table, name string, args ...*value.Value) *value.Value {
	elems := append([]*value.Value{sym(syms, name)}, args...)
	return list(elems...)
}

func TestEvalAddBroadcastsAtomOverVector(t *testing.T) {
	vm, ctx, syms := newVM(t)
	vec := i64Vec(ctx.Heap, 1, 2, 3)
	expr := builtinCall(syms, "+", vec, value.NewI64Atom(3))

	out, err := vm.Eval(ctx, expr)
	require.NoError(t, err)
	require.Equal(t, []int64{4, 5, 6}, value.I64(out))
}

func TestEvalSumOfVectorLiteral(t *testing.T) {
	vm, ctx, syms := newVM(t)
	vec := i64Vec(ctx.Heap, 1, 2, 3, 4, 5)
	expr := builtinCall(syms, "sum", vec)

	out, err := vm.Eval(ctx, expr)
	require.NoError(t, err)
	require.True(t, out.Tag.IsAtom())
	require.Equal(t, int64(15), value.AtomI64(out))
}

func TestEvalCountOfTil(t *testing.T) {
	vm, ctx, syms := newVM(t)
	expr := builtinCall(syms, "count", builtinCall(syms, "til", value.NewI64Atom(100)))

	out, err := vm.Eval(ctx, expr)
	require.NoError(t, err)
	require.Equal(t, int64(100), value.AtomI64(out))
}

func TestEvalLambdaIdentityAppliedToString(t *testing.T) {
	vm, ctx, syms := newVM(t)
	params := symVec(ctx.Heap, syms, "x")
	fnLit := builtinCall(syms, "fn", params, sym(syms, "x"))
	str := value.NewVector(ctx.Heap, value.TC8, 3)
	copy(value.C8(str), []byte("abc"))

	expr := list(fnLit, str)
	out, err := vm.Eval(ctx, expr)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), value.C8(out))
}

func TestEvalTableAndGroupBySum(t *testing.T) {
	vm, ctx, syms := newVM(t)
	h := ctx.Heap

	names := symVec(h, syms, "k", "v")
	kCol := symVec(h, syms, "a", "a", "b", "b", "c")
	vCol := i64Vec(h, 1, 2, 3, 4, 5)
	tableExpr := builtinCall(syms, "table", names, builtinCall(syms, "list", kCol, vCol))

	byKey := syms.Intern("by")
	sKey := syms.Intern("s")
	fromKey := syms.Intern("from")

	dictNames := symVec(h, syms, "", "", "")
	copy(value.I64(dictNames), []int64{fromKey, byKey, sKey})
	sExpr := builtinCall(syms, "sum", sym(syms, "v"))
	dict := value.NewDict(dictNames, list(tableExpr, sym(syms, "k"), sExpr))

	expr := builtinCall(syms, "select", dict)
	out, err := vm.Eval(ctx, expr)
	require.NoError(t, err)
	require.Equal(t, value.TTable, out.Tag)
	require.Equal(t, 3, out.RowCount())

	sums := value.I64(out.TableColumns().ListElems()[1])
	total := int64(0)
	for _, s := range sums {
		total += s
	}
	require.Equal(t, int64(15), total)
}

func TestEvalInnerJoinKeepsOnlyMatchedRows(t *testing.T) {
	vm, ctx, syms := newVM(t)
	h := ctx.Heap

	tradesNames := symVec(h, syms, "sym", "qty")
	tradesSym := symVec(h, syms, "AAPL", "GOOG", "MSFT")
	tradesQty := i64Vec(h, 10, 20, 30)
	trades := value.NewTable(tradesNames, list(tradesSym, tradesQty))

	quotesNames := symVec(h, syms, "sym", "px")
	quotesSym := symVec(h, syms, "AAPL", "GOOG", "TSLA")
	quotesPx := i64Vec(h, 100, 200, 300)
	quotes := value.NewTable(quotesNames, list(quotesSym, quotesPx))

	vm.Define("trades", trades)
	vm.Define("quotes", quotes)

	keys := symVec(h, syms, "sym")
	expr := builtinCall(syms, "inner-join", keys, sym(syms, "trades"), sym(syms, "quotes"))

	out, err := vm.Eval(ctx, expr)
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
}

func TestEvalLeftJoinKeepsUnmatchedLeftRowWithNulls(t *testing.T) {
	vm, ctx, syms := newVM(t)
	h := ctx.Heap

	lNames := symVec(h, syms, "sym", "x")
	lSym := symVec(h, syms, "a", "b", "c")
	lX := i64Vec(h, 1, 2, 3)
	left := value.NewTable(lNames, list(lSym, lX))

	rNames := symVec(h, syms, "sym", "y")
	rSym := symVec(h, syms, "a", "c")
	rY := i64Vec(h, 10, 30)
	right := value.NewTable(rNames, list(rSym, rY))

	vm.Define("l", left)
	vm.Define("r", right)

	keys := symVec(h, syms, "sym")
	expr := builtinCall(syms, "lj", keys, sym(syms, "l"), sym(syms, "r"))

	out, err := vm.Eval(ctx, expr)
	require.NoError(t, err)
	require.Equal(t, 3, out.RowCount())

	names := value.I64(out.TableNames())
	yIdx := -1
	for i, n := range names {
		if n == syms.Intern("y") {
			yIdx = i
		}
	}
	require.GreaterOrEqual(t, yIdx, 0)
	yCol := value.I64(out.TableColumns().ListElems()[yIdx])
	require.Equal(t, value.NullI64, yCol[1])
	require.Equal(t, int64(10), yCol[0])
	require.Equal(t, int64(30), yCol[2])
}

func TestEvalUnboundSymbolReturnsError(t *testing.T) {
	vm, ctx, syms := newVM(t)
	_, err := vm.Eval(ctx, sym(syms, "nope"))
	require.Error(t, err)
}
