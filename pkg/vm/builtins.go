package vm

import (
	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/query"
	"github.com/rayforcedb/rayforce/pkg/relop"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
)

// builtinFn is the shape every VARY/UNARY/BINARY native takes: the
// evaluator and the calling context, plus already-evaluated arguments.
type builtinFn func(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error)

// builtins is the closed set of host functions spec.md §8's end-to-end
// scenarios exercise, plus the small set of relational/set builtins
// SPEC_FULL.md's supplemented features add so the query engine and joins
// are reachable from evaluated expressions.
var builtins map[string]builtinFn

func init() {
	builtins = map[string]builtinFn{
		"+":  addBuiltin,
		"-":  subBuiltin,
		"*":  mulBuiltin,
		"/":  divBuiltin,
		"=":  eqBuiltin,
		"==": eqBuiltin,
		"<":  ltBuiltin,
		">":  gtBuiltin,

		"til":   tilBuiltin,
		"count": countBuiltin,

		"sum":   aggBuiltin(query.AggSum),
		"avg":   aggBuiltin(query.AggAvg),
		"min":   aggBuiltin(query.AggMin),
		"max":   aggBuiltin(query.AggMax),
		"first": aggBuiltin(query.AggFirst),
		"last":  aggBuiltin(query.AggLast),

		"table":  tableBuiltin,
		"list":   listBuiltin,
		"select": selectBuiltin,

		"inner-join": innerJoinBuiltin,
		"lj":         leftJoinBuiltin,
	}
}

// tilBuiltin implements `til n`: an I64 vector [0, n).
func tilBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 1 {
		return nil, rayerr.Arity(1, len(args), 0)
	}
	n, ok := integerAtom(args[0])
	if !ok {
		return nil, rayerr.Type("integer atom", args[0].Tag.String(), 0, "til")
	}
	out := value.NewVector(ctx.Heap, value.TI64, int(n))
	d := value.I64(out)
	for i := range d {
		d[i] = int64(i)
	}
	return out, nil
}

func integerAtom(v *value.Value) (int64, bool) {
	switch value.VectorOf(v.Tag) {
	case value.TI64, value.TI32, value.TI16, value.TU8, value.TC8:
		i, _, _ := numericAtom(v)
		return i, true
	default:
		return 0, false
	}
}

// countBuiltin implements `count v`: row count for a TABLE, length for a
// vector or LIST, 1 for a bare atom.
func countBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 1 {
		return nil, rayerr.Arity(1, len(args), 0)
	}
	v := args[0]
	switch {
	case v.Tag == value.TTable:
		return value.NewI64Atom(int64(v.RowCount())), nil
	case v.Tag == value.TMapFilter, v.Tag == value.TMapGroup:
		return value.NewI64Atom(int64(v.Len)), nil
	case v.Tag.IsVector() || v.Tag == value.TList:
		return value.NewI64Atom(int64(v.Len)), nil
	default:
		return value.NewI64Atom(1), nil
	}
}

// listBuiltin builds a LIST from its evaluated arguments — the only way
// to build a literal LIST value tree, since a bare LIST node is always an
// application form.
func listBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	return value.NewList(args), nil
}

// tableBuiltin builds a TABLE from a SYMBOL vector of names and a LIST of
// equal-length columns.
func tableBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 2 {
		return nil, rayerr.Arity(2, len(args), 0)
	}
	names, cols := args[0], args[1]
	if value.VectorOf(names.Tag) != value.TSymbol || names.Tag.IsAtom() {
		return nil, rayerr.Type("symbol vector", names.Tag.String(), 0, "table")
	}
	if cols.Tag != value.TList {
		return nil, rayerr.Type("list", cols.Tag.String(), 1, "table")
	}
	if int(names.Len) != len(cols.ListElems()) {
		return nil, rayerr.Length(int(names.Len), len(cols.ListElems()), nil)
	}
	return value.NewTable(names, cols), nil
}

// selectBuiltin forwards to pkg/query.Select, passing this VM's own Eval
// back in as the pipeline's field evaluator.
func selectBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 1 {
		return nil, rayerr.Arity(1, len(args), 0)
	}
	return query.Select(ctx, vm.pool, vm.syms, args[0], vm.Eval)
}

// aggBuiltin builds the sum/avg/min/max/first/last family. Called with a
// MAPGROUP column, it reuses the GroupAssignment the pipeline's `by` stage
// already discovered (spec §4.5.1: "share the group-discovery work");
// called with a plain column outside any `by` clause, the whole column is
// treated as a single group and the one-element result is unwrapped back
// into a scalar.
func aggBuiltin(op query.AggOp) builtinFn {
	return func(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
		if len(args) != 1 {
			return nil, rayerr.Arity(1, len(args), 0)
		}
		col := args[0]
		if col.Tag == value.TMapFilter {
			collected, err := relop.FilterCollect(ctx.Heap, col)
			if err != nil {
				return nil, err
			}
			col = collected
		}
		if col.Tag == value.TMapGroup {
			qf := ctx.Query()
			if qf == nil {
				return nil, rayerr.Domain(0, "no active query for grouped aggregate")
			}
			ga, ok := qf.GroupState.(*query.GroupAssignment)
			if !ok || ga == nil {
				return nil, rayerr.Domain(0, "group state")
			}
			return query.Aggregate(ctx.Heap, vm.pool, col.MapGroupBase(), *ga, op)
		}

		n := int(col.Len)
		if n == 0 {
			if op == query.AggCount {
				return value.NewI64Atom(0), nil
			}
			return value.NewI64Atom(value.NullI64), nil
		}
		ga := singleGroup(ctx, n)
		result, err := query.Aggregate(ctx.Heap, vm.pool, col, ga, op)
		if err != nil {
			return nil, err
		}
		return scalarize(result)
	}
}

// singleGroup builds a GroupAssignment putting every one of n rows into
// group 0, reusing pkg/query's own group-discovery pass over a constant
// key column rather than hand-building the (unexported) result struct.
func singleGroup(ctx *vmctx.Context, n int) query.GroupAssignment {
	key := value.NewVector(ctx.Heap, value.TI64, n)
	d := value.I64(key)
	for i := range d {
		d[i] = 0
	}
	ga := query.GroupRows([]*value.Value{key}, n)
	ctx.Drop(key)
	return ga
}

// scalarize unwraps a length-1 aggregate result vector back into the atom
// an ungrouped `sum`/`count`/etc. call is expected to return.
func scalarize(vec *value.Value) (*value.Value, error) {
	switch value.VectorOf(vec.Tag) {
	case value.TI64, value.TTimestamp, value.TSymbol:
		return value.NewI64Atom(value.I64(vec)[0]), nil
	case value.TF64:
		return value.NewF64Atom(value.F64(vec)[0]), nil
	case value.TI32, value.TDate, value.TTime:
		return value.NewI32Atom(value.I32(vec)[0]), nil
	case value.TI16:
		return value.NewI16Atom(value.I16(vec)[0]), nil
	default:
		return vec, nil
	}
}

// innerJoinBuiltin and leftJoinBuiltin both take (keys, left, right): keys
// a SYMBOL vector of column names present under the same names on both
// sides. inner-join filters left down to matched rows before joining, so
// the merged output holds no null-filled right-only columns; lj (left
// join) is pkg/relop.Join directly, which already keeps every left row.
func innerJoinBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	left, right, leftIdx, rightIdx, err := resolveJoinArgs(vm, args)
	if err != nil {
		return nil, err
	}
	hits := relop.JoinIndices(left, right, leftIdx, rightIdx)
	matched := make([]int64, 0, len(hits))
	for i, h := range hits {
		if h != value.NullI64 {
			matched = append(matched, int64(i))
		}
	}
	filteredLeft, err := gatherTableRows(ctx, left, matched)
	if err != nil {
		return nil, err
	}
	return relop.Join(ctx.Heap, filteredLeft, right, leftIdx, rightIdx)
}

func leftJoinBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	left, right, leftIdx, rightIdx, err := resolveJoinArgs(vm, args)
	if err != nil {
		return nil, err
	}
	return relop.Join(ctx.Heap, left, right, leftIdx, rightIdx)
}

func resolveJoinArgs(vm *VM, args []*value.Value) (left, right *value.Value, leftIdx, rightIdx []int, err error) {
	if len(args) != 3 {
		return nil, nil, nil, nil, rayerr.Arity(3, len(args), 0)
	}
	keysVec, left, right := args[0], args[1], args[2]
	if value.VectorOf(keysVec.Tag) != value.TSymbol || keysVec.Tag.IsAtom() {
		return nil, nil, nil, nil, rayerr.Type("symbol vector", keysVec.Tag.String(), 0, "join")
	}
	if left.Tag != value.TTable || right.Tag != value.TTable {
		return nil, nil, nil, nil, rayerr.Type("table", left.Tag.String(), 1, "join")
	}
	ids := value.Sym(keysVec)
	leftIdx = make([]int, len(ids))
	rightIdx = make([]int, len(ids))
	for i, id := range ids {
		li, ok := columnIndexByName(left, id)
		if !ok {
			return nil, nil, nil, nil, rayerr.ValueErr(vm.syms.String(id))
		}
		ri, ok := columnIndexByName(right, id)
		if !ok {
			return nil, nil, nil, nil, rayerr.ValueErr(vm.syms.String(id))
		}
		leftIdx[i], rightIdx[i] = li, ri
	}
	return left, right, leftIdx, rightIdx, nil
}

func columnIndexByName(table *value.Value, id int64) (int, bool) {
	names := value.I64(table.TableNames())
	for i, n := range names {
		if n == id {
			return i, true
		}
	}
	return 0, false
}

func gatherTableRows(ctx *vmctx.Context, table *value.Value, ids []int64) (*value.Value, error) {
	cols := table.TableColumns().ListElems()
	out := make([]*value.Value, len(cols))
	for i, col := range cols {
		gathered, err := relop.AtIDs(ctx.Heap, col, ids)
		if err != nil {
			return nil, err
		}
		out[i] = gathered
	}
	return value.NewTable(table.TableNames(), value.NewList(out)), nil
}
