package query

import (
	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/relop"
	"github.com/rayforcedb/rayforce/pkg/sched"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
)

// Evaluator resolves an expression value-tree into a concrete result,
// against the query frame ctx currently has on its stack. Select takes it
// as a parameter instead of importing pkg/vm directly: vm's builtins need
// to call back into pkg/query (to run an aggregate over a MAPGROUP), and
// pkg/query needs to call into vm (to evaluate from/where/by/projection
// expressions), so one of the two must be injected — pkg/vm's select
// builtin passes its own Eval method here.
type Evaluator func(ctx *vmctx.Context, expr *value.Value) (*value.Value, error)

// reserved key names spec §4.5 names as driving the pipeline; every other
// DICT key is a projected column.
const (
	keyFrom  = "from"
	keyWhere = "where"
	keyBy    = "by"
)

type projField struct {
	name int64
	expr *value.Value
}

// Select runs the fetch/filter/group/project pipeline of spec §4.5 over
// query, a DICT whose SYMBOL keys select the reserved pipeline stages
// plus the output projection.
func Select(ctx *vmctx.Context, pool *sched.Pool, syms *symtab.Table, query *value.Value, eval Evaluator) (*value.Value, error) {
	if query.Tag != value.TDict {
		return nil, rayerr.Type("dict", query.Tag.String(), 0, "select")
	}
	keys := value.I64(query.DictKeys())
	vals := query.DictValues().ListElems()

	fromID, _ := syms.Lookup(keyFrom)
	whereID, hasWhere := syms.Lookup(keyWhere)
	byID, hasBy := syms.Lookup(keyBy)

	var fromExpr, whereExpr, byExpr *value.Value
	var projections []projField
	for i, k := range keys {
		switch {
		case k == fromID:
			fromExpr = vals[i]
		case hasWhere && k == whereID:
			whereExpr = vals[i]
		case hasBy && k == byID:
			byExpr = vals[i]
		default:
			projections = append(projections, projField{name: k, expr: vals[i]})
		}
	}
	if fromExpr == nil {
		return nil, rayerr.Domain(0, "from")
	}

	// Step 1: fetch.
	table, err := eval(ctx, fromExpr)
	if err != nil {
		return nil, err
	}
	if table.Tag != value.TTable {
		return nil, rayerr.Type("table", table.Tag.String(), 0, "from")
	}
	ctx.PushQuery(&vmctx.QueryFrame{Table: table})
	defer ctx.PopQuery()

	// Step 2: filter.
	if whereExpr != nil {
		boolVec, err := eval(ctx, whereExpr)
		if err != nil {
			return nil, err
		}
		idx, err := relop.Where(ctx.Heap, boolVec)
		if err != nil {
			return nil, err
		}
		filtered := wrapColumns(table, func(col *value.Value) *value.Value {
			return value.NewMapFilter(col, idx)
		})
		ctx.Query().Table = filtered
		table = filtered
	}

	// Step 3: group. The groups are discovered here, once, and the
	// GroupAssignment is cached on the query frame so every aggregate in
	// the projection reuses it. Every column of the table, key columns
	// included, is wrapped as MAPGROUP.
	var keyNames []int64
	var keyCols, groupKeys []*value.Value
	if byExpr != nil {
		var err error
		keyNames, keyCols, err = evalGroupKeys(ctx, byExpr, eval)
		if err != nil {
			return nil, err
		}
		groupBy := value.NewList(keyCols)
		n := int(keyCols[0].Len)
		ga := groupRows(keyCols, n)
		ctx.Query().GroupBy = groupBy
		ctx.Query().GroupState = &ga
		for _, kc := range keyCols {
			tag := value.VectorOf(kc.Tag)
			out := value.NewVector(ctx.Heap, tag, int(ga.numGroups))
			for g, row := range ga.repRow {
				err = writeNull(out, g, tag)
				if row >= 0 {
					err = gatherOne(kc, out, g, row)
				}
				if err != nil {
					return nil, err
				}
			}
			groupKeys = append(groupKeys, out)
		}

		grouped := wrapColumns(table, func(col *value.Value) *value.Value {
			return value.NewMapGroup(col, groupBy)
		})
		ctx.Query().Table = grouped
		table = grouped
	}

	// Step 4: project. Per §4.5 step 4 ("pairing the evaluated keys and
	// values"), the by-clause's key columns lead the output, ahead of the
	// projected fields, with one value per group taken from the group's
	// first row (null for an empty perfect-hash slot).
	outNames := make([]int64, 0, len(keyNames)+len(projections))
	outCols := make([]*value.Value, 0, len(keyCols)+len(projections))
	outNames = append(outNames, keyNames...)
	outCols = append(outCols, groupKeys...)
	for _, p := range projections {
		v, err := eval(ctx, p.expr)
		if err != nil {
			return nil, err
		}
		if v.Tag == value.TMapFilter {
			v, err = relop.FilterCollect(ctx.Heap, v)
			if err != nil {
				return nil, err
			}
		}
		outNames = append(outNames, p.name)
		outCols = append(outCols, v)
	}

	names := value.NewVector(ctx.Heap, value.TSymbol, len(outNames))
	copy(value.I64(names), outNames)
	return value.NewTable(names, value.NewList(outCols)), nil
}

// evalGroupKeys implements spec §4.5 step 3's "single symbol → single
// column; dict → named keys with evaluated values," also returning the
// column name(s) the key(s) are assembled back into the result under
// (step 4's "pairing the evaluated keys and values"): the dict form's own
// keys, or the referenced column's own symbol for the single-symbol form.
func evalGroupKeys(ctx *vmctx.Context, byExpr *value.Value, eval Evaluator) ([]int64, []*value.Value, error) {
	if byExpr.Tag == value.TDict {
		names := value.I64(byExpr.DictKeys())
		vals := byExpr.DictValues().ListElems()
		out := make([]*value.Value, len(vals))
		for i, expr := range vals {
			v, err := eval(ctx, expr)
			if err != nil {
				return nil, nil, err
			}
			out[i] = v
		}
		outNames := make([]int64, len(names))
		copy(outNames, names)
		return outNames, out, nil
	}
	col, err := eval(ctx, byExpr)
	if err != nil {
		return nil, nil, err
	}
	if !isSymbolAtom(byExpr) {
		return nil, nil, rayerr.Type("symbol", byExpr.Tag.String(), 0, "by")
	}
	return []int64{value.AtomI64(byExpr)}, []*value.Value{col}, nil
}

// isSymbolAtom reports whether v is a scalar SYMBOL, the shape a
// single-symbol `by` clause names its group-key column with.
func isSymbolAtom(v *value.Value) bool {
	return v.Tag.IsAtom() && value.VectorOf(v.Tag) == value.TSymbol
}

// wrapColumns rebuilds table with every column replaced by wrap(column),
// keeping the same column-name vector.
func wrapColumns(table *value.Value, wrap func(*value.Value) *value.Value) *value.Value {
	cols := table.TableColumns().ListElems()
	out := make([]*value.Value, len(cols))
	for i, col := range cols {
		out[i] = wrap(col)
	}
	return value.NewTable(table.TableNames(), value.NewList(out))
}
