package value

import (
	"sync/atomic"
	"unsafe"

	"github.com/rayforcedb/rayforce/pkg/heap"
)

// Value is a handle to a tagged object: the header plus whichever payload
// shape its tag implies. Exactly one of the payload fields below is
// meaningful for any given Tag:
//
//   - inline scalar payloads (all atom types, plus GUID's second word) use
//     scalar/scalarHi;
//   - vector payloads (B8..GUID vectors) use data, a byte slice sourced
//     from a heap.Heap and reinterpreted through the typed accessors in
//     view.go;
//   - composite payloads (LIST, DICT, TABLE, MAPFILTER, MAPGROUP,
//     MAPCOMMON, PARTEDI64) use children (and keys for DICT/TABLE);
//   - function payloads (LAMBDA/UNARY/BINARY/VARY) use fn.
type Value struct {
	Header

	scalar   uint64 // inline atom payload
	scalarHi uint64 // GUID high 8 bytes

	data []byte     // vector backing bytes
	pool *heap.Heap // heap that owns data, nil for ModeConst/ModeFileBacked

	children []*Value // LIST elements, DICT values, TABLE columns, MAP pair members
	keys     *Value   // TABLE column-name SYMBOL vector, or DICT key vector

	fn *Func // function payload for LAMBDA/UNARY/BINARY/VARY
}

// Func is the payload of a function-kind value.
type Func struct {
	Kind    Tag      // TLambda, TUnary, TBinary or TVary
	Params  []string // formal parameter names, empty for VARY
	Body    *Value   // AST/value-tree body for LAMBDA, nil for VARY
	Closure *Env     // captured lexical environment, nil for VARY/global lambdas
	Native  func(args []*Value) (*Value, error)
	Name    string // builtin name, for VARY and diagnostics
}

// Env is a minimal lexical scope used only to carry LAMBDA closures; the
// actual evaluator that walks these lives in pkg/vm.
type Env struct {
	Vars   map[string]*Value
	Parent *Env
}

func (e *Env) Lookup(name string) (*Value, bool) {
	for env := e; env != nil; env = env.Parent {
		if v, ok := env.Vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// elemSize returns the payload width in bytes for a vector element type.
func elemSize(t Tag) int {
	switch VectorOf(t) {
	case TB8, TU8, TC8:
		return 1
	case TI16:
		return 2
	case TI32, TDate, TTime:
		return 4
	case TI64, TF64, TTimestamp, TSymbol:
		return 8
	case TGuid:
		return 16
	default:
		return 0
	}
}

// newHeader builds a header with rc=1, per spec §3's lifecycle contract.
func newHeader(tag Tag, mode Mode, length uint32) Header {
	return Header{Tag: tag, Mode: mode, rc: 1, Len: length}
}

// NewAtom allocates a scalar of the given atom tag with an inline payload.
// scalar holds the low 64 bits (bool/byte/char/i16/i32/i64/f64 bit pattern,
// interned symbol id, date/time/timestamp), scalarHi the GUID high word.
func NewAtom(tag Tag, scalar, scalarHi uint64) *Value {
	if !tag.IsAtom() {
		tag = -tag
	}
	return &Value{Header: newHeader(tag, ModeConst, 0), scalar: scalar, scalarHi: scalarHi}
}

// NewVector allocates a vector of n elements of the given vector tag from
// h, returning nil (matching heap.Alloc's OOM contract) if the heap cannot
// satisfy the request.
func NewVector(h *heap.Heap, tag Tag, n int) *Value {
	tag = VectorOf(tag)
	size := elemSize(tag) * n
	var buf []byte
	if size > 0 {
		buf = h.Alloc(size)
		if buf == nil {
			return nil
		}
	}
	return &Value{Header: newHeader(tag, ModeHeap, uint32(n)), data: buf, pool: h}
}

// WrapFileBacked builds a vector value over externally mapped bytes (used
// by pkg/mmio); Drop unmaps instead of returning the bytes to a heap.
func WrapFileBacked(tag Tag, n int, data []byte) *Value {
	v := &Value{Header: newHeader(VectorOf(tag), ModeFileBacked, uint32(n)), data: data}
	return v
}

// NewList allocates a LIST value owning refs to elems (their refcounts are
// not bumped: the caller transfers ownership of each element into the
// list, matching the allocation helpers' rc=1 contract for the whole).
func NewList(elems []*Value) *Value {
	return &Value{Header: newHeader(TList, ModeHeap, uint32(len(elems))), children: elems}
}

// ListElems returns a LIST's elements.
func (v *Value) ListElems() []*Value { return v.children }

// NewDict allocates a DICT pairing parallel keys/values vectors or lists.
func NewDict(keys, values *Value) *Value {
	return &Value{Header: newHeader(TDict, ModeHeap, 0), keys: keys, children: []*Value{values}}
}

// DictKeys returns the DICT's key-side SYMBOL vector.
func (v *Value) DictKeys() *Value { return v.keys }

// DictValues returns the DICT's value-side payload (a vector or LIST).
func (v *Value) DictValues() *Value { return v.children[0] }

// NewTable allocates a TABLE from a SYMBOL vector of column names and a
// LIST of equal-length column vectors, per spec §3's TABLE invariant.
func NewTable(names *Value, columns *Value) *Value {
	return &Value{Header: newHeader(TTable, ModeHeap, 0), keys: names, children: []*Value{columns}}
}

func (v *Value) TableNames() *Value   { return v.keys }
func (v *Value) TableColumns() *Value { return v.children[0] }

// RowCount returns a TABLE's row count: the length of its first column,
// or 0 for a zero-column table.
func (v *Value) RowCount() int {
	cols := v.TableColumns()
	if cols.Len == 0 {
		return 0
	}
	return int(cols.children[0].Len)
}

// NewFunc allocates a function-kind value.
func NewFunc(kind Tag, fn *Func) *Value {
	return &Value{Header: newHeader(kind, ModeConst, 0), fn: fn}
}

func (v *Value) AsFunc() *Func { return v.fn }

// NewMapFilter builds the MAPFILTER deferred-materialization intermediate
// (spec §4.5 step 2): base column plus the index vector selecting its
// visible rows.
func NewMapFilter(base, indices *Value) *Value {
	return &Value{Header: newHeader(TMapFilter, ModeHeap, indices.Len), children: []*Value{base, indices}}
}

func (v *Value) MapFilterBase() *Value    { return v.children[0] }
func (v *Value) MapFilterIndices() *Value { return v.children[1] }

// NewMapGroup builds the MAPGROUP intermediate (spec §4.5 step 3): base
// column plus a group-descriptor LIST of key columns.
func NewMapGroup(base, groupBy *Value) *Value {
	return &Value{Header: newHeader(TMapGroup, ModeHeap, base.Len), children: []*Value{base, groupBy}}
}

func (v *Value) MapGroupBase() *Value    { return v.children[0] }
func (v *Value) MapGroupGroupBy() *Value { return v.children[1] }

// NewMapCommon builds a virtual constant column repeated across a
// partition of a PARTED table.
func NewMapCommon(scalar *Value, length int) *Value {
	return &Value{Header: newHeader(TMapCommon, ModeHeap, uint32(length)), children: []*Value{scalar}}
}

func (v *Value) MapCommonScalar() *Value { return v.children[0] }

// NewPartedI64 builds the per-partition index-vector list used by parted
// table scans.
func NewPartedI64(perPartition []*Value) *Value {
	return &Value{Header: newHeader(TPartedI64, ModeHeap, uint32(len(perPartition))), children: perPartition}
}

// Bytes exposes a vector's raw backing bytes.
func (v *Value) Bytes() []byte { return v.data }

// AtomicRC loads the refcount with an atomic read, for callers operating
// outside vmctx's rc_sync toggle who still need a safe snapshot (e.g.
// diagnostics, leak-detection tests).
func (v *Value) AtomicRC() uint32 { return atomic.LoadUint32(&v.rc) }

// scalarPtr returns an unsafe pointer to the inline scalar payload's low
// word, used by numeric accessors in view.go.
func (v *Value) scalarPtr() unsafe.Pointer { return unsafe.Pointer(&v.scalar) }
