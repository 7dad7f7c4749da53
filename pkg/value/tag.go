// Package value implements RayforceDB's tagged object model: the closed
// union of value kinds described in spec §3, plus their reference-counted
// lifecycle.
package value

// Tag is the type discriminant carried in every value's header. An atom's
// tag is the negative of its vector counterpart's tag, e.g. a scalar I64
// carries Tag(-I64) while an I64 vector carries Tag(I64).
type Tag int8

const (
	// TNull is the sentinel NULL_OBJ tag. It has no vector counterpart.
	TNull Tag = 0

	TB8 Tag = 1 + iota
	TU8
	TC8
	TI16
	TI32
	TI64
	TF64
	TSymbol
	TDate
	TTime
	TTimestamp
	TGuid

	// Composite kinds. These never have a negative "atom" form; a bare
	// LIST/DICT/TABLE is already a single value.
	TList
	TDict
	TTable

	// Function kinds.
	TLambda
	TUnary
	TBinary
	TVary

	// Intermediates.
	TMapFilter
	TMapGroup
	TMapCommon
	TPartedI64

	// Error sentinel.
	TErr
)

// AtomTag returns the atom (negative) tag for a vector tag.
func AtomTag(vec Tag) Tag { return -vec }

// IsAtom reports whether tag denotes a scalar.
func (t Tag) IsAtom() bool { return t < 0 }

// IsVector reports whether tag denotes a contiguous typed array.
func (t Tag) IsVector() bool { return t > TNull && t <= TGuid }

// VectorOf returns the vector tag corresponding to an atom tag, or t
// unchanged if t is already a vector tag.
func VectorOf(t Tag) Tag {
	if t.IsAtom() {
		return -t
	}
	return t
}

func (t Tag) String() string {
	name, ok := tagNames[VectorOf(t)]
	if !ok {
		return "unknown"
	}
	if t.IsAtom() {
		return "atom:" + name
	}
	return name
}

var tagNames = map[Tag]string{
	TB8: "b8", TU8: "u8", TC8: "c8", TI16: "i16", TI32: "i32", TI64: "i64",
	TF64: "f64", TSymbol: "symbol", TDate: "date", TTime: "time",
	TTimestamp: "timestamp", TGuid: "guid", TList: "list", TDict: "dict",
	TTable: "table", TLambda: "lambda", TUnary: "unary", TBinary: "binary",
	TVary: "vary", TMapFilter: "mapfilter", TMapGroup: "mapgroup",
	TMapCommon: "mapcommon", TPartedI64: "partedi64", TErr: "err",
}

// Mode records where a value's payload bytes live.
type Mode uint8

const (
	// ModeHeap is the default: payload bytes are owned by the buddy heap
	// and must be returned to it when the value's refcount drops to zero.
	ModeHeap Mode = iota
	// ModeFileBacked marks a vector whose payload is a memory-mapped
	// column file (pkg/mmio); Drop unmaps instead of freeing to a heap.
	ModeFileBacked
	// ModeConst marks process-wide singletons (NULL_OBJ, ERR_OBJ) that
	// are never actually freed; Clone/Drop on them return at once without
	// touching rc.
	ModeConst
)

// Attrs holds the advisory sortedness/distinctness bits described in
// spec §3. Readers may exploit them but must check the bit first.
type Attrs uint8

const (
	AttrAsc Attrs = 1 << iota
	AttrDesc
	AttrDistinct
)

func (a Attrs) Has(bit Attrs) bool { return a&bit != 0 }
