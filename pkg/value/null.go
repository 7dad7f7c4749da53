package value

import "math"

// Per-type null sentinels (spec §3): values inside the payload, not a
// distinct type. RayforceDB follows the original's convention of using
// the type's minimum representable integer, and a canonical quiet NaN for
// floats.
const (
	NullI16 int16 = math.MinInt16
	NullI32 int32 = math.MinInt32
	NullI64 int64 = math.MinInt64
	NullU8  byte  = 0xFF
)

var NullF64 = math.NaN()

// IsNullF64 reports whether f is the null-float sentinel (any NaN bit
// pattern counts, matching spec §8 property 7's "modulo canonicalisation"
// note for wire round-trips).
func IsNullF64(f float64) bool { return math.IsNaN(f) }

// NullObj is the single interned NULL_OBJ sentinel value (spec §3).
var NullObj = &Value{Header: Header{Tag: TNull, Mode: ModeConst, rc: 1}}

// ErrObj is the single shared ERR sentinel object every failing core entry
// point returns (spec §7): the actual error context lives in the calling
// goroutine's vmctx.Context, not on this value.
var ErrObj = &Value{Header: Header{Tag: TErr, Mode: ModeConst, rc: 1}}

// IsNull reports whether v is the NULL_OBJ sentinel.
func IsNull(v *Value) bool { return v == NullObj || v.Tag == TNull }

// IsErr reports whether v is the ERR sentinel.
func IsErr(v *Value) bool { return v == ErrObj || v.Tag == TErr }
