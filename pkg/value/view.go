package value

import "unsafe"

// The accessors below reinterpret a vector's backing bytes (or an atom's
// inline scalar word) through the type its tag names, matching the
// "dispatch resolved once at chunk boundaries, monomorphic inner loop"
// guidance for the tagged-union model: callers switch on Tag exactly once
// and then work with a normal Go slice.

func B8(v *Value) []bool     { return unsafe.Slice((*bool)(unsafe.Pointer(&v.data[0])), v.Len) }
func U8(v *Value) []byte     { return v.data[:v.Len] }
func C8(v *Value) []byte     { return v.data[:v.Len] }
func I16(v *Value) []int16   { return castSlice[int16](v) }
func I32(v *Value) []int32   { return castSlice[int32](v) }
func I64(v *Value) []int64   { return castSlice[int64](v) }
func F64(v *Value) []float64 { return castSlice[float64](v) }
func Sym(v *Value) []int64   { return castSlice[int64](v) } // interned symbol ids
func Date(v *Value) []int32  { return castSlice[int32](v) }
func Time(v *Value) []int32  { return castSlice[int32](v) }
func Ts(v *Value) []int64    { return castSlice[int64](v) }

func castSlice[T any](v *Value) []T {
	if len(v.data) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&v.data[0])), v.Len)
}

// AtomI64 returns an I64/DATE/TIME/TIMESTAMP/SYMBOL atom's scalar.
func AtomI64(v *Value) int64 { return int64(v.scalar) }

// AtomI32 returns an I32/DATE/TIME atom's scalar.
func AtomI32(v *Value) int32 { return int32(v.scalar) }

// AtomI16 returns an I16 atom's scalar.
func AtomI16(v *Value) int16 { return int16(v.scalar) }

// AtomF64 returns an F64 atom's scalar, reinterpreting the inline bits.
func AtomF64(v *Value) float64 { return *(*float64)(v.scalarPtr()) }

// AtomB8 returns a B8 atom's scalar.
func AtomB8(v *Value) bool { return v.scalar != 0 }

// AtomU8 returns a U8/C8 atom's scalar.
func AtomU8(v *Value) byte { return byte(v.scalar) }

// AtomGuid returns a GUID atom's 16 bytes.
func AtomGuid(v *Value) [16]byte {
	var out [16]byte
	*(*uint64)(unsafe.Pointer(&out[0])) = v.scalar
	*(*uint64)(unsafe.Pointer(&out[8])) = v.scalarHi
	return out
}

// NewF64Atom is a convenience constructor bit-casting a float64 into the
// inline scalar word.
func NewF64Atom(f float64) *Value {
	return NewAtom(AtomTag(TF64), *(*uint64)(unsafe.Pointer(&f)), 0)
}

// NewI64Atom, NewI32Atom, NewB8Atom mirror NewF64Atom for the other
// fixed-width scalar kinds.
func NewI64Atom(i int64) *Value  { return NewAtom(AtomTag(TI64), uint64(i), 0) }
func NewI32Atom(i int32) *Value  { return NewAtom(AtomTag(TI32), uint64(uint32(i)), 0) }
func NewI16Atom(i int16) *Value  { return NewAtom(AtomTag(TI16), uint64(uint16(i)), 0) }
func NewB8Atom(b bool) *Value {
	var s uint64
	if b {
		s = 1
	}
	return NewAtom(AtomTag(TB8), s, 0)
}
func NewSymAtom(id int64) *Value { return NewAtom(AtomTag(TSymbol), uint64(id), 0) }
