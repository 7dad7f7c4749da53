// Package sortx implements spec §4.4: producing a stable permutation index
// vector over a typed vector, dispatched by element width and size, with
// sequential and parallel (pkg/sched-backed) paths.
package sortx

import (
	"math"

	"github.com/rayforcedb/rayforce/pkg/value"
)

// Scope is the one-pass (min, max, null_count) summary spec §4.4 names as
// an input to sort dispatch; pkg/query's group-by reuses it to decide
// between the perfect-hash and composite hash-table aggregation
// strategies (spec §4.5.1), since both decisions are "is this column's
// observed range small enough to index directly."
type Scope struct {
	Min, Max  int64
	NullCount int
}

// Range reports max-min as a uint64, saturating at 0 when every value is
// null (Min/Max are left at their zero value in that case).
func (s Scope) Range() uint64 {
	if s.Max < s.Min {
		return 0
	}
	return uint64(s.Max - s.Min)
}

// ScopeOf computes a vector's scope in one pass, dispatched by tag.
func ScopeOf(vec *value.Value) Scope {
	switch value.VectorOf(vec.Tag) {
	case value.TI64, value.TSymbol, value.TTimestamp:
		return ScopeI64(value.I64(vec), func(v int64) bool { return v == value.NullI64 })
	case value.TI32, value.TDate, value.TTime:
		return ScopeI32(value.I32(vec), func(v int32) bool { return v == value.NullI32 })
	case value.TI16:
		src := value.I16(vec)
		i64 := make([]int64, len(src))
		for i, v := range src {
			i64[i] = int64(v)
		}
		return ScopeI64(i64, func(v int64) bool { return int16(v) == value.NullI16 })
	case value.TF64:
		return ScopeF64(value.F64(vec))
	case value.TU8, value.TC8:
		src := value.U8(vec)
		i64 := make([]int64, len(src))
		for i, v := range src {
			i64[i] = int64(v)
		}
		return ScopeI64(i64, func(v int64) bool { return byte(v) == value.NullU8 })
	default:
		return Scope{}
	}
}

// ScopeI64 computes (min, max, null_count) over vec, using isNull to
// identify the type's null sentinel.
func ScopeI64(vec []int64, isNull func(int64) bool) Scope {
	s := Scope{Min: math.MaxInt64, Max: math.MinInt64}
	for _, v := range vec {
		if isNull(v) {
			s.NullCount++
			continue
		}
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	if s.NullCount == len(vec) {
		s.Min, s.Max = 0, 0
	}
	return s
}

// ScopeI32 is ScopeI64 for a narrower element width.
func ScopeI32(vec []int32, isNull func(int32) bool) Scope {
	i64 := make([]int64, len(vec))
	for i, v := range vec {
		i64[i] = int64(v)
	}
	return ScopeI64(i64, func(v int64) bool { return isNull(int32(v)) })
}

// ScopeF64 computes scope over a float column's bit pattern, treating any
// NaN as null per spec §3's per-type null-sentinel convention.
func ScopeF64(vec []float64) Scope {
	s := Scope{Min: math.MaxInt64, Max: math.MinInt64}
	nonNull := false
	for _, v := range vec {
		if math.IsNaN(v) {
			s.NullCount++
			continue
		}
		bits := int64(math.Float64bits(v))
		if !nonNull || bits < s.Min {
			s.Min = bits
		}
		if !nonNull || bits > s.Max {
			s.Max = bits
		}
		nonNull = true
	}
	if !nonNull {
		s.Min, s.Max = 0, 0
	}
	return s
}
