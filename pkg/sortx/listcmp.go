package sortx

import (
	"bytes"
	"math"
	"sort"

	"github.com/rayforcedb/rayforce/pkg/value"
)

// stableSortInts sorts perm in place by less, preserving relative order
// of equal elements. Comparator-based sorting over an arbitrary element
// type has no ecosystem library counterpart in the retrieved pack (every
// domain sort dependency there is a fixed-width radix/counting
// implementation, not a generic comparator sort) so stdlib sort.SliceStable
// is the right tool for this one general-purpose LIST path.
func stableSortInts(perm []int64, less func(a, b int64) bool) {
	sort.SliceStable(perm, func(i, j int) bool { return less(perm[i], perm[j]) })
}

// compareValues orders two atoms the way spec §4.4's null-first-ascending
// convention requires: null sorts before any non-null value, and among
// non-null values the natural numeric/byte order applies.
func compareValues(a, b *value.Value) int {
	an, bn := value.IsNull(a), value.IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	tag := value.VectorOf(a.Tag)
	switch tag {
	case value.TI64, value.TSymbol, value.TTimestamp:
		return cmpI64(value.AtomI64(a), value.AtomI64(b))
	case value.TI32, value.TDate, value.TTime:
		return cmpI64(int64(value.AtomI32(a)), int64(value.AtomI32(b)))
	case value.TI16:
		return cmpI64(int64(value.AtomI16(a)), int64(value.AtomI16(b)))
	case value.TF64:
		return cmpF64(value.AtomF64(a), value.AtomF64(b))
	case value.TU8, value.TC8:
		return cmpI64(int64(value.AtomU8(a)), int64(value.AtomU8(b)))
	case value.TB8:
		ab, bb := value.AtomB8(a), value.AtomB8(b)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case value.TGuid:
		ag, bg := value.AtomGuid(a), value.AtomGuid(b)
		return bytes.Compare(ag[:], bg[:])
	default:
		return 0
	}
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpF64(a, b float64) int {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
