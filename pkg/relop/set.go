package relop

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// roaringRangeLimit bounds how large a SYMBOL id can be before falling
// back to the generic hash-presence test spec §4.6 names: a roaring
// bitmap of 32-bit ids is the fast path for the common case (interned ids
// are dense small integers assigned in intern order), a hash set covers
// the general case without an unbounded-size bitmap.
const roaringRangeLimit = 1 << 28

type setKind int

const (
	setUnion setKind = iota
	setExcept
	setSect
)

// Union returns the set union of two SYMBOL vectors (spec §4.6). On the
// bitmap path the result is in ascending id order; on the hash fallback
// it keeps first-seen order (a's elements, then b's). pkg/query does not
// call it.
func Union(h *heap.Heap, a, b *value.Value) (*value.Value, error) { return setOp(h, a, b, setUnion) }

// Except returns the set difference a - b.
func Except(h *heap.Heap, a, b *value.Value) (*value.Value, error) { return setOp(h, a, b, setExcept) }

// Sect returns the set intersection of a and b.
func Sect(h *heap.Heap, a, b *value.Value) (*value.Value, error) { return setOp(h, a, b, setSect) }

func setOp(h *heap.Heap, a, b *value.Value, kind setKind) (*value.Value, error) {
	if fitsRoaring(a) && fitsRoaring(b) {
		return setOpRoaring(h, a, b, kind), nil
	}
	return setOpHash(h, a, b, kind), nil
}

func fitsRoaring(v *value.Value) bool {
	for _, id := range value.I64(v) {
		if id < 0 || id >= roaringRangeLimit {
			return false
		}
	}
	return true
}

func setOpRoaring(h *heap.Heap, a, b *value.Value, kind setKind) *value.Value {
	bmA, bmB := toBitmap(a), toBitmap(b)
	var result *roaring.Bitmap
	switch kind {
	case setUnion:
		result = roaring.Or(bmA, bmB)
	case setExcept:
		result = roaring.AndNot(bmA, bmB)
	case setSect:
		result = roaring.And(bmA, bmB)
	}
	return fromBitmap(h, result)
}

func toBitmap(v *value.Value) *roaring.Bitmap {
	bm := roaring.New()
	for _, id := range value.I64(v) {
		bm.Add(uint32(id))
	}
	return bm
}

func fromBitmap(h *heap.Heap, bm *roaring.Bitmap) *value.Value {
	ids := bm.ToArray()
	out := value.NewVector(h, value.TSymbol, len(ids))
	dst := value.I64(out)
	for i, id := range ids {
		dst[i] = int64(id)
	}
	return out
}

// setOpHash is the general-range fallback spec §4.6 asks for directly
// ("operate via hash presence tests"): a plain Go map as the membership
// test, used once ids exceed the roaring range.
func setOpHash(h *heap.Heap, a, b *value.Value, kind setKind) *value.Value {
	inB := make(map[int64]struct{}, len(value.I64(b)))
	for _, id := range value.I64(b) {
		inB[id] = struct{}{}
	}
	seen := make(map[int64]struct{})
	var out []int64
	add := func(id int64) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	switch kind {
	case setUnion:
		for _, id := range value.I64(a) {
			add(id)
		}
		for _, id := range value.I64(b) {
			add(id)
		}
	case setExcept:
		for _, id := range value.I64(a) {
			if _, present := inB[id]; !present {
				add(id)
			}
		}
	case setSect:
		for _, id := range value.I64(a) {
			if _, present := inB[id]; present {
				add(id)
			}
		}
	}
	result := value.NewVector(h, value.TSymbol, len(out))
	copy(value.I64(result), out)
	return result
}
