// Package relop implements spec §4.6 (filter/gather/set operations) and
// §4.7 (join).
package relop

import (
	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// Where converts a boolean vector into an I64 vector of true-positions in
// one pass, per spec §4.6.
func Where(h *heap.Heap, boolVec *value.Value) (*value.Value, error) {
	if value.VectorOf(boolVec.Tag) != value.TB8 {
		return nil, rayerr.Type("b8 vector", boolVec.Tag.String(), 0, "where")
	}
	bits := value.B8(boolVec)
	positions := make([]int64, 0, len(bits)/4)
	for i, b := range bits {
		if b {
			positions = append(positions, int64(i))
		}
	}
	out := value.NewVector(h, value.TI64, len(positions))
	copy(value.I64(out), positions)
	return out, nil
}

// AtIDs gathers vec at the given row ids, per spec §4.6.
func AtIDs(h *heap.Heap, vec *value.Value, ids []int64) (*value.Value, error) {
	tag := value.VectorOf(vec.Tag)
	if tag == value.TList {
		elems := vec.ListElems()
		out := make([]*value.Value, len(ids))
		for i, id := range ids {
			out[i] = elems[id]
		}
		return value.NewList(out), nil
	}
	out := value.NewVector(h, tag, len(ids))
	if err := gather(vec, out, ids); err != nil {
		return nil, err
	}
	return out, nil
}

func gather(src, dst *value.Value, ids []int64) error {
	switch value.VectorOf(src.Tag) {
	case value.TB8:
		s, d := value.B8(src), value.B8(dst)
		for i, id := range ids {
			d[i] = s[id]
		}
	case value.TU8, value.TC8:
		s, d := value.U8(src), value.U8(dst)
		for i, id := range ids {
			d[i] = s[id]
		}
	case value.TI16:
		s, d := value.I16(src), value.I16(dst)
		for i, id := range ids {
			d[i] = s[id]
		}
	case value.TI32, value.TDate, value.TTime:
		s, d := value.I32(src), value.I32(dst)
		for i, id := range ids {
			d[i] = s[id]
		}
	case value.TI64, value.TSymbol, value.TTimestamp:
		s, d := value.I64(src), value.I64(dst)
		for i, id := range ids {
			d[i] = s[id]
		}
	case value.TF64:
		s, d := value.F64(src), value.F64(dst)
		for i, id := range ids {
			d[i] = s[id]
		}
	default:
		return rayerr.Type("gatherable vector", src.Tag.String(), 0, "gather")
	}
	return nil
}

// FilterCollect materialises a MAPFILTER by gather, or a MAPCOMMON
// (virtual constant column of a parted partition) by expanding the
// repeated scalar into a full-length vector, per spec §4.6.
func FilterCollect(h *heap.Heap, v *value.Value) (*value.Value, error) {
	switch v.Tag {
	case value.TMapFilter:
		base := v.MapFilterBase()
		idxVec := v.MapFilterIndices()
		return AtIDs(h, base, value.I64(idxVec))
	case value.TMapCommon:
		scalar := v.MapCommonScalar()
		return expandConst(h, scalar, int(v.Len))
	default:
		return v, nil
	}
}

func expandConst(h *heap.Heap, scalar *value.Value, n int) (*value.Value, error) {
	tag := value.VectorOf(scalar.Tag)
	out := value.NewVector(h, tag, n)
	switch tag {
	case value.TB8:
		b := value.AtomB8(scalar)
		d := value.B8(out)
		for i := range d {
			d[i] = b
		}
	case value.TU8, value.TC8:
		b := value.AtomU8(scalar)
		d := value.U8(out)
		for i := range d {
			d[i] = b
		}
	case value.TI16:
		x := value.AtomI16(scalar)
		d := value.I16(out)
		for i := range d {
			d[i] = x
		}
	case value.TI32, value.TDate, value.TTime:
		x := value.AtomI32(scalar)
		d := value.I32(out)
		for i := range d {
			d[i] = x
		}
	case value.TI64, value.TSymbol, value.TTimestamp:
		x := value.AtomI64(scalar)
		d := value.I64(out)
		for i := range d {
			d[i] = x
		}
	case value.TF64:
		x := value.AtomF64(scalar)
		d := value.F64(out)
		for i := range d {
			d[i] = x
		}
	default:
		return nil, rayerr.Type("expandable scalar", scalar.Tag.String(), 0, "mapcommon")
	}
	return out, nil
}
