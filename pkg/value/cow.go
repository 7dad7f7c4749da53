package value

import "github.com/rayforcedb/rayforce/pkg/heap"

// Cow returns v unchanged if it is uniquely owned (rc == 1); otherwise it
// allocates and returns a deep copy with rc == 1, dropping the caller's
// reference to the original. h is the heap new vector payloads are carved
// from — normally the calling goroutine's own heap.
func Cow(sync bool, h *heap.Heap, v *Value) *Value {
	if v == nil || v.rc == 1 {
		return v
	}
	dup := deepCopy(h, v)
	Drop(sync, v)
	return dup
}

func deepCopy(h *heap.Heap, v *Value) *Value {
	switch {
	case v.Tag.IsAtom():
		return &Value{Header: newHeader(v.Tag, ModeConst, 0), scalar: v.scalar, scalarHi: v.scalarHi}
	case v.Tag.IsVector():
		dup := NewVector(h, v.Tag, int(v.Len))
		copy(dup.data, v.data)
		dup.Attrs = v.Attrs
		return dup
	case v.Tag == TList:
		children := make([]*Value, len(v.children))
		for i, c := range v.children {
			children[i] = Clone(false, c)
		}
		return NewList(children)
	case v.Tag == TDict:
		return NewDict(Clone(false, v.keys), Clone(false, v.children[0]))
	case v.Tag == TTable:
		return NewTable(Clone(false, v.keys), Clone(false, v.children[0]))
	default:
		// Function and intermediate kinds are treated as immutable once
		// built; cow on them just bumps the refcount to 1 conceptually by
		// returning a shared clone, matching how the evaluator treats
		// closures.
		return Clone(false, v)
	}
}
