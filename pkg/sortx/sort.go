package sortx

import (
	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/sched"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// Sort produces the index vector p described in spec §4.4: an I64 vector
// such that gathering vec by p yields vec in ascending (or, if desc,
// descending) order, stable by original position for equal keys, nulls
// first ascending / last descending. pool may be nil, in which case
// sorting always runs on the calling goroutine.
func Sort(h *heap.Heap, vec *value.Value, desc bool, pool *sched.Pool) (*value.Value, error) {
	n := int(vec.Len)
	if short := shortCircuit(vec, desc, n, pool); short != nil {
		return toIndexVector(h, short), nil
	}

	tag := value.VectorOf(vec.Tag)
	var perm []int64
	switch tag {
	case value.TB8, value.TU8, value.TC8:
		perm = sortBytes(vec, tag, desc, pool)
	case value.TI16:
		perm = sortI16(vec, desc, pool)
	case value.TI32, value.TDate, value.TTime:
		perm = sortI32(vec, desc, pool)
	case value.TI64, value.TTimestamp, value.TSymbol:
		perm = sortI64(vec, desc, pool)
	case value.TF64:
		perm = sortF64(vec, desc, pool)
	case value.TList:
		perm = sortList(vec, desc)
	default:
		return nil, rayerr.Type("sortable vector", tag.String(), 0, "vec")
	}
	return toIndexVector(h, perm), nil
}

// shortCircuit implements spec §4.4's "sorted/descending vectors
// short-circuit": ASC-flagged vectors sorting ascending (or DESC-flagged
// sorting descending) return iota; the opposite-attribute case returns
// reverse iota. Returns nil when neither attribute lets sort skip work.
func shortCircuit(vec *value.Value, desc bool, n int, pool *sched.Pool) []int64 {
	asc := vec.Attrs.Has(value.AttrAsc)
	dsc := vec.Attrs.Has(value.AttrDesc)
	switch {
	case asc && !desc, dsc && desc:
		return parallelIota(n, pool, false)
	case asc && desc, dsc && !desc:
		return parallelIota(n, pool, true)
	default:
		return nil
	}
}

// parallelIota builds iota/reverse-iota, splitting the fill across the
// pool for large n per spec §4.4 ("both computed in parallel").
func parallelIota(n int, pool *sched.Pool, reverse bool) []int64 {
	out := make([]int64, n)
	if pool == nil || pool.N() <= 1 || n < ParallelRowThreshold {
		fillIota(out, 0, n, reverse)
		return out
	}
	bounds := chunkBounds(n, pool.SplitBy(n, 1, false))
	pool.Prepare()
	for c := 0; c < len(bounds)-1; c++ {
		lo, hi := bounds[c], bounds[c+1]
		pool.AddTask(func(ctx *sched.ExecCtx, argv [sched.MaxTaskArgs]interface{}) (*value.Value, error) {
			fillIota(out, lo, hi, reverse)
			return nil, nil
		})
	}
	pool.Run()
	return out
}

func fillIota(out []int64, lo, hi int, reverse bool) {
	n := len(out)
	for i := lo; i < hi; i++ {
		if reverse {
			out[i] = int64(n - 1 - i)
		} else {
			out[i] = int64(i)
		}
	}
}

func toIndexVector(h *heap.Heap, perm []int64) *value.Value {
	out := value.NewVector(h, value.TI64, len(perm))
	copy(value.I64(out), perm)
	return out
}

func dispatchRadix(keys []uint64, nBytes int, pool *sched.Pool) []int64 {
	return radixSortParallel(keys, nBytes, pool)
}

func sortBytes(vec *value.Value, tag value.Tag, desc bool, pool *sched.Pool) []int64 {
	n := int(vec.Len)
	keys := make([]uint64, n)
	if tag == value.TB8 {
		bits := value.B8(vec)
		for i, b := range bits {
			if b {
				keys[i] = 1
			}
		}
	} else {
		bytes := value.U8(vec)
		for i, b := range bytes {
			if tag == value.TU8 {
				b++ // NullU8 (0xFF) wraps to 0, the lowest key, so nulls sort first
			}
			keys[i] = biasU8(b)
		}
	}
	if desc {
		complement(keys, 0xFF)
	}
	return dispatchRadix(keys, 1, pool)
}

func sortI16(vec *value.Value, desc bool, pool *sched.Pool) []int64 {
	src := value.I16(vec)
	keys := make([]uint64, len(src))
	for i, v := range src {
		keys[i] = biasI16(v)
	}
	if desc {
		complement(keys, 0xFFFF)
	}
	return dispatchRadix(keys, 2, pool)
}

func sortI32(vec *value.Value, desc bool, pool *sched.Pool) []int64 {
	src := value.I32(vec)
	keys := make([]uint64, len(src))
	for i, v := range src {
		keys[i] = biasI32(v)
	}
	if desc {
		complement(keys, 0xFFFFFFFF)
	}
	return dispatchRadix(keys, 4, pool)
}

func sortI64(vec *value.Value, desc bool, pool *sched.Pool) []int64 {
	src := value.I64(vec)
	keys := make([]uint64, len(src))
	for i, v := range src {
		keys[i] = biasI64(v)
	}
	if desc {
		complement(keys, ^uint64(0))
	}
	return dispatchRadix(keys, 8, pool)
}

func sortF64(vec *value.Value, desc bool, pool *sched.Pool) []int64 {
	src := value.F64(vec)
	keys := make([]uint64, len(src))
	for i, v := range src {
		keys[i] = biasF64(v)
	}
	if desc {
		complement(keys, ^uint64(0))
	}
	return dispatchRadix(keys, 8, pool)
}

// sortList sorts a LIST by an element-wise comparator per spec §4.4;
// heterogeneous general lists are rare enough (used for e.g. sorting a
// LIST of GUID or LIST-of-LIST columns) that a stable comparison sort is
// the right tool rather than a radix pass over an undefined key width.
func sortList(vec *value.Value, desc bool) []int64 {
	elems := vec.ListElems()
	perm := iota64(len(elems))
	stableSortInts(perm, func(a, b int64) bool {
		c := compareValues(elems[a], elems[b])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return perm
}

// complement flips every set bit within the low `mask` bits of each key,
// turning an ascending sort into a stable descending one (see bias.go for
// how keys are built): unused high bits stay
// zero across every element, so the transform doesn't disturb ordering.
func complement(keys []uint64, mask uint64) {
	for i, k := range keys {
		keys[i] = k ^ mask
	}
}
