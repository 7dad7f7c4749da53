package query

import (
	"math"

	"github.com/rayforcedb/rayforce/pkg/hashtable"
	"github.com/rayforcedb/rayforce/pkg/sortx"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// PerfectHashThreshold and ParallelAggThreshold are the constants named in
// spec §4.5.1 ("e.g. 65 536" / "N >= PARALLEL_AGG_THRESHOLD"), recovered
// as exact values from original_source/core (see SPEC_FULL.md
// "Supplemented features").
const (
	PerfectHashThreshold = 65536
	ParallelAggThreshold = 100000
	MaxAggWorkers        = 16
)

// GroupAssignment is the output of a single grouping pass: which group id
// each row belongs to, how many groups were discovered, and the
// representative (first-seen) row for each group id, used by the
// composite path's salt-matched key comparison and by Select to emit one
// key value per group.
type GroupAssignment struct {
	groupOf   []int32
	numGroups int32
	repRow    []int64
}

// GroupRows exposes groupRows for callers outside this package (pkg/vm's
// aggregate builtins, which use it to put every row of an ungrouped
// column into a single group).
func GroupRows(keys []*value.Value, n int) GroupAssignment { return groupRows(keys, n) }

// groupRows discovers groups over the K key columns for N rows, choosing
// spec §4.5.1's perfect-hash path when K=1 and the key column's range
// fits PerfectHashThreshold, else the composite hash-table path.
func groupRows(keys []*value.Value, n int) GroupAssignment {
	if len(keys) == 1 && isPerfectHashCandidate(keys[0], n) {
		return groupByPerfectHash(keys[0], n)
	}
	return groupByCompositeHash(keys, n)
}

func isPerfectHashCandidate(k *value.Value, n int) bool {
	tag := value.VectorOf(k.Tag)
	if tag != value.TI64 && tag != value.TSymbol {
		return false
	}
	scope := sortx.ScopeOf(k)
	if scope.NullCount == n {
		return false
	}
	return scope.Range() <= PerfectHashThreshold
}

// groupByPerfectHash implements spec §4.5.1's "allocate one aggregate
// slot per possible key and use key-min as a direct index." Nulls get one
// extra reserved slot at the end of the range.
func groupByPerfectHash(k *value.Value, n int) GroupAssignment {
	col := value.I64(k)
	scope := sortx.ScopeOf(k)
	span := int32(scope.Range()) + 1
	nullSlot := span
	numGroups := span
	if scope.NullCount > 0 {
		numGroups++
	}

	groupOf := make([]int32, n)
	repRow := make([]int64, numGroups)
	for i := range repRow {
		repRow[i] = -1
	}
	for i, key := range col {
		var g int32
		if key == value.NullI64 {
			g = nullSlot
		} else {
			g = int32(key - scope.Min)
		}
		groupOf[i] = g
		if repRow[g] < 0 {
			repRow[g] = int64(i)
		}
	}
	return GroupAssignment{groupOf: groupOf, numGroups: numGroups, repRow: repRow}
}

// groupByCompositeHash implements spec §4.5.1's general path: packed
// (salt, group_id) cells from pkg/hashtable, probed with a representative-
// row key comparison on salt match.
func groupByCompositeHash(keys []*value.Value, n int) GroupAssignment {
	table := hashtable.NewAggTable(n)
	groupOf := make([]int32, n)
	var repRow []int64
	var nextGroup int32

	for i := 0; i < n; i++ {
		h := rowHash(keys, int64(i))
		gid, found, slot := table.Probe(h, func(candidate uint32) bool {
			return keyRowsEqual(keys, repRow[candidate], int64(i))
		})
		if found {
			groupOf[i] = int32(gid)
			continue
		}
		gid = uint32(nextGroup)
		table.Insert(slot, h, gid)
		repRow = append(repRow, int64(i))
		groupOf[i] = int32(gid)
		nextGroup++
		if table.NeedsRehash(len(repRow)) {
			table.Rehash(nil)
		}
	}
	return GroupAssignment{groupOf: groupOf, numGroups: nextGroup, repRow: repRow}
}

// rowHash computes the composite hash of row across every key column
// using pkg/hashtable's mixing primitive, per spec §4.3/§4.7's batch
// mixing usage pattern applied here to a single row's columns.
func rowHash(keys []*value.Value, row int64) uint64 {
	var h uint64
	for _, k := range keys {
		h = hashtable.Mix(h, columnWordAt(k, row))
	}
	return h
}

func columnWordAt(k *value.Value, row int64) uint64 {
	switch value.VectorOf(k.Tag) {
	case value.TI64, value.TSymbol, value.TTimestamp:
		return uint64(value.I64(k)[row])
	case value.TI32, value.TDate, value.TTime:
		return uint64(uint32(value.I32(k)[row]))
	case value.TI16:
		return uint64(uint16(value.I16(k)[row]))
	case value.TF64:
		return math.Float64bits(value.F64(k)[row])
	case value.TU8, value.TC8:
		return uint64(value.U8(k)[row])
	case value.TB8:
		if value.B8(k)[row] {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func keyRowsEqual(keys []*value.Value, a, b int64) bool {
	for _, k := range keys {
		if columnWordAt(k, a) != columnWordAt(k, b) {
			return false
		}
	}
	return true
}
