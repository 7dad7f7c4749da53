package relop

import (
	"math"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/hashtable"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// Join performs a left join of left onto right by the given key column
// positions, per spec §4.7's five-step algorithm. leftKeyIdx/rightKeyIdx
// index into the respective tables' columns (both sides must give the
// same number of keys, compared column-by-column in order).
func Join(h *heap.Heap, left, right *value.Value, leftKeyIdx, rightKeyIdx []int) (*value.Value, error) {
	if left.RowCount() == 0 || right.RowCount() == 0 {
		return cloneTable(h, left)
	}

	leftCols := left.TableColumns().ListElems()
	rightCols := right.TableColumns().ListElems()
	hits := JoinIndices(left, right, leftKeyIdx, rightKeyIdx)

	names, cols, err := buildJoinColumns(h, left, right, leftCols, rightCols, leftKeyIdx, rightKeyIdx, hits, left.RowCount())
	if err != nil {
		return nil, err
	}
	return value.NewTable(names, value.NewList(cols)), nil
}

// JoinIndices computes, for every left row, the matching right row id (or
// value.NullI64 on a miss) — step 4 of spec §4.7's algorithm in isolation.
// Exposed so callers that need inner-join semantics (pkg/vm's inner-join
// builtin) can filter left down to matched rows before calling Join,
// without duplicating the hash/probe steps.
func JoinIndices(left, right *value.Value, leftKeyIdx, rightKeyIdx []int) []int64 {
	nLeft := left.RowCount()
	hits := make([]int64, nLeft)
	nRight := right.RowCount()
	if nLeft == 0 || nRight == 0 {
		for i := range hits {
			hits[i] = value.NullI64
		}
		return hits
	}

	leftCols := left.TableColumns().ListElems()
	rightCols := right.TableColumns().ListElems()
	leftKeys := selectCols(leftCols, leftKeyIdx)
	rightKeys := selectCols(rightCols, rightKeyIdx)

	rightHashes := make([]uint64, nRight)
	hashRows(rightKeys, rightHashes)

	// Step 3: open-addressing key -> row-id table over the right side.
	table := hashtable.NewOATable(nRight, true)
	for row := 0; row < nRight; row++ {
		table.Insert(rightHashes[row], int64(rightHashes[row]), int64(row))
	}
	leftHashes := make([]uint64, nLeft)
	hashRows(leftKeys, leftHashes)

	for row := 0; row < nLeft; row++ {
		candidate, found := table.Lookup(leftHashes[row], int64(leftHashes[row]))
		if found && rowsEqual(leftKeys, rightKeys, int64(row), candidate) {
			hits[row] = candidate
		} else {
			hits[row] = value.NullI64
		}
	}
	return hits
}

func selectCols(cols []*value.Value, idx []int) []*value.Value {
	out := make([]*value.Value, len(idx))
	for i, k := range idx {
		out[i] = cols[k]
	}
	return out
}

// hashRows computes the composite row hash (step 2) for every row of a
// LIST of key columns, folding each row's key hashes with MixComposite.
func hashRows(keys []*value.Value, out []uint64) {
	if len(keys) == 0 {
		return
	}
	n := len(out)
	words := make([]uint64, n)
	parts := make([]uint64, len(keys))
	for row := 0; row < n; row++ {
		for k, col := range keys {
			parts[k] = columnWordAt(col, int64(row))
		}
		words[row] = hashtable.MixComposite(parts...)
	}
	copy(out, words)
}

// rowsEqual compares the key tuple at left row a against right row b, the
// representative-key comparison spec §4.7 asks the (hash, cmp) callback
// to perform once a hash-bucket candidate is found.
func rowsEqual(leftKeys, rightKeys []*value.Value, a, b int64) bool {
	for i := range leftKeys {
		if columnWordAt(leftKeys[i], a) != columnWordAt(rightKeys[i], b) {
			return false
		}
	}
	return true
}

func columnWordAt(k *value.Value, row int64) uint64 {
	switch value.VectorOf(k.Tag) {
	case value.TI64, value.TSymbol, value.TTimestamp:
		return uint64(value.I64(k)[row])
	case value.TI32, value.TDate, value.TTime:
		return uint64(uint32(value.I32(k)[row]))
	case value.TI16:
		return uint64(uint16(value.I16(k)[row]))
	case value.TU8, value.TC8:
		return uint64(value.U8(k)[row])
	case value.TB8:
		if value.B8(k)[row] {
			return 1
		}
		return 0
	case value.TF64:
		return math.Float64bits(value.F64(k)[row])
	default:
		return 0
	}
}

// buildJoinColumns implements step 5: for every non-key column in
// (left ∪ right) - keys, emit left_col[i] on a miss, else right_col[hit].
func buildJoinColumns(h *heap.Heap, left, right *value.Value, leftCols, rightCols []*value.Value,
	leftKeyIdx, rightKeyIdx []int, hits []int64, nLeft int) (*value.Value, []*value.Value, error) {

	leftNames := value.I64(left.TableNames())
	rightNames := value.I64(right.TableNames())
	isRightKey := make(map[int64]bool, len(rightKeyIdx))
	for _, k := range rightKeyIdx {
		isRightKey[rightNames[k]] = true
	}

	var outNames []int64
	var outCols []*value.Value

	for i, col := range leftCols {
		outNames = append(outNames, leftNames[i])
		symName := leftNames[i]
		if j, ok := rightIndexOf(rightNames, symName); ok && !isRightKey[symName] {
			merged, err := mergeColumn(h, col, rightCols[j], hits)
			if err != nil {
				return nil, nil, err
			}
			outCols = append(outCols, merged)
			continue
		}
		outCols = append(outCols, col)
	}

	leftHas := make(map[int64]bool, len(leftNames))
	for _, n := range leftNames {
		leftHas[n] = true
	}
	for j, col := range rightCols {
		symName := rightNames[j]
		if isRightKey[symName] || leftHas[symName] {
			continue
		}
		gathered, err := gatherRightOnly(h, col, hits)
		if err != nil {
			return nil, nil, err
		}
		outNames = append(outNames, symName)
		outCols = append(outCols, gathered)
	}

	names := value.NewVector(h, value.TSymbol, len(outNames))
	copy(value.I64(names), outNames)
	return names, outCols, nil
}

func rightIndexOf(rightNames []int64, sym int64) (int, bool) {
	for j, n := range rightNames {
		if n == sym {
			return j, true
		}
	}
	return 0, false
}

// mergeColumn implements step 5's per-position choice for a column present
// on both sides: left_col[i] on a miss, else right_col[hit].
func mergeColumn(h *heap.Heap, leftCol, rightCol *value.Value, hits []int64) (*value.Value, error) {
	if value.VectorOf(leftCol.Tag) != value.VectorOf(rightCol.Tag) {
		return nil, rayerr.Type(leftCol.Tag.String(), rightCol.Tag.String(), 0, "join column merge")
	}
	n := len(hits)
	out := value.NewVector(h, value.VectorOf(leftCol.Tag), n)
	for i, hit := range hits {
		if hit == value.NullI64 {
			if err := gatherOne(leftCol, out, i, int64(i)); err != nil {
				return nil, err
			}
			continue
		}
		if err := gatherOne(rightCol, out, i, hit); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// gatherRightOnly emits right_col[hit] for a right-only column, leaving a
// type-appropriate null where the left row had no match.
func gatherRightOnly(h *heap.Heap, rightCol *value.Value, hits []int64) (*value.Value, error) {
	tag := value.VectorOf(rightCol.Tag)
	out := value.NewVector(h, tag, len(hits))
	for i, hit := range hits {
		if hit == value.NullI64 {
			if err := writeNull(out, i, tag); err != nil {
				return nil, err
			}
			continue
		}
		if err := gatherOne(rightCol, out, i, hit); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func gatherOne(src, dst *value.Value, dstIdx int, srcIdx int64) error {
	switch value.VectorOf(src.Tag) {
	case value.TB8:
		value.B8(dst)[dstIdx] = value.B8(src)[srcIdx]
	case value.TU8, value.TC8:
		value.U8(dst)[dstIdx] = value.U8(src)[srcIdx]
	case value.TI16:
		value.I16(dst)[dstIdx] = value.I16(src)[srcIdx]
	case value.TI32, value.TDate, value.TTime:
		value.I32(dst)[dstIdx] = value.I32(src)[srcIdx]
	case value.TI64, value.TSymbol, value.TTimestamp:
		value.I64(dst)[dstIdx] = value.I64(src)[srcIdx]
	case value.TF64:
		value.F64(dst)[dstIdx] = value.F64(src)[srcIdx]
	default:
		return rayerr.Type("gatherable vector", src.Tag.String(), 0, "join gather")
	}
	return nil
}

func writeNull(dst *value.Value, i int, tag value.Tag) error {
	switch tag {
	case value.TU8, value.TC8:
		value.U8(dst)[i] = value.NullU8
	case value.TI16:
		value.I16(dst)[i] = value.NullI16
	case value.TI32, value.TDate, value.TTime:
		value.I32(dst)[i] = value.NullI32
	case value.TI64, value.TSymbol, value.TTimestamp:
		value.I64(dst)[i] = value.NullI64
	case value.TF64:
		value.F64(dst)[i] = value.NullF64
	case value.TB8:
		value.B8(dst)[i] = false
	default:
		return rayerr.Type("nullable vector", tag.String(), 0, "join gather")
	}
	return nil
}

// cloneTable deep-copies a table's column vectors, used by Join's
// empty-input short-circuit (spec §4.7: "empty inputs short-circuit to a
// clone of the left").
func cloneTable(h *heap.Heap, left *value.Value) (*value.Value, error) {
	names := value.I64(left.TableNames())
	newNames := value.NewVector(h, value.TSymbol, len(names))
	copy(value.I64(newNames), names)

	cols := left.TableColumns().ListElems()
	newCols := make([]*value.Value, len(cols))
	for i, col := range cols {
		n := int(col.Len)
		out := value.NewVector(h, value.VectorOf(col.Tag), n)
		ids := make([]int64, n)
		for j := range ids {
			ids[j] = int64(j)
		}
		if err := gather(col, out, ids); err != nil {
			return nil, err
		}
		newCols[i] = out
	}
	return value.NewTable(newNames, value.NewList(newCols)), nil
}
