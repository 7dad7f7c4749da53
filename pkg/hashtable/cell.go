package hashtable

// AggCellEmpty is the empty-slot sentinel for the fused hash-aggregate
// table: group_id = 0xFFFFFFFF packed into the low 32 bits, per spec
// §4.3.
const AggCellEmpty uint64 = 0xFFFFFFFF

// PackCell builds the 64-bit cell spec §4.3 describes: a 16-bit salt (the
// upper 16 bits of the full hash), 16 reserved bits, and a 32-bit group
// id.
func PackCell(fullHash uint64, groupID uint32) uint64 {
	salt := fullHash >> 48
	return (salt << 48) | uint64(groupID)
}

// CellSalt extracts the salt half of a packed cell.
func CellSalt(cell uint64) uint16 { return uint16(cell >> 48) }

// CellGroupID extracts the group id half of a packed cell.
func CellGroupID(cell uint64) uint32 { return uint32(cell) }

// CellIsEmpty reports whether cell is the unoccupied sentinel.
func CellIsEmpty(cell uint64) bool { return CellGroupID(cell) == uint32(AggCellEmpty) }

// SaltOf returns the salt for a full hash, without building a cell.
func SaltOf(fullHash uint64) uint16 { return uint16(fullHash >> 48) }

// AggTable is the composite hash table backing the fused hash-aggregate's
// general (K>1 or unbounded-range) path: linear probing over packed
// cells, salt-first rejection before a caller-supplied full key compare
// against the group's representative row.
type AggTable struct {
	cells []uint64 // packed (salt, group_id)
	hash  []uint64 // full hash per slot, so rehash never recomputes it
	mask  uint64
}

// NewAggTable creates a table sized for at least capacityHint groups.
func NewAggTable(capacityHint int) *AggTable {
	n := nextPow2(max(16, capacityHint*10/7))
	t := &AggTable{cells: make([]uint64, n), hash: make([]uint64, n), mask: uint64(n - 1)}
	for i := range t.cells {
		t.cells[i] = AggCellEmpty
	}
	return t
}

// Probe finds fullHash's slot, calling cmp(groupID) to confirm a
// salt-matching candidate is the same group (representative-row
// comparison, per spec §4.3). It returns the group id and whether it was
// already present; on a miss it does not insert (callers insert via
// Insert once they've assigned a fresh group id).
func (t *AggTable) Probe(fullHash uint64, cmp func(groupID uint32) bool) (uint32, bool, int) {
	salt := SaltOf(fullHash)
	i := int(fullHash & t.mask)
	for {
		cell := t.cells[i]
		if CellIsEmpty(cell) {
			return 0, false, i
		}
		if CellSalt(cell) == salt && cmp(CellGroupID(cell)) {
			return CellGroupID(cell), true, i
		}
		i = (i + 1) & int(t.mask)
	}
}

// Insert places groupID into slot (as returned by a failed Probe). It does
// not rehash: the caller checks NeedsRehash and calls Rehash itself.
func (t *AggTable) Insert(slot int, fullHash uint64, groupID uint32) {
	t.cells[slot] = PackCell(fullHash, groupID)
	t.hash[slot] = fullHash
}

// NeedsRehash reports whether count occupied slots exceeds load factor
// 0.7 of the table's capacity.
func (t *AggTable) NeedsRehash(count int) bool {
	return float64(count) > 0.7*float64(len(t.cells))
}

// Rehash doubles capacity and reinserts every occupied cell using its
// stored hash (never recomputed), then calls relocate(oldSlot, newSlot)
// for every moved group so the caller can keep its parallel per-group
// aggregate-state arrays addressed by slot in sync — RayforceDB instead
// addresses aggregate state by group id (assigned once, stable for the
// group's lifetime), so relocate is typically a no-op; it is offered for
// callers that choose slot-indexed state instead.
func (t *AggTable) Rehash(relocate func(oldSlot, newSlot int)) {
	oldCells, oldHash := t.cells, t.hash
	n := len(t.cells) * 2
	t.cells = make([]uint64, n)
	t.hash = make([]uint64, n)
	for i := range t.cells {
		t.cells[i] = AggCellEmpty
	}
	t.mask = uint64(n - 1)
	for old, cell := range oldCells {
		if CellIsEmpty(cell) {
			continue
		}
		h := oldHash[old]
		i := int(h & t.mask)
		for !CellIsEmpty(t.cells[i]) {
			i = (i + 1) & int(t.mask)
		}
		t.cells[i] = cell
		t.hash[i] = h
		if relocate != nil {
			relocate(old, i)
		}
	}
}

// Cap returns the table's current slot capacity.
func (t *AggTable) Cap() int { return len(t.cells) }
