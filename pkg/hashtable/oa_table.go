package hashtable

// EmptySentinel is the in-band marker for an unoccupied slot in an
// open-addressing key array, per spec §4.3 ("typically -1 / NULL_I64").
const EmptySentinel int64 = -1

// OATable is the open-addressing table of spec §4.3: linear probing over a
// key array with an in-band empty sentinel, rehashing at load factor 0.7.
// It is generic over the value payload so it serves both a plain
// key-presence set (Values == nil) and a key -> row-id map.
type OATable struct {
	keys   []int64
	values []int64 // parallel to keys; nil if this table is used as a set
	count  int
}

// NewOATable creates a table with room for at least capacityHint entries
// before its first rehash.
func NewOATable(capacityHint int, withValues bool) *OATable {
	cap := nextPow2(max(8, capacityHint*10/7))
	t := &OATable{keys: make([]int64, cap)}
	for i := range t.keys {
		t.keys[i] = EmptySentinel
	}
	if withValues {
		t.values = make([]int64, cap)
	}
	return t
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (t *OATable) slot(hash uint64) int { return int(hash & uint64(len(t.keys)-1)) }

// Insert inserts key with the given hash and value (ignored when the
// table has no value array), returning true if this created a new entry.
func (t *OATable) Insert(hash uint64, key int64, val int64) bool {
	if float64(t.count+1) > 0.7*float64(len(t.keys)) {
		t.rehash()
	}
	i := t.slot(hash)
	for {
		if t.keys[i] == EmptySentinel {
			t.keys[i] = key
			if t.values != nil {
				t.values[i] = val
			}
			t.count++
			return true
		}
		if t.keys[i] == key {
			if t.values != nil {
				t.values[i] = val
			}
			return false
		}
		i = (i + 1) & (len(t.keys) - 1)
	}
}

// Lookup returns the stored value (or 0 for a set table) and whether key
// is present.
func (t *OATable) Lookup(hash uint64, key int64) (int64, bool) {
	i := t.slot(hash)
	for {
		if t.keys[i] == EmptySentinel {
			return 0, false
		}
		if t.keys[i] == key {
			if t.values != nil {
				return t.values[i], true
			}
			return 0, true
		}
		i = (i + 1) & (len(t.keys) - 1)
	}
}

// Contains reports key's presence without returning its value.
func (t *OATable) Contains(hash uint64, key int64) bool {
	_, ok := t.Lookup(hash, key)
	return ok
}

// Len returns the number of live entries.
func (t *OATable) Len() int { return t.count }

func (t *OATable) rehash() {
	oldKeys, oldValues := t.keys, t.values
	newCap := len(t.keys) * 2
	t.keys = make([]int64, newCap)
	for i := range t.keys {
		t.keys[i] = EmptySentinel
	}
	if oldValues != nil {
		t.values = make([]int64, newCap)
	}
	t.count = 0
	for i, k := range oldKeys {
		if k == EmptySentinel {
			continue
		}
		h := Mix(0, uint64(k))
		var v int64
		if oldValues != nil {
			v = oldValues[i]
		}
		t.Insert(h, k, v)
	}
}

// Keys returns the live keys in table-slot order (not insertion order);
// callers needing insertion order should track it separately, matching
// spec §5's "only group identity, not group-appearance order, is
// preserved" guarantee.
func (t *OATable) Keys() []int64 {
	out := make([]int64, 0, t.count)
	for _, k := range t.keys {
		if k != EmptySentinel {
			out = append(out, k)
		}
	}
	return out
}
