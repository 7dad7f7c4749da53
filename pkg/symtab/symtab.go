// Package symtab is the process-wide symbol interner: every SYMBOL value
// (spec §3) is an int64 id into a Table. It layers a reverse id->string
// lookup over pkg/hashtable's lock-free BucketTable, which only exposes
// the forward string->id direction.
package symtab

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/rayforcedb/rayforce/pkg/hashtable"
)

// Table is a symbol interner. The zero value is not usable; use New.
type Table struct {
	fwd *hashtable.BucketTable

	mu  sync.RWMutex
	rev []string // id -> string, index 0 reserved (unused symbol id)
}

// New creates an empty interner.
func New() *Table {
	return &Table{fwd: hashtable.NewBucketTable(16), rev: []string{""}}
}

// Intern returns s's id, allocating a fresh one on first sight.
func (t *Table) Intern(s string) int64 {
	h := xxhash.Sum64String(s)
	if id, ok := t.fwd.Lookup(h, s); ok {
		return id
	}
	id := t.fwd.InternOrInsert(h, s)
	t.mu.Lock()
	for int64(len(t.rev)) <= id {
		t.rev = append(t.rev, "")
	}
	t.rev[id] = s
	t.mu.Unlock()
	return id
}

// Lookup returns s's id without interning, reporting whether it exists.
func (t *Table) Lookup(s string) (int64, bool) {
	return t.fwd.Lookup(xxhash.Sum64String(s), s)
}

// String returns the string an id was interned from, or "" if unknown.
func (t *Table) String(id int64) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id <= 0 || int(id) >= len(t.rev) {
		return ""
	}
	return t.rev[id]
}

// Len reports how many distinct symbols have been interned.
func (t *Table) Len() int { return t.fwd.Len() }
