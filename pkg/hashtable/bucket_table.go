package hashtable

import (
	"sync/atomic"
	"unsafe"
)

// bucketEntry is one node of a bucket's singly-linked chain.
type bucketEntry struct {
	hash uint64
	key  string
	id   int64
	next unsafe.Pointer // *bucketEntry
}

// BucketTable is the chained hash table spec §4.3 specifies for the
// symbol interner: lock-free insertion via per-bucket head CAS, wait-free
// lookups. Every case here that carries an unsafe.Pointer head uses it
// exactly as sync/atomic's CompareAndSwapPointer contract requires.
type BucketTable struct {
	buckets []unsafe.Pointer // *bucketEntry per bucket
	mask    uint64
	next    int64 // atomic counter handing out fresh interned ids
}

// NewBucketTable creates a table with 2^bits buckets.
func NewBucketTable(bits int) *BucketTable {
	n := 1 << bits
	return &BucketTable{buckets: make([]unsafe.Pointer, n), mask: uint64(n - 1)}
}

func (t *BucketTable) bucketFor(hash uint64) *unsafe.Pointer {
	return &t.buckets[hash&t.mask]
}

// Lookup returns the interned id for key if present.
func (t *BucketTable) Lookup(hash uint64, key string) (int64, bool) {
	head := atomic.LoadPointer(t.bucketFor(hash))
	for head != nil {
		e := (*bucketEntry)(head)
		if e.hash == hash && e.key == key {
			return e.id, true
		}
		head = atomic.LoadPointer(&e.next)
	}
	return 0, false
}

// InternOrInsert returns key's existing id, or allocates a fresh one and
// CASes a new entry onto the bucket head. Concurrent inserts of the same
// new key may race and allocate more than one id; the loser's entry is
// discarded and the winner's id is returned uniformly to all callers who
// retry the lookup, matching a standard lock-free insert-or-get pattern.
func (t *BucketTable) InternOrInsert(hash uint64, key string) int64 {
	if id, ok := t.Lookup(hash, key); ok {
		return id
	}
	bucket := t.bucketFor(hash)
	for {
		head := atomic.LoadPointer(bucket)
		// Re-check under the current head in case another inserter beat
		// us to it since the first Lookup above.
		for n := head; n != nil; n = (*bucketEntry)(n).next {
			e := (*bucketEntry)(n)
			if e.hash == hash && e.key == key {
				return e.id
			}
		}
		id := atomic.AddInt64(&t.next, 1)
		entry := &bucketEntry{hash: hash, key: key, id: id, next: head}
		if atomic.CompareAndSwapPointer(bucket, head, unsafe.Pointer(entry)) {
			return id
		}
		// Lost the race: retry from a fresh head.
	}
}

// Len walks every bucket to count live entries; intended for diagnostics,
// not the hot path.
func (t *BucketTable) Len() int {
	n := 0
	for i := range t.buckets {
		head := atomic.LoadPointer(&t.buckets[i])
		for head != nil {
			n++
			head = (*bucketEntry)(head).next
		}
	}
	return n
}
