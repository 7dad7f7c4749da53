package heap

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

type freeEntry struct {
	pool *pool
	addr uintptr
}

// Heap is one thread's (or worker's) buddy allocator instance. Heaps are
// thread-local per spec §5 ("Heaps are thread-local"); the scheduler owns
// one per executor.
type Heap struct {
	ID int64

	mu       sync.Mutex
	pools    []*pool
	freelist [MaxPoolOrder + 1][]freeEntry
	index    [MaxPoolOrder + 1]map[uintptr]int // addr -> position in freelist[order], for O(1) removal
	avail    uint64                            // bitmap: bit i set iff freelist[i] is non-empty

	slabs [SlabOrders][]freeEntry

	foreignHead uintptr // atomic: head of the lock-free foreign_blocks Treiber stack
	swapDir     string

	reserved int64 // total bytes reserved from the OS/file across all pools
	used     int64 // bytes currently handed out to callers (payload only)

	logger *zap.Logger
	drain  *ants.Pool // bounded goroutine pool for concurrent foreign-block drains during MergeAll
}

// Stats summarizes a heap's memory footprint, needed to check spec §8
// property 1 ("must return the heap to its initial reserved-bytes level
// after gc").
type Stats struct {
	ReservedBytes int64
	UsedBytes     int64
	PoolCount     int
}

// Option configures a Heap at construction.
type Option func(*Heap)

// WithLogger installs a zap logger; heaps default to a no-op logger to
// keep the hot alloc/free path free of interface dispatch when unset.
func WithLogger(l *zap.Logger) Option { return func(h *Heap) { h.logger = l } }

// New creates a heap with the given id (spec §4.2: "each executor owns...
// one heap"). The swap directory is resolved from HEAP_SWAP once at
// construction, matching original_source/core/heap.c's per-heap
// swap_path field.
func New(id int64, opts ...Option) (*Heap, error) {
	dir, err := resolveSwapDir()
	if err != nil {
		return nil, err
	}
	h := &Heap{ID: id, swapDir: dir, logger: zap.NewNop()}
	for i := range h.index {
		h.index[i] = make(map[uintptr]int)
	}
	drain, err := ants.NewPool(4)
	if err != nil {
		return nil, fmt.Errorf("heap: create drain pool: %w", err)
	}
	h.drain = drain
	for _, opt := range opts {
		opt(h)
	}
	registerHeap(h)
	return h, nil
}

// Alloc returns a block able to hold size bytes, aligned to 16, or nil on
// OOM. Small orders are served from the slab cache first.
func (h *Heap) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	order := orderOf(size)
	if order > MaxPoolOrder {
		return nil // request too large for any pool this heap can build
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if isSlabOrder(order) {
		if b := h.slabPop(order); b != nil {
			atomic.AddInt64(&h.used, int64(size))
			return payload(b, size)
		}
	}

	block := h.allocBlock(order)
	if block == nil {
		return nil
	}
	atomic.AddInt64(&h.used, int64(size))
	return payload(block, size)
}

// Free returns block's underlying block to the heap. A no-op on nil.
func (h *Heap) Free(block []byte) {
	if block == nil {
		return
	}
	full := blockOf(block)
	hdr := headerAt(full)
	atomic.AddInt64(&h.used, -int64(len(block)))

	if hdr.ownerID != uint32(h.ID) {
		if owner := lookupHeap(hdr.ownerID); owner != nil {
			owner.pushForeign(full)
		} else {
			// The owning heap has already shut down; reclaim locally
			// rather than leaking the block.
			h.mu.Lock()
			h.freeBlock(full)
			h.mu.Unlock()
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if isSlabOrder(int(hdr.order)) && len(h.slabs[slabIndex(int(hdr.order))]) < SlabDepth {
		h.slabPush(int(hdr.order), full)
		return
	}
	h.freeBlock(full)
}

// Realloc returns a block able to hold n bytes, preserving contents up to
// min(old,new). When n falls in the block's current size class the same
// block is returned, resized in place; otherwise a fresh block is
// allocated, the contents copied, and the old block freed.
func (h *Heap) Realloc(block []byte, n int) []byte {
	if block == nil {
		return h.Alloc(n)
	}
	full := blockOf(block)
	hdr := headerAt(full)
	newOrder := orderOf(n)
	if int(hdr.order) == newOrder {
		atomic.AddInt64(&h.used, int64(n-len(block)))
		return payload(full, n)
	}
	nb := h.Alloc(n)
	if nb == nil {
		return nil
	}
	copy(nb, block[:min(len(block), n)])
	h.Free(block)
	return nb
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// allocBlock finds or creates a block of the given order, splitting a
// larger free block if necessary (the buddy system's core operation).
// Caller must hold h.mu.
func (h *Heap) allocBlock(order int) []byte {
	avail := h.avail >> uint(order)
	if avail == 0 {
		return h.growAndAlloc(order)
	}
	sourceOrder := order + bits.TrailingZeros64(avail)
	block := h.popFree(sourceOrder)
	for sourceOrder > order {
		sourceOrder--
		buddy := h.splitOff(block, sourceOrder)
		h.pushFree(sourceOrder, buddy)
	}
	hdr := headerAt(block)
	hdr.order = uint8(order)
	hdr.flags |= flagUsed
	hdr.ownerID = uint32(h.ID)
	return block
}

// splitOff halves block (currently of order+1) in place, returning the
// upper half as a fresh free block of order and leaving block itself
// addressable as the lower half.
func (h *Heap) splitOff(block []byte, order int) []byte {
	half := 1 << order
	upper := block[half : half*2 : half*2]
	hdr := headerAt(block)
	uhdr := headerAt(upper)
	*uhdr = *hdr
	uhdr.order = uint8(order)
	uhdr.flags = 0
	return upper
}

// growAndAlloc adds a new pool (anonymous mmap, or a file-backed pool on
// OOM) able to satisfy order, then retries the allocation.
func (h *Heap) growAndAlloc(order int) []byte {
	poolOrder := order
	if poolOrder < MaxBlockOrder {
		poolOrder = MaxBlockOrder
	}
	p := newAnonPool(poolOrder)
	if p == nil {
		var err error
		p, err = newFileBackedPool(h.swapDir, poolOrder)
		if err != nil {
			h.logger.Error("heap: pool allocation failed", zap.Error(err), zap.Int64("heap", h.ID))
			return nil
		}
		h.logger.Info("heap: fell back to file-backed pool", zap.String("path", p.swapPath))
	}
	h.addPool(p)
	if poolOrder == order {
		block := h.popFree(order)
		hdr := headerAt(block)
		hdr.order = uint8(order)
		hdr.flags |= flagUsed
		hdr.ownerID = uint32(h.ID)
		return block
	}
	return h.allocBlock(order)
}

func (h *Heap) addPool(p *pool) {
	h.pools = append(h.pools, p)
	atomic.AddInt64(&h.reserved, int64(len(p.mem)))
	hdr := headerAt(p.mem)
	*hdr = blockHeader{pool: uintptr(unsafe.Pointer(p)), order: uint8(p.order), poolOrder: uint8(p.order)}
	if p.backed {
		hdr.flags |= flagFileBacked
	}
	h.pushFree(p.order, p.mem)
}

// freeBlock returns block to its order's freelist, coalescing with its
// buddy while the buddy is also free, up to the owning pool's own order.
// Caller must hold h.mu.
func (h *Heap) freeBlock(block []byte) {
	hdr := headerAt(block)
	order := int(hdr.order)
	p := (*pool)(unsafe.Pointer(hdr.pool))

	for order < int(hdr.poolOrder) {
		buddyAddr := buddyOf(p, block, order)
		idx, ok := h.index[order][buddyAddr]
		if !ok {
			break
		}
		buddy := h.removeFreeAt(order, idx)
		if buddyAddr < uintptr(unsafe.Pointer(&block[0])) {
			block, buddy = buddy, block
		}
		_ = buddy
		order++
		hdr = headerAt(block)
		hdr.order = uint8(order)
	}
	hdr.order = uint8(order)
	hdr.flags = 0
	if p.backed && order == int(hdr.poolOrder) {
		// Whole file-backed pool freed: release immediately rather than
		// waiting for GC, since it otherwise pins an open fd + swap file.
		h.removePool(p)
		p.close()
		atomic.AddInt64(&h.reserved, -int64(1<<order))
		return
	}
	h.pushFree(order, block)
}

func buddyOf(p *pool, block []byte, order int) uintptr {
	base := p.basePtr()
	off := uintptr(unsafe.Pointer(&block[0])) - base
	return base + (off ^ uintptr(1<<order))
}

func (h *Heap) removePool(p *pool) {
	for i, pp := range h.pools {
		if pp == p {
			h.pools = append(h.pools[:i], h.pools[i+1:]...)
			return
		}
	}
}

func (h *Heap) pushFree(order int, block []byte) {
	addr := uintptr(unsafe.Pointer(&block[0]))
	hdr := headerAt(block)
	entry := freeEntry{pool: (*pool)(unsafe.Pointer(hdr.pool)), addr: addr}
	h.index[order][addr] = len(h.freelist[order])
	h.freelist[order] = append(h.freelist[order], entry)
	h.avail |= 1 << uint(order)
}

func (h *Heap) popFree(order int) []byte {
	list := h.freelist[order]
	e := list[len(list)-1]
	h.freelist[order] = list[:len(list)-1]
	delete(h.index[order], e.addr)
	if len(h.freelist[order]) == 0 {
		h.avail &^= 1 << uint(order)
	}
	return blockAt(e)
}

func (h *Heap) removeFreeAt(order, idx int) []byte {
	list := h.freelist[order]
	last := len(list) - 1
	e := list[idx]
	list[idx] = list[last]
	h.index[order][list[idx].addr] = idx
	h.freelist[order] = list[:last]
	delete(h.index[order], e.addr)
	if len(h.freelist[order]) == 0 {
		h.avail &^= 1 << uint(order)
	}
	return blockAt(e)
}

func blockAt(e freeEntry) []byte {
	size := 1 << headerAt(unsafe.Slice((*byte)(unsafe.Pointer(e.addr)), blockHeaderSize)).order
	return unsafe.Slice((*byte)(unsafe.Pointer(e.addr)), size)
}

func (h *Heap) slabPush(order int, block []byte) {
	idx := slabIndex(order)
	addr := uintptr(unsafe.Pointer(&block[0]))
	h.slabs[idx] = append(h.slabs[idx], freeEntry{addr: addr})
}

func (h *Heap) slabPop(order int) []byte {
	idx := slabIndex(order)
	stack := h.slabs[idx]
	if len(stack) == 0 {
		return nil
	}
	e := stack[len(stack)-1]
	h.slabs[idx] = stack[:len(stack)-1]
	block := unsafe.Slice((*byte)(unsafe.Pointer(e.addr)), 1<<order)
	hdr := headerAt(block)
	hdr.flags |= flagUsed
	hdr.ownerID = uint32(h.ID)
	return block
}

// GC flushes slab caches back to the buddy freelists, then closes and
// unmaps whole top-order pools that are entirely free, returning the
// number of bytes released.
func (h *Heap) GC() int64 {
	h.mu.Lock()
	for order := slabOrderMin; order <= slabOrderMax; order++ {
		idx := slabIndex(order)
		for _, e := range h.slabs[idx] {
			block := unsafe.Slice((*byte)(unsafe.Pointer(e.addr)), 1<<order)
			h.freeBlock(block)
		}
		h.slabs[idx] = h.slabs[idx][:0]
	}

	var released int64
	for order := MaxBlockOrder; order <= MaxPoolOrder; order++ {
		list := h.freelist[order]
		keep := list[:0]
		for _, e := range list {
			if e.pool != nil && len(e.pool.mem) == 1<<order && e.addr == e.pool.basePtr() {
				h.removePool(e.pool)
				e.pool.close()
				released += int64(1 << order)
				continue
			}
			keep = append(keep, e)
		}
		h.freelist[order] = keep
		h.rebuildIndex(order)
	}
	h.mu.Unlock()

	atomic.AddInt64(&h.reserved, -released)
	return released
}

func (h *Heap) rebuildIndex(order int) {
	m := make(map[uintptr]int, len(h.freelist[order]))
	for i, e := range h.freelist[order] {
		m[e.addr] = i
	}
	h.index[order] = m
	if len(h.freelist[order]) == 0 {
		h.avail &^= 1 << uint(order)
	} else {
		h.avail |= 1 << uint(order)
	}
}

// Stats returns the heap's current reserved/used byte counts.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		ReservedBytes: atomic.LoadInt64(&h.reserved),
		UsedBytes:     atomic.LoadInt64(&h.used),
		PoolCount:     len(h.pools),
	}
}

// Close releases every pool this heap owns; the heap must not be used
// afterward.
func (h *Heap) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.pools {
		p.close()
	}
	h.pools = nil
	h.drain.Release()
	unregisterHeap(h)
}
