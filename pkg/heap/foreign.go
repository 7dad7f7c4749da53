package heap

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// pushForeign pushes block onto h's lock-free foreign_blocks list (a
// Treiber stack using the block's own reclaimed payload bytes to store the
// next pointer), per spec §4.1's "cross-thread frees" design. h here is
// the block's *owning* heap, not the caller's.
func (h *Heap) pushForeign(block []byte) {
	nextSlot := foreignNextPtr(block)
	addr := uintptr(unsafe.Pointer(&block[0]))
	for {
		old := atomic.LoadUintptr(&h.foreignHead)
		*nextSlot = old
		if atomic.CompareAndSwapUintptr(&h.foreignHead, old, addr) {
			return
		}
	}
}

// drainForeign atomically takes the whole foreign_blocks list and returns
// it as a slice of blocks, in LIFO order.
func (h *Heap) drainForeign() [][]byte {
	head := atomic.SwapUintptr(&h.foreignHead, 0)
	var out [][]byte
	for head != 0 {
		hdrBytes := unsafe.Slice((*byte)(unsafe.Pointer(head)), blockHeaderSize)
		size := 1 << headerAt(hdrBytes).order
		block := unsafe.Slice((*byte)(unsafe.Pointer(head)), size)
		out = append(out, block)
		head = *foreignNextPtr(block)
	}
	return out
}

// Borrow transfers a share of worker's small/medium free blocks from h
// (the main heap) into worker, ahead of a pool run (spec §4.2 "prepare").
// It moves whole free blocks rather than splitting them, so worker starts
// a run with warm slabs instead of immediately growing its own pools.
func (h *Heap) Borrow(worker *Heap) {
	h.mu.Lock()
	defer h.mu.Unlock()
	worker.mu.Lock()
	defer worker.mu.Unlock()

	for order := slabOrderMin; order <= MaxBlockOrder; order++ {
		take := len(h.freelist[order]) / 2
		for i := 0; i < take; i++ {
			block := h.popFree(order)
			hdr := headerAt(block)
			hdr.ownerID = uint32(worker.ID)
			if isSlabOrder(order) && len(worker.slabs[slabIndex(order)]) < SlabDepth {
				worker.slabPush(order, block)
			} else {
				worker.pushFree(order, block)
			}
		}
	}
}

// Merge drains worker's foreign_blocks list (blocks other heaps returned
// to worker while it was running) back into worker's own freelists, then
// returns any blocks worker holds that are owned by h back to h, and
// finally folds worker's remaining free capacity back into h so the main
// heap's freelists reflect everything the run allocated and released.
func (h *Heap) Merge(worker *Heap) {
	for _, block := range worker.drainForeign() {
		hdr := headerAt(block)
		worker.mu.Lock()
		if isSlabOrder(int(hdr.order)) && uint32(hdr.ownerID) == uint32(worker.ID) && len(worker.slabs[slabIndex(int(hdr.order))]) < SlabDepth {
			worker.slabPush(int(hdr.order), block)
		} else {
			worker.freeBlock(block)
		}
		worker.mu.Unlock()
	}

	worker.mu.Lock()
	pools := append([]*pool(nil), worker.pools...)
	worker.pools = nil
	var freed [MaxPoolOrder + 1][]freeEntry
	for order := range worker.freelist {
		freed[order] = worker.freelist[order]
		worker.freelist[order] = nil
	}
	var slabs [SlabOrders][]freeEntry
	for i := range worker.slabs {
		slabs[i] = worker.slabs[i]
		worker.slabs[i] = nil
	}
	worker.avail = 0
	used := atomic.SwapInt64(&worker.used, 0)
	reserved := atomic.SwapInt64(&worker.reserved, 0)
	worker.mu.Unlock()

	h.mu.Lock()
	h.pools = append(h.pools, pools...)
	for order := range freed {
		for _, e := range freed[order] {
			h.pushFree(order, blockAt(e))
		}
	}
	for order := range slabs {
		abs := order + slabOrderMin
		for _, e := range slabs[order] {
			block := unsafe.Slice((*byte)(unsafe.Pointer(e.addr)), 1<<abs)
			h.pushFree(abs, block)
		}
	}
	atomic.AddInt64(&h.used, used)
	atomic.AddInt64(&h.reserved, reserved)
	h.mu.Unlock()
}

// MergeAll runs Merge concurrently across every worker heap using a
// bounded goroutine pool, for the scheduler's end-of-run fan-in when many
// workers each carry their own foreign_blocks backlog.
func (h *Heap) MergeAll(workers []*Heap) {
	var wg sync.WaitGroup
	wg.Add(len(workers))
	for _, w := range workers {
		w := w
		err := h.drain.Submit(func() {
			defer wg.Done()
			h.Merge(w)
		})
		if err != nil {
			h.logger.Warn("heap: drain pool submit failed, merging inline", zap.Error(err))
			wg.Done()
			h.Merge(w)
		}
	}
	wg.Wait()
}
