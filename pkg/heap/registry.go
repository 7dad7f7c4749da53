package heap

import "sync"

// registry maps heap id -> *Heap so a block being freed on a foreign heap
// can find its true owner to push onto that owner's foreign_blocks list.
var registry sync.Map // uint32 -> *Heap

func registerHeap(h *Heap) { registry.Store(uint32(h.ID), h) }
func unregisterHeap(h *Heap) { registry.Delete(uint32(h.ID)) }

func lookupHeap(id uint32) *Heap {
	v, ok := registry.Load(id)
	if !ok {
		return nil
	}
	return v.(*Heap)
}
