package heap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	h, err := New(1)
	require.NoError(t, err)
	defer h.Close()

	b := h.Alloc(100)
	require.NotNil(t, b)
	require.GreaterOrEqual(t, len(b), 100)
	for i := range b {
		b[i] = byte(i)
	}
	h.Free(b)
}

func TestStressReturnsToReservedLevel(t *testing.T) {
	h, err := New(2)
	require.NoError(t, err)
	defer h.Close()

	// Warm up one pool, then let GC return it, so base is the idle level.
	warm := h.Alloc(64)
	require.NotNil(t, warm)
	h.Free(warm)
	h.GC()
	base := h.Stats().ReservedBytes

	rng := rand.New(rand.NewSource(7))
	var live [][]byte
	for i := 0; i < 2000; i++ {
		size := 1 << uint(MinBlockOrder+rng.Intn(10))
		buf := h.Alloc(size)
		require.NotNil(t, buf)
		live = append(live, buf)
		if len(live) > 32 && rng.Intn(2) == 0 {
			idx := rng.Intn(len(live))
			h.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}
	for _, buf := range live {
		h.Free(buf)
	}

	h.GC()
	require.Equal(t, base, h.Stats().ReservedBytes)
	require.Equal(t, int64(0), h.Stats().UsedBytes)
}

func TestCoalescingRestoresTopOrderBlock(t *testing.T) {
	h, err := New(3)
	require.NoError(t, err)
	defer h.Close()

	// Allocate power-of-two blocks only, then free them all; the pool
	// should end up with exactly one free block at its own top order.
	var bufs [][]byte
	for i := 0; i < 8; i++ {
		bufs = append(bufs, h.Alloc(1<<uint(MinBlockOrder)-blockHeaderSize))
	}
	for _, b := range bufs {
		h.Free(b)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.pools {
		total := 0
		for order, list := range h.freelist {
			for _, e := range list {
				if e.pool == p {
					total += 1 << order
				}
			}
		}
		require.Equal(t, len(p.mem), total, "pool bytes must be fully accounted for by its own top-order free block")
	}
}

func TestForeignBlockReturnedOnMerge(t *testing.T) {
	main, err := New(100)
	require.NoError(t, err)
	defer main.Close()
	worker, err := New(101)
	require.NoError(t, err)
	defer worker.Close()

	main.Borrow(worker)
	buf := worker.Alloc(64)
	require.NotNil(t, buf)

	// Simulate the block being freed on a third heap that isn't its
	// owner: it must land on worker's foreign_blocks list, not be lost.
	third, err := New(102)
	require.NoError(t, err)
	defer third.Close()
	third.Free(buf)

	main.Merge(worker)
	require.Equal(t, int64(0), worker.Stats().UsedBytes)
}
