package sortx

import (
	"github.com/rayforcedb/rayforce/pkg/sched"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// ParallelRowThreshold is the vector length above which sort dispatch
// prefers the pkg/sched-backed parallel path, per spec §4.4's size-tiered
// dispatch table ("Large" column).
const ParallelRowThreshold = sched.ParallelRowThreshold

// radixSortParallel mirrors radixSort but runs each byte pass as spec
// §4.4 describes: "per-worker histogram, merge + per-worker position
// offsets via prefix sums, per-worker scatter — each dispatched through
// the worker pool." It falls back to the sequential path when the pool
// has only the caller executor or the vector is too small to be worth
// the fan-out cost.
func radixSortParallel(keys []uint64, nBytes int, pool *sched.Pool) []int64 {
	n := len(keys)
	if n <= 1 || nBytes == 0 {
		return radixSort(keys, nBytes)
	}
	if pool == nil || pool.N() <= 1 || n < ParallelRowThreshold {
		return radixSort(keys, nBytes)
	}

	perm := iota64(n)
	scratch := make([]int64, n)
	src, dst := perm, scratch

	workers := pool.SplitBy(n, 1, false)
	bounds := chunkBounds(n, workers)

	for pass := 0; pass < nBytes; pass++ {
		parallelCountingPass(keys, src, dst, uint(pass*8), bounds, pool)
		src, dst = dst, src
	}
	return src
}

// chunkBounds splits [0,n) into up to `workers` page-aligned chunks,
// using sched.ChunkAligned for the sizing, and returns len(bounds)-1
// contiguous [bounds[i], bounds[i+1]) ranges covering all of [0,n).
func chunkBounds(n, workers int) []int {
	if workers < 1 {
		workers = 1
	}
	size := sched.ChunkAligned(n, workers, 8)
	if size < 1 {
		size = n
	}
	bounds := []int{0}
	for pos := 0; pos < n; pos += size {
		end := pos + size
		if end > n {
			end = n
		}
		bounds = append(bounds, end)
	}
	return bounds
}

// parallelCountingPass runs one LSD byte pass of the three-phase parallel
// counting sort spec §4.4 names, over the chunk ranges in bounds.
func parallelCountingPass(keys []uint64, src, dst []int64, shift uint, bounds []int, pool *sched.Pool) {
	nChunks := len(bounds) - 1
	hist := make([][256]int, nChunks)

	pool.Prepare()
	for c := 0; c < nChunks; c++ {
		lo, hi := bounds[c], bounds[c+1]
		h := &hist[c]
		pool.AddTask(func(ctx *sched.ExecCtx, argv [sched.MaxTaskArgs]interface{}) (*value.Value, error) {
			for _, idx := range src[lo:hi] {
				h[byte(keys[idx]>>shift)]++
			}
			return nil, nil
		})
	}
	pool.Run()

	// Phase 2: sequential merge + prefix sums. Bucket-major order across
	// chunks preserves the original array's chunk ordering (chunk 0's
	// items for bucket b precede chunk 1's), which is what makes the
	// scatter phase stable.
	var total [256]int
	offsets := make([][256]int, nChunks)
	for b := 0; b < 256; b++ {
		for c := 0; c < nChunks; c++ {
			offsets[c][b] = total[b]
			total[b] += hist[c][b]
		}
	}
	var base [257]int
	for b := 0; b < 256; b++ {
		base[b+1] = base[b] + total[b]
	}
	for c := 0; c < nChunks; c++ {
		for b := 0; b < 256; b++ {
			offsets[c][b] += base[b]
		}
	}

	pool.Prepare()
	for c := 0; c < nChunks; c++ {
		lo, hi := bounds[c], bounds[c+1]
		cursor := offsets[c]
		pool.AddTask(func(ctx *sched.ExecCtx, argv [sched.MaxTaskArgs]interface{}) (*value.Value, error) {
			for _, idx := range src[lo:hi] {
				b := byte(keys[idx] >> shift)
				dst[cursor[b]] = idx
				cursor[b]++
			}
			return nil, nil
		})
	}
	pool.Run()
}
