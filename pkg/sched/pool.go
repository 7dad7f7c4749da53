package sched

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
)

// ParallelRowThreshold mirrors the original's PARALLEL_AGG_THRESHOLD,
// reused here as the general row-count floor below which SplitBy
// recommends running single-threaded rather than paying fan-out cost.
const ParallelRowThreshold = 100000

// MaxSplitWorkers bounds how many workers a single SplitBy call will
// ever recommend, independent of pool size, so merge cost stays bounded
// when group counts are also large.
const MaxSplitWorkers = 16

// minRowsPerGroup is the point at which per-group contention (workers
// colliding on the same handful of groups) is judged to outweigh the
// benefit of more parallelism; SplitBy degrades worker count once rows
// per group would fall under this.
const minRowsPerGroup = 64

type executor struct {
	idx  int
	heap *heap.Heap
	ctx  *vmctx.Context
	cpu  int
}

// Pool is the worker pool spec §4.2 describes: N executors (0 is the
// caller), a bounded MPMC task queue that doubles on overflow, and
// per-executor heaps borrowed from and merged back into the main heap
// around each run.
type Pool struct {
	mainHeap *heap.Heap
	execs    []*executor
	logger   *zap.Logger

	qmu    sync.RWMutex
	taskQ  *Queue
	submit int32

	remaining int32
}

// Create builds a pool of n executors backed by mainHeap. Executor 0's
// VM shares mainHeap directly; executors 1..n-1 get their own heap and
// are assigned CPU ids from topology(n-1).
func Create(n int, mainHeap *heap.Heap, logger *zap.Logger) (*Pool, error) {
	if n < 1 {
		n = 1
	}
	p := &Pool{mainHeap: mainHeap, logger: logger, taskQ: NewQueue(1024)}
	p.execs = make([]*executor, n)
	p.execs[0] = &executor{idx: 0, heap: mainHeap, ctx: vmctx.New(mainHeap)}
	if n > 1 {
		ids := topology(n - 1)
		for i := 1; i < n; i++ {
			h, err := heap.New(int64(i), heap.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			p.execs[i] = &executor{idx: i, heap: h, ctx: vmctx.New(h), cpu: ids[i-1]}
		}
	}
	return p, nil
}

// Prepare resets the pool's per-run counters and has workers borrow a
// share of the main heap's small/medium free blocks, per spec §4.2.
func (p *Pool) Prepare() {
	atomic.StoreInt32(&p.submit, 0)
	atomic.StoreInt32(&p.remaining, 0)
	for _, e := range p.execs[1:] {
		p.mainHeap.Borrow(e.heap)
	}
}

// AddTask enqueues a task, doubling the queue (and draining the old one
// into the new) if it observes a full queue, per spec §4.2.
func (p *Pool) AddTask(fn Fn, argv ...interface{}) {
	var a [MaxTaskArgs]interface{}
	copy(a[:], argv)
	order := int(atomic.AddInt32(&p.submit, 1) - 1)
	atomic.AddInt32(&p.remaining, 1)
	t := task{fn: fn, argv: a, order: order}

	for {
		p.qmu.RLock()
		q := p.taskQ
		ok := q.TryPush(t)
		p.qmu.RUnlock()
		if ok {
			return
		}
		p.growQueue(q)
	}
}

func (p *Pool) growQueue(full *Queue) {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	if p.taskQ != full {
		return // another goroutine already grew it
	}
	grown := NewQueue(full.Cap() * 2)
	for _, v := range full.Drain() {
		grown.TryPush(v)
	}
	p.taskQ = grown
}

func (p *Pool) popTask() (task, bool) {
	p.qmu.RLock()
	q := p.taskQ
	p.qmu.RUnlock()
	v, ok := q.TryPop()
	if !ok {
		return task{}, false
	}
	return v.(task), true
}

// Run signals all workers, runs tasks on the calling thread too until
// the queue is drained, waits for workers, gathers results into a LIST
// indexed by submission order, merges worker heaps back into the main
// heap, and returns the LIST or the first error, per spec §4.2. RCSync
// is set on every executor's VM context while workers are active.
func (p *Pool) Run() (*value.Value, error) {
	n := int(atomic.LoadInt32(&p.submit))
	results := make([]*value.Value, n)
	var mu sync.Mutex
	var firstErr error

	for _, e := range p.execs {
		e.ctx.RCSync = true
	}

	run := func(e *executor) {
		ectx := &ExecCtx{Index: e.idx, VM: e.ctx}
		for {
			t, ok := p.popTask()
			if !ok {
				if atomic.LoadInt32(&p.remaining) == 0 {
					return
				}
				runtime.Gosched()
				continue
			}
			res, err := t.fn(ectx, t.argv)
			mu.Lock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if t.order < len(results) {
				results[t.order] = res
			}
			mu.Unlock()
			atomic.AddInt32(&p.remaining, -1)
		}
	}

	var wg sync.WaitGroup
	workerHeaps := make([]*heap.Heap, 0, len(p.execs)-1)
	for _, e := range p.execs[1:] {
		workerHeaps = append(workerHeaps, e.heap)
		wg.Add(1)
		go func(e *executor) {
			defer wg.Done()
			pin(e.cpu)
			run(e)
		}(e)
	}
	run(p.execs[0])
	wg.Wait()

	if len(workerHeaps) > 0 {
		p.mainHeap.MergeAll(workerHeaps)
	}
	for _, e := range p.execs {
		e.ctx.RCSync = false
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return value.NewList(results), nil
}

// N reports the pool's executor count, including the caller.
func (p *Pool) N() int { return len(p.execs) }

// SplitBy returns the recommended worker count for a chunk of nRows
// rows over nGroups groups, per spec §4.2: it respects an input-size
// threshold, an already-fanned-out check (a task running with
// insideTask=true must not itself fan out further, matching the
// rc_sync check the original performs), and a group-count upper bound
// that degrades parallelism once per-group contention would dominate.
func (p *Pool) SplitBy(nRows, nGroups int, insideTask bool) int {
	if insideTask || nRows < ParallelRowThreshold {
		return 1
	}
	workers := p.N()
	if workers > MaxSplitWorkers {
		workers = MaxSplitWorkers
	}
	if nGroups > 0 {
		for workers > 1 && (nRows/workers)/nGroups < minRowsPerGroup {
			workers--
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// ChunkAligned returns a per-worker chunk size, in elements, rounded up
// to a whole memory page, per spec §4.2.
func ChunkAligned(total, workers, elemSize int) int {
	if workers < 1 {
		workers = 1
	}
	if elemSize < 1 {
		elemSize = 1
	}
	pageSize := 4096
	rawBytes := ((total + workers - 1) / workers) * elemSize
	pages := (rawBytes + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	chunkBytes := pages * pageSize
	return chunkBytes / elemSize
}

// Close releases the pool's worker heaps.
func (p *Pool) Close() {
	for _, e := range p.execs[1:] {
		e.heap.Close()
	}
}
