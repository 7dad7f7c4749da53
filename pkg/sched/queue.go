// Package sched implements spec §4.2: a topology-aware worker pool built
// on a bounded Vyukov-style MPMC queue, with per-worker heap borrow/merge
// around each run.
package sched

import (
	"runtime"
	"sync/atomic"
)

type cell struct {
	seq  uint64
	data interface{}
}

// Queue is the bounded multi-producer multi-consumer queue spec §4.2
// names ("Vyukov style... each cell has a sequence counter; producers CAS
// the tail, consumers CAS the head"). Capacity must be a power of two.
type Queue struct {
	buf  []cell
	mask uint64

	// Padding two hot counters onto separate cache lines is the point of
	// the classic Vyukov design; Go gives no portable alignment
	// annotation for that, so this keeps the fields adjacent and accepts
	// the occasional false-sharing cost the algorithm is otherwise immune
	// to logically.
	enqueuePos uint64
	dequeuePos uint64
}

// NewQueue creates a queue with the given power-of-two capacity.
func NewQueue(capacity int) *Queue {
	capacity = nextPow2(capacity)
	q := &Queue{buf: make([]cell, capacity), mask: uint64(capacity - 1)}
	for i := range q.buf {
		q.buf[i].seq = uint64(i)
	}
	return q
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int { return len(q.buf) }

// TryPush attempts a non-blocking enqueue, returning false if the queue is
// full.
func (q *Queue) TryPush(v interface{}) bool {
	backoff := newBackoff()
	for {
		pos := atomic.LoadUint64(&q.enqueuePos)
		c := &q.buf[pos&q.mask]
		seq := atomic.LoadUint64(&c.seq)
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.enqueuePos, pos, pos+1) {
				c.data = v
				atomic.StoreUint64(&c.seq, pos+1)
				return true
			}
		case diff < 0:
			return false // full
		default:
			backoff.pause()
		}
	}
}

// TryPop attempts a non-blocking dequeue, returning (nil, false) if empty.
func (q *Queue) TryPop() (interface{}, bool) {
	backoff := newBackoff()
	for {
		pos := atomic.LoadUint64(&q.dequeuePos)
		c := &q.buf[pos&q.mask]
		seq := atomic.LoadUint64(&c.seq)
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.dequeuePos, pos, pos+1) {
				v := c.data
				c.data = nil
				atomic.StoreUint64(&c.seq, pos+q.mask+1)
				return v, true
			}
		case diff < 0:
			return nil, false // empty
		default:
			backoff.pause()
		}
	}
}

// Len estimates the current occupancy; exact only when no producer or
// consumer is concurrently active, but useful for the doubling heuristic.
func (q *Queue) Len() int {
	enq := atomic.LoadUint64(&q.enqueuePos)
	deq := atomic.LoadUint64(&q.dequeuePos)
	if enq < deq {
		return 0
	}
	return int(enq - deq)
}

// Drain pops every currently-available element, in FIFO order, used when
// growing a queue.
func (q *Queue) Drain() []interface{} {
	var out []interface{}
	for {
		v, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// backoff implements spec §4.2's "exponential backoff with a pause hint"
// for queue contention.
type backoff struct{ n int }

func newBackoff() *backoff { return &backoff{} }

func (b *backoff) pause() {
	if b.n < 6 {
		for i := 0; i < 1<<uint(b.n); i++ {
			pauseHint()
		}
		b.n++
	} else {
		runtime.Gosched()
	}
}

// pauseHint is a spin-wait yield; Go has no PAUSE intrinsic in pure Go,
// so runtime.Gosched() stands in as the portable equivalent of the
// original's pause instruction hint.
func pauseHint() { runtime.Gosched() }
