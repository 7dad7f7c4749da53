package reactor

import (
	"container/heap"
	"time"
)

// Timer is one scheduled callback, ordered by absolute deadline (spec
// §4.9: "a small binary heap keyed by absolute deadline").
type Timer struct {
	Deadline time.Time
	Callback func()

	index int // heap.Interface bookkeeping
}

// timerHeap implements container/heap.Interface, grounded on the standard
// library's own PriorityQueue example — the teacher repo has no
// equivalent timer wheel, and container/heap is the idiomatic tool for a
// small deadline-ordered queue like this one.
type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].Deadline.Before(h[j].Deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// TimerQueue is the reactor's deadline-ordered set of pending timers.
type TimerQueue struct {
	h timerHeap
}

// NewTimerQueue creates an empty queue.
func NewTimerQueue() *TimerQueue { return &TimerQueue{} }

// Add schedules cb to run at deadline, returning the Timer so callers can
// Cancel it before it fires.
func (q *TimerQueue) Add(deadline time.Time, cb func()) *Timer {
	t := &Timer{Deadline: deadline, Callback: cb}
	heap.Push(&q.h, t)
	return t
}

// Cancel removes t from the queue if it is still pending.
func (q *TimerQueue) Cancel(t *Timer) {
	if t.index < 0 || t.index >= len(q.h) || q.h[t.index] != t {
		return
	}
	heap.Remove(&q.h, t.index)
}

// NextDeadline reports the next timer's deadline and whether one exists,
// used to compute the reactor's poll timeout (spec §4.9: "the next-poll
// timeout is min(deadline - now, INFINITE)").
func (q *TimerQueue) NextDeadline() (time.Time, bool) {
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].Deadline, true
}

// FireDue runs (synchronously, on the caller's goroutine — spec §4.9:
// "the timer's callback runs synchronously on the loop thread") every
// timer whose deadline is at or before now, removing each as it fires.
func (q *TimerQueue) FireDue(now time.Time) {
	for len(q.h) > 0 && !q.h[0].Deadline.After(now) {
		t := heap.Pop(&q.h).(*Timer)
		t.Callback()
	}
}

// Len reports how many timers are pending.
func (q *TimerQueue) Len() int { return len(q.h) }
