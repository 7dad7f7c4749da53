package sched

import "runtime"

// pin locks the calling goroutine to its OS thread and pins that thread to
// cpuID. It must be called from the goroutine that will run as the
// executor, before it starts pulling tasks, and never unlocked — an
// executor goroutine lives for the pool's lifetime.
func pin(cpuID int) {
	runtime.LockOSThread()
	_ = pinToCPU(cpuID)
}
