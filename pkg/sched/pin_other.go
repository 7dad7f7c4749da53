//go:build !linux

package sched

// siblingGroups has no portable sysfs equivalent outside Linux; topology
// falls back to a flat 0..NumCPU-1 sequence.
func siblingGroups() [][]int { return nil }

// pinToCPU is a no-op outside Linux; the pool still runs correctly, just
// without placement optimization.
func pinToCPU(cpuID int) error { return nil }
