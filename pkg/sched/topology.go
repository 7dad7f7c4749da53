package sched

import "runtime"

// topology returns n CPU ids to pin executors 1..n to, interleaving
// physical cores then SMT siblings, per spec §4.2. Linux exposes the
// building blocks (SchedGetaffinity for the available set, sysfs for
// core/sibling grouping); on other platforms — or if sysfs is
// unavailable in a sandboxed environment — this falls back to a plain
// 0..n-1 sequence and pinning becomes a no-op in pin_other.go's
// non-Linux build, so the pool still runs correctly, just without the placement
// optimization.
func topology(n int) []int {
	groups := siblingGroups()
	if len(groups) == 0 {
		ids := make([]int, n)
		for i := range ids {
			ids[i] = i % runtime.NumCPU()
		}
		return ids
	}

	// Interleave: first one id from each physical-core group (i.e. every
	// physical core gets a thread before any core's second SMT sibling
	// does), then continue round-robin through remaining siblings.
	out := make([]int, 0, n)
	col := 0
	for len(out) < n {
		progressed := false
		for _, g := range groups {
			if col < len(g) {
				out = append(out, g[col])
				progressed = true
				if len(out) == n {
					break
				}
			}
		}
		if !progressed {
			break
		}
		col++
	}
	for len(out) < n {
		out = append(out, out[len(out)%max(1, len(out))])
	}
	return out
}
