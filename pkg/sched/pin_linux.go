//go:build linux

package sched

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// siblingGroups reads /sys/devices/system/cpu/cpuN/topology/thread_siblings_list
// for every online CPU and groups ids that share a physical core, sorted
// by their lowest member so physical cores are visited in id order.
func siblingGroups() [][]int {
	base := "/sys/devices/system/cpu"
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil
	}
	seen := map[int]bool{}
	var groups [][]int
	for _, e := range entries {
		var cpu int
		if _, err := fmtSscanCPU(e.Name(), &cpu); err != nil {
			continue
		}
		if seen[cpu] {
			continue
		}
		list := readSiblingList(filepath.Join(base, e.Name(), "topology", "thread_siblings_list"))
		if len(list) == 0 {
			list = []int{cpu}
		}
		sort.Ints(list)
		for _, id := range list {
			seen[id] = true
		}
		groups = append(groups, list)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	if len(groups) == 0 {
		return nil
	}
	return groups
}

func fmtSscanCPU(name string, out *int) (int, error) {
	if !strings.HasPrefix(name, "cpu") {
		return 0, os.ErrInvalid
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
	if err != nil {
		return 0, err
	}
	*out = n
	return 1, nil
}

func readSiblingList(path string) []int {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []int
	for _, part := range strings.Split(strings.TrimSpace(string(data)), ",") {
		if rng := strings.SplitN(part, "-", 2); len(rng) == 2 {
			lo, err1 := strconv.Atoi(rng[0])
			hi, err2 := strconv.Atoi(rng[1])
			if err1 == nil && err2 == nil {
				for i := lo; i <= hi; i++ {
					out = append(out, i)
				}
			}
			continue
		}
		if v, err := strconv.Atoi(part); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// pinToCPU pins the calling OS thread to cpuID using sched_setaffinity.
// Callers must have already called runtime.LockOSThread.
func pinToCPU(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID % runtime.NumCPU())
	return unix.SchedSetaffinity(0, &set)
}
