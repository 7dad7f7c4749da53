// Package mmio implements the persisted, on-disk half of spec §6: it
// memory-maps splayed and parted table columns and wraps them as
// file-backed vector values. The core itself only ever consumes a
// value-oriented read interface (spec §1's "on-disk splayed/parted table
// layout ... the core consumes a value-oriented read/write interface");
// this package is that interface's one concrete implementation.
package mmio

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rayforcedb/rayforce/pkg/value"
)

// mapping records the full mmap'd region backing a file-backed value, so
// it can be unmapped in full even though the wrapped value's Bytes() is a
// sub-slice starting after the on-disk type-tag byte.
type mapping struct {
	region []byte
	file   *file
}

var (
	mappingsMu sync.Mutex
	mappings   = map[*value.Value]mapping{}
)

func init() {
	value.SetFileBackedUnmapper(unmap)
}

func track(v *value.Value, region []byte, f *file) {
	mappingsMu.Lock()
	mappings[v] = mapping{region: region, file: f}
	mappingsMu.Unlock()
}

// unmap is installed into pkg/value via SetFileBackedUnmapper; it runs
// when a file-backed vector's refcount reaches zero.
func unmap(v *value.Value) {
	mappingsMu.Lock()
	m, ok := mappings[v]
	if ok {
		delete(mappings, v)
	}
	mappingsMu.Unlock()
	if !ok {
		return
	}
	_ = unix.Munmap(m.region)
	if m.file != nil {
		m.file.close()
	}
}
