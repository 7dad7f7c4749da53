package mmio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// file is the open handle backing a memory-mapped column, kept alive
// alongside the mapping so it can be closed once the mapping is released.
type file struct {
	f *os.File
}

func (fl *file) close() {
	if fl != nil && fl.f != nil {
		_ = fl.f.Close()
	}
}

// elemSize mirrors pkg/value's private table (also duplicated in
// pkg/wire for the same reason: it is an unexported implementation
// detail of the tagged object model, not something worth exporting just
// to save one small switch in two packages).
func elemSize(t value.Tag) int {
	switch value.VectorOf(t) {
	case value.TB8, value.TU8, value.TC8:
		return 1
	case value.TI16:
		return 2
	case value.TI32, value.TDate, value.TTime:
		return 4
	case value.TI64, value.TF64, value.TTimestamp, value.TSymbol:
		return 8
	case value.TGuid:
		return 16
	default:
		return 0
	}
}

// ReadColumn memory-maps path and wraps its payload as a file-backed
// vector value, per spec §6: "each column is a file whose contents are
// the raw payload of that column's vector preceded by its type tag."
// The mapping's lifetime is tied to the returned value's refcount — it
// is released via pkg/value's ModeFileBacked Drop path, never explicitly
// by the caller.
func ReadColumn(path string) (*value.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rayerr.OS(fmt.Errorf("mmio: open %s: %w", path, err))
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, rayerr.OS(fmt.Errorf("mmio: stat %s: %w", path, err))
	}
	size := info.Size()
	if size < 1 {
		f.Close()
		return nil, rayerr.OS(fmt.Errorf("mmio: %s: missing type tag", path))
	}

	var tagByte [1]byte
	if _, err := f.ReadAt(tagByte[:], 0); err != nil {
		f.Close()
		return nil, rayerr.OS(fmt.Errorf("mmio: read tag %s: %w", path, err))
	}
	tag := value.Tag(int8(tagByte[0]))
	width := elemSize(tag)
	if width == 0 {
		f.Close()
		return nil, rayerr.OS(fmt.Errorf("mmio: %s: tag %s has no on-disk vector form", path, tag))
	}

	payload := size - 1
	if payload%int64(width) != 0 {
		f.Close()
		return nil, rayerr.OS(fmt.Errorf("mmio: %s: payload size %d not a multiple of element width %d", path, payload, width))
	}
	n := int(payload / int64(width))

	if n == 0 {
		f.Close()
		return value.WrapFileBacked(tag, 0, nil), nil
	}

	region, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, rayerr.OS(fmt.Errorf("mmio: mmap %s: %w", path, err))
	}

	v := value.WrapFileBacked(tag, n, region[1:])
	track(v, region, &file{f: f})
	return v, nil
}
