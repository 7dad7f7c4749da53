package heap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// pool is one contiguous mmap'd region a buddy heap carves blocks from.
type pool struct {
	mem       []byte
	order     int
	backed    bool   // true if mapped from a swap file rather than anonymous memory
	swapFile  *os.File
	swapPath  string
}

// newAnonPool maps a new anonymous pool of the given order. It returns nil
// on mmap failure so the caller can fall through to a file-backed pool.
func newAnonPool(order int) *pool {
	size := 1 << order
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil
	}
	return &pool{mem: mem, order: order}
}

// newFileBackedPool opens a randomly named file inside swapDir, truncates
// it to the pool size, and maps it shared. Per spec §4.1, the file's
// lifetime is tied to the pool's: freeing the last block of a file-backed
// pool closes and unlinks the file (see (*Heap).freeBlock).
func newFileBackedPool(swapDir string, order int) (*pool, error) {
	size := 1 << order
	name := filepath.Join(swapDir, fmt.Sprintf(".rayforce-heap-%s.swap", uuid.NewString()))
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("heap: open swap file: %w", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(name)
		return nil, fmt.Errorf("heap: truncate swap file: %w", err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(name)
		return nil, fmt.Errorf("heap: mmap swap file: %w", err)
	}
	return &pool{mem: mem, order: order, backed: true, swapFile: f, swapPath: name}, nil
}

// resolveSwapDir reads HEAP_SWAP, defaulting to the current directory,
// cleans the path with filepath.Clean, and rejects it unless it names an
// existing directory. No trailing separator is added; swap file names are
// joined onto it with filepath.Join.
func resolveSwapDir() (string, error) {
	dir := os.Getenv(DefaultHeapSwapEnv)
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("heap: swap directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("heap: swap path %q is not a directory", dir)
	}
	return dir, nil
}

// close releases a pool's memory and, for file-backed pools, closes and
// unlinks the swap file.
func (p *pool) close() {
	_ = unix.Munmap(p.mem)
	if p.backed && p.swapFile != nil {
		_ = p.swapFile.Close()
		_ = os.Remove(p.swapPath)
	}
}

func (p *pool) basePtr() uintptr { return uintptr(unsafe.Pointer(&p.mem[0])) }
