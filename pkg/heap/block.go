package heap

import "unsafe"

const (
	flagFileBacked uint8 = 1 << 0
	flagUsed       uint8 = 1 << 1
)

// blockHeader is the 16-byte mini-header spec §4.1 says every block
// carries. It lives in the first 16 bytes of the block's own memory, so a
// block's usable payload is (1<<order)-16 bytes.
type blockHeader struct {
	pool      uintptr // *pool, stored as uintptr to keep the struct flat
	order     uint8
	poolOrder uint8
	flags     uint8
	_         uint8
	ownerID   uint32
}

func headerAt(block []byte) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(&block[0]))
}

// payload returns the usable bytes of a block after its mini-header, sized
// to exactly n bytes.
func payload(block []byte, n int) []byte {
	return block[blockHeaderSize : blockHeaderSize+n : blockHeaderSize+n]
}

// blockOf recovers the full block (header + payload) from a payload slice
// previously handed to a caller by Alloc.
func blockOf(pay []byte) []byte {
	base := unsafe.Pointer(&pay[0])
	full := unsafe.Slice((*byte)(unsafe.Add(base, -blockHeaderSize)), cap(pay)+blockHeaderSize)
	h := (*blockHeader)(unsafe.Pointer(&full[0]))
	size := 1 << h.order
	return unsafe.Slice((*byte)(unsafe.Add(base, -blockHeaderSize)), size)
}

// foreignNextPtr treats the first 8 bytes of a block's payload as the
// intrusive next-pointer used only while the block sits on another heap's
// foreign_blocks list (spec §4.1's "lock-free single-linked list"); those
// bytes are otherwise unused because the block is free.
func foreignNextPtr(block []byte) *uintptr {
	return (*uintptr)(unsafe.Pointer(&block[blockHeaderSize]))
}
