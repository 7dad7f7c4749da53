package value

// Header is the 16-byte control block every value carries, per spec §3.
// It is embedded directly in Value rather than laid out as raw bytes
// preceding a payload pointer: Go's memory model has no portable way to
// place a header immediately before an arbitrary-typed payload the way the
// original C `struct obj_t` does, so RayforceDB keeps the header's exact
// field layout (tag, mode, attrs, rc, length) but lets Value's other
// fields — inline scalar, backing byte slice, or child list — sit
// alongside it in one Go allocation instead of one raw block.
type Header struct {
	Tag      Tag   // 1 byte: negative for atoms, positive for vectors/composites
	Mode     Mode  // 1 byte
	Attrs    Attrs // 1 byte
	_        uint8 // padding, keeps the struct's field layout 16 bytes wide
	rc       uint32
	Len      uint32 // element count for vectors; 0 for atoms and composites without a flat length
	Reserved uint32 // unused; keeps sizeof(Header) == 16 to mirror spec §3
}

// RC returns the current reference count using a plain (non-atomic) load.
// Callers on a hot path that may race with a concurrent Clone/Drop under
// rc_sync should use RCAtomic instead.
func (h *Header) RC() uint32 { return h.rc }
