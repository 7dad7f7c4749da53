package wire

import (
	"encoding/binary"

	"github.com/fagongzi/goetty/v2/buf"
	"github.com/pierrec/lz4"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// compressThreshold: payloads at or above this size are lz4-compressed
// before framing. Small payloads (the common case: scalars, short frames)
// aren't worth the block-compress overhead.
const compressThreshold = 1 << 12

// EncodeFrame writes a complete frame (header + payload) for v to out.
func EncodeFrame(out *buf.ByteBuf, v *value.Value, msgType MsgType, syms *symtab.Table) error {
	body := buf.NewByteBuf(64)
	if err := EncodeValue(body, v, syms); err != nil {
		return err
	}
	raw := body.RawSlice(body.GetReadIndex(), body.GetWriteIndex())

	payload := raw
	compressed := false
	if len(raw) >= compressThreshold {
		bound := lz4.CompressBlockBound(len(raw))
		dst := make([]byte, 8+bound)
		binary.LittleEndian.PutUint64(dst[:8], uint64(len(raw)))
		n, err := lz4.CompressBlock(raw, dst[8:], nil)
		if err == nil && n > 0 && n+8 < len(raw) {
			payload = dst[:8+n]
			compressed = true
		}
	}

	hdr := Header{Version: Version, MsgType: msgType, Compressed: compressed, PayloadSize: uint64(len(payload))}
	hdr.Encode(out)
	out.Write(payload)
	return nil
}

// DecodeFrame reads one complete frame from the front of data, returning
// the decoded value, its logical msgtype, and the number of bytes consumed
// (header + payload). Returns rayerr.Length if data doesn't yet hold a
// full frame — callers (pkg/reactor) treat that as "keep buffering".
func DecodeFrame(h *heap.Heap, data []byte, syms *symtab.Table) (*value.Value, MsgType, int, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return nil, 0, 0, err
	}
	total := HeaderSize + int(hdr.PayloadSize)
	if len(data) < total {
		return nil, 0, 0, rayerr.Length(total, len(data), nil)
	}
	body := data[HeaderSize:total]

	if hdr.Compressed {
		if len(body) < 8 {
			return nil, 0, 0, rayerr.Length(8, len(body), nil)
		}
		rawLen := binary.LittleEndian.Uint64(body[:8])
		dst := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body[8:], dst)
		if err != nil {
			return nil, 0, 0, rayerr.Parse(err.Error())
		}
		body = dst[:n]
	}

	v, used, err := DecodeValue(h, body, syms)
	if err != nil {
		return nil, 0, 0, err
	}
	_ = used // the payload's declared size, not used, governs frame length
	return v, hdr.MsgType, total, nil
}
