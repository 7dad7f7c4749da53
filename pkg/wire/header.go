// Package wire implements RayforceDB's on-the-wire framing and typed-value
// codec (spec §4.8): a fixed 16-byte header followed by a recursively
// encoded payload.
package wire

import (
	"encoding/binary"

	"github.com/fagongzi/goetty/v2/buf"
	"github.com/rayforcedb/rayforce/internal/rayerr"
)

// HeaderSize is the fixed width of every frame header.
const HeaderSize = 16

// MsgType is the logical frame kind carried in the header's flag byte.
type MsgType byte

const (
	Async MsgType = 0
	Sync  MsgType = 1
	Resp  MsgType = 2
)

// flag bit layout within byte 2: bits 0-1 hold MsgType, bit 2 marks an
// lz4-compressed payload.
const (
	flagMsgTypeMask = 0x03
	flagCompressed  = 0x04
)

// Version is the single format-version byte this build writes and accepts.
const Version byte = 1

// Header is the 16-byte frame preamble (spec §4.8):
//
//	byte 0:    reserved prefix
//	byte 1:    format version
//	byte 2:    flags (msgtype + compression bit)
//	bytes 3-7: reserved/padding
//	bytes 8-15: unsigned 64-bit payload size, little-endian
type Header struct {
	Version     byte
	MsgType     MsgType
	Compressed  bool
	PayloadSize uint64
}

// Encode appends the 16-byte header to out.
func (hdr Header) Encode(out *buf.ByteBuf) {
	out.Grow(HeaderSize)
	flags := byte(hdr.MsgType) & flagMsgTypeMask
	if hdr.Compressed {
		flags |= flagCompressed
	}
	var raw [HeaderSize]byte
	raw[0] = 0
	raw[1] = hdr.Version
	raw[2] = flags
	binary.LittleEndian.PutUint64(raw[8:], hdr.PayloadSize)
	out.Write(raw[:])
}

// DecodeHeader reads a Header from the first HeaderSize bytes of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, rayerr.Length(HeaderSize, len(data), nil)
	}
	flags := data[2]
	return Header{
		Version:     data[1],
		MsgType:     MsgType(flags & flagMsgTypeMask),
		Compressed:  flags&flagCompressed != 0,
		PayloadSize: binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}
