package wire

import (
	"encoding/binary"
	"math"

	"github.com/fagongzi/goetty/v2/buf"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// elemSize mirrors pkg/value's private table: the payload width in bytes
// of one vector element, needed here to size a freshly-decoded vector.
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

// EncodeValue appends v's recursive typed-value encoding to out, per
// spec §4.8: a one-byte tag followed by the shape that tag implies. syms
// resolves SYMBOL atoms to their string form (SYMBOL vectors travel as
// raw interned ids, only the atom form is spelled out on the wire).
func EncodeValue(out *buf.ByteBuf, v *value.Value, syms *symtab.Table) error {
	buf.MustWriteByte(out, byte(v.Tag))

	if v.Tag.IsAtom() {
		return encodeAtom(out, v, syms)
	}
	switch v.Tag {
	case value.TList:
		return encodeList(out, v, syms)
	case value.TDict:
		if err := EncodeValue(out, v.DictKeys(), syms); err != nil {
			return err
		}
		return EncodeValue(out, v.DictValues(), syms)
	case value.TTable:
		if err := EncodeValue(out, v.TableNames(), syms); err != nil {
			return err
		}
		return EncodeValue(out, v.TableColumns(), syms)
	case value.TErr:
		return nil // ErrObj carries no payload; context lives off-value (spec §7)
	case value.TNull:
		return nil
	default:
		if v.Tag.IsVector() {
			return encodeVector(out, v)
		}
		return rayerr.NYI(v.Tag.String())
	}
}

func encodeAtom(out *buf.ByteBuf, v *value.Value, syms *symtab.Table) error {
	switch value.VectorOf(v.Tag) {
	case value.TB8:
		buf.MustWriteByte(out, boolByte(value.AtomB8(v)))
	case value.TU8, value.TC8:
		buf.MustWriteByte(out, value.AtomU8(v))
	case value.TI16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(value.AtomI16(v)))
		out.Write(b[:])
	case value.TI32, value.TDate, value.TTime:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(value.AtomI32(v)))
		out.Write(b[:])
	case value.TI64, value.TTimestamp:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(value.AtomI64(v)))
		out.Write(b[:])
	case value.TF64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(value.AtomF64(v)))
		out.Write(b[:])
	case value.TSymbol:
		s := syms.String(value.AtomI64(v))
		out.Write([]byte(s))
		buf.MustWriteByte(out, 0)
	default:
		return rayerr.NYI(v.Tag.String())
	}
	return nil
}

func encodeVector(out *buf.ByteBuf, v *value.Value) error {
	var lenBytes [8]byte
	binary.LittleEndian.PutUint64(lenBytes[:], uint64(v.Len))
	out.Write(lenBytes[:])
	out.Write(v.Bytes())
	return nil
}

func encodeList(out *buf.ByteBuf, v *value.Value, syms *symtab.Table) error {
	elems := v.ListElems()
	var lenBytes [8]byte
	binary.LittleEndian.PutUint64(lenBytes[:], uint64(len(elems)))
	out.Write(lenBytes[:])
	for _, e := range elems {
		if err := EncodeValue(out, e, syms); err != nil {
			return err
		}
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// DecodeValue reads one recursive typed value from the front of data,
// returning the value and the number of bytes consumed.
func DecodeValue(h *heap.Heap, data []byte, syms *symtab.Table) (*value.Value, int, error) {
	if len(data) < 1 {
		return nil, 0, rayerr.Length(1, len(data), nil)
	}
	tag := value.Tag(int8(data[0]))
	pos := 1

	if tag.IsAtom() {
		v, n, err := decodeAtom(tag, data[pos:], syms)
		return v, pos + n, err
	}
	switch tag {
	case value.TNull:
		return value.NullObj, pos, nil
	case value.TErr:
		return value.ErrObj, pos, nil
	case value.TList:
		return decodeList(h, data[pos:], syms, pos)
	case value.TDict:
		keys, n1, err := DecodeValue(h, data[pos:], syms)
		if err != nil {
			return nil, 0, err
		}
		pos += n1
		vals, n2, err := DecodeValue(h, data[pos:], syms)
		if err != nil {
			return nil, 0, err
		}
		pos += n2
		return value.NewDict(keys, vals), pos, nil
	case value.TTable:
		names, n1, err := DecodeValue(h, data[pos:], syms)
		if err != nil {
			return nil, 0, err
		}
		pos += n1
		cols, n2, err := DecodeValue(h, data[pos:], syms)
		if err != nil {
			return nil, 0, err
		}
		pos += n2
		return value.NewTable(names, cols), pos, nil
	default:
		if tag.IsVector() {
			v, n, err := decodeVector(h, tag, data[pos:])
			return v, pos + n, err
		}
		return nil, 0, rayerr.NYI(tag.String())
	}
}

func decodeAtom(tag value.Tag, data []byte, syms *symtab.Table) (*value.Value, int, error) {
	switch value.VectorOf(tag) {
	case value.TB8:
		if len(data) < 1 {
			return nil, 0, rayerr.Length(1, len(data), nil)
		}
		return value.NewB8Atom(data[0] != 0), 1, nil
	case value.TU8, value.TC8:
		if len(data) < 1 {
			return nil, 0, rayerr.Length(1, len(data), nil)
		}
		return value.NewAtom(tag, uint64(data[0]), 0), 1, nil
	case value.TI16:
		if len(data) < 2 {
			return nil, 0, rayerr.Length(2, len(data), nil)
		}
		return value.NewI16Atom(int16(binary.LittleEndian.Uint16(data))), 2, nil
	case value.TI32, value.TDate, value.TTime:
		if len(data) < 4 {
			return nil, 0, rayerr.Length(4, len(data), nil)
		}
		return value.NewAtom(tag, uint64(binary.LittleEndian.Uint32(data)), 0), 4, nil
	case value.TI64, value.TTimestamp:
		if len(data) < 8 {
			return nil, 0, rayerr.Length(8, len(data), nil)
		}
		return value.NewAtom(tag, binary.LittleEndian.Uint64(data), 0), 8, nil
	case value.TF64:
		if len(data) < 8 {
			return nil, 0, rayerr.Length(8, len(data), nil)
		}
		return value.NewF64Atom(math.Float64frombits(binary.LittleEndian.Uint64(data))), 8, nil
	case value.TSymbol:
		nul := indexByte(data, 0)
		if nul < 0 {
			return nil, 0, rayerr.Parse("unterminated symbol atom")
		}
		id := syms.Intern(string(data[:nul]))
		return value.NewSymAtom(id), nul + 1, nil
	default:
		return nil, 0, rayerr.NYI(tag.String())
	}
}

func decodeVector(h *heap.Heap, tag value.Tag, data []byte) (*value.Value, int, error) {
	if len(data) < 8 {
		return nil, 0, rayerr.Length(8, len(data), nil)
	}
	n := int(binary.LittleEndian.Uint64(data))
	pos := 8
	size := n * elemSize(tag)
	if len(data) < pos+size {
		return nil, 0, rayerr.Length(pos+size, len(data), nil)
	}
	v := value.NewVector(h, tag, n)
	if size > 0 {
		copy(v.Bytes(), data[pos:pos+size])
	}
	return v, pos + size, nil
}

func decodeList(h *heap.Heap, data []byte, syms *symtab.Table, consumed int) (*value.Value, int, error) {
	if len(data) < 8 {
		return nil, 0, rayerr.Length(8, len(data), nil)
	}
	n := int(binary.LittleEndian.Uint64(data))
	pos := 8
	elems := make([]*value.Value, n)
	for i := 0; i < n; i++ {
		v, used, err := DecodeValue(h, data[pos:], syms)
		if err != nil {
			return nil, 0, err
		}
		elems[i] = v
		pos += used
	}
	return value.NewList(elems), consumed + pos, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
