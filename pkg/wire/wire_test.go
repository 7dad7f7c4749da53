package wire

import (
	"math"
	"testing"

	"github.com/fagongzi/goetty/v2/buf"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
)

func newTestHeap(t *testing.T) *heap.Heap {
	t.Helper()
	h, err := heap.New(0, heap.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func roundTrip(t *testing.T, h *heap.Heap, syms *symtab.Table, v *value.Value, mt MsgType) (*value.Value, MsgType) {
	t.Helper()
	out := buf.NewByteBuf(64)
	require.NoError(t, EncodeFrame(out, v, mt, syms))
	raw := out.RawSlice(out.GetReadIndex(), out.GetWriteIndex())

	got, gotType, used, err := DecodeFrame(h, raw, syms)
	require.NoError(t, err)
	require.Equal(t, len(raw), used)
	return got, gotType
}

func TestHeaderRoundTrip(t *testing.T) {
	out := buf.NewByteBuf(HeaderSize)
	hdr := Header{Version: Version, MsgType: Sync, Compressed: true, PayloadSize: 1234}
	hdr.Encode(out)
	raw := out.RawSlice(out.GetReadIndex(), out.GetWriteIndex())
	require.Len(t, raw, HeaderSize)

	got, err := DecodeHeader(raw)
	require.NoError(t, err)
	require.Equal(t, hdr, got)
}

func TestFrameRoundTripI64Atom(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	v := value.NewI64Atom(42)

	got, mt := roundTrip(t, h, syms, v, Sync)
	require.Equal(t, Sync, mt)
	require.True(t, got.Tag.IsAtom())
	require.Equal(t, int64(42), value.AtomI64(got))
}

func TestFrameRoundTripF64AtomPreservesNaN(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	v := value.NewF64Atom(math.NaN())

	got, _ := roundTrip(t, h, syms, v, Resp)
	require.True(t, math.IsNaN(value.AtomF64(got)))
}

func TestFrameRoundTripSymbolAtomResolvesString(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	id := syms.Intern("hello")
	v := value.NewSymAtom(id)

	got, _ := roundTrip(t, h, syms, v, Async)
	require.Equal(t, "hello", syms.String(value.AtomI64(got)))
}

func TestFrameRoundTripI64Vector(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	v := value.NewVector(h, value.TI64, 5)
	copy(value.I64(v), []int64{1, 2, 3, 4, 5})

	got, _ := roundTrip(t, h, syms, v, Sync)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, value.I64(got))
}

func TestFrameRoundTripListOfVectors(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	a := value.NewVector(h, value.TI64, 2)
	copy(value.I64(a), []int64{1, 2})
	b := value.NewVector(h, value.TF64, 2)
	copy(value.F64(b), []float64{1.5, 2.5})
	list := value.NewList([]*value.Value{a, b})

	got, _ := roundTrip(t, h, syms, list, Resp)
	elems := got.ListElems()
	require.Len(t, elems, 2)
	require.Equal(t, []int64{1, 2}, value.I64(elems[0]))
	require.Equal(t, []float64{1.5, 2.5}, value.F64(elems[1]))
}

func TestFrameRoundTripTable(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	symID := syms.Intern("sym")
	priceID := syms.Intern("price")

	names := value.NewVector(h, value.TSymbol, 2)
	copy(value.I64(names), []int64{symID, priceID})
	sym := value.NewVector(h, value.TI64, 2)
	copy(value.I64(sym), []int64{10, 20})
	price := value.NewVector(h, value.TF64, 2)
	copy(value.F64(price), []float64{1.1, 2.2})
	table := value.NewTable(names, value.NewList([]*value.Value{sym, price}))

	got, _ := roundTrip(t, h, syms, table, Sync)
	require.Equal(t, 2, got.RowCount())
	require.Equal(t, []int64{symID, priceID}, value.I64(got.TableNames()))
}

func TestFrameRoundTripLargePayloadCompresses(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	n := compressThreshold // element count, so byte size = 8*n >> threshold
	v := value.NewVector(h, value.TI64, n)
	data := value.I64(v)
	for i := range data {
		data[i] = int64(i % 7) // repetitive: compresses well
	}

	out := buf.NewByteBuf(64)
	require.NoError(t, EncodeFrame(out, v, Resp, syms))
	raw := out.RawSlice(out.GetReadIndex(), out.GetWriteIndex())

	hdr, err := DecodeHeader(raw)
	require.NoError(t, err)
	require.True(t, hdr.Compressed)

	got, mt, used, err := DecodeFrame(h, raw, syms)
	require.NoError(t, err)
	require.Equal(t, len(raw), used)
	require.Equal(t, Resp, mt)
	require.Equal(t, data, value.I64(got))
}

func TestDecodeFrameReportsShortBuffer(t *testing.T) {
	h := newTestHeap(t)
	syms := symtab.New()
	_, _, _, err := DecodeFrame(h, []byte{0, 1, 2}, syms)
	require.Error(t, err)
}
