package vm

import (
	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
)

// numericAt reads element i of a numeric vector as both an int64 and a
// float64, plus whether it is natively floating point — the same shape
// pkg/query's aggregate accumulator uses to stay branchless in its hot
// loop, reused here since arithmetic/comparison builtins need the same
// per-element widening.
func numericAt(v *value.Value, i int) (i64 int64, f64 float64, isFloat bool) {
	switch value.VectorOf(v.Tag) {
	case value.TF64:
		f := value.F64(v)[i]
		return int64(f), f, true
	case value.TI64, value.TTimestamp, value.TSymbol:
		x := value.I64(v)[i]
		return x, float64(x), false
	case value.TI32, value.TDate, value.TTime:
		x := value.I32(v)[i]
		return int64(x), float64(x), false
	case value.TI16:
		x := value.I16(v)[i]
		return int64(x), float64(x), false
	case value.TU8, value.TC8:
		x := value.U8(v)[i]
		return int64(x), float64(x), false
	default:
		return 0, 0, false
	}
}

func numericAtom(v *value.Value) (i64 int64, f64 float64, isFloat bool) {
	switch value.VectorOf(v.Tag) {
	case value.TF64:
		f := value.AtomF64(v)
		return int64(f), f, true
	case value.TI64, value.TTimestamp, value.TSymbol:
		x := value.AtomI64(v)
		return x, float64(x), false
	case value.TI32, value.TDate, value.TTime:
		x := int64(value.AtomI32(v))
		return x, float64(x), false
	case value.TI16:
		x := int64(value.AtomI16(v))
		return x, float64(x), false
	case value.TU8, value.TC8:
		x := int64(value.AtomU8(v))
		return x, float64(x), false
	default:
		return 0, 0, false
	}
}

func numericValue(v *value.Value, i int) (i64 int64, f64 float64, isFloat bool) {
	if v.Tag.IsVector() {
		return numericAt(v, i)
	}
	return numericAtom(v)
}

// broadcastLen returns the shared iteration length of a and b: atoms
// broadcast against a vector's length, per spec's list of the operators
// the fused pipeline treats this way (§4.5's arithmetic-in-projection
// expressions).
func broadcastLen(a, b *value.Value) (int, error) {
	aVec, bVec := a.Tag.IsVector(), b.Tag.IsVector()
	switch {
	case aVec && bVec:
		if a.Len != b.Len {
			return 0, rayerr.Length(int(a.Len), int(b.Len), nil)
		}
		return int(a.Len), nil
	case aVec:
		return int(a.Len), nil
	case bVec:
		return int(b.Len), nil
	default:
		return 1, nil
	}
}

// binaryArith implements the elementwise numeric builtins (+, -, *):
// atom-atom yields an atom, any vector operand yields a vector of the
// broadcast length, promoting to float64 if either side is floating.
func binaryArith(h *heap.Heap, a, b *value.Value, iop func(x, y int64) int64, fop func(x, y float64) float64) (*value.Value, error) {
	if !a.Tag.IsVector() && !b.Tag.IsVector() {
		ai, af, aFloat := numericAtom(a)
		bi, bf, bFloat := numericAtom(b)
		if aFloat || bFloat {
			return value.NewF64Atom(fop(af, bf)), nil
		}
		return value.NewI64Atom(iop(ai, bi)), nil
	}
	n, err := broadcastLen(a, b)
	if err != nil {
		return nil, err
	}
	isFloat := value.VectorOf(a.Tag) == value.TF64 || value.VectorOf(b.Tag) == value.TF64

	var out *value.Value
	if isFloat {
		out = value.NewVector(h, value.TF64, n)
	} else {
		out = value.NewVector(h, value.TI64, n)
	}
	for i := 0; i < n; i++ {
		xi, xf, _ := numericValue(a, i)
		yi, yf, _ := numericValue(b, i)
		if isFloat {
			value.F64(out)[i] = fop(xf, yf)
		} else {
			value.I64(out)[i] = iop(xi, yi)
		}
	}
	return out, nil
}

// divBuiltin always divides as float64, matching the K-family convention
// that `/` is real division and integer division gets its own operator
// (not implemented here — no §8 scenario exercises it).
func divBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 2 {
		return nil, rayerr.Arity(2, len(args), 0)
	}
	a, b := args[0], args[1]
	if !a.Tag.IsVector() && !b.Tag.IsVector() {
		_, af, _ := numericAtom(a)
		_, bf, _ := numericAtom(b)
		return value.NewF64Atom(af / bf), nil
	}
	n, err := broadcastLen(a, b)
	if err != nil {
		return nil, err
	}
	out := value.NewVector(ctx.Heap, value.TF64, n)
	d := value.F64(out)
	for i := 0; i < n; i++ {
		_, xf, _ := numericValue(a, i)
		_, yf, _ := numericValue(b, i)
		d[i] = xf / yf
	}
	return out, nil
}

func addBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 2 {
		return nil, rayerr.Arity(2, len(args), 0)
	}
	return binaryArith(ctx.Heap, args[0], args[1],
		func(x, y int64) int64 { return x + y },
		func(x, y float64) float64 { return x + y })
}

func subBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 2 {
		return nil, rayerr.Arity(2, len(args), 0)
	}
	return binaryArith(ctx.Heap, args[0], args[1],
		func(x, y int64) int64 { return x - y },
		func(x, y float64) float64 { return x - y })
}

func mulBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 2 {
		return nil, rayerr.Arity(2, len(args), 0)
	}
	return binaryArith(ctx.Heap, args[0], args[1],
		func(x, y int64) int64 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// binaryCmp implements the elementwise comparison builtins, always
// producing a B8 atom or vector.
func binaryCmp(h *heap.Heap, a, b *value.Value, icmp func(x, y int64) bool, fcmp func(x, y float64) bool) (*value.Value, error) {
	if !a.Tag.IsVector() && !b.Tag.IsVector() {
		ai, af, aFloat := numericAtom(a)
		bi, bf, bFloat := numericAtom(b)
		if aFloat || bFloat {
			return value.NewB8Atom(fcmp(af, bf)), nil
		}
		return value.NewB8Atom(icmp(ai, bi)), nil
	}
	n, err := broadcastLen(a, b)
	if err != nil {
		return nil, err
	}
	isFloat := value.VectorOf(a.Tag) == value.TF64 || value.VectorOf(b.Tag) == value.TF64
	out := value.NewVector(h, value.TB8, n)
	d := value.B8(out)
	for i := 0; i < n; i++ {
		xi, xf, _ := numericValue(a, i)
		yi, yf, _ := numericValue(b, i)
		if isFloat {
			d[i] = fcmp(xf, yf)
		} else {
			d[i] = icmp(xi, yi)
		}
	}
	return out, nil
}

func eqBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 2 {
		return nil, rayerr.Arity(2, len(args), 0)
	}
	return binaryCmp(ctx.Heap, args[0], args[1],
		func(x, y int64) bool { return x == y },
		func(x, y float64) bool { return x == y })
}

func ltBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 2 {
		return nil, rayerr.Arity(2, len(args), 0)
	}
	return binaryCmp(ctx.Heap, args[0], args[1],
		func(x, y int64) bool { return x < y },
		func(x, y float64) bool { return x < y })
}

func gtBuiltin(vm *VM, ctx *vmctx.Context, args []*value.Value) (*value.Value, error) {
	if len(args) != 2 {
		return nil, rayerr.Arity(2, len(args), 0)
	}
	return binaryCmp(ctx.Heap, args[0], args[1],
		func(x, y int64) bool { return x > y },
		func(x, y float64) bool { return x > y })
}
