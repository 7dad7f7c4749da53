package sched

import (
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
)

// MaxTaskArgs bounds a task's argument list. Argv carries opaque
// argument pointers rather than a true variadic interface{} list: the
// C original passes untyped pointers, and in practice a task's real
// arguments are a handful of fixed slots (source vector, output slot,
// chunk bounds), not an open-ended list.
const MaxTaskArgs = 8

// Fn is a task's work function. It receives the executor's own VM
// context, so allocation and RC operations happen against that
// executor's heap, and the task's argument pointers. Its result is a
// value, per spec §4.2's "gathers results into a LIST indexed by
// submission order".
type Fn func(ctx *ExecCtx, argv [MaxTaskArgs]interface{}) (*value.Value, error)

type task struct {
	fn    Fn
	argv  [MaxTaskArgs]interface{}
	order int
}

// ExecCtx is the per-executor state a Fn runs against: which executor
// slot it is, and that executor's own VM context, per spec §4.2 "each
// executor owns a VM with its own heap".
type ExecCtx struct {
	Index int
	VM    *vmctx.Context
}
