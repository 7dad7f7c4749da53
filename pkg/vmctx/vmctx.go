// Package vmctx holds the thread-local VM context described in spec §3:
// the current heap, a stack of query contexts, a reusable per-thread error
// record, and the rc_sync flag. Go has no supported goroutine-local
// storage, so RayforceDB follows spec §9's fallback ("express via an
// explicit runtime handle passed into every public entry") — every
// executor (pkg/sched) owns one *Context and threads it explicitly through
// evaluation and query calls instead of reaching for a global keyed by
// goroutine id.
package vmctx

import (
	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// QueryFrame is one entry of the query-context stack (spec §9: "Query
// contexts form a stack (parent pointer)"). Fetch (spec §4.5 step 1)
// pushes a frame holding a strong reference to the source table so
// column lookups during filter/group/project resolve against it.
type QueryFrame struct {
	Table   *value.Value // strong ref to the TABLE (or a MAPFILTER/MAPGROUP view of it) being queried
	GroupBy *value.Value // LIST of key columns once `by` has been evaluated, nil otherwise

	// GroupState is an opaque handle to pkg/query's discovered
	// GroupAssignment, cached here so every aggregate call within one
	// projection (spec §4.5.1: "share the group-discovery work") reuses
	// it instead of re-running group discovery per aggregate. Declared as
	// `any` rather than a concrete type so pkg/vmctx does not have to
	// import pkg/query; callers type-assert it back.
	GroupState any
}

// Context is one executor's thread-local VM state.
type Context struct {
	Heap *heap.Heap

	// RCSync mirrors spec §3's rc_sync: true while a pool fan-out this
	// executor participates in is active, forcing Clone/Drop to use
	// atomic RMW.
	RCSync bool

	stack []*QueryFrame
	err   *rayerr.Error
}

// New creates a Context bound to h.
func New(h *heap.Heap) *Context { return &Context{Heap: h} }

// PushQuery pushes a new query frame, entering a nested select.
func (c *Context) PushQuery(frame *QueryFrame) { c.stack = append(c.stack, frame) }

// PopQuery pops the innermost query frame.
func (c *Context) PopQuery() {
	if len(c.stack) == 0 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// Query returns the innermost query frame, or nil outside any select.
func (c *Context) Query() *QueryFrame {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// Clone/Drop/Cow thread this context's RCSync flag and heap into
// pkg/value's free functions, so call sites don't have to repeat
// ctx.RCSync at every call.
func (c *Context) Clone(v *value.Value) *value.Value { return value.Clone(c.RCSync, v) }
func (c *Context) Drop(v *value.Value)                { value.Drop(c.RCSync, v) }
func (c *Context) Cow(v *value.Value) *value.Value    { return value.Cow(c.RCSync, c.Heap, v) }

// SetErr records e as this executor's current error, per spec §7 ("a
// per-thread structure (stored in the VM, not inline)").
func (c *Context) SetErr(e *rayerr.Error) { c.err = e }

// Err returns the most recently recorded error, or nil.
func (c *Context) Err() *rayerr.Error { return c.err }

// ClearErr resets the error slot, e.g. after a REPL/IPC frame has been
// handled and its error (if any) has been rendered.
func (c *Context) ClearErr() { c.err = nil }
