// Package vm is the minimal value-tree evaluator described in SPEC_FULL.md
// as the narrow "consumes already-parsed value trees" interface spec.md §1
// says the core exposes to the out-of-scope tokenizer/parser: just enough
// tree-walking apply to run projection expressions and the handful of
// builtins the end-to-end scenarios in spec.md §8 exercise, without
// implementing the parser that would produce these trees in the first
// place. Grounded on the small tree-walking interpreter shape in
// other_examples/daios-ai-msg__interpreter.go (env chain, Apply, native
// registration) rather than on the teacher, since the teacher has no
// S-expression evaluator of its own.
package vm

import (
	"github.com/rayforcedb/rayforce/pkg/sched"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
)

// VM holds the process-wide global environment and the resources builtins
// need (the symbol interner for name resolution, an optional worker pool
// for parallel aggregation). It carries no per-request state: every call
// threads its own *vmctx.Context.
type VM struct {
	syms   *symtab.Table
	pool   *sched.Pool
	global *value.Env
}

// New creates a VM bound to syms and, optionally, pool (nil disables
// parallel aggregation; query.Aggregate falls back to its sequential path).
func New(syms *symtab.Table, pool *sched.Pool) *VM {
	vm := &VM{
		syms:   syms,
		pool:   pool,
		global: &value.Env{Vars: make(map[string]*value.Value)},
	}
	vm.installBuiltins()
	return vm
}

// Eval resolves expr against the global environment, satisfying both
// pkg/query.Evaluator and pkg/reactor.Eval's injected function type — the
// two consumers pkg/vm exists to serve. cmd/rayforced passes this method
// to reactor.New, and the select builtin passes it to query.Select, so
// neither package imports pkg/vm.
func (vm *VM) Eval(ctx *vmctx.Context, expr *value.Value) (*value.Value, error) {
	return vm.eval(ctx, vm.global, expr)
}

// Define binds name to v in the global environment, e.g. registering a
// TABLE under the name a `from` clause will look it up by.
func (vm *VM) Define(name string, v *value.Value) {
	vm.global.Vars[name] = v
}

func (vm *VM) installBuiltins() {
	for name := range builtins {
		vm.global.Vars[name] = value.NewFunc(value.TVary, &value.Func{Kind: value.TVary, Name: name})
	}
}
