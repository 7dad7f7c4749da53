package vm

import (
	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
)

// eval walks expr under env, the lexical scope currently in effect (nil at
// the top level, where only column context and globals are visible).
//
// LIST is always an application form: (fn arg...). There is no separate
// literal-list syntax, matching the "list" builtin spec.md §8's own
// end-to-end scenarios use to build one — a bare LIST node would be
// ambiguous with a call otherwise, and the tokenizer/parser that could
// disambiguate the two is out of scope.
func (vm *VM) eval(ctx *vmctx.Context, env *value.Env, expr *value.Value) (*value.Value, error) {
	if expr == nil {
		return nil, rayerr.Domain(0, "eval")
	}
	switch {
	case expr.Tag == value.TList:
		return vm.evalList(ctx, env, expr)
	case isSymbolAtom(expr):
		return vm.resolveSymbol(ctx, env, expr)
	case expr.Tag == value.TLambda:
		return vm.closeOver(env, expr), nil
	default:
		return ctx.Clone(expr), nil
	}
}

func isSymbolAtom(v *value.Value) bool {
	return v.Tag.IsAtom() && value.VectorOf(v.Tag) == value.TSymbol
}

// symbolName resolves an interned SYMBOL atom back to its string, used to
// recognise special forms ("fn") and builtin/global names.
func (vm *VM) symbolName(v *value.Value) (string, bool) {
	if !isSymbolAtom(v) {
		return "", false
	}
	return vm.syms.String(value.AtomI64(v)), true
}

// evalList dispatches (fn arg...): "fn" is the one special form (its
// parameter list and body must not be pre-evaluated), everything else is
// ordinary eager application.
func (vm *VM) evalList(ctx *vmctx.Context, env *value.Env, expr *value.Value) (*value.Value, error) {
	elems := expr.ListElems()
	if len(elems) == 0 {
		return ctx.Clone(value.NullObj), nil
	}
	if name, ok := vm.symbolName(elems[0]); ok && name == "fn" {
		return vm.evalFn(env, elems)
	}

	fnVal, err := vm.eval(ctx, env, elems[0])
	if err != nil {
		return nil, err
	}
	fn := fnVal.AsFunc()
	if fn == nil {
		return nil, rayerr.Type("function", fnVal.Tag.String(), 0, "apply")
	}

	args := make([]*value.Value, len(elems)-1)
	for i, e := range elems[1:] {
		v, err := vm.eval(ctx, env, e)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return vm.apply(ctx, fn, args)
}

// evalFn builds a LAMBDA value from (fn [params...] body): elems[1] is a
// SYMBOL vector of parameter names, elems[2] the unevaluated body,
// closed over env at definition time.
func (vm *VM) evalFn(env *value.Env, elems []*value.Value) (*value.Value, error) {
	if len(elems) != 3 {
		return nil, rayerr.Arity(2, len(elems)-1, 0)
	}
	paramsVec := elems[1]
	if value.VectorOf(paramsVec.Tag) != value.TSymbol || paramsVec.Tag.IsAtom() {
		return nil, rayerr.Type("symbol vector", paramsVec.Tag.String(), 1, "fn")
	}
	ids := value.Sym(paramsVec)
	params := make([]string, len(ids))
	for i, id := range ids {
		params[i] = vm.syms.String(id)
	}
	return value.NewFunc(value.TLambda, &value.Func{
		Kind:    value.TLambda,
		Params:  params,
		Body:    elems[2],
		Closure: env,
	}), nil
}

// closeOver captures env into a LAMBDA literal the first time it is
// evaluated, so a lambda built once (e.g. stored in a global) and
// evaluated again later doesn't silently pick up a different scope.
func (vm *VM) closeOver(env *value.Env, expr *value.Value) *value.Value {
	fn := expr.AsFunc()
	if fn.Closure != nil {
		return expr
	}
	return value.NewFunc(fn.Kind, &value.Func{
		Kind:    fn.Kind,
		Params:  fn.Params,
		Body:    fn.Body,
		Closure: env,
		Native:  fn.Native,
		Name:    fn.Name,
	})
}

// resolveSymbol looks a name up first in the lexical env chain (lambda
// parameters), then the active query's column context, then globals —
// innermost scope wins, matching lexical shadowing conventions.
func (vm *VM) resolveSymbol(ctx *vmctx.Context, env *value.Env, expr *value.Value) (*value.Value, error) {
	id := value.AtomI64(expr)
	name := vm.syms.String(id)

	if env != nil {
		if v, ok := env.Lookup(name); ok {
			return ctx.Clone(v), nil
		}
	}
	if qf := ctx.Query(); qf != nil && qf.Table != nil {
		if col, ok := lookupColumn(qf.Table, id); ok {
			return ctx.Clone(col), nil
		}
	}
	if v, ok := vm.global.Lookup(name); ok {
		return ctx.Clone(v), nil
	}
	return nil, rayerr.ValueErr(name)
}

func lookupColumn(table *value.Value, id int64) (*value.Value, bool) {
	names := value.I64(table.TableNames())
	for i, n := range names {
		if n == id {
			return table.TableColumns().ListElems()[i], true
		}
	}
	return nil, false
}

// apply dispatches a function-kind value against already-evaluated args.
func (vm *VM) apply(ctx *vmctx.Context, fn *value.Func, args []*value.Value) (*value.Value, error) {
	switch fn.Kind {
	case value.TLambda:
		return vm.applyLambda(ctx, fn, args)
	case value.TVary, value.TUnary, value.TBinary:
		impl, ok := builtins[fn.Name]
		if !ok {
			return nil, rayerr.ValueErr(fn.Name)
		}
		return impl(vm, ctx, args)
	default:
		return nil, rayerr.NYI("apply " + fn.Kind.String())
	}
}

func (vm *VM) applyLambda(ctx *vmctx.Context, fn *value.Func, args []*value.Value) (*value.Value, error) {
	if len(args) != len(fn.Params) {
		return nil, rayerr.Arity(len(fn.Params), len(args), 0)
	}
	callEnv := &value.Env{Vars: make(map[string]*value.Value, len(fn.Params)), Parent: fn.Closure}
	for i, p := range fn.Params {
		callEnv.Vars[p] = args[i]
	}
	return vm.eval(ctx, callEnv, fn.Body)
}
