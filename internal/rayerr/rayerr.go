// Package rayerr implements the closed error-kind union of spec §7: ERR
// values whose actual context lives in a per-thread record rather than
// inline in the value payload. It is modeled on the teacher's
// pkg/common/moerr (a kinded error carrying structured context and a
// stable rendering) without moerr's protobuf wire form, since spec §7
// only requires errors to render as text (REPL) or as an ERR value on the
// wire (pkg/wire), never as a structured cross-process payload.
package rayerr

import (
	"fmt"

	"go.uber.org/zap"
)

// Kind is the closed set of error kinds named in spec §7.
type Kind uint8

const (
	KindType Kind = iota
	KindArity
	KindLength
	KindIndex
	KindDomain
	KindValue
	KindLimit
	KindOS
	KindParse
	KindNYI
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "TYPE"
	case KindArity:
		return "ARITY"
	case KindLength:
		return "LENGTH"
	case KindIndex:
		return "INDEX"
	case KindDomain:
		return "DOMAIN"
	case KindValue:
		return "VALUE"
	case KindLimit:
		return "LIMIT"
	case KindOS:
		return "OS"
	case KindParse:
		return "PARSE"
	case KindNYI:
		return "NYI"
	case KindUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// Error is RayforceDB's ERR payload: a kind plus the kind-specific
// context spec §7 names.
type Error struct {
	kind    Kind
	context map[string]any
	message string // for KindUser, and as a rendered fallback for the rest
}

func (e *Error) Kind() Kind                 { return e.kind }
func (e *Error) Context() map[string]any    { return e.context }
func (e *Error) Error() string              { return e.render() }
func (e *Error) render() string {
	if e.message != "" {
		return fmt.Sprintf("** [%s] %s", e.kind, e.message)
	}
	return fmt.Sprintf("** [%s] %v", e.kind, e.context)
}

// Fields renders the error's context as zap fields for structured logging.
func (e *Error) Fields() []zap.Field {
	fields := make([]zap.Field, 0, len(e.context)+1)
	fields = append(fields, zap.String("kind", e.kind.String()))
	for k, v := range e.context {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

func newErr(kind Kind, ctx map[string]any) *Error {
	return &Error{kind: kind, context: ctx}
}

// Type builds a TYPE(expected, actual, arg, field) error.
func Type(expected, actual string, arg int, field string) *Error {
	return newErr(KindType, map[string]any{"expected": expected, "actual": actual, "arg": arg, "field": field})
}

// Arity builds an ARITY(need, have, arg) error.
func Arity(need, have, arg int) *Error {
	return newErr(KindArity, map[string]any{"need": need, "have": have, "arg": arg})
}

// Length builds a LENGTH(need, have, positions) error.
func Length(need, have int, positions []int) *Error {
	return newErr(KindLength, map[string]any{"need": need, "have": have, "positions": positions})
}

// Index builds an INDEX(idx, len) error.
func Index(idx, length int) *Error {
	return newErr(KindIndex, map[string]any{"idx": idx, "len": length})
}

// Domain builds a DOMAIN(arg, field) error.
func Domain(arg int, field string) *Error {
	return newErr(KindDomain, map[string]any{"arg": arg, "field": field})
}

// ValueErr builds a VALUE(symbol) error.
func ValueErr(symbol string) *Error {
	return newErr(KindValue, map[string]any{"symbol": symbol})
}

// Limit builds a LIMIT(value) error, e.g. heap OOM.
func Limit(what string) *Error {
	return newErr(KindLimit, map[string]any{"value": what})
}

// OS builds an OS(errno) error.
func OS(err error) *Error {
	return newErr(KindOS, map[string]any{"errno": err.Error()})
}

// Parse builds a PARSE error (position/message supplied by the external
// tokenizer/parser this core consumes but does not implement).
func Parse(msg string) *Error {
	e := newErr(KindParse, nil)
	e.message = msg
	return e
}

// NYI builds a NYI(type) error for an unsupported value kind.
func NYI(what string) *Error {
	return newErr(KindNYI, map[string]any{"type": what})
}

// User builds a USER(inline short message) error.
func User(msg string) *Error {
	e := newErr(KindUser, nil)
	e.message = msg
	return e
}
