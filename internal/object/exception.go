package object

import (
	"fmt"
	"strings"

	"kvm/internal/vmerr"
)

// ExceptionType is the base type for every thrown value (spec §3
// "Exception"); kindTypes below give each vmerr.Kind its own subtype so
// script-level `catch TypeError e` can type-test against it.
var ExceptionType = NewType("Exception", ObjectType)

var kindTypes = map[vmerr.Kind]*Type{}

// AllKinds lists every built-in exception kind, in the order spec §7
// declares them; internal/builtins uses this to register each kind's type
// object as a script-level exception constructor.
var AllKinds = []vmerr.Kind{
	vmerr.Error, vmerr.TypeError, vmerr.ValError, vmerr.NameError,
	vmerr.AttrError, vmerr.KeyError, vmerr.IndexError, vmerr.SizeError,
	vmerr.ArgError, vmerr.OverflowError, vmerr.IOError, vmerr.OSError,
	vmerr.ImportError, vmerr.SyntaxError, vmerr.InternalError,
	vmerr.OutOfIterError, vmerr.PlatformWarning,
}

func init() {
	for _, k := range AllKinds {
		kind := k
		t := NewType(string(k), ExceptionType)
		// Calling the kind (spec §8 scenario 4 `throw Error("x")`) constructs
		// an Exception of this kind, taking the message as its one argument.
		t.Slots.New = func(args []Object) (Object, Object) {
			msg := ""
			if len(args) > 0 {
				if s, ok := args[0].(*Str); ok {
					msg = s.Value()
				} else {
					s, exc := StrOf(args[0])
					if exc != nil {
						return nil, exc
					}
					msg = s
				}
			}
			return NewException(kind, msg), nil
		}
		kindTypes[k] = t
	}

	ExceptionType.Slots.GetAttr = func(args []Object) (Object, Object) {
		e, ok := args[0].(*Exception)
		if !ok {
			return nil, NewException(vmerr.AttrError, "not an exception")
		}
		switch args[1].(*Str).Value() {
		case "message":
			return NewStr(e.Message), nil
		case "kind":
			return NewStr(string(e.Kind)), nil
		case "inner":
			if e.Inner == nil {
				return NoneVal, nil
			}
			return e.Inner, nil
		}
		return nil, NewException(vmerr.AttrError, "'"+e.KType().Name+"' object has no attribute '"+args[1].(*Str).Value()+"'")
	}
	ExceptionType.Slots.Str = func(args []Object) (Object, Object) {
		e := args[0].(*Exception)
		return NewStr(string(e.Kind) + ": " + e.Message), nil
	}
	ExceptionType.Slots.Repr = ExceptionType.Slots.Str
}

// TypeForKind returns the (shared) type object for a built-in exception kind.
func TypeForKind(k vmerr.Kind) *Type {
	if t, ok := kindTypes[k]; ok {
		return t
	}
	return ExceptionType
}

// Exception is both a first-class Object (it flows through the operand
// stack, can be stored, inspected, rethrown) and a Go error, so internal Go
// call sites can propagate it with a normal `error` return when convenient.
type Exception struct {
	Header
	Kind      vmerr.Kind
	Message   string
	Location  vmerr.SourceLocation
	Inner     *Exception // cause chain, spec §7 "Cause chaining"
	Traceback []vmerr.StackFrame
}

func (e *Exception) header() *Header { return &e.Header }

func NewException(kind vmerr.Kind, message string) *Exception {
	return &Exception{Header: NewHeader(TypeForKind(kind)), Kind: kind, Message: message}
}

func (e *Exception) Error() string { return e.Render() }

// Render produces the uncaught-exception presentation of spec §7:
// "<TypeName>: <message>" followed by a source-mapped traceback.
func (e *Exception) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", e.Kind, e.Message)
	if e.Location.File != "" {
		fmt.Fprintf(&sb, "  at %s:%d:%d\n", e.Location.File, e.Location.Line, e.Location.Col)
	}
	for i := len(e.Traceback) - 1; i >= 0; i-- {
		fr := e.Traceback[i]
		if fr.Function != "" {
			fmt.Fprintf(&sb, "  at %s (%s:%d:%d)\n", fr.Function, fr.File, fr.Line, fr.Col)
		} else {
			fmt.Fprintf(&sb, "  at %s:%d:%d\n", fr.File, fr.Line, fr.Col)
		}
	}
	if e.Inner != nil {
		sb.WriteString("caused by:\n")
		sb.WriteString(e.Inner.Render())
	}
	return sb.String()
}

// Chain sets e.Inner to the currently-pending exception, if any, per
// spec §7 "Throwing while another exception is pending chains the new
// exception's inner field to the old one".
func (e *Exception) Chain(pending *Exception) *Exception {
	if pending != nil && pending != e {
		e.Inner = pending
	}
	return e
}
