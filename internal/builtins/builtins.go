// Package builtins assembles the __builtins__ module every interpreter
// starts with (spec §4.4 "falling back... to the process-wide builtins"):
// the built-in type objects, the exception-kind constructors, and the
// small roster of free functions (print/len/repr/str/type/hash) a kscript
// program can call without importing anything. Grounded on the teacher's
// internal/stdlib/*.Module() shape (cmd/kvm/common.go wires this module
// exactly like it wires each internal/stdlib package's module).
package builtins

import (
	"fmt"
	"os"

	"kvm/internal/object"
	"kvm/internal/vmerr"
)

// Install populates mod with the full builtins roster. Called once per
// interpreter from cmd/kvm's newRuntime, before any user code runs.
func Install(mod *object.Module) {
	installTypes(mod)
	installExceptions(mod)
	installFunctions(mod)
}

// installTypes registers every built-in type object under its script-level
// name (spec §3's "int/float/str/list/tuple/dict/set/range/bool/none"), so
// `int("3")`, `list(r)`, etc. resolve as names and construct via each
// type's Slots.New (wired in internal/object's per-type files).
func installTypes(mod *object.Module) {
	types := map[string]*object.Type{
		"int":    object.IntType,
		"float":  object.FloatType,
		"str":    object.StrType,
		"bytes":  object.BytesType,
		"bool":   object.BoolType,
		"none":   object.NoneType,
		"list":   object.ListType,
		"tuple":  object.TupleType,
		"dict":   object.DictType,
		"set":    object.SetType,
		"range":  object.RangeType,
		"func":   object.FuncType,
		"type":   object.TypeType,
		"object": object.ObjectType,
	}
	for name, t := range types {
		mod.Set(name, t)
	}
}

// installExceptions registers every built-in exception kind under its own
// name (spec §8 scenario 4: `throw Error("x")`), each callable as a
// constructor via the Slots.New wired in internal/object/exception.go.
func installExceptions(mod *object.Module) {
	mod.Set("Exception", object.ExceptionType)
	for _, k := range object.AllKinds {
		mod.Set(string(k), object.TypeForKind(k))
	}
}

func installFunctions(mod *object.Module) {
	mod.Set("print", object.NewNative("print", builtinPrint))
	mod.Set("len", object.NewNative("len", builtinLen))
	mod.Set("repr", object.NewNative("repr", builtinRepr))
	mod.Set("str", object.NewNative("str", builtinStr))
	mod.Set("type", object.NewNative("type", builtinType))
	mod.Set("hash", object.NewNative("hash", builtinHash))
}

// builtinPrint writes each argument's Str form space-separated followed by
// a newline to stdout, and returns none -- the common convention the rest
// of the pack's scripting runtimes (and kscript's own `print`) follow.
func builtinPrint(args []object.Object) (object.Object, object.Object) {
	parts := make([]string, len(args))
	for i, a := range args {
		s, exc := object.StrOf(a)
		if exc != nil {
			return nil, exc
		}
		parts[i] = s
	}
	w := os.Stdout
	for i, p := range parts {
		if i > 0 {
			fmt.Fprint(w, " ")
		}
		fmt.Fprint(w, p)
	}
	fmt.Fprintln(w)
	return object.NoneVal, nil
}

// builtinLen dispatches the Len slot (spec §3 "len: dispatches to a type's
// Len slot").
func builtinLen(args []object.Object) (object.Object, object.Object) {
	if len(args) != 1 {
		return nil, object.NewException(vmerr.ArgError, "len() takes exactly 1 argument")
	}
	fn := object.SlotLen(args[0].KType())
	if fn == nil {
		return nil, object.NewException(vmerr.TypeError, "object of type '"+args[0].KType().Name+"' has no len()")
	}
	return fn(args)
}

func builtinRepr(args []object.Object) (object.Object, object.Object) {
	if len(args) != 1 {
		return nil, object.NewException(vmerr.ArgError, "repr() takes exactly 1 argument")
	}
	s, exc := object.ReprOf(args[0], nil)
	if exc != nil {
		return nil, exc
	}
	return object.NewStr(s), nil
}

func builtinStr(args []object.Object) (object.Object, object.Object) {
	if len(args) == 0 {
		return object.NewStr(""), nil
	}
	s, exc := object.StrOf(args[0])
	if exc != nil {
		return nil, exc
	}
	return object.NewStr(s), nil
}

// builtinType returns the type object of its argument (spec §3 "Types are
// themselves Objects").
func builtinType(args []object.Object) (object.Object, object.Object) {
	if len(args) != 1 {
		return nil, object.NewException(vmerr.ArgError, "type() takes exactly 1 argument")
	}
	return args[0].KType(), nil
}

func builtinHash(args []object.Object) (object.Object, object.Object) {
	if len(args) != 1 {
		return nil, object.NewException(vmerr.ArgError, "hash() takes exactly 1 argument")
	}
	h, exc := object.HashOf(args[0])
	if exc != nil {
		return nil, exc
	}
	return object.NewInt(int64(h)), nil
}
