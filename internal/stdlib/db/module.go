package db

import (
	"kvm/internal/object"
	"kvm/internal/vmerr"
)

// Module builds the "db" built-in module: a single `connect(driver, dsn)`
// function returning a connection object whose query/exec/close are
// ordinary getattr-dispatched bound methods (spec §4.4), not free
// functions — SPEC_FULL.md's "internal/stdlib/db" component description.
// Wired into the loader via module.Loader.RegisterBuiltin("db", db.Module()).
func Module() *object.Module {
	mod := object.NewModule("db", "<builtin db>")

	mod.Set("connect", object.NewNative("connect", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 2 {
			return nil, object.NewException(vmerr.ArgError, "connect(driver, dsn) takes exactly 2 arguments")
		}
		driver, exc := strArg(args[0], "connect")
		if exc != nil {
			return nil, exc
		}
		dsn, exc := strArg(args[1], "connect")
		if exc != nil {
			return nil, exc
		}
		c, exc := connect(driver, dsn)
		if exc != nil {
			return nil, exc
		}
		return c, nil
	}))

	mod.Set("escape", object.NewNative("escape", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 1 {
			return nil, object.NewException(vmerr.ArgError, "escape() takes exactly 1 argument")
		}
		s, exc := strArg(args[0], "escape")
		if exc != nil {
			return nil, exc
		}
		return object.NewStr(Escape(s)), nil
	}))

	return mod
}
