// Package os is the OS collaborator named in SPEC_FULL.md §3 ("stat,
// listdir, walk, path-as-sequence-of-parts per spec §6"), grounded on the
// teacher's createOSModule (exit/getenv/setenv) generalized with the
// richer filesystem surface the expanded spec calls for, and on
// internal/filesystem for the walk-recursion shape.
package os

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kvm/internal/object"
	"kvm/internal/stdlib/fmtutil"
	"kvm/internal/vmerr"
)

// PathType is a path value supporting len/getelem/iter over its slash-
// separated components (spec §6 "path-as-sequence-of-parts"), alongside
// the usual string rendering.
var PathType = object.NewType("path", object.ObjectType)

type Path struct {
	object.Header
	raw   string
	parts []string
}

func newPath(raw string) *Path {
	clean := filepath.Clean(raw)
	var parts []string
	for _, p := range strings.Split(clean, string(filepath.Separator)) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if strings.HasPrefix(clean, string(filepath.Separator)) {
		parts = append([]string{string(filepath.Separator)}, parts...)
	}
	return &Path{Header: object.NewHeader(PathType), raw: raw, parts: parts}
}

func init() {
	PathType.Slots.Str = func(args []object.Object) (object.Object, object.Object) {
		return object.NewStr(args[0].(*Path).raw), nil
	}
	PathType.Slots.Repr = PathType.Slots.Str
	PathType.Slots.Len = func(args []object.Object) (object.Object, object.Object) {
		return object.NewInt(int64(len(args[0].(*Path).parts))), nil
	}
	PathType.Slots.GetElem = func(args []object.Object) (object.Object, object.Object) {
		p := args[0].(*Path)
		idx, ok := args[1].(*object.Int)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "path index must be an int")
		}
		i := int(idx.Val.Int64())
		if i < 0 {
			i += len(p.parts)
		}
		if i < 0 || i >= len(p.parts) {
			return nil, object.NewException(vmerr.IndexError, "path component index out of range")
		}
		return object.NewStr(p.parts[i]), nil
	}
	PathType.Slots.Iter = func(args []object.Object) (object.Object, object.Object) {
		p := args[0].(*Path)
		elems := make([]object.Object, len(p.parts))
		for i, s := range p.parts {
			elems[i] = object.NewStr(s)
		}
		return object.NewSeqIterator(elems), nil
	}
}

func statDict(path string) (object.Object, object.Object) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, object.NewException(vmerr.OSError, err.Error())
	}
	d := object.NewDict()
	d.Set(object.NewStr("name"), object.NewStr(info.Name()))
	d.Set(object.NewStr("size"), object.NewInt(info.Size()))
	d.Set(object.NewStr("size_human"), object.NewStr(fmtutil.HumanizeBytes(uint64(info.Size()))))
	d.Set(object.NewStr("is_dir"), object.NewBool(info.IsDir()))
	d.Set(object.NewStr("mode"), object.NewStr(info.Mode().String()))
	d.Set(object.NewStr("modified"), object.NewStr(info.ModTime().Format("2006-01-02T15:04:05Z07:00")))
	return d, nil
}

// Module builds the "os" built-in module.
func Module() *object.Module {
	mod := object.NewModule("os", "<builtin os>")

	mod.Set("getenv", object.NewNative("getenv", func(args []object.Object) (object.Object, object.Object) {
		name, exc := strArg(args, 0, "getenv")
		if exc != nil {
			return nil, exc
		}
		v, ok := os.LookupEnv(name)
		if !ok {
			return object.NoneVal, nil
		}
		return object.NewStr(v), nil
	}))

	mod.Set("setenv", object.NewNative("setenv", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 2 {
			return nil, object.NewException(vmerr.ArgError, "setenv(name, value) takes exactly 2 arguments")
		}
		name, exc := strArg(args, 0, "setenv")
		if exc != nil {
			return nil, exc
		}
		value, exc := strArg(args, 1, "setenv")
		if exc != nil {
			return nil, exc
		}
		if err := os.Setenv(name, value); err != nil {
			return nil, object.NewException(vmerr.OSError, err.Error())
		}
		return object.NoneVal, nil
	}))

	mod.Set("exit", object.NewNative("exit", func(args []object.Object) (object.Object, object.Object) {
		code := 0
		if len(args) == 1 {
			if i, ok := args[0].(*object.Int); ok {
				code = int(i.Val.Int64())
			}
		}
		os.Exit(code)
		return object.NoneVal, nil
	}))

	mod.Set("stat", object.NewNative("stat", func(args []object.Object) (object.Object, object.Object) {
		path, exc := strArg(args, 0, "stat")
		if exc != nil {
			return nil, exc
		}
		return statDict(path)
	}))

	mod.Set("listdir", object.NewNative("listdir", func(args []object.Object) (object.Object, object.Object) {
		path, exc := strArg(args, 0, "listdir")
		if exc != nil {
			return nil, exc
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, object.NewException(vmerr.OSError, err.Error())
		}
		out := make([]object.Object, len(entries))
		for i, e := range entries {
			out[i] = object.NewStr(e.Name())
		}
		return object.NewList(out), nil
	}))

	mod.Set("walk", object.NewNative("walk", func(args []object.Object) (object.Object, object.Object) {
		root, exc := strArg(args, 0, "walk")
		if exc != nil {
			return nil, exc
		}
		var out []object.Object
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}
			out = append(out, object.NewStr(path))
			return nil
		})
		if err != nil {
			return nil, object.NewException(vmerr.OSError, err.Error())
		}
		return object.NewList(out), nil
	}))

	mod.Set("path", object.NewNative("path", func(args []object.Object) (object.Object, object.Object) {
		raw, exc := strArg(args, 0, "path")
		if exc != nil {
			return nil, exc
		}
		return newPath(raw), nil
	}))

	mod.Set("mkdir", object.NewNative("mkdir", func(args []object.Object) (object.Object, object.Object) {
		path, exc := strArg(args, 0, "mkdir")
		if exc != nil {
			return nil, exc
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, object.NewException(vmerr.OSError, err.Error())
		}
		return object.NoneVal, nil
	}))

	mod.Set("remove", object.NewNative("remove", func(args []object.Object) (object.Object, object.Object) {
		path, exc := strArg(args, 0, "remove")
		if exc != nil {
			return nil, exc
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, object.NewException(vmerr.OSError, err.Error())
		}
		return object.NoneVal, nil
	}))

	return mod
}

func strArg(args []object.Object, i int, fn string) (string, object.Object) {
	if i >= len(args) {
		return "", object.NewException(vmerr.ArgError, fmt.Sprintf("%s() missing a required string argument", fn))
	}
	s, ok := args[i].(*object.Str)
	if !ok {
		return "", object.NewException(vmerr.TypeError, fn+"() argument must be a string")
	}
	return s.Value(), nil
}
