// Package io is the I/O-streams collaborator named in SPEC_FULL.md §3
// ("spec §6: read, write, close, iter under the object protocol"): wraps
// os.File behind the dispatch-slot/bound-method protocol rather than the
// teacher's flat readfile/writefile/appendfile/... free-function roster
// (internal/module/module.go's createIOModule), which this package's
// open()/File object subsumes.
package io

import (
	"bufio"
	"os"

	"kvm/internal/object"
	"kvm/internal/stdlib/fmtutil"
	"kvm/internal/vmerr"
)

// FileType is the type open() returns. Its Iter slot returns itself (the
// file is its own line iterator, Next reading one line per call); read,
// write, and close are getattr-dispatched bound methods.
var FileType = object.NewType("file", object.ObjectType)

type File struct {
	object.Header
	f      *os.File
	r      *bufio.Reader
	w      *bufio.Writer
	path   string
	closed bool
}

func open(path, mode string) (*File, object.Object) {
	var flag int
	switch mode {
	case "r":
		flag = os.O_RDONLY
	case "w":
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case "a":
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case "r+", "rw":
		flag = os.O_RDWR | os.O_CREATE
	default:
		return nil, object.NewException(vmerr.ValError, "open(): unsupported mode '"+mode+"'")
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, object.NewException(vmerr.IOError, err.Error())
	}
	file := &File{Header: object.NewHeader(FileType), f: f, path: path}
	if flag == os.O_RDONLY || flag&os.O_RDWR != 0 {
		file.r = bufio.NewReader(f)
	}
	if flag != os.O_RDONLY {
		file.w = bufio.NewWriter(f)
	}
	return file, nil
}

// read implements the "read" bound method: read() reads the whole
// remainder as a string, read(n) reads up to n bytes.
func (fl *File) read(args []object.Object) (object.Object, object.Object) {
	if fl.closed {
		return nil, object.NewException(vmerr.ValError, "read() on a closed file")
	}
	if fl.r == nil {
		return nil, object.NewException(vmerr.IOError, "file not opened for reading")
	}
	if len(args) == 0 {
		data, err := readAll(fl.r)
		if err != nil {
			return nil, object.NewException(vmerr.IOError, err.Error())
		}
		return object.NewStr(string(data)), nil
	}
	n, exc := intArg(args[0])
	if exc != nil {
		return nil, exc
	}
	buf := make([]byte, n)
	read, err := fl.r.Read(buf)
	if err != nil && read == 0 {
		return object.NewStr(""), nil
	}
	return object.NewStr(string(buf[:read])), nil
}

func readAll(r *bufio.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if n == 0 || err != nil {
			break
		}
	}
	return out, nil
}

func (fl *File) write(args []object.Object) (object.Object, object.Object) {
	if fl.closed {
		return nil, object.NewException(vmerr.ValError, "write() on a closed file")
	}
	if fl.w == nil {
		return nil, object.NewException(vmerr.IOError, "file not opened for writing")
	}
	if len(args) != 1 {
		return nil, object.NewException(vmerr.ArgError, "write() takes exactly 1 argument")
	}
	var data []byte
	switch v := args[0].(type) {
	case *object.Str:
		data = []byte(v.Value())
	case *object.Bytes:
		data = v.Value()
	default:
		return nil, object.NewException(vmerr.TypeError, "write() argument must be a string or bytes")
	}
	n, err := fl.w.Write(data)
	if err != nil {
		return nil, object.NewException(vmerr.IOError, err.Error())
	}
	fl.w.Flush()
	return object.NewInt(int64(n)), nil
}

func (fl *File) close(args []object.Object) (object.Object, object.Object) {
	if fl.closed {
		return object.NoneVal, nil
	}
	if fl.w != nil {
		fl.w.Flush()
	}
	fl.closed = true
	if err := fl.f.Close(); err != nil {
		return nil, object.NewException(vmerr.IOError, err.Error())
	}
	return object.NoneVal, nil
}

func (fl *File) next(args []object.Object) (object.Object, object.Object) {
	if fl.closed || fl.r == nil {
		return nil, object.NewException(vmerr.OutOfIterError, "iterator exhausted")
	}
	line, err := fl.r.ReadString('\n')
	if len(line) == 0 && err != nil {
		return nil, object.NewException(vmerr.OutOfIterError, "iterator exhausted")
	}
	return object.NewStr(line), nil
}

func init() {
	FileType.Slots.Iter = func(args []object.Object) (object.Object, object.Object) { return args[0], nil }
	FileType.Slots.Next = boundFile((*File).next)
	FileType.Methods = map[string]object.Object{
		"read":  object.NewNative("read", boundFile((*File).read)),
		"write": object.NewNative("write", boundFile((*File).write)),
		"close": object.NewNative("close", boundFile((*File).close)),
	}
}

func boundFile(fn func(*File, []object.Object) (object.Object, object.Object)) object.NativeFn {
	return func(args []object.Object) (object.Object, object.Object) {
		if len(args) < 1 {
			return nil, object.NewException(vmerr.InternalError, "file method called with no receiver")
		}
		fl, ok := args[0].(*File)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "method called on a non-file value")
		}
		return fn(fl, args[1:])
	}
}

func intArg(o object.Object) (int, object.Object) {
	i, ok := o.(*object.Int)
	if !ok {
		return 0, object.NewException(vmerr.TypeError, "expected an int")
	}
	return int(i.Val.Int64()), nil
}

// Module builds the "io" built-in module: open(path, mode="r") -> File.
func Module() *object.Module {
	mod := object.NewModule("io", "<builtin io>")
	mod.Set("open", object.NewNative("open", func(args []object.Object) (object.Object, object.Object) {
		if len(args) < 1 || len(args) > 2 {
			return nil, object.NewException(vmerr.ArgError, "open(path, mode='r') takes 1 or 2 arguments")
		}
		path, ok := args[0].(*object.Str)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "open() path must be a string")
		}
		mode := "r"
		if len(args) == 2 {
			m, ok := args[1].(*object.Str)
			if !ok {
				return nil, object.NewException(vmerr.TypeError, "open() mode must be a string")
			}
			mode = m.Value()
		}
		f, exc := open(path.Value(), mode)
		if exc != nil {
			return nil, exc
		}
		return f, nil
	}))
	// humanize_size re-exports fmtutil for repr helpers that only need the
	// byte-size formatter without importing all of fmtutil.
	mod.Set("humanize_size", object.NewNative("humanize_size", func(args []object.Object) (object.Object, object.Object) {
		if len(args) != 1 {
			return nil, object.NewException(vmerr.ArgError, "humanize_size(n) takes exactly 1 argument")
		}
		n, ok := args[0].(*object.Int)
		if !ok {
			return nil, object.NewException(vmerr.TypeError, "humanize_size() argument must be an int")
		}
		return object.NewStr(fmtutil.HumanizeBytes(n.Val.Uint64())), nil
	}))
	return mod
}
