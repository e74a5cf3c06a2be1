package object

// NativeFn is the calling convention every dispatch slot and every builtin
// uses: given arguments, return a result or a (non-nil) Exception object.
// Grounded on the teacher's bytecode.Chunk / vm.Function split, generalized
// so natively- and bytecode-implemented callables share one shape.
type NativeFn func(args []Object) (Object, Object)

// Param is one formal parameter: a name and an optional default value
// (spec §3 "func: ... positional parameters, per-parameter defaults").
type Param struct {
	Name    string
	Default Object // nil if required
}

// FuncType is the type of both native-wrapped and bytecode callables.
var FuncType = NewType("func", ObjectType)

// Func is a callable value: either native (Native != nil) or bytecode-backed
// (Code != nil), never both. Closures capture Closure, the defining frame.
type Func struct {
	Header
	Name     string
	Params   []Param
	Variadic int // index of *args parameter, -1 if none
	Native   NativeFn
	Code     *Code
	Closure  *Frame
	Module   *Module // defining module, for global lookup
}

func (f *Func) header() *Header { return &f.Header }

// NewNative wraps a Go function as a callable Object, used to populate
// dispatch slots and builtin module exports.
func NewNative(name string, fn NativeFn) *Func {
	return &Func{Header: NewHeader(FuncType), Name: name, Native: fn, Variadic: -1}
}

// NewBytecodeFunc wraps a compiled Code object as a callable.
func NewBytecodeFunc(name string, params []Param, variadic int, code *Code, closure *Frame, mod *Module) *Func {
	return &Func{
		Header: NewHeader(FuncType), Name: name, Params: params,
		Variadic: variadic, Code: code, Closure: closure, Module: mod,
	}
}

// PartialType is the type of bound-argument wrappers.
var PartialType = NewType("partial", ObjectType)

// Partial wraps another callable with a sparse map of pre-bound argument
// positions (spec §3 "partial"; used for bound methods, spec §4.4
// "getattr ... constructs a bound-method partial with the instance as the
// first pre-bound argument").
type Partial struct {
	Header
	Wrapped Object
	Bound   map[int]Object
}

func (p *Partial) header() *Header { return &p.Header }

func NewPartial(wrapped Object, bound map[int]Object) *Partial {
	return &Partial{Header: NewHeader(PartialType), Wrapped: wrapped, Bound: bound}
}

// Flatten merges the partial's bound arguments with freshly supplied ones,
// producing the full positional argument list for the wrapped callable.
func (p *Partial) Flatten(args []Object) []Object {
	total := len(args) + len(p.Bound)
	out := make([]Object, total)
	used := make(map[int]bool, len(p.Bound))
	for pos, v := range p.Bound {
		if pos < total {
			out[pos] = v
			used[pos] = true
		}
	}
	ai := 0
	for i := 0; i < total; i++ {
		if used[i] {
			continue
		}
		if ai < len(args) {
			out[i] = args[ai]
			ai++
		}
	}
	return out
}

// FuncDescType and TypeDescType mark the two compiler-internal constant
// kinds below; they are never observable as script-level values, only
// ever read from the constant pool and immediately consumed by the VM's
// func/type opcodes, but they still satisfy Object so the constant pool
// (a []Object) and its identity-based interning can hold them uniformly.
var FuncDescType = NewType("func_descriptor", ObjectType)
var TypeDescType = NewType("type_descriptor", ObjectType)

// FuncDescriptor is the constant-pool payload of a `func idx` opcode
// (spec §4.3 "Function/type"): everything the VM needs to materialize a
// closure Func over the defining frame at the point the opcode executes.
type FuncDescriptor struct {
	Header
	Name     string
	Params   []Param
	Variadic int // index of the variadic parameter, -1 if none
	Code     *Code
}

func (d *FuncDescriptor) header() *Header { return &d.Header }

func NewFuncDescriptor(name string, params []Param, variadic int, code *Code) *FuncDescriptor {
	return &FuncDescriptor{Header: NewHeader(FuncDescType), Name: name, Params: params, Variadic: variadic, Code: code}
}

// TypeDescriptor is the constant-pool payload of a `type idx` opcode: the
// declared base-type name (resolved at runtime against the defining
// module/builtins), field names, and method descriptors.
type TypeDescriptor struct {
	Header
	Name    string
	Base    string
	Fields  []string
	Methods []*FuncDescriptor
}

func (d *TypeDescriptor) header() *Header { return &d.Header }

func NewTypeDescriptor(name, base string, fields []string, methods []*FuncDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Header: NewHeader(TypeDescType), Name: name, Base: base, Fields: fields, Methods: methods}
}

// CodeType is the type of compiled code objects.
var CodeType = NewType("code", ObjectType)

// SourceMapEntry maps a bytecode offset to the source token that produced
// it (spec §4.3 "Source map").
type SourceMapEntry struct {
	Offset int
	Line   int
	Col    int
}

// Code is a compiled bytecode object (spec §3 "code").
type Code struct {
	Header
	FileName  string
	Source    string
	Constants []Object
	Bytes     []byte
	SourceMap []SourceMapEntry // sorted by Offset
	NumLocals int
}

func (c *Code) header() *Header { return &c.Header }

func NewCode(fileName, source string) *Code {
	return &Code{Header: NewHeader(CodeType), FileName: fileName, Source: source}
}

// LineFor finds the smallest source-map entry whose offset is >= ip
// (spec §4.3: "look-up finds the smallest entry whose offset is ≥ the
// query").
func (c *Code) LineFor(ip int) (line, col int) {
	lo, hi := 0, len(c.SourceMap)
	for lo < hi {
		mid := (lo + hi) / 2
		if c.SourceMap[mid].Offset < ip {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(c.SourceMap) {
		return c.SourceMap[lo].Line, c.SourceMap[lo].Col
	}
	if len(c.SourceMap) > 0 {
		last := c.SourceMap[len(c.SourceMap)-1]
		return last.Line, last.Col
	}
	return 0, 0
}
