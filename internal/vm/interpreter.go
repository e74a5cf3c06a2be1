// Package vm implements the stack-machine interpreter of spec §4.4:
// opcode dispatch over a per-thread operand stack, a frame stack carrying
// name-keyed locals, and an exception pointer driving try/catch/finally
// unwinding. Grounded on the teacher's internal/vm opcode-dispatch loop
// (a big switch over a program counter into a flat byte buffer), entirely
// rewritten for this module's opcode set, generic AST-free bytecode, and
// name-keyed (rather than stack-slot) local variables.
package vm

import (
	"fmt"
	"sync"

	"kvm/internal/bytecode"
	"kvm/internal/object"
	"kvm/internal/vmerr"
)

// Interpreter holds process-wide execution state: the builtins module
// every frame falls back to once its own locals/closure/module-globals
// chain misses (spec §4.4), and the single interpreter lock every thread
// acquires before running bytecode (spec §5 "exactly one thread runs
// bytecode at a time"; internal/stdlib/thread's Thread/Mutex types
// release and reacquire this lock around their blocking waits via
// Yield/Resume below).
type Interpreter struct {
	Builtins *object.Module
	gil      sync.Mutex
}

func NewInterpreter(builtins *object.Module) *Interpreter {
	return &Interpreter{Builtins: builtins}
}

// tryMarker is the bookkeeping an active try block leaves on its frame's
// local (not shared) try stack: the operand-stack depth to unwind to and
// the bytecode offset of the first catch-dispatch instruction.
type tryMarker struct {
	depth  int
	target int
}

// RunModule runs a module's compiled top-level code with its Locals *sharing*
// the module's Globals map, so `x = 1` at top level is directly visible
// to later `import` lookups (spec §4.6).
func (in *Interpreter) RunModule(mod *object.Module, code *object.Code) (object.Object, *object.Exception) {
	in.gil.Lock()
	defer in.gil.Unlock()
	th := object.NewThread(mod.Name)
	fn := object.NewBytecodeFunc(mod.Name, nil, -1, code, nil, mod)
	fr := object.NewFrame(fn, object.NewTuple(nil), nil)
	fr.Locals = mod.Globals
	th.PushFrame(fr)
	res, exc := in.runFrame(th, fr)
	return res, asException(exc)
}

// Call invokes callee with args from outside any running frame (used by
// native builtins that accept a callback, e.g. a sort key function, or by
// a goroutine started on behalf of thread.spawn/net's websocket_serve).
// Unlike invoke, Call acquires the interpreter lock itself since its
// caller is, by construction, not already holding it (spec §5 "exactly
// one thread runs bytecode at a time").
func (in *Interpreter) Call(th *object.Thread, callee object.Object, args []object.Object) (object.Object, object.Object) {
	in.gil.Lock()
	defer in.gil.Unlock()
	return in.invoke(th, callee, args)
}

// Yield releases the interpreter lock so another thread can run bytecode,
// and Resume re-acquires it. These bracket the spec §5 "suspension
// points" a blocking native operation goes through: thread.join, mutex
// lock, and sleep all call Yield before blocking and Resume once
// unblocked, so one thread waiting on another is never a deadlock.
func (in *Interpreter) Yield() { in.gil.Unlock() }

// Resume re-acquires the interpreter lock released by Yield.
func (in *Interpreter) Resume() { in.gil.Lock() }

func asException(o object.Object) *object.Exception {
	if o == nil {
		return nil
	}
	if e, ok := o.(*object.Exception); ok {
		return e
	}
	return object.NewException(vmerr.Error, reprSafely(o))
}

func reprSafely(o object.Object) string {
	s, exc := object.StrOf(o)
	if exc != nil {
		return "<unrepresentable>"
	}
	return s
}

func pop1(th *object.Thread) object.Object {
	l := len(th.Stack)
	v := th.Stack[l-1]
	th.Stack = th.Stack[:l-1]
	return v
}

func popN(th *object.Thread, n int) []object.Object {
	if n == 0 {
		return nil
	}
	l := len(th.Stack)
	out := append([]object.Object{}, th.Stack[l-n:]...)
	th.Stack = th.Stack[:l-n]
	return out
}

func push(th *object.Thread, v object.Object) { th.Stack = append(th.Stack, v) }

func peek(th *object.Thread) object.Object { return th.Stack[len(th.Stack)-1] }

// resolveName implements spec §4.4's lookup chain: the current frame's
// locals, then each enclosing closure frame's locals, then the defining
// module's globals, then the process-wide builtins.
func resolveName(fr *object.Frame, name string, builtins *object.Module) (object.Object, bool) {
	for f := fr; f != nil; f = f.Closure {
		if v, ok := f.Locals[name]; ok {
			return v, true
		}
	}
	if fr.Callable != nil && fr.Callable.Module != nil {
		if v, ok := fr.Callable.Module.Get(name); ok {
			return v, true
		}
	}
	if builtins != nil {
		if v, ok := builtins.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}

type binInfo struct {
	name string
	get  func(*object.Type) object.NativeFn
}

var binSlots = map[bytecode.Op]binInfo{
	bytecode.BinOr:       {"|", object.SlotOr},
	bytecode.BinXor:      {"^", object.SlotXor},
	bytecode.BinAnd:      {"&", object.SlotAnd},
	bytecode.BinLsh:      {"<<", object.SlotLsh},
	bytecode.BinRsh:      {">>", object.SlotRsh},
	bytecode.BinAdd:      {"+", object.SlotAdd},
	bytecode.BinSub:      {"-", object.SlotSub},
	bytecode.BinMul:      {"*", object.SlotMul},
	bytecode.BinDiv:      {"/", object.SlotDiv},
	bytecode.BinFloorDiv: {"//", object.SlotFloorDiv},
	bytecode.BinMod:      {"%", object.SlotMod},
	bytecode.BinPow:      {"**", object.SlotPow},
	bytecode.Lt:          {"<", object.SlotLt},
	bytecode.Le:          {"<=", object.SlotLe},
	bytecode.Gt:          {">", object.SlotGt},
	bytecode.Ge:          {">=", object.SlotGe},
}

var unarySlots = map[bytecode.Op]func(*object.Type) object.NativeFn{
	bytecode.UnaryPos:  object.SlotPos,
	bytecode.UnaryNeg:  object.SlotNeg,
	bytecode.UnarySqig: object.SlotInvert,
}

// runFrame executes fr's bytecode to completion, returning the value
// passed to `ret` or the exception that escaped every local try block.
// The operand stack (th.Stack) is shared across every frame on th: a
// call pops its arguments and pushes its result onto the same stack the
// caller is using, so frame boundaries are purely about locals/PC/
// closure, matching the single "operand stack" of spec §4.4.
func (in *Interpreter) runFrame(th *object.Thread, fr *object.Frame) (object.Object, object.Object) {
	code := fr.Callable.Code
	var tryStack []tryMarker

	unwind := func() (int, bool) {
		n := len(tryStack)
		if n == 0 {
			return 0, false
		}
		m := tryStack[n-1]
		tryStack = tryStack[:n-1]
		th.Stack = th.Stack[:m.depth]
		return m.target, true
	}

	// raise marks exc as pending and either resumes at a local catch
	// dispatch (returns true) or leaves it pending for the caller to
	// keep searching (returns false, frame has been popped).
	raise := func(exc object.Object) bool {
		th.SetException(asException(exc))
		if target, ok := unwind(); ok {
			fr.PC = target
			return true
		}
		return false
	}

	for {
		op := bytecode.Op(code.Bytes[fr.PC])

		switch {
		case op == bytecode.Noop:
			fr.PC += op.Width()

		case op == bytecode.Push:
			idx := bytecode.ReadArg(code.Bytes, fr.PC)
			push(th, code.Constants[idx])
			fr.PC += op.Width()

		case op == bytecode.Popu:
			pop1(th)
			fr.PC += op.Width()

		case op == bytecode.Dup:
			push(th, peek(th))
			fr.PC += op.Width()

		case op == bytecode.Load:
			idx := bytecode.ReadArg(code.Bytes, fr.PC)
			name := code.Constants[idx].(*object.Str).Value()
			v, ok := resolveName(fr, name, in.Builtins)
			if !ok {
				if raise(object.NewException(vmerr.NameError, "name '"+name+"' is not defined")) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, v)
			fr.PC += op.Width()

		case op == bytecode.Store:
			idx := bytecode.ReadArg(code.Bytes, fr.PC)
			name := code.Constants[idx].(*object.Str).Value()
			v := pop1(th)
			fr.Locals[name] = v
			fr.PC += op.Width()

		case op == bytecode.GetAttr:
			idx := bytecode.ReadArg(code.Bytes, fr.PC)
			nameObj := code.Constants[idx]
			obj := pop1(th)
			res, exc := dispatchGetAttr(obj, nameObj)
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case op == bytecode.SetAttr:
			idx := bytecode.ReadArg(code.Bytes, fr.PC)
			nameObj := code.Constants[idx]
			obj := pop1(th)
			val := pop1(th)
			res, exc := dispatchSetAttr(obj, nameObj, val)
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case op == bytecode.GetElem:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			idxArg := indexArg(th, n)
			obj := pop1(th)
			fn := object.SlotGetElem(obj.KType())
			var res, exc object.Object
			if fn == nil {
				exc = object.NewException(vmerr.TypeError, "'"+obj.KType().Name+"' object is not subscriptable")
			} else {
				res, exc = fn([]object.Object{obj, idxArg})
			}
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case op == bytecode.SetElem:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			idxArg := indexArg(th, n)
			obj := pop1(th)
			val := pop1(th)
			fn := object.SlotSetElem(obj.KType())
			var res, exc object.Object
			if fn == nil {
				exc = object.NewException(vmerr.TypeError, "'"+obj.KType().Name+"' object does not support item assignment")
			} else {
				res, exc = fn([]object.Object{obj, idxArg, val})
			}
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case op == bytecode.DelElem:
			key := pop1(th)
			obj := pop1(th)
			fn := object.SlotDelElem(obj.KType())
			var res, exc object.Object
			if fn == nil {
				exc = object.NewException(vmerr.TypeError, "'"+obj.KType().Name+"' object doesn't support item deletion")
			} else {
				res, exc = fn([]object.Object{obj, key})
			}
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case op == bytecode.Call:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			group := popN(th, n)
			callee, args := group[0], group[1:]
			res, exc := in.invoke(th, callee, args)
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case op == bytecode.CallV:
			argsTuple := pop1(th).(*object.Tuple)
			callee := pop1(th)
			res, exc := in.invoke(th, callee, append([]object.Object{}, argsTuple.Slice()...))
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case op == bytecode.MakeList:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			push(th, object.NewList(popN(th, n)))
			fr.PC += op.Width()

		case op == bytecode.ListPushN:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			vals := popN(th, n)
			lst := pop1(th).(*object.List)
			for _, v := range vals {
				lst.Push(v)
			}
			push(th, lst)
			fr.PC += op.Width()

		case op == bytecode.ListPushI:
			v := pop1(th)
			lst := pop1(th).(*object.List)
			lst.Push(v)
			push(th, lst)
			fr.PC += op.Width()

		case op == bytecode.MakeTuple:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			push(th, object.NewTuple(popN(th, n)))
			fr.PC += op.Width()

		case op == bytecode.TuplePushN:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			vals := popN(th, n)
			t := pop1(th).(*object.Tuple)
			push(th, object.NewTuple(append(append([]object.Object{}, t.Slice()...), vals...)))
			fr.PC += op.Width()

		case op == bytecode.TuplePushI:
			v := pop1(th)
			t := pop1(th).(*object.Tuple)
			push(th, object.NewTuple(append(append([]object.Object{}, t.Slice()...), v)))
			fr.PC += op.Width()

		case op == bytecode.MakeSet:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			s, exc := object.NewSet(popN(th, n))
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, s)
			fr.PC += op.Width()

		case op == bytecode.SetPushN:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			vals := popN(th, n)
			s := pop1(th).(*object.Set)
			var setExc object.Object
			for _, v := range vals {
				if exc := s.Add(v); exc != nil {
					setExc = exc
					break
				}
			}
			if setExc != nil {
				if raise(setExc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, s)
			fr.PC += op.Width()

		case op == bytecode.SetPushI:
			v := pop1(th)
			s := pop1(th).(*object.Set)
			if exc := s.Add(v); exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, s)
			fr.PC += op.Width()

		case op == bytecode.MakeSlice:
			step := pop1(th)
			end := pop1(th)
			start := pop1(th)
			push(th, object.NewSlice(start, end, step))
			fr.PC += op.Width()

		case op == bytecode.MakeDict:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			items := popN(th, 2*n)
			d := object.NewDict()
			var setExc object.Object
			for i := 0; i < n; i++ {
				if exc := d.Set(items[2*i], items[2*i+1]); exc != nil {
					setExc = exc
					break
				}
			}
			if setExc != nil {
				if raise(setExc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, d)
			fr.PC += op.Width()

		case op == bytecode.MakeFunc:
			idx := bytecode.ReadArg(code.Bytes, fr.PC)
			desc := code.Constants[idx].(*object.FuncDescriptor)
			params := append([]object.Param{}, desc.Params...)
			push(th, object.NewBytecodeFunc(desc.Name, params, desc.Variadic, desc.Code, fr, fr.Callable.Module))
			fr.PC += op.Width()

		case op == bytecode.FuncDefA:
			n := int(bytecode.ReadArg(code.Bytes, fr.PC))
			fn := pop1(th).(*object.Func)
			defaults := popN(th, n)
			for i, d := range defaults {
				fn.Params[len(fn.Params)-n+i].Default = d
			}
			push(th, fn)
			fr.PC += op.Width()

		case op == bytecode.MakeType:
			idx := bytecode.ReadArg(code.Bytes, fr.PC)
			desc := code.Constants[idx].(*object.TypeDescriptor)
			base := object.ObjectType
			if desc.Base != "" {
				v, ok := resolveName(fr, desc.Base, in.Builtins)
				if !ok {
					if raise(object.NewException(vmerr.NameError, "name '"+desc.Base+"' is not defined")) {
						continue
					}
					th.PopFrame()
					return nil, th.Exception()
				}
				bt, ok := v.(*object.Type)
				if !ok {
					if raise(object.NewException(vmerr.TypeError, "'"+desc.Base+"' is not a type")) {
						continue
					}
					th.PopFrame()
					return nil, th.Exception()
				}
				base = bt
			}
			t := object.NewType(desc.Name, base)
			t.Fields = desc.Fields
			t.HasAttrs = true
			t.Methods = make(map[string]object.Object, len(desc.Methods))
			for _, md := range desc.Methods {
				params := append([]object.Param{}, md.Params...)
				t.Methods[md.Name] = object.NewBytecodeFunc(md.Name, params, md.Variadic, md.Code, fr, fr.Callable.Module)
			}
			push(th, t)
			fr.PC += op.Width()

		case op == bytecode.Jmp:
			off := bytecode.ReadArg(code.Bytes, fr.PC)
			fr.PC += op.Width() + int(off)

		case op == bytecode.JmpT:
			off := bytecode.ReadArg(code.Bytes, fr.PC)
			if object.Truthy(peek(th)) {
				fr.PC += op.Width() + int(off)
			} else {
				fr.PC += op.Width()
			}

		case op == bytecode.JmpF:
			off := bytecode.ReadArg(code.Bytes, fr.PC)
			if !object.Truthy(peek(th)) {
				fr.PC += op.Width() + int(off)
			} else {
				fr.PC += op.Width()
			}

		case op == bytecode.Ret:
			v := pop1(th)
			th.PopFrame()
			return v, nil

		case op == bytecode.Throw:
			v := pop1(th)
			if raise(v) {
				continue
			}
			th.PopFrame()
			return nil, th.Exception()

		case op == bytecode.ForStart:
			coll := pop1(th)
			fn := object.SlotIter(coll.KType())
			if fn == nil {
				if raise(object.NewException(vmerr.TypeError, "'"+coll.KType().Name+"' object is not iterable")) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			iter, exc := fn([]object.Object{coll})
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, iter)
			fr.PC += op.Width()

		case op == bytecode.ForNextF:
			off := bytecode.ReadArg(code.Bytes, fr.PC)
			iter := peek(th)
			fn := object.SlotNext(iter.KType())
			val, exc := fn([]object.Object{iter})
			if exc != nil {
				if isOutOfIter(exc) {
					fr.PC += op.Width() + int(off)
					continue
				}
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, val)
			fr.PC += op.Width()

		case op == bytecode.ForNextT:
			off := bytecode.ReadArg(code.Bytes, fr.PC)
			iter := peek(th)
			fn := object.SlotNext(iter.KType())
			val, exc := fn([]object.Object{iter})
			if exc != nil {
				if isOutOfIter(exc) {
					pop1(th)
					fr.PC += op.Width()
					continue
				}
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, val)
			fr.PC += op.Width() + int(off)

		case op == bytecode.TryStart:
			off := bytecode.ReadArg(code.Bytes, fr.PC)
			tryStack = append(tryStack, tryMarker{depth: len(th.Stack), target: fr.PC + op.Width() + int(off)})
			fr.PC += op.Width()

		case op == bytecode.TryCatch:
			off := bytecode.ReadArg(code.Bytes, fr.PC)
			typeObj, ok := pop1(th).(*object.Type)
			exc := th.Exception()
			if ok && exc != nil && object.IsSubtype(exc.KType(), typeObj) {
				push(th, exc)
				th.ClearException()
				fr.PC += op.Width()
			} else {
				fr.PC += op.Width() + int(off)
			}

		case op == bytecode.TryCatchAll:
			exc := th.Exception()
			push(th, exc)
			th.ClearException()
			fr.PC += op.Width()

		case op == bytecode.TryEnd:
			// No catch arm matched; fall through into the finally block
			// (if any) and let finally_end decide whether to re-propagate.
			fr.PC += op.Width()

		case op == bytecode.FinallyEnd:
			if th.Exception() != nil {
				if target, ok := unwind(); ok {
					fr.PC = target
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			fr.PC += op.Width()

		case op == bytecode.Eeq:
			b := pop1(th)
			a := pop1(th)
			push(th, object.NewBool(a == b))
			fr.PC += op.Width()

		case op == bytecode.Eq:
			b := pop1(th)
			a := pop1(th)
			eq, exc := object.EqOf(a, b)
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, object.NewBool(eq))
			fr.PC += op.Width()

		case op == bytecode.Ne:
			b := pop1(th)
			a := pop1(th)
			eq, exc := object.EqOf(a, b)
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, object.NewBool(!eq))
			fr.PC += op.Width()

		case op == bytecode.BinIn:
			b := pop1(th)
			a := pop1(th)
			fn := object.SlotContains(b.KType())
			var res, exc object.Object
			if fn == nil {
				exc = object.NewException(vmerr.TypeError, "argument of type '"+b.KType().Name+"' is not a container")
			} else {
				res, exc = fn([]object.Object{b, a})
			}
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case unarySlots[op] != nil:
			getter := unarySlots[op]
			a := pop1(th)
			fn := getter(a.KType())
			var res, exc object.Object
			if fn == nil {
				exc = object.NewException(vmerr.TypeError, "unsupported operand type for unary operator: '"+a.KType().Name+"'")
			} else {
				res, exc = fn([]object.Object{a})
			}
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		case op == bytecode.UnaryNot:
			a := pop1(th)
			push(th, object.NewBool(!object.Truthy(a)))
			fr.PC += op.Width()

		case binSlots[op].get != nil:
			info := binSlots[op]
			b := pop1(th)
			a := pop1(th)
			res, exc := object.BinOp(info.name, info.get, a, b)
			if exc != nil {
				if raise(exc) {
					continue
				}
				th.PopFrame()
				return nil, th.Exception()
			}
			push(th, res)
			fr.PC += op.Width()

		default:
			if raise(object.NewException(vmerr.InternalError, fmt.Sprintf("unhandled opcode %s", op))) {
				continue
			}
			th.PopFrame()
			return nil, th.Exception()
		}
	}
}

func isOutOfIter(exc object.Object) bool {
	e, ok := exc.(*object.Exception)
	return ok && e.Kind == vmerr.OutOfIterError
}

// indexArg collects the n index operands GetElem/SetElem were given: a
// bare value for the common n==1 case, or a Tuple for multi-index forms.
func indexArg(th *object.Thread, n int) object.Object {
	if n == 1 {
		return pop1(th)
	}
	return object.NewTuple(popN(th, n))
}

func dispatchGetAttr(obj, nameObj object.Object) (object.Object, object.Object) {
	fn := object.SlotGetAttr(obj.KType())
	if fn == nil {
		name, _ := object.StrOf(nameObj)
		return nil, object.NewException(vmerr.AttrError, "'"+obj.KType().Name+"' object has no attribute '"+name+"'")
	}
	return fn([]object.Object{obj, nameObj})
}

func dispatchSetAttr(obj, nameObj, val object.Object) (object.Object, object.Object) {
	fn := object.SlotSetAttr(obj.KType())
	if fn == nil {
		return nil, object.NewException(vmerr.AttrError, "'"+obj.KType().Name+"' object attributes are read-only")
	}
	return fn([]object.Object{obj, nameObj, val})
}

// invoke dispatches a `call`/`callv` target to the right calling
// convention: native Go function, bytecode closure, bound-method
// partial, or type constructor.
func (in *Interpreter) invoke(th *object.Thread, callee object.Object, args []object.Object) (object.Object, object.Object) {
	switch c := callee.(type) {
	case *object.Partial:
		return in.invoke(th, c.Wrapped, c.Flatten(args))
	case *object.Func:
		if c.Native != nil {
			return c.Native(args)
		}
		return in.invokeBytecode(th, c, args)
	case *object.Type:
		return in.construct(th, c, args)
	default:
		if callee == nil {
			return nil, object.NewException(vmerr.TypeError, "'none' object is not callable")
		}
		if fn := object.SlotCall(callee.KType()); fn != nil {
			return fn(append([]object.Object{callee}, args...))
		}
		return nil, object.NewException(vmerr.TypeError, "'"+callee.KType().Name+"' object is not callable")
	}
}

// invokeBytecode binds args to fn's parameters (positional, defaulted,
// variadic; spec §3 "func") and runs its code in a fresh frame closed
// over fn.Closure.
func (in *Interpreter) invokeBytecode(th *object.Thread, fn *object.Func, args []object.Object) (object.Object, object.Object) {
	locals := make(map[string]object.Object, len(fn.Params))
	np := len(fn.Params)
	for i, p := range fn.Params {
		if fn.Variadic == i {
			var rest []object.Object
			if i < len(args) {
				rest = args[i:]
			}
			locals[p.Name] = object.NewTuple(rest)
			continue
		}
		if i < len(args) {
			locals[p.Name] = args[i]
		} else if p.Default != nil {
			locals[p.Name] = p.Default
		} else {
			return nil, object.NewException(vmerr.ArgError, fmt.Sprintf("%s() missing required argument: '%s'", displayName(fn.Name), p.Name))
		}
	}
	if fn.Variadic < 0 && len(args) > np {
		return nil, object.NewException(vmerr.ArgError, fmt.Sprintf("%s() takes at most %d argument(s) (%d given)", displayName(fn.Name), np, len(args)))
	}
	frame := object.NewFrame(fn, object.NewTuple(args), fn.Closure)
	frame.Locals = locals
	th.PushFrame(frame)
	return in.runFrame(th, frame)
}

func displayName(name string) string {
	if name == "" {
		return "<anonymous>"
	}
	return name
}

// construct implements calling a Type as its own constructor (spec §3
// "type: calling the type constructs an instance"): a type's own New
// slot takes precedence; otherwise a plain Instance is allocated and its
// `init` method, if declared, runs for side effects.
func (in *Interpreter) construct(th *object.Thread, t *object.Type, args []object.Object) (object.Object, object.Object) {
	if t.Slots.New != nil {
		return t.Slots.New(args)
	}
	inst := object.NewInstance(t)
	if initFn, ok := t.Methods["init"]; ok {
		bound := object.NewPartial(initFn, map[int]object.Object{0: inst})
		if _, exc := in.invoke(th, bound, args); exc != nil {
			return nil, exc
		}
	}
	return inst, nil
}
