package object

import (
	"sync"

	"kvm/internal/vmerr"
)

// reprGuard is the process-wide recursive-repr stack (spec §4.5, §3
// "Thread: ... in-repr guard"). Repr slots are plain NativeFn values with
// no Thread parameter, so a container's own Repr implementation (e.g.
// ListType's, via reprSeq) cannot forward the calling Thread down into the
// elements it recurses into -- it calls ReprOf(elem, nil) for each one.
// Guarding globally instead of per-Thread still catches the recursion
// spec §8 requires eliding (`x=[]; x.push(x); x`): the GIL ensures only
// one call chain is actually recursing through repr at a time.
var reprGuard struct {
	mu    sync.Mutex
	stack []Object
}

func pushReprGuard(o Object) bool {
	reprGuard.mu.Lock()
	defer reprGuard.mu.Unlock()
	for _, x := range reprGuard.stack {
		if x == o {
			return true
		}
	}
	reprGuard.stack = append(reprGuard.stack, o)
	return false
}

func popReprGuard() {
	reprGuard.mu.Lock()
	defer reprGuard.mu.Unlock()
	if n := len(reprGuard.stack); n > 0 {
		reprGuard.stack = reprGuard.stack[:n-1]
	}
}

// This file centralizes the dispatch protocol described in spec §4.4 so the
// VM's opcode handlers and the built-in containers share one implementation
// of "try the left operand's slot, then the right's, then fail".

// HashOf dispatches a type's Hash slot; dict/set keys must be hashable
// (spec §3 "mappings and sets are unhashable by default").
func HashOf(o Object) (uint64, Object) {
	fn := SlotHash(o.KType())
	if fn == nil {
		return 0, NewException(vmerr.TypeError, "unhashable type: "+o.KType().Name)
	}
	res, exc := fn([]Object{o})
	if exc != nil {
		return 0, exc
	}
	i, ok := res.(*Int)
	if !ok {
		return 0, NewException(vmerr.InternalError, "hash slot did not return int")
	}
	return uint64(i.Val.Int64()), nil
}

// EqOf implements value equality, trying a's Eq slot then b's.
func EqOf(a, b Object) (bool, Object) {
	if fn := SlotEq(a.KType()); fn != nil {
		res, exc := fn([]Object{a, b})
		if exc != nil {
			return false, exc
		}
		if !IsUndefined(res) {
			return Truthy(res), nil
		}
	}
	if fn := SlotEq(b.KType()); fn != nil {
		res, exc := fn([]Object{b, a})
		if exc != nil {
			return false, exc
		}
		if !IsUndefined(res) {
			return Truthy(res), nil
		}
	}
	return a == b, nil
}

// BinOp dispatches a two-operand slot left-then-right (spec §4.4): "each
// may return a sentinel undefined to defer to the other side; if both
// defer, a type error is thrown."
func BinOp(name string, get func(*Type) NativeFn, a, b Object) (Object, Object) {
	if fn := get(a.KType()); fn != nil {
		res, exc := fn([]Object{a, b})
		if exc != nil {
			return nil, exc
		}
		if !IsUndefined(res) {
			return res, nil
		}
	}
	if fn := get(b.KType()); fn != nil {
		res, exc := fn([]Object{b, a})
		if exc != nil {
			return nil, exc
		}
		if !IsUndefined(res) {
			return res, nil
		}
	}
	return nil, NewException(vmerr.TypeError, "unsupported operand type(s) for "+name+": '"+a.KType().Name+"' and '"+b.KType().Name+"'")
}

// Truthy dispatches the Bool slot, defaulting to true when absent (an
// object with no Bool slot and no Len slot is truthy, matching the common
// convention).
func Truthy(o Object) bool {
	if o == nil {
		return false
	}
	if fn := SlotBool(o.KType()); fn != nil {
		res, exc := fn([]Object{o})
		if exc == nil {
			if b, ok := res.(*Bool); ok {
				return b.Val
			}
		}
		return false
	}
	if fn := SlotLen(o.KType()); fn != nil {
		res, exc := fn([]Object{o})
		if exc == nil {
			if i, ok := res.(*Int); ok {
				return i.Val.Sign() != 0
			}
		}
	}
	return true
}

// StrOf dispatches Str, falling back to Repr, per the common convention
// that every object at least has a repr.
func StrOf(o Object) (string, Object) {
	if fn := SlotStr(o.KType()); fn != nil {
		res, exc := fn([]Object{o})
		if exc != nil {
			return "", exc
		}
		if s, ok := res.(*Str); ok {
			return s.Value(), nil
		}
	}
	return ReprOf(o, nil)
}

// CollectIter drains any iterable object into a slice, using the same
// Iter/Next protocol the VM's for_start/for_nextf opcodes use. Used by the
// list/tuple/dict/set constructors to build a container from an arbitrary
// iterable argument.
func CollectIter(o Object) ([]Object, Object) {
	fn := SlotIter(o.KType())
	if fn == nil {
		return nil, NewException(vmerr.TypeError, "'"+o.KType().Name+"' object is not iterable")
	}
	iter, exc := fn([]Object{o})
	if exc != nil {
		return nil, exc
	}
	next := SlotNext(iter.KType())
	if next == nil {
		return nil, NewException(vmerr.InternalError, "iterator has no next slot")
	}
	var out []Object
	for {
		v, exc := next([]Object{iter})
		if exc != nil {
			if e, ok := exc.(*Exception); ok && e.Kind == vmerr.OutOfIterError {
				return out, nil
			}
			return nil, exc
		}
		out = append(out, v)
	}
}

// ReprOf dispatches Repr with the recursive-repr guard of spec §4.5: "repr
// pushes the value onto the thread's in-repr list before recursing and pops
// on exit; if the value is already present, the repr emits an elided
// placeholder instead of recursing." th may be nil for repr calls outside
// any running thread (e.g. CLI pretty-printing of a final result).
func ReprOf(o Object, th *Thread) (string, Object) {
	if pushReprGuard(o) {
		return "<...>", nil
	}
	defer popReprGuard()
	if th != nil {
		th.InReprGuard(o)
		defer th.PopInRepr()
	}
	fn := SlotRepr(o.KType())
	if fn == nil {
		return "<" + o.KType().Name + " object>", nil
	}
	res, exc := fn([]Object{o})
	if exc != nil {
		return "", exc
	}
	s, ok := res.(*Str)
	if !ok {
		return "", NewException(vmerr.InternalError, "repr slot did not return str")
	}
	return s.Value(), nil
}
