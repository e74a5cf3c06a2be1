package object

import (
	"math/big"
	"strings"
	"sync"

	"kvm/internal/vmerr"
)

// ListType is a mutable, dynamically grown ordered sequence (spec §3 "list").
var ListType = NewType("list", ObjectType)

// TupleType is an immutable fixed-size ordered sequence (spec §3 "tuple").
var TupleType = NewType("tuple", ObjectType)

type List struct {
	Header
	mu    sync.Mutex
	elems []Object
}

func (l *List) header() *Header { return &l.Header }

func NewList(elems []Object) *List {
	return &List{Header: NewHeader(ListType), elems: append([]Object{}, elems...)}
}

func (l *List) Push(v Object) {
	l.mu.Lock()
	l.elems = append(l.elems, v)
	l.mu.Unlock()
}

func (l *List) Len() int { return len(l.elems) }

func (l *List) Slice() []Object { return l.elems }

func (l *List) At(i int) (Object, bool) {
	if i < 0 {
		i += len(l.elems)
	}
	if i < 0 || i >= len(l.elems) {
		return nil, false
	}
	return l.elems[i], true
}

func (l *List) SetAt(i int, v Object) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 {
		i += len(l.elems)
	}
	if i < 0 || i >= len(l.elems) {
		return false
	}
	l.elems[i] = v
	return true
}

type Tuple struct {
	Header
	elems []Object
}

func (t *Tuple) header() *Header { return &t.Header }

func NewTuple(elems []Object) *Tuple {
	return &Tuple{Header: NewHeader(TupleType), elems: append([]Object{}, elems...)}
}

func (t *Tuple) Len() int        { return len(t.elems) }
func (t *Tuple) Slice() []Object { return t.elems }

func (t *Tuple) At(i int) (Object, bool) {
	if i < 0 {
		i += len(t.elems)
	}
	if i < 0 || i >= len(t.elems) {
		return nil, false
	}
	return t.elems[i], true
}

func reprSeq(elems []Object, open, close string, th *Thread) (string, Object) {
	parts := make([]string, len(elems))
	for i, e := range elems {
		s, exc := ReprOf(e, th)
		if exc != nil {
			return "", exc
		}
		parts[i] = s
	}
	return open + strings.Join(parts, ", ") + close, nil
}

func eqSeq(a, b []Object) (bool, Object) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		eq, exc := EqOf(a[i], b[i])
		if exc != nil {
			return false, exc
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

func seqGetElem(elems []Object, idxObj Object) (Object, []Object, Object) {
	switch idx := idxObj.(type) {
	case *Int:
		i := int(idx.Val.Int64())
		if i < 0 {
			i += len(elems)
		}
		if i < 0 || i >= len(elems) {
			return nil, nil, NewException(vmerr.IndexError, "index out of range")
		}
		return elems[i], nil, nil
	case *Slice:
		first, _, delta, n := idx.Normalize(len(elems))
		out := make([]Object, 0, n)
		i := first
		for k := 0; k < n; k++ {
			out = append(out, elems[i])
			i += delta
		}
		return nil, out, nil // caller wraps in List/Tuple as appropriate
	}
	return nil, nil, NewException(vmerr.TypeError, "index must be int or slice")
}

func init() {
	ListType.Slots.Len = func(args []Object) (Object, Object) {
		return NewInt(int64(args[0].(*List).Len())), nil
	}
	ListType.Slots.Repr = func(args []Object) (Object, Object) {
		l := args[0].(*List)
		return wrapStr(reprSeq(l.elems, "[", "]", nil))
	}
	ListType.Slots.Bool = func(args []Object) (Object, Object) {
		return NewBool(args[0].(*List).Len() != 0), nil
	}
	ListType.Slots.Eq = func(args []Object) (Object, Object) {
		a, ok := args[0].(*List)
		b, ok2 := args[1].(*List)
		if !ok || !ok2 {
			return Undefined, nil
		}
		eq, exc := eqSeq(a.elems, b.elems)
		if exc != nil {
			return nil, exc
		}
		return NewBool(eq), nil
	}
	ListType.Slots.Add = func(args []Object) (Object, Object) {
		a, ok := args[0].(*List)
		b, ok2 := args[1].(*List)
		if !ok || !ok2 {
			return Undefined, nil
		}
		out := append(append([]Object{}, a.elems...), b.elems...)
		return NewList(out), nil
	}
	ListType.Slots.Contains = func(args []Object) (Object, Object) {
		a := args[0].(*List)
		for _, e := range a.elems {
			eq, exc := EqOf(e, args[1])
			if exc != nil {
				return nil, exc
			}
			if eq {
				return True, nil
			}
		}
		return False, nil
	}
	ListType.Slots.GetElem = func(args []Object) (Object, Object) {
		l := args[0].(*List)
		res, s, exc := seqGetElem(l.elems, args[1])
		if exc != nil {
			return nil, exc
		}
		if s != nil {
			return NewList(s), nil
		}
		return res, nil
	}
	ListType.Slots.SetElem = func(args []Object) (Object, Object) {
		l := args[0].(*List)
		idx, ok := args[1].(*Int)
		if !ok {
			return nil, NewException(vmerr.TypeError, "list index must be int")
		}
		if !l.SetAt(int(idx.Val.Int64()), args[2]) {
			return nil, NewException(vmerr.IndexError, "list assignment index out of range")
		}
		return NoneVal, nil
	}
	ListType.Slots.Iter = func(args []Object) (Object, Object) {
		return NewSeqIterator(args[0].(*List).elems), nil
	}
	ListType.Slots.DelElem = func(args []Object) (Object, Object) {
		l := args[0].(*List)
		idx, ok := args[1].(*Int)
		if !ok {
			return nil, NewException(vmerr.TypeError, "list index must be int")
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		i := int(idx.Val.Int64())
		if i < 0 {
			i += len(l.elems)
		}
		if i < 0 || i >= len(l.elems) {
			return nil, NewException(vmerr.IndexError, "list assignment index out of range")
		}
		l.elems = append(l.elems[:i:i], l.elems[i+1:]...)
		return NoneVal, nil
	}

	ListType.Methods = map[string]Object{
		// push/pop implement spec §8's "L.push(x) ... length increases by 1
		// and L[len-1] == x" invariant, and its dual.
		"push": NewNative("push", func(args []Object) (Object, Object) {
			l, ok := args[0].(*List)
			if !ok {
				return nil, NewException(vmerr.TypeError, "push() requires a list receiver")
			}
			if len(args) < 2 {
				return nil, NewException(vmerr.ArgError, "push() missing required argument")
			}
			l.Push(args[1])
			return NoneVal, nil
		}),
		"pop": NewNative("pop", func(args []Object) (Object, Object) {
			l, ok := args[0].(*List)
			if !ok {
				return nil, NewException(vmerr.TypeError, "pop() requires a list receiver")
			}
			l.mu.Lock()
			defer l.mu.Unlock()
			if len(l.elems) == 0 {
				return nil, NewException(vmerr.IndexError, "pop from empty list")
			}
			v := l.elems[len(l.elems)-1]
			l.elems = l.elems[:len(l.elems)-1]
			return v, nil
		}),
	}

	TupleType.Slots.Len = func(args []Object) (Object, Object) {
		return NewInt(int64(args[0].(*Tuple).Len())), nil
	}
	TupleType.Slots.Repr = func(args []Object) (Object, Object) {
		t := args[0].(*Tuple)
		if len(t.elems) == 1 {
			s, exc := ReprOf(t.elems[0], nil)
			if exc != nil {
				return nil, exc
			}
			return NewStr("(" + s + ",)"), nil
		}
		return wrapStr(reprSeq(t.elems, "(", ")", nil))
	}
	TupleType.Slots.Eq = func(args []Object) (Object, Object) {
		a, ok := args[0].(*Tuple)
		b, ok2 := args[1].(*Tuple)
		if !ok || !ok2 {
			return Undefined, nil
		}
		eq, exc := eqSeq(a.elems, b.elems)
		if exc != nil {
			return nil, exc
		}
		return NewBool(eq), nil
	}
	TupleType.Slots.GetElem = func(args []Object) (Object, Object) {
		t := args[0].(*Tuple)
		res, s, exc := seqGetElem(t.elems, args[1])
		if exc != nil {
			return nil, exc
		}
		if s != nil {
			return NewTuple(s), nil
		}
		return res, nil
	}
	TupleType.Slots.Iter = func(args []Object) (Object, Object) {
		return NewSeqIterator(args[0].(*Tuple).elems), nil
	}
	TupleType.Slots.Hash = func(args []Object) (Object, Object) {
		t := args[0].(*Tuple)
		var h uint64 = 14695981039346656037
		for _, e := range t.elems {
			eh, exc := HashOf(e)
			if exc != nil {
				return nil, exc
			}
			h ^= eh
			h *= 1099511628211
		}
		return NewInt(int64(h)), nil
	}

	// New slots back the builtin `list(x)`/`tuple(x)` constructors
	// internal/builtins registers: with no argument, empty; otherwise
	// drain x via the iteration protocol (spec §8 scenario 2's list-from-
	// range construction).
	ListType.Slots.New = func(args []Object) (Object, Object) {
		if len(args) == 0 {
			return NewList(nil), nil
		}
		elems, exc := CollectIter(args[0])
		if exc != nil {
			return nil, exc
		}
		return NewList(elems), nil
	}
	TupleType.Slots.New = func(args []Object) (Object, Object) {
		if len(args) == 0 {
			return NewTuple(nil), nil
		}
		elems, exc := CollectIter(args[0])
		if exc != nil {
			return nil, exc
		}
		return NewTuple(elems), nil
	}
}

func wrapStr(s string, exc Object) (Object, Object) {
	if exc != nil {
		return nil, exc
	}
	return NewStr(s), nil
}

// ---- Slice ----

// SliceType is a triple (start, end, step) of arbitrary objects, normalized
// against a target length (spec §3 "slice").
var SliceType = NewType("slice", ObjectType)

type Slice struct {
	Header
	Start, End, Step Object // any of these may be NoneVal
}

func (s *Slice) header() *Header { return &s.Header }

func NewSlice(start, end, step Object) *Slice {
	return &Slice{Header: NewHeader(SliceType), Start: start, End: end, Step: step}
}

// Normalize resolves the slice against a target length, returning the
// first index, last index (exclusive bound before stepping), the step
// delta, and the resulting element count. Step==0 is a ValError per
// spec §8 "Slice of any length with step=0 throws ValError" -- callers
// must check via NormalizeErr if they need to surface that.
func (s *Slice) Normalize(length int) (first, last, delta, n int) {
	first, last, delta, n, _ = s.NormalizeErr(length)
	return
}

func (s *Slice) NormalizeErr(length int) (first, last, delta, n int, exc Object) {
	step := 1
	if si, ok := s.Step.(*Int); ok {
		step = int(si.Val.Int64())
	}
	if step == 0 {
		return 0, 0, 0, 0, NewException(vmerr.ValError, "slice step cannot be zero")
	}
	var lo, hi int
	if step > 0 {
		lo, hi = 0, length
	} else {
		lo, hi = -1, length-1
	}
	start := lo
	if step > 0 {
		start = 0
	} else {
		start = length - 1
	}
	if si, ok := s.Start.(*Int); ok {
		start = clampIndex(int(si.Val.Int64()), length, step > 0)
	}
	end := hi
	if step < 0 {
		end = lo
	}
	if ei, ok := s.End.(*Int); ok {
		end = clampIndex(int(ei.Val.Int64()), length, step > 0)
	}
	n = 0
	if step > 0 {
		if start < end {
			n = (end - start + step - 1) / step
		}
	} else {
		if start > end {
			n = (start - end + (-step) - 1) / (-step)
		}
	}
	return start, end, step, n, nil
}

func clampIndex(i, length int, forward bool) int {
	if i < 0 {
		i += length
	}
	if forward {
		if i < 0 {
			i = 0
		}
		if i > length {
			i = length
		}
	} else {
		if i < -1 {
			i = -1
		}
		if i >= length {
			i = length - 1
		}
	}
	return i
}

func init() {
	SliceType.Slots.Repr = func(args []Object) (Object, Object) {
		s := args[0].(*Slice)
		rs := func(o Object) string {
			if _, ok := o.(*None); ok || o == nil {
				return ""
			}
			str, _ := ReprOf(o, nil)
			return str
		}
		return NewStr(rs(s.Start) + ":" + rs(s.End) + ":" + rs(s.Step)), nil
	}
}

// ---- Range ----

// RangeType acts as a lazy integer sequence (spec §3 "range").
var RangeType = NewType("range", ObjectType)

type Range struct {
	Header
	Start, End, Step *big.Int
}

func (r *Range) header() *Header { return &r.Header }

func NewRange(start, end, step *big.Int) *Range {
	return &Range{Header: NewHeader(RangeType), Start: start, End: end, Step: step}
}

func (r *Range) Len() int {
	if r.Step.Sign() == 0 {
		return 0
	}
	diff := new(big.Int).Sub(r.End, r.Start)
	if r.Step.Sign() > 0 {
		if diff.Sign() <= 0 {
			return 0
		}
	} else {
		diff.Neg(diff)
		if diff.Sign() <= 0 {
			return 0
		}
	}
	step := new(big.Int).Abs(r.Step)
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(diff, step, m)
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return int(q.Int64())
}

func init() {
	RangeType.Slots.Len = func(args []Object) (Object, Object) {
		return NewInt(int64(args[0].(*Range).Len())), nil
	}
	RangeType.Slots.Repr = func(args []Object) (Object, Object) {
		r := args[0].(*Range)
		return NewStr("range(" + r.Start.String() + ", " + r.End.String() + ", " + r.Step.String() + ")"), nil
	}
	RangeType.Slots.Iter = func(args []Object) (Object, Object) {
		r := args[0].(*Range)
		return NewRangeIterator(r), nil
	}

	// range(stop), range(start, stop), range(start, stop, step) -- spec §8
	// scenario 2's `range(3)` builtin, following Python's argument shape.
	RangeType.Slots.New = func(args []Object) (Object, Object) {
		toInt := func(o Object) (*big.Int, Object) {
			i := asInt(o)
			if i == nil {
				return nil, NewException(vmerr.TypeError, "range() arguments must be int")
			}
			return i.Val, nil
		}
		start, end, step := big.NewInt(0), big.NewInt(0), big.NewInt(1)
		var exc Object
		switch len(args) {
		case 1:
			if end, exc = toInt(args[0]); exc != nil {
				return nil, exc
			}
		case 2:
			if start, exc = toInt(args[0]); exc != nil {
				return nil, exc
			}
			if end, exc = toInt(args[1]); exc != nil {
				return nil, exc
			}
		case 3:
			if start, exc = toInt(args[0]); exc != nil {
				return nil, exc
			}
			if end, exc = toInt(args[1]); exc != nil {
				return nil, exc
			}
			if step, exc = toInt(args[2]); exc != nil {
				return nil, exc
			}
			if step.Sign() == 0 {
				return nil, NewException(vmerr.ValError, "range() step must not be zero")
			}
		default:
			return nil, NewException(vmerr.ArgError, "range() expects 1 to 3 arguments")
		}
		return NewRange(new(big.Int).Set(start), new(big.Int).Set(end), new(big.Int).Set(step)), nil
	}
}

// ---- Iterators ----

// IteratorType marks any value returned by a type's Iter slot; calling its
// Next slot yields values until OutOfIterError (spec §4.4 "for_start/
// for_nextt/f").
var IteratorType = NewType("iterator", ObjectType)

type SeqIterator struct {
	Header
	elems []Object
	pos   int
}

func (it *SeqIterator) header() *Header { return &it.Header }

func NewSeqIterator(elems []Object) *SeqIterator {
	return &SeqIterator{Header: NewHeader(IteratorType), elems: elems}
}

type RangeIterator struct {
	Header
	cur  *big.Int
	step *big.Int
	end  *big.Int
}

func (it *RangeIterator) header() *Header { return &it.Header }

func NewRangeIterator(r *Range) *RangeIterator {
	return &RangeIterator{Header: NewHeader(IteratorType), cur: new(big.Int).Set(r.Start), step: r.Step, end: r.End}
}

func init() {
	IteratorType.Slots.Next = func(args []Object) (Object, Object) {
		switch it := args[0].(type) {
		case *SeqIterator:
			if it.pos >= len(it.elems) {
				return nil, NewException(vmerr.OutOfIterError, "iterator exhausted")
			}
			v := it.elems[it.pos]
			it.pos++
			return v, nil
		case *RangeIterator:
			if it.step.Sign() > 0 && it.cur.Cmp(it.end) >= 0 {
				return nil, NewException(vmerr.OutOfIterError, "iterator exhausted")
			}
			if it.step.Sign() < 0 && it.cur.Cmp(it.end) <= 0 {
				return nil, NewException(vmerr.OutOfIterError, "iterator exhausted")
			}
			v := new(big.Int).Set(it.cur)
			it.cur.Add(it.cur, it.step)
			return NewIntFromBig(v), nil
		}
		return nil, NewException(vmerr.InternalError, "not an iterator")
	}
	IteratorType.Slots.Iter = func(args []Object) (Object, Object) { return args[0], nil }
}
