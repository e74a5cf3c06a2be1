package object

import (
	"testing"

	"kvm/internal/vmerr"
)

// Bool shares IntType's numeric slots (spec §3 "bool is a subtype of
// int"); these previously panicked on a *Bool receiver.
func TestBoolArithmeticDoesNotPanic(t *testing.T) {
	eq, exc := EqOf(True, True)
	if exc != nil {
		t.Fatalf("true == true: %v", exc)
	}
	if !eq {
		t.Error("true == true should be true")
	}
	sum, exc := BinOp("+", SlotAdd, True, NewInt(1))
	if exc != nil {
		t.Fatalf("true + 1: %v", exc)
	}
	i, ok := sum.(*Int)
	if !ok || i.Val.Int64() != 2 {
		t.Errorf("true + 1 = %#v, want Int(2)", sum)
	}
	lt, exc := BinOp("<", SlotLt, False, NewInt(1))
	if exc != nil {
		t.Fatalf("false < 1: %v", exc)
	}
	if !Truthy(lt) {
		t.Error("false < 1 should be true")
	}
}

func TestBoolAsDictAndSetKey(t *testing.T) {
	d := NewDict()
	if exc := d.Set(True, NewStr("yes")); exc != nil {
		t.Fatalf("Set(true, ...): %v", exc)
	}
	v, found, exc := d.Get(True)
	if exc != nil || !found {
		t.Fatalf("Get(true) = %v, %v, %v", v, found, exc)
	}
	s, errExc := NewSet([]Object{True, False, True})
	if errExc != nil {
		t.Fatalf("NewSet: %v", errExc)
	}
	n := SlotLen(s.KType())
	lenObj, exc := n([]Object{s})
	if exc != nil {
		t.Fatalf("len(set): %v", exc)
	}
	if lenObj.(*Int).Val.Int64() != 2 {
		t.Errorf("set{true,false,true} length = %v, want 2", lenObj)
	}
}

// int / int now yields a float, distinct from the floor-division //.
func TestIntDivYieldsFloat(t *testing.T) {
	res, exc := BinOp("/", SlotDiv, NewInt(6), NewInt(2))
	if exc != nil {
		t.Fatalf("6 / 2: %v", exc)
	}
	f, ok := res.(*Float)
	if !ok {
		t.Fatalf("6 / 2 = %#v, want *Float", res)
	}
	if f.Val != 3.0 {
		t.Errorf("6 / 2 = %v, want 3.0", f.Val)
	}
}

func TestIntFloorDivStaysInt(t *testing.T) {
	res, exc := BinOp("//", SlotFloorDiv, NewInt(7), NewInt(2))
	if exc != nil {
		t.Fatalf("7 // 2: %v", exc)
	}
	i, ok := res.(*Int)
	if !ok || i.Val.Int64() != 3 {
		t.Errorf("7 // 2 = %#v, want Int(3)", res)
	}
}

func TestIntTypeConstructor(t *testing.T) {
	r, exc := IntType.Slots.New([]Object{NewStr("42")})
	if exc != nil {
		t.Fatalf("int(\"42\"): %v", exc)
	}
	if r.(*Int).Val.Int64() != 42 {
		t.Errorf("int(\"42\") = %v, want 42", r)
	}
	if _, exc := IntType.Slots.New([]Object{NewStr("nope")}); exc == nil {
		t.Error(`int("nope") should raise an exception`)
	}
}

func TestFloatTypeConstructor(t *testing.T) {
	r, exc := FloatType.Slots.New([]Object{NewStr("3.14")})
	if exc != nil {
		t.Fatalf("float(\"3.14\"): %v", exc)
	}
	if r.(*Float).Val != 3.14 {
		t.Errorf("float(\"3.14\") = %v, want 3.14", r)
	}
}

func TestRangeConstructorArgumentForms(t *testing.T) {
	one, exc := RangeType.Slots.New([]Object{NewInt(3)})
	if exc != nil {
		t.Fatalf("range(3): %v", exc)
	}
	elems, exc := CollectIter(one)
	if exc != nil {
		t.Fatalf("iterating range(3): %v", exc)
	}
	if len(elems) != 3 || elems[0].(*Int).Val.Int64() != 0 || elems[2].(*Int).Val.Int64() != 2 {
		t.Errorf("range(3) = %v, want [0 1 2]", elems)
	}

	two, exc := RangeType.Slots.New([]Object{NewInt(1), NewInt(5)})
	if exc != nil {
		t.Fatalf("range(1, 5): %v", exc)
	}
	elems, exc = CollectIter(two)
	if exc != nil || len(elems) != 4 {
		t.Fatalf("range(1, 5) elems = %v, %v", elems, exc)
	}

	three, exc := RangeType.Slots.New([]Object{NewInt(1), NewInt(10), NewInt(2)})
	if exc != nil {
		t.Fatalf("range(1, 10, 2): %v", exc)
	}
	elems, exc = CollectIter(three)
	if exc != nil || len(elems) != 5 {
		t.Fatalf("range(1, 10, 2) elems = %v, %v", elems, exc)
	}

	if _, exc := RangeType.Slots.New([]Object{NewInt(1), NewInt(10), NewInt(0)}); exc == nil {
		t.Error("range(1, 10, 0) should raise ValError for a zero step")
	}
}

func TestListConstructorFromRange(t *testing.T) {
	r, _ := RangeType.Slots.New([]Object{NewInt(3)})
	l, exc := ListType.Slots.New([]Object{r})
	if exc != nil {
		t.Fatalf("list(range(3)): %v", exc)
	}
	lst, ok := l.(*List)
	if !ok || lst.Len() != 3 {
		t.Errorf("list(range(3)) = %#v, want a 3-element list", l)
	}
}

func TestDictConstructorFromPairs(t *testing.T) {
	pairs := NewList([]Object{
		NewTuple([]Object{NewInt(1), NewInt(2)}),
	})
	d, exc := DictType.Slots.New([]Object{pairs})
	if exc != nil {
		t.Fatalf("dict([(1,2)]): %v", exc)
	}
	dict := d.(*Dict)
	v, found, exc := dict.Get(NewInt(1))
	if exc != nil || !found {
		t.Fatalf("dict([(1,2)]).Get(1) = %v, %v, %v", v, found, exc)
	}
	if v.(*Int).Val.Int64() != 2 {
		t.Errorf("dict([(1,2)])[1] = %v, want 2", v)
	}
}

func TestSetConstructorDedupes(t *testing.T) {
	l := NewList([]Object{NewInt(1), NewInt(1), NewInt(2)})
	s, exc := SetType.Slots.New([]Object{l})
	if exc != nil {
		t.Fatalf("set([1,1,2]): %v", exc)
	}
	set := s.(*Set)
	lenFn := SlotLen(set.KType())
	lenObj, _ := lenFn([]Object{set})
	if lenObj.(*Int).Val.Int64() != 2 {
		t.Errorf("set([1,1,2]) length = %v, want 2", lenObj)
	}
}

func TestExceptionConstructorAndAttributes(t *testing.T) {
	typeErrType := TypeForKind(vmerr.TypeError)
	exc, raised := typeErrType.Slots.New([]Object{NewStr("bad value")})
	if raised != nil {
		t.Fatalf("TypeError(\"bad value\"): %v", raised)
	}
	e, ok := exc.(*Exception)
	if !ok {
		t.Fatalf("TypeError(...) = %#v, not *Exception", exc)
	}
	msg, excAttr := ExceptionType.Slots.GetAttr([]Object{e, NewStr("message")})
	if excAttr != nil {
		t.Fatalf(".message: %v", excAttr)
	}
	if msg.(*Str).Value() != "bad value" {
		t.Errorf(".message = %v, want 'bad value'", msg)
	}
	kind, excAttr := ExceptionType.Slots.GetAttr([]Object{e, NewStr("kind")})
	if excAttr != nil || kind.(*Str).Value() != string(vmerr.TypeError) {
		t.Errorf(".kind = %v, %v, want %q", kind, excAttr, vmerr.TypeError)
	}
	inner, excAttr := ExceptionType.Slots.GetAttr([]Object{e, NewStr("inner")})
	if excAttr != nil || inner != NoneVal {
		t.Errorf(".inner = %v, %v, want NoneVal", inner, excAttr)
	}
}

// spec §8 scenario 4's `throw Error("x")`: Error (and every other kind) is
// directly callable since each kind's type has its own Slots.New.
func TestEveryExceptionKindIsConstructible(t *testing.T) {
	for _, k := range AllKinds {
		typ := TypeForKind(k)
		if typ.Slots.New == nil {
			t.Errorf("exception kind %q has no Slots.New", k)
			continue
		}
		exc, raised := typ.Slots.New([]Object{NewStr("x")})
		if raised != nil {
			t.Errorf("%s(\"x\"): %v", k, raised)
			continue
		}
		e, ok := exc.(*Exception)
		if !ok || e.Kind != k {
			t.Errorf("%s(\"x\") = %#v, want Exception of kind %s", k, exc, k)
		}
	}
}

// spec §8's recursive-repr guard: a list containing itself reprs without
// infinite recursion or a stack overflow.
func TestReprOfSelfReferentialListDoesNotRecurseForever(t *testing.T) {
	l := NewList(nil)
	l.Push(l)
	s, exc := ReprOf(l, nil)
	if exc != nil {
		t.Fatalf("repr(self-referential list): %v", exc)
	}
	if s == "" {
		t.Error("expected a non-empty placeholder repr for the cycle")
	}
}

func TestListDelElem(t *testing.T) {
	l := NewList([]Object{NewInt(1), NewInt(2), NewInt(3)})
	delFn := SlotDelElem(l.KType())
	if delFn == nil {
		t.Fatal("ListType has no DelElem slot")
	}
	if _, exc := delFn([]Object{l, NewInt(1)}); exc != nil {
		t.Fatalf("del list[1]: %v", exc)
	}
	if l.Len() != 2 {
		t.Errorf("after del list[1], len = %d, want 2", l.Len())
	}
}

func TestDictDelElem(t *testing.T) {
	d := NewDict()
	d.Set(NewStr("a"), NewInt(1))
	delFn := SlotDelElem(d.KType())
	if delFn == nil {
		t.Fatal("DictType has no DelElem slot")
	}
	if _, exc := delFn([]Object{d, NewStr("a")}); exc != nil {
		t.Fatalf(`del d["a"]: %v`, exc)
	}
	if _, found, _ := d.Get(NewStr("a")); found {
		t.Error(`after del d["a"], key "a" should be absent`)
	}
}
