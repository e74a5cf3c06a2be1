// Package object implements the runtime value model: reference-counted
// Objects, first-class Types carrying a dispatch-slot table, and the
// built-in primitive/container types. It is grounded on the teacher's
// internal/vm/value.go (the Value interface{} + *Function pair) generalized
// into the polymorphic, type-driven-dispatch model the language needs.
package object

import "sync/atomic"

// Object is any runtime value. Concrete types embed Header, which supplies
// the reference count and the type pointer.
type Object interface {
	KType() *Type
	header() *Header
}

// Header is the common prefix of every heap Object: a reference count and
// a pointer to the owning type. Refcounts are tracked for fidelity with the
// spec's ownership model; Go's garbage collector remains the actual memory
// manager, so a leaked refcount (e.g. from a reference cycle) cannot corrupt
// memory the way it would in the C original -- it only delays the Release
// finalizer hook, exactly as spec.md §9 "Reference cycles" allows.
type Header struct {
	refcount int64
	typ      *Type
}

func NewHeader(t *Type) Header {
	return Header{refcount: 1, typ: t}
}

func (h *Header) KType() *Type   { return h.typ }
func (h *Header) header() *Header { return h }

// RefCount reports the current reference count; exposed for tests only.
func (h *Header) RefCount() int64 { return atomic.LoadInt64(&h.refcount) }

// Retain increments o's reference count and returns o, mirroring the C
// idiom of borrow-then-own at call boundaries.
func Retain(o Object) Object {
	if o == nil {
		return nil
	}
	atomic.AddInt64(&o.header().refcount, 1)
	return o
}

// Release decrements o's reference count; at zero it invokes the owning
// type's Free slot, if any, then lets the object become unreachable.
func Release(o Object) {
	if o == nil {
		return
	}
	h := o.header()
	if atomic.AddInt64(&h.refcount, -1) == 0 {
		if t := h.typ; t != nil && t.Slots.Free != nil {
			t.Slots.Free(o)
		}
	}
}

// Slots is the dispatch-slot table a Type may populate. A nil field means
// the operation is unsupported for that type. Values are NativeFn-wrapped
// or bytecode Func objects so that user-defined types (via `type` blocks in
// source) and built-in types share one calling convention.
type Slots struct {
	New  NativeFn
	Init NativeFn
	Free func(Object)

	Str  NativeFn
	Repr NativeFn
	Hash NativeFn
	Len  NativeFn
	Bool NativeFn

	ToInt     NativeFn
	ToFloat   NativeFn
	ToComplex NativeFn
	ToBytes   NativeFn

	Eq NativeFn
	Ne NativeFn
	Lt NativeFn
	Le NativeFn
	Gt NativeFn
	Ge NativeFn
	Cmp NativeFn

	Add      NativeFn
	Sub      NativeFn
	Mul      NativeFn
	Div      NativeFn
	FloorDiv NativeFn
	Mod      NativeFn
	Pow      NativeFn
	Lsh      NativeFn
	Rsh      NativeFn
	Or       NativeFn
	Xor      NativeFn
	And      NativeFn
	Pos      NativeFn
	Neg      NativeFn
	Abs      NativeFn
	Invert   NativeFn // `sqig`/bitwise-not in spec vocabulary

	GetElem NativeFn
	SetElem NativeFn
	DelElem NativeFn
	Contains NativeFn
	Iter    NativeFn
	Next    NativeFn

	Call NativeFn

	GetAttr NativeFn
	SetAttr NativeFn

	OnTemplate func(*Type, []Object) error
}

// Undefined is the sentinel a binary-operator slot returns to defer to the
// other operand (spec §4.4 "each may return a sentinel 'undefined'").
var Undefined Object = &undefinedT{}

type undefinedT struct{ Header }

func (u *undefinedT) KType() *Type { return nil }

func IsUndefined(o Object) bool { _, ok := o.(*undefinedT); return ok }

// Type is itself an Object: types are first-class values (spec §3 "Types
// are themselves Objects").
type Type struct {
	Header
	Name     string
	QualName string
	Base     *Type // Object is its own base; walking stops there.

	InstanceSize uintptr
	HasAttrs     bool // whether instances of this type carry a per-instance attribute map

	Slots Slots

	// Methods holds named user-defined methods declared in a `type` block
	// (spec §3 "type: ... named methods"), distinct from the fixed
	// operator dispatch slots above. Looked up by ObjectType's default
	// GetAttr slot (see instance.go).
	Methods map[string]Object
	Fields  []string // declared instance attribute names, for repr/documentation

	// TemplateParams is non-nil for a templated type instantiation; its
	// identity (for memoization) is Base+TemplateParams, spec §3/§9.
	TemplateParams []Object
}

func (t *Type) KType() *Type { return TypeType }

// IsSubtype walks the base chain; every type is its own subtype.
func IsSubtype(t, of *Type) bool {
	for cur := t; cur != nil; {
		if cur == of {
			return true
		}
		if cur.Base == cur {
			return false
		}
		cur = cur.Base
	}
	return false
}

// newRootType bootstraps a type whose Base has not been constructed yet; used
// only for ObjectType itself, which is its own base per spec §3.
func newRootType(name string) *Type {
	t := &Type{Name: name, QualName: name}
	t.Base = t
	t.Header = NewHeader(nil) // patched to TypeType once TypeType exists
	return t
}

// ObjectType is the root of the type hierarchy; it is its own base.
var ObjectType = newRootType("object")

// TypeType is the type of types.
var TypeType = &Type{Name: "type", QualName: "type", Header: NewHeader(nil)}

func init() {
	TypeType.Base = ObjectType
	ObjectType.Header = NewHeader(TypeType)
	TypeType.Header = NewHeader(TypeType)
}

// NewType allocates a subtype of base with the given name; callers then
// populate Slots directly.
func NewType(name string, base *Type) *Type {
	if base == nil {
		base = ObjectType
	}
	return &Type{
		Name:     name,
		QualName: name,
		Base:     base,
		Header:   NewHeader(TypeType),
	}
}

// slotGetter extracts one named slot from a Slots table; used by findSlot.
type slotGetter func(*Slots) NativeFn

// findSlot walks t's base chain to find the nearest ancestor providing the
// named slot (spec §3 "Dispatch finds the nearest ancestor type providing
// the slot").
func findSlot(t *Type, get slotGetter) NativeFn {
	cur := t
	for {
		if fn := get(&cur.Slots); fn != nil {
			return fn
		}
		if cur.Base == cur {
			return nil
		}
		cur = cur.Base
	}
}

// Dispatch is the generic entry point used by the VM and by built-in
// operators: find o's type's slot and invoke it.
func Dispatch(o Object, get slotGetter, args []Object) (Object, Object) {
	fn := findSlot(o.KType(), get)
	if fn == nil {
		return nil, nil
	}
	return fn(args)
}

// Below: named accessors so call sites read as `object.SlotEq(t)` instead
// of repeating the closure at each use.
func SlotEq(t *Type) NativeFn       { return findSlot(t, func(s *Slots) NativeFn { return s.Eq }) }
func SlotNe(t *Type) NativeFn       { return findSlot(t, func(s *Slots) NativeFn { return s.Ne }) }
func SlotLt(t *Type) NativeFn       { return findSlot(t, func(s *Slots) NativeFn { return s.Lt }) }
func SlotLe(t *Type) NativeFn       { return findSlot(t, func(s *Slots) NativeFn { return s.Le }) }
func SlotGt(t *Type) NativeFn       { return findSlot(t, func(s *Slots) NativeFn { return s.Gt }) }
func SlotGe(t *Type) NativeFn       { return findSlot(t, func(s *Slots) NativeFn { return s.Ge }) }
func SlotCmp(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Cmp }) }
func SlotHash(t *Type) NativeFn     { return findSlot(t, func(s *Slots) NativeFn { return s.Hash }) }
func SlotStr(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Str }) }
func SlotRepr(t *Type) NativeFn     { return findSlot(t, func(s *Slots) NativeFn { return s.Repr }) }
func SlotLen(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Len }) }
func SlotBool(t *Type) NativeFn     { return findSlot(t, func(s *Slots) NativeFn { return s.Bool }) }
func SlotAdd(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Add }) }
func SlotSub(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Sub }) }
func SlotMul(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Mul }) }
func SlotDiv(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Div }) }
func SlotFloorDiv(t *Type) NativeFn { return findSlot(t, func(s *Slots) NativeFn { return s.FloorDiv }) }
func SlotMod(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Mod }) }
func SlotPow(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Pow }) }
func SlotLsh(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Lsh }) }
func SlotRsh(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Rsh }) }
func SlotOr(t *Type) NativeFn       { return findSlot(t, func(s *Slots) NativeFn { return s.Or }) }
func SlotXor(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Xor }) }
func SlotAnd(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.And }) }
func SlotPos(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Pos }) }
func SlotNeg(t *Type) NativeFn      { return findSlot(t, func(s *Slots) NativeFn { return s.Neg }) }
func SlotInvert(t *Type) NativeFn   { return findSlot(t, func(s *Slots) NativeFn { return s.Invert }) }
func SlotGetElem(t *Type) NativeFn  { return findSlot(t, func(s *Slots) NativeFn { return s.GetElem }) }
func SlotSetElem(t *Type) NativeFn  { return findSlot(t, func(s *Slots) NativeFn { return s.SetElem }) }
func SlotDelElem(t *Type) NativeFn  { return findSlot(t, func(s *Slots) NativeFn { return s.DelElem }) }
func SlotContains(t *Type) NativeFn { return findSlot(t, func(s *Slots) NativeFn { return s.Contains }) }
func SlotIter(t *Type) NativeFn     { return findSlot(t, func(s *Slots) NativeFn { return s.Iter }) }
func SlotNext(t *Type) NativeFn     { return findSlot(t, func(s *Slots) NativeFn { return s.Next }) }
func SlotCall(t *Type) NativeFn     { return findSlot(t, func(s *Slots) NativeFn { return s.Call }) }
func SlotGetAttr(t *Type) NativeFn  { return findSlot(t, func(s *Slots) NativeFn { return s.GetAttr }) }
func SlotSetAttr(t *Type) NativeFn  { return findSlot(t, func(s *Slots) NativeFn { return s.SetAttr }) }
