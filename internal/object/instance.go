package object

import "kvm/internal/vmerr"

// Instance is the runtime representation of a value constructed from a
// user-defined `type` block (spec §3 "type"). Grounded on the teacher's
// internal/vm instance-map representation, generalized to carry the
// per-instance attribute mapping spec §4.4's getattr/setattr contract
// requires ("the instance's per-instance attribute mapping, if the type
// declares one").
type Instance struct {
	Header
	Attrs map[string]Object
}

func (in *Instance) header() *Header { return &in.Header }

// NewInstance allocates a zeroed instance of t, used by the default New
// slot and by the `type idx` opcode's construction path.
func NewInstance(t *Type) *Instance {
	return &Instance{Header: NewHeader(t), Attrs: make(map[string]Object)}
}

func init() {
	ObjectType.HasAttrs = true
	ObjectType.Slots.GetAttr = objectGetAttr
	ObjectType.Slots.SetAttr = objectSetAttr
}

// objectGetAttr implements spec §4.4's attribute lookup: the instance's
// own attribute map first, then the type chain's Methods table; a method
// found on the type is wrapped as a bound-method partial with the
// instance pre-bound as argument zero.
func objectGetAttr(args []Object) (Object, Object) {
	self, name := args[0], args[1].(*Str).Value()
	if in, ok := self.(*Instance); ok {
		if v, ok := in.Attrs[name]; ok {
			return v, nil
		}
	}
	for t := self.KType(); ; {
		if t.Methods != nil {
			if m, ok := t.Methods[name]; ok {
				if fn, ok := m.(*Func); ok {
					return NewPartial(fn, map[int]Object{0: self}), nil
				}
				return m, nil
			}
		}
		if t.Base == t {
			break
		}
		t = t.Base
	}
	exc := NewException(vmerr.AttrError, "'"+self.KType().Name+"' object has no attribute '"+name+"'")
	return nil, exc
}

func objectSetAttr(args []Object) (Object, Object) {
	self, name, val := args[0], args[1].(*Str).Value(), args[2]
	in, ok := self.(*Instance)
	if !ok {
		exc := NewException(vmerr.AttrError, "object has no per-instance attributes")
		return nil, exc
	}
	in.Attrs[name] = val
	return val, nil
}
