package object

import (
	"sync"

	"kvm/internal/vmerr"
)

// ModuleType is a named, path-located attribute mapping (spec §3 "module").
var ModuleType = NewType("module", ObjectType)

type Module struct {
	Header
	Name string
	Path string // real filesystem path, or "" for built-ins

	mu      sync.RWMutex
	Globals map[string]Object
}

func (m *Module) header() *Header { return &m.Header }

func NewModule(name, path string) *Module {
	return &Module{Header: NewHeader(ModuleType), Name: name, Path: path, Globals: make(map[string]Object)}
}

func (m *Module) Get(name string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.Globals[name]
	return v, ok
}

func (m *Module) Set(name string, v Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Globals[name] = v
}

func init() {
	ModuleType.Slots.Repr = func(args []Object) (Object, Object) {
		m := args[0].(*Module)
		if m.Path != "" {
			return NewStr("<module '" + m.Name + "' from '" + m.Path + "'>"), nil
		}
		return NewStr("<module '" + m.Name + "' (built-in)>"), nil
	}
	ModuleType.Slots.GetAttr = func(args []Object) (Object, Object) {
		m := args[0].(*Module)
		name := args[1].(*Str).Value()
		if v, ok := m.Get(name); ok {
			return v, nil
		}
		return nil, NewException(vmerr.AttrError, "module '"+m.Name+"' has no attribute '"+name+"'")
	}
	ModuleType.Slots.SetAttr = func(args []Object) (Object, Object) {
		m := args[0].(*Module)
		name := args[1].(*Str).Value()
		m.Set(name, args[2])
		return NoneVal, nil
	}
}
