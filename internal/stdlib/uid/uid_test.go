package uid

import (
	"testing"

	"kvm/internal/object"
)

func TestNewIsUniqueAndWellFormed(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("New() produced the same uuid twice: %q", a)
	}
	if len(a) != 36 {
		t.Errorf("New() = %q, want a 36-character v4 uuid string", a)
	}
}

func TestModuleUUIDNative(t *testing.T) {
	mod := Module()
	fn, ok := mod.Get("uuid")
	if !ok {
		t.Fatal("module missing 'uuid'")
	}
	result, exc := fn.(*object.Func).Native(nil)
	if exc != nil {
		t.Fatalf("uuid(): %v", exc)
	}
	if _, ok := result.(*object.Str); !ok {
		t.Errorf("uuid() = %#v, want a Str", result)
	}
}
