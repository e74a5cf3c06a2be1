package db

import (
	"testing"

	"kvm/internal/object"
)

func TestEscape(t *testing.T) {
	tests := []struct{ in, want string }{
		{`O'Brien`, `O''Brien`},
		{`back\slash`, `back\\slash`},
		{"line\nbreak", `line\nbreak`},
		{"plain", "plain"},
	}
	for _, tc := range tests {
		if got := Escape(tc.in); got != tc.want {
			t.Errorf("Escape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, exc := connect("made-up-driver", "dsn")
	if exc == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}

func TestModuleConnectValidatesArity(t *testing.T) {
	mod := Module()
	fn, _ := mod.Get("connect")
	if _, exc := fn.(*object.Func).Native([]object.Object{object.NewStr("sqlite3")}); exc == nil {
		t.Fatal("expected an ArgError for a missing dsn argument")
	}
}

func TestModuleEscapeRoundTripsThroughNative(t *testing.T) {
	mod := Module()
	fn, _ := mod.Get("escape")
	result, exc := fn.(*object.Func).Native([]object.Object{object.NewStr("it's")})
	if exc != nil {
		t.Fatalf("escape: %v", exc)
	}
	s, ok := result.(*object.Str)
	if !ok || s.Value() != "it''s" {
		t.Errorf("escape(\"it's\") = %#v, want Str(\"it''s\")", result)
	}
}
