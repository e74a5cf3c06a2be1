package fmtutil

import (
	"strings"
	"testing"

	"kvm/internal/object"
)

func TestHumanizeBytes(t *testing.T) {
	if got := HumanizeBytes(82132); got != "82 kB" {
		t.Errorf("HumanizeBytes(82132) = %q, want %q", got, "82 kB")
	}
}

func TestHumanizeTimeIsRelative(t *testing.T) {
	got := HumanizeTime(3600)
	if !strings.Contains(got, "hour") {
		t.Errorf("HumanizeTime(3600) = %q, want it to mention an hour", got)
	}
}

func TestModuleHumanizeBytesRejectsWrongArity(t *testing.T) {
	mod := Module()
	fn, _ := mod.Get("humanize_bytes")
	if _, exc := fn.(*object.Func).Native(nil); exc == nil {
		t.Fatal("expected an ArgError for a missing argument")
	}
}

func TestModuleHumanizeBytesAcceptsInt(t *testing.T) {
	mod := Module()
	fn, _ := mod.Get("humanize_bytes")
	result, exc := fn.(*object.Func).Native([]object.Object{object.NewInt(1024)})
	if exc != nil {
		t.Fatalf("humanize_bytes: %v", exc)
	}
	s, ok := result.(*object.Str)
	if !ok || s.Value() == "" {
		t.Errorf("humanize_bytes(1024) = %#v, want a non-empty string", result)
	}
}
