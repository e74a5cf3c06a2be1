package io

import (
	"os"
	"path/filepath"
	"testing"

	"kvm/internal/object"
)

func TestOpenWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeting.txt")

	f, exc := open(path, "w")
	if exc != nil {
		t.Fatalf("open(w): %v", exc)
	}
	if _, exc := f.write([]object.Object{object.NewStr("hello\nworld\n")}); exc != nil {
		t.Fatalf("write: %v", exc)
	}
	if _, exc := f.close(nil); exc != nil {
		t.Fatalf("close: %v", exc)
	}

	f2, exc := open(path, "r")
	if exc != nil {
		t.Fatalf("open(r): %v", exc)
	}
	got, exc := f2.read(nil)
	if exc != nil {
		t.Fatalf("read: %v", exc)
	}
	if s, ok := got.(*object.Str); !ok || s.Value() != "hello\nworld\n" {
		t.Errorf("read() = %#v, want \"hello\\nworld\\n\"", got)
	}
}

func TestFileIterYieldsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	if err := os.WriteFile(path, []byte("a\nb\nc"), 0644); err != nil {
		t.Fatal(err)
	}

	f, exc := open(path, "r")
	if exc != nil {
		t.Fatalf("open: %v", exc)
	}

	var lines []string
	for {
		v, exc := f.next(nil)
		if exc != nil {
			break
		}
		lines = append(lines, v.(*object.Str).Value())
	}
	want := []string{"a\n", "b\n", "c"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestOpenRejectsUnknownMode(t *testing.T) {
	if _, exc := open(filepath.Join(t.TempDir(), "x"), "bogus"); exc == nil {
		t.Fatal("expected an error for an unsupported mode")
	}
}
