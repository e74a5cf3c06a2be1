package os

import (
	"os"
	"path/filepath"
	"testing"

	"kvm/internal/object"
)

func TestPathComponents(t *testing.T) {
	p := newPath("/a/b/c.txt")
	if p.parts[0] != string(filepath.Separator) {
		t.Fatalf("expected an absolute path to keep its leading separator, got %v", p.parts)
	}
	want := []string{string(filepath.Separator), "a", "b", "c.txt"}
	if len(p.parts) != len(want) {
		t.Fatalf("parts = %v, want %v", p.parts, want)
	}
	for i := range want {
		if p.parts[i] != want[i] {
			t.Errorf("parts[%d] = %q, want %q", i, p.parts[i], want[i])
		}
	}
}

func TestModuleStatAndListdir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	mod := Module()
	statFn, _ := mod.Get("stat")
	result, exc := statFn.(*object.Func).Native([]object.Object{object.NewStr(filepath.Join(dir, "f.txt"))})
	if exc != nil {
		t.Fatalf("stat: %v", exc)
	}
	d, ok := result.(*object.Dict)
	if !ok {
		t.Fatalf("stat() did not return a dict: %#v", result)
	}
	sz, ok, exc2 := d.Get(object.NewStr("size"))
	if exc2 != nil || !ok {
		t.Fatal("stat() dict missing 'size'")
	}
	if n, ok := sz.(*object.Int); !ok || n.Val.Int64() != 2 {
		t.Errorf("size = %#v, want Int(2)", sz)
	}

	listFn, _ := mod.Get("listdir")
	entries, exc := listFn.(*object.Func).Native([]object.Object{object.NewStr(dir)})
	if exc != nil {
		t.Fatalf("listdir: %v", exc)
	}
	lst, ok := entries.(*object.List)
	if !ok || lst.Len() != 1 {
		t.Fatalf("listdir() = %#v, want a 1-element list", entries)
	}
}
