package module

import (
	"os"
	"path/filepath"
	"testing"

	"kvm/internal/object"
	"kvm/internal/vm"
)

func newLoader(t *testing.T) *Loader {
	t.Helper()
	builtinsMod := object.NewModule("__builtins__", "<builtins>")
	interp := vm.NewInterpreter(builtinsMod)
	return NewLoader(interp)
}

// Cache hits take priority over the built-in roster (spec §4.6's
// resolution order: cache, then built-ins, then filesystem).
func TestLoaderCacheTakesPriorityOverBuiltin(t *testing.T) {
	l := newLoader(t)
	cached := object.NewModule("m", "<cached>")
	l.cache["m"] = cached
	l.builtins["m"] = object.NewModule("m", "<builtin>")

	got, exc := l.Import("m")
	if exc != nil {
		t.Fatalf("Import(m): %v", exc)
	}
	if got != object.Object(cached) {
		t.Errorf("Import(m) returned %#v, want the cached module", got)
	}
}

func TestLoaderResolvesRegisteredBuiltin(t *testing.T) {
	l := newLoader(t)
	b := object.NewModule("mathx", "<builtin>")
	b.Set("pi", object.NewFloat(3.14))
	l.RegisterBuiltin("mathx", b)

	got, exc := l.Import("mathx")
	if exc != nil {
		t.Fatalf("Import(mathx): %v", exc)
	}
	if got != object.Object(b) {
		t.Errorf("Import(mathx) = %#v, want the registered builtin", got)
	}
}

func TestLoaderBuiltinLookupIsCachedAfterFirstImport(t *testing.T) {
	l := newLoader(t)
	b := object.NewModule("mathx", "<builtin>")
	l.RegisterBuiltin("mathx", b)

	if _, exc := l.Import("mathx"); exc != nil {
		t.Fatalf("first Import(mathx): %v", exc)
	}
	if _, ok := l.cache["mathx"]; !ok {
		t.Error("expected mathx to be populated into the cache after import")
	}
}

func TestLoaderUnknownModuleRaisesImportError(t *testing.T) {
	l := newLoader(t)
	l.searchPath = nil // isolate from the real filesystem
	_, exc := l.Import("doesnotexist")
	if exc == nil {
		t.Fatal("expected an ImportError for an unknown module")
	}
}

// Filesystem resolution: a directory becomes a namespace-package module
// pinned to its path, without requiring a .ks file.
func TestLoaderDirectoryBecomesNamespaceModule(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	l := newLoader(t)
	l.searchPath = []string{dir}

	got, exc := l.Import("pkg")
	if exc != nil {
		t.Fatalf("Import(pkg): %v", exc)
	}
	mod, ok := got.(*object.Module)
	if !ok || mod.Name != "pkg" {
		t.Errorf("Import(pkg) = %#v, want a namespace module named pkg", got)
	}
}

// Filesystem resolution: a <name>.ks file is compiled and run, its
// globals becoming the module's attributes.
func TestLoaderCompilesAndRunsSourceFile(t *testing.T) {
	dir := t.TempDir()
	src := "value = 1 + 2\n"
	if err := os.WriteFile(filepath.Join(dir, "greet.ks"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	l := newLoader(t)
	l.searchPath = []string{dir}

	got, exc := l.Import("greet")
	if exc != nil {
		t.Fatalf("Import(greet): %v", exc)
	}
	mod, ok := got.(*object.Module)
	if !ok {
		t.Fatalf("Import(greet) = %#v, want *object.Module", got)
	}
	v, found := mod.Get("value")
	if !found {
		t.Fatal("module greet has no global 'value'")
	}
	if v.(*object.Int).Val.Int64() != 3 {
		t.Errorf("greet.value = %v, want 3", v)
	}
}

// Dotted names walk attributes of the first segment's module (spec §4.6).
func TestLoaderDottedNameWalksAttributes(t *testing.T) {
	l := newLoader(t)
	inner := object.NewModule("inner", "<inner>")
	inner.Set("answer", object.NewInt(42))
	outer := object.NewModule("outer", "<outer>")
	outer.Set("inner", inner)
	l.RegisterBuiltin("outer", outer)

	got, exc := l.Import("outer.inner")
	if exc != nil {
		t.Fatalf("Import(outer.inner): %v", exc)
	}
	if got != object.Object(inner) {
		t.Errorf("Import(outer.inner) = %#v, want the inner module", got)
	}
}

func TestLoaderBuiltinFuncInvokesImport(t *testing.T) {
	l := newLoader(t)
	b := object.NewModule("mathx", "<builtin>")
	l.RegisterBuiltin("mathx", b)

	fn := l.Builtin()
	got, exc := fn.Native([]object.Object{object.NewStr("mathx")})
	if exc != nil {
		t.Fatalf("__import__(\"mathx\"): %v", exc)
	}
	if got != object.Object(b) {
		t.Errorf("__import__(\"mathx\") = %#v, want the registered builtin", got)
	}
}

func TestLoaderBuiltinFuncRejectsNonStringArgument(t *testing.T) {
	l := newLoader(t)
	fn := l.Builtin()
	if _, exc := fn.Native([]object.Object{object.NewInt(1)}); exc == nil {
		t.Error("expected a TypeError for a non-string __import__ argument")
	}
}
