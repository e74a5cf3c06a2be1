package vm

import (
	"testing"

	"kvm/internal/builtins"
	"kvm/internal/compiler"
	"kvm/internal/lexer"
	"kvm/internal/object"
	"kvm/internal/parser"
)

// run compiles and executes a full program through the same pipeline
// cmd/kvm wires up (builtins.Install then compiler.Compile then
// Interpreter.RunModule), returning the module so assertions can read
// back top-level bindings -- the interpreter tests exercise the builtins
// roster end to end, the way spec §8's scenarios run. A program's final
// expression statement is popped like any other (spec §4.3), so tests
// assign their result of interest to a variable and read it back from
// the module's globals rather than from RunModule's return value.
func run(t *testing.T, src string) (*object.Module, *object.Exception) {
	t.Helper()
	builtinsMod := object.NewModule("__builtins__", "<builtins>")
	builtins.Install(builtinsMod)
	interp := NewInterpreter(builtinsMod)

	source := lexer.StripBOM(src)
	toks, err := lexer.NewScanner("<test>", source).Scan()
	if err != nil {
		t.Fatalf("Scan(%q): %v", src, err)
	}
	root, err := parser.New("<test>", source, toks).ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram(%q): %v", src, err)
	}
	code, err := compiler.Compile("<test>", source, root)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	mod := object.NewModule("__main__", "<test>")
	_, exc := interp.RunModule(mod, code)
	return mod, exc
}

func runOK(t *testing.T, src string) *object.Module {
	t.Helper()
	mod, exc := run(t, src)
	if exc != nil {
		t.Fatalf("%q raised an uncaught exception:\n%s", src, exc.Render())
	}
	return mod
}

func global(t *testing.T, mod *object.Module, name string) object.Object {
	t.Helper()
	v, ok := mod.Get(name)
	if !ok {
		t.Fatalf("module has no global %q", name)
	}
	return v
}

// spec §8 scenario 1: str <-> int round trip via the builtin conversion
// constructors.
func TestScenarioIntStrRoundTrip(t *testing.T) {
	mod := runOK(t, `
x = 41
s = str(x + 1)
y = int(s)
`)
	i, ok := global(t, mod, "y").(*object.Int)
	if !ok || i.Val.Int64() != 42 {
		t.Errorf("y = %#v, want Int(42)", global(t, mod, "y"))
	}
}

// spec §8 scenario 2: list(range(3)) builds a list from the range builtin.
func TestScenarioListFromRange(t *testing.T) {
	mod := runOK(t, `
l = list(range(3))
`)
	l, ok := global(t, mod, "l").(*object.List)
	if !ok || l.Len() != 3 {
		t.Fatalf("l = %#v, want a 3-element list", global(t, mod, "l"))
	}
	for i := 0; i < 3; i++ {
		elem, _ := l.At(i)
		if elem.(*object.Int).Val.Int64() != int64(i) {
			t.Errorf("list(range(3))[%d] = %v, want %d", i, elem, i)
		}
	}
}

// spec §8 scenario 3: del removes a dict key.
func TestScenarioDelDictKey(t *testing.T) {
	mod := runOK(t, `
d = {"a": 1, "b": 2}
del d["a"]
`)
	d, ok := global(t, mod, "d").(*object.Dict)
	if !ok {
		t.Fatalf("d = %#v, want *Dict", global(t, mod, "d"))
	}
	if _, found, _ := d.Get(object.NewStr("a")); found {
		t.Error(`"a" should have been deleted`)
	}
	if _, found, _ := d.Get(object.NewStr("b")); !found {
		t.Error(`"b" should still be present`)
	}
}

// spec §8 scenario 4: throw Error("msg") constructs and raises a builtin
// exception kind, caught by a matching catch clause.
func TestScenarioThrowAndCatchError(t *testing.T) {
	mod := runOK(t, `
result = "unset"
try {
    throw Error("boom")
} catch e {
    result = e.message
}
`)
	s, ok := global(t, mod, "result").(*object.Str)
	if !ok || s.Value() != "boom" {
		t.Errorf("result = %#v, want Str(\"boom\")", global(t, mod, "result"))
	}
}

func TestScenarioUncaughtExceptionPropagates(t *testing.T) {
	_, exc := run(t, `throw ValError("bad")`)
	if exc == nil {
		t.Fatal("expected an uncaught exception")
	}
	if exc.Kind != "ValError" {
		t.Errorf("uncaught exception kind = %v, want ValError", exc.Kind)
	}
}

func TestPrintAndLenBuiltins(t *testing.T) {
	mod := runOK(t, `
n = len([1, 2, 3, 4])
print(n)
`)
	if global(t, mod, "n").(*object.Int).Val.Int64() != 4 {
		t.Errorf("len([1,2,3,4]) = %v, want 4", global(t, mod, "n"))
	}
}

func TestTypeBuiltinReturnsTypeObject(t *testing.T) {
	mod := runOK(t, `t = type(1)`)
	typ, ok := global(t, mod, "t").(*object.Type)
	if !ok || typ.Name != "int" {
		t.Errorf("type(1) = %#v, want the int type object", global(t, mod, "t"))
	}
}

// Recursive-repr guard exercised end to end: a self-referential list must
// not overflow the stack when printed.
func TestSelfReferentialListPrintsWithoutOverflow(t *testing.T) {
	runOK(t, `
x = []
x.push(x)
print(x)
`)
}

func TestForInOverBuiltinRange(t *testing.T) {
	mod := runOK(t, `
total = 0
for i in range(5) {
    total = total + i
}
`)
	if global(t, mod, "total").(*object.Int).Val.Int64() != 10 {
		t.Errorf("sum of range(5) = %v, want 10", global(t, mod, "total"))
	}
}
