package compiler

import (
	"strings"
	"testing"

	"kvm/internal/bytecode"
	"kvm/internal/lexer"
	"kvm/internal/object"
	"kvm/internal/parser"
)

func compileSrc(t *testing.T, src string) *object.Code {
	t.Helper()
	toks, err := lexer.NewScanner("<test>", src).Scan()
	if err != nil {
		t.Fatalf("Scan(%q): %v", src, err)
	}
	root, err := parser.New("<test>", src, toks).ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram(%q): %v", src, err)
	}
	code, err := Compile("<test>", src, root)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return code
}

func compileSrcErr(t *testing.T, src string) error {
	t.Helper()
	toks, err := lexer.NewScanner("<test>", src).Scan()
	if err != nil {
		t.Fatalf("Scan(%q): %v", src, err)
	}
	root, err := parser.New("<test>", src, toks).ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram(%q): %v", src, err)
	}
	_, err = Compile("<test>", src, root)
	return err
}

func TestCompileProgramStatementForms(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"assignment", "x = 1"},
		{"if", "if true { x = 1 } else { x = 2 }"},
		{"while", "i = 0\nwhile i < 3 { i = i + 1 }"},
		{"for-in", "for x in [1, 2, 3] { y = x }"},
		{"classic for", "for i = 0; i < 3; i = i + 1 { y = i }"},
		{"try", `try { x = 1 } catch e { x = 2 }`},
		{"func def", "func f(a, b) { return a + b }"},
		{"type def", "type T { func f(self) { return 1 } }"},
		{"throw", `throw Error("boom")`},
		{"assert", "assert true"},
		{"del subscript", `del d["a"]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code := compileSrc(t, tc.src)
			if code == nil || len(code.Bytes) == 0 {
				t.Fatalf("Compile(%q) produced no bytecode", tc.src)
			}
		})
	}
}

func TestCompileExprForms(t *testing.T) {
	tests := []string{"1 + 2", "1 < 2 < 3", "2 ** 3 ** 2", "[1, 2, 3]", `{"a": 1}`, "a.b(1)[0]"}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			toks, err := lexer.NewScanner("<test>", src).Scan()
			if err != nil {
				t.Fatalf("Scan(%q): %v", src, err)
			}
			expr, err := parser.New("<test>", src, toks).ParseExpression()
			if err != nil {
				t.Fatalf("ParseExpression(%q): %v", src, err)
			}
			code, err := CompileExpr("<test>", src, expr)
			if err != nil {
				t.Fatalf("CompileExpr(%q): %v", src, err)
			}
			if code == nil || len(code.Bytes) == 0 {
				t.Fatalf("CompileExpr(%q) produced no bytecode", src)
			}
		})
	}
}

func TestCompileDelRejectsNonSubscriptTarget(t *testing.T) {
	err := compileSrcErr(t, "del x")
	if err == nil {
		t.Fatal("expected a compile error for `del x` (non-subscript target)")
	}
	if !strings.Contains(err.Error(), "subscript") {
		t.Errorf("error = %v, want it to mention the subscript requirement", err)
	}
}

func TestCompileDelSubscriptEmitsDelElem(t *testing.T) {
	code := compileSrc(t, `del d["a"]`)
	found := false
	for i := 0; i < len(code.Bytes); {
		op := bytecode.Op(code.Bytes[i])
		if op == bytecode.DelElem {
			found = true
			break
		}
		i += op.Width()
	}
	if !found {
		t.Errorf("Compile(`del d[\"a\"]`) bytecode does not contain del_elem: % x", code.Bytes)
	}
}
