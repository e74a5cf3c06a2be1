package parser

import (
	"testing"

	"kvm/internal/lexer"
)

func parseProgram(t *testing.T, src string) *Node {
	t.Helper()
	toks, err := lexer.NewScanner("<test>", src).Scan()
	if err != nil {
		t.Fatalf("Scan(%q): %v", src, err)
	}
	n, err := New("<test>", src, toks).ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram(%q): %v", src, err)
	}
	return n
}

func parseExpr(t *testing.T, src string) *Node {
	t.Helper()
	toks, err := lexer.NewScanner("<test>", src).Scan()
	if err != nil {
		t.Fatalf("Scan(%q): %v", src, err)
	}
	n, err := New("<test>", src, toks).ParseExpression()
	if err != nil {
		t.Fatalf("ParseExpression(%q): %v", src, err)
	}
	return n
}

func TestParseProgramStatementKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Kind
	}{
		{"assignment", "x = 1", NExprStmt},
		{"if", "if true {}", NIf},
		{"while", "while true {}", NWhile},
		{"for-in", "for x in [1,2] {}", NForIn},
		{"for classic", "for i = 0; i < 3; i++ {}", NFor},
		{"try", "try {} catch e {}", NTry},
		{"func def", "func f() {}", NFuncDef},
		{"type def", "type T {}", NTypeDef},
		{"import", "import os", NImport},
		{"throw", `throw Error("x")`, NThrow},
		{"assert", "assert true", NAssert},
		{"del", `del d["a"]`, NDel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prog := parseProgram(t, tc.src)
			if len(prog.Args) == 0 {
				t.Fatalf("ParseProgram(%q) produced no statements", tc.src)
			}
			if got := prog.Args[0].Kind; got != tc.want {
				t.Errorf("ParseProgram(%q) statement kind = %v, want %v", tc.src, got, tc.want)
			}
		})
	}
}

func TestParseDelRejectsNonSubscriptTarget(t *testing.T) {
	// The parser itself accepts any expression as del's target; it is the
	// compiler's compileDel that rejects non-subscript targets (spec §8
	// scenario 3 only ever deletes a subscript). Confirm the parser at
	// least produces an NDel wrapping whatever expression follows `del`.
	prog := parseProgram(t, "del x")
	del := prog.Args[0]
	if del.Kind != NDel {
		t.Fatalf("expected NDel, got %v", del.Kind)
	}
	if del.Args[0].Kind != NName {
		t.Errorf("del target kind = %v, want NName", del.Args[0].Kind)
	}
}

func TestParseDelSubscriptTarget(t *testing.T) {
	prog := parseProgram(t, `del d["a"]`)
	del := prog.Args[0]
	if del.Kind != NDel {
		t.Fatalf("expected NDel, got %v", del.Kind)
	}
	if del.Args[0].Kind != NIndex {
		t.Errorf("del target kind = %v, want NIndex", del.Args[0].Kind)
	}
}

func TestParseRichCompareChain(t *testing.T) {
	e := parseExpr(t, "1 < 2 < 3")
	if e.Kind != NRichCmp {
		t.Fatalf("expected NRichCmp, got %v", e.Kind)
	}
	rc, ok := e.Value.(*RichCmp)
	if !ok || len(rc.Ops) != 2 {
		t.Fatalf("expected 2 chained comparison ops, got %#v", e.Value)
	}
	if len(e.Args) != 3 {
		t.Errorf("expected 3 operands in the chain, got %d", len(e.Args))
	}
}

func TestParsePowerIsRightAssociative(t *testing.T) {
	// 2 ** 3 ** 2 should parse as 2 ** (3 ** 2), i.e. the right child of the
	// outer NBinPow is itself an NBinPow.
	e := parseExpr(t, "2 ** 3 ** 2")
	if e.Kind != NBinPow {
		t.Fatalf("expected NBinPow, got %v", e.Kind)
	}
	if e.Args[1].Kind != NBinPow {
		t.Errorf("expected right-associative nesting, got right child kind %v", e.Args[1].Kind)
	}
}

func TestParseListLiteral(t *testing.T) {
	e := parseExpr(t, "[1, 2, 3]")
	if e.Kind != NList || len(e.Args) != 3 {
		t.Fatalf("parseExpr([1,2,3]) = kind %v, %d args", e.Kind, len(e.Args))
	}
}

func TestParseDictLiteral(t *testing.T) {
	e := parseExpr(t, `{"a": 1, "b": 2}`)
	if e.Kind != NDict {
		t.Fatalf("expected NDict, got %v", e.Kind)
	}
	n, ok := e.Value.(int)
	if !ok || n != 2 {
		t.Errorf("expected 2 key/value pairs, got %#v", e.Value)
	}
}

func TestParseCallAndAttrAndIndex(t *testing.T) {
	e := parseExpr(t, "a.b(1)[0]")
	if e.Kind != NIndex {
		t.Fatalf("expected outer NIndex, got %v", e.Kind)
	}
	call := e.Args[0]
	if call.Kind != NCall {
		t.Fatalf("expected NCall, got %v", call.Kind)
	}
	attr := call.Args[0]
	if attr.Kind != NAttr || attr.Value != "b" {
		t.Fatalf("expected NAttr 'b', got kind %v value %#v", attr.Kind, attr.Value)
	}
}

func TestParseUnexpectedTokenErrors(t *testing.T) {
	toks, err := lexer.NewScanner("<test>", ")").Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, err := New("<test>", ")", toks).ParseExpression(); err == nil {
		t.Error("expected a parse error for a bare ')'")
	}
}
