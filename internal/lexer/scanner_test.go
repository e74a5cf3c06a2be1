package lexer

import "testing"

func scanKinds(t *testing.T, src string) []Kind {
	t.Helper()
	toks, err := NewScanner("<test>", src).Scan()
	if err != nil {
		t.Fatalf("Scan(%q): %v", src, err)
	}
	kinds := make([]Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	return kinds
}

func TestScanKeywordsAndIdents(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Kind
	}{
		{"del keyword", "del", []Kind{KwDel, EOF}},
		{"if/elif/else", "if elif else", []Kind{KwIf, KwElif, KwElse, EOF}},
		{"plain ident", "foo", []Kind{Ident, EOF}},
		{"ident not a keyword prefix", "delete", []Kind{Ident, EOF}},
		{"true/false/none", "true false none", []Kind{KwTrue, KwFalse, KwNone, EOF}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := scanKinds(t, tc.src)
			if len(got) != len(tc.want) {
				t.Fatalf("Scan(%q) = %v, want %v", tc.src, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("Scan(%q)[%d] = %v, want %v", tc.src, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestScanDelStatementTokens(t *testing.T) {
	toks, err := NewScanner("<test>", `del d["a"]`).Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	wantKinds := []Kind{KwDel, Ident, LBracket, Str, RBracket, EOF}
	if len(toks) != len(wantKinds) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(wantKinds), toks)
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Errorf("token %d kind = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestScanOperators(t *testing.T) {
	tests := []struct {
		src  string
		want Kind
	}{
		{"==", EqEq},
		{"===", EqEqEq},
		{"!=", Ne},
		{"//", SlashSlash},
		{"**", Pow},
		{"??", QQ},
		{"&&", AndAnd},
		{"||", OrOr},
		{"->", Arrow},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			got := scanKinds(t, tc.src)
			if len(got) != 2 || got[0] != tc.want {
				t.Errorf("Scan(%q) = %v, want [%v EOF]", tc.src, got, tc.want)
			}
		})
	}
}

func TestScanNumbers(t *testing.T) {
	toks, err := NewScanner("<test>", "123 3.14").Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(toks) != 3 || toks[0].Kind != Int || toks[1].Kind != Float {
		t.Fatalf("Scan(\"123 3.14\") = %v, want [Int Float EOF]", toks)
	}
}

func TestStripBOM(t *testing.T) {
	withBOM := "\uFEFFhello"
	if got := StripBOM(withBOM); got != "hello" {
		t.Errorf("StripBOM(%q) = %q, want %q", withBOM, got, "hello")
	}
	if got := StripBOM("hello"); got != "hello" {
		t.Errorf("StripBOM(%q) = %q, want %q", "hello", got, "hello")
	}
}

func TestScanStringLiteral(t *testing.T) {
	toks, err := NewScanner("<test>", `"hello world"`).Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(toks) != 2 || toks[0].Kind != Str {
		t.Fatalf("Scan = %v, want [Str EOF]", toks)
	}
}
