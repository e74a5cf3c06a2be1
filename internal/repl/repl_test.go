package repl

import "testing"

func TestParenDelta(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		delta int
	}{
		{"empty", "", 0},
		{"balanced", "f(1, 2)", 0},
		{"open_paren", "f(a, b", 1},
		{"close_paren", ")", -1},
		{"nested_open", "[{(", 3},
		{"string_ignores_parens", `"not ) a paren ("`, 0},
		{"comment_ignores_trailing", "f(1 # )", 1},
		{"escaped_quote_in_string", `"a\"(b"`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parenDelta(tc.line)
			if got != tc.delta {
				t.Errorf("parenDelta(%q) = %d, want %d", tc.line, got, tc.delta)
			}
		})
	}
}
