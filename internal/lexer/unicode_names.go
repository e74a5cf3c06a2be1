package lexer

import "strings"

// unicodeNames is the UCD-name-lookup collaborator of spec §6 ("\N[NAME]
// performs a Unicode-database name lookup via the UCD collaborator"),
// reduced to the ASCII range per SPEC_FULL §4: a full Unicode Character
// Database is explicitly out of core scope (spec §1's "UCD tables" is
// listed among the external collaborators), so this table only covers
// enough names to satisfy name-escape use in ASCII-heavy source text
// (spec §8 scenario 6, `'\N[LATIN CAPITAL LETTER A]' == 'A'`).
var unicodeNames = func() map[string]rune {
	m := map[string]rune{
		"SPACE": ' ', "EXCLAMATION MARK": '!', "QUOTATION MARK": '"',
		"NUMBER SIGN": '#', "DOLLAR SIGN": '$', "PERCENT SIGN": '%',
		"AMPERSAND": '&', "APOSTROPHE": '\'', "LEFT PARENTHESIS": '(',
		"RIGHT PARENTHESIS": ')', "ASTERISK": '*', "PLUS SIGN": '+',
		"COMMA": ',', "HYPHEN-MINUS": '-', "FULL STOP": '.', "SOLIDUS": '/',
		"COLON": ':', "SEMICOLON": ';', "LESS-THAN SIGN": '<',
		"EQUALS SIGN": '=', "GREATER-THAN SIGN": '>', "QUESTION MARK": '?',
		"COMMERCIAL AT": '@', "LEFT SQUARE BRACKET": '[', "REVERSE SOLIDUS": '\\',
		"RIGHT SQUARE BRACKET": ']', "CIRCUMFLEX ACCENT": '^', "LOW LINE": '_',
		"GRAVE ACCENT": '`', "LEFT CURLY BRACKET": '{', "VERTICAL LINE": '|',
		"RIGHT CURLY BRACKET": '}', "TILDE": '~',
	}
	for c := 'A'; c <= 'Z'; c++ {
		m["LATIN CAPITAL LETTER "+string(c)] = c
	}
	for c := 'a'; c <= 'z'; c++ {
		m["LATIN SMALL LETTER "+strings.ToUpper(string(c))] = c
	}
	digitNames := []string{"ZERO", "ONE", "TWO", "THREE", "FOUR", "FIVE", "SIX", "SEVEN", "EIGHT", "NINE"}
	for i, name := range digitNames {
		m["DIGIT "+name] = rune('0' + i)
	}
	return m
}()

// LookupUnicodeName resolves a \N[NAME] escape's name to a codepoint.
func LookupUnicodeName(name string) (rune, bool) {
	r, ok := unicodeNames[strings.ToUpper(name)]
	return r, ok
}
