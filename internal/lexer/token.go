// Package lexer turns UTF-8 source text into a flat token array (spec
// §4.1). Grounded on the teacher's internal/lexer/scanner.go (byte-offset
// scanning, a TokenType string enum, line tracking) generalized to the
// full token/keyword/escape set spec.md calls for.
package lexer

import "fmt"

type Kind int

const (
	EOF Kind = iota
	Newline
	Ident
	Int
	Float
	Str
	Regex
	Many // combined span, used internally for error reporting only

	// Keywords
	KwImport
	KwFrom
	KwIn
	KwAs
	KwRet
	KwThrow
	KwBreak
	KwCont
	KwIf
	KwElif
	KwElse
	KwWhile
	KwFor
	KwTry
	KwCatch
	KwFinally
	KwAssert
	KwFunc
	KwType
	KwTrue
	KwFalse
	KwNone
	KwDel

	// Punctuation / operators
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Dot
	DotDotDot
	Colon
	Semi
	Arrow // ->

	Assign
	PlusEq
	MinusEq
	StarEq
	SlashEq
	SlashSlashEq
	PercentEq
	PowEq
	LshEq
	RshEq
	OrEq
	XorEq
	AndEq

	QQ // ??
	OrOr
	AndAnd
	Not

	EqEq
	EqEqEq // ===
	Ne
	Lt
	Le
	Gt
	Ge

	Pipe
	Caret
	Amp
	Lsh
	Rsh

	Plus
	Minus
	Star
	Slash
	SlashSlash
	Percent
	Pow

	Tilde
	PlusPlus
	MinusMinus
)

var keywords = map[string]Kind{
	"import": KwImport, "from": KwFrom, "in": KwIn, "as": KwAs,
	"ret": KwRet, "throw": KwThrow, "break": KwBreak, "cont": KwCont,
	"if": KwIf, "elif": KwElif, "else": KwElse, "while": KwWhile, "for": KwFor,
	"try": KwTry, "catch": KwCatch, "finally": KwFinally, "assert": KwAssert,
	"func": KwFunc, "type": KwType, "true": KwTrue, "false": KwFalse, "none": KwNone,
	"del": KwDel,
}

// Token records kind, byte offset, and start/end line+column. Lines and
// columns are zero-based internally; error messages render them one-based
// (spec §4.1 "Rules").
type Token struct {
	Kind       Kind
	Text       string
	Offset     int
	Line, Col  int
	EndLine    int
	EndCol     int
}

func (t Token) String() string {
	return fmt.Sprintf("%v(%q)@%d:%d", t.Kind, t.Text, t.Line+1, t.Col+1)
}

// Combo merges two tokens into a Many-kind token spanning both, used to
// build multi-token error spans (spec §4.1 "a 'many' kind used internally
// when combining adjacent tokens for error spans").
func Combo(a, b Token) Token {
	if a.Offset > b.Offset {
		a, b = b, a
	}
	return Token{
		Kind: Many, Offset: a.Offset,
		Line: a.Line, Col: a.Col,
		EndLine: b.EndLine, EndCol: b.EndCol,
	}
}
