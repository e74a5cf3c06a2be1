package lexer

import (
	"fmt"
	"strings"
)

// SourceError is a syntax error carrying the offending span, rendered with
// a caret/underline excerpt the way spec §4.1 "Error presentation" and
// §4.2 describe, and reused by the parser for the same presentation.
type SourceError struct {
	File    string
	Source  string
	Tok     Token
	Message string
}

func (e *SourceError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SyntaxError: %s\n", e.Message)
	lineText, lineStart := lineAt(e.Source, e.Tok.Offset)
	fmt.Fprintf(&sb, "  %d | %s\n", e.Tok.Line+1, lineText)
	pad := strings.Repeat(" ", len(fmt.Sprintf("  %d | ", e.Tok.Line+1)))
	col := e.Tok.Offset - lineStart
	if col < 0 {
		col = 0
	}
	span := e.Tok.EndLine == e.Tok.Line && e.Tok.EndCol > e.Tok.Col
	width := 1
	if span {
		width = e.Tok.EndCol - e.Tok.Col
		if width < 1 {
			width = 1
		}
	}
	fmt.Fprintf(&sb, "%s%s%s\n", pad, strings.Repeat(" ", col), strings.Repeat("^", width))
	fmt.Fprintf(&sb, "@ %s:%d:%d\n", e.File, e.Tok.Line+1, e.Tok.Col+1)
	return sb.String()
}

func lineAt(src string, offset int) (string, int) {
	if offset > len(src) {
		offset = len(src)
	}
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := strings.IndexByte(src[offset:], '\n')
	if end == -1 {
		end = len(src)
	} else {
		end += offset
	}
	return src[start:end], start
}
