package parser

import (
	"fmt"
	"math/big"
	"strings"

	"kvm/internal/lexer"
	"kvm/internal/object"
)

// Parser is a recursive-descent parser (spec §4.2 "The parser is
// recursive-descent"). Grounded on the teacher's internal/parser/parser.go
// token-cursor shape, generalized to the full grammar and precedence chain
// of spec §4.2.
type Parser struct {
	file   string
	src    string
	toks   []lexer.Token
	pos    int
}

func New(file, src string, toks []lexer.Token) *Parser {
	return &Parser{file: file, src: src, toks: toks}
}

// ParseProgram parses a whole source file into an NProgram node.
func (p *Parser) ParseProgram() (n *Node, err error) {
	defer p.recover(&err)
	var stmts []*Node
	for !p.check(lexer.EOF) {
		stmts = append(stmts, p.statement())
	}
	return &Node{Kind: NProgram, Args: stmts}, nil
}

// ParseExpression parses a single expression (spec §4.2 "Output: an AST
// root (either a program or a single expression)"), used for `-e EXPR`.
func (p *Parser) ParseExpression() (n *Node, err error) {
	defer p.recover(&err)
	e := p.expr()
	p.expect(lexer.EOF)
	return e, nil
}

func (p *Parser) recover(err *error) {
	if r := recover(); r != nil {
		if se, ok := r.(*lexer.SourceError); ok {
			*err = se
			return
		}
		panic(r)
	}
}

// ---- token cursor ----

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) check(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) match(k lexer.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k lexer.Kind) lexer.Token {
	if !p.check(k) {
		p.errf(p.cur(), "unexpected token %q", p.cur().Text)
	}
	return p.advance()
}

func (p *Parser) errf(tok lexer.Token, format string, args ...interface{}) {
	panic(&lexer.SourceError{File: p.file, Source: p.src, Tok: tok, Message: fmt.Sprintf(format, args...)})
}

// skipSemis consumes any statement-separating semicolons/newlines.
func (p *Parser) skipSemis() {
	for p.match(lexer.Semi) {
	}
}

// ---- statements ----

func (p *Parser) block() *Node {
	tok := p.expect(lexer.LBrace)
	var stmts []*Node
	p.skipSemis()
	for !p.check(lexer.RBrace) && !p.check(lexer.EOF) {
		stmts = append(stmts, p.statement())
		p.skipSemis()
	}
	p.expect(lexer.RBrace)
	return &Node{Kind: NBlock, Tok: tok, Args: stmts}
}

func (p *Parser) statement() *Node {
	tok := p.cur()
	switch tok.Kind {
	case lexer.KwIf:
		return p.ifStmt()
	case lexer.KwWhile:
		return p.whileStmt()
	case lexer.KwFor:
		return p.forStmt()
	case lexer.KwTry:
		return p.tryStmt()
	case lexer.KwFunc:
		return p.funcDef()
	case lexer.KwType:
		return p.typeDef()
	case lexer.KwImport, lexer.KwFrom:
		return p.importStmt()
	case lexer.KwRet:
		p.advance()
		var v *Node
		if !p.atStmtEnd() {
			v = p.expr()
		}
		n := &Node{Kind: NReturn, Tok: tok}
		if v != nil {
			n.Args = []*Node{v}
		}
		return n
	case lexer.KwThrow:
		p.advance()
		v := p.expr()
		return &Node{Kind: NThrow, Tok: tok, Args: []*Node{v}}
	case lexer.KwBreak:
		p.advance()
		return &Node{Kind: NBreak, Tok: tok}
	case lexer.KwCont:
		p.advance()
		return &Node{Kind: NContinue, Tok: tok}
	case lexer.KwDel:
		p.advance()
		target := p.expr()
		return &Node{Kind: NDel, Tok: tok, Args: []*Node{target}}
	case lexer.KwAssert:
		p.advance()
		cond := p.expr()
		n := &Node{Kind: NAssert, Tok: tok, Args: []*Node{cond}}
		if p.match(lexer.Comma) {
			n.Args = append(n.Args, p.expr())
		}
		return n
	case lexer.LBrace:
		return p.block()
	default:
		e := p.expr()
		return &Node{Kind: NExprStmt, Tok: tok, Args: []*Node{e}}
	}
}

func (p *Parser) atStmtEnd() bool {
	return p.check(lexer.Semi) || p.check(lexer.RBrace) || p.check(lexer.EOF)
}

func (p *Parser) ifStmt() *Node {
	tok := p.advance() // if
	cond := p.exprNoBrace()
	then := p.block()
	n := &Node{Kind: NIf, Tok: tok, Args: []*Node{cond, then}}
	if p.match(lexer.KwElif) {
		p.pos--
		p.toks[p.pos].Kind = lexer.KwIf // elif becomes a nested if in the else branch (spec §4.2)
		n.Args = append(n.Args, p.ifStmt())
	} else if p.match(lexer.KwElse) {
		n.Args = append(n.Args, p.block())
	}
	return n
}

func (p *Parser) whileStmt() *Node {
	tok := p.advance()
	cond := p.exprNoBrace()
	body := p.block()
	return &Node{Kind: NWhile, Tok: tok, Args: []*Node{cond, body}}
}

// forStmt handles both the C-style `for init; cond; update {}` and
// `for x in expr {}` forms.
func (p *Parser) forStmt() *Node {
	tok := p.advance()
	// for-in: IDENT 'in' expr
	if p.check(lexer.Ident) {
		save := p.pos
		name := p.advance().Text
		if p.match(lexer.KwIn) {
			coll := p.exprNoBrace()
			body := p.block()
			return &Node{Kind: NForIn, Tok: tok, Value: name, Args: []*Node{coll, body}}
		}
		p.pos = save
	}
	var initN, condN, updN *Node
	if !p.check(lexer.Semi) {
		initN = p.expr()
	}
	p.expect(lexer.Semi)
	if !p.check(lexer.Semi) {
		condN = p.expr()
	}
	p.expect(lexer.Semi)
	if !p.check(lexer.LBrace) {
		updN = p.expr()
	}
	body := p.block()
	args := []*Node{nilNode(initN), nilNode(condN), nilNode(updN), body}
	return &Node{Kind: NFor, Tok: tok, Args: args}
}

func nilNode(n *Node) *Node {
	if n == nil {
		return &Node{Kind: NConstant, Value: object.NoneVal}
	}
	return n
}

func (p *Parser) tryStmt() *Node {
	tok := p.advance()
	tryBlock := p.block()
	desc := &TryDesc{Try: tryBlock}
	for p.match(lexer.KwCatch) {
		var cc CatchClause
		if p.check(lexer.Ident) && p.peekNext().Kind != lexer.LBrace {
			// `catch TypeName name {}` or `catch name {}`
			first := p.advance().Text
			if p.check(lexer.Ident) {
				cc.TypeExpr = &Node{Kind: NName, Value: first}
				cc.Name = p.advance().Text
			} else {
				cc.Name = first
			}
		} else if p.check(lexer.Ident) {
			cc.Name = p.advance().Text
		}
		cc.Body = p.block()
		desc.Catches = append(desc.Catches, cc)
	}
	if p.match(lexer.KwFinally) {
		desc.Finally = p.block()
	}
	return &Node{Kind: NTry, Tok: tok, Value: desc}
}

func (p *Parser) peekNext() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) paramList() ([]ParamDecl, int) {
	p.expect(lexer.LParen)
	var params []ParamDecl
	variadic := -1
	for !p.check(lexer.RParen) {
		if p.match(lexer.Star) {
			variadic = len(params)
		}
		name := p.expect(lexer.Ident).Text
		pd := ParamDecl{Name: name}
		if p.match(lexer.Assign) {
			pd.Default = p.ternary()
		}
		params = append(params, pd)
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RParen)
	return params, variadic
}

func (p *Parser) funcDef() *Node {
	tok := p.advance() // func
	name := ""
	if p.check(lexer.Ident) {
		name = p.advance().Text
	}
	params, variadic := p.paramList()
	body := p.block()
	fd := &FuncDef{Name: name, Params: params, VariadicIdx: variadic, Body: body}
	return &Node{Kind: NFuncDef, Tok: tok, Value: fd}
}

func (p *Parser) typeDef() *Node {
	tok := p.advance() // type
	name := p.expect(lexer.Ident).Text
	base := ""
	if p.match(lexer.Colon) {
		base = p.expect(lexer.Ident).Text
	}
	p.expect(lexer.LBrace)
	td := &TypeDef{Name: name, Base: base}
	p.skipSemis()
	for !p.check(lexer.RBrace) {
		if p.check(lexer.KwFunc) {
			td.Methods = append(td.Methods, p.funcDef())
		} else {
			td.Fields = append(td.Fields, p.expect(lexer.Ident).Text)
		}
		p.skipSemis()
	}
	p.expect(lexer.RBrace)
	return &Node{Kind: NTypeDef, Tok: tok, Value: td}
}

func (p *Parser) importStmt() *Node {
	tok := p.advance() // import or from
	var dotted []string
	dotted = append(dotted, p.expect(lexer.Ident).Text)
	for p.match(lexer.Dot) {
		dotted = append(dotted, p.expect(lexer.Ident).Text)
	}
	alias := ""
	if p.match(lexer.KwAs) {
		alias = p.expect(lexer.Ident).Text
	}
	return &Node{Kind: NImport, Tok: tok, Value: &ImportDesc{Dotted: dotted, Alias: alias}}
}

// ---- expressions, by precedence (spec §4.2) ----

// exprNoBrace parses an expression where a trailing `{` must not be
// consumed as a dict/set literal delimiter (so `if x {}` parses `x` as the
// condition, not `x{}` as a call-like construct).
func (p *Parser) exprNoBrace() *Node {
	return p.assign()
}

func (p *Parser) expr() *Node { return p.assign() }

func (p *Parser) assign() *Node {
	left := p.nullCoalesce()
	if isAssignOp(p.cur().Kind) {
		op := p.advance()
		right := p.assign() // right-associative
		if op.Kind == lexer.Assign {
			return &Node{Kind: NAssign, Tok: op, Args: []*Node{left, right}}
		}
		return &Node{Kind: NAugAssign, Tok: op, Value: op.Kind, Args: []*Node{left, right}}
	}
	return left
}

func isAssignOp(k lexer.Kind) bool {
	switch k {
	case lexer.Assign, lexer.PlusEq, lexer.MinusEq, lexer.StarEq, lexer.SlashEq,
		lexer.SlashSlashEq, lexer.PercentEq, lexer.PowEq, lexer.LshEq, lexer.RshEq,
		lexer.OrEq, lexer.XorEq, lexer.AndEq:
		return true
	}
	return false
}

func (p *Parser) nullCoalesce() *Node {
	left := p.logicalOr()
	for p.check(lexer.QQ) {
		tok := p.advance()
		right := p.logicalOr()
		left = &Node{Kind: NNullCoalesce, Tok: tok, Args: []*Node{left, right}}
	}
	return left
}

func (p *Parser) logicalOr() *Node {
	left := p.logicalAnd()
	for p.check(lexer.OrOr) {
		tok := p.advance()
		right := p.logicalAnd()
		left = &Node{Kind: NLogicalOr, Tok: tok, Args: []*Node{left, right}}
	}
	return left
}

func (p *Parser) logicalAnd() *Node {
	left := p.membership()
	for p.check(lexer.AndAnd) {
		tok := p.advance()
		right := p.membership()
		left = &Node{Kind: NLogicalAnd, Tok: tok, Args: []*Node{left, right}}
	}
	return left
}

func (p *Parser) membership() *Node {
	left := p.comparison()
	for p.check(lexer.KwIn) {
		tok := p.advance()
		right := p.comparison()
		left = &Node{Kind: NBinIn, Tok: tok, Args: []*Node{left, right}}
	}
	return left
}

var cmpKinds = map[lexer.Kind]bool{
	lexer.EqEq: true, lexer.EqEqEq: true, lexer.Ne: true,
	lexer.Lt: true, lexer.Le: true, lexer.Gt: true, lexer.Ge: true,
}

// comparison builds a single richcmp node for a chain of comparisons
// (spec §4.2 "Comparisons within a single chain are associated as one
// richcmp node carrying the sequence of operators").
func (p *Parser) comparison() *Node {
	first := p.bitOr()
	if !cmpKinds[p.cur().Kind] {
		return first
	}
	tok := p.cur()
	args := []*Node{first}
	var ops []lexer.Kind
	for cmpKinds[p.cur().Kind] {
		ops = append(ops, p.advance().Kind)
		args = append(args, p.bitOr())
	}
	return &Node{Kind: NRichCmp, Tok: tok, Args: args, Value: &RichCmp{Ops: ops}}
}

func (p *Parser) bitOr() *Node {
	left := p.bitXor()
	for p.check(lexer.Pipe) {
		tok := p.advance()
		left = &Node{Kind: NBinOr, Tok: tok, Args: []*Node{left, p.bitXor()}}
	}
	return left
}

func (p *Parser) bitXor() *Node {
	left := p.bitAnd()
	for p.check(lexer.Caret) {
		tok := p.advance()
		left = &Node{Kind: NBinXor, Tok: tok, Args: []*Node{left, p.bitAnd()}}
	}
	return left
}

func (p *Parser) bitAnd() *Node {
	left := p.shift()
	for p.check(lexer.Amp) {
		tok := p.advance()
		left = &Node{Kind: NBinAnd, Tok: tok, Args: []*Node{left, p.shift()}}
	}
	return left
}

func (p *Parser) shift() *Node {
	left := p.additive()
	for p.check(lexer.Lsh) || p.check(lexer.Rsh) {
		tok := p.advance()
		kind := NBinLsh
		if tok.Kind == lexer.Rsh {
			kind = NBinRsh
		}
		left = &Node{Kind: kind, Tok: tok, Args: []*Node{left, p.additive()}}
	}
	return left
}

func (p *Parser) additive() *Node {
	left := p.multiplicative()
	for p.check(lexer.Plus) || p.check(lexer.Minus) {
		tok := p.advance()
		kind := NBinAdd
		if tok.Kind == lexer.Minus {
			kind = NBinSub
		}
		left = &Node{Kind: kind, Tok: tok, Args: []*Node{left, p.multiplicative()}}
	}
	return left
}

func (p *Parser) multiplicative() *Node {
	left := p.unary()
	for p.check(lexer.Star) || p.check(lexer.Slash) || p.check(lexer.SlashSlash) || p.check(lexer.Percent) {
		tok := p.advance()
		var kind Kind
		switch tok.Kind {
		case lexer.Star:
			kind = NBinMul
		case lexer.Slash:
			kind = NBinDiv
		case lexer.SlashSlash:
			kind = NBinFloorDiv
		case lexer.Percent:
			kind = NBinMod
		}
		left = &Node{Kind: kind, Tok: tok, Args: []*Node{left, p.unary()}}
	}
	return left
}

func (p *Parser) unary() *Node {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Plus:
		p.advance()
		return &Node{Kind: NUnaryPos, Tok: tok, Args: []*Node{p.unary()}}
	case lexer.Minus:
		p.advance()
		return &Node{Kind: NUnaryNeg, Tok: tok, Args: []*Node{p.unary()}}
	case lexer.Not:
		p.advance()
		return &Node{Kind: NUnaryNot, Tok: tok, Args: []*Node{p.unary()}}
	case lexer.Tilde:
		p.advance()
		return &Node{Kind: NUnaryInvert, Tok: tok, Args: []*Node{p.unary()}}
	case lexer.PlusPlus:
		p.advance()
		return &Node{Kind: NPreIncr, Tok: tok, Args: []*Node{p.unary()}}
	case lexer.MinusMinus:
		p.advance()
		return &Node{Kind: NPreDecr, Tok: tok, Args: []*Node{p.unary()}}
	}
	return p.power()
}

// power is right-associative (spec §4.2 "power (right-associative)").
func (p *Parser) power() *Node {
	left := p.postfix()
	if p.check(lexer.Pow) {
		tok := p.advance()
		right := p.unary()
		return &Node{Kind: NBinPow, Tok: tok, Args: []*Node{left, right}}
	}
	return left
}

func (p *Parser) postfix() *Node {
	n := p.primary()
	for {
		switch p.cur().Kind {
		case lexer.LParen:
			n = p.call(n)
		case lexer.Dot:
			tok := p.advance()
			name := p.expect(lexer.Ident).Text
			n = &Node{Kind: NAttr, Tok: tok, Value: name, Args: []*Node{n}}
		case lexer.LBracket:
			n = p.index(n)
		case lexer.PlusPlus:
			tok := p.advance()
			n = &Node{Kind: NPostIncr, Tok: tok, Args: []*Node{n}}
		case lexer.MinusMinus:
			tok := p.advance()
			n = &Node{Kind: NPostDecr, Tok: tok, Args: []*Node{n}}
		default:
			return n
		}
	}
}

func (p *Parser) call(callee *Node) *Node {
	tok := p.advance() // (
	var args []*Node
	args = append(args, callee)
	for !p.check(lexer.RParen) {
		args = append(args, p.ternary())
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RParen)
	return &Node{Kind: NCall, Tok: tok, Args: args}
}

// ternary is the conditional-expression form `a if cond else b`, parsed at
// the level just above assignment so it can appear inside call arguments
// and container literals without ambiguity.
func (p *Parser) ternary() *Node {
	e := p.expr()
	if p.check(lexer.KwIf) {
		tok := p.advance()
		cond := p.expr()
		p.expect(lexer.KwElse)
		elseE := p.ternary()
		return &Node{Kind: NCond, Tok: tok, Args: []*Node{cond, e, elseE}}
	}
	return e
}

func (p *Parser) index(obj *Node) *Node {
	tok := p.advance() // [
	if p.check(lexer.Colon) || p.looksLikeSlice() {
		return p.sliceExpr(obj, tok)
	}
	idx := p.expr()
	if p.check(lexer.Colon) {
		return p.sliceExprFrom(obj, tok, idx)
	}
	p.expect(lexer.RBracket)
	return &Node{Kind: NIndex, Tok: tok, Args: []*Node{obj, idx}}
}

func (p *Parser) looksLikeSlice() bool { return false }

func (p *Parser) sliceExpr(obj *Node, tok lexer.Token) *Node {
	return p.sliceExprFrom(obj, tok, nil)
}

func (p *Parser) sliceExprFrom(obj *Node, tok lexer.Token, start *Node) *Node {
	var end, step *Node
	if start == nil && !p.check(lexer.Colon) {
		start = p.expr()
	}
	p.expect(lexer.Colon)
	if !p.check(lexer.Colon) && !p.check(lexer.RBracket) {
		end = p.expr()
	}
	if p.match(lexer.Colon) {
		if !p.check(lexer.RBracket) {
			step = p.expr()
		}
	}
	p.expect(lexer.RBracket)
	return &Node{Kind: NSlice, Tok: tok, Args: []*Node{obj, nilOr(start), nilOr(end), nilOr(step)}}
}

func nilOr(n *Node) *Node {
	if n == nil {
		return &Node{Kind: NConstant, Value: object.NoneVal}
	}
	return n
}

func (p *Parser) primary() *Node {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Int:
		p.advance()
		return &Node{Kind: NConstant, Tok: tok, Value: parseIntLiteral(tok.Text)}
	case lexer.Float:
		p.advance()
		return &Node{Kind: NConstant, Tok: tok, Value: parseFloatLiteral(tok.Text)}
	case lexer.Str:
		p.advance()
		return &Node{Kind: NConstant, Tok: tok, Value: object.NewStr(tok.Text)}
	case lexer.KwTrue:
		p.advance()
		return &Node{Kind: NConstant, Tok: tok, Value: object.True}
	case lexer.KwFalse:
		p.advance()
		return &Node{Kind: NConstant, Tok: tok, Value: object.False}
	case lexer.KwNone:
		p.advance()
		return &Node{Kind: NConstant, Tok: tok, Value: object.NoneVal}
	case lexer.Ident:
		p.advance()
		return &Node{Kind: NName, Tok: tok, Value: tok.Text}
	case lexer.KwType:
		// In expression position `type` names the builtin type() function.
		p.advance()
		return &Node{Kind: NName, Tok: tok, Value: tok.Text}
	case lexer.LParen:
		p.advance()
		e := p.expr()
		if p.match(lexer.Comma) {
			elems := []*Node{e}
			for !p.check(lexer.RParen) {
				elems = append(elems, p.ternary())
				if !p.match(lexer.Comma) {
					break
				}
			}
			p.expect(lexer.RParen)
			return &Node{Kind: NTuple, Tok: tok, Args: elems}
		}
		p.expect(lexer.RParen)
		return e
	case lexer.LBracket:
		return p.listExpr()
	case lexer.LBrace:
		return p.dictOrSetExpr()
	case lexer.KwFunc:
		return p.funcDef()
	}
	p.errf(tok, "unexpected token %q", tok.Text)
	return nil
}

func (p *Parser) listExpr() *Node {
	tok := p.advance() // [
	var elems []*Node
	for !p.check(lexer.RBracket) {
		elems = append(elems, p.ternary())
		if !p.match(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RBracket)
	return &Node{Kind: NList, Tok: tok, Args: elems}
}

func (p *Parser) dictOrSetExpr() *Node {
	tok := p.advance() // {
	if p.check(lexer.RBrace) {
		p.advance()
		return &Node{Kind: NDict, Tok: tok}
	}
	first := p.ternary()
	if p.match(lexer.Colon) {
		keys := []*Node{first}
		vals := []*Node{p.ternary()}
		for p.match(lexer.Comma) {
			if p.check(lexer.RBrace) {
				break
			}
			keys = append(keys, p.ternary())
			p.expect(lexer.Colon)
			vals = append(vals, p.ternary())
		}
		p.expect(lexer.RBrace)
		return &Node{Kind: NDict, Tok: tok, Args: append(keys, vals...), Value: len(keys)}
	}
	elems := []*Node{first}
	for p.match(lexer.Comma) {
		if p.check(lexer.RBrace) {
			break
		}
		elems = append(elems, p.ternary())
	}
	p.expect(lexer.RBrace)
	return &Node{Kind: NSet, Tok: tok, Args: elems}
}

func parseIntLiteral(text string) *object.Int {
	base := 10
	s := text
	if strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B") {
		base, s = 2, s[2:]
	} else if strings.HasPrefix(s, "0o") || strings.HasPrefix(s, "0O") {
		base, s = 8, s[2:]
	} else if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, s = 16, s[2:]
	}
	v, _ := new(big.Int).SetString(s, base)
	if v == nil {
		v = big.NewInt(0)
	}
	return object.NewIntFromBig(v)
}

func parseFloatLiteral(text string) object.Object {
	imaginary := strings.HasSuffix(text, "i") || strings.HasSuffix(text, "I")
	numText := text
	if imaginary {
		numText = text[:len(text)-1]
	}
	f := new(big.Float)
	f.SetPrec(200)
	f.Parse(numText, 10)
	v, _ := f.Float64()
	if imaginary {
		return object.NewComplex(0, v)
	}
	return object.NewFloat(v)
}
