package compiler

import (
	"kvm/internal/bytecode"
	"kvm/internal/lexer"
	"kvm/internal/object"
	"kvm/internal/parser"
)

var binOpcode = map[parser.Kind]bytecode.Op{
	parser.NBinOr: bytecode.BinOr, parser.NBinXor: bytecode.BinXor, parser.NBinAnd: bytecode.BinAnd,
	parser.NBinLsh: bytecode.BinLsh, parser.NBinRsh: bytecode.BinRsh,
	parser.NBinAdd: bytecode.BinAdd, parser.NBinSub: bytecode.BinSub,
	parser.NBinMul: bytecode.BinMul, parser.NBinDiv: bytecode.BinDiv,
	parser.NBinFloorDiv: bytecode.BinFloorDiv, parser.NBinMod: bytecode.BinMod,
	parser.NBinPow: bytecode.BinPow, parser.NBinIn: bytecode.BinIn,
}

var cmpOpcode = map[lexer.Kind]bytecode.Op{
	lexer.EqEq: bytecode.Eq, lexer.EqEqEq: bytecode.Eeq, lexer.Ne: bytecode.Ne,
	lexer.Lt: bytecode.Lt, lexer.Le: bytecode.Le, lexer.Gt: bytecode.Gt, lexer.Ge: bytecode.Ge,
}

var unaryOpcode = map[parser.Kind]bytecode.Op{
	parser.NUnaryPos: bytecode.UnaryPos, parser.NUnaryNeg: bytecode.UnaryNeg,
	parser.NUnaryInvert: bytecode.UnarySqig, parser.NUnaryNot: bytecode.UnaryNot,
}

// expr compiles n so its single result is left on the operand stack (spec
// §4.3 "each expression form leaves its single result on the operand
// stack").
func (c *Compiler) expr(n *parser.Node) {
	c.mark(n)
	switch n.Kind {
	case parser.NConstant:
		idx := c.asm.AddConstant(n.Value.(object.Object))
		c.asm.EmitArg(bytecode.Push, idx)

	case parser.NName:
		idx := c.nameConst(n.Value.(string))
		c.asm.EmitArg(bytecode.Load, idx)

	case parser.NList:
		c.compileSeqLiteral(n.Args, bytecode.MakeList)
	case parser.NTuple:
		c.compileSeqLiteral(n.Args, bytecode.MakeTuple)
	case parser.NSet:
		c.compileSeqLiteral(n.Args, bytecode.MakeSet)
	case parser.NDict:
		c.compileDictLiteral(n)

	case parser.NCall:
		c.compileCall(n)
	case parser.NAttr:
		c.expr(n.Args[0])
		idx := c.nameConst(n.Value.(string))
		c.asm.EmitArg(bytecode.GetAttr, idx)
	case parser.NIndex:
		c.expr(n.Args[0])
		c.expr(n.Args[1])
		c.asm.EmitArg(bytecode.GetElem, 1)
	case parser.NSlice:
		c.expr(n.Args[0])
		c.expr(n.Args[1])
		c.expr(n.Args[2])
		c.expr(n.Args[3])
		c.asm.Emit(bytecode.MakeSlice)
		c.asm.EmitArg(bytecode.GetElem, 1)

	case parser.NCond:
		c.compileCond(n)
	case parser.NRichCmp:
		c.compileRichCmp(n)

	case parser.NAssign:
		c.compileAssign(n)
	case parser.NAugAssign:
		c.compileAugAssign(n)

	case parser.NFuncDef:
		c.emitFuncConst(n)

	case parser.NLogicalOr:
		c.expr(n.Args[0])
		jt := c.asm.EmitArg(bytecode.JmpT, 0)
		c.asm.Emit(bytecode.Popu)
		c.expr(n.Args[1])
		c.asm.PatchJump(jt, c.asm.Offset())
	case parser.NLogicalAnd:
		c.expr(n.Args[0])
		jf := c.asm.EmitArg(bytecode.JmpF, 0)
		c.asm.Emit(bytecode.Popu)
		c.expr(n.Args[1])
		c.asm.PatchJump(jf, c.asm.Offset())
	case parser.NNullCoalesce:
		c.compileNullCoalesce(n)

	case parser.NPreIncr, parser.NPreDecr, parser.NPostIncr, parser.NPostDecr:
		c.compileIncrDecr(n)

	case parser.NInterp:
		c.compileInterp(n)

	default:
		if op, ok := binOpcode[n.Kind]; ok {
			c.expr(n.Args[0])
			c.expr(n.Args[1])
			c.asm.Emit(op)
			return
		}
		if op, ok := unaryOpcode[n.Kind]; ok {
			c.expr(n.Args[0])
			c.asm.Emit(op)
			return
		}
		c.errorf(n, "cannot compile node kind %d as an expression", n.Kind)
	}
}

func (c *Compiler) compileSeqLiteral(elems []*parser.Node, op bytecode.Op) {
	for _, e := range elems {
		c.expr(e)
	}
	c.asm.EmitArg(op, int32(len(elems)))
}

func (c *Compiler) compileDictLiteral(n *parser.Node) {
	if n.Value == nil {
		c.asm.EmitArg(bytecode.MakeDict, 0)
		return
	}
	nPairs := n.Value.(int)
	keys, vals := n.Args[:nPairs], n.Args[nPairs:]
	for i := 0; i < nPairs; i++ {
		c.expr(keys[i])
		c.expr(vals[i])
	}
	c.asm.EmitArg(bytecode.MakeDict, int32(nPairs))
}

func (c *Compiler) compileCall(n *parser.Node) {
	callee := n.Args[0]
	args := n.Args[1:]
	c.expr(callee)
	for _, a := range args {
		c.expr(a)
	}
	c.asm.EmitArg(bytecode.Call, int32(len(args)+1))
}

func (c *Compiler) compileCond(n *parser.Node) {
	cond, thenE, elseE := n.Args[0], n.Args[1], n.Args[2]
	c.expr(cond)
	jf := c.asm.EmitArg(bytecode.JmpF, 0)
	c.asm.Emit(bytecode.Popu)
	c.expr(thenE)
	jEnd := c.asm.EmitArg(bytecode.Jmp, 0)
	c.asm.PatchJump(jf, c.asm.Offset())
	c.asm.Emit(bytecode.Popu)
	c.expr(elseE)
	c.asm.PatchJump(jEnd, c.asm.Offset())
}

// compileRichCmp compiles a chained comparison (spec §4.2/§4.3) as a
// short-circuiting conjunction: each pairwise comparison result gates
// whether the next pair is evaluated, matching `a < b < c` meaning
// `a < b && b < c` without re-evaluating b.
func (c *Compiler) compileRichCmp(n *parser.Node) {
	rc := n.Value.(*parser.RichCmp)
	var shortJumps []int
	c.expr(n.Args[0])
	for i, op := range rc.Ops {
		c.expr(n.Args[i+1])
		if i < len(rc.Ops)-1 {
			c.asm.Emit(bytecode.Dup)
		}
		c.asm.Emit(cmpOpcode[op])
		if i < len(rc.Ops)-1 {
			jf := c.asm.EmitArg(bytecode.JmpF, 0)
			shortJumps = append(shortJumps, jf)
			c.asm.Emit(bytecode.Popu)
		}
	}
	jEnd := c.asm.EmitArg(bytecode.Jmp, 0)
	for _, jf := range shortJumps {
		c.asm.PatchJump(jf, c.asm.Offset())
	}
	c.asm.PatchJump(jEnd, c.asm.Offset())
}

func (c *Compiler) compileNullCoalesce(n *parser.Node) {
	c.expr(n.Args[0])
	noneIdx := c.asm.AddConstant(object.NoneVal)
	c.asm.Emit(bytecode.Dup)
	c.asm.EmitArg(bytecode.Push, noneIdx)
	c.asm.Emit(bytecode.Eeq)
	jf := c.asm.EmitArg(bytecode.JmpF, 0)
	c.asm.Emit(bytecode.Popu)
	c.asm.Emit(bytecode.Popu)
	c.expr(n.Args[1])
	jEnd := c.asm.EmitArg(bytecode.Jmp, 0)
	c.asm.PatchJump(jf, c.asm.Offset())
	c.asm.Emit(bytecode.Popu)
	c.asm.PatchJump(jEnd, c.asm.Offset())
}

// compileAssign compiles `target = value`, dispatching by the target's
// AST shape (name, attribute, or index).
func (c *Compiler) compileAssign(n *parser.Node) {
	target, value := n.Args[0], n.Args[1]
	c.expr(value)
	c.asm.Emit(bytecode.Dup)
	c.storeTo(target)
}

func (c *Compiler) storeTo(target *parser.Node) {
	switch target.Kind {
	case parser.NName:
		idx := c.nameConst(target.Value.(string))
		c.asm.EmitArg(bytecode.Store, idx)
	case parser.NAttr:
		c.expr(target.Args[0])
		idx := c.nameConst(target.Value.(string))
		c.asm.EmitArg(bytecode.SetAttr, idx)
		c.asm.Emit(bytecode.Popu) // setattr's own result, not the assignment's
	case parser.NIndex:
		c.expr(target.Args[0])
		c.expr(target.Args[1])
		c.asm.EmitArg(bytecode.SetElem, 1)
		c.asm.Emit(bytecode.Popu)
	default:
		c.errorf(target, "invalid assignment target")
	}
}

// compileAugAssign lowers `target op= value` to the underlying binop plus
// a store (spec §4.3 "Augmented assignments are lowered to the underlying
// binop plus a store").
func (c *Compiler) compileAugAssign(n *parser.Node) {
	target, value := n.Args[0], n.Args[1]
	op := augBinOp(n.Value.(lexer.Kind))
	c.expr(target)
	c.expr(value)
	c.asm.Emit(op)
	c.asm.Emit(bytecode.Dup)
	c.storeTo(target)
}

func augBinOp(k lexer.Kind) bytecode.Op {
	switch k {
	case lexer.PlusEq:
		return bytecode.BinAdd
	case lexer.MinusEq:
		return bytecode.BinSub
	case lexer.StarEq:
		return bytecode.BinMul
	case lexer.SlashEq:
		return bytecode.BinDiv
	case lexer.SlashSlashEq:
		return bytecode.BinFloorDiv
	case lexer.PercentEq:
		return bytecode.BinMod
	case lexer.PowEq:
		return bytecode.BinPow
	case lexer.LshEq:
		return bytecode.BinLsh
	case lexer.RshEq:
		return bytecode.BinRsh
	case lexer.OrEq:
		return bytecode.BinOr
	case lexer.XorEq:
		return bytecode.BinXor
	case lexer.AndEq:
		return bytecode.BinAnd
	}
	return bytecode.Noop
}

// compileIncrDecr lowers `++x`/`x++`/`--x`/`x--` to a load, a literal-one
// binop, and a store; post-forms additionally preserve the pre-update
// value as the expression's own result.
func (c *Compiler) compileIncrDecr(n *parser.Node) {
	target := n.Args[0]
	one := c.asm.AddConstant(object.NewInt(1))
	op := bytecode.BinAdd
	if n.Kind == parser.NPreDecr || n.Kind == parser.NPostDecr {
		op = bytecode.BinSub
	}
	post := n.Kind == parser.NPostIncr || n.Kind == parser.NPostDecr
	c.expr(target)
	if post {
		c.asm.Emit(bytecode.Dup)
	}
	c.asm.EmitArg(bytecode.Push, one)
	c.asm.Emit(op)
	c.asm.Emit(bytecode.Dup)
	c.storeTo(target)
	if post {
		// Stack: [old, new]; drop new, keep old as the expression value.
		c.asm.Emit(bytecode.Popu)
	} else {
		// Stack after storeTo pop would be empty; storeTo already consumed
		// the duplicate it needed, so the remaining value is the new one.
	}
}

// compileInterp compiles a string interpolation's alternating literal/expr
// parts (spec §4.1 string interpolation) by concatenating them left to
// right via bin_add. Parts are not converted with `str`: bin_add on str
// accepts only str operands, so a non-string expression part raises
// TypeError.
func (c *Compiler) compileInterp(n *parser.Node) {
	if len(n.Args) == 0 {
		idx := c.asm.AddConstant(object.NewStr(""))
		c.asm.EmitArg(bytecode.Push, idx)
		return
	}
	for i, part := range n.Args {
		c.expr(part)
		if i > 0 {
			c.asm.Emit(bytecode.BinAdd)
		}
	}
}
