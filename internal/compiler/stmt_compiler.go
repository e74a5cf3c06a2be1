package compiler

import (
	"kvm/internal/bytecode"
	"kvm/internal/object"
	"kvm/internal/parser"
)

// statement compiles one statement form, leaving the operand stack at the
// same depth it found it (spec §4.3 "each statement form leaves the stack
// depth unchanged relative to entry ... surplus values are popped").
func (c *Compiler) statement(n *parser.Node) {
	c.mark(n)
	switch n.Kind {
	case parser.NExprStmt:
		c.expr(n.Args[0])
		c.asm.Emit(bytecode.Popu)
	case parser.NBlock:
		for _, s := range n.Args {
			c.statement(s)
		}
	case parser.NIf:
		c.compileIf(n)
	case parser.NWhile:
		c.compileWhile(n)
	case parser.NFor:
		c.compileFor(n)
	case parser.NForIn:
		c.compileForIn(n)
	case parser.NTry:
		c.compileTry(n)
	case parser.NFuncDef:
		c.compileFuncDef(n, true)
	case parser.NTypeDef:
		c.compileTypeDef(n)
	case parser.NImport:
		c.compileImport(n)
	case parser.NReturn:
		c.compileReturn(n)
	case parser.NThrow:
		c.expr(n.Args[0])
		c.asm.Emit(bytecode.Throw)
	case parser.NBreak:
		c.compileBreak(n)
	case parser.NContinue:
		c.compileContinue(n)
	case parser.NAssert:
		c.compileAssert(n)
	case parser.NDel:
		c.compileDel(n)
	default:
		// A bare expression form used where a statement was expected.
		c.expr(n)
		c.asm.Emit(bytecode.Popu)
	}
}

func (c *Compiler) compileIf(n *parser.Node) {
	cond, then := n.Args[0], n.Args[1]
	c.expr(cond)
	jf := c.asm.EmitArg(bytecode.JmpF, 0)
	c.asm.Emit(bytecode.Popu) // discard the (still truthy) condition on the taken branch
	c.statement(then)
	if len(n.Args) > 2 {
		jEnd := c.asm.EmitArg(bytecode.Jmp, 0)
		c.asm.PatchJump(jf, c.asm.Offset())
		c.asm.Emit(bytecode.Popu)
		c.statement(n.Args[2])
		c.asm.PatchJump(jEnd, c.asm.Offset())
	} else {
		c.asm.PatchJump(jf, c.asm.Offset())
		c.asm.Emit(bytecode.Popu)
	}
}

func (c *Compiler) compileWhile(n *parser.Node) {
	cond, body := n.Args[0], n.Args[1]
	start := c.asm.Offset()
	c.expr(cond)
	jf := c.asm.EmitArg(bytecode.JmpF, 0)
	c.asm.Emit(bytecode.Popu)

	var breaks []int
	c.ctrl = append(c.ctrl, ctrlEntry{kind: ctrlLoop, breakPatches: &breaks, continueTarget: start})
	c.statement(body)
	c.ctrl = c.ctrl[:len(c.ctrl)-1]

	c.asm.PatchJump(c.asm.EmitArg(bytecode.Jmp, 0), start)
	c.asm.PatchJump(jf, c.asm.Offset())
	c.asm.Emit(bytecode.Popu)
	for _, p := range breaks {
		c.asm.PatchJump(p, c.asm.Offset())
	}
}

func (c *Compiler) compileFor(n *parser.Node) {
	initN, condN, updN, body := n.Args[0], n.Args[1], n.Args[2], n.Args[3]
	if !isNoneConst(initN) {
		c.expr(initN)
		c.asm.Emit(bytecode.Popu)
	}
	condStart := c.asm.Offset()
	hasCond := !isNoneConst(condN)
	var jf int
	if hasCond {
		c.expr(condN)
		jf = c.asm.EmitArg(bytecode.JmpF, 0)
		c.asm.Emit(bytecode.Popu)
	}

	var breaks, continues []int
	c.ctrl = append(c.ctrl, ctrlEntry{kind: ctrlLoop, breakPatches: &breaks, continuePatches: &continues})
	c.statement(body)
	updStart := c.asm.Offset()
	for _, p := range continues {
		c.asm.PatchJump(p, updStart)
	}
	if !isNoneConst(updN) {
		c.expr(updN)
		c.asm.Emit(bytecode.Popu)
	}
	c.asm.PatchJump(c.asm.EmitArg(bytecode.Jmp, 0), condStart)
	c.ctrl = c.ctrl[:len(c.ctrl)-1]
	if hasCond {
		c.asm.PatchJump(jf, c.asm.Offset())
		c.asm.Emit(bytecode.Popu)
	}
	for _, p := range breaks {
		c.asm.PatchJump(p, c.asm.Offset())
	}
}

func isNoneConst(n *parser.Node) bool {
	return n.Kind == parser.NConstant && n.Value == object.NoneVal
}

// compileForIn implements the for_start/for_nextt/f iteration protocol of
// spec §4.4: the collection is converted to an iterator once, then
// for_nextf loops until OutOfIter.
func (c *Compiler) compileForIn(n *parser.Node) {
	name := n.Value.(string)
	coll, body := n.Args[0], n.Args[1]
	c.expr(coll)
	c.asm.Emit(bytecode.ForStart)
	top := c.asm.Offset()
	jf := c.asm.EmitArg(bytecode.ForNextF, 0) // pushes next value and falls through; jumps to end on OutOfIter
	nameIdx := c.nameConst(name)
	c.asm.EmitArg(bytecode.Store, nameIdx)

	var breaks []int
	c.ctrl = append(c.ctrl, ctrlEntry{kind: ctrlLoop, breakPatches: &breaks, continueTarget: top})
	c.statement(body)
	c.ctrl = c.ctrl[:len(c.ctrl)-1]

	c.asm.PatchJump(c.asm.EmitArg(bytecode.Jmp, 0), top)
	c.asm.PatchJump(jf, c.asm.Offset())
	for _, p := range breaks {
		c.asm.PatchJump(p, c.asm.Offset())
	}
	c.asm.Emit(bytecode.Popu) // discard the exhausted iterator
}

// compileTry emits try_start/try_catch.../try_end/finally_end per spec
// §4.4. Non-exceptional early exits (return/break/continue) crossing this
// try are handled by runFinallysFor*, which inline the finally body at
// each such exit rather than relying on the VM's exceptional-unwind path.
func (c *Compiler) compileTry(n *parser.Node) {
	desc := n.Value.(*parser.TryDesc)

	tryStart := c.asm.EmitArg(bytecode.TryStart, 0)
	c.ctrl = append(c.ctrl, ctrlEntry{kind: ctrlTry, finally: desc.Finally})
	c.statement(desc.Try)
	c.ctrl = c.ctrl[:len(c.ctrl)-1]
	tryEndJmp := c.asm.EmitArg(bytecode.Jmp, 0) // normal completion skips every catch arm
	c.asm.PatchJump(tryStart, c.asm.Offset())

	var afterAll []int
	for _, cc := range desc.Catches {
		var nextArm int
		if cc.TypeExpr != nil {
			c.expr(cc.TypeExpr)
			nextArm = c.asm.EmitArg(bytecode.TryCatch, 0)
		} else {
			nextArm = c.asm.EmitArg(bytecode.TryCatchAll, 0)
		}
		if cc.Name != "" {
			idx := c.nameConst(cc.Name)
			c.asm.EmitArg(bytecode.Store, idx)
		} else {
			c.asm.Emit(bytecode.Popu)
		}
		c.statement(cc.Body)
		afterAll = append(afterAll, c.asm.EmitArg(bytecode.Jmp, 0))
		c.asm.PatchJump(nextArm, c.asm.Offset())
	}
	// No arm matched: try_end falls through to the finally body, after
	// which finally_end re-raises the still-pending exception.
	c.asm.EmitArg(bytecode.TryEnd, int32(c.asm.Offset()))
	for _, p := range afterAll {
		c.asm.PatchJump(p, c.asm.Offset())
	}
	c.asm.PatchJump(tryEndJmp, c.asm.Offset())
	if desc.Finally != nil {
		c.statement(desc.Finally)
	}
	c.asm.Emit(bytecode.FinallyEnd)
}

func (c *Compiler) compileFuncDef(n *parser.Node, bindName bool) {
	c.emitFuncConst(n)
	fd := n.Value.(*parser.FuncDef)
	if bindName && fd.Name != "" {
		nameIdx := c.nameConst(fd.Name)
		c.asm.EmitArg(bytecode.Store, nameIdx)
	} else if bindName {
		c.asm.Emit(bytecode.Popu)
	}
}

// emitFuncConst pushes any default-argument values, emits `make_func idx`
// to materialize the closure, and — only once the closure exists on the
// stack — emits `func_defa n` to attach them (spec §4.3: defaults are
// evaluated once, at definition time, then attached to the fresh Func).
func (c *Compiler) emitFuncConst(n *parser.Node) {
	idx, nDefaults := c.compileFuncConst(n)
	fd := n.Value.(*parser.FuncDef)
	if nDefaults > 0 {
		for _, p := range fd.Params {
			if p.Default != nil {
				c.expr(p.Default)
			}
		}
	}
	c.asm.EmitArg(bytecode.MakeFunc, idx)
	if nDefaults > 0 {
		c.asm.EmitArg(bytecode.FuncDefA, int32(nDefaults))
	}
}

// compileFuncConst compiles fd's body into its own Code object, interns a
// FuncDescriptor constant describing name/params/variadic/code, and
// returns the descriptor's constant index plus how many trailing params
// carry a default expression.
func (c *Compiler) compileFuncConst(n *parser.Node) (int32, int) {
	fd := n.Value.(*parser.FuncDef)
	sub := newCompiler(c.file, c.src)
	for _, s := range fd.Body.Args {
		sub.statement(s)
	}
	noneIdx := sub.asm.AddConstant(object.NoneVal)
	sub.asm.EmitArg(bytecode.Push, noneIdx)
	sub.asm.Emit(bytecode.Ret)
	code := sub.asm.Code()

	params := make([]object.Param, len(fd.Params))
	var nDefaults int
	for i, p := range fd.Params {
		params[i] = object.Param{Name: p.Name}
		if p.Default != nil {
			nDefaults++
		}
	}
	desc := object.NewFuncDescriptor(fd.Name, params, fd.VariadicIdx, code)
	idx := c.asm.AddConstant(desc)
	return idx, nDefaults
}

func (c *Compiler) compileTypeDef(n *parser.Node) {
	td := n.Value.(*parser.TypeDef)
	methodDescs := make([]*object.FuncDescriptor, len(td.Methods))
	for i, m := range td.Methods {
		fd := m.Value.(*parser.FuncDef)
		sub := newCompiler(c.file, c.src)
		for _, s := range fd.Body.Args {
			sub.statement(s)
		}
		noneIdx := sub.asm.AddConstant(object.NoneVal)
		sub.asm.EmitArg(bytecode.Push, noneIdx)
		sub.asm.Emit(bytecode.Ret)
		code := sub.asm.Code()
		params := make([]object.Param, len(fd.Params))
		for j, p := range fd.Params {
			params[j] = object.Param{Name: p.Name}
		}
		methodDescs[i] = object.NewFuncDescriptor(fd.Name, params, fd.VariadicIdx, code)
	}
	desc := object.NewTypeDescriptor(td.Name, td.Base, td.Fields, methodDescs)
	idx := c.asm.AddConstant(desc)
	c.asm.EmitArg(bytecode.MakeType, idx)
	nameIdx := c.nameConst(td.Name)
	c.asm.EmitArg(bytecode.Store, nameIdx)
}

func (c *Compiler) compileImport(n *parser.Node) {
	desc := n.Value.(*parser.ImportDesc)
	callIdx := c.nameConst("__import__")
	c.asm.EmitArg(bytecode.Load, callIdx)
	pathStr := object.NewStr(joinDotted(desc.Dotted))
	idx := c.asm.AddConstant(pathStr)
	c.asm.EmitArg(bytecode.Push, idx)
	// stack: [__import__, path]; call 2 pops callable (bottom) + 1 arg.
	c.asm.EmitArg(bytecode.Call, 2)
	name := desc.Alias
	if name == "" {
		name = desc.Dotted[0]
	}
	bindIdx := c.nameConst(name)
	c.asm.EmitArg(bytecode.Store, bindIdx)
}

func joinDotted(parts []string) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += "."
		}
		s += p
	}
	return s
}

func (c *Compiler) compileReturn(n *parser.Node) {
	if len(n.Args) > 0 {
		c.expr(n.Args[0])
	} else {
		idx := c.asm.AddConstant(object.NoneVal)
		c.asm.EmitArg(bytecode.Push, idx)
	}
	c.runFinallysForReturn()
	c.asm.Emit(bytecode.Ret)
}

func (c *Compiler) compileBreak(n *parser.Node) {
	for i := len(c.ctrl) - 1; i >= 0; i-- {
		e := c.ctrl[i]
		if e.kind == ctrlTry && e.finally != nil {
			c.statement(e.finally)
		}
		if e.kind == ctrlLoop {
			*e.breakPatches = append(*e.breakPatches, c.asm.EmitArg(bytecode.Jmp, 0))
			return
		}
	}
	c.errorf(n, "break outside loop")
}

func (c *Compiler) compileContinue(n *parser.Node) {
	for i := len(c.ctrl) - 1; i >= 0; i-- {
		e := c.ctrl[i]
		if e.kind == ctrlTry && e.finally != nil {
			c.statement(e.finally)
		}
		if e.kind == ctrlLoop {
			if e.continuePatches != nil {
				*e.continuePatches = append(*e.continuePatches, c.asm.EmitArg(bytecode.Jmp, 0))
			} else {
				c.asm.PatchJump(c.asm.EmitArg(bytecode.Jmp, 0), e.continueTarget)
			}
			return
		}
	}
	c.errorf(n, "continue outside loop")
}

// runFinallysForReturn inlines every enclosing finally block, innermost
// first, ahead of a `ret`.
func (c *Compiler) runFinallysForReturn() {
	for i := len(c.ctrl) - 1; i >= 0; i-- {
		if e := c.ctrl[i]; e.kind == ctrlTry && e.finally != nil {
			c.statement(e.finally)
		}
	}
}

func (c *Compiler) runFinallysForThrow() {
	c.runFinallysForReturn()
}

// compileDel implements `del target` (spec §8 scenario 3): only a
// subscript target (`del d[key]`) is supported, matching every worked
// example in the spec.
func (c *Compiler) compileDel(n *parser.Node) {
	target := n.Args[0]
	if target.Kind != parser.NIndex {
		c.errorf(n, "del target must be a subscript expression")
		return
	}
	c.expr(target.Args[0])
	c.expr(target.Args[1])
	c.asm.Emit(bytecode.DelElem)
	c.asm.Emit(bytecode.Popu)
}

func (c *Compiler) compileAssert(n *parser.Node) {
	c.expr(n.Args[0])
	jt := c.asm.EmitArg(bytecode.JmpT, 0)
	c.asm.Emit(bytecode.Popu)
	if len(n.Args) > 1 {
		c.expr(n.Args[1])
	} else {
		idx := c.asm.AddConstant(object.NewStr("assertion failed"))
		c.asm.EmitArg(bytecode.Push, idx)
	}
	c.asm.Emit(bytecode.Throw)
	c.asm.PatchJump(jt, c.asm.Offset())
	c.asm.Emit(bytecode.Popu)
}
