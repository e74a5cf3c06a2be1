// Package compiler walks an AST (internal/parser.Node) depth-first and
// emits bytecode into an internal/object.Code (spec §4.3). Grounded on the
// teacher's internal/compiler (one Compiler struct wrapping a Chunk,
// switch/visit-and-emit style), generalized from the teacher's per-form
// visitor dispatch to a direct switch over parser.Kind, since this
// module's AST is the single generic Node type rather than the teacher's
// typed Expr/Stmt tree.
package compiler

import (
	"fmt"

	"kvm/internal/bytecode"
	"kvm/internal/lexer"
	"kvm/internal/object"
	"kvm/internal/parser"
)

// ctrlKind distinguishes the two things a break/continue/return walk can
// cross: a loop boundary (where break/continue stop) and a try block
// (whose finally must run on the way out).
type ctrlKind int

const (
	ctrlLoop ctrlKind = iota
	ctrlTry
)

type ctrlEntry struct {
	kind ctrlKind

	breakPatches *[]int
	// continueTarget is used when the continue destination is known up
	// front (while, for-in); continuePatches is used when it is only
	// known after the loop body compiles (C-style for's update clause).
	continueTarget  int
	continuePatches *[]int

	finally *parser.Node // non-nil for ctrlTry entries with a finally block
}

// Compiler compiles one AST into one Code object. Nested function/lambda
// bodies get their own Compiler sharing the parent's constant-pool
// interning is NOT shared (spec §4.3 allows, but does not require, a
// shared pool across nested code objects; each code object here owns an
// independent pool for simplicity).
type Compiler struct {
	asm  *bytecode.Assembler
	file string
	src  string
	ctrl []ctrlEntry
}

// Compile compiles a whole program into a module-level code object (spec
// §4.3 "The final act for a program is to emit a push-none and a return").
func Compile(file, src string, root *parser.Node) (code *object.Code, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*compileError); ok {
				err = ce.err
				return
			}
			panic(r)
		}
	}()
	c := newCompiler(file, src)
	for _, stmt := range root.Args {
		c.statement(stmt)
	}
	none := c.asm.AddConstant(object.NoneVal)
	c.asm.EmitArg(bytecode.Push, none)
	c.asm.Emit(bytecode.Ret)
	return c.asm.Code(), nil
}

// CompileExpr compiles a single expression to a code object that leaves
// its value on the stack and returns it (used for `-e EXPR`).
func CompileExpr(file, src string, expr *parser.Node) (code *object.Code, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*compileError); ok {
				err = ce.err
				return
			}
			panic(r)
		}
	}()
	c := newCompiler(file, src)
	c.expr(expr)
	c.asm.Emit(bytecode.Ret)
	return c.asm.Code(), nil
}

func newCompiler(file, src string) *Compiler {
	return &Compiler{asm: bytecode.NewAssembler(object.NewCode(file, src)), file: file, src: src}
}

type compileError struct{ err error }

func (c *Compiler) errorf(n *parser.Node, format string, args ...interface{}) {
	panic(&compileError{&lexer.SourceError{File: c.file, Source: c.src, Tok: n.Tok, Message: fmt.Sprintf(format, args...)}})
}

func (c *Compiler) nameConst(name string) int32 {
	return c.asm.AddConstant(object.NewStr(name))
}

func (c *Compiler) mark(n *parser.Node) {
	c.asm.Mark(n.Tok.Line+1, n.Tok.Col+1)
}
