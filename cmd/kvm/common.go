// Command kvm is the entry point of SPEC_FULL.md §2's ambient CLI stack:
// github.com/google/subcommands structures the runner/repl/eval/exec/build
// surface, matching spec.md §6's single-executable interface (`-e EXPR`,
// `-c CODE`, `-i NAME`, `-v`, trailing file-or-`-`) one subcommand at a
// time rather than one flag at a time. Grounded on the teacher's
// cmd/sentra/main.go command roster and on the pack's informatter-nilan
// cmd_run.go/cmd_repl.go/cmd_emit_bytecode.go subcommand shapes.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"kvm/internal/builtins"
	"kvm/internal/compiler"
	"kvm/internal/lexer"
	"kvm/internal/module"
	"kvm/internal/object"
	"kvm/internal/parser"
	"kvm/internal/stdlib/db"
	"kvm/internal/stdlib/fmtutil"
	iostd "kvm/internal/stdlib/io"
	"kvm/internal/stdlib/net"
	osstd "kvm/internal/stdlib/os"
	"kvm/internal/stdlib/thread"
	"kvm/internal/stdlib/uid"
	"kvm/internal/vm"
)

// verbosity is incremented once per -v flag (spec §6 "-v to increase
// logger verbosity"). Grounded on cmd/sentra/main.go's plain log.Printf
// use: neither the teacher nor the rest of the pack reaches for a
// structured-logging library, so this stays on stdlib's log (see
// DESIGN.md).
var verbosity int

func logPrintf(level int, format string, args ...interface{}) {
	if verbosity >= level {
		log.Printf(format, args...)
	}
}

// newRuntime wires an interpreter, its builtins module, and a loader with
// every internal/stdlib package registered (spec §4.6's "fixed roster of
// internally linked modules"). Every kvm subcommand that executes code
// shares this one assembly point.
func newRuntime() (*vm.Interpreter, *module.Loader) {
	builtinsMod := object.NewModule("__builtins__", "<builtins>")
	builtins.Install(builtinsMod)
	interp := vm.NewInterpreter(builtinsMod)
	loader := module.NewLoader(interp)

	loader.RegisterBuiltin("db", db.Module())
	loader.RegisterBuiltin("net", net.Module(interp))
	loader.RegisterBuiltin("io", iostd.Module())
	loader.RegisterBuiltin("os", osstd.Module())
	loader.RegisterBuiltin("fmtutil", fmtutil.Module())
	loader.RegisterBuiltin("uid", uid.Module())
	loader.RegisterBuiltin("thread", thread.Module(interp))

	builtinsMod.Set("__import__", loader.Builtin())
	return interp, loader
}

// compileProgram lexes, parses, and compiles one full source unit, used by
// `run` and `exec` (-c).
func compileProgram(path, source string) (*object.Code, error) {
	source = lexer.StripBOM(source)
	scanner := lexer.NewScanner(path, source)
	toks, err := scanner.Scan()
	if err != nil {
		return nil, err
	}
	root, err := parser.New(path, source, toks).ParseProgram()
	if err != nil {
		return nil, err
	}
	return compiler.Compile(path, source, root)
}

// compileExpression lexes, parses, and compiles a single expression, used
// by `eval` (-e).
func compileExpression(path, source string) (*object.Code, error) {
	source = lexer.StripBOM(source)
	scanner := lexer.NewScanner(path, source)
	toks, err := scanner.Scan()
	if err != nil {
		return nil, err
	}
	expr, err := parser.New(path, source, toks).ParseExpression()
	if err != nil {
		return nil, err
	}
	return compiler.CompileExpr(path, source, expr)
}

// runModuleSource compiles and runs one top-level program under mod's
// name, rendering an uncaught exception's traceback to stderr. The
// returned int is the process exit code spec §6 specifies: 0 success, 1
// uncaught exception.
func runModuleSource(interp *vm.Interpreter, modName, path, source string, expr bool) (object.Object, int) {
	var code *object.Code
	var err error
	if expr {
		code, err = compileExpression(path, source)
	} else {
		code, err = compileProgram(path, source)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, 1
	}
	mod := object.NewModule(modName, path)
	result, exc := interp.RunModule(mod, code)
	if exc != nil {
		fmt.Fprint(os.Stderr, exc.Render())
		return nil, 1
	}
	return result, 0
}

func readAllStdin() (string, error) {
	b, err := io.ReadAll(os.Stdin)
	return string(b), err
}

// preimport runs the -i NAME pre-imports spec §6 describes ("-i NAME to
// import a module before running"), in order, before the main unit runs.
func preimport(loader *module.Loader, names []string) int {
	for _, name := range names {
		if _, exc := loader.Import(name); exc != nil {
			if e, ok := exc.(*object.Exception); ok {
				fmt.Fprint(os.Stderr, e.Render())
			} else {
				fmt.Fprintln(os.Stderr, exc)
			}
			return 1
		}
	}
	return 0
}
