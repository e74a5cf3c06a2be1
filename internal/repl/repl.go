// Package repl implements spec §6's interactive mode (no CLI arguments,
// or a trailing `-`): read one unit of source, compile it, run it against
// a persistent module so earlier bindings stay visible, print the
// result's repr. Grounded on the teacher's internal/repl.Start
// (scan-line -> lex -> parse -> compile -> run loop) with the line
// source upgraded from bufio.Scanner to github.com/chzyer/readline per
// SPEC_FULL.md §2 (history, multi-line paren continuation, Ctrl-C/Ctrl-D).
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"kvm/internal/compiler"
	"kvm/internal/lexer"
	"kvm/internal/module"
	"kvm/internal/object"
	"kvm/internal/parser"
	"kvm/internal/vm"
)

// Run drives the interactive loop until Ctrl-D (io.EOF). preimports are
// module names loaded once before the first line (spec §6 "-i NAME to
// import a module before running").
func Run(interp *vm.Interpreter, loader *module.Loader, preimports []string) int {
	for _, name := range preimports {
		if _, exc := loader.Import(name); exc != nil {
			printExc(exc)
		}
	}

	mod := object.NewModule("__main__", "<repl>")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		// No usable tty (e.g. piped stdin in a headless harness): fall
		// back to reading the whole input as one unit.
		fmt.Println("kvm REPL (line editing unavailable) | reading from stdin")
		b, _ := io.ReadAll(os.Stdin)
		evalUnit(interp, mod, string(b))
		return 0
	}
	defer rl.Close()

	fmt.Println("kvm REPL | Ctrl-D to exit")
	for {
		src, ok := readUnit(rl)
		if !ok {
			return 0
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		evalUnit(interp, mod, src)
	}
}

// readUnit reads lines until parens/brackets/braces balance, so a
// multi-line function or block can be entered across several prompts
// (spec §2's "multi-line paren continuation"). Returns ok=false on
// Ctrl-D (io.EOF); Ctrl-C (readline.ErrInterrupt) aborts the current
// partial unit and starts a fresh prompt, matching the usual convention.
func readUnit(rl *readline.Instance) (string, bool) {
	var lines []string
	depth := 0
	rl.SetPrompt(">>> ")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(lines) == 0 {
				rl.SetPrompt(">>> ")
				continue
			}
			return "", true
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", false
		}
		lines = append(lines, line)
		depth += parenDelta(line)
		if depth <= 0 {
			break
		}
		rl.SetPrompt("... ")
	}
	return strings.Join(lines, "\n"), true
}

func parenDelta(line string) int {
	depth := 0
	inStr := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inStr != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inStr {
				inStr = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inStr = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '#':
			return depth
		}
	}
	return depth
}

// evalUnit compiles src as a whole program first (covers statements,
// imports, assignments); only if parsing that fails does it retry src as a
// bare expression. A line such as `1 + 2` parses as a program, whose
// compiled epilogue returns none, so its value is not printed.
func evalUnit(interp *vm.Interpreter, mod *object.Module, src string) {
	source := lexer.StripBOM(src)
	scanner := lexer.NewScanner("<repl>", source)
	toks, err := scanner.Scan()
	if err != nil {
		fmt.Println(err)
		return
	}

	if root, perr := parser.New("<repl>", source, toks).ParseProgram(); perr == nil {
		code, cerr := compiler.Compile("<repl>", source, root)
		if cerr != nil {
			fmt.Println(cerr)
			return
		}
		runAndPrint(interp, mod, code)
		return
	}

	expr, perr := parser.New("<repl>", source, toks).ParseExpression()
	if perr != nil {
		fmt.Println(perr)
		return
	}
	code, cerr := compiler.CompileExpr("<repl>", source, expr)
	if cerr != nil {
		fmt.Println(cerr)
		return
	}
	runAndPrint(interp, mod, code)
}

func runAndPrint(interp *vm.Interpreter, mod *object.Module, code *object.Code) {
	result, exc := interp.RunModule(mod, code)
	if exc != nil {
		printExc(exc)
		return
	}
	if result == nil {
		return
	}
	if _, isNone := result.(*object.None); isNone {
		return
	}
	s, exc2 := object.ReprOf(result, nil)
	if exc2 != nil {
		fmt.Println(exc2)
		return
	}
	fmt.Println(s)
}

func printExc(exc object.Object) {
	if e, ok := exc.(*object.Exception); ok {
		fmt.Print(e.Render())
		return
	}
	fmt.Println(exc)
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return home + "/.kvm_history"
}
