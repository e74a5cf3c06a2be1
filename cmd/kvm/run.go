package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"kvm/internal/buildutil"
	"kvm/internal/object"
	"kvm/internal/vm"
)

// runCmd is spec §6's file-argument mode: a trailing positional names the
// source file to execute (`-` reads it from stdin).
type runCmd struct {
	imports stringList
	verbose bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "execute a kvm source file" }
func (*runCmd) Usage() string {
	return "run [-i NAME ...] [-v] <file|->\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.imports, "i", "import NAME before running (repeatable)")
	f.BoolVar(&c.verbose, "v", false, "increase logger verbosity")
}

func (c *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.verbose {
		verbosity++
	}
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "run: expected exactly one file argument (or -)")
		return subcommands.ExitUsageError
	}

	interp, loader := newRuntime()
	if code := preimport(loader, c.imports); code != 0 {
		return subcommands.ExitFailure
	}

	arg := f.Arg(0)
	if strings.HasSuffix(arg, ".kvmc") {
		return runCompiled(interp, arg)
	}

	var path, source string
	var err error
	if arg == "-" {
		path = "<stdin>"
		source, err = readAllStdin()
	} else {
		path = arg
		var b []byte
		b, err = os.ReadFile(arg)
		source = string(b)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	_, exitCode := runModuleSource(interp, "__main__", path, source, false)
	if exitCode != 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// runCompiled loads a `kvm build`-produced .kvmc file and runs it
// directly, skipping lex/parse/compile.
func runCompiled(interp *vm.Interpreter, path string) subcommands.ExitStatus {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer f.Close()

	code, err := buildutil.Deserialize(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	mod := object.NewModule("__main__", path)
	if _, exc := interp.RunModule(mod, code); exc != nil {
		fmt.Fprint(os.Stderr, exc.Render())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// stringList implements flag.Value so -i can be repeated.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
