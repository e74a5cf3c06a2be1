package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"kvm/internal/object"
)

// evalCmd implements spec §6's `-e EXPR`: compile and evaluate one
// expression, printing its repr.
type evalCmd struct {
	imports stringList
}

func (*evalCmd) Name() string     { return "eval" }
func (*evalCmd) Synopsis() string { return "compile and evaluate one expression (-e)" }
func (*evalCmd) Usage() string    { return "eval [-i NAME ...] <expr>\n" }
func (c *evalCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.imports, "i", "import NAME before evaluating (repeatable)")
}

func (c *evalCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "eval: expected exactly one expression argument")
		return subcommands.ExitUsageError
	}
	interp, loader := newRuntime()
	if code := preimport(loader, c.imports); code != 0 {
		return subcommands.ExitFailure
	}
	result, exitCode := runModuleSource(interp, "__main__", "<eval>", f.Arg(0), true)
	if exitCode != 0 {
		return subcommands.ExitFailure
	}
	if result != nil {
		s, exc := object.ReprOf(result, nil)
		if exc != nil {
			fmt.Fprintln(os.Stderr, exc)
			return subcommands.ExitFailure
		}
		fmt.Println(s)
	}
	return subcommands.ExitSuccess
}

// execCmd implements spec §6's `-c CODE`: compile and execute one
// statement (or a whole program's worth of statements).
type execCmd struct {
	imports stringList
}

func (*execCmd) Name() string     { return "exec" }
func (*execCmd) Synopsis() string { return "compile and execute one statement (-c)" }
func (*execCmd) Usage() string    { return "exec [-i NAME ...] <code>\n" }
func (c *execCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.imports, "i", "import NAME before executing (repeatable)")
}

func (c *execCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exec: expected exactly one code argument")
		return subcommands.ExitUsageError
	}
	interp, loader := newRuntime()
	if code := preimport(loader, c.imports); code != 0 {
		return subcommands.ExitFailure
	}
	_, exitCode := runModuleSource(interp, "__main__", "<exec>", f.Arg(0), false)
	if exitCode != 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
