package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// importCmd is the standalone form of spec §6's `-i NAME`: resolve and
// run each named module's top-level code without any other program to
// run alongside it, useful for checking a module loads cleanly.
type importCmd struct{}

func (*importCmd) Name() string           { return "import" }
func (*importCmd) Synopsis() string       { return "import one or more modules (-i)" }
func (*importCmd) Usage() string          { return "import <name> [name ...]\n" }
func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "import: expected at least one module name")
		return subcommands.ExitUsageError
	}
	_, loader := newRuntime()
	if code := preimport(loader, f.Args()); code != 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
