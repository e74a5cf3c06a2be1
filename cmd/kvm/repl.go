package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"kvm/internal/repl"
)

// replCmd is spec §6's no-argument default: enter the interactive REPL.
type replCmd struct {
	imports stringList
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "start the interactive REPL" }
func (*replCmd) Usage() string    { return "repl [-i NAME ...]\n" }
func (c *replCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.imports, "i", "import NAME before starting (repeatable)")
}

func (c *replCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	interp, loader := newRuntime()
	if code := repl.Run(interp, loader, c.imports); code != 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
