package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&replCmd{}, "")
	subcommands.Register(&evalCmd{}, "")
	subcommands.Register(&execCmd{}, "")
	subcommands.Register(&importCmd{}, "")
	subcommands.Register(&buildCmd{}, "")

	flag.Parse()

	// Spec §6: "With none of these, enters the REPL" — no subcommand at
	// all falls straight into repl rather than printing usage.
	if flag.NArg() == 0 {
		os.Exit(int((&replCmd{}).Execute(context.Background(), flag.CommandLine)))
	}

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
