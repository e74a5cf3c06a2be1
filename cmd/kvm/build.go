package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"kvm/internal/buildutil"
)

// buildCmd implements SPEC_FULL.md §2's "build (emit a serialized code
// object)": compile a source file and write out its *object.Code in
// internal/buildutil's binary format, the teacher's "ahead-of-time
// bytecode file" idea (internal/buildutil.BytecodeFile) generalized to
// this tree's constant/code shape.
type buildCmd struct {
	out string
}

func (*buildCmd) Name() string     { return "build" }
func (*buildCmd) Synopsis() string { return "compile a source file to a .kvmc bytecode file" }
func (*buildCmd) Usage() string    { return "build [-o out.kvmc] <file>\n" }

func (c *buildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "output path (default: <file> with .kvmc extension)")
}

func (c *buildCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "build: expected exactly one file argument")
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	code, err := compileProgram(path, string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	out := c.out
	if out == "" {
		out = strings.TrimSuffix(path, ".ks") + ".kvmc"
	}
	w, err := os.Create(out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer w.Close()

	if err := buildutil.Serialize(w, code); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	logPrintf(1, "wrote %s", out)
	return subcommands.ExitSuccess
}
