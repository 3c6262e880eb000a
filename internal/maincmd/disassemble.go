package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mtkrol/loxvm/lang/compiler"
	"github.com/mtkrol/loxvm/lang/intern"
)

// Disassemble implements the "disassemble" subcommand: compile each file and
// print the bytecode listing of its root function and every nested function
// it can reach, without running anything.
func (c *Cmd) Disassemble(ctx context.Context, stdio mainer.Stdio, paths []string) error {
	var failed bool
	for _, path := range paths {
		if err := disassembleFile(stdio, path); err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("disassemble: one or more files failed")
	}
	return nil
}

func disassembleFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	proto, errs := compiler.Compile(string(src), intern.New())
	if len(errs) > 0 {
		compiler.PrintErrors(stdio.Stderr, path, errs)
		return fmt.Errorf("compile failed")
	}
	compiler.Disassemble(stdio.Stdout, proto.Chunk, path)
	return nil
}
