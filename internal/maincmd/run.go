package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mtkrol/loxvm/lang/compiler"
	"github.com/mtkrol/loxvm/lang/intern"
	"github.com/mtkrol/loxvm/lang/vm"
)

// Exit codes match spec.md §6: a compile error exits 65, a runtime error
// exits 70, success exits 0.
const (
	exitDataErr     = 65
	exitSoftwareErr = 70
)

func (c *Cmd) runFile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	pool := intern.New()
	proto, errs := compiler.Compile(string(src), pool)
	if len(errs) > 0 {
		compiler.PrintErrors(stdio.Stderr, path, errs)
		return exitCodeErr(exitDataErr)
	}

	th := vm.NewThread(pool)
	th.Stdout = stdio.Stdout
	th.Trace = c.Trace
	if _, err := th.RunProgram(ctx, proto); err != nil {
		printRuntimeError(stdio, err)
		return exitCodeErr(exitSoftwareErr)
	}
	return nil
}

// exitCodeErr carries a process exit code, letting a higher layer translate
// it without repeating the details of what went wrong (already printed).
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func printRuntimeError(stdio mainer.Stdio, err error) {
	fmt.Fprintf(stdio.Stderr, "%s\n", err)
	var rerr *vm.RuntimeError
	if e, ok := err.(*vm.RuntimeError); ok {
		rerr = e
	}
	if rerr == nil {
		return
	}
	for _, line := range rerr.Trace {
		fmt.Fprintf(stdio.Stderr, "%s\n", line)
	}
}
