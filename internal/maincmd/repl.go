package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/mainer"
	"github.com/mtkrol/loxvm/lang/compiler"
	"github.com/mtkrol/loxvm/lang/intern"
	"github.com/mtkrol/loxvm/lang/vm"
)

// repl reads one line at a time from stdin, compiling and running each as
// its own top-level script. Successive lines share global state (the Thread
// and its intern pool persist across lines) but not local state, since each
// line is its own fresh compile-and-call. A blank line or EOF ends the
// session cleanly with exit code 0, whether or not a prior line errored.
func (c *Cmd) repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	pool := intern.New()
	th := vm.NewThread(pool)
	th.Stdout = stdio.Stdout
	th.Trace = c.Trace

	scan := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scan.Scan() {
			fmt.Fprintln(stdio.Stdout)
			return nil
		}
		line := scan.Text()
		if line == "" {
			return nil
		}

		proto, errs := compiler.Compile(line, pool)
		if len(errs) > 0 {
			compiler.PrintErrors(stdio.Stderr, "repl", errs)
			continue
		}
		if _, err := th.RunProgram(ctx, proto); err != nil {
			printRuntimeError(stdio, err)
		}
	}
}
