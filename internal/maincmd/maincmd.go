// Package maincmd implements the loxvm command-line tool: a REPL, a file
// runner, and a couple of compiler-debugging subcommands, all driven by
// github.com/mna/mainer for flag parsing and signal-aware cancellation.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "loxvm"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<command>] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<command>] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and virtual machine for the loxvm scripting language.

With no arguments, starts an interactive REPL. With a single path argument
that is not one of the commands below, compiles and runs that file.

The <command> can be one of:
       tokenize <path>           Print the token stream for a source file.
       disassemble <path>        Compile a source file and print its
                                 bytecode disassembly, without running it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --trace                   Log every instruction the VM executes.
`, binName)
)

// Cmd holds the parsed flags and dispatches to the right subcommand. It is
// the mainer.Cmd implementation for the loxvm binary.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Trace   bool `flag:"trace"`

	args    []string
	cmdArgs []string
	cmdFn   func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

// Validate resolves c.args into either a named subcommand (tokenize,
// disassemble), a bare script path to run, or no path at all (REPL).
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		c.cmdFn, c.cmdArgs = c.repl, nil
		return nil
	}

	if fn, ok := buildCmds(c)[c.args[0]]; ok {
		if len(c.args[1:]) == 0 {
			return fmt.Errorf("%s: at least one file must be provided", c.args[0])
		}
		c.cmdFn, c.cmdArgs = fn, c.args[1:]
		return nil
	}

	if len(c.args) > 1 {
		return errors.New("too many arguments: expected a single script path")
	}
	c.cmdFn, c.cmdArgs = c.runFile, c.args
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.cmdArgs); err != nil {
		if ec, ok := err.(exitCodeErr); ok {
			return mainer.ExitCode(ec)
		}
		return mainer.Failure
	}
	return mainer.Success
}

// buildCmds reflects over v's exported methods and returns the ones shaped
// like a subcommand handler, keyed by lower-cased method name. Mirrors the
// teacher's dispatch mechanism so new debug subcommands need only a new
// method, no registration boilerplate.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
