package vm

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dolthub/swiss"
	"github.com/mtkrol/loxvm/lang/intern"
)

const maxFrames = 64

// Thread is one instance of the virtual machine: its value stack, call
// frames, open upvalue list, and the global variable table, plus the I/O
// and execution-limit knobs a host embedding the VM may want to configure.
type Thread struct {
	// Stdout is where the Print instruction and native functions that write
	// write to. Defaults to os.Stdout.
	Stdout io.Writer

	// Trace, when true, logs each instruction executed (its disassembly:
	// offset, line, opcode and operands) to Stdout before it is dispatched.
	// The stack contents are not printed.
	Trace bool

	// MaxSteps caps the number of instructions a single RunProgram may
	// execute before the thread is cancelled. A value <= 0 means no limit.
	MaxSteps int

	pool    *intern.Pool
	globals *swiss.Map[string, Value]

	stack        []Value
	frames       []callFrame
	openUpvalues []*Upvalue // kept sorted ascending by stack index

	steps uint64
	ctx   context.Context
}

// NewThread returns a ready-to-use Thread backed by pool for string interning
// and native-function string allocation.
func NewThread(pool *intern.Pool) *Thread {
	th := &Thread{
		pool:    pool,
		globals: swiss.NewMap[string, Value](64),
		stack:   make([]Value, 0, 256),
	}
	registerNatives(th)
	return th
}

func (th *Thread) init() {
	if th.Stdout == nil {
		th.Stdout = os.Stdout
	}
	if th.ctx == nil {
		th.ctx = context.Background()
	}
}

func (th *Thread) push(v Value) { th.stack = append(th.stack, v) }

func (th *Thread) pop() Value {
	n := len(th.stack) - 1
	v := th.stack[n]
	th.stack[n] = nil
	th.stack = th.stack[:n]
	return v
}

func (th *Thread) peek(dist int) Value { return th.stack[len(th.stack)-1-dist] }

// RuntimeError is a VM error carrying the call-stack trace active at the
// point the error was raised, innermost frame first.
type RuntimeError struct {
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string { return e.Message }

// runtimeError builds a RuntimeError from the current call-frame stack and
// clears the thread's stack and frames, per the spec's unwind-on-error
// behavior.
func (th *Thread) runtimeError(format string, args ...any) *RuntimeError {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := len(th.frames) - 1; i >= 0; i-- {
		fr := th.frames[i]
		chunk := fr.closure.Fn.Proto.Chunk
		line := chunk.Line(fr.ip - 1)
		err.Trace = append(err.Trace, fmt.Sprintf("[line %d in %s]", line, fr.closure.Fn.Name()))
	}
	th.stack = th.stack[:0]
	th.frames = th.frames[:0]
	th.openUpvalues = nil
	return err
}

// DefineGlobal registers a native-side binding, for use by native-function
// registration (clock, random, ...) at thread construction time.
func (th *Thread) DefineGlobal(name string, v Value) {
	th.globals.Put(th.pool.Intern(name).Go(), v)
}

// Global looks up a global variable by name, for use by embedders and tests
// that need to inspect state a script left behind.
func (th *Thread) Global(name string) (Value, bool) {
	return th.globals.Get(name)
}
