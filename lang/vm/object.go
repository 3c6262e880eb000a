package vm

import (
	"fmt"

	"github.com/mtkrol/loxvm/lang/compiler"
	"github.com/mtkrol/loxvm/lang/intern"
)

// Function is the immutable runtime wrapper around a compiled Proto: its
// name, arity, and bytecode. A Function is never called directly — Closure
// (built by the Closure instruction) is the callable value.
type Function struct {
	Proto *compiler.Proto
}

func (f *Function) String() string { return f.Proto.String() }
func (f *Function) Type() string   { return "function" }
func (f *Function) Name() string {
	if f.Proto.Name == "" {
		return "script"
	}
	return f.Proto.Name
}

// Upvalue is a closure's captured-variable cell. While open it is identified
// by an index into its owning Thread's value stack (a plain *Value pointer
// would dangle across a stack reallocation, since the stack is a growable
// slice, not a fixed C-style array); Close copies that slot's current value
// into its own private storage so the cell keeps working after the frame
// that created it returns and its stack slot is reused.
type Upvalue struct {
	th     *Thread
	index  int // valid while isOpen
	closed Value
	isOpen bool
}

func newOpenUpvalue(th *Thread, index int) *Upvalue {
	return &Upvalue{th: th, index: index, isOpen: true}
}

func (u *Upvalue) get() Value {
	if u.isOpen {
		return u.th.stack[u.index]
	}
	return u.closed
}

func (u *Upvalue) set(v Value) {
	if u.isOpen {
		u.th.stack[u.index] = v
		return
	}
	u.closed = v
}

func (u *Upvalue) close() {
	u.closed = u.th.stack[u.index]
	u.isOpen = false
}

// Closure pairs a Function with the upvalue cells it captured from
// enclosing scopes at the time the Closure instruction ran.
type Closure struct {
	Fn       *Function
	Upvalues []*Upvalue
}

func (c *Closure) String() string { return c.Fn.String() }
func (c *Closure) Type() string   { return "closure" }
func (c *Closure) Name() string   { return c.Fn.Name() }

// NativeFunction wraps a host-provided function exposed to scripts, such as
// clock or random.
type NativeFunction struct {
	NameStr string
	Arity   int // -1 means variadic / not arity-checked
	Fn      func(th *Thread, args []Value) (Value, error)
}

func (n *NativeFunction) String() string { return fmt.Sprintf("<native fn %s>", n.NameStr) }
func (n *NativeFunction) Type() string   { return "native function" }
func (n *NativeFunction) Name() string   { return n.NameStr }

// Class is a runtime class value: a name and its own method table. Methods
// inherited from a superclass are copied in by the Inherit instruction, so
// method lookup at a call site never has to walk a superclass chain.
type Class struct {
	Name        string
	Methods     map[string]*Closure
	Initializer *Closure // nil if the class defines no init()
}

func newClass(name string) *Class {
	return &Class{Name: name, Methods: map[string]*Closure{}}
}

func (c *Class) String() string { return fmt.Sprintf("<class %s>", c.Name) }
func (c *Class) Type() string   { return "class" }

// Instance is a live object: a reference to its class and its own field
// table (fields are created lazily by the first assignment, per SetProperty).
type Instance struct {
	Class  *Class
	Fields map[string]Value
}

func newInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: map[string]Value{}}
}

func (i *Instance) String() string { return fmt.Sprintf("<%s instance>", i.Class.Name) }
func (i *Instance) Type() string   { return "instance" }

// BoundMethod is the value produced by reading a method off an instance: the
// receiver travels with the method so a later call need not re-resolve it.
type BoundMethod struct {
	Receiver *Instance
	Method   *Closure
}

func (b *BoundMethod) String() string { return b.Method.String() }
func (b *BoundMethod) Type() string   { return "bound method" }
func (b *BoundMethod) Name() string   { return b.Method.Name() }

var _ Value = (*intern.String)(nil)
