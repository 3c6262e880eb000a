// Package vm implements the stack-based bytecode virtual machine: runtime
// value representations, call frames, and the fetch-decode-execute loop
// that runs a compiler.Proto.
package vm

// Value is the interface implemented by every runtime value the machine
// manipulates.
type Value interface {
	String() string
	Type() string
}

// Bool is the boolean Value.
type Bool bool

const (
	False = Bool(false)
	True  = Bool(true)
)

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Type() string { return "bool" }

// NilType is the type of nil. Its only legal value is Nil.
type NilType byte

const Nil = NilType(0)

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }

// Truth reports whether v is truthy: only Nil and Bool(false) are falsey,
// every other value (including Number(0) and the empty string) is truthy.
func Truth(v Value) bool {
	switch v := v.(type) {
	case NilType:
		return false
	case Bool:
		return bool(v)
	default:
		return true
	}
}

// Equal reports whether x and y are equal under the language's equality
// rules: same variant and componentwise equal. Interned strings and every
// other reference type compare by identity, which is exactly Go's == for
// the pointer types (*intern.String, *Closure, *Instance, ...) used below.
func Equal(x, y Value) bool {
	switch x := x.(type) {
	case Number:
		y, ok := y.(Number)
		return ok && x == y
	case Bool:
		y, ok := y.(Bool)
		return ok && x == y
	case NilType:
		_, ok := y.(NilType)
		return ok
	default:
		return x == y
	}
}
