package vm

import (
	"context"
	"fmt"
	"math"

	"github.com/mtkrol/loxvm/lang/compiler"
	"github.com/mtkrol/loxvm/lang/intern"
	"golang.org/x/exp/slices"
)

func readUint16(b []byte) int { return int(b[0])<<8 | int(b[1]) }
func readUint24(b []byte) int { return int(b[0])<<16 | int(b[1])<<8 | int(b[2]) }

func constValue(c *compiler.Chunk, idx int) Value {
	switch v := c.Constants[idx].(type) {
	case float64:
		return Number(v)
	case *intern.String:
		return v
	default:
		panic(fmt.Sprintf("constant %d is not a pushable value: %T", idx, v))
	}
}

func constName(c *compiler.Chunk, idx int) string {
	s, ok := c.Constants[idx].(*intern.String)
	if !ok {
		panic(fmt.Sprintf("constant %d is not a name: %T", idx, c.Constants[idx]))
	}
	return s.Go()
}

// RunProgram executes top, the compiled top-level script, to completion. It
// returns the value left by the implicit top-level Return (always Nil,
// since `return` at script scope is a compile error) or a *RuntimeError. ctx
// is checked periodically so a signal-cancelled context (see
// mainer.CancelOnSignal) stops a runaway script.
func (th *Thread) RunProgram(ctx context.Context, top *compiler.Proto) (Value, error) {
	th.init()
	th.ctx = ctx
	th.steps = 0
	cl := &Closure{Fn: &Function{Proto: top}}
	th.push(cl)
	if err := th.callClosure(cl, 0); err != nil {
		return nil, err
	}
	return th.run()
}

// ctxCheckInterval bounds how often the VM pays for a context.Err() check;
// checking every instruction would be wasteful for tight loops.
const ctxCheckInterval = 1 << 12

func (th *Thread) run() (Value, error) {
	for {
		if len(th.frames) == 0 {
			return Nil, nil
		}
		fr := &th.frames[len(th.frames)-1]
		chunk := fr.closure.Fn.Proto.Chunk
		code := chunk.Code

		th.steps++
		if th.MaxSteps > 0 && th.steps > uint64(th.MaxSteps) {
			return nil, th.runtimeError("step limit exceeded")
		}
		if th.steps%ctxCheckInterval == 0 {
			if err := th.ctx.Err(); err != nil {
				return nil, th.runtimeError("%s", err)
			}
		}

		if th.Trace {
			compiler.DisassembleInstruction(th.Stdout, chunk, fr.ip)
		}

		op := compiler.Opcode(code[fr.ip])
		fr.ip++

		switch op {
		case compiler.Constant:
			idx := int(code[fr.ip])
			fr.ip++
			th.push(constValue(chunk, idx))
		case compiler.ConstantLong:
			idx := readUint24(code[fr.ip:])
			fr.ip += 3
			th.push(constValue(chunk, idx))

		case compiler.Nil:
			th.push(Nil)
		case compiler.True:
			th.push(True)
		case compiler.False:
			th.push(False)
		case compiler.Pop:
			th.pop()

		case compiler.GetLocal:
			slot := readUint16(code[fr.ip:])
			fr.ip += 2
			th.push(th.stack[fr.base+slot])
		case compiler.SetLocal:
			slot := readUint16(code[fr.ip:])
			fr.ip += 2
			th.stack[fr.base+slot] = th.peek(0)

		case compiler.GetGlobal, compiler.GetGlobalLong:
			idx, n := decodeIdx(op, compiler.GetGlobalLong, code, fr.ip)
			fr.ip += n
			name := constName(chunk, idx)
			v, ok := th.globals.Get(name)
			if !ok {
				return nil, th.runtimeError("undefined variable %q", name)
			}
			th.push(v)
		case compiler.SetGlobal, compiler.SetGlobalLong:
			idx, n := decodeIdx(op, compiler.SetGlobalLong, code, fr.ip)
			fr.ip += n
			name := constName(chunk, idx)
			if _, ok := th.globals.Get(name); !ok {
				return nil, th.runtimeError("undefined variable %q", name)
			}
			th.globals.Put(name, th.peek(0))
		case compiler.DefineGlobal, compiler.DefineGlobalLong:
			idx, n := decodeIdx(op, compiler.DefineGlobalLong, code, fr.ip)
			fr.ip += n
			name := constName(chunk, idx)
			th.globals.Put(name, th.pop())

		case compiler.GetUpvalue:
			idx := int(code[fr.ip])
			fr.ip++
			th.push(fr.closure.Upvalues[idx].get())
		case compiler.SetUpvalue:
			idx := int(code[fr.ip])
			fr.ip++
			fr.closure.Upvalues[idx].set(th.peek(0))

		case compiler.GetProperty:
			idx := int(code[fr.ip])
			fr.ip++
			name := constName(chunk, idx)
			inst, ok := th.peek(0).(*Instance)
			if !ok {
				return nil, th.runtimeError("only instances have properties")
			}
			if v, ok := inst.Fields[name]; ok {
				th.pop()
				th.push(v)
				break
			}
			method, ok := inst.Class.Methods[name]
			if !ok {
				return nil, th.runtimeError("undefined property %q", name)
			}
			th.pop()
			th.push(&BoundMethod{Receiver: inst, Method: method})

		case compiler.SetProperty:
			idx := int(code[fr.ip])
			fr.ip++
			name := constName(chunk, idx)
			inst, ok := th.peek(1).(*Instance)
			if !ok {
				return nil, th.runtimeError("only instances have fields")
			}
			v := th.pop()
			inst.Fields[name] = v
			th.pop()
			th.push(v)

		case compiler.GetSuper:
			idx := int(code[fr.ip])
			fr.ip++
			name := constName(chunk, idx)
			super := th.pop().(*Class)
			inst := th.pop().(*Instance)
			method, ok := super.Methods[name]
			if !ok {
				return nil, th.runtimeError("undefined property %q", name)
			}
			th.push(&BoundMethod{Receiver: inst, Method: method})

		case compiler.Equal:
			b, a := th.pop(), th.pop()
			th.push(Bool(Equal(a, b)))
		case compiler.Greater:
			if err := th.numericBinary(func(a, b Number) Value { return Bool(a.Cmp(b) > 0) }); err != nil {
				return nil, err
			}
		case compiler.Less:
			if err := th.numericBinary(func(a, b Number) Value { return Bool(a.Cmp(b) < 0) }); err != nil {
				return nil, err
			}

		case compiler.Add:
			if err := th.add(); err != nil {
				return nil, err
			}
		case compiler.Subtract:
			if err := th.numericBinary(func(a, b Number) Value { return a - b }); err != nil {
				return nil, err
			}
		case compiler.Multiply:
			if err := th.numericBinary(func(a, b Number) Value { return a * b }); err != nil {
				return nil, err
			}
		case compiler.Divide:
			if err := th.numericBinary(func(a, b Number) Value { return a / b }); err != nil {
				return nil, err
			}
		case compiler.BitwiseAnd:
			if err := th.bitwiseBinary(func(a, b uint64) uint64 { return a & b }); err != nil {
				return nil, err
			}
		case compiler.BitwiseOr:
			if err := th.bitwiseBinary(func(a, b uint64) uint64 { return a | b }); err != nil {
				return nil, err
			}

		case compiler.Not:
			th.push(Bool(!Truth(th.pop())))
		case compiler.Negate:
			n, ok := th.peek(0).(Number)
			if !ok {
				return nil, th.runtimeError("operand must be a number")
			}
			th.pop()
			th.push(-n)

		case compiler.Print:
			fmt.Fprintln(th.Stdout, th.pop().String())

		case compiler.Jump:
			offset := readUint16(code[fr.ip:])
			fr.ip += 2 + offset
		case compiler.JumpIfFalse:
			offset := readUint16(code[fr.ip:])
			fr.ip += 2
			if !Truth(th.peek(0)) {
				fr.ip += offset
			}
		case compiler.Loop:
			offset := readUint16(code[fr.ip:])
			fr.ip += 2 - offset

		case compiler.Call:
			argc := int(code[fr.ip])
			fr.ip++
			if err := th.callValue(argc); err != nil {
				return nil, err
			}
		case compiler.Invoke:
			idx := int(code[fr.ip])
			argc := int(code[fr.ip+1])
			fr.ip += 2
			name := constName(chunk, idx)
			if err := th.invoke(name, argc); err != nil {
				return nil, err
			}
		case compiler.SuperInvoke:
			idx := int(code[fr.ip])
			argc := int(code[fr.ip+1])
			fr.ip += 2
			name := constName(chunk, idx)
			super := th.pop().(*Class)
			if err := th.invokeFromClass(super, name, argc); err != nil {
				return nil, err
			}

		case compiler.Closure:
			idx := int(code[fr.ip])
			fr.ip++
			proto := chunk.Constants[idx].(*compiler.Proto)
			cl := &Closure{Fn: &Function{Proto: proto}, Upvalues: make([]*Upvalue, len(proto.Upvalues))}
			for i, desc := range proto.Upvalues {
				if desc.IsLocal {
					cl.Upvalues[i] = th.captureUpvalue(fr.base + int(desc.Index))
				} else {
					cl.Upvalues[i] = fr.closure.Upvalues[desc.Index]
				}
			}
			fr.ip += 2 * len(proto.Upvalues)
			th.push(cl)

		case compiler.CloseUpvalue:
			th.closeUpvalues(len(th.stack) - 1)
			th.pop()

		case compiler.Return:
			result := th.pop()
			th.closeUpvalues(fr.base)
			base := fr.base
			th.frames = th.frames[:len(th.frames)-1]
			th.stack = th.stack[:base]
			if len(th.frames) == 0 {
				return result, nil
			}
			th.push(result)

		case compiler.Class:
			idx := int(code[fr.ip])
			fr.ip++
			th.push(newClass(constName(chunk, idx)))

		case compiler.Inherit:
			sub, ok := th.peek(0).(*Class)
			if !ok {
				return nil, th.runtimeError("inherit target must be a class")
			}
			super, ok := th.peek(1).(*Class)
			if !ok {
				return nil, th.runtimeError("superclass must be a class")
			}
			for name, m := range super.Methods {
				sub.Methods[name] = m
			}
			sub.Initializer = super.Initializer
			th.pop()

		case compiler.Method:
			idx := int(code[fr.ip])
			fr.ip++
			name := constName(chunk, idx)
			method := th.pop().(*Closure)
			class := th.peek(0).(*Class)
			class.Methods[name] = method

		case compiler.Initializer:
			idx := int(code[fr.ip])
			fr.ip++
			name := constName(chunk, idx)
			method := th.pop().(*Closure)
			class := th.peek(0).(*Class)
			class.Methods[name] = method
			class.Initializer = method

		default:
			return nil, th.runtimeError("illegal opcode %s", op)
		}
	}
}

// decodeIdx reads the operand of either the short (one byte) or long
// (three byte) form of a global opcode and returns the index plus the
// number of operand bytes consumed.
func decodeIdx(op, longOp compiler.Opcode, code []byte, ip int) (idx, n int) {
	if op == longOp {
		return readUint24(code[ip:]), 3
	}
	return int(code[ip]), 1
}

func (th *Thread) numericBinary(f func(a, b Number) Value) error {
	b, bOk := th.peek(0).(Number)
	a, aOk := th.peek(1).(Number)
	if !aOk || !bOk {
		return th.runtimeError("operands must be numbers")
	}
	th.pop()
	th.pop()
	th.push(f(a, b))
	return nil
}

func (th *Thread) bitwiseBinary(f func(a, b uint64) uint64) error {
	b, bOk := th.peek(0).(Number)
	a, aOk := th.peek(1).(Number)
	if !aOk || !bOk {
		return th.runtimeError("operands must be numbers")
	}
	th.pop()
	th.pop()
	th.push(Number(f(roundToU64(float64(a)), roundToU64(float64(b)))))
	return nil
}

func roundToU64(f float64) uint64 {
	if f < 0 {
		f = -f
	}
	return uint64(math.Round(f))
}

func (th *Thread) add() error {
	b, c := th.peek(0), th.peek(1)
	if bn, ok := b.(Number); ok {
		if cn, ok := c.(Number); ok {
			th.pop()
			th.pop()
			th.push(cn + bn)
			return nil
		}
	}
	if bs, ok := b.(*intern.String); ok {
		if cs, ok := c.(*intern.String); ok {
			th.pop()
			th.pop()
			th.push(th.pool.Intern(cs.Go() + bs.Go()))
			return nil
		}
	}
	return th.runtimeError("operands must be two numbers or two strings")
}

// captureUpvalue returns the open upvalue for the given absolute stack
// index, creating and inserting one (th.openUpvalues is kept sorted
// ascending by index via a binary search) if none exists yet.
func (th *Thread) captureUpvalue(index int) *Upvalue {
	i, found := slices.BinarySearchFunc(th.openUpvalues, index, func(u *Upvalue, idx int) int {
		return u.index - idx
	})
	if found {
		return th.openUpvalues[i]
	}
	created := newOpenUpvalue(th, index)
	th.openUpvalues = slices.Insert(th.openUpvalues, i, created)
	return created
}

// closeUpvalues closes every open upvalue at or above boundary, copying each
// one's current stack value into its own private storage.
func (th *Thread) closeUpvalues(boundary int) {
	i, _ := slices.BinarySearchFunc(th.openUpvalues, boundary, func(u *Upvalue, idx int) int {
		return u.index - idx
	})
	for _, u := range th.openUpvalues[i:] {
		u.close()
	}
	th.openUpvalues = th.openUpvalues[:i]
}

func (th *Thread) callValue(argc int) error {
	callee := th.peek(argc)
	switch c := callee.(type) {
	case *Closure:
		return th.callClosure(c, argc)
	case *BoundMethod:
		base := len(th.stack) - argc - 1
		th.stack[base] = c.Receiver
		return th.callClosure(c.Method, argc)
	case *Class:
		base := len(th.stack) - argc - 1
		inst := newInstance(c)
		th.stack[base] = inst
		if c.Initializer != nil {
			return th.callClosure(c.Initializer, argc)
		}
		if argc != 0 {
			return th.runtimeError("expected 0 arguments but got %d", argc)
		}
		return nil
	case *NativeFunction:
		if c.Arity >= 0 && argc != c.Arity {
			return th.runtimeError("expected %d arguments but got %d", c.Arity, argc)
		}
		args := append([]Value(nil), th.stack[len(th.stack)-argc:]...)
		result, err := c.Fn(th, args)
		if err != nil {
			// A native that raised its error through th.runtimeError already
			// captured the trace (and cleared the frames); keep that one.
			if rerr, ok := err.(*RuntimeError); ok {
				return rerr
			}
			return th.runtimeError("%s", err)
		}
		th.stack = th.stack[:len(th.stack)-argc-1]
		th.push(result)
		return nil
	default:
		return th.runtimeError("%s value is not callable", callee.Type())
	}
}

func (th *Thread) callClosure(cl *Closure, argc int) error {
	if argc != cl.Fn.Proto.Arity {
		return th.runtimeError("expected %d arguments but got %d", cl.Fn.Proto.Arity, argc)
	}
	if len(th.frames) >= maxFrames {
		return th.runtimeError("stack overflow")
	}
	base := len(th.stack) - argc - 1
	th.frames = append(th.frames, callFrame{closure: cl, ip: 0, base: base})
	return nil
}

// invoke implements the Invoke fast path: instance.method(args) without
// materializing an intermediate BoundMethod.
func (th *Thread) invoke(name string, argc int) error {
	inst, ok := th.peek(argc).(*Instance)
	if !ok {
		return th.runtimeError("only instances have methods")
	}
	if v, ok := inst.Fields[name]; ok {
		base := len(th.stack) - argc - 1
		th.stack[base] = v
		return th.callValue(argc)
	}
	return th.invokeFromClass(inst.Class, name, argc)
}

func (th *Thread) invokeFromClass(class *Class, name string, argc int) error {
	method, ok := class.Methods[name]
	if !ok {
		return th.runtimeError("undefined property %q", name)
	}
	return th.callClosure(method, argc)
}
