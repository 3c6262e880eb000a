package compiler

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of every instruction in c to
// w, labeled with name. It recurses into any Proto constants so a closure's
// nested function bodies are listed too.
func Disassemble(w io.Writer, c *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)

	var nested []*Proto
	offset := 0
	for offset < len(c.Code) {
		offset = DisassembleInstruction(w, c, offset)
	}
	for _, v := range c.Constants {
		if p, ok := v.(*Proto); ok {
			nested = append(nested, p)
		}
	}
	for _, p := range nested {
		Disassemble(w, p.Chunk, p.Name)
	}
}

// DisassembleInstruction writes the instruction at offset to w and returns
// the offset of the next instruction. Round-tripping DisassembleInstruction
// over a chunk's byte stream recovers the same opcode/operand sequence the
// compiler emitted.
func DisassembleInstruction(w io.Writer, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	line := c.Line(offset)
	if offset > 0 && line == c.Line(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", line)
	}

	op := Opcode(c.Code[offset])
	switch opcodeOperands[op] {
	case operandNone:
		fmt.Fprintln(w, op)
		return offset + 1
	case operandByte:
		slot := c.Code[offset+1]
		fmt.Fprintf(w, "%-16s %4d", op, slot)
		annotateConstant(w, c, op, int(slot))
		fmt.Fprintln(w)
		return offset + 2
	case operandSlot:
		slot := readUint16(c.Code[offset+1:])
		fmt.Fprintf(w, "%-16s %4d\n", op, slot)
		return offset + 3
	case operandLong:
		idx := readUint24(c.Code[offset+1:])
		fmt.Fprintf(w, "%-16s %4d", op, idx)
		annotateConstant(w, c, op, idx)
		fmt.Fprintln(w)
		return offset + 4
	case operandJump:
		jump := readUint16(c.Code[offset+1:])
		dest := offset + 3
		if op == Loop {
			dest = offset + 3 - jump
		} else {
			dest += jump
		}
		fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, dest)
		return offset + 3
	case operandInvoke:
		idx := c.Code[offset+1]
		argc := c.Code[offset+2]
		fmt.Fprintf(w, "%-16s (%d args) %4d", op, argc, idx)
		annotateConstant(w, c, op, int(idx))
		fmt.Fprintln(w)
		return offset + 3
	case operandClosure:
		idx := c.Code[offset+1]
		fmt.Fprintf(w, "%-16s %4d ", op, idx)
		if int(idx) < len(c.Constants) {
			fmt.Fprintf(w, "%v", c.Constants[idx])
		}
		fmt.Fprintln(w)
		next := offset + 2
		if p, ok := c.Constants[idx].(*Proto); ok {
			for i := 0; i < len(p.Upvalues); i++ {
				isLocal, index := c.Code[next], c.Code[next+1]
				kind := "upvalue"
				if isLocal != 0 {
					kind = "local"
				}
				fmt.Fprintf(w, "%04d      |                     %s %d\n", next, kind, index)
				next += 2
			}
		}
		return next
	default:
		fmt.Fprintf(w, "%s\n", op)
		return offset + 1
	}
}

// annotateConstant prints the constant pool value referenced by opcodes whose
// byte operand is a constant-pool index, to make the listing readable.
func annotateConstant(w io.Writer, c *Chunk, op Opcode, idx int) {
	switch op {
	case Constant, GetGlobal, SetGlobal, DefineGlobal,
		GetProperty, SetProperty, GetSuper, Class, Method, Initializer,
		Invoke, SuperInvoke:
		if idx >= 0 && idx < len(c.Constants) {
			fmt.Fprintf(w, " %v", c.Constants[idx])
		}
	}
}
