package compiler

import "fmt"

// Opcode is a single bytecode instruction tag. Operand width is fixed per
// opcode: none, a single byte (an index into a table of at most 256
// entries), three bytes big-endian (a 24-bit index, used by the "Long"
// variants once a function's constant or global pool exceeds 255 entries),
// two bytes big-endian (a jump offset or a local slot), two single bytes
// (Invoke, SuperInvoke: name index and argument count), or a variable tail
// (Closure).
type Opcode uint8

//nolint:revive
const (
	Constant     Opcode = iota // idx8            push constant
	ConstantLong               // idx24           push constant
	Nil                        // -               push nil
	True                       // -               push true
	False                      // -               push false
	Pop                        // -               pop
	GetLocal                   // slot16          push frame slot
	SetLocal                   // slot16          write frame slot
	GetGlobal                  // idx8            push global by name
	GetGlobalLong              // idx24           push global by name
	SetGlobal                  // idx8            write global by name
	SetGlobalLong              // idx24           write global by name
	DefineGlobal               // idx8            define global from top, pop
	DefineGlobalLong           // idx24           define global from top, pop
	GetUpvalue                 // idx8            push closure upvalue
	SetUpvalue                 // idx8            write closure upvalue
	GetProperty                // idx8            instance field or bound method
	SetProperty                // idx8            write instance field
	GetSuper                   // idx8            bound method from superclass
	Equal                      // -               pop 2, push bool
	Greater                    // -               pop 2, push bool
	Less                       // -               pop 2, push bool
	Add                        // -               pop 2, push number or concatenated string
	Subtract                   // -               pop 2, push number
	Multiply                   // -               pop 2, push number
	Divide                     // -               pop 2, push number
	BitwiseAnd                 // -               pop 2, push number
	BitwiseOr                  // -               pop 2, push number
	Not                        // -               pop 1, push bool
	Negate                     // -               pop 1, push number
	Print                      // -               pop and print
	Jump                       // off16           forward jump
	JumpIfFalse                // off16           forward jump, leaves condition on stack
	Loop                       // off16           backward jump
	Call                       // argc8           invoke callee argc slots below top
	Invoke                     // idx8 argc8      method-call fast path
	SuperInvoke                // idx8 argc8      superclass method-call fast path
	Closure                    // idx8 [loc8 idx8]* build closure, capture upvalues
	CloseUpvalue               // -               close the topmost stack slot and pop
	Return                     // -               return from the current frame
	Class                      // idx8            push new class
	Inherit                    // -               copy methods from superclass into subclass
	Method                     // idx8            bind method into class
	Initializer                // idx8            bind initializer into class

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	Constant:         "CONSTANT",
	ConstantLong:     "CONSTANT_LONG",
	Nil:              "NIL",
	True:             "TRUE",
	False:            "FALSE",
	Pop:              "POP",
	GetLocal:         "GET_LOCAL",
	SetLocal:         "SET_LOCAL",
	GetGlobal:        "GET_GLOBAL",
	GetGlobalLong:    "GET_GLOBAL_LONG",
	SetGlobal:        "SET_GLOBAL",
	SetGlobalLong:    "SET_GLOBAL_LONG",
	DefineGlobal:     "DEFINE_GLOBAL",
	DefineGlobalLong: "DEFINE_GLOBAL_LONG",
	GetUpvalue:       "GET_UPVALUE",
	SetUpvalue:       "SET_UPVALUE",
	GetProperty:      "GET_PROPERTY",
	SetProperty:      "SET_PROPERTY",
	GetSuper:         "GET_SUPER",
	Equal:            "EQUAL",
	Greater:          "GREATER",
	Less:             "LESS",
	Add:              "ADD",
	Subtract:         "SUBTRACT",
	Multiply:         "MULTIPLY",
	Divide:           "DIVIDE",
	BitwiseAnd:       "BITWISE_AND",
	BitwiseOr:        "BITWISE_OR",
	Not:              "NOT",
	Negate:           "NEGATE",
	Print:            "PRINT",
	Jump:             "JUMP",
	JumpIfFalse:      "JUMP_IF_FALSE",
	Loop:             "LOOP",
	Call:             "CALL",
	Invoke:           "INVOKE",
	SuperInvoke:      "SUPER_INVOKE",
	Closure:          "CLOSURE",
	CloseUpvalue:     "CLOSE_UPVALUE",
	Return:           "RETURN",
	Class:            "CLASS",
	Inherit:          "INHERIT",
	Method:           "METHOD",
	Initializer:      "INITIALIZER",
}

func (op Opcode) String() string {
	if op < numOpcodes {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal opcode (%d)", op)
}

// operandKind classifies how an opcode's operand bytes are laid out, for use
// by both the compiler's jump-patching logic and the disassembler.
type operandKind uint8

const (
	operandNone    operandKind = iota
	operandByte                // single index/slot/count byte
	operandLong                // 24-bit big-endian index
	operandJump                // 16-bit big-endian jump offset
	operandInvoke              // idx8 + argc8
	operandClosure             // idx8 followed by 2*n upvalue descriptor bytes
	operandSlot                // 16-bit big-endian local slot (supports up to 1024 locals)
)

var opcodeOperands = [numOpcodes]operandKind{
	Constant:         operandByte,
	ConstantLong:     operandLong,
	GetLocal:         operandSlot,
	SetLocal:         operandSlot,
	GetGlobal:        operandByte,
	GetGlobalLong:    operandLong,
	SetGlobal:        operandByte,
	SetGlobalLong:    operandLong,
	DefineGlobal:     operandByte,
	DefineGlobalLong: operandLong,
	GetUpvalue:       operandByte,
	SetUpvalue:       operandByte,
	GetProperty:      operandByte,
	SetProperty:      operandByte,
	GetSuper:         operandByte,
	Jump:             operandJump,
	JumpIfFalse:      operandJump,
	Loop:             operandJump,
	Call:             operandByte,
	Invoke:           operandInvoke,
	SuperInvoke:      operandInvoke,
	Closure:          operandClosure,
	Class:            operandByte,
	Method:           operandByte,
	Initializer:      operandByte,
}
