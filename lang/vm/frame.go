package vm

// callFrame records one active call: the closure being executed, its
// instruction pointer, and the base index into the VM's single shared value
// stack where this call's slot 0 (receiver or reserved sentinel) lives.
// Locals are addressed as stack[base+slot]; the operand stack for this call
// is simply everything above base+proto.FrameSize-ish — in practice
// everything above the last declared local, which grows and shrinks as
// expressions push and pop.
type callFrame struct {
	closure *Closure
	ip      int
	base    int
}
