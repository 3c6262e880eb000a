package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkLineTableRunLength(t *testing.T) {
	c := &Chunk{}
	c.Write(byte(Nil), 1)
	c.Write(byte(Nil), 1)
	c.Write(byte(Pop), 2)
	c.Write(byte(Pop), 2)
	c.Write(byte(Pop), 2)

	assert.Equal(t, 1, c.Line(0))
	assert.Equal(t, 1, c.Line(1))
	assert.Equal(t, 2, c.Line(2))
	assert.Equal(t, 2, c.Line(4))
}

func TestChunkConstantLongSwitchesForm(t *testing.T) {
	c := &Chunk{}
	for i := 0; i < 300; i++ {
		c.AddConstant(float64(i))
	}
	c.WriteConstant(254, 1)
	assert.Equal(t, Constant, Opcode(c.Code[0]))

	c2 := &Chunk{}
	for i := 0; i < 300; i++ {
		c2.AddConstant(float64(i))
	}
	c2.WriteConstant(299, 1)
	assert.Equal(t, ConstantLong, Opcode(c2.Code[0]))
	assert.Equal(t, 299, readUint24(c2.Code[1:]))
}

func TestChunkJumpPatchRoundTrip(t *testing.T) {
	c := &Chunk{}
	c.Write(byte(True), 1)
	at := c.WriteJump(JumpIfFalse, 1)
	c.Write(byte(Pop), 1)
	c.Write(byte(Pop), 1)
	require.True(t, c.PatchJump(at))

	jump := readUint16(c.Code[at:])
	assert.Equal(t, len(c.Code)-at-2, jump)
}

func TestChunkJumpOverflowReportsFalse(t *testing.T) {
	c := &Chunk{}
	at := c.WriteJump(Jump, 1)
	c.Code = append(c.Code, make([]byte, 0x10000)...)
	assert.False(t, c.PatchJump(at))
}

func TestChunkLoopRoundTrip(t *testing.T) {
	c := &Chunk{}
	loopStart := len(c.Code)
	c.Write(byte(Nil), 1)
	c.Write(byte(Pop), 1)
	require.True(t, c.WriteLoop(loopStart, 1))

	opIdx := len(c.Code) - 3
	assert.Equal(t, Loop, Opcode(c.Code[opIdx]))
	offset := readUint16(c.Code[opIdx+1:])
	dest := opIdx + 3 - offset
	assert.Equal(t, loopStart, dest)
}

func TestDisassembleProducesReadableOutput(t *testing.T) {
	c := &Chunk{}
	c.WriteConstant(c.AddConstant(float64(1)), 1)
	c.Write(byte(Print), 1)
	c.Write(byte(Nil), 2)
	c.Write(byte(Return), 2)

	var buf bytes.Buffer
	Disassemble(&buf, c, "test")
	out := buf.String()
	assert.Contains(t, out, "== test ==")
	assert.Contains(t, out, "CONSTANT")
	assert.Contains(t, out, "PRINT")
	assert.Contains(t, out, "RETURN")
}
