package bytecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisassemble_SimpleAndConstantInstructions(t *testing.T) {
	c := NewChunk()
	idx := c.AddConstant(NumberValue(1.2))
	c.WriteOp(OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(OpReturn, 1)

	out := c.Disassemble("test")
	assert.Contains(t, out, "== test ==")
	assert.Contains(t, out, "OP_CONSTANT")
	assert.Contains(t, out, "1.2")
	assert.Contains(t, out, "OP_RETURN")
}

func TestDisassembleInstruction_JumpShowsTarget(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpJumpIfFalse, 1)
	c.Write(0, 1)
	c.Write(3, 1) // jump 3 bytes forward
	c.WriteOp(OpPop, 1)
	c.WriteOp(OpNil, 1)
	c.WriteOp(OpReturn, 1)

	line, next := c.DisassembleInstruction(0)
	assert.Equal(t, 3, next)
	assert.True(t, strings.Contains(line, "OP_JUMP_IF_FALSE"))
	assert.True(t, strings.Contains(line, "-> 6"))
}

func TestDisassembleInstruction_Local(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpGetLocal, 1)
	c.Write(2, 1)

	line, next := c.DisassembleInstruction(0)
	assert.Equal(t, 2, next)
	assert.Contains(t, line, "OP_GET_LOCAL")
	assert.Contains(t, line, "2")
}
