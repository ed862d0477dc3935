package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders every instruction in c as a human-readable listing
// headed by name - text only. gclox has no on-disk bytecode format, so
// this keeps only the debugging/tracing half of what a disassembler
// would otherwise also serialize.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		line, next := c.DisassembleInstruction(offset)
		b.WriteString(line)
		b.WriteByte('\n')
		offset = next
	}
	return b.String()
}

// DisassembleInstruction formats the single instruction at offset and
// returns it alongside the offset of the next instruction, so callers
// (Disassemble, and the VM's optional -trace mode) can step through a
// chunk one instruction at a time without duplicating the operand-width
// table.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if offset > 0 && c.Line(offset) == c.Line(offset-1) {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", c.Line(offset))
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant:
		return c.constantInstruction(b.String(), op, offset)
	case OpNil, OpTrue, OpFalse, OpPop, OpEqual, OpGreater, OpLess,
		OpAdd, OpSubtract, OpMultiply, OpDivide, OpNot, OpNegate,
		OpPrint, OpCloseUpvalue, OpReturn:
		return simpleInstruction(b.String(), op, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(b.String(), op, c, offset)
	case OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		return c.constantInstruction(b.String(), op, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(b.String(), op, 1, c, offset)
	case OpLoop:
		return jumpInstruction(b.String(), op, -1, c, offset)
	case OpClosure:
		return c.closureInstruction(b.String(), offset)
	default:
		fmt.Fprintf(&b, "Unknown opcode %d", op)
		return b.String(), offset + 1
	}
}

func simpleInstruction(prefix string, op OpCode, offset int) (string, int) {
	return prefix + op.String(), offset + 1
}

func byteInstruction(prefix string, op OpCode, c *Chunk, offset int) (string, int) {
	slot := c.Code[offset+1]
	return fmt.Sprintf("%s%-16s %4d", prefix, op.String(), slot), offset + 2
}

func (c *Chunk) constantInstruction(prefix string, op OpCode, offset int) (string, int) {
	constant := c.Code[offset+1]
	var val Value
	if int(constant) < len(c.Constants) {
		val = c.Constants[constant]
	}
	return fmt.Sprintf("%s%-16s %4d '%s'", prefix, op.String(), constant, val.String()), offset + 2
}

func jumpInstruction(prefix string, op OpCode, sign int, c *Chunk, offset int) (string, int) {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	return fmt.Sprintf("%s%-16s %4d -> %d", prefix, op.String(), offset, target), offset + 3
}

// closureInstruction decodes OP_CLOSURE's variable-width encoding: the
// function constant index, followed by one (isLocal byte, index byte)
// pair per upvalue the function captures, recording which enclosing slot
// each upvalue closes over.
func (c *Chunk) closureInstruction(prefix string, offset int) (string, int) {
	constant := c.Code[offset+1]
	offset += 2
	var fn *ObjFunction
	if int(constant) < len(c.Constants) {
		if f, ok := c.Constants[constant].AsObj().(*ObjFunction); ok {
			fn = f
		}
	}
	line := fmt.Sprintf("%s%-16s %4d '%s'", prefix, OpClosure.String(), constant, fnName(fn))

	upvalueCount := 0
	if fn != nil {
		upvalueCount = fn.UpvalueCount
	}
	var b strings.Builder
	b.WriteString(line)
	for i := 0; i < upvalueCount; i++ {
		isLocal := c.Code[offset]
		index := c.Code[offset+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(&b, "\n%04d      |                     %s %d", offset, kind, index)
		offset += 2
	}
	return b.String(), offset
}

func fnName(fn *ObjFunction) string {
	if fn == nil {
		return "<unknown>"
	}
	return fn.String()
}
