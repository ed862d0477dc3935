// Package bytecode defines the bytecode format, value representation, and
// heap-object model for gclox, plus the hash table and garbage collector
// that tie them together.
//
// Architecture:
//
// gclox is a stack-based bytecode machine:
//  1. Values are pushed onto and popped from the VM's operand stack.
//  2. Instructions consume operands from the stack and push results back.
//  3. Locals live in stack slots; globals live in a name-keyed hash table.
//  4. A Chunk is one function body: a byte-code stream, a parallel line
//     table, and a constant pool.
//
// Example compilation:
//
//	Source:  print 1 + 2 * 3;
//
//	Bytecode:
//	  OP_CONSTANT 0     ; 1
//	  OP_CONSTANT 1     ; 2
//	  OP_CONSTANT 2     ; 3
//	  OP_MULTIPLY
//	  OP_ADD
//	  OP_PRINT
//	  OP_NIL
//	  OP_RETURN
//
//	Constants: [1, 2, 3]
//
// Instruction format:
//
// Each instruction is a one-byte opcode optionally followed by one or two
// operand bytes, whose meaning depends on the opcode:
//   - OP_CONSTANT: one-byte index into the constant pool (256 constants/chunk)
//   - OP_GET_LOCAL / OP_SET_LOCAL / OP_GET_UPVALUE / OP_SET_UPVALUE: one-byte slot
//   - OP_JUMP / OP_JUMP_IF_FALSE / OP_LOOP: two-byte, big-endian branch offset
//   - OP_CALL: one-byte argument count
//   - OP_CLOSURE: one-byte constant index, then one (isLocal byte, index byte)
//     pair per captured upvalue
//
// Variable-width instructions keep common opcodes (OP_POP, OP_ADD, ...) to a
// single byte, at the cost of a byte-at-a-time decode loop in the VM - the
// same tradeoff a real register/stack bytecode format makes.
package bytecode

// OpCode is a single bytecode instruction's operation.
type OpCode byte

const (
	// OpConstant pushes chunk.Constants[operand] onto the stack.
	OpConstant OpCode = iota
	// OpNil pushes the nil value.
	OpNil
	// OpTrue pushes the boolean true.
	OpTrue
	// OpFalse pushes the boolean false.
	OpFalse
	// OpPop discards the top of the stack.
	OpPop
	// OpGetLocal pushes the local variable at the given stack slot.
	OpGetLocal
	// OpSetLocal stores the stack top into the given local slot, without popping.
	OpSetLocal
	// OpGetGlobal looks up a global by name (constant-pool string); errors if undefined.
	OpGetGlobal
	// OpDefineGlobal binds (or rebinds) a global to the popped stack top.
	OpDefineGlobal
	// OpSetGlobal assigns an existing global; errors if it was never defined.
	OpSetGlobal
	// OpGetUpvalue pushes the value of the closure's Nth upvalue.
	OpGetUpvalue
	// OpSetUpvalue stores the stack top into the closure's Nth upvalue, without popping.
	OpSetUpvalue
	// OpEqual pops b, a and pushes a == b.
	OpEqual
	// OpGreater pops b, a (numbers) and pushes a > b.
	OpGreater
	// OpLess pops b, a (numbers) and pushes a < b.
	OpLess
	// OpAdd pops b, a and pushes a+b: numeric sum, or string concatenation.
	OpAdd
	// OpSubtract pops b, a (numbers) and pushes a-b.
	OpSubtract
	// OpMultiply pops b, a (numbers) and pushes a*b.
	OpMultiply
	// OpDivide pops b, a (numbers) and pushes a/b.
	OpDivide
	// OpNot pops a value and pushes its logical negation (isFalsey).
	OpNot
	// OpNegate pops a number and pushes its arithmetic negation.
	OpNegate
	// OpPrint pops a value and writes it to stdout with a trailing newline.
	OpPrint
	// OpJump unconditionally advances ip by the two-byte operand.
	OpJump
	// OpJumpIfFalse advances ip by the operand if the stack top is falsey; does not pop.
	OpJumpIfFalse
	// OpLoop rewinds ip by the two-byte operand (backward jump).
	OpLoop
	// OpCall invokes the callee operand-slots below the stack top with operand arguments.
	OpCall
	// OpClosure builds a closure over the function constant, followed by one
	// (isLocal, index) byte pair per upvalue the function captures.
	OpClosure
	// OpCloseUpvalue closes the open upvalue (if any) referring to the stack
	// top's slot, then pops it.
	OpCloseUpvalue
	// OpReturn pops the return value, unwinds the current call frame, and
	// resumes the caller (or ends the program if this was the top frame).
	OpReturn
)

// String returns the opcode's mnemonic, used by the disassembler (and so
// by the VM's -trace output).
func (op OpCode) String() string {
	switch op {
	case OpConstant:
		return "OP_CONSTANT"
	case OpNil:
		return "OP_NIL"
	case OpTrue:
		return "OP_TRUE"
	case OpFalse:
		return "OP_FALSE"
	case OpPop:
		return "OP_POP"
	case OpGetLocal:
		return "OP_GET_LOCAL"
	case OpSetLocal:
		return "OP_SET_LOCAL"
	case OpGetGlobal:
		return "OP_GET_GLOBAL"
	case OpDefineGlobal:
		return "OP_DEFINE_GLOBAL"
	case OpSetGlobal:
		return "OP_SET_GLOBAL"
	case OpGetUpvalue:
		return "OP_GET_UPVALUE"
	case OpSetUpvalue:
		return "OP_SET_UPVALUE"
	case OpEqual:
		return "OP_EQUAL"
	case OpGreater:
		return "OP_GREATER"
	case OpLess:
		return "OP_LESS"
	case OpAdd:
		return "OP_ADD"
	case OpSubtract:
		return "OP_SUBTRACT"
	case OpMultiply:
		return "OP_MULTIPLY"
	case OpDivide:
		return "OP_DIVIDE"
	case OpNot:
		return "OP_NOT"
	case OpNegate:
		return "OP_NEGATE"
	case OpPrint:
		return "OP_PRINT"
	case OpJump:
		return "OP_JUMP"
	case OpJumpIfFalse:
		return "OP_JUMP_IF_FALSE"
	case OpLoop:
		return "OP_LOOP"
	case OpCall:
		return "OP_CALL"
	case OpClosure:
		return "OP_CLOSURE"
	case OpCloseUpvalue:
		return "OP_CLOSE_UPVALUE"
	case OpReturn:
		return "OP_RETURN"
	default:
		return "OP_UNKNOWN"
	}
}
