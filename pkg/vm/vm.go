// Package vm implements gclox's stack-based bytecode virtual machine:
// call frames over a single flat value stack, closures with upvalues,
// and a globals table shared for the life of one VM. Its control-flow
// skeleton - push a stack frame, run until the opcode's effect is
// applied, pop back out on return - dispatches plain function calls
// against closures rather than message sends against a class registry.
package vm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gclox/gclox/pkg/bytecode"
	"github.com/gclox/gclox/pkg/compiler"
)

// InterpretResult mirrors clox's three-way outcome for a top-level
// Interpret call - also the shape cmd/gclox uses to choose its process
// exit code (0, 65, 70).
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// FramesMax bounds both recursion depth and the live call-frame array;
// StackMax is sized off it the same way clox sizes its VM stack off
// FRAMES_MAX * UINT8_COUNT, since every frame can hold up to 256 locals.
const (
	FramesMax = 64
	StackMax  = FramesMax * 256
)

// CallFrame is one activation record: the closure being run, its
// instruction pointer into that closure's chunk, and the base index into
// the VM's shared value stack where this call's locals/parameters start.
type CallFrame struct {
	closure   *bytecode.ObjClosure
	ip        int
	slotsBase int
}

// VM is one gclox virtual machine instance: a fixed-capacity value
// stack, a fixed-capacity frame array, a globals table, the GC that owns
// every heap allocation this VM makes, and the open-upvalue list.
type VM struct {
	stack      [StackMax]bytecode.Value
	stackTop   int
	frames     [FramesMax]CallFrame
	frameCount int

	globals      *bytecode.Table
	gc           *bytecode.GC
	openUpvalues *bytecode.ObjUpvalue // sorted by descending slot index

	Out            *os.File // destination for OP_PRINT; tests may swap this
	TraceExecution bool     // print each instruction before executing it (-trace)
}

// New returns a VM backed by a fresh GC, with the native function library
// already installed.
func New() *VM {
	vm := &VM{
		globals: bytecode.NewTable(),
		gc:      bytecode.NewGC(),
		Out:     os.Stdout,
	}
	vm.defineNative("clock", clockNative)
	return vm
}

// GC exposes the VM's garbage collector, e.g. so cmd/gclox can flip
// StressGC from a flag before running a script.
func (vm *VM) GC() *bytecode.GC { return vm.gc }

func (vm *VM) roots() []bytecode.RootMarker {
	return []bytecode.RootMarker{vm}
}

// MarkRoots implements bytecode.RootMarker: every live stack slot, every
// frame's closure, the open-upvalue chain, and the globals table are
// this VM's roots, enumerated the same way any tree-walk over "everything
// currently live" would be.
func (vm *VM) MarkRoots(gc *bytecode.GC) {
	for i := 0; i < vm.stackTop; i++ {
		gc.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		gc.MarkObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		gc.MarkObject(uv)
	}
	for _, k := range vm.globals.Keys() {
		gc.MarkObject(k)
	}
	for _, v := range vm.globals.Values() {
		gc.MarkValue(v)
	}
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v bytecode.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() bytecode.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) bytecode.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// Interpret compiles and runs source to completion against this VM's
// existing globals - successive calls share state, the way a REPL needs
// each line to see the last one's variables.
func (vm *VM) Interpret(source string) (InterpretResult, error) {
	fn, err := compiler.Compile(source, vm.gc, vm.roots())
	if err != nil {
		return InterpretCompileError, err
	}

	vm.push(bytecode.ObjValue(fn))
	closure := vm.gc.NewClosure(fn, nil, vm.roots())
	vm.pop()
	vm.push(bytecode.ObjValue(closure))

	if err := vm.call(closure, 0); err != nil {
		return InterpretRuntimeError, err
	}

	if err := vm.run(); err != nil {
		return InterpretRuntimeError, err
	}
	return InterpretOK, nil
}

// call pushes a new CallFrame for closure, checking arity and recursion
// depth - clox's two guardrails against, respectively, calling a function
// wrong and overrunning the fixed-size frame array.
func (vm *VM) call(closure *bytecode.ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError("Stack overflow.")
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slotsBase = vm.stackTop - argCount - 1
	return nil
}

// callValue dispatches a call instruction's callee, which may be a
// user-defined closure or a native - the two callable kinds gclox has.
func (vm *VM) callValue(callee bytecode.Value, argCount int) error {
	if callee.IsObj() {
		switch obj := callee.AsObj().(type) {
		case *bytecode.ObjClosure:
			return vm.call(obj, argCount)
		case *bytecode.ObjNative:
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			result, err := obj.Fn(args)
			if err != nil {
				return vm.runtimeError("%s", err.Error())
			}
			vm.stackTop -= argCount + 1
			vm.push(result)
			return nil
		}
	}
	return vm.runtimeError("Can only call functions.")
}

// captureUpvalue returns the open upvalue for stack slot, reusing one
// already open for that exact slot if the call graph already created it
// (two closures capturing the same local must share one cell), keeping
// vm.openUpvalues sorted by descending slot so closeUpvalues can stop
// early.
func (vm *VM) captureUpvalue(slot int) *bytecode.ObjUpvalue {
	var prev *bytecode.ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Location > slot {
		prev = uv
		uv = uv.Next
	}
	if uv != nil && uv.Location == slot {
		return uv
	}

	created := vm.gc.NewUpvalue(slot, vm.roots())
	created.Next = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues hoists every open upvalue at or above lastSlot off the
// stack and into its own Closed field, for every slot a block or call is
// about to pop - the point past which that stack memory will be reused.
func (vm *VM) closeUpvalues(lastSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= lastSlot {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.Location]
		uv.IsClosed = true
		vm.openUpvalues = uv.Next
	}
}

func (vm *VM) defineNative(name string, fn bytecode.NativeFn) {
	nameObj := vm.gc.CopyString(name, vm.roots())
	native := vm.gc.NewNative(name, fn, vm.roots())
	vm.globals.Set(nameObj, bytecode.ObjValue(native))
}

func clockNative(args []bytecode.Value) (bytecode.Value, error) {
	return bytecode.NumberValue(float64(time.Now().UnixNano()) / 1e9), nil
}

// runtimeError builds a *RuntimeError carrying the current call stack,
// innermost frame first, and resets the VM's stack so a REPL can keep
// going after a fault.
func (vm *VM) runtimeError(format string, args ...interface{}) *RuntimeError {
	message := fmt.Sprintf(format, args...)

	var trace []StackFrame
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		line := fn.Chunk.Line(frame.ip - 1)
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		trace = append(trace, StackFrame{Name: name, SourceLine: line})
	}

	vm.resetStack()
	return newRuntimeError(message, trace)
}

// run is the bytecode dispatch loop: decode one instruction from the
// current frame, execute its effect, repeat until OP_RETURN unwinds the
// outermost frame.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := frame.closure.Function.Chunk.Code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() bytecode.Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}

	for {
		if vm.TraceExecution {
			line, _ := frame.closure.Function.Chunk.DisassembleInstruction(frame.ip)
			fmt.Fprintln(os.Stderr, line)
		}

		op := bytecode.OpCode(readByte())
		switch op {
		case bytecode.OpConstant:
			vm.push(readConstant())

		case bytecode.OpNil:
			vm.push(bytecode.NilValue)
		case bytecode.OpTrue:
			vm.push(bytecode.BoolValue(true))
		case bytecode.OpFalse:
			vm.push(bytecode.BoolValue(false))

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := readByte()
			vm.push(vm.stack[frame.slotsBase+int(slot)])
		case bytecode.OpSetLocal:
			slot := readByte()
			vm.stack[frame.slotsBase+int(slot)] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := readConstant().AsObj().(*bytecode.ObjString)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case bytecode.OpDefineGlobal:
			name := readConstant().AsObj().(*bytecode.ObjString)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case bytecode.OpSetGlobal:
			name := readConstant().AsObj().(*bytecode.ObjString)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case bytecode.OpGetUpvalue:
			slot := readByte()
			uv := frame.closure.Upvalues[slot]
			if uv.IsClosed {
				vm.push(uv.Closed)
			} else {
				vm.push(vm.stack[uv.Location])
			}
		case bytecode.OpSetUpvalue:
			slot := readByte()
			uv := frame.closure.Upvalues[slot]
			if uv.IsClosed {
				uv.Closed = vm.peek(0)
			} else {
				vm.stack[uv.Location] = vm.peek(0)
			}

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(bytecode.BoolValue(bytecode.ValuesEqual(a, b)))
		case bytecode.OpGreater:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.BoolValue(a > b) }); err != nil {
				return err
			}
		case bytecode.OpLess:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.BoolValue(a < b) }); err != nil {
				return err
			}

		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case bytecode.OpSubtract:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a - b) }); err != nil {
				return err
			}
		case bytecode.OpMultiply:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a * b) }); err != nil {
				return err
			}
		case bytecode.OpDivide:
			if err := vm.binaryNumeric(func(a, b float64) bytecode.Value { return bytecode.NumberValue(a / b) }); err != nil {
				return err
			}

		case bytecode.OpNot:
			vm.push(bytecode.BoolValue(bytecode.IsFalsey(vm.pop())))
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(bytecode.NumberValue(-vm.pop().AsNumber()))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.Out, vm.pop().String())

		case bytecode.OpJump:
			offset := readShort()
			frame.ip += offset
		case bytecode.OpJumpIfFalse:
			offset := readShort()
			if bytecode.IsFalsey(vm.peek(0)) {
				frame.ip += offset
			}
		case bytecode.OpLoop:
			offset := readShort()
			frame.ip -= offset

		case bytecode.OpCall:
			argCount := int(readByte())
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case bytecode.OpClosure:
			fn := readConstant().AsObj().(*bytecode.ObjFunction)
			upvalues := make([]*bytecode.ObjUpvalue, fn.UpvalueCount)
			for i := range upvalues {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					upvalues[i] = vm.captureUpvalue(frame.slotsBase + int(index))
				} else {
					upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			closure := vm.gc.NewClosure(fn, upvalues, vm.roots())
			vm.push(bytecode.ObjValue(closure))

		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slotsBase)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = frame.slotsBase
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

func (vm *VM) binaryNumeric(fn func(a, b float64) bytecode.Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(fn(a, b))
	return nil
}

// add implements gclox's overloaded '+': numeric addition, or string
// concatenation when both operands are strings - one polymorphic
// arithmetic opcode standing in for both.
func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		bn := vm.pop().AsNumber()
		an := vm.pop().AsNumber()
		vm.push(bytecode.NumberValue(an + bn))
		return nil
	case a.IsString() && b.IsString():
		bs := vm.pop().AsString()
		as := vm.pop().AsString()
		var sb strings.Builder
		sb.WriteString(as)
		sb.WriteString(bs)
		result := vm.gc.TakeString(sb.String(), vm.roots())
		vm.push(bytecode.ObjValue(result))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}
