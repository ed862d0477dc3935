package compiler

import (
	"testing"

	"github.com/gclox/gclox/pkg/bytecode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileOK(t *testing.T, source string) *bytecode.ObjFunction {
	t.Helper()
	gc := bytecode.NewGC()
	fn, err := Compile(source, gc, nil)
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

func opcodesOf(fn *bytecode.ObjFunction) []bytecode.OpCode {
	var ops []bytecode.OpCode
	code := fn.Chunk.Code
	for i := 0; i < len(code); {
		op := bytecode.OpCode(code[i])
		ops = append(ops, op)
		_, next := fn.Chunk.DisassembleInstruction(i)
		i = next
	}
	return ops
}

func TestCompile_ArithmeticPrecedence(t *testing.T) {
	fn := compileOK(t, "1 + 2 * 3;")
	ops := opcodesOf(fn)
	assert.Contains(t, ops, bytecode.OpMultiply)
	assert.Contains(t, ops, bytecode.OpAdd)
	// multiply must be emitted before add, since it binds tighter
	var mulIdx, addIdx int
	for i, op := range ops {
		if op == bytecode.OpMultiply {
			mulIdx = i
		}
		if op == bytecode.OpAdd {
			addIdx = i
		}
	}
	assert.Less(t, mulIdx, addIdx)
}

func TestCompile_VarDeclarationAndGlobalAccess(t *testing.T) {
	fn := compileOK(t, `var a = 1; print a;`)
	ops := opcodesOf(fn)
	assert.Contains(t, ops, bytecode.OpDefineGlobal)
	assert.Contains(t, ops, bytecode.OpGetGlobal)
	assert.Contains(t, ops, bytecode.OpPrint)
}

func TestCompile_LocalsUseStackSlotsNotGlobals(t *testing.T) {
	fn := compileOK(t, `{ var a = 1; print a; }`)
	ops := opcodesOf(fn)
	assert.NotContains(t, ops, bytecode.OpDefineGlobal)
	assert.Contains(t, ops, bytecode.OpGetLocal)
}

func TestCompile_IfElseEmitsJumps(t *testing.T) {
	fn := compileOK(t, `if (true) { print 1; } else { print 2; }`)
	ops := opcodesOf(fn)
	assert.Contains(t, ops, bytecode.OpJumpIfFalse)
	assert.Contains(t, ops, bytecode.OpJump)
}

func TestCompile_WhileEmitsLoop(t *testing.T) {
	fn := compileOK(t, `while (false) { print 1; }`)
	ops := opcodesOf(fn)
	assert.Contains(t, ops, bytecode.OpLoop)
}

func TestCompile_FunctionDeclarationEmitsClosure(t *testing.T) {
	fn := compileOK(t, `fun add(a, b) { return a + b; } add(1, 2);`)
	ops := opcodesOf(fn)
	assert.Contains(t, ops, bytecode.OpClosure)
	assert.Contains(t, ops, bytecode.OpCall)
}

func TestCompile_ClosureCapturesUpvalue(t *testing.T) {
	fn := compileOK(t, `
		fun outer() {
			var x = 1;
			fun inner() {
				return x;
			}
			return inner;
		}
	`)
	ops := opcodesOf(fn)
	assert.Contains(t, ops, bytecode.OpClosure)

	// find the outer function's constant to inspect the nested function
	var innerFn *bytecode.ObjFunction
	for _, c := range fn.Chunk.Constants {
		if f, ok := c.AsObj().(*bytecode.ObjFunction); ok && f.Name != nil && f.Name.Chars == "outer" {
			for _, ic := range f.Chunk.Constants {
				if innerCandidate, ok := ic.AsObj().(*bytecode.ObjFunction); ok && innerCandidate.Name != nil && innerCandidate.Name.Chars == "inner" {
					innerFn = innerCandidate
				}
			}
		}
	}
	require.NotNil(t, innerFn)
	assert.Equal(t, 1, innerFn.UpvalueCount)
	innerOps := opcodesOf(innerFn)
	assert.Contains(t, innerOps, bytecode.OpGetUpvalue)
}

func TestCompile_SelfReferenceInInitializerIsAnError(t *testing.T) {
	gc := bytecode.NewGC()
	_, err := Compile(`{ var a = a; }`, gc, nil)
	assert.Error(t, err)
}

func TestCompile_ReturnAtTopLevelIsAnError(t *testing.T) {
	gc := bytecode.NewGC()
	_, err := Compile(`return 1;`, gc, nil)
	assert.Error(t, err)
}

func TestCompile_ShadowingInSameScopeIsAnError(t *testing.T) {
	gc := bytecode.NewGC()
	_, err := Compile(`{ var a = 1; var a = 2; }`, gc, nil)
	assert.Error(t, err)
}

func TestCompile_SyntaxErrorReportsLineAndMessage(t *testing.T) {
	gc := bytecode.NewGC()
	_, err := Compile("var;", gc, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[line 1]")
	assert.Contains(t, err.Error(), "Expect variable name.")
}

func TestCompile_AndOrShortCircuit(t *testing.T) {
	fn := compileOK(t, `true and false; false or true;`)
	ops := opcodesOf(fn)
	assert.Contains(t, ops, bytecode.OpJumpIfFalse)
	assert.Contains(t, ops, bytecode.OpJump)
}
