// Package compiler implements gclox's single-pass compiler: scanning,
// Pratt expression parsing, and bytecode emission are interleaved in one
// walk over the token stream, with no intermediate AST - clox's own
// architecture, where parsing and code generation are the same function,
// rather than a parse-then-compile pipeline over a separate tree type.
// Panic-mode error recovery and synchronization, the Compiler-per-
// function-body nesting, and the emit/patch helpers for jumps follow that
// same merged design throughout.
package compiler

import (
	"fmt"

	"github.com/gclox/gclox/pkg/bytecode"
	"github.com/gclox/gclox/pkg/lexer"
)

// FunctionType distinguishes the implicit top-level script body from a
// user-declared function. Both get the same implicit nil return; the
// difference is that a `return` statement in the script body is a
// compile error.
type FunctionType int

const (
	FuncTypeFunction FunctionType = iota
	FuncTypeScript
)

// local is a resolved local variable slot within one function's Compiler.
// depth == -1 means "declared but its initializer hasn't finished
// compiling yet" - the guard against a declaration's own initializer
// referring to itself, e.g. `var a = a;`.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueRef records, for one function's Compiler, where its Nth upvalue
// comes from in the immediately enclosing function: either that
// function's own local slot (isLocal true) or one of its own upvalues.
type upvalueRef struct {
	index   byte
	isLocal bool
}

const maxLocals = 256
const maxUpvalues = 256

// Compiler holds the compile-time state for one function body: the
// ObjFunction being built, its resolved locals and upvalues, and a link
// to the Compiler for the lexically enclosing function. Compiling a
// nested `fun` declaration pushes a new Compiler and pops it back to the
// enclosing one when the body's closing brace is reached.
type Compiler struct {
	enclosing  *Compiler
	function   *bytecode.ObjFunction
	fnType     FunctionType
	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
}

// Parser is the shared single-pass parsing state threaded through every
// nested Compiler: the lexer, the current/previous token, error-recovery
// flags, and the GC used to intern string/function constants as they're
// compiled.
type Parser struct {
	lex       *lexer.Lexer
	current   lexer.Token
	previous  lexer.Token
	source    string
	hadError  bool
	panicMode bool
	gc        *bytecode.GC
	compiler  *Compiler
	roots     []bytecode.RootMarker
	errs      []string
}

// CompileError aggregates every syntax error found during a compile, in
// source order, surfaced as a proper error value instead of a plain
// []string the caller has to remember to check.
type CompileError struct {
	Messages []string
}

func (e *CompileError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	s := fmt.Sprintf("%d compile errors:", len(e.Messages))
	for _, m := range e.Messages {
		s += "\n  " + m
	}
	return s
}

// Compile compiles source into a top-level ObjFunction ("the script"),
// returning a *CompileError listing every syntax error found if
// compilation failed. gc is used to allocate and intern every string and
// function constant the compile produces; roots lets the GC reach this
// in-progress compile's own constant pool if an allocation triggers a
// collection mid-compile (MarkRoots below).
func Compile(source string, gc *bytecode.GC, roots []bytecode.RootMarker) (*bytecode.ObjFunction, error) {
	p := &Parser{
		lex:    lexer.New(source),
		source: source,
		gc:     gc,
	}
	p.roots = append(roots, p)

	p.pushCompiler(nil, FuncTypeScript)

	p.advance()
	for !p.match(lexer.EOF) {
		p.declaration()
	}
	p.consume(lexer.EOF, "Expect end of expression.")

	fn := p.endCompiler()
	if p.hadError {
		return nil, &CompileError{Messages: p.errs}
	}
	return fn, nil
}

// pushCompiler starts compiling a new function body and makes it
// p.compiler, the innermost frame MarkRoots walks from. The Compiler is
// linked into p.compiler (and therefore reachable from MarkRoots)
// *before* its ObjFunction is allocated - if that allocation itself
// triggers a collection (StressGC, or an unlucky threshold crossing),
// the in-progress function must already be a marked root rather than a
// bare local variable GC cannot see. This mirrors clox's own
// initCompiler, which sets `current = compiler` before calling
// newFunction().
func (p *Parser) pushCompiler(enclosing *Compiler, fnType FunctionType) {
	c := &Compiler{enclosing: enclosing, fnType: fnType}
	p.compiler = c
	c.function = p.gc.NewFunction(p.roots)
	// Slot zero is reserved: for a function call it holds the callee's own
	// closure (used when a function refers to itself for recursion); for
	// the top-level script it's simply unused. Either way no identifier can
	// ever bind there, so its name is the empty string.
	c.locals = append(c.locals, local{name: "", depth: 0})
}

// MarkRoots implements bytecode.RootMarker: an in-progress compile keeps
// its own chain of not-yet-returned ObjFunctions alive, since they aren't
// reachable from the VM (which hasn't been handed the top-level function
// yet) until Compile returns.
func (p *Parser) MarkRoots(gc *bytecode.GC) {
	for c := p.compiler; c != nil; c = c.enclosing {
		// c.function is nil for the brief window between pushCompiler
		// linking c into this chain and the allocation that fills it in;
		// gc.MarkObject takes an Obj interface, and boxing a nil
		// *ObjFunction into one does not compare equal to a nil interface,
		// so the nil check must happen on the concrete pointer here.
		if c.function != nil {
			gc.MarkObject(c.function)
		}
	}
}

func (p *Parser) currentChunk() *bytecode.Chunk {
	return p.compiler.function.Chunk
}

// --- token stream -----------------------------------------------------

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.Next()
		if p.current.Kind != lexer.Error {
			break
		}
		p.errorAtCurrent(p.current.Message)
	}
}

func (p *Parser) check(kind lexer.Kind) bool {
	return p.current.Kind == kind
}

func (p *Parser) match(kind lexer.Kind) bool {
	if !p.check(kind) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(kind lexer.Kind, message string) {
	if p.current.Kind == kind {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

// --- error reporting ---------------------------------------------------

func (p *Parser) errorAtCurrent(message string) {
	p.errorAt(p.current, message)
}

func (p *Parser) error(message string) {
	p.errorAt(p.previous, message)
}

// errorAt records one diagnostic and enters panic mode, which
// synchronize() later exits at the next likely statement boundary -
// clox's scheme for reporting more than one error per compile without
// cascading nonsense messages.
func (p *Parser) errorAt(tok lexer.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	where := ""
	switch tok.Kind {
	case lexer.EOF:
		where = " at end"
	case lexer.Error:
		// message already describes the problem; no lexeme to show
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme(p.source))
	}
	p.errs = append(p.errs, fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, message))
	p.hadError = true
}

// synchronize discards tokens until it reaches a plausible statement
// boundary, so one syntax error is reported instead of a cascade.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Kind != lexer.EOF {
		if p.previous.Kind == lexer.Semicolon {
			return
		}
		switch p.current.Kind {
		case lexer.Class, lexer.Fun, lexer.Var, lexer.For, lexer.If, lexer.While, lexer.Print, lexer.Return:
			return
		}
		p.advance()
	}
}

// --- emit helpers --------------------------------------------------

func (p *Parser) emitByte(b byte) {
	p.currentChunk().Write(b, p.previous.Line)
}

func (p *Parser) emitOp(op bytecode.OpCode) {
	p.currentChunk().WriteOp(op, p.previous.Line)
}

func (p *Parser) emitOps(op1, op2 bytecode.OpCode) {
	p.emitOp(op1)
	p.emitOp(op2)
}

func (p *Parser) emitConstant(v bytecode.Value) {
	idx := p.makeConstant(v)
	p.emitOp(bytecode.OpConstant)
	p.emitByte(idx)
}

func (p *Parser) makeConstant(v bytecode.Value) byte {
	idx := p.currentChunk().AddConstant(v)
	if idx > bytecode.MaxConstants-1 {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

// emitJump writes a two-operand-byte placeholder jump and returns the
// offset of its first operand byte, to be backpatched by patchJump once
// the jump target is known.
func (p *Parser) emitJump(op bytecode.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return p.currentChunk().Count() - 2
}

func (p *Parser) patchJump(offset int) {
	jump := p.currentChunk().Count() - offset - 2
	if jump > 0xffff {
		p.error("Too much code to jump over.")
	}
	chunk := p.currentChunk()
	chunk.Code[offset] = byte((jump >> 8) & 0xff)
	chunk.Code[offset+1] = byte(jump & 0xff)
}

// emitLoop writes OP_LOOP with a backward offset to loopStart, for
// `while`/`for` bodies.
func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(bytecode.OpLoop)
	offset := p.currentChunk().Count() - loopStart + 2
	if offset > 0xffff {
		p.error("Loop body too large.")
	}
	p.emitByte(byte((offset >> 8) & 0xff))
	p.emitByte(byte(offset & 0xff))
}

func (p *Parser) emitReturn() {
	p.emitOp(bytecode.OpNil)
	p.emitOp(bytecode.OpReturn)
}

// endCompiler finishes the current function's chunk and pops back to the
// enclosing Compiler (nil at the top level).
func (p *Parser) endCompiler() *bytecode.ObjFunction {
	p.emitReturn()
	fn := p.compiler.function
	p.compiler = p.compiler.enclosing
	return fn
}

// --- scopes --------------------------------------------------------

func (p *Parser) beginScope() {
	p.compiler.scopeDepth++
}

// endScope pops every local declared in the scope just exited, emitting
// OP_CLOSE_UPVALUE for any that were captured by a nested closure (so the
// closure keeps its own copy) and a plain OP_POP otherwise.
func (p *Parser) endScope() {
	p.compiler.scopeDepth--
	locals := p.compiler.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > p.compiler.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			p.emitOp(bytecode.OpCloseUpvalue)
		} else {
			p.emitOp(bytecode.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	p.compiler.locals = locals
}
