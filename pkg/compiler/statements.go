package compiler

import (
	"github.com/gclox/gclox/pkg/bytecode"
	"github.com/gclox/gclox/pkg/lexer"
)

// declaration parses one top-level-or-block declaration, recovering to
// the next statement boundary on error - clox's panic-mode error
// recovery and resynchronization scheme.
func (p *Parser) declaration() {
	switch {
	case p.match(lexer.Fun):
		p.funDeclaration()
	case p.match(lexer.Var):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(lexer.Print):
		p.printStatement()
	case p.match(lexer.For):
		p.forStatement()
	case p.match(lexer.If):
		p.ifStatement()
	case p.match(lexer.Return):
		p.returnStatement()
	case p.match(lexer.While):
		p.whileStatement()
	case p.match(lexer.LeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(lexer.Semicolon, "Expect ';' after value.")
	p.emitOp(bytecode.OpPrint)
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(lexer.Semicolon, "Expect ';' after expression.")
	p.emitOp(bytecode.OpPop)
}

func (p *Parser) block() {
	for !p.check(lexer.RightBrace) && !p.check(lexer.EOF) {
		p.declaration()
	}
	p.consume(lexer.RightBrace, "Expect '}' after block.")
}

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")

	if p.match(lexer.Equal) {
		p.expression()
	} else {
		p.emitOp(bytecode.OpNil)
	}
	p.consume(lexer.Semicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

// ifStatement compiles clox's standard two-jump pattern: a conditional
// jump over the then-branch, an unconditional jump over the else-branch
// at the end of the then-branch. The second jump is emitted even without
// an else, since it must still skip the else path's pop of the condition.
func (p *Parser) ifStatement() {
	p.consume(lexer.LeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(lexer.RightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.statement()

	elseJump := p.emitJump(bytecode.OpJump)
	p.patchJump(thenJump)
	p.emitOp(bytecode.OpPop)

	if p.match(lexer.Else) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := p.currentChunk().Count()
	p.consume(lexer.LeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(lexer.RightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(bytecode.OpPop)
}

// forStatement desugars entirely into `while` machinery plus an explicit
// scope - clox's approach, rather than giving `for` any opcodes of its
// own. The increment clause, if present, is compiled where it's written
// but spliced to run *after* the body via a pair of jumps, since a
// single-pass compiler can't simply emit it out of source order.
func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(lexer.LeftParen, "Expect '(' after 'for'.")

	switch {
	case p.match(lexer.Semicolon):
		// no initializer
	case p.match(lexer.Var):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := p.currentChunk().Count()
	exitJump := -1
	if !p.match(lexer.Semicolon) {
		p.expression()
		p.consume(lexer.Semicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(bytecode.OpJumpIfFalse)
		p.emitOp(bytecode.OpPop)
	}

	if !p.match(lexer.RightParen) {
		bodyJump := p.emitJump(bytecode.OpJump)
		incrementStart := p.currentChunk().Count()
		p.expression()
		p.emitOp(bytecode.OpPop)
		p.consume(lexer.RightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(bytecode.OpPop)
	}
	p.endScope()
}

func (p *Parser) returnStatement() {
	if p.compiler.fnType == FuncTypeScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(lexer.Semicolon) {
		p.emitReturn()
		return
	}
	p.expression()
	p.consume(lexer.Semicolon, "Expect ';' after return value.")
	p.emitOp(bytecode.OpReturn)
}

// funDeclaration compiles `fun name(params) { body }`: the name is
// defined as a variable *before* the body compiles, so the function can
// recurse, then function() pushes a new Compiler for the body and emits
// OP_CLOSURE with its captured-upvalue descriptors on return to the
// enclosing one.
func (p *Parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	p.markInitialized()
	p.function(FuncTypeFunction)
	p.defineVariable(global)
}

func (p *Parser) function(fnType FunctionType) {
	p.pushCompiler(p.compiler, fnType)
	p.compiler.function.Name = p.gc.CopyString(p.previous.Lexeme(p.source), p.roots)
	p.beginScope()

	p.consume(lexer.LeftParen, "Expect '(' after function name.")
	if !p.check(lexer.RightParen) {
		for {
			p.compiler.function.Arity++
			if p.compiler.function.Arity > 255 {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := p.parseVariable("Expect parameter name.")
			p.defineVariable(constant)
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume(lexer.RightParen, "Expect ')' after parameters.")
	p.consume(lexer.LeftBrace, "Expect '{' before function body.")
	p.block()

	fnCompiler := p.compiler
	fn := p.endCompiler()

	idx := p.makeConstant(bytecode.ObjValue(fn))
	p.emitOp(bytecode.OpClosure)
	p.emitByte(idx)
	for _, uv := range fnCompiler.upvalues {
		if uv.isLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(uv.index)
	}
}
