package compiler

import (
	"github.com/gclox/gclox/pkg/bytecode"
	"github.com/gclox/gclox/pkg/lexer"
)

// identifierConstant interns tok's lexeme and returns its constant-pool
// index, for OP_*_GLOBAL operands (globals are looked up by name at
// runtime, unlike locals which are pure stack slots).
func (p *Parser) identifierConstant(tok lexer.Token) byte {
	name := p.gc.CopyString(tok.Lexeme(p.source), p.roots)
	return p.makeConstant(bytecode.ObjValue(name))
}

func identifiersEqual(a, b lexer.Token, source string) bool {
	return a.Lexeme(source) == b.Lexeme(source)
}

// addLocal declares a new local in the current scope. depth is set to -1
// until markInitialized runs, so a reference inside the variable's own
// initializer (`var a = a;`) is a compile error (see resolveLocal), even
// when an enclosing a exists.
func (p *Parser) addLocal(tok lexer.Token) {
	if len(p.compiler.locals) >= maxLocals {
		p.error("Too many local variables in function.")
		return
	}
	p.compiler.locals = append(p.compiler.locals, local{
		name:  tok.Lexeme(p.source),
		depth: -1,
	})
}

// declareVariable binds the just-parsed identifier token as a local if
// we're inside a scope (globals are declared lazily, by name, at
// defineVariable instead). Redeclaring a name already local to *this* block
// is an error; shadowing an outer block's local is fine.
func (p *Parser) declareVariable(tok lexer.Token) {
	if p.compiler.scopeDepth == 0 {
		return
	}
	for i := len(p.compiler.locals) - 1; i >= 0; i-- {
		l := p.compiler.locals[i]
		if l.depth != -1 && l.depth < p.compiler.scopeDepth {
			break
		}
		if l.name == tok.Lexeme(p.source) {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(tok)
}

// parseVariable consumes an identifier and returns the constant-pool
// index to use with OP_DEFINE_GLOBAL (0 and unused if this ends up being
// a local, since locals need no runtime name lookup).
func (p *Parser) parseVariable(errorMessage string) byte {
	p.consume(lexer.Identifier, errorMessage)
	p.declareVariable(p.previous)
	if p.compiler.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous)
}

func (p *Parser) markInitialized() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	p.compiler.locals[len(p.compiler.locals)-1].depth = p.compiler.scopeDepth
}

// defineVariable emits the global-binding instruction, or does nothing
// for a local (whose value is already sitting in the right stack slot,
// per clox's "locals live where they're pushed" scheme).
func (p *Parser) defineVariable(global byte) {
	if p.compiler.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitOp(bytecode.OpDefineGlobal)
	p.emitByte(global)
}

// resolveLocal searches c's locals from innermost to outermost, -1 if
// not found. A match still mid-initializing (depth == -1) is the `var a
// = a;` self-reference error.
func (p *Parser) resolveLocal(c *Compiler, tok lexer.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == tok.Lexeme(p.source) {
			if c.locals[i].depth == -1 {
				p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue finds tok as a variable captured from an enclosing
// function, recursing outward and threading each intermediate function's
// own upvalue list along the way - clox's "upvalues of upvalues" scheme,
// which is how a doubly-nested closure reaches a grandparent's local.
func (p *Parser) resolveUpvalue(c *Compiler, tok lexer.Token) int {
	if c.enclosing == nil {
		return -1
	}
	if local := p.resolveLocal(c.enclosing, tok); local != -1 {
		c.enclosing.locals[local].isCaptured = true
		return p.addUpvalue(c, byte(local), true)
	}
	if upvalue := p.resolveUpvalue(c.enclosing, tok); upvalue != -1 {
		return p.addUpvalue(c, byte(upvalue), false)
	}
	return -1
}

// addUpvalue records one upvalue slot on c, reusing an existing entry if
// the same (index, isLocal) pair was already captured - so a function
// referencing the same outer variable twice gets one upvalue slot, not
// two.
func (p *Parser) addUpvalue(c *Compiler, index byte, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxUpvalues {
		p.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1
}

// namedVariable compiles a bare identifier reference, resolving it as a
// local, an upvalue, or (by default) a global, and emits the matching
// get or set instruction depending on whether it's immediately followed
// by `=` in an assignable context.
func (p *Parser) namedVariable(tok lexer.Token, canAssign bool) {
	var getOp, setOp bytecode.OpCode
	var arg int

	if local := p.resolveLocal(p.compiler, tok); local != -1 {
		getOp, setOp = bytecode.OpGetLocal, bytecode.OpSetLocal
		arg = local
	} else if uv := p.resolveUpvalue(p.compiler, tok); uv != -1 {
		getOp, setOp = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue
		arg = uv
	} else {
		getOp, setOp = bytecode.OpGetGlobal, bytecode.OpSetGlobal
		arg = int(p.identifierConstant(tok))
	}

	if canAssign && p.match(lexer.Equal) {
		p.expression()
		p.emitOp(setOp)
		p.emitByte(byte(arg))
	} else {
		p.emitOp(getOp)
		p.emitByte(byte(arg))
	}
}
