package compiler

import (
	"strconv"

	"github.com/gclox/gclox/pkg/bytecode"
	"github.com/gclox/gclox/pkg/lexer"
)

// precedence orders gclox's binary operators from loosest to tightest
// binding - the Pratt parser's core trick: parsePrecedence(p) consumes
// everything that binds at least as tightly as p.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is the grammar table: for every token kind, what prefix
// expression it can start (if any), what infix expression it can
// continue (if any), and at what precedence the infix form binds. This
// is the single source of truth a recursive-descent parser would
// otherwise scatter across many parseXxx methods - the defining idiom of
// Pratt parsing, grounded on the Crafting Interpreters table this
// specification's VM and bytecode format are themselves drawn from.
var rules map[lexer.Kind]parseRule

func init() {
	rules = map[lexer.Kind]parseRule{
		lexer.LeftParen:    {prefix: (*Parser).grouping, infix: (*Parser).call, precedence: precCall},
		lexer.Minus:        {prefix: (*Parser).unary, infix: (*Parser).binary, precedence: precTerm},
		lexer.Plus:         {infix: (*Parser).binary, precedence: precTerm},
		lexer.Slash:        {infix: (*Parser).binary, precedence: precFactor},
		lexer.Star:         {infix: (*Parser).binary, precedence: precFactor},
		lexer.Bang:         {prefix: (*Parser).unary},
		lexer.BangEqual:    {infix: (*Parser).binary, precedence: precEquality},
		lexer.EqualEqual:   {infix: (*Parser).binary, precedence: precEquality},
		lexer.Greater:      {infix: (*Parser).binary, precedence: precComparison},
		lexer.GreaterEqual: {infix: (*Parser).binary, precedence: precComparison},
		lexer.Less:         {infix: (*Parser).binary, precedence: precComparison},
		lexer.LessEqual:    {infix: (*Parser).binary, precedence: precComparison},
		lexer.Identifier:   {prefix: (*Parser).variable},
		lexer.String:       {prefix: (*Parser).stringLiteral},
		lexer.Number:       {prefix: (*Parser).number},
		lexer.And:          {infix: (*Parser).and_, precedence: precAnd},
		lexer.False:        {prefix: (*Parser).literal},
		lexer.Nil:          {prefix: (*Parser).literal},
		lexer.Or:           {infix: (*Parser).or_, precedence: precOr},
		lexer.True:         {prefix: (*Parser).literal},
	}
}

func (p *Parser) getRule(kind lexer.Kind) parseRule {
	return rules[kind]
}

// parsePrecedence is the Pratt parser's engine: consume one prefix
// expression, then keep consuming infix continuations as long as the
// next token's precedence is at least prec.
func (p *Parser) parsePrecedence(prec precedence) {
	p.advance()
	prefixRule := p.getRule(p.previous.Kind).prefix
	if prefixRule == nil {
		p.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	prefixRule(p, canAssign)

	for prec <= p.getRule(p.current.Kind).precedence {
		p.advance()
		infixRule := p.getRule(p.previous.Kind).infix
		infixRule(p, canAssign)
	}

	if canAssign && p.match(lexer.Equal) {
		p.error("Invalid assignment target.")
	}
}

func (p *Parser) expression() {
	p.parsePrecedence(precAssignment)
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(lexer.RightParen, "Expect ')' after expression.")
}

func (p *Parser) number(canAssign bool) {
	n, err := strconv.ParseFloat(p.previous.Lexeme(p.source), 64)
	if err != nil {
		p.error("Invalid number literal.")
		return
	}
	p.emitConstant(bytecode.NumberValue(n))
}

// stringLiteral strips the surrounding quotes the lexer included in the
// token's lexeme.
func (p *Parser) stringLiteral(canAssign bool) {
	raw := p.previous.Lexeme(p.source)
	chars := raw[1 : len(raw)-1]
	s := p.gc.CopyString(chars, p.roots)
	p.emitConstant(bytecode.ObjValue(s))
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

func (p *Parser) literal(canAssign bool) {
	switch p.previous.Kind {
	case lexer.False:
		p.emitOp(bytecode.OpFalse)
	case lexer.Nil:
		p.emitOp(bytecode.OpNil)
	case lexer.True:
		p.emitOp(bytecode.OpTrue)
	}
}

func (p *Parser) unary(canAssign bool) {
	opKind := p.previous.Kind
	p.parsePrecedence(precUnary)
	switch opKind {
	case lexer.Bang:
		p.emitOp(bytecode.OpNot)
	case lexer.Minus:
		p.emitOp(bytecode.OpNegate)
	}
}

func (p *Parser) binary(canAssign bool) {
	opKind := p.previous.Kind
	rule := p.getRule(opKind)
	p.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case lexer.BangEqual:
		p.emitOps(bytecode.OpEqual, bytecode.OpNot)
	case lexer.EqualEqual:
		p.emitOp(bytecode.OpEqual)
	case lexer.Greater:
		p.emitOp(bytecode.OpGreater)
	case lexer.GreaterEqual:
		p.emitOps(bytecode.OpLess, bytecode.OpNot)
	case lexer.Less:
		p.emitOp(bytecode.OpLess)
	case lexer.LessEqual:
		p.emitOps(bytecode.OpGreater, bytecode.OpNot)
	case lexer.Plus:
		p.emitOp(bytecode.OpAdd)
	case lexer.Minus:
		p.emitOp(bytecode.OpSubtract)
	case lexer.Star:
		p.emitOp(bytecode.OpMultiply)
	case lexer.Slash:
		p.emitOp(bytecode.OpDivide)
	}
}

// and_ short-circuits: if the left operand is falsey, skip the right
// operand entirely and leave the falsey value as the result.
func (p *Parser) and_(canAssign bool) {
	endJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

// or_ short-circuits the other way: if the left operand is truthy, skip
// the right operand.
func (p *Parser) or_(canAssign bool) {
	elseJump := p.emitJump(bytecode.OpJumpIfFalse)
	endJump := p.emitJump(bytecode.OpJump)

	p.patchJump(elseJump)
	p.emitOp(bytecode.OpPop)

	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *Parser) call(canAssign bool) {
	argCount := p.argumentList()
	p.emitOp(bytecode.OpCall)
	p.emitByte(argCount)
}

func (p *Parser) argumentList() byte {
	var count int
	if !p.check(lexer.RightParen) {
		for {
			p.expression()
			if count == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			count++
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume(lexer.RightParen, "Expect ')' after arguments.")
	return byte(count)
}
