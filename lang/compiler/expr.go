package compiler

import "github.com/mtkrol/loxvm/lang/token"

// precedence is the Pratt ladder from the least to the most binding:
// None < Assignment < Ternary < Or < And < Equality < Comparison < Term <
// Factor < Unary < Call < Primary.
type precedence uint8

const (
	precNone precedence = iota
	precAssignment
	precTernary
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

var rules [256]parseRule

func init() {
	rules[token.LPAREN] = parseRule{(*Compiler).grouping, (*Compiler).call, precCall}
	rules[token.DOT] = parseRule{nil, (*Compiler).dot, precCall}
	rules[token.MINUS] = parseRule{(*Compiler).unary, (*Compiler).binary, precTerm}
	rules[token.PLUS] = parseRule{nil, (*Compiler).binary, precTerm}
	rules[token.SLASH] = parseRule{nil, (*Compiler).binary, precFactor}
	rules[token.STAR] = parseRule{nil, (*Compiler).binary, precFactor}
	rules[token.AMP] = parseRule{nil, (*Compiler).binary, precFactor}
	rules[token.PIPE] = parseRule{nil, (*Compiler).binary, precFactor}
	rules[token.BANG] = parseRule{(*Compiler).unary, nil, precNone}
	rules[token.BANG_EQ] = parseRule{nil, (*Compiler).binary, precEquality}
	rules[token.EQ_EQ] = parseRule{nil, (*Compiler).binary, precEquality}
	rules[token.GT] = parseRule{nil, (*Compiler).binary, precComparison}
	rules[token.GT_EQ] = parseRule{nil, (*Compiler).binary, precComparison}
	rules[token.LT] = parseRule{nil, (*Compiler).binary, precComparison}
	rules[token.LT_EQ] = parseRule{nil, (*Compiler).binary, precComparison}
	rules[token.IDENT] = parseRule{(*Compiler).variable, nil, precNone}
	rules[token.STRING] = parseRule{(*Compiler).string, nil, precNone}
	rules[token.NUMBER] = parseRule{(*Compiler).number, nil, precNone}
	rules[token.AND] = parseRule{nil, (*Compiler).and_, precAnd}
	rules[token.OR] = parseRule{nil, (*Compiler).or_, precOr}
	rules[token.QMARK] = parseRule{nil, (*Compiler).ternary, precTernary}
	rules[token.FALSE] = parseRule{(*Compiler).literal, nil, precNone}
	rules[token.TRUE] = parseRule{(*Compiler).literal, nil, precNone}
	rules[token.NIL] = parseRule{(*Compiler).literal, nil, precNone}
	rules[token.THIS] = parseRule{(*Compiler).this, nil, precNone}
	rules[token.SUPER] = parseRule{(*Compiler).super, nil, precNone}
}

func getRule(t token.Token) parseRule { return rules[t] }

// expression compiles one expression at the lowest meaningful precedence:
// assignment. Every statement-level caller goes through here; only the
// parse rules themselves call parsePrecedence with a higher minimum.
func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

// parsePrecedence implements parse_precedence(min): consume one token,
// dispatch its prefix rule, then keep consuming infix operators whose
// precedence is at least min.
func (c *Compiler) parsePrecedence(min precedence) {
	c.advance()
	prefix := getRule(c.prev.Type).prefix
	if prefix == nil {
		c.error("expect expression")
		return
	}
	canAssign := min <= precAssignment
	prefix(c, canAssign)

	for min <= getRule(c.cur.Type).prec {
		c.advance()
		infix := getRule(c.prev.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQ) {
		c.error("invalid assignment target")
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(token.RPAREN, "expect ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	op := c.prev.Type
	c.parsePrecedence(precUnary)
	switch op {
	case token.MINUS:
		c.emitOp(Negate)
	case token.BANG:
		c.emitOp(Not)
	}
}

func (c *Compiler) binary(canAssign bool) {
	op := c.prev.Type
	rule := getRule(op)
	c.parsePrecedence(rule.prec + 1)
	switch op {
	case token.PLUS:
		c.emitOp(Add)
	case token.MINUS:
		c.emitOp(Subtract)
	case token.STAR:
		c.emitOp(Multiply)
	case token.SLASH:
		c.emitOp(Divide)
	case token.AMP:
		c.emitOp(BitwiseAnd)
	case token.PIPE:
		c.emitOp(BitwiseOr)
	case token.BANG_EQ:
		c.emitOp2(Equal, Not)
	case token.EQ_EQ:
		c.emitOp(Equal)
	case token.GT:
		c.emitOp(Greater)
	case token.GT_EQ:
		c.emitOp2(Less, Not)
	case token.LT:
		c.emitOp(Less)
	case token.LT_EQ:
		c.emitOp2(Greater, Not)
	}
}

func (c *Compiler) literal(canAssign bool) {
	switch c.prev.Type {
	case token.FALSE:
		c.emitOp(False)
	case token.TRUE:
		c.emitOp(True)
	case token.NIL:
		c.emitOp(Nil)
	}
}

// and_ short-circuits: if the left operand is falsey, skip the right operand
// and leave the left value (still on the stack under the jump) as the
// result; otherwise pop it and evaluate the right operand.
func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(JumpIfFalse)
	c.emitOp(Pop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

// or_ short-circuits the other way: if the left operand is truthy, jump
// straight past the right operand.
func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(JumpIfFalse)
	endJump := c.emitJump(Jump)
	c.patchJump(elseJump)
	c.emitOp(Pop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

// ternary compiles `cond ? then : else` with real branching bytecode: only
// one arm ever executes. The then-branch is parsed at Assignment so a bare
// assignment may appear there; the else-branch is parsed at Ternary itself
// so `a ? b : c ? d : e` associates to the right.
func (c *Compiler) ternary(canAssign bool) {
	elseJump := c.emitJump(JumpIfFalse)
	c.emitOp(Pop)
	c.parsePrecedence(precAssignment)
	thenJump := c.emitJump(Jump)

	c.patchJump(elseJump)
	c.emitOp(Pop)
	c.consume(token.COLON, "expect ':' after then-branch of ternary")
	c.parsePrecedence(precTernary)

	c.patchJump(thenJump)
}

// argumentList compiles a parenthesized, comma-separated argument list and
// returns the argument count. The opening '(' has already been consumed by
// the caller.
func (c *Compiler) argumentList() int {
	argc := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if argc == maxArgs {
				c.error("can't have more than 255 arguments")
			}
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expect ')' after arguments")
	return argc
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitByteArg(Call, argc)
}

func (c *Compiler) emitInvoke(op Opcode, idx, argc int) {
	c.emitOp(op)
	c.emitByte(byte(idx))
	c.emitByte(byte(argc))
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(token.IDENT, "expect property name after '.'")
	name := c.mangle(c.prev.Lexeme)
	idx := c.identifierConstant(name)

	switch {
	case canAssign && c.match(token.EQ):
		c.expression()
		c.emitByteArg(SetProperty, idx)
	case c.match(token.LPAREN):
		argc := c.argumentList()
		c.emitInvoke(Invoke, idx, argc)
	default:
		c.emitByteArg(GetProperty, idx)
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.prev.Lexeme, canAssign)
}

// namedVariable resolves name through locals, then upvalues, then falls back
// to treating it as a global, and compiles either a read or (when canAssign
// and a following '=' is present) a write.
func (c *Compiler) namedVariable(name string, canAssign bool) {
	name = c.mangle(name)

	var getOp, setOp Opcode
	var arg int
	var isConst bool

	if idx := c.resolveLocal(c.fn, name); idx != -1 {
		getOp, setOp = GetLocal, SetLocal
		arg, isConst = idx, c.fn.locals[idx].isConst
	} else if idx := c.resolveUpvalue(c.fn, name); idx != -1 {
		getOp, setOp = GetUpvalue, SetUpvalue
		arg, isConst = idx, c.fn.proto.Upvalues[idx].IsConst
	} else {
		getOp, setOp = GetGlobal, SetGlobal
		arg, isConst = c.identifierConstant(name), c.constGlobals[name]
	}

	if canAssign && c.match(token.EQ) {
		if isConst {
			c.error("can't assign to a const variable")
		}
		c.expression()
		switch setOp {
		case SetLocal:
			c.emitSlot(setOp, arg)
		case SetUpvalue:
			c.emitByteArg(setOp, arg)
		default:
			c.emitGlobal(setOp, arg)
		}
		return
	}

	switch getOp {
	case GetLocal:
		c.emitSlot(getOp, arg)
	case GetUpvalue:
		c.emitByteArg(getOp, arg)
	default:
		c.emitGlobal(getOp, arg)
	}
}

func (c *Compiler) this(canAssign bool) {
	if c.fn.class == nil {
		c.error("can't use 'this' outside a class")
		return
	}
	c.namedVariable("this", false)
}

func (c *Compiler) super(canAssign bool) {
	if c.fn.class == nil {
		c.error("can't use 'super' outside a class")
	} else if !c.fn.class.hasSuperclass {
		c.error("can't use 'super' in a class with no superclass")
	}

	c.consume(token.DOT, "expect '.' after 'super'")
	c.consume(token.IDENT, "expect superclass method name")
	name := c.identifierConstant(c.prev.Lexeme)

	c.namedVariable("this", false)
	if c.match(token.LPAREN) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitInvoke(SuperInvoke, name, argc)
	} else {
		c.namedVariable("super", false)
		c.emitByteArg(GetSuper, name)
	}
}
