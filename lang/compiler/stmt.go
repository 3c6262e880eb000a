package compiler

import "github.com/mtkrol/loxvm/lang/token"

// declaration is the top of the recursive-descent grammar: a class, a
// function, a var/const binding, or a plain statement. After a panic-mode
// error it synchronizes to the next likely statement boundary.
func (c *Compiler) declaration() {
	switch {
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.match(token.FUN):
		c.funDeclaration()
	case c.match(token.VAR):
		c.varDeclaration(false)
	case c.match(token.CONST):
		c.varDeclaration(true)
	default:
		c.statement()
	}
	if c.panicking {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration(isConst bool) {
	_, global := c.parseVariable("expect variable name", isConst)

	if c.match(token.EQ) {
		c.expression()
	} else {
		if isConst {
			c.error("const declaration requires an initializer")
		}
		c.emitOp(Nil)
	}
	c.consume(token.SEMI, "expect ';' after variable declaration")
	c.defineVariable(global)
}

func (c *Compiler) funDeclaration() {
	name, global := c.parseVariable("expect function name", false)
	c.markInitialized()
	c.function(name, KindFunction)
	c.defineVariable(global)
}

// function compiles a parameter list and body into a nested Proto (name has
// already been mangled and consumed by the caller) and emits the Closure
// instruction that turns it into a runtime value on the enclosing chunk.
func (c *Compiler) function(name string, kind FuncKind) {
	line := c.prev.Line
	c.beginFunction(name, kind)
	c.beginScope()

	c.consume(token.LPAREN, "expect '(' after function name")
	if !c.check(token.RPAREN) {
		for {
			c.fn.proto.Arity++
			if c.fn.proto.Arity > maxArgs {
				c.error("can't have more than 255 parameters")
			}
			c.parseVariable("expect parameter name", false)
			c.markInitialized()
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expect ')' after parameters")
	c.consume(token.LBRACE, "expect '{' before function body")
	c.reserveOnceTracker()
	c.block()

	proto := c.endFunction()
	c.emitClosure(proto, line)
}

// emitClosure pushes a nested Proto as a runtime closure: a function
// constant index followed by one (is_local, index) descriptor pair per
// upvalue, so the VM knows how to capture each one.
func (c *Compiler) emitClosure(proto *Proto, line int) {
	idx := c.addConstant(proto)
	c.chunk().Write(byte(Closure), line)
	c.chunk().Write(byte(idx), line)
	for _, u := range proto.Upvalues {
		loc := byte(0)
		if u.IsLocal {
			loc = 1
		}
		c.chunk().Write(loc, line)
		c.chunk().Write(u.Index, line)
	}
}

func (c *Compiler) classDeclaration() {
	c.consume(token.IDENT, "expect class name")
	nameTok := c.prev
	className := nameTok.Lexeme

	c.declareVariable(className, false)
	nameConst := c.identifierConstant(className)
	global := -1
	if c.fn.scopeDepth == 0 {
		global = nameConst
	}
	c.emitByteArg(Class, nameConst)
	c.defineVariable(global)

	cls := &classState{enclosing: c.fn.class, name: className}
	c.fn.class = cls

	if c.match(token.LT) {
		c.consume(token.IDENT, "expect superclass name")
		superName := c.prev.Lexeme
		if superName == className {
			c.error("a class can't inherit from itself")
		}
		c.namedVariable(superName, false)

		c.beginScope()
		c.addLocal("super", false)
		c.markInitialized()

		c.namedVariable(className, false)
		c.emitOp(Inherit)
		cls.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(token.LBRACE, "expect '{' before class body")
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RBRACE, "expect '}' after class body")
	c.emitOp(Pop)

	if cls.hasSuperclass {
		c.endScope()
	}
	c.fn.class = cls.enclosing
}

func (c *Compiler) method() {
	c.consume(token.IDENT, "expect method name")
	rawName := c.prev.Lexeme
	name := c.mangle(rawName)
	nameConst := c.identifierConstant(name)

	kind := KindMethod
	if rawName == "init" {
		kind = KindInitializer
	}
	c.function(name, kind)

	op := Method
	if kind == KindInitializer {
		op = Initializer
	}
	c.emitByteArg(op, nameConst)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.SWITCH):
		c.switchStatement()
	case c.match(token.ONCE):
		c.onceStatement()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "expect '}' after block")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMI, "expect ';' after value")
	c.emitOp(Print)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMI, "expect ';' after expression")
	c.emitOp(Pop)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "expect '(' after 'if'")
	c.expression()
	c.consume(token.RPAREN, "expect ')' after condition")

	thenJump := c.emitJump(JumpIfFalse)
	c.emitOp(Pop)
	c.statement()

	elseJump := c.emitJump(Jump)
	c.patchJump(thenJump)
	c.emitOp(Pop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	loop := &loopState{enclosing: c.fn.loop, depth: c.fn.scopeDepth, continueTarget: loopStart}
	c.fn.loop = loop

	c.consume(token.LPAREN, "expect '(' after 'while'")
	c.expression()
	c.consume(token.RPAREN, "expect ')' after condition")

	exitJump := c.emitJump(JumpIfFalse)
	c.emitOp(Pop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(Pop)

	for _, b := range loop.breaks {
		c.patchJump(b)
	}
	c.fn.loop = loop.enclosing
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "expect '(' after 'for'")

	switch {
	case c.match(token.SEMI):
	case c.match(token.VAR):
		c.varDeclaration(false)
	case c.match(token.CONST):
		c.varDeclaration(true)
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.check(token.SEMI) {
		c.expression()
		exitJump = c.emitJump(JumpIfFalse)
		c.emitOp(Pop)
	}
	c.consume(token.SEMI, "expect ';' after loop condition")

	continueTarget := loopStart
	if !c.check(token.RPAREN) {
		bodyJump := c.emitJump(Jump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(Pop)

		c.emitLoop(loopStart)
		loopStart = incrementStart
		continueTarget = incrementStart
		c.patchJump(bodyJump)
	}
	c.consume(token.RPAREN, "expect ')' after for clauses")

	loop := &loopState{enclosing: c.fn.loop, depth: c.fn.scopeDepth, continueTarget: continueTarget}
	c.fn.loop = loop

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(Pop)
	}
	for _, b := range loop.breaks {
		c.patchJump(b)
	}
	c.fn.loop = loop.enclosing

	c.endScope()
}

func (c *Compiler) switchStatement() {
	c.consume(token.LPAREN, "expect '(' after 'switch'")
	c.expression()
	c.consume(token.RPAREN, "expect ')' after switch discriminant")
	c.consume(token.LBRACE, "expect '{' before switch body")

	c.beginScope()
	c.addLocal(" switch", false)
	c.markInitialized()
	discSlot := len(c.fn.locals) - 1

	var endJumps []int
	sawDefault := false
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		switch {
		case c.match(token.CASE):
			if sawDefault {
				c.error("'case' can't follow 'default'")
			}
			c.expression()
			c.consume(token.COLON, "expect ':' after case value")
			c.emitSlot(GetLocal, discSlot)
			c.emitOp(Equal)

			nextCase := c.emitJump(JumpIfFalse)
			c.emitOp(Pop)
			for !c.check(token.CASE) && !c.check(token.DEFAULT) &&
				!c.check(token.RBRACE) && !c.check(token.EOF) {
				c.statement()
			}
			endJumps = append(endJumps, c.emitJump(Jump))
			c.patchJump(nextCase)
			c.emitOp(Pop)

		case c.match(token.DEFAULT):
			if sawDefault {
				c.error("switch can't have more than one 'default' clause")
			}
			sawDefault = true
			c.consume(token.COLON, "expect ':' after 'default'")
			for !c.check(token.CASE) && !c.check(token.DEFAULT) &&
				!c.check(token.RBRACE) && !c.check(token.EOF) {
				c.statement()
			}

		default:
			c.errorAtCurrent("expect 'case' or 'default' inside switch body")
			c.advance()
		}
	}
	c.consume(token.RBRACE, "expect '}' after switch body")

	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.endScope()
}

// popLocalsForJump emits the Pop/CloseUpvalue instructions needed to balance
// the stack for a jump out of every scope deeper than targetDepth, without
// touching the compiler's own local bookkeeping (the scopes are still
// lexically open; only a non-local jump is unwinding their stack slots).
func (c *Compiler) popLocalsForJump(targetDepth int) {
	for i := len(c.fn.locals) - 1; i >= 0 && c.fn.locals[i].depth > targetDepth; i-- {
		if c.fn.locals[i].isCaptured {
			c.emitOp(CloseUpvalue)
		} else {
			c.emitOp(Pop)
		}
	}
}

func (c *Compiler) breakStatement() {
	if c.fn.loop == nil {
		c.error("can't use 'break' outside a loop")
		c.consume(token.SEMI, "expect ';' after 'break'")
		return
	}
	c.consume(token.SEMI, "expect ';' after 'break'")
	c.popLocalsForJump(c.fn.loop.depth)
	c.fn.loop.breaks = append(c.fn.loop.breaks, c.emitJump(Jump))
}

func (c *Compiler) continueStatement() {
	if c.fn.loop == nil {
		c.error("can't use 'continue' outside a loop")
		c.consume(token.SEMI, "expect ';' after 'continue'")
		return
	}
	c.consume(token.SEMI, "expect ';' after 'continue'")
	c.popLocalsForJump(c.fn.loop.depth)
	c.emitLoop(c.fn.loop.continueTarget)
}

func (c *Compiler) returnStatement() {
	if c.fn.proto.Kind == KindScript {
		c.error("can't return from top-level code")
	}
	if c.match(token.SEMI) {
		c.emitReturn()
		return
	}
	if c.fn.proto.Kind == KindInitializer {
		c.error("can't return a value from an initializer")
	}
	c.expression()
	c.consume(token.SEMI, "expect ';' after return value")
	c.emitOp(Return)
}

// onceStatement gives S at most one execution per activation of the
// enclosing function: the hidden tracker local is a bitmask, bit b is this
// once's slot, and the guard is (tracker & (1<<b)) == 0.
func (c *Compiler) onceStatement() {
	slot, bit, ok := c.reserveOnceBit()
	if !ok {
		c.statement()
		return
	}
	mask := float64(uint64(1) << uint(bit))

	c.emitSlot(GetLocal, slot)
	c.emitConstant(mask)
	c.emitOp(BitwiseAnd)
	c.emitConstant(float64(0))
	c.emitOp(Equal)

	skip := c.emitJump(JumpIfFalse)
	c.emitOp(Pop)

	c.emitSlot(GetLocal, slot)
	c.emitConstant(mask)
	c.emitOp(BitwiseOr)
	c.emitSlot(SetLocal, slot)
	c.emitOp(Pop)

	c.statement()

	end := c.emitJump(Jump)
	c.patchJump(skip)
	c.emitOp(Pop)
	c.patchJump(end)
}
