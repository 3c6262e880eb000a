// Package compiler implements the single-pass Pratt compiler that turns a
// token stream directly into bytecode: there is no intermediate AST. The
// compiler maintains one funcState per function currently being compiled
// (nested on a Go call stack of recursive-descent calls, mirroring lexical
// nesting), resolves identifiers to locals, upvalues, or globals as it goes,
// and tracks enough loop/class state to emit break/continue jumps and
// super-calls.
package compiler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mtkrol/loxvm/lang/intern"
	"github.com/mtkrol/loxvm/lang/scanner"
	"github.com/mtkrol/loxvm/lang/token"
)

// CompileError is a single compile-time diagnostic, with the source line and
// a human-readable message.
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

// PrintErrors writes one "path:line: message" diagnostic per error to w, the
// format shared by the REPL and file-run CLI paths.
func PrintErrors(w io.Writer, path string, errs []*CompileError) {
	for _, e := range errs {
		fmt.Fprintf(w, "%s:%d: %s\n", path, e.Line, e.Message)
	}
}

const (
	maxLocals    = 1024
	maxUpvalues  = 255
	maxArgs      = 255
	maxConstants = 1 << 24
	maxOnceBits  = 64
)

type local struct {
	name        string
	depth       int
	isConst     bool
	isCaptured  bool
	initialized bool
}

// loopState records enough about an enclosing loop to compile break and
// continue: the scope depth to unwind to, the backward-jump target for
// continue, and the forward jump sites break statements must patch once the
// loop's exit point is known.
type loopState struct {
	enclosing      *loopState
	depth          int
	continueTarget int
	breaks         []int
}

type classState struct {
	enclosing     *classState
	name          string
	hasSuperclass bool
}

// funcState holds the compiler's per-function bookkeeping: its locals, the
// Proto being built, the enclosing function (for upvalue resolution), the
// active loop and class (if any), and the bit position of the next `once`
// tracker.
type funcState struct {
	enclosing  *funcState
	proto      *Proto
	locals     []local
	scopeDepth int
	loop       *loopState
	class      *classState

	onceNext  int // next free bit (0..63) in the once tracker
	onceLocal int // slot of the hidden once-tracker local, -1 until reserveOnceTracker runs
}

// Compiler compiles a single source string into a root Proto representing
// the top-level script.
type Compiler struct {
	scan *scanner.Scanner
	pool *intern.Pool

	cur, prev scanner.Tok
	hadError  bool
	panicking bool
	errs      []*CompileError

	fn           *funcState
	constGlobals map[string]bool
}

// Compile compiles source into a top-level function Proto. If any compile
// errors were reported, the returned Proto is nil.
func Compile(source string, pool *intern.Pool) (*Proto, []*CompileError) {
	c := &Compiler{scan: scanner.New(source), pool: pool, constGlobals: map[string]bool{}}
	c.beginFunction("", KindScript)

	c.advance()
	c.reserveOnceTracker()
	for !c.match(token.EOF) {
		c.declaration()
	}

	proto := c.endFunction()
	if c.hadError {
		return nil, c.errs
	}
	return proto, nil
}

// ---- token stream plumbing ----

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.scan.Scan()
		if c.cur.Type != token.ILLEGAL {
			break
		}
		c.errorAtCurrent(c.cur.Lexeme)
	}
}

func (c *Compiler) check(t token.Token) bool { return c.cur.Type == t }

func (c *Compiler) match(t token.Token) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Token, msg string) {
	if c.cur.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *Compiler) errorAt(tok scanner.Tok, msg string) {
	if c.panicking {
		return
	}
	c.panicking = true
	c.hadError = true
	c.errs = append(c.errs, &CompileError{Line: tok.Line, Message: msg})
}

// synchronize discards tokens until a likely statement boundary, to avoid a
// cascade of spurious errors after the first one.
func (c *Compiler) synchronize() {
	c.panicking = false
	for c.cur.Type != token.EOF {
		if c.prev.Type == token.SEMI {
			return
		}
		switch c.cur.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF,
			token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// ---- chunk / emit helpers ----

func (c *Compiler) chunk() *Chunk { return c.fn.proto.Chunk }

func (c *Compiler) emitByte(b byte)         { c.chunk().Write(b, c.prev.Line) }
func (c *Compiler) emitOp(op Opcode)        { c.emitByte(byte(op)) }
func (c *Compiler) emitOp2(op1, op2 Opcode) { c.emitOp(op1); c.emitOp(op2) }

func (c *Compiler) emitConstant(v any) {
	idx := c.addConstant(v)
	c.chunk().WriteConstant(idx, c.prev.Line)
}

func (c *Compiler) addConstant(v any) int {
	if len(c.chunk().Constants) >= maxConstants {
		c.error("too many constants in one chunk")
		return 0
	}
	return c.chunk().AddConstant(v)
}

func (c *Compiler) emitGlobal(kind Opcode, idx int) {
	c.chunk().WriteGlobal(kind, idx, c.prev.Line)
}

func (c *Compiler) emitSlot(op Opcode, slot int) {
	c.chunk().WriteSlot(op, slot, c.prev.Line)
}

func (c *Compiler) emitByteArg(op Opcode, arg int) {
	c.chunk().WriteByteArg(op, arg, c.prev.Line)
}

func (c *Compiler) emitJump(op Opcode) int {
	return c.chunk().WriteJump(op, c.prev.Line)
}

func (c *Compiler) patchJump(at int) {
	if !c.chunk().PatchJump(at) {
		c.error("loop body too large")
	}
}

func (c *Compiler) emitLoop(start int) {
	if !c.chunk().WriteLoop(start, c.prev.Line) {
		c.error("loop body too large")
	}
}

func (c *Compiler) emitReturn() {
	if c.fn.proto.Kind == KindInitializer {
		c.emitSlot(GetLocal, 0)
	} else {
		c.emitOp(Nil)
	}
	c.emitOp(Return)
}

// identifierConstant interns name and adds it to the constant pool,
// returning its index, for use as a global/property/method name operand.
func (c *Compiler) identifierConstant(name string) int {
	return c.addConstant(c.pool.Intern(name))
}

// mangle implements the per-class "private name" simulation: inside a class
// named C, a bare identifier beginning with "__" is rewritten to "__C_name"
// so that same-named privates in unrelated classes cannot collide. It is
// applied uniformly to variable names and to field/property names reached
// through a dot expression.
func (c *Compiler) mangle(name string) string {
	if !strings.HasPrefix(name, "__") || c.fn.class == nil {
		return name
	}
	return fmt.Sprintf("__%s_%s", c.fn.class.name, name[2:])
}

// ---- scopes and locals ----

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	locals := c.fn.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.fn.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			c.emitOp(CloseUpvalue)
		} else {
			c.emitOp(Pop)
		}
		locals = locals[:len(locals)-1]
	}
	c.fn.locals = locals
}

func (c *Compiler) addLocal(name string, isConst bool) {
	if len(c.fn.locals) >= maxLocals {
		c.error("too many local variables in function")
		return
	}
	c.fn.locals = append(c.fn.locals, local{name: name, depth: -1, isConst: isConst})
	if len(c.fn.locals) > c.fn.proto.FrameSize {
		c.fn.proto.FrameSize = len(c.fn.locals)
	}
}

// declareVariable registers name as a local of the current scope (no-op at
// global scope, where variables live in the globals table instead). It
// rejects a duplicate name already declared at the same depth.
func (c *Compiler) declareVariable(name string, isConst bool) {
	if c.fn.scopeDepth == 0 {
		return
	}
	for i := len(c.fn.locals) - 1; i >= 0; i-- {
		l := c.fn.locals[i]
		if l.depth != -1 && l.depth < c.fn.scopeDepth {
			break
		}
		if l.name == name {
			c.error(fmt.Sprintf("already a variable named %q in this scope", name))
		}
	}
	c.addLocal(name, isConst)
}

func (c *Compiler) markInitialized() {
	if c.fn.scopeDepth == 0 {
		return
	}
	last := &c.fn.locals[len(c.fn.locals)-1]
	last.depth = c.fn.scopeDepth
	last.initialized = true
}

// resolveLocal searches fn's locals from innermost out. It reports a compile
// error if name refers to a local still being initialized (read in its own
// initializer).
func (c *Compiler) resolveLocal(fn *funcState, name string) int {
	for i := len(fn.locals) - 1; i >= 0; i-- {
		if fn.locals[i].name == name {
			if !fn.locals[i].initialized {
				c.error("can't read local variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue implements the spec's recursive upvalue resolution: if name
// is a local of some enclosing function, that local is marked captured and a
// chain of upvalue descriptors is added from that function down to fn.
func (c *Compiler) resolveUpvalue(fn *funcState, name string) int {
	if fn.enclosing == nil {
		return -1
	}
	if idx := c.resolveLocal(fn.enclosing, name); idx != -1 {
		fn.enclosing.locals[idx].isCaptured = true
		return c.addUpvalue(fn, uint8(idx), true, fn.enclosing.locals[idx].isConst)
	}
	if idx := c.resolveUpvalue(fn.enclosing, name); idx != -1 {
		return c.addUpvalue(fn, uint8(idx), false, fn.enclosing.proto.Upvalues[idx].IsConst)
	}
	return -1
}

func (c *Compiler) addUpvalue(fn *funcState, index uint8, isLocal, isConst bool) int {
	for i, u := range fn.proto.Upvalues {
		if u.Index == index && u.IsLocal == isLocal {
			return i
		}
	}
	if len(fn.proto.Upvalues) >= maxUpvalues {
		c.error("too many closure variables in function")
		return 0
	}
	fn.proto.Upvalues = append(fn.proto.Upvalues, UpvalueDesc{IsLocal: isLocal, IsConst: isConst, Index: index})
	return len(fn.proto.Upvalues) - 1
}

// ---- function compilation ----

func (c *Compiler) beginFunction(name string, kind FuncKind) {
	fn := &funcState{
		enclosing: c.fn,
		proto:     &Proto{Name: name, Kind: kind, Chunk: &Chunk{}},
		onceLocal: -1,
	}
	if c.fn != nil {
		fn.class = c.fn.class
	}
	c.fn = fn

	// Reserve slot 0: the receiver for methods/initializers, otherwise an
	// unaddressable sentinel so user code can never reference it by name.
	recv := ""
	if kind == KindMethod || kind == KindInitializer {
		recv = "this"
	}
	c.fn.locals = append(c.fn.locals, local{name: recv, depth: 0, initialized: true})
	c.fn.proto.FrameSize = 1
}

func (c *Compiler) endFunction() *Proto {
	c.emitReturn()
	proto := c.fn.proto
	c.fn = c.fn.enclosing
	return proto
}

// reserveOnceTracker unconditionally declares the hidden bitmask local used
// by `once` statements, at the function's outermost scope (the same depth as
// its parameters). It must run there, before the body is compiled, rather
// than lazily at the first `once` site: a `once` statement can appear inside
// a loop, and a lazily-emitted initializer would sit inside the loop's
// repeated bytecode span and reset the tracker every iteration instead of
// once per call.
func (c *Compiler) reserveOnceTracker() {
	c.addLocal(" once", false)
	c.emitConstant(float64(0))
	c.markInitialized()
	c.fn.onceLocal = len(c.fn.locals) - 1
}

// reserveOnceBit allocates the next bit position (0-based) for a `once`
// statement in the current function. Unlike the original implementation this
// simulates (which wasted bit 0), bit 0 is usable, giving 64 `once`
// statements per function instead of 63.
func (c *Compiler) reserveOnceBit() (slot, bit int, ok bool) {
	if c.fn.onceNext >= maxOnceBits {
		c.error("too many 'once' statements in function")
		return 0, 0, false
	}
	bit = c.fn.onceNext
	c.fn.onceNext++
	return c.fn.onceLocal, bit, true
}

// parseVariable consumes an identifier, applies class-private mangling,
// declares it (as a local, if inside a scope), and returns both the mangled
// name and — for a global declaration only — the constant-pool index of its
// name (-1 inside a scope, where declareVariable already reserved a local
// slot instead).
func (c *Compiler) parseVariable(errMsg string, isConst bool) (name string, global int) {
	c.consume(token.IDENT, errMsg)
	name = c.mangle(c.prev.Lexeme)
	c.declareVariable(name, isConst)
	if c.fn.scopeDepth > 0 {
		return name, -1
	}
	global = c.identifierConstant(name)
	if isConst {
		c.constGlobals[name] = true
	}
	return name, global
}

// defineVariable makes a declared variable visible: for a local, that means
// marking it initialized (its slot already holds the initializer's value);
// for a global, it emits DefineGlobal to pop the initializer into the
// globals table.
func (c *Compiler) defineVariable(global int) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitGlobal(DefineGlobal, global)
}

func (c *Compiler) number(canAssign bool) {
	v, err := strconv.ParseFloat(c.prev.Lexeme, 64)
	if err != nil {
		c.error("invalid number literal")
		return
	}
	c.emitConstant(v)
}

func (c *Compiler) string(canAssign bool) {
	lexeme := c.prev.Lexeme
	s := c.pool.Intern(lexeme[1 : len(lexeme)-1])
	c.emitConstant(s)
}
