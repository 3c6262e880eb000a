package compiler_test

import (
	"testing"

	"github.com/mtkrol/loxvm/lang/compiler"
	"github.com/mtkrol/loxvm/lang/intern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, source string) (*compiler.Proto, []*compiler.CompileError) {
	t.Helper()
	return compiler.Compile(source, intern.New())
}

func TestCompileValidProgram(t *testing.T) {
	proto, errs := compile(t, `
		class Shape {
			area() { return 0; }
		}
		class Square < Shape {
			init(side) { this.side = side; }
			area() { return this.side * this.side; }
		}
		var s = Square(4);
		print s.area();
	`)
	require.Empty(t, errs)
	require.NotNil(t, proto)
	assert.Equal(t, "<script>", proto.String())
}

func TestCompileErrorUnterminatedString(t *testing.T) {
	_, errs := compile(t, `print "unterminated;`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorTopLevelReturn(t *testing.T) {
	_, errs := compile(t, `return 1;`)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "top-level")
}

func TestCompileErrorInitializerReturnsValue(t *testing.T) {
	_, errs := compile(t, `
		class C {
			init() { return 1; }
		}
	`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorBreakOutsideLoop(t *testing.T) {
	_, errs := compile(t, `break;`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorContinueOutsideLoop(t *testing.T) {
	_, errs := compile(t, `continue;`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorDuplicateLocal(t *testing.T) {
	_, errs := compile(t, `{ var x = 1; var x = 2; }`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorReadLocalInOwnInitializer(t *testing.T) {
	_, errs := compile(t, `{ var x = x; }`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorConstWithoutInitializer(t *testing.T) {
	_, errs := compile(t, `const x;`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorAssignToConstLocal(t *testing.T) {
	_, errs := compile(t, `{ const x = 1; x = 2; }`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorInvalidAssignmentTarget(t *testing.T) {
	_, errs := compile(t, `1 + 2 = 3;`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorThisOutsideClass(t *testing.T) {
	_, errs := compile(t, `print this;`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorSuperOutsideClass(t *testing.T) {
	_, errs := compile(t, `print super.foo;`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorSuperWithoutSuperclass(t *testing.T) {
	_, errs := compile(t, `
		class C {
			m() { super.m(); }
		}
	`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorClassInheritsFromItself(t *testing.T) {
	_, errs := compile(t, `class C < C {}`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorDuplicateDefaultInSwitch(t *testing.T) {
	_, errs := compile(t, `
		switch (1) {
			default: print "a";
			default: print "b";
		}
	`)
	require.NotEmpty(t, errs)
}

func TestCompileErrorCaseAfterDefault(t *testing.T) {
	_, errs := compile(t, `
		switch (1) {
			default: print "a";
			case 1: print "b";
		}
	`)
	require.NotEmpty(t, errs)
}

func TestCompileSynchronizesAfterError(t *testing.T) {
	_, errs := compile(t, `
		var x = ;
		var y = 1;
	`)
	require.Len(t, errs, 1)
}

func TestPrivateNameMangling(t *testing.T) {
	proto, errs := compile(t, `
		class A {
			init() { this.__secret = 1; }
		}
		class B {
			init() { this.__secret = 2; }
		}
	`)
	require.Empty(t, errs)
	require.NotNil(t, proto)
}

func TestNestedFunctionUpvalues(t *testing.T) {
	proto, errs := compile(t, `
		fun outer() {
			var a = 1;
			fun middle() {
				var b = 2;
				fun inner() {
					return a + b;
				}
				return inner;
			}
			return middle;
		}
	`)
	require.Empty(t, errs)
	require.NotNil(t, proto)
}
