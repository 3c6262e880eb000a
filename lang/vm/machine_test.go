package vm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/mtkrol/loxvm/lang/compiler"
	"github.com/mtkrol/loxvm/lang/intern"
	"github.com/mtkrol/loxvm/lang/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) (string, *vm.Thread, error) {
	t.Helper()
	pool := intern.New()
	proto, errs := compiler.Compile(source, pool)
	require.Empty(t, errs, "compile errors")
	require.NotNil(t, proto)

	var out bytes.Buffer
	th := vm.NewThread(pool)
	th.Stdout = &out
	_, err := th.RunProgram(context.Background(), proto)
	return out.String(), th, err
}

func TestArithmetic(t *testing.T) {
	out, _, err := run(t, `print 1 + 2 * 3 - 4 / 2;`)
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, _, err := run(t, `print "foo" + "bar";`)
	require.NoError(t, err)
	assert.Equal(t, "foobar\n", out)
}

func TestBitwiseOperators(t *testing.T) {
	out, _, err := run(t, `print (6 & 3) + (8 | 1);`)
	require.NoError(t, err)
	assert.Equal(t, "11\n", out)
}

func TestTruthiness(t *testing.T) {
	out, _, err := run(t, `
		if (0) print "zero is truthy"; else print "zero is falsey";
		if ("") print "empty string is truthy"; else print "empty string is falsey";
		if (nil) print "nil is truthy"; else print "nil is falsey";
	`)
	require.NoError(t, err)
	assert.Equal(t, "zero is truthy\nempty string is truthy\nnil is falsey\n", out)
}

func TestGlobalVariables(t *testing.T) {
	_, th, err := run(t, `var x = 10; x = x + 5;`)
	require.NoError(t, err)
	v, ok := th.Global("x")
	require.True(t, ok)
	assert.Equal(t, vm.Number(15), v)
}

func TestConstGlobalAssignmentIsCompileError(t *testing.T) {
	pool := intern.New()
	_, errs := compiler.Compile(`const x = 1; x = 2;`, pool)
	assert.NotEmpty(t, errs)
}

func TestLocalScoping(t *testing.T) {
	out, _, err := run(t, `
		var x = "outer";
		{
			var x = "inner";
			print x;
		}
		print x;
	`)
	require.NoError(t, err)
	assert.Equal(t, "inner\nouter\n", out)
}

func TestClosureSharedUpvalue(t *testing.T) {
	out, _, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun inc() {
				count = count + 1;
				print count;
			}
			return inc;
		}
		var counter = makeCounter();
		counter();
		counter();
		counter();
	`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestClosureCapturesAfterScopeCloses(t *testing.T) {
	out, _, err := run(t, `
		fun wrap(label) {
			fun show() {
				print label;
			}
			return show;
		}
		var a = wrap("a");
		var b = wrap("b");
		a();
		b();
	`)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)
}

func TestClosureCapturesMultipleUpvaluesAtDistinctSlots(t *testing.T) {
	out, _, err := run(t, `
		fun makePair() {
			var a = 1;
			var b = 2;
			var c = 3;
			fun show() {
				print a;
				print b;
				print c;
			}
			a = 10;
			c = 30;
			return show;
		}
		makePair()();
	`)
	require.NoError(t, err)
	assert.Equal(t, "10\n2\n30\n", out)
}

func TestIfElse(t *testing.T) {
	out, _, err := run(t, `
		var x = 5;
		if (x > 3) print "big"; else print "small";
	`)
	require.NoError(t, err)
	assert.Equal(t, "big\n", out)
}

func TestWhileLoop(t *testing.T) {
	out, _, err := run(t, `
		var i = 0;
		while (i < 3) {
			print i;
			i = i + 1;
		}
	`)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestForLoopBreakContinue(t *testing.T) {
	out, _, err := run(t, `
		for (var i = 0; i < 10; i = i + 1) {
			if (i == 2) continue;
			if (i == 5) break;
			print i;
		}
	`)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n3\n4\n", out)
}

func TestSwitchStatement(t *testing.T) {
	out, _, err := run(t, `
		fun describe(n) {
			switch (n) {
				case 1: print "one";
				case 2: print "two";
				default: print "other";
			}
		}
		describe(1);
		describe(2);
		describe(3);
	`)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nother\n", out)
}

func TestTernary(t *testing.T) {
	out, _, err := run(t, `print 1 < 2 ? "yes" : "no";`)
	require.NoError(t, err)
	assert.Equal(t, "yes\n", out)
}

func TestLogicalShortCircuit(t *testing.T) {
	out, _, err := run(t, `
		fun sideEffect(v) {
			print v;
			return v;
		}
		if (false and sideEffect("and-rhs")) {}
		if (true or sideEffect("or-rhs")) {}
		print "done";
	`)
	require.NoError(t, err)
	assert.Equal(t, "done\n", out)
}

func TestOnceRunsOncePerCall(t *testing.T) {
	out, _, err := run(t, `
		fun f() {
			for (var i = 0; i < 3; i = i + 1) {
				once { print "once"; }
			}
		}
		f();
		f();
	`)
	require.NoError(t, err)
	assert.Equal(t, "once\nonce\n", out)
}

func TestClassesMethodsAndFields(t *testing.T) {
	out, _, err := run(t, `
		class Greeter {
			init(name) {
				this.name = name;
			}
			greet() {
				print "hello " + this.name;
			}
		}
		var g = Greeter("world");
		g.greet();
	`)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	out, _, err := run(t, `
		class Animal {
			speak() {
				print "generic noise";
			}
		}
		class Dog < Animal {
			speak() {
				super.speak();
				print "woof";
			}
		}
		Dog().speak();
	`)
	require.NoError(t, err)
	assert.Equal(t, "generic noise\nwoof\n", out)
}

func TestBoundMethodSurvivesDetachment(t *testing.T) {
	out, _, err := run(t, `
		class Box {
			init(v) { this.v = v; }
			get() { return this.v; }
		}
		var b = Box(42);
		var m = b.get;
		print m();
	`)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestNativeFunctions(t *testing.T) {
	out, _, err := run(t, `
		class Box {}
		var b = Box();
		setfield(b, "x", 1);
		print hasfield(b, "x");
		print hasfield(b, "y");
		deletefield(b, "x");
		print hasfield(b, "x");
	`)
	require.NoError(t, err)
	assert.Equal(t, "true\nfalse\nfalse\n", out)
}

func TestRandomNativeStaysInHalfOpenRange(t *testing.T) {
	out, _, err := run(t, `
		var i = 0;
		while (i < 50) {
			var n = random(3, 7);
			if (n < 3 or n >= 7) {
				print "out of range";
			}
			i = i + 1;
		}
		print "done";
	`)
	require.NoError(t, err)
	assert.Equal(t, "done\n", out)
}

func TestRandomNativeRejectsBadBounds(t *testing.T) {
	_, _, err := run(t, `random(5, 5);`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lo must be less than hi")
}

func TestRuntimeErrorUndefinedGlobal(t *testing.T) {
	_, _, err := run(t, `print undefinedThing;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined variable")
}

func TestRuntimeErrorTypeMismatch(t *testing.T) {
	_, _, err := run(t, `print 1 + "a";`)
	require.Error(t, err)
}

func TestRuntimeErrorStackOverflow(t *testing.T) {
	_, _, err := run(t, `
		fun recurse() { return recurse(); }
		recurse();
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack overflow")
}

func TestPrivateMangling(t *testing.T) {
	out, _, err := run(t, `
		class Counter {
			init() { this.__count = 0; }
			bump() { this.__count = this.__count + 1; return this.__count; }
		}
		var c = Counter();
		print c.bump();
		print c.bump();
	`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", out)
}
