package intern_test

import (
	"testing"

	"github.com/mtkrol/loxvm/lang/intern"
	"github.com/stretchr/testify/require"
)

func TestInternDeduplicates(t *testing.T) {
	p := intern.New()
	a := p.Intern("hello")
	b := p.Intern("hello")
	require.Same(t, a, b, "two handles for equal text must be identity-equal")
}

func TestInternDistinctText(t *testing.T) {
	p := intern.New()
	a := p.Intern("foo")
	b := p.Intern("bar")
	require.NotSame(t, a, b)
}

func TestInternAcrossPools(t *testing.T) {
	// distinct pools intern independently: no identity guarantee across pools.
	p1, p2 := intern.New(), intern.New()
	a := p1.Intern("x")
	b := p2.Intern("x")
	require.Equal(t, a.Go(), b.Go())
}
