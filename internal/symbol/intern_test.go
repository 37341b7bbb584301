package symbol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rbmc/internal/symbol"
)

func TestInternRoundTrip(t *testing.T) {
	s := symbol.NewStore()

	a := s.Intern("x")
	b := s.Intern("x")
	c := s.Intern("y")

	require.Equal(t, a, b, "interning the same text twice returns the same handle")
	require.NotEqual(t, a, c)
	require.Equal(t, "x", s.Text(a))
}

func TestConcatAndSubstring(t *testing.T) {
	s := symbol.NewStore()

	x := s.Intern("foo")
	y := s.Intern("_bar")
	xy := s.Concat(x, y)
	require.Equal(t, "foo_bar", s.Text(xy))

	sub := s.Substring(xy, 0, 3)
	require.Equal(t, "foo", s.Text(sub))
	require.Equal(t, x, sub)
}
