package guard_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rbmc/internal/expr"
	"rbmc/internal/guard"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
)

func TestGuardCanonicalization(t *testing.T) {
	syms := symbol.NewStore()
	c := expr.NewContext(syms)
	x := c.Symbol(syms.Intern("x"), types.TyBool)

	g := guard.New(c)
	require.True(t, g.IsTrue())

	g2 := g.Add(c.Bool(true))
	require.True(t, g2.IsTrue(), "add(true) is the identity")

	g3 := g.Add(c.Bool(false))
	require.True(t, g3.IsFalse(), "add(false) collapses to false")

	notX := c.UnOp(expr.OpNot, x, types.TyBool)
	g4 := g.Add(x).Add(notX)
	require.True(t, g4.IsFalse(), "add(e) then add(not e) collapses to false")
}

func TestGuardAddEquivalesSimplifyThenAdd(t *testing.T) {
	syms := symbol.NewStore()
	c := expr.NewContext(syms)
	x := c.Symbol(syms.Intern("x"), types.TyBool)

	raw := c.UnOp(expr.OpNot, c.UnOp(expr.OpNot, x, types.TyBool), types.TyBool)

	g1 := guard.New(c).Add(raw)
	g2 := guard.New(c).Add(expr.Simplify(raw))
	require.True(t, g1.Bool().Equal(g2.Bool()))
}

func TestGuardSubAndOr(t *testing.T) {
	syms := symbol.NewStore()
	c := expr.NewContext(syms)
	a := c.Symbol(syms.Intern("a"), types.TyBool)
	b := c.Symbol(syms.Intern("b"), types.TyBool)

	base := guard.New(c).Add(a)
	extended := base.Add(b)

	extra := extended.Sub(base)
	require.True(t, extra.Bool().Equal(b))

	merged := base.Or(extended)
	require.False(t, merged.IsFalse())
}
