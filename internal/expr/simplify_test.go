package expr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rbmc/internal/expr"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
)

func newCtx() (*expr.Context, *symbol.Store) {
	syms := symbol.NewStore()
	return expr.NewContext(syms), syms
}

func TestSimplifyIdempotent(t *testing.T) {
	c, syms := newCtx()
	x := c.Symbol(syms.Intern("x"), types.TyBool)
	e := c.UnOp(expr.OpNot, c.UnOp(expr.OpNot, c.BinOp(expr.OpAnd, x, c.Bool(true), types.TyBool), types.TyBool), types.TyBool)

	once := expr.Simplify(e)
	twice := expr.Simplify(once)
	require.True(t, once.Equal(twice), "simplify must be idempotent")
}

func TestNNFPushesNotToLeaves(t *testing.T) {
	c, syms := newCtx()
	a := c.Symbol(syms.Intern("a"), types.TyBool)
	b := c.Symbol(syms.Intern("b"), types.TyBool)

	notAndAB := c.UnOp(expr.OpNot, c.BinOp(expr.OpAnd, a, b, types.TyBool), types.TyBool)
	got := expr.Simplify(notAndAB)

	require.Equal(t, expr.KBinOp, got.Kind())
	require.Equal(t, expr.OpOr, got.Op())
	require.Equal(t, expr.KUnOp, got.Child(0).Kind())
	require.Equal(t, expr.OpNot, got.Child(0).Op())
}

func TestSameObjectReflexive(t *testing.T) {
	c, syms := newCtx()
	o := c.Symbol(syms.Intern("o"), types.TyU64)
	o2 := c.Symbol(syms.Intern("o2"), types.TyU64)

	require.True(t, expr.Simplify(c.SameObject(o, o)).Bool())
	distinct := expr.Simplify(c.SameObject(o, o2))
	require.NotEqual(t, expr.KConst, distinct.Kind(), "distinct objects never simplify to a constant true")
}

func TestConstantFolding(t *testing.T) {
	c, _ := newCtx()
	sum := c.BinOp(expr.OpAdd, c.Int(2, types.TyU32), c.Int(3, types.TyU32), types.TyU32)
	got := expr.Simplify(sum)
	require.Equal(t, int64(5), got.BigInt().Int64())
}

func TestIteConstantCond(t *testing.T) {
	c, _ := newCtx()
	then := c.Int(1, types.TyU32)
	els := c.Int(2, types.TyU32)
	require.True(t, expr.Simplify(c.Ite(c.Bool(true), then, els)).Equal(then))
	require.True(t, expr.Simplify(c.Ite(c.Bool(false), then, els)).Equal(els))
}
