package vc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rbmc/internal/expr"
	"rbmc/internal/ir"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
	"rbmc/internal/vc"
)

func TestSliceNthKeepsOnlyDependencies(t *testing.T) {
	syms := symbol.NewStore()
	c := expr.NewContext(syms)

	x1 := c.Symbol(syms.Intern("x#1.1"), types.TyU32)
	y1 := c.Symbol(syms.Intern("y#1.1"), types.TyU32)
	unrelated := c.Symbol(syms.Intern("z#1.1"), types.TyU32)

	sys := vc.New()
	sys.Assign(x1, c.Int(1, types.TyU32), ir.Span{})
	sys.Assign(unrelated, c.Int(2, types.TyU32), ir.Span{})
	sys.Assign(y1, x1, ir.Span{})
	idx := sys.AssertStep(c.BinOp(expr.OpEq, y1, c.Int(1, types.TyU32), types.TyBool), "eq", ir.Span{})

	sys.SliceNth(idx)

	require.False(t, sys.Step(0).Sliced, "x#1.1 = 1 feeds the assertion")
	require.True(t, sys.Step(1).Sliced, "z#1.1 = 2 is irrelevant")
	require.False(t, sys.Step(2).Sliced, "y#1.1 = x#1.1 feeds the assertion")
	require.False(t, sys.Step(3).Sliced, "the assertion itself is always kept")
}
