package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rbmc/internal/ir"
	"rbmc/internal/types"
)

func TestPrintSimpleFunction(t *testing.T) {
	fn := &ir.Function{
		Name: "main",
		ReturnType: types.TyUnit,
		Locals: []ir.Local{{Name: "x", Type: types.TyU32, LiveOnEntry: false}},
		Blocks: []*ir.BasicBlock{
			{
				Label: "bb0",
				Statements: []ir.Statement{
					{
						Kind: ir.SAssign,
						Place: ir.Place{Local: "x"},
						Rvalue: ir.Rvalue{
							Kind: ir.RUse,
							Operand: ir.Operand{Kind: ir.OConstant, Constant: ir.ConstValue{Type: types.TyU32, Int: 1}},
						},
					},
				},
				Terminator: ir.Terminator{Kind: ir.TReturn},
			},
		},
	}
	prog := &ir.Program{Functions: map[string]*ir.Function{"main": fn}}

	out := ir.Print(prog)
	require.Contains(t, out, "fn main")
	require.Contains(t, out, "x = 1")
	require.Contains(t, out, "return")
}
