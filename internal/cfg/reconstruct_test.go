package cfg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rbmc/internal/cfg"
	"rbmc/internal/ir"
)

func TestReconstructOrdersLoopBeforeExit(t *testing.T) {
	fn := &ir.Function{
		Name: "loopy",
		Blocks: []*ir.BasicBlock{
			{Label: "exit", Terminator: ir.Terminator{Kind: ir.TReturn}},
			{Label: "body", Terminator: ir.Terminator{Kind: ir.TGoto, Target: "head"}},
			{Label: "head", Terminator: ir.Terminator{
				Kind: ir.TSwitchInt,
				Arms: []ir.SwitchArm{{Value: 0, Target: "body"}},
				Otherwise: "exit",
			}},
			{Label: "entry", Terminator: ir.Terminator{Kind: ir.TGoto, Target: "head"}},
		},
	}

	out, err := cfg.Reconstruct(fn)
	require.NoError(t, err)

	pos := make(map[string]int, len(out.Blocks))
	for i, bb := range out.Blocks {
		pos[bb.Label] = i
	}
	require.Less(t, pos["entry"], pos["head"])
	require.Less(t, pos["head"], pos["exit"])
	require.Equal(t, cfg.ExitLabel, out.Blocks[len(out.Blocks)-1].Label)

	for _, bb := range out.Blocks {
		if bb.Label == cfg.ExitLabel {
			continue
		}
		require.NotEqual(t, ir.TReturn, bb.Terminator.Kind, "Return must be rewritten to Goto $exit")
	}
}
