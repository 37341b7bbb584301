// SPDX-License-Identifier: Apache-2.0

// Package cfg implements the basic-block reconstruction pre-pass: blocks
// are reordered so that loop SCCs are contiguous and every Return collapses
// to one synthetic exit block, guaranteeing that visiting blocks in
// increasing pc order visits loop heads before bodies and bodies before exits.
//
// SCC discovery and the final linearization are delegated to
// github.com/katalvlaran/lvlath: a directed core.Graph is built over block
// labels, dfs.DetectCycles finds the blocks participating in any cycle, and
// dfs.TopologicalSort linearizes the cycle-condensation — the graph
// algorithms this reconstruction pass is, in essence, a CFG-flavored
// instance of.
package cfg

import (
	"fmt"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"rbmc/internal/ir"
)

// ExitLabel is the synthetic single-exit block appended after reordering.
const ExitLabel = "$exit"

// Reconstruct leaves fn unmodified and returns a fresh Function
// whose Blocks are reordered so loop SCCs are contiguous and whose Return
// terminators have all been rewritten to Goto ExitLabel. The returned
// function carries one extra trailing block, labeled ExitLabel, with a
// Return terminator.
func Reconstruct(fn *ir.Function) (*ir.Function, error) {
	g := core.NewGraph(core.WithDirected(true))
	byLabel := make(map[string]*ir.BasicBlock, len(fn.Blocks))
	for _, bb := range fn.Blocks {
		byLabel[bb.Label] = bb
		if err := g.AddVertex(bb.Label); err != nil {
			return nil, fmt.Errorf("cfg: %w", err)
		}
	}
	for _, bb := range fn.Blocks {
		for _, succ := range successors(bb.Terminator) {
			if _, ok := byLabel[succ]; !ok {
				continue // unknown target (e.g. a Call's in-module successor resolved elsewhere)
			}
			if _, err := g.AddEdge(bb.Label, succ, 1); err != nil {
				return nil, fmt.Errorf("cfg: %w", err)
			}
		}
	}

	components, err := sccComponents(g, fn)
	if err != nil {
		return nil, err
	}
	order, err := linearize(fn, components)
	if err != nil {
		return nil, err
	}

	newBlocks := make([]*ir.BasicBlock, 0, len(fn.Blocks)+1)
	for _, label := range order {
		bb := byLabel[label]
		newBlocks = append(newBlocks, rewriteReturns(bb))
	}
	newBlocks = append(newBlocks, &ir.BasicBlock{
		Label: ExitLabel,
		Terminator: ir.Terminator{Kind: ir.TReturn},
	})

	out := *fn
	out.Blocks = newBlocks
	return &out, nil
}

func labels(blocks []*ir.BasicBlock) []string {
	out := make([]string, len(blocks))
	for i, bb := range blocks {
		out[i] = bb.Label
	}
	return out
}

func successors(t ir.Terminator) []string {
	switch t.Kind {
	case ir.TGoto:
		return []string{t.Target}
	case ir.TSwitchInt:
		out := make([]string, 0, len(t.Arms)+1)
		for _, a := range t.Arms {
			out = append(out, a.Target)
		}
		return append(out, t.Otherwise)
	case ir.TDrop:
		return []string{t.Target}
	case ir.TCall:
		return []string{t.Target}
	case ir.TAssert:
		return []string{t.Target}
	default:
		return nil
	}
}

func rewriteReturns(bb *ir.BasicBlock) *ir.BasicBlock {
	if bb.Terminator.Kind != ir.TReturn {
		out := *bb
		return &out
	}
	out := *bb
	out.Terminator = ir.Terminator{Kind: ir.TGoto, Target: ExitLabel}
	return &out
}

// component is a maximal set of blocks merged by participation in a common
// cycle (an approximation of strongly-connected components sufficient for
// "loop bodies must be contiguous": distinct, non-interleaving cycles never
// need to merge for this pass, since the IR producer never emits
// irreducible control flow into a single-entry loop nest).
type component struct {
	labels []string
}

func sccComponents(g *core.Graph, fn *ir.Function) ([]component, error) {
	allLabels := labels(fn.Blocks)
	found, cycles, err := dfs.DetectCycles(g)
	if err != nil {
		return nil, fmt.Errorf("cfg: cycle detection: %w", err)
	}
	parent := make(map[string]string, len(allLabels))
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" || parent[x] == x {
			parent[x] = x
			return x
		}
		parent[x] = find(parent[x])
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, l := range allLabels {
		parent[l] = l
	}
	if found {
		for _, cyc := range cycles {
			for i := 1; i < len(cyc); i++ {
				union(cyc[0], cyc[i])
			}
		}
	}
	groups := make(map[string][]string)
	for _, l := range allLabels {
		r := find(l)
		groups[r] = append(groups[r], l)
	}
	comps := make([]component, 0, len(groups))
	for _, members := range groups {
		comps = append(comps, component{labels: headerFirst(fn, members)})
	}
	return comps, nil
}

// headerFirst reorders an SCC's members so the block reached by an edge
// from outside the set — a reducible single-entry loop's header — comes
// first, instead of the declaration order sccComponents happened to build
// the slice in. Falls back to the input order when no member qualifies
// (e.g. the whole function collapsed into one component).
func headerFirst(fn *ir.Function, members []string) []string {
	inSet := make(map[string]bool, len(members))
	for _, m := range members {
		inSet[m] = true
	}
	hasExternalPred := make(map[string]bool)
	for _, bb := range fn.Blocks {
		if inSet[bb.Label] {
			continue
		}
		for _, succ := range successors(bb.Terminator) {
			if inSet[succ] {
				hasExternalPred[succ] = true
			}
		}
	}
	for i, m := range members {
		if !hasExternalPred[m] {
			continue
		}
		if i == 0 {
			return members
		}
		out := make([]string, 0, len(members))
		out = append(out, m)
		out = append(out, members[:i]...)
		out = append(out, members[i+1:]...)
		return out
	}
	return members
}

func linearize(fn *ir.Function, comps []component) ([]string, error) {
	owner := make(map[string]int, len(comps))
	for i, c := range comps {
		for _, l := range c.labels {
			owner[l] = i
		}
	}

	cg := core.NewGraph(core.WithDirected(true))
	for i := range comps {
		if err := cg.AddVertex(fmt.Sprintf("c%d", i)); err != nil {
			return nil, err
		}
	}
	added := make(map[[2]int]bool)
	for _, bb := range fn.Blocks {
		from := owner[bb.Label]
		for _, succ := range successors(bb.Terminator) {
			to, ok := owner[succ]
			if !ok || to == from {
				continue
			}
			key := [2]int{from, to}
			if added[key] {
				continue
			}
			added[key] = true
			if _, err := cg.AddEdge(fmt.Sprintf("c%d", from), fmt.Sprintf("c%d", to), 1); err != nil {
				return nil, fmt.Errorf("cfg: %w", err)
			}
		}
	}

	order, err := dfs.TopologicalSort(cg)
	if err != nil {
		// A cyclic condensation should not occur once cycles are merged into
		// single components; fall back to declaration order rather than fail
		// the whole run.
		out := make([]string, 0)
		for _, c := range comps {
			out = append(out, c.labels...)
		}
		return out, nil
	}

	idx := make(map[string]int, len(order))
	for i, n := range order {
		idx[n] = i
	}
	result := make([]string, 0)
	compOrder := make([]int, len(comps))
	for i := range comps {
		compOrder[i] = idx[fmt.Sprintf("c%d", i)]
	}
	ordered := make([]int, len(comps))
	for i := range ordered {
		ordered[i] = i
	}
	sortByKey(ordered, func(i int) int { return compOrder[i] })
	for _, ci := range ordered {
		result = append(result, comps[ci].labels...)
	}
	return result, nil
}

func sortByKey(xs []int, key func(int) int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && key(xs[j-1]) > key(xs[j]); j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
