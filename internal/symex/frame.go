// SPDX-License-Identifier: Apache-2.0

package symex

import (
	"rbmc/internal/guard"
	"rbmc/internal/ir"
	"rbmc/internal/placestate"
	"rbmc/internal/renaming"
	"rbmc/internal/symbol"
	"rbmc/internal/valueset"
)

// pendingState is one contribution arriving at a block label: the guard
// under which control reaches it, the L1/L2 symbol reached for every local
// live in the frame, and a snapshot of the place-state/value-set maps to
// meet/union at merge time.
type pendingState struct {
	guard guard.Guard
	locals map[symbol.Name]renaming.Sym
	places *placestate.Map
	values *valueset.Map
}

// Frame is one activation record on the symbolic call stack: the function
// being executed, its destination place and return label in the caller,
// the current pc, and the per-label pending-state / loop-unwind
// bookkeeping the driver needs for a single forward pass with bounded loop
// re-entry.
type Frame struct {
	ID int
	Fn *ir.Function
	DestPlace *ir.Place // nil for the entry frame
	ReturnFrom int // caller frame id, -1 for the entry frame
	ReturnTo string // caller block label to resume at
	caller *Frame // nil for the entry frame

	syms *symbol.Store
	blockIndex map[string]int
	pc string

	pending map[string][]pendingState
	visits map[string]int
	queue []string
	queued map[string]bool

	// current holds the live (L1,L2) symbol per source ident, updated as
	// statements execute; frame-local so ForgetFrame only needs the ident
	// set, not per-block history.
	current map[symbol.Name]renaming.Sym
}

// NewFrame creates a frame over fn (already CFG-reconstructed: see
// internal/cfg), ready to begin execution at its first block.
func NewFrame(id int, fn *ir.Function, dest *ir.Place, returnFrom int, returnTo string, syms *symbol.Store) *Frame {
	idx := make(map[string]int, len(fn.Blocks))
	for i, bb := range fn.Blocks {
		idx[bb.Label] = i
	}
	fr := &Frame{
		ID: id,
		Fn: fn,
		DestPlace: dest,
		ReturnFrom: returnFrom,
		ReturnTo: returnTo,
		syms: syms,
		blockIndex: idx,
		pending: make(map[string][]pendingState),
		visits: make(map[string]int),
		queued: make(map[string]bool),
		current: make(map[symbol.Name]renaming.Sym),
	}
	if len(fn.Blocks) > 0 {
		entry := fn.Blocks[0].Label
		fr.queue = append(fr.queue, entry)
		fr.queued[entry] = true
	}
	return fr
}

// LocalIdents returns the source-level identifier of every declared local,
// used by State.PopFrame to forget the renamer's per-frame counters.
func (f *Frame) LocalIdents() []symbol.Name {
	out := make([]symbol.Name, len(f.Fn.Locals))
	for i, l := range f.Fn.Locals {
		out[i] = f.syms.Intern(l.Name)
	}
	return out
}

// BlockAt returns the i-th block of the frame's function.
func (f *Frame) BlockAt(i int) *ir.BasicBlock { return f.Fn.Blocks[i] }

// Index returns the position of label in the frame's block order, or -1.
func (f *Frame) Index(label string) int {
	i, ok := f.blockIndex[label]
	if !ok {
		return -1
	}
	return i
}

// Dequeue pops the next pending block label to process, or "" if the frame
// is drained.
func (f *Frame) Dequeue() string {
	if len(f.queue) == 0 {
		return ""
	}
	label := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.queued, label)
	return label
}

// Enqueue schedules label for processing: a forward edge always, a back
// edge only while label has been re-entered fewer than unwindBound times
// (an unwindBound of 0 places no limit). fromIdx/toIdx are the
// source/target block indices in the frame's reconstructed order.
func (f *Frame) Enqueue(label string, fromIdx, toIdx, unwindBound int, ps pendingState) (scheduled bool) {
	isBackEdge := toIdx <= fromIdx
	if isBackEdge {
		if unwindBound > 0 && f.visits[label] >= unwindBound {
			return false // drop: loop bound reached
		}
		f.visits[label]++
	}
	f.pending[label] = append(f.pending[label], ps)
	if !f.queued[label] {
		f.queue = append(f.queue, label)
		f.queued[label] = true
	}
	return true
}

// TakePending removes and returns every pending contribution queued for
// label.
func (f *Frame) TakePending(label string) []pendingState {
	ps := f.pending[label]
	delete(f.pending, label)
	return ps
}
