// SPDX-License-Identifier: Apache-2.0

package symex

import (
	"github.com/pkg/errors"

	"rbmc/internal/expr"
	"rbmc/internal/guard"
	"rbmc/internal/ir"
	"rbmc/internal/placestate"
	"rbmc/internal/renaming"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
)

// driver runs one bounded-model-checking pass over a Program starting from
// an entry function.
type driver struct {
	s *State
	prog *ir.Program
	syms *symbol.Store
	curFrame *Frame
	frameSeq int
}

// Run executes entry to completion: every function transitively reachable
// from it is expected to already be CFG-reconstructed (internal/cfg) by the
// caller (internal/bmc), so Return terminators are already rewritten to a
// single virtual exit block per function. Returns the accumulated run
// state, whose VC field holds every Assign/Assume/Assert step.
func Run(prog *ir.Program, entry string, syms *symbol.Store, unwindBound int) (*State, error) {
	fn, ok := prog.Functions[entry]
	if !ok {
		return nil, errors.Errorf("symex: unknown entry function %q", entry)
	}
	s := NewState(syms, unwindBound)
	d := &driver{s: s, prog: prog, syms: syms}

	root := NewFrame(d.nextFrameID(), fn, nil, -1, "", syms)
	for _, p := range fn.Params {
		l1 := s.Renamer.FreshL1(syms.Intern(p))
		_ = l1 // params already live at L1 version 1 by construction
	}
	s.PushFrame(root)
	d.curFrame = root

	if err := d.runFrame(root); err != nil {
		return nil, err
	}
	d.checkLeaks()
	return s, nil
}

func (d *driver) nextFrameID() int {
	id := d.frameSeq
	d.frameSeq++
	return id
}

// runFrame drains fr's worklist: merge pending contributions at each
// dequeued label, run the unwind check implicitly via Frame.Enqueue, then
// execute the block's statements and terminator.
func (d *driver) runFrame(fr *Frame) error {
	prev := d.curFrame
	d.curFrame = fr
	defer func() { d.curFrame = prev }()

	for {
		label := fr.Dequeue()
		if label == "" {
			return nil
		}
		idx := fr.Index(label)
		if idx < 0 {
			return errors.Errorf("symex: unknown block label %q in %s", label, fr.Fn.Name)
		}
		g := d.mergeAt(fr, label)
		if g.IsFalse() {
			continue // unreachable after slicing out a dropped loop bound
		}
		bb := fr.BlockAt(idx)
		for _, stmt := range bb.Statements {
			d.execStatement(fr, g, stmt)
		}
		if err := d.execTerminator(fr, idx, g, bb.Terminator); err != nil {
			return err
		}
	}
}

// mergeAt folds every pending contribution at label into one state,
// applying the phi rule step 1 pairwise, and installs the
// merged place-state/value-set/current-locals into fr before returning the
// merged guard.
func (d *driver) mergeAt(fr *Frame, label string) guard.Guard {
	pendings := fr.TakePending(label)
	if len(pendings) == 0 {
		return d.s.Guard() // function entry block: nothing precedes it
	}
	acc := pendings[0]
	for _, next := range pendings[1:] {
		acc = d.phi(fr, acc, next)
	}
	fr.current = acc.locals
	d.s.Places = acc.places
	d.s.Values = acc.values
	return acc.guard
}

// phi merges two incoming states step 1: for every L1 ident
// whose current L2 symbol differs between the two, synthesize an ITE over
// (b.guard - a.guard) selecting b's value when the extra guard holds, bound
// to a fresh L2 version; then disjoin guards, meet place-states, union
// value-sets.
func (d *driver) phi(fr *Frame, a, b pendingState) pendingState {
	extra := b.guard.Sub(a.guard)
	merged := make(map[symbol.Name]renaming.Sym, len(a.locals))
	for ident, aSym := range a.locals {
		merged[ident] = aSym
		bSym, ok := b.locals[ident]
		if !ok || bSym == aSym {
			continue
		}
		ty := fr.Fn.LocalType(d.syms.Text(ident))
		if ty == nil {
			continue
		}
		aExpr := d.s.Ctx.Symbol(aSym.InternedName(d.syms), ty)
		bExpr := d.s.Ctx.Symbol(bSym.InternedName(d.syms), ty)
		ite := d.s.Ctx.Ite(extra.Bool(), bExpr, aExpr)
		newSym := d.s.Renamer.FreshL2(d.s.Renamer.CurrentL1(ident))
		lhs := d.s.Ctx.Symbol(newSym.InternedName(d.syms), ty)
		d.s.VC.Assign(lhs, expr.Simplify(ite), ir.Span{})
		merged[ident] = newSym
	}
	for ident, bSym := range b.locals {
		if _, ok := merged[ident]; !ok {
			merged[ident] = bSym
		}
	}

	places := a.places.Clone()
	places.MeetWith(b.places)
	values := a.values.Clone()
	values.MeetWith(b.values)

	return pendingState{
		guard: a.guard.Or(b.guard),
		locals: merged,
		places: places,
		values: values,
	}
}

func (d *driver) execStatement(fr *Frame, g guard.Guard, stmt ir.Statement) {
	switch stmt.Kind {
	case ir.SAssign:
		d.execAssign(fr, g, stmt.Place, stmt.Rvalue, stmt.Span)
	case ir.SStorageLive:
		ident := d.syms.Intern(stmt.Local)
		d.s.Renamer.FreshL1(ident)
	case ir.SStorageDead:
		ident := d.syms.Intern(stmt.Local)
		l1 := d.s.Renamer.CurrentL1(ident)
		d.s.Places.Set(placestate.NPlace{Ident: l1.Ident, L1Num: l1.L1Num}, placestate.Dead)
	}
}

// snapshotLocals captures the frame's live idents at their current (L1,L2)
// symbol, for pushing onto a successor's pending list.
func (d *driver) snapshotLocals(fr *Frame) map[symbol.Name]renaming.Sym {
	out := make(map[symbol.Name]renaming.Sym, len(fr.Fn.Locals))
	for _, l := range fr.Fn.Locals {
		ident := d.syms.Intern(l.Name)
		l1 := d.s.Renamer.CurrentL1(ident)
		l2 := d.s.Renamer.CurrentL2(l1)
		out[ident] = l2
	}
	return out
}

// pushSuccessor registers one terminator edge's contribution at target,
// applying the unwind bound via Frame.Enqueue.
func (d *driver) pushSuccessor(fr *Frame, fromIdx int, target string, g guard.Guard) {
	toIdx := fr.Index(target)
	if toIdx < 0 {
		return
	}
	ps := pendingState{
		guard: g,
		locals: d.snapshotLocals(fr),
		places: d.s.Places.Clone(),
		values: d.s.Values.Clone(),
	}
	fr.Enqueue(target, fromIdx, toIdx, d.s.UnwindBound, ps)
}

// assertSafe records that badCond must never hold under g: the VC system
// gets the single step "not (g ∧ badCond)", and a solver SAT result for its
// negation is exactly a reachable violation.
func (d *driver) assertSafe(g guard.Guard, badCond expr.Expr, msg string, span ir.Span) {
	bad := g.Add(badCond).Bool()
	safe := d.s.Ctx.UnOp(expr.OpNot, bad, types.TyBool)
	d.s.VC.AssertStep(safe, msg, span)
}
