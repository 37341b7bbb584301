// SPDX-License-Identifier: Apache-2.0

package symex

import (
	"fmt"

	"rbmc/internal/expr"
	"rbmc/internal/guard"
	"rbmc/internal/ir"
	"rbmc/internal/types"
)

// execTerminator dispatches one basic block's terminator.
// idx is the terminator's own block index, used to classify successor
// edges as forward/back for the unwind bound.
func (d *driver) execTerminator(fr *Frame, idx int, g guard.Guard, t ir.Terminator) error {
	switch t.Kind {
	case ir.TGoto:
		d.pushSuccessor(fr, idx, t.Target, g)
		return nil

	case ir.TSwitchInt:
		return d.execSwitchInt(fr, idx, g, t)

	case ir.TDrop:
		d.execDrop(fr, g, t.Place, t.Span)
		d.pushSuccessor(fr, idx, t.Target, g)
		return nil

	case ir.TCall:
		return d.execCall(fr, idx, g, t)

	case ir.TReturn:
		return d.execReturn(fr, g)

	case ir.TAssert:
		return d.execAssert(fr, idx, g, t)
	}
	return nil
}

// execSwitchInt implements SwitchInt rule: a fresh boolean L1
// "branch guard" local is bound to each arm's predicate before registering
// the arm's successor, trading a larger symbol table for smaller guards.
func (d *driver) execSwitchInt(fr *Frame, idx int, g guard.Guard, t ir.Terminator) error {
	discr := d.buildOperand(g, t.Discr)
	otherwiseCond := g
	for i, arm := range t.Arms {
		pred := d.s.Ctx.BinOp(expr.OpEq, discr, d.s.Ctx.Int(arm.Value, discr.Type()), types.TyBool)
		branchIdent := d.s.Syms.Intern(fmt.Sprintf("$bg%d_%d", idx, i))
		l1 := d.s.Renamer.FreshL1(branchIdent)
		l2 := d.s.Renamer.FreshL2(l1)
		lhs := d.s.Ctx.Symbol(l2.InternedName(d.s.Syms), types.TyBool)
		d.s.VC.Assign(lhs, expr.Simplify(pred), t.Span)

		armGuard := g.Add(lhs)
		d.pushSuccessor(fr, idx, arm.Target, armGuard)

		notPred := d.s.Ctx.UnOp(expr.OpNot, pred, types.TyBool)
		otherwiseCond = otherwiseCond.Add(notPred)
	}
	d.pushSuccessor(fr, idx, t.Otherwise, otherwiseCond)
	return nil
}

// execAssert implements Assert rule: emit "cond XOR expected"
// under the current guard, then continue unconditionally to target.
func (d *driver) execAssert(fr *Frame, idx int, g guard.Guard, t ir.Terminator) error {
	cond := d.buildOperand(g, t.Cond)
	bad := cond
	if t.Expected {
		bad = d.s.Ctx.UnOp(expr.OpNot, cond, types.TyBool)
	}
	d.assertSafe(g, bad, t.Msg, t.Span)
	d.pushSuccessor(fr, idx, t.Target, g)
	return nil
}

// execReturn completes the frame. internal/cfg rewrites every original
// Return to Goto $exit and gives the appended $exit block the function's
// only Return, so each reconstructed function ends here.
func (d *driver) execReturn(fr *Frame, g guard.Guard) error {
	return d.completeFrame(fr, g)
}

// completeFrame runs the end-of-function merge at the virtual exit, pops
// the frame, binds the caller's destination place to the return value, and
// resumes the caller.
func (d *driver) completeFrame(fr *Frame, g guard.Guard) error {
	retIdent := d.s.Syms.Intern("$ret")
	var retVal expr.Expr
	if _, ok := fr.current[retIdent]; ok {
		l1 := d.s.Renamer.CurrentL1(retIdent)
		l2 := d.s.Renamer.CurrentL2(l1)
		retVal = d.s.Ctx.Symbol(l2.InternedName(d.s.Syms), fr.Fn.ReturnType)
	}

	caller := fr.caller
	d.s.PopFrame()

	if caller == nil {
		return nil // entry frame returned: the run is complete
	}
	d.curFrame = caller
	if fr.DestPlace != nil && !retVal.Invalid() {
		d.assignPlace(caller, *fr.DestPlace, retVal, fr.Fn.ReturnType, g, ir.Span{})
	}
	callerIdx := caller.Index(fr.ReturnTo)
	if callerIdx < 0 {
		return nil
	}
	d.pushSuccessor(caller, callerIdx, fr.ReturnTo, g)
	return d.runFrame(caller)
}
