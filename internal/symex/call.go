// SPDX-License-Identifier: Apache-2.0

package symex

import (
	"github.com/pkg/errors"

	"rbmc/internal/builtins"
	"rbmc/internal/expr"
	"rbmc/internal/guard"
	"rbmc/internal/ir"
	"rbmc/internal/placestate"
	"rbmc/internal/types"
)

const maxCallDepth = 256

// execCall implements Call rule: classify the callee, then
// dispatch to a nondeterminism intrinsic, an allocation builtin, or a
// pushed in-source frame.
func (d *driver) execCall(fr *Frame, idx int, g guard.Guard, t ir.Terminator) error {
	switch builtins.Lookup(t.Func) {
	case builtins.Nondet:
		d.execNondet(fr, t)
	case builtins.Alloc:
		d.execAlloc(fr, g, t)
	case builtins.Dealloc:
		d.execDealloc(fr, g, t)
	case builtins.BoxNew:
		d.execBoxNew(fr, g, t)
	case builtins.LayoutNew, builtins.LayoutForValueRaw:
		d.execLayoutToken(fr, t)
	case builtins.LayoutSize, builtins.LayoutAlign:
		d.execLayoutQuery(fr, t)
	case builtins.SliceIndexPanic, builtins.SliceRangePanic:
		d.assertSafe(g, d.s.Ctx.Bool(true), builtins.Lookup(t.Func).String(), t.Span)
	default:
		return d.execUserCall(fr, idx, g, t)
	}
	d.pushSuccessor(fr, idx, t.Target, g)
	return nil
}

// execNondet binds the destination to a fresh symbol of its declared type,
// named by type and a per-type counter.
func (d *driver) execNondet(fr *Frame, t ir.Terminator) {
	if t.Dest == nil {
		return
	}
	ty := d.placeType(fr, *t.Dest)
	ident := d.s.FreshNondet(ty)
	value := d.s.Ctx.Symbol(ident, ty)
	d.assignPlace(fr, *t.Dest, value, ty, d.s.Guard(), t.Span)
}

// execUserCall pushes a new frame bound to callee, binds its parameters from
// the call's arguments, and drains it to completion before resuming fr: push
// frame, bind parameters, register successor at the caller's return label.
func (d *driver) execUserCall(fr *Frame, idx int, g guard.Guard, t ir.Terminator) error {
	callee, ok := d.prog.Functions[t.Func]
	if !ok {
		return errors.Errorf("symex: call to unknown function %q", t.Func)
	}
	if d.s.Depth() > maxCallDepth {
		return errors.Errorf("symex: call stack depth exceeded calling %q (possible unbounded recursion)", t.Func)
	}

	args := make([]expr.Expr, len(t.Args))
	for i, a := range t.Args {
		args[i] = d.buildOperand(g, a)
	}

	newFrame := NewFrame(d.nextFrameID(), callee, t.Dest, fr.ID, t.Target, d.s.Syms)
	newFrame.caller = fr
	d.s.PushFrame(newFrame)

	for i, p := range callee.Params {
		ident := d.s.Syms.Intern(p)
		d.s.Renamer.FreshL1(ident)
		d.assignIdent(ident, callee.LocalType(p), args[i], t.Span)
	}

	entryLabel := ""
	if len(callee.Blocks) > 0 {
		entryLabel = callee.Blocks[0].Label
	}
	newFrame.pending[entryLabel] = append(newFrame.pending[entryLabel], pendingState{
		guard: g,
		locals: d.snapshotLocals(newFrame),
		places: d.s.Places.Clone(),
		values: d.s.Values.Clone(),
	})

	return d.runFrame(newFrame)
}

// execDrop implements Drop rule: a Box dropped through project
// in deallocate mode; a struct recurses field by field into any pointer-like
// or nested-struct members; any other local is simply marked Dead.
func (d *driver) execDrop(fr *Frame, g guard.Guard, place ir.Place, span ir.Span) {
	ty := d.placeType(fr, place)
	switch {
	case ty.Kind == types.Box:
		_, _ = d.project(fr, place, g, ModeDealloc, span)
	case ty.Kind == types.Struct:
		for i, f := range ty.Fields {
			if !f.Type.IsPointerLike() && f.Type.Kind != types.Struct {
				continue
			}
			sub := place
			sub.Projections = append(append([]ir.Projection{}, place.Projections...), ir.Projection{Kind: ir.PField, Field: i})
			d.execDrop(fr, g, sub, span)
		}
	default:
		ident := d.s.Syms.Intern(place.Local)
		l1 := d.s.Renamer.CurrentL1(ident)
		d.s.Places.Set(placestate.NPlace{Ident: l1.Ident, L1Num: l1.L1Num}, placestate.Dead)
	}
}

// execAlloc implements the alloc builtin: a fresh heap object of the
// destination's pointee type, its address bound to the destination, its
// place-state Alive (owned by a raw pointer, not yet Own as a Box would be).
func (d *driver) execAlloc(fr *Frame, g guard.Guard, t ir.Terminator) {
	if t.Dest == nil {
		return
	}
	ty := d.placeType(fr, *t.Dest)
	pointee := ty.PointeeType()
	if pointee == nil {
		pointee = ty
	}
	obj := d.s.FreshObject(pointee, t.Span)
	rootExpr := d.s.Ctx.Symbol(obj, pointee)
	addr := d.s.Ctx.AddressOf(rootExpr, types.Pointer(pointee))
	d.s.Places.Set(placestate.NPlace{Ident: obj}, placestate.Alive)
	d.assignPlace(fr, *t.Dest, addr, ty, g, t.Span)
}

// execDealloc implements the dealloc builtin: a dealloc-mode dereference of
// the pointer argument, which checks and marks Dead every object it may
// point to.
func (d *driver) execDealloc(fr *Frame, g guard.Guard, t ir.Terminator) {
	if len(t.Args) == 0 {
		return
	}
	argPlace, ok := placeOf(t.Args[0])
	if !ok {
		return
	}
	pointee := argPlace
	pointee.Projections = append(append([]ir.Projection{}, argPlace.Projections...), ir.Projection{Kind: ir.PDeref})
	_, _ = d.project(fr, pointee, g, ModeDealloc, t.Span)
}

// execBoxNew implements Box::new: a fresh heap object owned (place-state
// Own) by the resulting Box value.
func (d *driver) execBoxNew(fr *Frame, g guard.Guard, t ir.Terminator) {
	if t.Dest == nil || len(t.Args) == 0 {
		return
	}
	boxTy := d.placeType(fr, *t.Dest)
	pointee := boxTy.PointeeType()
	val := d.buildOperand(g, t.Args[0])
	obj := d.s.FreshObject(pointee, t.Span)
	d.s.Places.Set(placestate.NPlace{Ident: obj}, placestate.Own)
	d.assignIdent(obj, pointee, val, t.Span)
	rootExpr := d.s.Ctx.Symbol(obj, pointee)
	boxVal := d.s.Ctx.BoxWrap(d.s.Ctx.AddressOf(rootExpr, types.Pointer(pointee)), boxTy)
	d.assignPlace(fr, *t.Dest, boxVal, boxTy, g, t.Span)
}

// execLayoutToken implements Layout::new / Layout::for_value_raw: the
// destination gets a first-class reference to the queried type.
func (d *driver) execLayoutToken(fr *Frame, t ir.Terminator) {
	if t.Dest == nil {
		return
	}
	ty := d.placeType(fr, *t.Dest)
	d.assignPlace(fr, *t.Dest, d.s.Ctx.TypeToken(ty), ty, d.s.Guard(), t.Span)
}

// execLayoutQuery implements Layout::size / Layout::align: a constant
// computed directly from the token's carried type, static
// size/align tables.
func (d *driver) execLayoutQuery(fr *Frame, t ir.Terminator) {
	if t.Dest == nil || len(t.Args) == 0 {
		return
	}
	tokPlace, ok := placeOf(t.Args[0])
	if !ok {
		return
	}
	_, tokTy := d.project(fr, tokPlace, d.s.Guard(), ModeRead, t.Span)
	destTy := d.placeType(fr, *t.Dest)
	n := int64(tokTy.Size())
	if builtins.Lookup(t.Func) == builtins.LayoutAlign {
		n = int64(tokTy.Align())
	}
	d.assignPlace(fr, *t.Dest, d.s.Ctx.Int(n, destTy), destTy, d.s.Guard(), t.Span)
}

func placeOf(op ir.Operand) (ir.Place, bool) {
	if op.Kind == ir.OConstant {
		return ir.Place{}, false
	}
	return op.Place, true
}
