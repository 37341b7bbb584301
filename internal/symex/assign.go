// SPDX-License-Identifier: Apache-2.0

package symex

import (
	"fmt"

	"rbmc/internal/expr"
	"rbmc/internal/guard"
	"rbmc/internal/ir"
	"rbmc/internal/placestate"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
	"rbmc/internal/valueset"
)

// placeType computes the static type of a fully-projected place without any
// of project's side effects, for callers that only need the result type.
func (d *driver) placeType(fr *Frame, place ir.Place) *types.Type {
	ty := fr.Fn.LocalType(place.Local)
	for _, p := range place.Projections {
		switch p.Kind {
		case ir.PDeref:
			ty = ty.PointeeType()
		case ir.PField:
			ty = ty.FieldByIndex(p.Field)
		case ir.PConstantIndex, ir.PIndex:
			ty = elementType(ty)
		case ir.PDowncast:
			ty = ty.VariantByIndex(p.Field).Data
		}
	}
	return ty
}

// execAssign implements Assign statement rule end to end.
func (d *driver) execAssign(fr *Frame, g guard.Guard, place ir.Place, rv ir.Rvalue, span ir.Span) {
	resultTy := d.placeType(fr, place)
	rhs := d.buildRvalue(g, rv, resultTy)
	d.assignPlace(fr, place, rhs, resultTy, g, span)
}

// assignPlace performs the SSA assignment: a bare local gets a fresh L2
// version directly; a projected place rebuilds the whole local's value with
// the targeted sub-part replaced, then assigns that rebuilt value as the
// local's new L2 version rewrites to store on the slice's underlying
// object").
func (d *driver) assignPlace(fr *Frame, place ir.Place, rhs expr.Expr, rhsTy *types.Type, g guard.Guard, span ir.Span) {
	ident := d.s.Syms.Intern(place.Local)
	localTy := fr.Fn.LocalType(place.Local)

	if len(place.Projections) == 0 {
		d.assignIdent(ident, localTy, rhs, span)
		d.installValueSet(place.Local, "", rhsTy, rhs, g, false)
		return
	}

	l1 := d.s.Renamer.CurrentL1(ident)
	baseL1 := d.s.Ctx.Symbol(l1.InternedName(d.s.Syms), localTy)
	baseCurrent := d.s.Renamer.L2Rename(baseL1, true)
	newWhole := d.rebuildAssign(baseCurrent, localTy, place.Projections, rhs, g, span)
	d.assignIdent(ident, localTy, newWhole, span)

	if !containsDeref(place.Projections) {
		d.installValueSet(place.Local, projSuffix(place.Projections), rhsTy, rhs, g, false)
	}
}

// assignIdent bumps ident's L2 version and records the VC assign step,
// propagating or clearing the renamer's constant map.
func (d *driver) assignIdent(ident symbol.Name, ty *types.Type, value expr.Expr, span ir.Span) {
	l1 := d.s.Renamer.CurrentL1(ident)
	l2 := d.s.Renamer.FreshL2(l1)
	lhs := d.s.Ctx.Symbol(l2.InternedName(d.s.Syms), ty)
	d.s.VC.Assign(lhs, value, span)
	if value.Kind() == expr.KConst {
		d.s.Renamer.SetConstant(l1, value)
	} else {
		d.s.Renamer.ClearConstant(l1)
	}
}

// rebuildAssign walks projs the same way project does, but builds the
// updated value of the base expression bottom-up instead of reading
// through it.
func (d *driver) rebuildAssign(base expr.Expr, baseTy *types.Type, projs []ir.Projection, rhs expr.Expr, g guard.Guard, span ir.Span) expr.Expr {
	if len(projs) == 0 {
		return rhs
	}
	p, rest := projs[0], projs[1:]
	switch p.Kind {
	case ir.PField:
		fieldTy := baseTy.FieldByIndex(p.Field)
		curField := d.s.Ctx.Index(base, d.s.Ctx.Int(int64(p.Field), types.TyU64), fieldTy)
		newField := d.rebuildAssign(curField, fieldTy, rest, rhs, g, span)
		fields := make([]expr.Expr, len(baseTy.Fields))
		for i, f := range baseTy.Fields {
			if i == p.Field {
				fields[i] = newField
				continue
			}
			fields[i] = d.s.Ctx.Index(base, d.s.Ctx.Int(int64(i), types.TyU64), f.Type)
		}
		return d.s.Ctx.Aggregate(fields, baseTy)

	case ir.PConstantIndex, ir.PIndex:
		var idxExpr expr.Expr
		if p.Kind == ir.PConstantIndex {
			idxExpr = d.s.Ctx.Int(int64(p.Index), types.TyU64)
		} else {
			idxExpr = d.readLocal(p.IndexOf)
		}
		d.assertBound(g, idxExpr, base, baseTy, span)
		elemTy := elementType(baseTy)
		curElem := d.s.Ctx.Index(base, idxExpr, elemTy)
		newElem := d.rebuildAssign(curElem, elemTy, rest, rhs, g, span)
		return d.s.Ctx.Store(base, idxExpr, newElem)

	case ir.PDowncast:
		v := baseTy.VariantByIndex(p.Field)
		curData := d.s.Ctx.AsVariant(base, int64(p.Field), v.Data)
		newData := d.rebuildAssign(curData, v.Data, rest, rhs, g, span)
		return d.s.Ctx.Variant(int64(p.Field), newData, baseTy)

	case ir.PDeref:
		return d.writeThroughPointer(base, baseTy, rest, rhs, g, span)
	}
	return rhs
}

// writeThroughPointer implements a write-mode Deref: every checked target
// object receives a freshly SSA-versioned value that is its old value
// outside pt_cond and the rebuilt sub-value under it, so a write through an
// imprecisely-resolved pointer never silently clobbers an unrelated object's
// symbolic value. It returns ptr unchanged, so the local that holds the
// pointer keeps its value.
func (d *driver) writeThroughPointer(ptr expr.Expr, pointee *types.Type, rest []ir.Projection, rhs expr.Expr, g guard.Guard, span ir.Span) expr.Expr {
	targets := valueset.Resolve(d.s.Values, ptr, "")
	isNull := d.s.Ctx.BinOp(expr.OpEq, ptr, d.s.Ctx.Null(ptr.Type()), types.TyBool)

	sawNull, sawUnknown := false, false
	for _, t := range targets {
		switch t.Kind {
		case valueset.TNull:
			if !sawNull {
				d.assertSafe(g, isNull, "write through a null pointer", span)
				sawNull = true
			}
		case valueset.TUnknown:
			if !sawUnknown {
				notNull := d.s.Ctx.UnOp(expr.OpNot, isNull, types.TyBool)
				d.assertSafe(g.Add(notNull), d.s.Ctx.Invalid(ptr), "write through an unknown or dangling pointer", span)
				sawUnknown = true
			}
		case valueset.TObject:
			root := d.s.Ctx.Symbol(t.Object, pointee)
			rootAddr := d.s.Ctx.AddressOf(root, types.Pointer(pointee))
			ptCond := d.s.Ctx.SameObject(ptr, rootAddr)

			state := d.s.Places.Get(placestate.NPlace{Ident: t.Object})
			if state == placestate.Unknown || state == placestate.Dead {
				d.assertSafe(g.Add(ptCond), d.s.Ctx.Invalid(root), "write through an invalid place", span)
			}

			newVal := d.rebuildAssign(root, pointee, rest, rhs, g, span)
			merged := d.s.Ctx.Ite(ptCond, newVal, root)
			d.assignIdent(t.Object, pointee, merged, span)
		}
	}
	return ptr
}

// markMoved applies the Move place-state transition: a
// whole-local move makes the local's current place Dead. Moves out of a
// projected place (a struct field, an element) change no place state.
func (d *driver) markMoved(place ir.Place) {
	if len(place.Projections) != 0 {
		return
	}
	ident := d.s.Syms.Intern(place.Local)
	l1 := d.s.Renamer.CurrentL1(ident)
	d.s.Places.Set(placestate.NPlace{Ident: l1.Ident, L1Num: l1.L1Num}, placestate.Dead)
}

// installValueSet implements the points-to assignment rule for
// a pointer-bearing LHS: resolve the RHS's targets and install (or union)
// them at the LHS's L1-qualified identifier.
func (d *driver) installValueSet(localName, suffix string, ty *types.Type, value expr.Expr, g guard.Guard, union bool) {
	if !ty.IsPointerLike() {
		return
	}
	ident := d.s.Syms.Intern(localName)
	l1 := d.s.Renamer.CurrentL1(ident)
	key := d.s.Syms.Text(l1.Ident)
	if l1.L1Num > 0 {
		key = fmt.Sprintf("%s#%d", key, l1.L1Num)
	}
	key += suffix
	targets := valueset.Resolve(d.s.Values, value, "")
	if union {
		d.s.Values.Union(key, targets)
	} else {
		d.s.Values.Install(key, targets)
	}
}

func containsDeref(projs []ir.Projection) bool {
	for _, p := range projs {
		if p.Kind == ir.PDeref {
			return true
		}
	}
	return false
}

func projSuffix(projs []ir.Projection) string {
	suffix := ""
	for i := len(projs) - 1; i >= 0; i-- {
		switch projs[i].Kind {
		case ir.PField:
			suffix += fmt.Sprintf("[%d]", projs[i].Field)
		case ir.PConstantIndex:
			suffix += fmt.Sprintf("[%d]", projs[i].Index)
		}
	}
	return suffix
}
