// SPDX-License-Identifier: Apache-2.0

package symex

import (
	"fmt"

	"rbmc/internal/expr"
	"rbmc/internal/guard"
	"rbmc/internal/ir"
	"rbmc/internal/placestate"
	"rbmc/internal/types"
	"rbmc/internal/valueset"
)

// DerefMode discriminates why a place is being dereferenced. Slice is not
// modeled: this IR consumer generation has no dedicated slice-rvalue node,
// so l/r bound synthesis for Mode Slice(l, r) has no call site yet (see
// DESIGN.md).
type DerefMode int

const (
	ModeRead DerefMode = iota
	ModeDrop
	ModeDealloc
)

func (m DerefMode) String() string {
	switch m {
	case ModeDrop:
		return "drop"
	case ModeDealloc:
		return "dealloc"
	default:
		return "read"
	}
}

// project walks place's projection chain starting from its local's current
// L1 version, returning the L1-level expression denoting the
// projected value (or, for Drop/Dealloc, a placeholder of the same type —
// the interesting work for those modes is the side effect on place-state
// and points-to, performed in line).
func (d *driver) project(fr *Frame, place ir.Place, g guard.Guard, mode DerefMode, span ir.Span) (expr.Expr, *types.Type) {
	ident := d.s.Syms.Intern(place.Local)
	l1 := d.s.Renamer.CurrentL1(ident)
	curTy := fr.Fn.LocalType(place.Local)
	cur := d.s.Ctx.Symbol(l1.InternedName(d.s.Syms), curTy)

	for i, proj := range place.Projections {
		last := i == len(place.Projections)-1
		switch proj.Kind {
		case ir.PDeref:
			pointee := curTy.PointeeType()
			effMode := ModeRead
			if last {
				effMode = mode
			}
			cur, curTy = d.derefStep(cur, pointee, g, effMode, span)
		case ir.PField:
			fieldTy := curTy.FieldByIndex(proj.Field)
			cur = d.s.Ctx.Index(cur, d.s.Ctx.Int(int64(proj.Field), types.TyU64), fieldTy)
			curTy = fieldTy
		case ir.PConstantIndex:
			elemTy := elementType(curTy)
			d.assertBound(g, d.s.Ctx.Int(int64(proj.Index), types.TyU64), cur, curTy, span)
			cur = d.s.Ctx.Index(cur, d.s.Ctx.Int(int64(proj.Index), types.TyU64), elemTy)
			curTy = elemTy
		case ir.PIndex:
			elemTy := elementType(curTy)
			idxVal := d.readLocal(proj.IndexOf)
			d.assertBound(g, idxVal, cur, curTy, span)
			cur = d.s.Ctx.Index(cur, idxVal, elemTy)
			curTy = elemTy
		case ir.PDowncast:
			v := curTy.VariantByIndex(proj.Field)
			cur = d.s.Ctx.AsVariant(cur, int64(proj.Field), v.Data)
			curTy = v.Data
		}
	}
	return cur, curTy
}

// assertBound emits the bound check "index in [0, len)" before an
// index projection is applied. For a fixed-length array len is the static
// Len; for a Vec it is the runtime vec_len field of agg, read back via
// expr.VecLen. Slice carries no length representation in this IR
// generation (see DerefMode's doc comment) and is left unchecked: there is
// no node here or in internal/smtenc that derives a slice's length, so
// nothing downstream rejects an out-of-range slice index either.
func (d *driver) assertBound(g guard.Guard, idx expr.Expr, agg expr.Expr, aggTy *types.Type, span ir.Span) {
	var length expr.Expr
	switch aggTy.Kind {
	case types.Array:
		length = d.s.Ctx.Int(int64(aggTy.Len), types.TyU64)
	case types.Vec:
		length = d.s.Ctx.VecLen(agg)
	default:
		return
	}
	inBounds := d.s.Ctx.BinOp(expr.OpAnd,
		d.s.Ctx.BinOp(expr.OpGe, idx, d.s.Ctx.Int(0, types.TyU64), types.TyBool),
		d.s.Ctx.BinOp(expr.OpLt, idx, length, types.TyBool),
		types.TyBool)
	d.assertSafe(g, d.s.Ctx.UnOp(expr.OpNot, inBounds, types.TyBool), "index out of bounds", span)
}

// derefStep implements Deref rule: resolve the points-to set of
// ptr, emit the null/unknown/validity checks per target, and fold the
// per-target disjuncts into one ITE chain of type pointee.
func (d *driver) derefStep(ptr expr.Expr, pointee *types.Type, g guard.Guard, mode DerefMode, span ir.Span) (expr.Expr, *types.Type) {
	targets := valueset.Resolve(d.s.Values, ptr, "")
	isNull := d.s.Ctx.BinOp(expr.OpEq, ptr, d.s.Ctx.Null(ptr.Type()), types.TyBool)

	acc := d.s.Ctx.Symbol(d.s.FreshNondet(pointee), pointee)
	sawNull, sawUnknown := false, false
	for _, t := range targets {
		switch t.Kind {
		case valueset.TNull:
			if !sawNull {
				d.assertSafe(g, isNull, fmt.Sprintf("%s of a null pointer", mode), span)
				sawNull = true
			}
		case valueset.TUnknown:
			if !sawUnknown {
				notNull := d.s.Ctx.UnOp(expr.OpNot, isNull, types.TyBool)
				bad := d.s.Ctx.Invalid(ptr)
				d.assertSafe(g.Add(notNull), bad, fmt.Sprintf("%s through an unknown or dangling pointer", mode), span)
				sawUnknown = true
			}
		case valueset.TObject:
			root := d.s.Ctx.Symbol(t.Object, pointee)
			rootAddr := d.s.Ctx.AddressOf(root, types.Pointer(pointee))
			ptCond := d.s.Ctx.SameObject(ptr, rootAddr)

			state := d.s.Places.Get(placestate.NPlace{Ident: t.Object})
			if state == placestate.Unknown || state == placestate.Dead {
				d.assertSafe(g.Add(ptCond), d.s.Ctx.Invalid(root), fmt.Sprintf("%s of an invalid place", mode), span)
			}

			if mode == ModeDrop || mode == ModeDealloc {
				if t.HasOffset && t.Offset != 0 {
					d.assertSafe(g.Add(ptCond), d.s.Ctx.Bool(true), fmt.Sprintf("%s at a non-zero offset", mode), span)
				}
				d.s.Places.Set(placestate.NPlace{Ident: t.Object}, placestate.Dead)
				continue
			}

			disjunct := root
			if t.HasOffset && t.Offset != 0 && pointee.Kind == types.Array {
				disjunct = d.s.Ctx.Index(root, d.s.Ctx.Int(int64(t.Offset), types.TyU64), pointee.Elem)
			}
			acc = d.s.Ctx.Ite(ptCond, disjunct, acc)
		}
	}
	return acc, pointee
}

func elementType(t *types.Type) *types.Type {
	switch t.Kind {
	case types.Array, types.Slice:
		return t.Elem
	default:
		return t.Pointee
	}
}
