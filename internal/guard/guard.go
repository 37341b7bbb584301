// SPDX-License-Identifier: Apache-2.0

// Package guard implements the per-path condition: a
// conjunction of expressions kept in canonical form, with conjunction
// update, disjunction merge (common-prefix factored), difference, and
// lowering to a single boolean expression.
package guard

import (
	"rbmc/internal/expr"
	"rbmc/internal/types"
)

// Guard is a conjunction of boolean expressions. The zero Guard is the
// tautology "true". Canonical form: contains expr false alone iff
// unsatisfiable, contains no conjuncts (or only true) iff tautological.
type Guard struct {
	ctx *expr.Context
	conjunct []expr.Expr
	false_ bool
}

// New creates the tautological guard backed by ctx.
func New(ctx *expr.Context) Guard {
	return Guard{ctx: ctx}
}

// IsFalse reports whether the guard is the canonical unsatisfiable guard.
func (g Guard) IsFalse() bool { return g.false_ }

// IsTrue reports whether the guard has no conjuncts.
func (g Guard) IsTrue() bool { return !g.false_ && len(g.conjunct) == 0 }

// Add returns g ∧ simplify(e), collapsed to false if e contradicts an
// existing conjunct or is itself false; if e is itself a conjunction it is
// added recursively.
func (g Guard) Add(e expr.Expr) Guard {
	se := expr.Simplify(e)
	if isFalse(se) {
		return Guard{ctx: g.ctx, false_: true}
	}
	if isTrue(se) {
		return g
	}
	if g.false_ {
		return g
	}
	if se.Kind() == expr.KBinOp && se.Op() == expr.OpAnd {
		return g.Add(se.Child(0)).Add(se.Child(1))
	}
	for _, c := range g.conjunct {
		if contradicts(c, se) {
			return Guard{ctx: g.ctx, false_: true}
		}
		if c.Equal(se) {
			return g // already present
		}
	}
	out := make([]expr.Expr, len(g.conjunct), len(g.conjunct)+1)
	copy(out, g.conjunct)
	out = append(out, se)
	return Guard{ctx: g.ctx, conjunct: out}
}

// contradicts reports whether a and b are syntactic negations of one another.
func contradicts(a, b expr.Expr) bool {
	if a.Kind() == expr.KUnOp && a.Op() == expr.OpNot && a.Child(0).Equal(b) {
		return true
	}
	if b.Kind() == expr.KUnOp && b.Op() == expr.OpNot && b.Child(0).Equal(a) {
		return true
	}
	return false
}

func isTrue(e expr.Expr) bool {
	return e.Kind() == expr.KConst && e.ConstKind() == expr.CBool && e.Bool()
}
func isFalse(e expr.Expr) bool {
	return e.Kind() == expr.KConst && e.ConstKind() == expr.CBool && !e.Bool()
}

// Sub returns g \ other: the conjuncts of g not present in other, used by
// the phi function to compute the "extra" branch condition.
func (g Guard) Sub(other Guard) Guard {
	if g.false_ {
		return g
	}
	present := make(map[expr.ID]bool, len(other.conjunct))
	for _, c := range other.conjunct {
		present[idOf(c)] = true
	}
	out := Guard{ctx: g.ctx}
	for _, c := range g.conjunct {
		if !present[idOf(c)] {
			out = out.Add(c)
		}
	}
	return out
}

func idOf(e expr.Expr) expr.ID { return e.ID() }

// Or returns g ∨ other. Singleton guards disjoin directly; multi-conjunct
// guards factor their common prefix out of the disjunction first, disjoin
// the remainders, simplify, then reinstate the common prefix.
func (g Guard) Or(other Guard) Guard {
	if g.false_ {
		return other
	}
	if other.false_ {
		return g
	}
	if len(g.conjunct) <= 1 && len(other.conjunct) <= 1 {
		return Guard{ctx: g.ctx}.Add(expr.Simplify(g.ctx.BinOp(expr.OpOr, g.Bool(), other.Bool(), types.TyBool)))
	}

	common := commonPrefix(g.conjunct, other.conjunct)
	gRest := dropPrefix(g.conjunct, len(common))
	oRest := dropPrefix(other.conjunct, len(common))

	gRestGuard := Guard{ctx: g.ctx, conjunct: gRest}
	oRestGuard := Guard{ctx: g.ctx, conjunct: oRest}
	disjoined := expr.Simplify(g.ctx.BinOp(expr.OpOr, gRestGuard.Bool(), oRestGuard.Bool(), types.TyBool))

	out := Guard{ctx: g.ctx, conjunct: common}
	return out.Add(disjoined)
}

func commonPrefix(a, b []expr.Expr) []expr.Expr {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i].Equal(b[i]) {
		i++
	}
	out := make([]expr.Expr, i)
	copy(out, a[:i])
	return out
}

func dropPrefix(a []expr.Expr, n int) []expr.Expr {
	out := make([]expr.Expr, len(a)-n)
	copy(out, a[n:])
	return out
}

// Bool lowers the guard to a single boolean expression (the conjunction of
// its conjuncts, or the literal true/false for the trivial cases).
func (g Guard) Bool() expr.Expr {
	if g.false_ {
		return g.ctx.Bool(false)
	}
	if len(g.conjunct) == 0 {
		return g.ctx.Bool(true)
	}
	acc := g.conjunct[0]
	for _, c := range g.conjunct[1:] {
		acc = g.ctx.BinOp(expr.OpAnd, acc, c, types.TyBool)
	}
	return acc
}
