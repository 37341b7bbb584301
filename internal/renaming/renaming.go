// SPDX-License-Identifier: Apache-2.0

// Package renaming implements the three-level SSA naming scheme: L0 is the
// source identifier, L1 is a live-range version bumped on every StorageLive
// and L1-level assignment, L2 is the per-L1 assignment counter. An optional
// constant map propagates constant values bound at L1.
package renaming

import (
	"fmt"

	"rbmc/internal/expr"
	"rbmc/internal/symbol"
)

// Level discriminates which of the three namespaces a Sym currently names.
type Level int

const (
	L0 Level = iota
	L1
	L2
)

// Sym is the data-model Symbol: Ident is stable, L1Num/L2Num are
// the version counters. L0 ⇒ both counters zero; L1 ⇒ L1Num>0, L2Num=0;
// L2 ⇒ both >0.
type Sym struct {
	Ident symbol.Name
	L1Num int
	L2Num int
}

// Level reports which namespace the symbol currently occupies.
func (s Sym) Level() Level {
	switch {
	case s.L1Num == 0:
		return L0
	case s.L2Num == 0:
		return L1
	default:
		return L2
	}
}

// l1Key returns the textual key identifying this (ident, l1num) pair,
// independent of any L2 version — the constant map is keyed on exactly this.
func (s Sym) l1Key(syms *symbol.Store) symbol.Name {
	return syms.Intern(fmt.Sprintf("%s#%d", syms.Text(s.Ident), s.L1Num))
}

// InternedName returns the fully-qualified textual name for s, suitable for
// building an expr.Symbol leaf that uniquely identifies this SSA version.
func (s Sym) InternedName(syms *symbol.Store) symbol.Name {
	switch s.Level() {
	case L0:
		return s.Ident
	case L1:
		return s.l1Key(syms)
	default:
		return syms.Intern(fmt.Sprintf("%s#%d.%d", syms.Text(s.Ident), s.L1Num, s.L2Num))
	}
}

// Renamer owns the L1/L2 version counters and the constant map for one run.
// Per-frame entries are cleared by the driver when a frame is popped;
// Renamer itself is frame-agnostic — callers pass idents already
// disambiguated by frame id where recursion requires it.
type Renamer struct {
	syms *symbol.Store
	ctx *expr.Context

	l1Count map[symbol.Name]int
	l2Count map[symbol.Name]int // keyed by l1Key
	constMap map[symbol.Name]expr.Expr // keyed by l1Key
}

// New creates a Renamer over the given symbol store and expression context.
func New(syms *symbol.Store, ctx *expr.Context) *Renamer {
	return &Renamer{
		syms: syms,
		ctx: ctx,
		l1Count: make(map[symbol.Name]int),
		l2Count: make(map[symbol.Name]int),
		constMap: make(map[symbol.Name]expr.Expr),
	}
}

// FreshL1 bumps and returns a new L1 version for ident (StorageLive or an
// L1-level assignment).
func (r *Renamer) FreshL1(ident symbol.Name) Sym {
	r.l1Count[ident]++
	return Sym{Ident: ident, L1Num: r.l1Count[ident]}
}

// CurrentL1 returns the current L1 version for ident, lazily creating the
// first version on first reference.
func (r *Renamer) CurrentL1(ident symbol.Name) Sym {
	if r.l1Count[ident] == 0 {
		r.l1Count[ident] = 1
	}
	return Sym{Ident: ident, L1Num: r.l1Count[ident]}
}

// FreshL2 bumps and returns a new L2 version under l1 (an assignment).
func (r *Renamer) FreshL2(l1 Sym) Sym {
	key := l1.l1Key(r.syms)
	r.l2Count[key]++
	return Sym{Ident: l1.Ident, L1Num: l1.L1Num, L2Num: r.l2Count[key]}
}

// CurrentL2 returns the current L2 version under l1, lazily creating the
// first version.
func (r *Renamer) CurrentL2(l1 Sym) Sym {
	key := l1.l1Key(r.syms)
	if r.l2Count[key] == 0 {
		r.l2Count[key] = 1
	}
	return Sym{Ident: l1.Ident, L1Num: l1.L1Num, L2Num: r.l2Count[key]}
}

// SetConstant records that l1 currently holds a deep-constant value.
func (r *Renamer) SetConstant(l1 Sym, value expr.Expr) {
	r.constMap[l1.l1Key(r.syms)] = value
}

// ClearConstant forgets any constant recorded for l1 (a non-constant RHS was
// assigned).
func (r *Renamer) ClearConstant(l1 Sym) {
	delete(r.constMap, l1.l1Key(r.syms))
}

// Constant looks up the constant recorded for l1, if any.
func (r *Renamer) Constant(l1 Sym) (expr.Expr, bool) {
	v, ok := r.constMap[l1.l1Key(r.syms)]
	return v, ok
}

// ForgetFrame drops every L1/L2 counter and constant-map entry for idents
// local to a popped frame. Callers pass the set of
// local idents owned by that frame.
func (r *Renamer) ForgetFrame(idents []symbol.Name) {
	for _, ident := range idents {
		if n, ok := r.l1Count[ident]; ok {
			for v := 1; v <= n; v++ {
				key := Sym{Ident: ident, L1Num: v}.l1Key(r.syms)
				delete(r.l2Count, key)
				delete(r.constMap, key)
			}
		}
		delete(r.l1Count, ident)
	}
}

// L1Rename substitutes every L0 leaf symbol in e with its current L1
// version. Address-of subtrees are still walked,
// since they must reach their eventual L1 name too — they are simply never
// re-renamed to L2 afterwards (see L2Rename).
func (r *Renamer) L1Rename(e expr.Expr) expr.Expr {
	return r.transform(e, false, false)
}

// L2Rename ensures L1 first, then substitutes every L1 leaf symbol with its
// current L2 version — or, when propagate is true and the constant map
// holds a value for that L1 symbol, splices the constant expression in
// directly. Subtrees under address-of are never L2-renamed.
func (r *Renamer) L2Rename(e expr.Expr, propagate bool) expr.Expr {
	return r.transform(e, true, propagate)
}

// transform walks e rebuilding KSymbol leaves. toL2 selects L1Rename vs
// L2Rename; propagate only matters when toL2 is true. insideAddressOf
// freezes renaming at L1 once we have descended past an address-of.
func (r *Renamer) transform(e expr.Expr, toL2, propagate bool) expr.Expr {
	return r.transformRec(e, toL2, propagate, false)
}

func (r *Renamer) transformRec(e expr.Expr, toL2, propagate, insideAddressOf bool) expr.Expr {
	c := r.ctx
	switch e.Kind() {
	case expr.KSymbol:
		ident := e.Symbol()
		l1 := r.CurrentL1(ident)
		if !toL2 || insideAddressOf {
			return c.Symbol(l1.InternedName(r.syms), e.Type())
		}
		if propagate {
			if v, ok := r.Constant(l1); ok {
				return v
			}
		}
		l2 := r.CurrentL2(l1)
		return c.Symbol(l2.InternedName(r.syms), e.Type())
	case expr.KConst, expr.KTypeToken:
		return e
	case expr.KAddressOf:
		return c.AddressOf(r.transformRec(e.Child(0), toL2, propagate, true), e.Type())
	default:
		return rebuild(c, e, func(child expr.Expr) expr.Expr {
			return r.transformRec(child, toL2, propagate, insideAddressOf)
		})
	}
}

// rebuild reconstructs e with every child replaced by f(child), preserving
// e's kind-specific payload (op, constant index, etc).
func rebuild(c *expr.Context, e expr.Expr, f func(expr.Expr) expr.Expr) expr.Expr {
	ch := e.Children()
	out := make([]expr.Expr, len(ch))
	for i, child := range ch {
		out[i] = f(child)
	}
	switch e.Kind() {
	case expr.KAggregate:
		return c.Aggregate(out, e.Type())
	case expr.KBinOp:
		return c.BinOp(e.Op(), out[0], out[1], e.Type())
	case expr.KUnOp:
		return c.UnOp(e.Op(), out[0], e.Type())
	case expr.KIte:
		return c.Ite(out[0], out[1], out[2])
	case expr.KCast:
		return c.Cast(out[0], e.Type())
	case expr.KIndex:
		return c.Index(out[0], out[1], e.Type())
	case expr.KStore:
		return c.Store(out[0], out[1], out[2])
	case expr.KSlice:
		return c.Slice(out[0], out[1], out[2], e.Type())
	case expr.KPointer:
		return c.Pointer(out[0], out[1], out[2], e.Type())
	case expr.KPtrBase:
		return c.PtrBase(out[0])
	case expr.KPtrOffset:
		return c.PtrOffset(out[0])
	case expr.KPtrMeta:
		return c.PtrMeta(out[0])
	case expr.KOffset:
		return c.Offset(out[0], out[1])
	case expr.KVecWrap:
		return c.VecWrap(out[0], out[1], out[2], e.Type())
	case expr.KVecLen:
		return c.VecLen(out[0])
	case expr.KVecCap:
		return c.VecCap(out[0])
	case expr.KInnerPtr:
		return c.InnerPointer(out[0], e.Type())
	case expr.KBoxWrap:
		return c.BoxWrap(out[0], e.Type())
	case expr.KBoxUnwrap:
		return c.BoxUnwrap(out[0], e.Type())
	case expr.KVariant:
		if len(out) == 0 {
			return c.Variant(e.Int64(), expr.Expr{}, e.Type())
		}
		return c.Variant(e.Int64(), out[0], e.Type())
	case expr.KAsVariant:
		return c.AsVariant(out[0], e.Int64(), e.Type())
	case expr.KDiscrim:
		return c.Discriminant(out[0])
	case expr.KSameObject:
		return c.SameObject(out[0], out[1])
	case expr.KValid:
		return c.Valid(out[0])
	case expr.KInvalid:
		return c.Invalid(out[0])
	default:
		return e
	}
}
