// SPDX-License-Identifier: Apache-2.0

package expr

import "math/big"

// Simplify applies the fixed bottom-up rewrite policy once and
// returns the simplified expression. It is idempotent and monotone: a
// simplified expression never re-simplifies to something larger.
func Simplify(e Expr) Expr {
	c := e.ctx
	switch e.Kind() {
	case KConst, KSymbol, KTypeToken:
		return e
	case KAddressOf:
		return c.AddressOf(Simplify(e.Child(0)), e.Type())
	case KAggregate:
		return c.Aggregate(simplifyAll(e.Children()), e.Type())
	case KBinOp:
		return simplifyBinOp(c, e)
	case KUnOp:
		return simplifyUnOp(c, e)
	case KIte:
		return simplifyIte(c, e)
	case KCast:
		return simplifyCast(c, e)
	case KIndex:
		return simplifyIndex(c, e)
	case KStore:
		return simplifyStore(c, e)
	case KSlice:
		return c.Slice(Simplify(e.Child(0)), Simplify(e.Child(1)), Simplify(e.Child(2)), e.Type())
	case KPointer:
		return c.Pointer(Simplify(e.Child(0)), Simplify(e.Child(1)), Simplify(e.Child(2)), e.Type())
	case KOffset:
		return simplifyOffset(c, e)
	case KVecWrap:
		return c.VecWrap(Simplify(e.Child(0)), Simplify(e.Child(1)), Simplify(e.Child(2)), e.Type())
	case KVecLen:
		return simplifyVecProj(c, e, 1)
	case KVecCap:
		return simplifyVecProj(c, e, 2)
	case KInnerPtr:
		return simplifyVecProj(c, e, 0)
	case KBoxWrap:
		return c.BoxWrap(Simplify(e.Child(0)), e.Type())
	case KBoxUnwrap:
		inner := Simplify(e.Child(0))
		if inner.Kind() == KBoxWrap {
			return inner.Child(0)
		}
		return c.BoxUnwrap(inner, e.Type())
	case KVariant:
		ch := e.Children()
		if len(ch) == 0 {
			return c.Variant(e.Int64(), Expr{}, e.Type())
		}
		return c.Variant(e.Int64(), Simplify(ch[0]), e.Type())
	case KAsVariant:
		inner := Simplify(e.Child(0))
		if inner.Kind() == KVariant && inner.Int64() == e.Int64() && len(inner.Children()) > 0 {
			return inner.Child(0)
		}
		return c.AsVariant(inner, e.Int64(), e.Type())
	case KDiscrim:
		inner := Simplify(e.Child(0))
		if inner.Kind() == KVariant {
			return c.Int(inner.Int64(), e.Type())
		}
		return c.Discriminant(inner)
	case KSameObject:
		return simplifySameObject(c, e)
	case KValid:
		return c.Valid(Simplify(e.Child(0)))
	case KInvalid:
		return c.Invalid(Simplify(e.Child(0)))
	default:
		return e
	}
}

func simplifyAll(es []Expr) []Expr {
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = Simplify(e)
	}
	return out
}

func isConstInt(e Expr) bool { return e.Kind() == KConst && e.ConstKind() == CBigInt }
func isConstBool(e Expr) bool {
	return e.Kind() == KConst && e.ConstKind() == CBool
}
func isTrue(e Expr) bool { return isConstBool(e) && e.Bool() }
func isFalse(e Expr) bool { return isConstBool(e) && !e.Bool() }
func isNull(e Expr) bool { return e.Kind() == KConst && e.ConstKind() == CNull }

func simplifyBinOp(c *Context, e Expr) Expr {
	l := Simplify(e.Child(0))
	r := Simplify(e.Child(1))
	op := e.Op()

	switch op {
	case OpAnd:
		if isFalse(l) || isFalse(r) {
			return c.Bool(false)
		}
		if isTrue(l) {
			return r
		}
		if isTrue(r) {
			return l
		}
		if isNegationOf(c, l, r) {
			return c.Bool(false)
		}
	case OpOr:
		if isTrue(l) || isTrue(r) {
			return c.Bool(true)
		}
		if isFalse(l) {
			return r
		}
		if isFalse(r) {
			return l
		}
		if isNegationOf(c, l, r) {
			return c.Bool(true)
		}
	case OpImplies:
		if isFalse(l) || isTrue(r) {
			return c.Bool(true)
		}
		if isTrue(l) {
			return r
		}
		if l.Equal(r) {
			return c.Bool(true)
		}
	case OpEq:
		if isNull(l) && isNull(r) {
			return c.Bool(true)
		}
		if isConstInt(l) && isConstInt(r) {
			return c.Bool(l.BigInt().Cmp(r.BigInt()) == 0)
		}
	case OpNe:
		if isNull(l) && isNull(r) {
			return c.Bool(false)
		}
		if isConstInt(l) && isConstInt(r) {
			return c.Bool(l.BigInt().Cmp(r.BigInt()) != 0)
		}
	case OpLt, OpLe, OpGt, OpGe:
		if isConstInt(l) && isConstInt(r) {
			cmp := l.BigInt().Cmp(r.BigInt())
			switch op {
			case OpLt:
				return c.Bool(cmp < 0)
			case OpLe:
				return c.Bool(cmp <= 0)
			case OpGt:
				return c.Bool(cmp > 0)
			case OpGe:
				return c.Bool(cmp >= 0)
			}
		}
	case OpAdd, OpSub, OpMul:
		if isConstInt(l) && isConstInt(r) {
			var v big.Int
			switch op {
			case OpAdd:
				v.Add(l.BigInt(), r.BigInt())
			case OpSub:
				v.Sub(l.BigInt(), r.BigInt())
			case OpMul:
				v.Mul(l.BigInt(), r.BigInt())
			}
			return c.BigInt(&v, e.Type())
		}
		// identity reductions
		if op == OpAdd {
			if isConstIntZero(l) {
				return r
			}
			if isConstIntZero(r) {
				return l
			}
		}
		if op == OpSub {
			if isConstIntZero(r) {
				return l
			}
			if isConstIntZero(l) {
				return c.UnOp(OpNeg, r, e.Type())
			}
		}
		if op == OpMul {
			if isConstIntZero(l) || isConstIntZero(r) {
				return c.Int(0, e.Type())
			}
			if isConstIntOne(l) {
				return r
			}
			if isConstIntOne(r) {
				return l
			}
		}
	case OpDiv, OpRem:
		if isConstInt(l) && isConstInt(r) && r.BigInt().Sign() != 0 {
			var q, m big.Int
			q.QuoRem(l.BigInt(), r.BigInt(), &m)
			if op == OpDiv {
				return c.BigInt(&q, e.Type())
			}
			return c.BigInt(&m, e.Type())
		}
		// division by zero is left unrewritten: a defined error for SMT.
	}
	return c.BinOp(op, l, r, e.Type())
}

func isConstIntZero(e Expr) bool { return isConstInt(e) && e.BigInt().Sign() == 0 }
func isConstIntOne(e Expr) bool { return isConstInt(e) && e.BigInt().Cmp(big.NewInt(1)) == 0 }

// isNegationOf reports whether a == not(b) or b == not(a), syntactically,
// after NNF has already pushed negations to the leaves.
func isNegationOf(c *Context, a, b Expr) bool {
	if a.Kind() == KUnOp && a.Op() == OpNot && a.Child(0).Equal(b) {
		return true
	}
	if b.Kind() == KUnOp && b.Op() == OpNot && b.Child(0).Equal(a) {
		return true
	}
	return false
}

func simplifyUnOp(c *Context, e Expr) Expr {
	operand := Simplify(e.Child(0))
	switch e.Op() {
	case OpNot:
		return nnfNot(c, operand)
	case OpNeg:
		if isConstInt(operand) {
			var v big.Int
			v.Neg(operand.BigInt())
			return c.BigInt(&v, e.Type())
		}
	}
	return c.UnOp(e.Op(), operand, e.Type())
}

// nnfNot pushes a negation into operand, producing negation normal form:
// not is swapped into comparisons, distributed over and/or via De Morgan,
// and double negation collapses.
func nnfNot(c *Context, operand Expr) Expr {
	if isTrue(operand) {
		return c.Bool(false)
	}
	if isFalse(operand) {
		return c.Bool(true)
	}
	if operand.Kind() == KUnOp && operand.Op() == OpNot {
		return operand.Child(0)
	}
	if operand.Kind() == KBinOp {
		l, r := operand.Child(0), operand.Child(1)
		switch operand.Op() {
		case OpAnd:
			return Simplify(c.BinOp(OpOr, c.UnOp(OpNot, l, l.Type()), c.UnOp(OpNot, r, r.Type()), operand.Type()))
		case OpOr:
			return Simplify(c.BinOp(OpAnd, c.UnOp(OpNot, l, l.Type()), c.UnOp(OpNot, r, r.Type()), operand.Type()))
		case OpEq:
			return Simplify(c.BinOp(OpNe, l, r, operand.Type()))
		case OpNe:
			return Simplify(c.BinOp(OpEq, l, r, operand.Type()))
		case OpLt:
			return Simplify(c.BinOp(OpGe, l, r, operand.Type()))
		case OpLe:
			return Simplify(c.BinOp(OpGt, l, r, operand.Type()))
		case OpGt:
			return Simplify(c.BinOp(OpLe, l, r, operand.Type()))
		case OpGe:
			return Simplify(c.BinOp(OpLt, l, r, operand.Type()))
		}
	}
	return c.UnOp(OpNot, operand, operand.Type())
}

func simplifyIte(c *Context, e Expr) Expr {
	cond := Simplify(e.Child(0))
	then := Simplify(e.Child(1))
	els := Simplify(e.Child(2))
	if isTrue(cond) {
		return then
	}
	if isFalse(cond) {
		return els
	}
	if then.Equal(els) {
		return then
	}
	return c.Ite(cond, then, els)
}

func simplifyCast(c *Context, e Expr) Expr {
	operand := Simplify(e.Child(0))
	to := e.Type()
	if isConstInt(operand) && to.Kind.IsInt() {
		return c.BigInt(operand.BigInt(), to)
	}
	if operand.Type() != nil && operand.Type().IsPointerLike() && to.Kind.IsInt() {
		if isNull(operand) {
			return c.Int(0, to)
		}
		// any pointer constant casts to integer zero (the null-to-int convention).
	}
	if operand.Type() != nil && operand.Type().IsPointerLike() && to.IsPointerLike() {
		return operand // pointer->pointer cast is a no-op at the expression layer
	}
	return c.Cast(operand, to)
}

func simplifyIndex(c *Context, e Expr) Expr {
	base := Simplify(e.Child(0))
	idx := Simplify(e.Child(1))

	// read-through-write: index(store(o,i,v), j) with i==j => v.
	if base.Kind() == KStore {
		storedIdx := base.Child(1)
		if isConstInt(idx) && isConstInt(storedIdx) && idx.BigInt().Cmp(storedIdx.BigInt()) == 0 {
			return base.Child(2)
		}
	}
	// index into an aggregate constant folds to the field.
	if isConstInt(idx) && (base.Kind() == KConst && (base.ConstKind() == CArray || base.ConstKind() == CAdt)) {
		i := int(idx.BigInt().Int64())
		children := base.Children()
		if i >= 0 && i < len(children) {
			return children[i]
		}
	}
	if base.Kind() == KAggregate {
		if isConstInt(idx) {
			i := int(idx.BigInt().Int64())
			children := base.Children()
			if i >= 0 && i < len(children) {
				return children[i]
			}
		}
	}
	return c.Index(base, idx, e.Type())
}

func simplifyStore(c *Context, e Expr) Expr {
	base := Simplify(e.Child(0))
	idx := Simplify(e.Child(1))
	val := Simplify(e.Child(2))

	// write-through-write: store(store(o,i,_),i,v) => store(o,i,v).
	if base.Kind() == KStore {
		innerIdx := base.Child(1)
		if isConstInt(idx) && isConstInt(innerIdx) && idx.BigInt().Cmp(innerIdx.BigInt()) == 0 {
			return c.Store(base.Child(0), idx, val)
		}
	}
	return c.Store(base, idx, val)
}

func simplifyOffset(c *Context, e Expr) Expr {
	p := Simplify(e.Child(0))
	k := Simplify(e.Child(1))
	if isConstIntZero(k) {
		return p
	}
	if p.Kind() == KOffset && isConstInt(k) && isConstInt(p.Child(1)) {
		var v big.Int
		v.Add(p.Child(1).BigInt(), k.BigInt())
		return c.Offset(p.Child(0), c.BigInt(&v, k.Type()))
	}
	return c.Offset(p, k)
}

func simplifyVecProj(c *Context, e Expr, childIdx int) Expr {
	v := Simplify(e.Child(0))
	if v.Kind() == KVecWrap {
		return v.Child(childIdx)
	}
	switch childIdx {
	case 1:
		return c.VecLen(v)
	case 2:
		return c.VecCap(v)
	default:
		return c.InnerPointer(v, e.Type())
	}
}

func simplifySameObject(c *Context, e Expr) Expr {
	a := Simplify(e.Child(0))
	b := Simplify(e.Child(1))
	if a.Equal(b) {
		return c.Bool(true)
	}
	// same_object(x,x)=true; otherwise preserved (not folded to false, since
	// distinct syntactic objects may still alias through an unresolved base).
	return c.SameObject(a, b)
}
