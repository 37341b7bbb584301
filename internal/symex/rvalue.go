// SPDX-License-Identifier: Apache-2.0

package symex

import (
	"rbmc/internal/expr"
	"rbmc/internal/guard"
	"rbmc/internal/ir"
	"rbmc/internal/types"
)

// readLocal returns the current L2-renamed value of a bare local by name,
// used for index operands and call arguments").
func (d *driver) readLocal(name string) expr.Expr {
	ident := d.s.Syms.Intern(name)
	l1 := d.s.Renamer.CurrentL1(ident)
	ty := d.curFrame.Fn.LocalType(name)
	l1Expr := d.s.Ctx.Symbol(l1.InternedName(d.s.Syms), ty)
	return d.s.Renamer.L2Rename(l1Expr, true)
}

// buildOperand lowers an ir.Operand to an expression. Copy/Move both read
// the current value of the place; the distinction only matters to the
// place-state transition applied by the caller for Move.
func (d *driver) buildOperand(g guard.Guard, op ir.Operand) expr.Expr {
	switch op.Kind {
	case ir.OConstant:
		return d.buildConst(op.Constant)
	default:
		e, _ := d.project(d.curFrame, op.Place, g, ModeRead, ir.Span{})
		renamed := d.s.Renamer.L2Rename(e, true)
		if op.Kind == ir.OMove {
			d.markMoved(op.Place)
		}
		return renamed
	}
}

func (d *driver) buildConst(c ir.ConstValue) expr.Expr {
	if c.IsNull {
		return d.s.Ctx.Null(c.Type)
	}
	switch c.Type.Kind {
	case types.Bool:
		return d.s.Ctx.Bool(c.Bool)
	default:
		return d.s.Ctx.Int(c.Int, c.Type)
	}
}

// buildRvalue lowers an ir.Rvalue to an expression of the given result type
// (address-of, aggregate, binop, unop, cast, use(copy/move), repeat, discriminant).
func (d *driver) buildRvalue(g guard.Guard, rv ir.Rvalue, resultTy *types.Type) expr.Expr {
	switch rv.Kind {
	case ir.RUse:
		return d.buildOperand(g, rv.Operand)
	case ir.RAddressOf:
		e, ty := d.project(d.curFrame, rv.Place, g, ModeRead, ir.Span{})
		return d.s.Ctx.AddressOf(e, types.Pointer(ty))
	case ir.RAggregate:
		fields := make([]expr.Expr, len(rv.Fields))
		for i, f := range rv.Fields {
			fields[i] = d.buildOperand(g, f)
		}
		return d.s.Ctx.Aggregate(fields, resultTy)
	case ir.RBinaryOp:
		lhs := d.buildOperand(g, rv.Lhs)
		rhs := d.buildOperand(g, rv.Rhs)
		return d.s.Ctx.BinOp(binOpOf(rv.BinOp), lhs, rhs, resultTy)
	case ir.RUnaryOp:
		operand := d.buildOperand(g, rv.Operand)
		return d.s.Ctx.UnOp(unOpOf(rv.UnOp), operand, resultTy)
	case ir.RCast:
		operand := d.buildOperand(g, rv.Operand)
		return d.s.Ctx.Cast(operand, resultTy)
	case ir.RRepeat:
		elem := d.buildOperand(g, rv.Operand)
		elems := make([]expr.Expr, rv.Count)
		for i := range elems {
			elems[i] = elem
		}
		return d.s.Ctx.Array(elems, resultTy)
	case ir.RDiscriminant:
		e, _ := d.project(d.curFrame, rv.Place, g, ModeRead, ir.Span{})
		return d.s.Ctx.Discriminant(d.s.Renamer.L2Rename(e, true))
	default:
		return d.s.Ctx.ZST(resultTy)
	}
}

func binOpOf(b ir.BinOpCode) expr.Op {
	switch b {
	case ir.BAdd:
		return expr.OpAdd
	case ir.BSub:
		return expr.OpSub
	case ir.BMul:
		return expr.OpMul
	case ir.BDiv:
		return expr.OpDiv
	case ir.BRem:
		return expr.OpRem
	case ir.BEq:
		return expr.OpEq
	case ir.BNe:
		return expr.OpNe
	case ir.BLt:
		return expr.OpLt
	case ir.BLe:
		return expr.OpLe
	case ir.BGt:
		return expr.OpGt
	case ir.BGe:
		return expr.OpGe
	case ir.BAnd:
		return expr.OpAnd
	case ir.BOr:
		return expr.OpOr
	default:
		return expr.OpAdd
	}
}

func unOpOf(u ir.UnOpCode) expr.Op {
	if u == ir.UNeg {
		return expr.OpNeg
	}
	return expr.OpNot
}
