// SPDX-License-Identifier: Apache-2.0

// Package expr implements the hash-consed expression DAG ("Expression
// context"): every node carries a type, terminals are constants/type-
// tokens/symbols, internal nodes encode address-of, aggregate, binary/unary
// ops, if-then-else, cast, index, store, slice, the pointer triple and its
// projections, smart-pointer wrappers, variant constructors/projectors, and
// the Valid/Invalid/same_object predicate sublanguage. A Context is shared,
// interior-mutable state; every subsystem holds a *Context handle rather
// than threading one explicitly.
package expr

import (
	"fmt"
	"math/big"

	"rbmc/internal/symbol"
	"rbmc/internal/types"
)

// ID identifies a node within a Context. The zero ID is invalid.
type ID uint32

type node struct {
	kind Kind
	typ *types.Type
	children []ID

	op Op
	constK ConstKind
	i64 int64 // field/variant index, constant offset, etc.
	big *big.Int
	boolean bool
	sym symbol.Name
}

// Context is the shared expression interning table. The zero Context is not
// usable; call NewContext.
type Context struct {
	syms *symbol.Store
	nodes []node
	index map[string]ID
}

// NewContext creates an empty expression context backed by syms for
// identifier interning.
func NewContext(syms *symbol.Store) *Context {
	return &Context{
		syms: syms,
		nodes: []node{{}}, // index 0 reserved, never a valid ID
		index: make(map[string]ID),
	}
}

// Expr is a value-typed handle into a Context: (ctx handle, node id), per
// Equality is id-equality under the same Context.
type Expr struct {
	ctx *Context
	id ID
}

// Invalid reports whether e is the zero Expr.
func (e Expr) Invalid() bool { return e.ctx == nil || e.id == 0 }

// Equal reports whether e and o are the same interned node.
func (e Expr) Equal(o Expr) bool { return e.ctx == o.ctx && e.id == o.id }

// ID returns e's interned node id, usable as a map key within one Context.
func (e Expr) ID() ID { return e.id }

// Kind returns e's node kind.
func (e Expr) Kind() Kind { return e.ctx.nodes[e.id].kind }

// Type returns e's static type.
func (e Expr) Type() *types.Type { return e.ctx.nodes[e.id].typ }

// Children returns e's child expressions.
func (e Expr) Children() []Expr {
	ch := e.ctx.nodes[e.id].children
	out := make([]Expr, len(ch))
	for i, c := range ch {
		out[i] = Expr{e.ctx, c}
	}
	return out
}

// Child returns the i-th child.
func (e Expr) Child(i int) Expr { return Expr{e.ctx, e.ctx.nodes[e.id].children[i]} }

// Op returns the operator code for a KBinOp/KUnOp node.
func (e Expr) Op() Op { return e.ctx.nodes[e.id].op }

// Int64 returns the integral payload (field index, offset, variant tag…).
func (e Expr) Int64() int64 { return e.ctx.nodes[e.id].i64 }

// Bool returns the boolean payload of a CBool constant.
func (e Expr) Bool() bool { return e.ctx.nodes[e.id].boolean }

// BigInt returns the integer payload of a CBigInt constant.
func (e Expr) BigInt() *big.Int { return e.ctx.nodes[e.id].big }

// ConstKind returns the constant discriminant for a KConst node.
func (e Expr) ConstKind() ConstKind { return e.ctx.nodes[e.id].constK }

// Symbol returns the interned name carried by a KSymbol node.
func (e Expr) Symbol() symbol.Name { return e.ctx.nodes[e.id].sym }

// SymbolText returns the textual form of a KSymbol node's name.
func (e Expr) SymbolText() string { return e.ctx.syms.Text(e.ctx.nodes[e.id].sym) }

// intern returns the existing ID for n if one exists, else allocates one.
// The key collapses (kind, type identity, children, and payload) into a
// single string; a bounded analysis does not need interning to be
// allocation-free, only deterministic.
func (c *Context) intern(n node) Expr {
	key := n.key()
	if id, ok := c.index[key]; ok {
		return Expr{c, id}
	}
	id := ID(len(c.nodes))
	c.nodes = append(c.nodes, n)
	c.index[key] = id
	return Expr{c, id}
}

func (n node) key() string {
	bigStr := ""
	if n.big != nil {
		bigStr = n.big.String()
	}
	return fmt.Sprintf("%d|%p|%v|%d|%d|%d|%s|%t|%d", n.kind, n.typ, n.children, n.op, n.constK, n.i64, bigStr, n.boolean, n.sym)
}

// --- terminal constructors ---

// Symbol interns a symbol reference node of type typ.
func (c *Context) Symbol(name symbol.Name, typ *types.Type) Expr {
	return c.intern(node{kind: KSymbol, typ: typ, sym: name})
}

// Bool interns a boolean constant.
func (c *Context) Bool(v bool) Expr {
	return c.intern(node{kind: KConst, typ: types.TyBool, constK: CBool, boolean: v})
}

// Int interns a sized-integer constant.
func (c *Context) Int(v int64, typ *types.Type) Expr {
	return c.intern(node{kind: KConst, typ: typ, constK: CBigInt, big: big.NewInt(v)})
}

// BigInt interns an arbitrary-precision integer constant.
func (c *Context) BigInt(v *big.Int, typ *types.Type) Expr {
	return c.intern(node{kind: KConst, typ: typ, constK: CBigInt, big: new(big.Int).Set(v)})
}

// Null interns the null pointer constant of the given pointer-like type.
func (c *Context) Null(typ *types.Type) Expr {
	return c.intern(node{kind: KConst, typ: typ, constK: CNull})
}

// Array interns an array constant from element expressions.
func (c *Context) Array(elems []Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KConst, typ: typ, constK: CArray, children: ids(elems)})
}

// Adt interns a struct/tuple/enum constant from field expressions. For an
// enum, fields[0] must be the variant index constant.
func (c *Context) Adt(fields []Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KConst, typ: typ, constK: CAdt, children: ids(fields)})
}

// ZST interns the unique value of a zero-sized type.
func (c *Context) ZST(typ *types.Type) Expr {
	return c.intern(node{kind: KConst, typ: typ, constK: CZST})
}

func ids(es []Expr) []ID {
	out := make([]ID, len(es))
	for i, e := range es {
		out[i] = e.id
	}
	return out
}

// --- internal-node constructors ---

func (c *Context) AddressOf(obj Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KAddressOf, typ: typ, children: []ID{obj.id}})
}

func (c *Context) Aggregate(fields []Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KAggregate, typ: typ, children: ids(fields)})
}

func (c *Context) BinOp(op Op, lhs, rhs Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KBinOp, typ: typ, op: op, children: []ID{lhs.id, rhs.id}})
}

func (c *Context) UnOp(op Op, operand Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KUnOp, typ: typ, op: op, children: []ID{operand.id}})
}

func (c *Context) Ite(cond, then, els Expr) Expr {
	return c.intern(node{kind: KIte, typ: then.Type(), children: []ID{cond.id, then.id, els.id}})
}

func (c *Context) Cast(operand Expr, to *types.Type) Expr {
	return c.intern(node{kind: KCast, typ: to, children: []ID{operand.id}})
}

func (c *Context) Index(base, idx Expr, elemTy *types.Type) Expr {
	return c.intern(node{kind: KIndex, typ: elemTy, children: []ID{base.id, idx.id}})
}

func (c *Context) Store(base, idx, val Expr) Expr {
	return c.intern(node{kind: KStore, typ: base.Type(), children: []ID{base.id, idx.id, val.id}})
}

func (c *Context) Slice(root, start, length Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KSlice, typ: typ, children: []ID{root.id, start.id, length.id}})
}

func (c *Context) Pointer(base, offset, meta Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KPointer, typ: typ, children: []ID{base.id, offset.id, meta.id}})
}

func (c *Context) PtrBase(p Expr) Expr {
	return c.intern(node{kind: KPtrBase, typ: types.TyU64, children: []ID{p.id}})
}

func (c *Context) PtrOffset(p Expr) Expr {
	return c.intern(node{kind: KPtrOffset, typ: types.TyI64, children: []ID{p.id}})
}

func (c *Context) PtrMeta(p Expr) Expr {
	return c.intern(node{kind: KPtrMeta, typ: types.TyI64, children: []ID{p.id}})
}

func (c *Context) Offset(p, k Expr) Expr {
	return c.intern(node{kind: KOffset, typ: p.Type(), children: []ID{p.id, k.id}})
}

func (c *Context) VecWrap(ptr, length, cap Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KVecWrap, typ: typ, children: []ID{ptr.id, length.id, cap.id}})
}

func (c *Context) VecLen(v Expr) Expr {
	return c.intern(node{kind: KVecLen, typ: types.TyU64, children: []ID{v.id}})
}

func (c *Context) VecCap(v Expr) Expr {
	return c.intern(node{kind: KVecCap, typ: types.TyU64, children: []ID{v.id}})
}

func (c *Context) InnerPointer(v Expr, ptrTy *types.Type) Expr {
	return c.intern(node{kind: KInnerPtr, typ: ptrTy, children: []ID{v.id}})
}

func (c *Context) BoxWrap(ptr Expr, typ *types.Type) Expr {
	return c.intern(node{kind: KBoxWrap, typ: typ, children: []ID{ptr.id}})
}

func (c *Context) BoxUnwrap(b Expr, ptrTy *types.Type) Expr {
	return c.intern(node{kind: KBoxUnwrap, typ: ptrTy, children: []ID{b.id}})
}

func (c *Context) Variant(tag int64, data Expr, typ *types.Type) Expr {
	n := node{kind: KVariant, typ: typ, i64: tag}
	if !data.Invalid() {
		n.children = []ID{data.id}
	}
	return c.intern(n)
}

func (c *Context) AsVariant(obj Expr, tag int64, dataTy *types.Type) Expr {
	return c.intern(node{kind: KAsVariant, typ: dataTy, i64: tag, children: []ID{obj.id}})
}

func (c *Context) Discriminant(obj Expr) Expr {
	return c.intern(node{kind: KDiscrim, typ: types.TyU32, children: []ID{obj.id}})
}

func (c *Context) SameObject(a, b Expr) Expr {
	return c.intern(node{kind: KSameObject, typ: types.TyBool, children: []ID{a.id, b.id}})
}

func (c *Context) Valid(obj Expr) Expr {
	return c.intern(node{kind: KValid, typ: types.TyBool, children: []ID{obj.id}})
}

func (c *Context) Invalid(obj Expr) Expr {
	return c.intern(node{kind: KInvalid, typ: types.TyBool, children: []ID{obj.id}})
}

// TypeToken interns a first-class reference to a type, used by the Layout
// builtins.
func (c *Context) TypeToken(typ *types.Type) Expr {
	return c.intern(node{kind: KTypeToken, typ: typ})
}
