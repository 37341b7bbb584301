// SPDX-License-Identifier: Apache-2.0

package smtenc

import (
	"fmt"
	"math/big"

	"rbmc/internal/expr"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
)

// Encoder lowers expr.Expr trees to SMT-LIB2 term text and drives a Backend.
// It holds no reference to the VC system or the symex state —
// both the slicer and the driver only ever hand it expressions, matching
// the read-only role the VC system grants it.
type Encoder struct {
	syms *symbol.Store
	sorts *Sorter
	backend Backend
	objs *ObjSpace
	allocOf AllocTermFunc

	declaredConst map[string]bool
	termCache map[expr.ID]string
	typeIDs map[*types.Type]int64
	allocArray string
	heapIdents map[symbol.Name]bool
}

// New creates an Encoder over backend. allocOf resolves a heap object's
// "currently allocated" boolean term (see AllocTermFunc); heapObjects is
// the set of symbol names the orchestrator recognizes as heap-object roots,
// distinguishing a bare object-value symbol from an ordinary pointer-valued
// expression when lowering Valid/Invalid.
func New(syms *symbol.Store, backend Backend, allocOf AllocTermFunc, heapObjects []symbol.Name) *Encoder {
	e := &Encoder{
		syms: syms,
		sorts: NewSorter(),
		backend: backend,
		objs: NewObjSpace(syms, backend),
		allocOf: allocOf,
		declaredConst: make(map[string]bool),
		termCache: make(map[expr.ID]string),
		typeIDs: make(map[*types.Type]int64),
		allocArray: "((as const (Array Int Bool)) false)",
		heapIdents: make(map[symbol.Name]bool, len(heapObjects)),
	}
	for _, id := range heapObjects {
		e.heapIdents[id] = true
	}
	return e
}

// Flush emits every datatype declaration the Sorter has accumulated since
// the last Flush. Call once before the first Assign/Assume/Assert and again
// after any type first referenced mid-encoding (struct/enum ADTs are
// declared lazily, on first use).
func (e *Encoder) Flush() error {
	for _, d := range e.sorts.Pending() {
		if err := e.backend.Declare(declCommand(d)); err != nil {
			return err
		}
	}
	return nil
}

func declCommand(d Decl) string {
	s := fmt.Sprintf("(declare-datatypes ((%s 0)) ((", d.SortName)
	for _, c := range d.Ctors {
		s += "(" + c.Name
		for _, f := range c.Fields {
			s += fmt.Sprintf(" (%s %s)", f.Name, f.Sort)
		}
		s += ")"
	}
	s += ")))"
	return s
}

// EncodeAssign lowers one VC Assign step: declares lhs's symbol, encodes
// rhs, and asserts their equality. The memoized term for lhs's node id
// becomes the encoded rhs term, so later reads of the same L2 symbol reuse
// it directly rather than re-declaring.
func (e *Encoder) EncodeAssign(lhs, rhs expr.Expr) error {
	if err := e.Flush(); err != nil {
		return err
	}
	rhsTerm, err := e.Encode(rhs)
	if err != nil {
		return err
	}
	if err := e.Flush(); err != nil {
		return err
	}
	lhsTerm, err := e.Encode(lhs)
	if err != nil {
		return err
	}
	e.termCache[lhs.ID()] = rhsTerm
	return e.backend.Assert(fmt.Sprintf("(= %s %s)", lhsTerm, rhsTerm))
}

// EncodeAssume lowers one VC Assume step: asserts enc(cond) directly.
func (e *Encoder) EncodeAssume(cond expr.Expr) error {
	term, err := e.Encode(cond)
	if err != nil {
		return err
	}
	if err := e.Flush(); err != nil {
		return err
	}
	return e.backend.Assert(term)
}

// EncodeCond lowers a condition expression (an Assert step's cond) without
// asserting it, for the BMC orchestrator to combine per its chosen
// strategy.
func (e *Encoder) EncodeCond(cond expr.Expr) (string, error) {
	term, err := e.Encode(cond)
	if err != nil {
		return "", err
	}
	if err := e.Flush(); err != nil {
		return "", err
	}
	return term, nil
}

// Encode lowers one expression to an SMT-LIB2 term, memoized by node id
// (sound because the expression context hash-conses: two equal node ids are
// always the same meaning, "Node").
func (e *Encoder) Encode(ex expr.Expr) (string, error) {
	if ex.Invalid() {
		return "", fmt.Errorf("smtenc: encode of invalid expression")
	}
	if t, ok := e.termCache[ex.ID()]; ok {
		return t, nil
	}
	t, err := e.encode(ex)
	if err != nil {
		return "", err
	}
	e.termCache[ex.ID()] = t
	return t, nil
}

func (e *Encoder) encode(ex expr.Expr) (string, error) {
	switch ex.Kind() {
	case expr.KConst:
		return e.encodeConst(ex)
	case expr.KTypeToken:
		return fmt.Sprintf("%d", e.typeID(ex.Type())), nil
	case expr.KSymbol:
		return e.encodeSymbol(ex)
	case expr.KAddressOf:
		return e.encodeAddressOf(ex)
	case expr.KAggregate:
		return e.encodeAggregate(ex.Children(), ex.Type())
	case expr.KBinOp:
		return e.encodeBinOp(ex)
	case expr.KUnOp:
		return e.encodeUnOp(ex)
	case expr.KIte:
		c, t, f, err := e.encode3(ex)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(ite %s %s %s)", c, t, f), nil
	case expr.KCast:
		return e.encodeCast(ex)
	case expr.KIndex:
		return e.encodeIndex(ex)
	case expr.KStore:
		return e.encodeStore(ex)
	case expr.KSlice:
		root, err := e.Encode(ex.Child(0))
		if err != nil {
			return "", err
		}
		start, err := e.Encode(ex.Child(1))
		if err != nil {
			return "", err
		}
		_, err = e.Encode(ex.Child(2))
		if err != nil {
			return "", err
		}
		base, err := e.ptrBaseOf(ex.Child(0))
		if err != nil {
			return "", err
		}
		_ = root
		length, err := e.Encode(ex.Child(2))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(pointer %s %s %s)", base, start, length), nil
	case expr.KPointer:
		a, b, c, err := e.encode3(ex)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(pointer %s %s %s)", a, b, c), nil
	case expr.KPtrBase:
		return e.accessor1("base", ex)
	case expr.KPtrOffset:
		return e.accessor1("offset", ex)
	case expr.KPtrMeta:
		return e.accessor1("meta", ex)
	case expr.KOffset:
		return e.encodeOffset(ex)
	case expr.KVecWrap:
		a, b, c, err := e.encode3(ex)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(vec %s %s %s)", a, b, c), nil
	case expr.KVecLen:
		return e.accessor1("vlen", ex)
	case expr.KVecCap:
		return e.accessor1("vcap", ex)
	case expr.KInnerPtr:
		return e.accessor1("vptr", ex)
	case expr.KBoxWrap, expr.KBoxUnwrap:
		return e.Encode(ex.Child(0)) // Box and RawPointer share the Pointer sort
	case expr.KVariant:
		return e.encodeVariant(ex)
	case expr.KAsVariant:
		return e.encodeAsVariant(ex)
	case expr.KDiscrim:
		return e.encodeDiscriminant(ex)
	case expr.KSameObject:
		return e.encodeBaseEq(ex.Child(0), ex.Child(1))
	case expr.KValid, expr.KInvalid:
		return e.encodeValidity(ex)
	default:
		return "", fmt.Errorf("smtenc: unsupported node kind %d", ex.Kind())
	}
}

func (e *Encoder) encode3(ex expr.Expr) (string, string, string, error) {
	a, err := e.Encode(ex.Child(0))
	if err != nil {
		return "", "", "", err
	}
	b, err := e.Encode(ex.Child(1))
	if err != nil {
		return "", "", "", err
	}
	c, err := e.Encode(ex.Child(2))
	if err != nil {
		return "", "", "", err
	}
	return a, b, c, nil
}

func (e *Encoder) accessor1(fn string, ex expr.Expr) (string, error) {
	inner, err := e.Encode(ex.Child(0))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s)", fn, inner), nil
}

func (e *Encoder) encodeConst(ex expr.Expr) (string, error) {
	switch ex.ConstKind() {
	case expr.CBool:
		if ex.Bool() {
			return "true", nil
		}
		return "false", nil
	case expr.CBigInt:
		n := ex.BigInt()
		if n.Sign() < 0 {
			return fmt.Sprintf("(- %s)", new(big.Int).Neg(n).String()), nil
		}
		return n.String(), nil
	case expr.CNull:
		return "(pointer 0 0 0)", nil
	case expr.CZST:
		return "0", nil
	case expr.CArray:
		return e.encodeArrayConst(ex)
	case expr.CAdt:
		if ex.Type().Kind == types.Enum {
			return e.encodeAdtEnum(ex)
		}
		return e.encodeAggregate(ex.Children(), ex.Type())
	default:
		return "", fmt.Errorf("smtenc: unsupported constant kind %d", ex.ConstKind())
	}
}

func (e *Encoder) encodeArrayConst(ex expr.Expr) (string, error) {
	children := ex.Children()
	elemSort := e.sorts.SortOf(ex.Type().Elem)
	if len(children) == 0 {
		return fmt.Sprintf("((as const %s) %s)", ArraySort(elemSort), zeroOf(elemSort)), nil
	}
	first, err := e.Encode(children[0])
	if err != nil {
		return "", err
	}
	term := fmt.Sprintf("((as const %s) %s)", ArraySort(elemSort), first)
	for i := 1; i < len(children); i++ {
		v, err := e.Encode(children[i])
		if err != nil {
			return "", err
		}
		term = fmt.Sprintf("(store %s %d %s)", term, i, v)
	}
	return term, nil
}

func zeroOf(s Sort) string {
	switch s {
	case SortBool:
		return "false"
	case SortPointer:
		return "(pointer 0 0 0)"
	default:
		return "0"
	}
}

func (e *Encoder) encodeAggregate(fields []expr.Expr, ty *types.Type) (string, error) {
	sort := e.sorts.SortOf(ty)
	if err := e.Flush(); err != nil {
		return "", err
	}
	terms := make([]string, 0, len(fields))
	for i, f := range fields {
		if ty.Fields[i].Type.IsZST() {
			continue
		}
		t, err := e.Encode(f)
		if err != nil {
			return "", err
		}
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return fmt.Sprintf("mk-%s", sort), nil
	}
	s := "(mk-" + string(sort)
	for _, t := range terms {
		s += " " + t
	}
	return s + ")", nil
}

// encodeAdtEnum lowers an Adt constant of enum type: fields[0] is the
// variant-index constant, any remaining field is that variant's data
// (expr.Context.Adt's doc comment: "For an enum, fields[0] must be the
// variant index constant").
func (e *Encoder) encodeAdtEnum(ex expr.Expr) (string, error) {
	fields := ex.Children()
	tag := fields[0].BigInt().Int64()
	sort := e.sorts.SortOf(ex.Type())
	if err := e.Flush(); err != nil {
		return "", err
	}
	ctorName := fmt.Sprintf("%s-variant%d", sort, tag)
	if len(fields) < 2 {
		return ctorName, nil
	}
	data, err := e.Encode(fields[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s)", ctorName, data), nil
}

func (e *Encoder) encodeSymbol(ex expr.Expr) (string, error) {
	name := sanitize(ex.SymbolText())
	sort := e.sorts.SortOf(ex.Type())
	if !e.declaredConst[name] {
		if err := e.Flush(); err != nil {
			return "", err
		}
		if err := e.backend.Declare(fmt.Sprintf("(declare-const %s %s)", name, sort)); err != nil {
			return "", err
		}
		e.declaredConst[name] = true
	}
	return name, nil
}

// encodeAddressOf implements three address_of rules: a bare
// object symbol gets its interval's base at offset 0; address_of(index(root,
// k)) offsets by the constant index; address_of(slice(root,start,len))
// carries (start, len) as (offset, meta).
func (e *Encoder) encodeAddressOf(ex expr.Expr) (string, error) {
	obj := ex.Child(0)
	switch {
	case obj.Kind() == expr.KIndex && isConstIdx(obj.Child(1)):
		base, err := e.ptrBaseOf(obj.Child(0))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(pointer %s %s 0)", base, obj.Child(1).BigInt().String()), nil
	case obj.Kind() == expr.KSlice:
		return e.Encode(obj)
	default:
		base, err := e.ptrBaseOf(obj)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(pointer %s 0 0)", base), nil
	}
}

// ptrBaseOf returns the object-space base constant for the heap object a
// bare symbol expression denotes, introducing its Space on first reference.
func (e *Encoder) ptrBaseOf(obj expr.Expr) (string, error) {
	if obj.Kind() != expr.KSymbol {
		return "", fmt.Errorf("smtenc: address-of a non-symbol object is unsupported")
	}
	name := obj.Symbol()
	sp, err := e.objs.Introduce(name, e.allocOf)
	if err != nil {
		return "", err
	}
	e.allocArray = fmt.Sprintf("(store %s %s %s)", e.allocArray, sp.Base, e.allocOf(name))
	return sp.Base, nil
}

func (e *Encoder) encodeOffset(ex expr.Expr) (string, error) {
	p, err := e.Encode(ex.Child(0))
	if err != nil {
		return "", err
	}
	k, err := e.Encode(ex.Child(1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(pointer (base %s) (+ (offset %s) %s) (meta %s))", p, p, k, p), nil
}

func (e *Encoder) encodeBaseEq(a, b expr.Expr) (string, error) {
	at, err := e.Encode(a)
	if err != nil {
		return "", err
	}
	bt, err := e.Encode(b)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(= (base %s) (base %s))", at, bt), nil
}

func isConstIdx(e expr.Expr) bool { return e.Kind() == expr.KConst && e.ConstKind() == expr.CBigInt }

func (e *Encoder) encodeBinOp(ex expr.Expr) (string, error) {
	lhs, rhs := ex.Child(0), ex.Child(1)
	if (ex.Op() == expr.OpEq || ex.Op() == expr.OpNe) && lhs.Type().IsPointerLike() {
		eq, err := e.encodeBaseEq(lhs, rhs)
		if err != nil {
			return "", err
		}
		if ex.Op() == expr.OpNe {
			return fmt.Sprintf("(not %s)", eq), nil
		}
		return eq, nil
	}
	l, err := e.Encode(lhs)
	if err != nil {
		return "", err
	}
	r, err := e.Encode(rhs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", smtOp(ex.Op()), l, r), nil
}

func smtOp(op expr.Op) string {
	switch op {
	case expr.OpAdd:
		return "+"
	case expr.OpSub:
		return "-"
	case expr.OpMul:
		return "*"
	case expr.OpDiv:
		return "div"
	case expr.OpRem:
		return "mod"
	case expr.OpEq:
		return "="
	case expr.OpNe:
		return "distinct"
	case expr.OpLt:
		return "<"
	case expr.OpLe:
		return "<="
	case expr.OpGt:
		return ">"
	case expr.OpGe:
		return ">="
	case expr.OpAnd:
		return "and"
	case expr.OpOr:
		return "or"
	case expr.OpImplies:
		return "=>"
	default:
		return "+"
	}
}

func (e *Encoder) encodeUnOp(ex expr.Expr) (string, error) {
	inner, err := e.Encode(ex.Child(0))
	if err != nil {
		return "", err
	}
	if ex.Op() == expr.OpNeg {
		return fmt.Sprintf("(- %s)", inner), nil
	}
	return fmt.Sprintf("(not %s)", inner), nil
}

// encodeCast implements cast table: int<->int is identity,
// pointer->int is base+offset, int->pointer only ever sees the null
// convention's zero, pointer->pointer is a no-op.
func (e *Encoder) encodeCast(ex expr.Expr) (string, error) {
	from := ex.Child(0)
	fromSort := e.sorts.SortOf(from.Type())
	toSort := e.sorts.SortOf(ex.Type())
	inner, err := e.Encode(from)
	if err != nil {
		return "", err
	}
	switch {
	case fromSort == SortPointer && toSort == SortInt:
		return fmt.Sprintf("(+ (base %s) (offset %s))", inner, inner), nil
	case fromSort == SortInt && toSort == SortPointer:
		return "(pointer 0 0 0)", nil
	default:
		return inner, nil // int->int, pointer->pointer, bool->bool
	}
}

func (e *Encoder) encodeIndex(ex expr.Expr) (string, error) {
	base, idx := ex.Child(0), ex.Child(1)
	baseSort := e.sorts.SortOf(base.Type())
	if isArraySort(baseSort) {
		b, err := e.Encode(base)
		if err != nil {
			return "", err
		}
		i, err := e.Encode(idx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(select %s %s)", b, i), nil
	}
	// Struct/tuple field read: idx must be a constant field index
	// (Field(i,ty) lowers to index(object, i, ty)).
	if !isConstIdx(idx) {
		return "", fmt.Errorf("smtenc: non-constant field index into an aggregate")
	}
	if ex.Type().IsZST() {
		return "0", nil
	}
	b, err := e.Encode(base)
	if err != nil {
		return "", err
	}
	sort := e.sorts.SortOf(base.Type())
	return fmt.Sprintf("(%s_%d %s)", sort, idx.BigInt().Int64(), b), nil
}

func (e *Encoder) encodeStore(ex expr.Expr) (string, error) {
	base, idx, val := ex.Child(0), ex.Child(1), ex.Child(2)
	b, err := e.Encode(base)
	if err != nil {
		return "", err
	}
	i, err := e.Encode(idx)
	if err != nil {
		return "", err
	}
	v, err := e.Encode(val)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(store %s %s %s)", b, i, v), nil
}

func isArraySort(s Sort) bool {
	return len(s) > 7 && s[:7] == "(Array "
}

func (e *Encoder) encodeVariant(ex expr.Expr) (string, error) {
	ty := ex.Type()
	sort := e.sorts.SortOf(ty)
	if err := e.Flush(); err != nil {
		return "", err
	}
	tag := ex.Int64()
	ctorName := fmt.Sprintf("%s-variant%d", sort, tag)
	children := ex.Children()
	if len(children) == 0 {
		return ctorName, nil
	}
	data, err := e.Encode(children[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s)", ctorName, data), nil
}

func (e *Encoder) encodeAsVariant(ex expr.Expr) (string, error) {
	obj := ex.Child(0)
	objSort := e.sorts.SortOf(obj.Type())
	tag := ex.Int64()
	b, err := e.Encode(obj)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s_data%d %s)", objSort, tag, b), nil
}

func (e *Encoder) encodeDiscriminant(ex expr.Expr) (string, error) {
	obj := ex.Child(0)
	enumTy := obj.Type()
	sort := e.sorts.SortOf(enumTy)
	b, err := e.Encode(obj)
	if err != nil {
		return "", err
	}
	acc := fmt.Sprintf("%d", len(enumTy.Variants)-1)
	for i := len(enumTy.Variants) - 1; i >= 0; i-- {
		ctorName := fmt.Sprintf("%s-variant%d", sort, i)
		if i == len(enumTy.Variants)-1 {
			acc = fmt.Sprintf("%d", i)
			continue
		}
		acc = fmt.Sprintf("(ite ((_ is %s) %s) %d %s)", ctorName, b, i, acc)
	}
	return acc, nil
}

// encodeValidity implements the Valid(obj)/Invalid(obj) predicates:
// alloc[base(obj)] / its negation. A bare heap-object-value symbol shortcuts
// straight to its AllocTermFunc value; any other pointer-typed expression
// reads the encoder's running `alloc` array at that pointer's base (a
// distinguished array int -> bool).
func (e *Encoder) encodeValidity(ex expr.Expr) (string, error) {
	obj := ex.Child(0)
	var allocTerm string
	if obj.Kind() == expr.KSymbol && e.heapIdents[obj.Symbol()] {
		if _, err := e.objs.Introduce(obj.Symbol(), e.allocOf); err != nil {
			return "", err
		}
		allocTerm = e.allocOf(obj.Symbol())
	} else {
		p, err := e.Encode(obj)
		if err != nil {
			return "", err
		}
		allocTerm = fmt.Sprintf("(select %s (base %s))", e.allocArray, p)
	}
	if ex.Kind() == expr.KInvalid {
		return fmt.Sprintf("(not %s)", allocTerm), nil
	}
	return allocTerm, nil
}

func (e *Encoder) typeID(t *types.Type) int64 {
	if id, ok := e.typeIDs[t]; ok {
		return id
	}
	id := int64(len(e.typeIDs))
	e.typeIDs[t] = id
	return id
}
