// SPDX-License-Identifier: Apache-2.0

package expr

// Kind tags every node in the hash-consed expression DAG.
type Kind int

const (
	// Terminals
	KConst Kind = iota
	KTypeToken
	KSymbol

	// Internal nodes
	KAddressOf
	KAggregate
	KBinOp
	KUnOp
	KIte
	KCast
	KIndex
	KStore
	KSlice
	KPointer // (base, offset, meta) triple constructor
	KPtrBase // projection
	KPtrOffset // projection
	KPtrMeta // projection
	KOffset // offset(p, k): shift an existing pointer's offset
	KVecWrap // vec(ptr, len, cap)
	KVecLen // vec_len(vec)
	KVecCap // vec_cap(vec)
	KInnerPtr // inner_pointer(vec)
	KBoxWrap // Box(ptr)
	KBoxUnwrap // unwrap a Box to its raw pointer
	KVariant // enum variant constructor: (tag, data?)
	KAsVariant // downcast projector
	KDiscrim // discriminant accessor

	// Predicate sublanguage: lowered to SMT at encode time.
	KSameObject
	KValid // Valid(object): alloc[base(object)]
	KInvalid // Invalid(object): ¬alloc[base(object)]
)

// Op is a binary or unary operator code, carried by KBinOp/KUnOp nodes.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpNeg
	OpImplies
)

// ConstKind discriminates the payload of a KConst node.
type ConstKind int

const (
	CBool ConstKind = iota
	CBigInt
	CNull
	CArray
	CAdt
	CZST
)
