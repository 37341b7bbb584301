// SPDX-License-Identifier: Apache-2.0

// Package types is the classification over IR types known as the
// "Type model": primitives, compounds, pointer-likes, and the marker
// Layout type used by the allocation builtins. It exposes
// size/alignment, field and variant decomposition, pointee resolution, and
// zero-sized-type detection.
package types

import "rbmc/internal/symbol"

// Kind discriminates the type universe.
type Kind int

const (
	Bool Kind = iota
	Int // sized integer; see Width
	Struct
	Tuple
	Array // fixed length, see Len
	Slice
	Enum
	RawPointer
	Reference
	Box
	Vec
	Layout // opaque marker produced by Layout::new::<T>
)

// IsInt reports whether k is the sized-integer kind.
func (k Kind) IsInt() bool { return k == Int }

// Field is one member of a Struct or Tuple type. Name is the zero Name for
// tuple fields (positional, identified by index only).
type Field struct {
	Name symbol.Name
	Type *Type
}

// Variant is one arm of an Enum. Data is nil for a unit variant, or a Tuple
// type aggregating the variant's payload fields otherwise.
type Variant struct {
	Name symbol.Name
	Data *Type
}

// Type is an IR type. Only the fields relevant to Kind are populated; the
// zero value of the others is ignored.
type Type struct {
	Kind Kind

	// Int
	Width int // bits: 8, 16, 32, 64, 128
	Unsigned bool

	// Struct / Tuple
	Fields []Field

	// Array
	Elem *Type
	Len int

	// Slice / RawPointer / Reference / Box / Vec
	Pointee *Type

	// Enum
	Variants []Variant

	// Struct/enum nominal name, used only for SMT ADT naming and
	// diagnostics; two anonymous tuple types with identical Fields are
	// still distinct ADTs if Name differs.
	Name string
}

// Align returns the type's alignment in bytes.
func (t *Type) Align() int {
	switch t.Kind {
	case Bool:
		return 1
	case Int:
		return t.Width / 8
	case RawPointer, Reference, Box:
		return 8
	case Vec:
		return 8
	case Array:
		if t.Len == 0 {
			return 1
		}
		return t.Elem.Align()
	case Struct, Tuple:
		a := 1
		for _, f := range t.Fields {
			if fa := f.Type.Align(); fa > a {
				a = fa
			}
		}
		return a
	case Enum:
		a := 1
		for _, v := range t.Variants {
			if v.Data == nil {
				continue
			}
			if va := v.Data.Align(); va > a {
				a = va
			}
		}
		return a
	case Layout:
		return 8
	default:
		return 1
	}
}

// Size returns the type's size in bytes. Size is >= Align for every type
// that is not zero-sized.
func (t *Type) Size() int {
	switch t.Kind {
	case Bool:
		return 1
	case Int:
		return t.Width / 8
	case RawPointer, Reference, Box:
		return 8
	case Vec:
		return 24 // (ptr, len, cap) each 8 bytes, matching the SMT vec ADT layout
	case Array:
		return t.Elem.Size() * t.Len
	case Struct, Tuple:
		size := 0
		for _, f := range t.Fields {
			size += align(size, f.Type.Align()) + f.Type.Size() - size
		}
		return align(size, t.Align())
	case Enum:
		// Discriminant (one word) plus the largest variant payload.
		payload := 0
		for _, v := range t.Variants {
			if v.Data == nil {
				continue
			}
			if s := v.Data.Size(); s > payload {
				payload = s
			}
		}
		return align(8+payload, t.Align())
	case Layout:
		return 8
	default:
		return 0
	}
}

func align(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

// IsZST reports whether t occupies zero bytes: the unit tuple, an empty
// struct, or an array of a ZST with any length.
func (t *Type) IsZST() bool {
	switch t.Kind {
	case Tuple:
		return len(t.Fields) == 0
	case Struct:
		if len(t.Fields) != 0 {
			return false
		}
		return true
	case Array:
		return t.Elem.IsZST()
	default:
		return t.Size() == 0
	}
}

// IsPointerLike reports whether t is one of the pointer/reference/smart
// pointer kinds whose value flows through the value-set abstraction.
func (t *Type) IsPointerLike() bool {
	switch t.Kind {
	case RawPointer, Reference, Box, Vec:
		return true
	default:
		return false
	}
}

// PointeeType returns the type pointed to for pointer-like kinds, and nil
// otherwise.
func (t *Type) PointeeType() *Type {
	if !t.IsPointerLike() {
		return nil
	}
	return t.Pointee
}

// FieldByIndex returns the i-th field's type for Struct/Tuple types.
func (t *Type) FieldByIndex(i int) *Type {
	return t.Fields[i].Type
}

// VariantByIndex returns the i-th variant for an Enum type.
func (t *Type) VariantByIndex(i int) Variant {
	return t.Variants[i]
}

// Common primitive singletons, mirroring the builtin type set a real IR
// producer would emit.
var (
	TyBool = &Type{Kind: Bool}
	TyU8 = &Type{Kind: Int, Width: 8, Unsigned: true}
	TyU16 = &Type{Kind: Int, Width: 16, Unsigned: true}
	TyU32 = &Type{Kind: Int, Width: 32, Unsigned: true}
	TyU64 = &Type{Kind: Int, Width: 64, Unsigned: true}
	TyI32 = &Type{Kind: Int, Width: 32, Unsigned: false}
	TyI64 = &Type{Kind: Int, Width: 64, Unsigned: false}
	TyUnit = &Type{Kind: Tuple, Fields: nil, Name: ""}
)

// Pointer builds a raw-pointer type to pointee.
func Pointer(pointee *Type) *Type { return &Type{Kind: RawPointer, Pointee: pointee} }

// Ref builds a reference type to pointee.
func Ref(pointee *Type) *Type { return &Type{Kind: Reference, Pointee: pointee} }

// BoxOf builds a Box<pointee> type.
func BoxOf(pointee *Type) *Type { return &Type{Kind: Box, Pointee: pointee} }

// VecOf builds a Vec<pointee> type.
func VecOf(pointee *Type) *Type { return &Type{Kind: Vec, Pointee: pointee} }
