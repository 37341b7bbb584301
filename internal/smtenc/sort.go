// SPDX-License-Identifier: Apache-2.0

// Package smtenc implements the language-neutral SMT encoding:
// a lowering from expr.Expr trees (bool, integer, the pointer/vec ADTs,
// arrays, and per-aggregate-type ADTs) to SMT-LIB2 terms, plus the object-
// space (pointer logic) side table that turns heap objects into
// disjoint integer intervals. internal/smtenc never imports os/exec: the
// concrete process that runs the solver is internal/solver, kept separate
// ("the concrete SMT backend...treated as an opaque service").
package smtenc

import (
	"fmt"

	"github.com/iancoleman/strcase"

	"rbmc/internal/types"
)

// Sort names the handful of SMT-LIB2 sorts enumerates.
type Sort string

const (
	SortBool Sort = "Bool"
	SortInt Sort = "Int"
	SortPointer Sort = "Pointer"
	SortVec Sort = "Vec"
)

// ArraySort builds the SMT array sort from an integer domain to elem.
func ArraySort(elem Sort) Sort {
	return Sort(fmt.Sprintf("(Array Int %s)", elem))
}

// Ctor is one constructor of a declared datatype: a name plus its typed
// fields (accessor name, sort).
type Ctor struct {
	Name string
	Fields []Field
}

// Field is one accessor of a Ctor.
type Field struct {
	Name string
	Sort Sort
}

// Decl is a pending `declare-datatypes` command the Sorter has not yet
// handed to a Backend.
type Decl struct {
	SortName string
	Ctors []Ctor
}

// Sorter maps *types.Type values to SMT sorts, declaring the pointer/vec
// ADTs once up front and a fresh ADT per distinct struct/tuple/enum type
// the encoder actually references.
type Sorter struct {
	byType map[*types.Type]Sort
	declared []Decl
	anonSeq int
}

// NewSorter creates a Sorter with the pointer and vec ADTs pre-declared.
func NewSorter() *Sorter {
	s := &Sorter{byType: make(map[*types.Type]Sort)}
	s.declared = append(s.declared, Decl{
		SortName: string(SortPointer),
		Ctors: []Ctor{{Name: "pointer", Fields: []Field{
			{Name: "base", Sort: SortInt},
			{Name: "offset", Sort: SortInt},
			{Name: "meta", Sort: SortInt},
		}}},
	})
	s.declared = append(s.declared, Decl{
		SortName: string(SortVec),
		Ctors: []Ctor{{Name: "vec", Fields: []Field{
			{Name: "vptr", Sort: SortPointer},
			{Name: "vlen", Sort: SortInt},
			{Name: "vcap", Sort: SortInt},
		}}},
	})
	return s
}

// Pending drains and returns every datatype declaration accumulated since
// the last call, for the encoder to hand to a Backend exactly once each.
func (s *Sorter) Pending() []Decl {
	out := s.declared
	s.declared = nil
	return out
}

// SortOf returns the SMT sort for an IR type, declaring a fresh ADT for
// struct/tuple/enum kinds on first reference.
func (s *Sorter) SortOf(t *types.Type) Sort {
	switch t.Kind {
	case types.Bool:
		return SortBool
	case types.Int, types.Layout:
		return SortInt // unbounded ints "Cast...the encoding uses unbounded integers"
	case types.RawPointer, types.Reference, types.Box:
		return SortPointer
	case types.Vec:
		return SortVec
	case types.Array, types.Slice:
		return ArraySort(s.SortOf(t.Elem))
	case types.Struct, types.Tuple:
		return s.adtFor(t)
	case types.Enum:
		return s.adtFor(t)
	default:
		return SortInt
	}
}

func (s *Sorter) adtFor(t *types.Type) Sort {
	if sort, ok := s.byType[t]; ok {
		return sort
	}
	name := t.Name
	if name == "" {
		s.anonSeq++
		name = fmt.Sprintf("Anon%d", s.anonSeq)
	}
	sort := Sort(sanitize(name))
	s.byType[t] = sort

	var ctors []Ctor
	switch t.Kind {
	case types.Struct, types.Tuple:
		fields := make([]Field, 0, len(t.Fields))
		for i, f := range t.Fields {
			if f.Type.IsZST() {
				continue
			}
			fields = append(fields, Field{Name: fmt.Sprintf("%s_%d", sort, i), Sort: s.SortOf(f.Type)})
		}
		ctors = []Ctor{{Name: "mk-" + string(sort), Fields: fields}}
	case types.Enum:
		ctors = make([]Ctor, len(t.Variants))
		for i, v := range t.Variants {
			var fields []Field
			if v.Data != nil && !v.Data.IsZST() {
				fields = []Field{{Name: fmt.Sprintf("%s_data%d", sort, i), Sort: s.SortOf(v.Data)}}
			}
			ctors[i] = Ctor{Name: fmt.Sprintf("%s-variant%d", sort, i), Fields: fields}
		}
	}
	s.declared = append(s.declared, Decl{SortName: string(sort), Ctors: ctors})
	return sort
}

// sanitize canonicalizes a struct/enum/tuple type name or a bare symbol's
// text into a valid SMT-LIB2 identifier: strcase.ToSnake folds qualified,
// mixed-case, or punctuated names (e.g. "Box::new", "MyStruct") down to
// lowercase words joined by underscores, and the character whitelist below
// is the backstop that guarantees the result never carries a byte SMT-LIB2
// rejects, whatever strcase leaves behind.
func sanitize(name string) string {
	name = strcase.ToSnake(name)
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
