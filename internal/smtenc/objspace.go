// SPDX-License-Identifier: Apache-2.0

package smtenc

import (
	"fmt"

	"rbmc/internal/symbol"
)

// Space is the SMT-level `(base, size)` interval assigned to one symbolic
// heap object.
type Space struct {
	Base string // name of the fresh Int constant
	Size string // name of the fresh Int constant
}

// ObjSpace is the side table mapping each symbolic object to its allocated
// interval and the pairwise disjointness assertions already emitted for it.
// The zero value is not usable; call NewObjSpace.
type ObjSpace struct {
	syms *symbol.Store
	backend Backend
	spaces map[symbol.Name]*Space
	order []symbol.Name // introduction order, for deterministic disjointness emission
	seq int
}

// NewObjSpace creates an empty object-space table over backend.
func NewObjSpace(syms *symbol.Store, backend Backend) *ObjSpace {
	return &ObjSpace{syms: syms, backend: backend, spaces: make(map[symbol.Name]*Space)}
}

// AllocTermFunc reports, for an already-introduced object, the SMT boolean
// term standing for "this object is currently allocated" (the
// distinguished `alloc` array read at base(object)). The BMC orchestrator
// supplies this from the final placestate.Map: Own/Alive objects are the
// literal "true", Dead objects "false", and Unknown objects a fresh
// uninterpreted boolean the solver is free to choose.
type AllocTermFunc func(obj symbol.Name) string

// Introduce returns obj's object space, declaring fresh base/size constants
// and asserting disjointness against every previously-introduced object the
// first time obj is referenced:
//
//	base_o > 0, size_o >= 0
//	for every earlier object p: alloc[base_p] -> (end_o <= base_p || end_p <= base_o)
func (o *ObjSpace) Introduce(obj symbol.Name, allocOf AllocTermFunc) (*Space, error) {
	if sp, ok := o.spaces[obj]; ok {
		return sp, nil
	}
	o.seq++
	sp := &Space{
		Base: fmt.Sprintf("base_%s_%d", sanitize(o.syms.Text(obj)), o.seq),
		Size: fmt.Sprintf("size_%s_%d", sanitize(o.syms.Text(obj)), o.seq),
	}
	if err := o.backend.Declare(fmt.Sprintf("(declare-const %s Int)", sp.Base)); err != nil {
		return nil, err
	}
	if err := o.backend.Declare(fmt.Sprintf("(declare-const %s Int)", sp.Size)); err != nil {
		return nil, err
	}
	if err := o.backend.Assert(fmt.Sprintf("(> %s 0)", sp.Base)); err != nil {
		return nil, err
	}
	if err := o.backend.Assert(fmt.Sprintf("(>= %s 0)", sp.Size)); err != nil {
		return nil, err
	}

	endOfO := fmt.Sprintf("(+ %s %s)", sp.Base, sp.Size)
	for _, prev := range o.order {
		p := o.spaces[prev]
		endOfP := fmt.Sprintf("(+ %s %s)", p.Base, p.Size)
		disjoint := fmt.Sprintf("(or (<= %s %s) (<= %s %s))", endOfO, p.Base, endOfP, sp.Base)
		constraint := fmt.Sprintf("(=> %s %s)", allocOf(prev), disjoint)
		if err := o.backend.Assert(constraint); err != nil {
			return nil, err
		}
	}

	o.spaces[obj] = sp
	o.order = append(o.order, obj)
	return sp, nil
}

// Get returns obj's space if already introduced, or nil.
func (o *ObjSpace) Get(obj symbol.Name) *Space { return o.spaces[obj] }
