// SPDX-License-Identifier: Apache-2.0

// Package symex implements the symbolic-execution driver: a
// single forward pass over a function's reconstructed basic blocks that
// merges incoming states at each block (phi step 1), unwinds
// loops up to a fixed bound, and appends Assign/Assume/Assert steps to a
// shared vc.System as it goes.
package symex

import (
	"fmt"

	"rbmc/internal/expr"
	"rbmc/internal/guard"
	"rbmc/internal/ir"
	"rbmc/internal/placestate"
	"rbmc/internal/renaming"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
	"rbmc/internal/valueset"
	"rbmc/internal/vc"
)

// HeapObject is one object created by alloc or Box::new that needs
// object-space allocation at SMT-encoding time. Ident is the symbol
// naming the object in the points-to abstraction; the driver never frees
// the Go-level record, only mutates PlaceState for it — end-of-run leak
// checking walks every HeapObject exactly once.
type HeapObject struct {
	Ident symbol.Name
	Type *types.Type
	Span ir.Span
}

// State is the whole-run symbolic state: one expression context, one VC
// system, and the allocation bookkeeping threaded through every frame.
type State struct {
	Syms *symbol.Store
	Ctx *expr.Context
	Renamer *renaming.Renamer
	VC *vc.System
	Places *placestate.Map
	Values *valueset.Map
	Objects []HeapObject
	objCount int
	nondet map[string]int

	UnwindBound int

	frames []*Frame
}

// NewState creates an empty run state over a fresh expression context.
func NewState(syms *symbol.Store, unwindBound int) *State {
	ctx := expr.NewContext(syms)
	return &State{
		Syms: syms,
		Ctx: ctx,
		Renamer: renaming.New(syms, ctx),
		VC: vc.New(),
		Places: placestate.New(),
		Values: valueset.New(syms),
		UnwindBound: unwindBound,
		nondet: make(map[string]int),
	}
}

// FreshObject allocates a new heap object identifier of type typ and
// records it for the end-of-run leak check.
func (s *State) FreshObject(typ *types.Type, span ir.Span) symbol.Name {
	s.objCount++
	ident := s.Syms.Intern(fmt.Sprintf("$obj%d", s.objCount))
	s.Objects = append(s.Objects, HeapObject{Ident: ident, Type: typ, Span: span})
	return ident
}

// FreshNondet allocates a fresh L0 symbol named by type and a per-type
// counter.
func (s *State) FreshNondet(typ *types.Type) symbol.Name {
	key := typ.Name
	if key == "" {
		key = typeTag(typ)
	}
	s.nondet[key]++
	return s.Syms.Intern(fmt.Sprintf("$nondet_%s_%d", key, s.nondet[key]))
}

func typeTag(t *types.Type) string {
	switch t.Kind {
	case types.Bool:
		return "bool"
	case types.Int:
		if t.Unsigned {
			return fmt.Sprintf("u%d", t.Width)
		}
		return fmt.Sprintf("i%d", t.Width)
	default:
		return "v"
	}
}

// CurrentFrame returns the top-of-stack frame, or nil if the run is done.
func (s *State) CurrentFrame() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// PushFrame pushes fr onto the call stack.
func (s *State) PushFrame(fr *Frame) { s.frames = append(s.frames, fr) }

// PopFrame pops and returns the top frame, forgetting its locals' L1/L2
// namespace entries.
func (s *State) PopFrame() *Frame {
	fr := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.Renamer.ForgetFrame(fr.LocalIdents())
	return fr
}

// Depth reports the number of active frames.
func (s *State) Depth() int { return len(s.frames) }

// Guard constructs the tautological guard over s's expression context.
func (s *State) Guard() guard.Guard { return guard.New(s.Ctx) }
