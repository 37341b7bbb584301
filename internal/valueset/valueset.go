// SPDX-License-Identifier: Apache-2.0

// Package valueset implements the points-to abstraction: a map
// from identifier to a set of (object, offset?) pairs, where identifiers are
// L1-symbol names optionally suffixed by .field / [index] / .data(i) to
// distinguish aggregate members without flattening the expression AST.
package valueset

import (
	"fmt"
	"sort"
	"strings"

	"rbmc/internal/expr"
	"rbmc/internal/symbol"
)

// TargetKind discriminates the three shapes a points-to target can take.
type TargetKind int

const (
	TObject TargetKind = iota
	TUnknown
	TNull
)

// Target is one element of a points-to set: an object with an optional
// constant offset, or one of the two sentinel targets "unknown" / "null".
type Target struct {
	Kind TargetKind
	Object symbol.Name
	Offset int
	HasOffset bool
}

func (t Target) key(syms *symbol.Store) string {
	switch t.Kind {
	case TUnknown:
		return "unknown"
	case TNull:
		return "null"
	default:
		if t.HasOffset {
			return fmt.Sprintf("obj:%s+%d", syms.Text(t.Object), t.Offset)
		}
		return fmt.Sprintf("obj:%s+?", syms.Text(t.Object))
	}
}

// Unknown is the sentinel target meaning "points somewhere this analysis
// cannot resolve".
var Unknown = Target{Kind: TUnknown}

// Null is the sentinel target for the null pointer constant.
var Null = Target{Kind: TNull}

// Set is an order-independent points-to set with deterministic iteration
// order.
type Set struct {
	syms *symbol.Store
	items map[string]Target
}

func newSet(syms *symbol.Store) *Set {
	return &Set{syms: syms, items: make(map[string]Target)}
}

// Add inserts t into the set.
func (s *Set) Add(t Target) { s.items[t.key(s.syms)] = t }

// Sorted returns the set's targets in canonical (stable textual) order.
func (s *Set) Sorted() []Target {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Target, len(keys))
	for i, k := range keys {
		out[i] = s.items[k]
	}
	return out
}

// Len reports the number of targets.
func (s *Set) Len() int { return len(s.items) }

// Map is the points-to map: ident (already suffix-qualified) -> Set.
type Map struct {
	syms *symbol.Store
	entries map[string]*Set
}

// New creates an empty value-set map.
func New(syms *symbol.Store) *Map {
	return &Map{syms: syms, entries: make(map[string]*Set)}
}

// Clone returns an independent copy.
func (m *Map) Clone() *Map {
	out := &Map{syms: m.syms, entries: make(map[string]*Set, len(m.entries))}
	for k, v := range m.entries {
		cp := newSet(m.syms)
		for kk, vv := range v.items {
			cp.items[kk] = vv
		}
		out.entries[k] = cp
	}
	return out
}

// Install replaces the set at ident with targets.
func (m *Map) Install(ident string, targets []Target) {
	s := newSet(m.syms)
	for _, t := range targets {
		s.Add(t)
	}
	m.entries[ident] = s
}

// Union adds targets to whatever set already exists at ident (used for the
// "false" branch of a phi merge, ).
func (m *Map) Union(ident string, targets []Target) {
	s, ok := m.entries[ident]
	if !ok {
		s = newSet(m.syms)
		m.entries[ident] = s
	}
	for _, t := range targets {
		s.Add(t)
	}
}

// Get returns the targets recorded at ident, or nil if absent.
func (m *Map) Get(ident string) []Target {
	s, ok := m.entries[ident]
	if !ok {
		return nil
	}
	return s.Sorted()
}

// RemoveDataPrefixed deletes every entry whose identifier starts with
// prefix+".data" — used by the enum assignment rule before
// installing the fields of a newly-assigned variant.
func (m *Map) RemoveDataPrefixed(prefix string) {
	needle := prefix + ".data"
	for k := range m.entries {
		if strings.HasPrefix(k, needle) {
			delete(m.entries, k)
		}
	}
}

// MeetWith unions other's entries into m, matching the driver's "union
// value-sets" merge step; points-to is an over-approximation so
// union, not intersection, is the sound merge.
func (m *Map) MeetWith(other *Map) {
	for ident, set := range other.entries {
		m.Union(ident, set.Sorted())
	}
}

// Resolve computes get_value_set(e, suffix): traverses e and
// returns its points-to targets, installing the "unknown" sentinel if the
// resolved set would otherwise be empty.
func Resolve(m *Map, e expr.Expr, suffix string) []Target {
	targets := resolve(m, e, suffix)
	if len(targets) == 0 {
		return []Target{Unknown}
	}
	return targets
}

func resolve(m *Map, e expr.Expr, suffix string) []Target {
	switch e.Kind() {
	case expr.KSymbol:
		if e.SymbolText() == "unknown" {
			return []Target{Unknown}
		}
		return m.Get(e.SymbolText() + suffix)
	case expr.KConst:
		if e.ConstKind() == expr.CNull {
			return []Target{Null}
		}
		return nil
	case expr.KAddressOf:
		obj := e.Child(0)
		if obj.Kind() == expr.KIndex && isConstIndex(obj.Child(1)) {
			return []Target{{Kind: TObject, Object: symNameOf(obj.Child(0)), Offset: int(obj.Child(1).BigInt().Int64()), HasOffset: true}}
		}
		return []Target{{Kind: TObject, Object: symNameOf(obj), Offset: 0, HasOffset: true}}
	case expr.KOffset:
		base := resolve(m, e.Child(0), suffix)
		k := e.Child(1)
		if !isConstIndex(k) {
			return []Target{Unknown} // symbolic offset: the target cannot be resolved
		}
		shift := int(k.BigInt().Int64())
		out := make([]Target, 0, len(base))
		for _, t := range base {
			if t.Kind == TObject && t.HasOffset {
				t.Offset += shift
			}
			out = append(out, t)
		}
		return out
	case expr.KIte:
		then := resolve(m, e.Child(1), suffix)
		els := resolve(m, e.Child(2), suffix)
		return append(then, els...)
	case expr.KCast:
		return resolve(m, e.Child(0), suffix)
	case expr.KIndex:
		idx := e.Child(1)
		if isConstIndex(idx) {
			return resolve(m, e.Child(0), suffix+fmt.Sprintf("[%d]", idx.BigInt().Int64()))
		}
		return resolve(m, e.Child(0), suffix)
	default:
		return nil
	}
}

func isConstIndex(e expr.Expr) bool {
	return e.Kind() == expr.KConst && e.ConstKind() == expr.CBigInt
}

func symNameOf(e expr.Expr) symbol.Name {
	if e.Kind() == expr.KSymbol {
		return e.Symbol()
	}
	return 0
}
