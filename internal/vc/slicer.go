// SPDX-License-Identifier: Apache-2.0

package vc

import "rbmc/internal/expr"

// symbolSet is a set of L2 symbol names, keyed by their textual form (stable
// across the hash-consed context, unlike node ids reused by structurally
// equal subexpressions).
type symbolSet map[string]struct{}

func newSymbolSet() symbolSet { return make(symbolSet) }

func (s symbolSet) add(name string) { s[name] = struct{}{} }

func (s symbolSet) addAll(e expr.Expr) {
	collectSymbols(e, s)
}

func (s symbolSet) intersects(other symbolSet) bool {
	for k := range other {
		if _, ok := s[k]; ok {
			return true
		}
	}
	return false
}

func collectSymbols(e expr.Expr, into symbolSet) {
	if e.Invalid() {
		return
	}
	if e.Kind() == expr.KSymbol {
		into.add(e.SymbolText())
		return
	}
	for _, c := range e.Children() {
		collectSymbols(c, into)
	}
}

// SliceNth implements slice_nth(n): mark every step sliced
// (excluded), then unmark only assertion n and — walking the VC list
// backward from it — every assign whose LHS contains a currently-tracked
// symbol (adding the RHS's symbols to the tracked set) and every assume
// (adding its own symbols).
func (s *System) SliceNth(n int) {
	for i := range s.steps {
		s.steps[i].Sliced = true
	}
	vcIdx := s.AssertionVCIndex(n)
	s.steps[vcIdx].Sliced = false

	tracked := newSymbolSet()
	tracked.addAll(s.steps[vcIdx].Cond)

	backwardSlice(s, vcIdx, tracked)
}

// SliceWhole implements slice_whole: every assertion is kept,
// then the same backward walk runs once over the union of all kept
// assertions' symbols.
func (s *System) SliceWhole() {
	for i := range s.steps {
		if s.steps[i].Kind == Assert {
			s.steps[i].Sliced = false
		} else {
			s.steps[i].Sliced = true
		}
	}
	tracked := newSymbolSet()
	last := -1
	for i, st := range s.steps {
		if st.Kind == Assert {
			tracked.addAll(st.Cond)
			last = i
		}
	}
	if last < 0 {
		return
	}
	backwardSlice(s, last, tracked)
}

func backwardSlice(s *System, from int, tracked symbolSet) {
	for i := from - 1; i >= 0; i-- {
		st := s.steps[i]
		switch st.Kind {
		case Assume:
			s.steps[i].Sliced = false
			tracked.addAll(st.Cond)
		case Assign:
			lhsSyms := newSymbolSet()
			lhsSyms.addAll(st.Lhs)
			if tracked.intersects(lhsSyms) {
				s.steps[i].Sliced = false
				tracked.addAll(st.Rhs)
			}
		}
	}
}

// Disable is a convenience used by --no-slice: marks every step as kept.
func (s *System) Disable() {
	for i := range s.steps {
		s.steps[i].Sliced = false
	}
}
