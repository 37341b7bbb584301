// SPDX-License-Identifier: Apache-2.0

// Package vc implements the ordered verification-condition sequence:
// Assign/Assume/Assert steps, the assertion index, and the per-step
// "sliced" flag consumed by the slicer and the SMT encoder.
package vc

import (
	"rbmc/internal/expr"
	"rbmc/internal/ir"
)

// StepKind discriminates one VC step.
type StepKind int

const (
	Assign StepKind = iota
	Assume
	Assert
)

// Step is one VC instruction. For Assign, Lhs must be an
// L2-symbol-typed expression; for Assert, Cond is boolean and Msg/Span carry
// the diagnostic the BMC orchestrator reports on SAT.
type Step struct {
	Kind StepKind
	Lhs expr.Expr // Assign
	Rhs expr.Expr // Assign
	Cond expr.Expr // Assume / Assert
	Msg string // Assert
	Span ir.Span

	Sliced bool // true while the step is excluded from encoding; the slicer clears it for needed steps
}

// System is the ordered VC sequence the symex driver appends to and the
// slicer/encoder read.
type System struct {
	steps []Step
	assertionToVC []int // assertion index -> index into steps
}

// New creates an empty VC system.
func New() *System { return &System{} }

// Assign appends an Assign step.
func (s *System) Assign(lhs, rhs expr.Expr, span ir.Span) {
	s.steps = append(s.steps, Step{Kind: Assign, Lhs: lhs, Rhs: rhs, Span: span})
}

// AssumeStep appends an Assume step.
func (s *System) AssumeStep(cond expr.Expr, span ir.Span) {
	s.steps = append(s.steps, Step{Kind: Assume, Cond: cond, Span: span})
}

// AssertStep appends an Assert step and returns its assertion index.
func (s *System) AssertStep(cond expr.Expr, msg string, span ir.Span) int {
	idx := len(s.assertionToVC)
	s.assertionToVC = append(s.assertionToVC, len(s.steps))
	s.steps = append(s.steps, Step{Kind: Assert, Cond: cond, Msg: msg, Span: span})
	return idx
}

// Len returns the number of VC steps.
func (s *System) Len() int { return len(s.steps) }

// Step returns the i-th step.
func (s *System) Step(i int) Step { return s.steps[i] }

// SetSliced updates the sliced flag of the i-th step.
func (s *System) SetSliced(i int, sliced bool) { s.steps[i].Sliced = sliced }

// NumAssertions returns how many Assert steps have been recorded.
func (s *System) NumAssertions() int { return len(s.assertionToVC) }

// AssertionVCIndex maps an assertion index to its position in the step list.
func (s *System) AssertionVCIndex(assertionIdx int) int { return s.assertionToVC[assertionIdx] }

// Iter calls f for every step in order.
func (s *System) Iter(f func(i int, step Step)) {
	for i, st := range s.steps {
		f(i, st)
	}
}
