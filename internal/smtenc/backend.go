// SPDX-License-Identifier: Apache-2.0

package smtenc

// Result is the three-valued outcome of one solver Check.
type Result int

const (
	Unsat Result = iota
	Sat
	Unknown
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Backend is the opaque SMT-solver service: a
// check/eval/model surface the encoder drives without knowing how it is
// implemented. internal/solver.Z3Process is the one production
// implementation, speaking SMT-LIB2 to an external `z3 -in` process; tests
// use an in-memory fake (fakeBackend in internal/bmc/bmc_test.go).
type Backend interface {
	// Declare emits a raw SMT-LIB2 top-level command: declare-datatypes,
	// declare-const, declare-fun. Declarations are never retracted by
	// Reset.
	Declare(command string) error

	// Assert adds one SMT-LIB2 boolean term as a hard constraint.
	Assert(term string) error

	// Reset clears all asserted constraints; previously
	// declared sorts/consts remain usable.
	Reset() error

	// Check runs the solver over everything currently asserted.
	Check() (Result, error)

	// EvalBool reads a boolean term's value in the last satisfying model
	// -> bool (for model-reading in Once bug
	// reporting)"). Only valid immediately after a Sat Check.
	EvalBool(term string) (bool, error)

	// ShowModel renders the last satisfying model for --show-smt-model.
	ShowModel() (string, error)
}
