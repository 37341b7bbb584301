// SPDX-License-Identifier: Apache-2.0

// Package report formats the user-visible text: property violations and
// internal stuck-state diagnostics, shaped like compiler diagnostics but
// pointing at the IR producer's file:line:col spans instead of quoting
// source text, since this repo never parses source text itself.
package report

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"rbmc/internal/ir"
)

// Kind is the property-violation taxonomy.
type Kind string

const (
	DereferenceFailure Kind = "dereference-failure"
	DeallocFailure Kind = "dealloc-failure"
	DropFailure Kind = "drop-failure"
	MemoryLeak Kind = "memory-leak"
	BuiltinCheck Kind = "built-in check"
	SlicingFail Kind = "slicing fail"
)

// Violation is one reported property violation: a VC assert found
// satisfiable by the solver, carrying its source span and message.
type Violation struct {
	Kind Kind
	Span ir.Span
	Message string
}

// ErrStuck wraps a symex-internal stuck state.
type ErrStuck struct {
	Cause error
}

func (e *ErrStuck) Error() string { return e.Cause.Error() }
func (e *ErrStuck) Unwrap() error { return e.Cause }

// Reporter formats violations and stuck states in a compiler-like,
// colorized style.
type Reporter struct {
	NoColor bool
}

// New creates a Reporter. Colors follow fatih/color's global enablement
// (respects NO_COLOR / non-tty detection automatically); NoColor forces
// plain text regardless (used by --no-color-equivalent test harnesses).
func New(noColor bool) *Reporter {
	return &Reporter{NoColor: noColor}
}

// FormatViolation renders one violation the way a compiler error reporter
// renders a diagnostic: "<kind>: message" then a "--> file:line:col"
// location line.
func (r *Reporter) FormatViolation(v Violation) string {
	bold := r.colorFn(color.FgRed, color.Bold)
	dim := r.colorFn(color.Faint)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", bold(string(v.Kind)), v.Message)
	fmt.Fprintf(&b, " %s %s\n", dim("-->"), v.Span.String())
	return b.String()
}

// FormatStuck renders an internal stuck state as a fatal diagnostic,
// unwrapping pkg/errors's cause chain one level.
func (r *Reporter) FormatStuck(err *ErrStuck) string {
	bold := r.colorFn(color.FgRed, color.Bold)
	return fmt.Sprintf("%s: %s\n", bold("internal error"), err.Error())
}

// PrintBanner prints the final "Verification result:..." line, colorized
// success/fail with ✅/❌ banners in the style of this module's other CLI
// output.
func (r *Reporter) PrintBanner(outcome string) string {
	switch outcome {
	case "success":
		return r.colorFn(color.FgGreen, color.Bold)("✅ Verification result: success.")
	case "fail":
		return r.colorFn(color.FgRed, color.Bold)("❌ Verification result: fail.")
	default:
		return r.colorFn(color.FgYellow, color.Bold)("⚠ Verification result: unknown.")
	}
}

func (r *Reporter) colorFn(attrs...color.Attribute) func(string) string {
	if r.NoColor {
		return func(s string) string { return s }
	}
	c := color.New(attrs...)
	sprint := c.SprintFunc()
	return func(s string) string { return sprint(s) }
}
