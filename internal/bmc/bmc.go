// SPDX-License-Identifier: Apache-2.0

// Package bmc implements the BMC orchestrator: it runs
// symex to completion over a reconstructed program, then discharges the
// accumulated VC system to an SMT backend under one of two strategies,
// reporting the first (or combined) property violation with its source
// location.
package bmc

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"rbmc/internal/cfg"
	"rbmc/internal/ir"
	"rbmc/internal/placestate"
	"rbmc/internal/report"
	"rbmc/internal/smtenc"
	"rbmc/internal/symbol"
	"rbmc/internal/symex"
	"rbmc/internal/vc"
)

// Strategy selects how the orchestrator discharges the VC system
// (the --smt-strategy flag).
type Strategy int

const (
	Once Strategy = iota
	Forward
)

// ParseStrategy maps the CLI/config spelling to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "once":
		return Once, nil
	case "forward":
		return Forward, nil
	default:
		return Once, errors.Errorf("bmc: unknown smt-strategy %q", s)
	}
}

// Config bundles every BMC-run-shaping flag. Run does not read ShowVCC:
// no VC steps are printed whatever its value.
type Config struct {
	EntryFunction string
	UnwindBound   int
	Strategy      Strategy
	NoSlice       bool
	ShowVCC       bool
	ShowSMTModel  bool
}

// Outcome is the tri-state verification result prints.
type Outcome string

const (
	Success Outcome = "success"
	Fail Outcome = "fail"
	Unknown Outcome = "unknown"
)

// Timings records the two phase durations "User-visible
// behavior" requires printing: "Runtime Symex:... s", "Runtime SMT
// check:... s".
type Timings struct {
	Symex time.Duration
	SMT time.Duration
}

// Result is what Run reports back to cmd/rbmc.
type Result struct {
	Outcome Outcome
	Violation *report.Violation
	Model string
	Timings Timings
}

// Run executes the whole pipeline over prog, starting at
// conf.EntryFunction, through backend.
func Run(prog *ir.Program, backend smtenc.Backend, syms *symbol.Store, conf Config, log *logrus.Entry) (*Result, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	reconstructed, err := reconstructAll(prog)
	if err != nil {
		return nil, &report.ErrStuck{Cause: errors.Wrap(err, "cfg reconstruction")}
	}

	symexStart := time.Now()
	state, err := symex.Run(reconstructed, conf.EntryFunction, syms, conf.UnwindBound)
	symexElapsed := time.Since(symexStart)
	if err != nil {
		return nil, &report.ErrStuck{Cause: err}
	}
	log.WithField("steps", state.VC.Len()).WithField("assertions", state.VC.NumAssertions()).Info("symex complete")

	if state.VC.NumAssertions() == 0 {
		return &Result{Outcome: Success, Timings: Timings{Symex: symexElapsed}}, nil
	}

	if conf.NoSlice {
		state.VC.Disable()
	}

	allocOf := allocTermFunc(backend, state.Places)
	heapObjects := make([]symbol.Name, len(state.Objects))
	for i, o := range state.Objects {
		heapObjects[i] = o.Ident
	}
	enc := smtenc.New(syms, backend, allocOf, heapObjects)

	smtStart := time.Now()
	var result *Result
	if conf.Strategy == Forward {
		result, err = runForward(enc, backend, state.VC, conf)
	} else {
		result, err = runOnce(enc, backend, state.VC, conf)
	}
	smtElapsed := time.Since(smtStart)
	if err != nil {
		return nil, err
	}
	result.Timings = Timings{Symex: symexElapsed, SMT: smtElapsed}
	return result, nil
}

// reconstructAll runs internal/cfg over every function in prog, returning a
// fresh Program whose Functions are all CFG-reconstructed.
func reconstructAll(prog *ir.Program) (*ir.Program, error) {
	out := &ir.Program{Functions: make(map[string]*ir.Function, len(prog.Functions))}
	for name, fn := range prog.Functions {
		rebuilt, err := cfg.Reconstruct(fn)
		if err != nil {
			return nil, errors.Wrapf(err, "reconstructing %q", name)
		}
		out.Functions[name] = rebuilt
	}
	return out, nil
}

// allocTermFunc supplies smtenc.ObjSpace/Encoder the "currently allocated"
// boolean term for a heap object from the final place-state map: Own and
// Alive become the literal true, Dead the literal false, and Unknown gets one fresh uninterpreted
// boolean constant per object so the solver decides it.
func allocTermFunc(backend smtenc.Backend, places *placestate.Map) smtenc.AllocTermFunc {
	fresh := make(map[symbol.Name]string)
	seq := 0
	return func(obj symbol.Name) string {
		switch places.Get(placestate.NPlace{Ident: obj}) {
		case placestate.Own, placestate.Alive:
			return "true"
		case placestate.Dead:
			return "false"
		default:
			if name, ok := fresh[obj]; ok {
				return name
			}
			seq++
			name := fmt.Sprintf("alloc_unknown_%d", seq)
			_ = backend.Declare(fmt.Sprintf("(declare-const %s Bool)", name))
			fresh[obj] = name
			return name
		}
	}
}

// encodeAssignsAndAssumes encodes every non-sliced Assign/Assume step in
// order, asserting each as it goes; it returns the list of non-sliced
// Assert steps encountered, left un-asserted for the caller to combine per
// strategy.
func encodeAssignsAndAssumes(enc *smtenc.Encoder, system *vc.System) ([]vc.Step, error) {
	var asserts []vc.Step
	var encErr error
	system.Iter(func(i int, step vc.Step) {
		if encErr != nil || step.Sliced {
			return
		}
		switch step.Kind {
		case vc.Assign:
			encErr = enc.EncodeAssign(step.Lhs, step.Rhs)
		case vc.Assume:
			encErr = enc.EncodeAssume(step.Cond)
		case vc.Assert:
			asserts = append(asserts, step)
		}
	})
	if encErr != nil {
		return nil, encErr
	}
	return asserts, nil
}

// runOnce implements strategy Once: slice the whole VC system
// once, encode every kept Assign/Assume, then assert the disjunction of
// every kept assertion's *violation* condition (the negation of its "must
// hold" Cond) as one hard constraint — SAT means at least one assertion is
// reachably violated").
func runOnce(enc *smtenc.Encoder, backend smtenc.Backend, system *vc.System, conf Config) (*Result, error) {
	if !conf.NoSlice {
		system.SliceWhole()
	}
	asserts, err := encodeAssignsAndAssumes(enc, system)
	if err != nil {
		return nil, &report.ErrStuck{Cause: err}
	}
	if len(asserts) == 0 {
		return &Result{Outcome: Success}, nil
	}

	negTerms := make([]string, 0, len(asserts))
	for _, a := range asserts {
		term, err := enc.EncodeCond(a.Cond)
		if err != nil {
			return nil, &report.ErrStuck{Cause: err}
		}
		negTerms = append(negTerms, fmt.Sprintf("(not %s)", term))
	}
	disjunction := negTerms[0]
	for _, t := range negTerms[1:] {
		disjunction = fmt.Sprintf("(or %s %s)", disjunction, t)
	}
	if err := backend.Assert(disjunction); err != nil {
		return nil, &report.ErrStuck{Cause: err}
	}

	res, err := backend.Check()
	if err != nil {
		return nil, &report.ErrStuck{Cause: err}
	}
	switch res {
	case smtenc.Unsat:
		return &Result{Outcome: Success}, nil
	case smtenc.Unknown:
		return &Result{Outcome: Unknown}, nil
	}

	violation, err := firstViolated(enc, backend, asserts)
	if err != nil {
		return nil, &report.ErrStuck{Cause: err}
	}
	result := &Result{Outcome: Fail, Violation: violation}
	if conf.ShowSMTModel {
		model, err := backend.ShowModel()
		if err == nil {
			result.Model = model
		}
	}
	return result, nil
}

// firstViolated evaluates each candidate assertion's negated condition in
// the model found by runOnce's combined Check, returning the first whose
// negation is actually true.
func firstViolated(enc *smtenc.Encoder, backend smtenc.Backend, asserts []vc.Step) (*report.Violation, error) {
	for _, a := range asserts {
		term, err := enc.EncodeCond(a.Cond)
		if err != nil {
			return nil, err
		}
		holds, err := backend.EvalBool(term)
		if err != nil {
			return nil, err
		}
		if !holds {
			return &report.Violation{Kind: kindOf(a.Msg), Span: a.Span, Message: a.Msg}, nil
		}
	}
	// No single candidate's negation evaluated true (a model-reading
	// imprecision the opaque backend may exhibit); report the first as a
	// conservative default rather than claiming no violation.
	a := asserts[0]
	return &report.Violation{Kind: kindOf(a.Msg), Span: a.Span, Message: a.Msg}, nil
}

// runForward implements strategy Forward: for each assertion in
// turn, reset the solver, slice for exactly that assertion, encode, and
// check; stop at the first SAT (a confirmed violation) or UNKNOWN, else
// continue to the next assertion.
func runForward(enc *smtenc.Encoder, backend smtenc.Backend, system *vc.System, conf Config) (*Result, error) {
	n := system.NumAssertions()
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := backend.Reset(); err != nil {
				return nil, &report.ErrStuck{Cause: err}
			}
		}
		if !conf.NoSlice {
			system.SliceNth(i)
		}
		asserts, err := encodeAssignsAndAssumes(enc, system)
		if err != nil {
			return nil, &report.ErrStuck{Cause: err}
		}
		target := findAssertion(asserts, system, i)
		if target == nil {
			continue // assertion i was sliced out of its own pass (unreachable)
		}
		term, err := enc.EncodeCond(target.Cond)
		if err != nil {
			return nil, &report.ErrStuck{Cause: err}
		}
		if err := backend.Assert(fmt.Sprintf("(not %s)", term)); err != nil {
			return nil, &report.ErrStuck{Cause: err}
		}

		res, err := backend.Check()
		if err != nil {
			return nil, &report.ErrStuck{Cause: err}
		}
		switch res {
		case smtenc.Sat:
			result := &Result{
				Outcome: Fail,
				Violation: &report.Violation{Kind: kindOf(target.Msg), Span: target.Span, Message: target.Msg},
			}
			if conf.ShowSMTModel {
				if model, err := backend.ShowModel(); err == nil {
					result.Model = model
				}
			}
			return result, nil
		case smtenc.Unknown:
			return &Result{Outcome: Unknown}, nil
		}
	}
	return &Result{Outcome: Success}, nil
}

// findAssertion locates the assertion-under-test among the un-sliced
// Assert steps encodeAssignsAndAssumes collected for pass i: SliceNth(i)
// keeps exactly one Assert step un-sliced (assertion i itself), so this is
// normally a len-1 search; the VC index lookup disambiguates if more than
// one survived (e.g. --no-slice was given).
func findAssertion(asserts []vc.Step, system *vc.System, i int) *vc.Step {
	want := system.Step(system.AssertionVCIndex(i))
	for _, a := range asserts {
		if a.Span == want.Span && a.Msg == want.Msg {
			step := a
			return &step
		}
	}
	return nil
}

// kindOf classifies a violation message into taxonomy by its
// conventional prefix (the symex driver's assertSafe call sites, e.g.
// "%s of a null pointer", "%s of an invalid place", "memory leak:...",
// "dealloc at a non-zero offset", already spell these consistently).
func kindOf(msg string) report.Kind {
	switch {
	case hasPrefix(msg, "memory leak") || hasPrefix(msg, "possible memory leak"):
		return report.MemoryLeak
	case hasPrefix(msg, "dealloc"):
		return report.DeallocFailure
	case hasPrefix(msg, "drop"):
		return report.DropFailure
	case hasPrefix(msg, "read") || hasPrefix(msg, "write") || hasPrefix(msg, "index"):
		return report.DereferenceFailure
	default:
		return report.BuiltinCheck
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
