// SPDX-License-Identifier: Apache-2.0

package bmc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbmc/internal/ir"
	"rbmc/internal/smtenc"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
)

// fakeBackend is an in-memory smtenc.Backend used by tests: it records
// every declared/asserted command and resolves Check/EvalBool from fields
// the test sets up front, never touching a real solver process.
type fakeBackend struct {
	declared []string
	asserted []string
	result   smtenc.Result
	evalBool bool
	checked  bool
}

func (f *fakeBackend) Declare(command string) error {
	f.declared = append(f.declared, command)
	return nil
}

func (f *fakeBackend) Assert(term string) error {
	f.asserted = append(f.asserted, term)
	return nil
}

func (f *fakeBackend) Reset() error {
	f.asserted = nil
	return nil
}

func (f *fakeBackend) Check() (smtenc.Result, error) {
	f.checked = true
	return f.result, nil
}

func (f *fakeBackend) EvalBool(term string) (bool, error) {
	return f.evalBool, nil
}

func (f *fakeBackend) ShowModel() (string, error) {
	return "", nil
}

func retProgram(name string) *ir.Program {
	return &ir.Program{
		Functions: map[string]*ir.Function{
			name: {
				Name: name,
				Blocks: []*ir.BasicBlock{
					{Label: "bb0", Terminator: ir.Terminator{Kind: ir.TReturn}},
				},
			},
		},
	}
}

func TestRun_EmptyFunctionSucceedsWithoutTouchingBackend(t *testing.T) {
	prog := retProgram("main")
	backend := &fakeBackend{}
	syms := symbol.NewStore()

	res, err := Run(prog, backend, syms, Config{EntryFunction: "main", UnwindBound: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, Success, res.Outcome)
	assert.False(t, backend.checked, "an assertion-free run must short-circuit before reaching the SMT backend")
	assert.Nil(t, res.Violation)
}

// allocDeallocProgram builds one function: alloc a pointer into local "p",
// immediately dealloc it, then return. No path ever observes "p" Alive at
// end of run, so the leak check emits no assertion.
func allocDeallocProgram() *ir.Program {
	ptrTy := types.Pointer(types.TyI32)
	fn := &ir.Function{
		Name:   "main",
		Params: nil,
		Locals: []ir.Local{
			{Name: "p", Type: ptrTy},
		},
		Blocks: []*ir.BasicBlock{
			{
				Label: "bb0",
				Terminator: ir.Terminator{
					Kind: ir.TCall,
					Func: "alloc",
					Dest: &ir.Place{Local: "p"},
					Target: "bb1",
				},
			},
			{
				Label: "bb1",
				Terminator: ir.Terminator{
					Kind: ir.TCall,
					Func: "dealloc",
					Args: []ir.Operand{{Kind: ir.OCopy, Place: ir.Place{Local: "p"}}},
					Target: "bb2",
				},
			},
			{
				Label:      "bb2",
				Terminator: ir.Terminator{Kind: ir.TReturn},
			},
		},
	}
	return &ir.Program{Functions: map[string]*ir.Function{"main": fn}}
}

func TestRun_MatchedAllocDeallocLeavesNoLeak(t *testing.T) {
	prog := allocDeallocProgram()
	backend := &fakeBackend{}
	syms := symbol.NewStore()

	res, err := Run(prog, backend, syms, Config{EntryFunction: "main", UnwindBound: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, Success, res.Outcome)
	assert.False(t, backend.checked, "a freed allocation must not reach the SMT backend as a leak assertion")
}

// allocOnlyProgram allocates "p" and returns without ever freeing it: the
// end-of-run leak check finds it unconditionally Alive.
func allocOnlyProgram() *ir.Program {
	ptrTy := types.Pointer(types.TyI32)
	fn := &ir.Function{
		Name:   "main",
		Locals: []ir.Local{{Name: "p", Type: ptrTy}},
		Blocks: []*ir.BasicBlock{
			{
				Label: "bb0",
				Terminator: ir.Terminator{
					Kind:   ir.TCall,
					Func:   "alloc",
					Dest:   &ir.Place{Local: "p"},
					Target: "bb1",
				},
			},
			{Label: "bb1", Terminator: ir.Terminator{Kind: ir.TReturn}},
		},
	}
	return &ir.Program{Functions: map[string]*ir.Function{"main": fn}}
}

func TestRun_UnfreedAllocationReportsLeakOnSat(t *testing.T) {
	prog := allocOnlyProgram()
	backend := &fakeBackend{result: smtenc.Sat, evalBool: false}
	syms := symbol.NewStore()

	res, err := Run(prog, backend, syms, Config{EntryFunction: "main", UnwindBound: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, Fail, res.Outcome)
	require.NotNil(t, res.Violation)
	assert.Equal(t, "memory leak: $obj1 never freed", res.Violation.Message)
	assert.True(t, backend.checked)
}

func TestRun_UnfreedAllocationUnknownOnSolverUnknown(t *testing.T) {
	prog := allocOnlyProgram()
	backend := &fakeBackend{result: smtenc.Unknown}
	syms := symbol.NewStore()

	res, err := Run(prog, backend, syms, Config{EntryFunction: "main", UnwindBound: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, Unknown, res.Outcome)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Once, s)

	s, err = ParseStrategy("forward")
	require.NoError(t, err)
	assert.Equal(t, Forward, s)

	_, err = ParseStrategy("bogus")
	assert.Error(t, err)
}
