package valueset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rbmc/internal/expr"
	"rbmc/internal/symbol"
	"rbmc/internal/types"
	"rbmc/internal/valueset"
)

func TestResolveAddressOf(t *testing.T) {
	syms := symbol.NewStore()
	c := expr.NewContext(syms)
	vs := valueset.New(syms)

	obj := c.Symbol(syms.Intern("heap_obj_1"), types.TyU32)
	p := c.AddressOf(obj, types.Pointer(types.TyU32))

	got := valueset.Resolve(vs, p, "")
	require.Len(t, got, 1)
	require.Equal(t, valueset.TObject, got[0].Kind)
	require.Equal(t, syms.Intern("heap_obj_1"), got[0].Object)
}

func TestResolveEmptyFallsBackToUnknown(t *testing.T) {
	syms := symbol.NewStore()
	c := expr.NewContext(syms)
	vs := valueset.New(syms)

	p := c.Symbol(syms.Intern("p"), types.Pointer(types.TyU32))
	got := valueset.Resolve(vs, p, "")
	require.Len(t, got, 1)
	require.Equal(t, valueset.TUnknown, got[0].Kind)
}

func TestInstallAndUnion(t *testing.T) {
	syms := symbol.NewStore()
	vs := valueset.New(syms)

	a := valueset.Target{Kind: valueset.TObject, Object: syms.Intern("a"), HasOffset: true}
	b := valueset.Target{Kind: valueset.TObject, Object: syms.Intern("b"), HasOffset: true}

	vs.Install("p", []valueset.Target{a})
	require.Len(t, vs.Get("p"), 1)

	vs.Union("p", []valueset.Target{b})
	require.Len(t, vs.Get("p"), 2)
}
