// SPDX-License-Identifier: Apache-2.0

// Package builtins holds the small allow-list of functions the symex driver
// interprets directly instead of unwinding into them: heap allocation,
// layout queries, slice bound-check panics, and nondeterministic-value
// intrinsics.
package builtins

// Kind identifies one recognized builtin function.
type Kind int

const (
	NotBuiltin Kind = iota
	Alloc
	Dealloc
	BoxNew
	LayoutNew
	LayoutForValueRaw
	LayoutSize
	LayoutAlign
	SliceIndexPanic
	SliceRangePanic
	Nondet
)

// byName maps the fully qualified function name an IR producer would emit
// to the Kind the symex driver dispatches on.
var byName = map[string]Kind{
	"alloc": Alloc,
	"alloc::alloc::alloc": Alloc,
	"dealloc": Dealloc,
	"alloc::alloc::dealloc": Dealloc,
	"Box::new": BoxNew,
	"alloc::boxed::Box::new": BoxNew,
	"Layout::new": LayoutNew,
	"Layout::for_value_raw": LayoutForValueRaw,
	"Layout::size": LayoutSize,
	"Layout::align": LayoutAlign,
	"core::slice::index::panic_bounds_check": SliceIndexPanic,
	"core::slice::index::slice_range_panic": SliceRangePanic,
	"kani::any": Nondet,
	"nondet": Nondet,
}

// Lookup classifies a function name, returning NotBuiltin if name is not on
// the allow-list (meaning the driver must unwind into it instead).
func Lookup(name string) Kind {
	if k, ok := byName[name]; ok {
		return k
	}
	return NotBuiltin
}

// IsBuiltin reports whether name bypasses unwinding entirely.
func IsBuiltin(name string) bool {
	return Lookup(name) != NotBuiltin
}

// String renders a Kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case Alloc:
		return "alloc"
	case Dealloc:
		return "dealloc"
	case BoxNew:
		return "Box::new"
	case LayoutNew:
		return "Layout::new"
	case LayoutForValueRaw:
		return "Layout::for_value_raw"
	case LayoutSize:
		return "Layout::size"
	case LayoutAlign:
		return "Layout::align"
	case SliceIndexPanic:
		return "slice index panic"
	case SliceRangePanic:
		return "slice range panic"
	case Nondet:
		return "nondet"
	default:
		return "not-builtin"
	}
}
