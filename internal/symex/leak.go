// SPDX-License-Identifier: Apache-2.0

package symex

import (
	"fmt"

	"rbmc/internal/placestate"
)

// checkLeaks implements End-of-run rule: every heap object ever
// allocated is checked against the final (fully merged) place-state map.
// Own or Dead means every explored path freed or transferred ownership of
// it, no leak; Alive means it is still live on every explored path that
// reached the end of the run, an unconditional leak; Unknown arises when
// the meet collapsed a live path against a freed one (placestate.Meet:
// "valid ⊓ dead = Unknown"), so the leak is asserted conditionally on
// alloc[base(object)] rather than
// unconditionally, letting the solver decide whether the live path was
// actually reachable.
func (d *driver) checkLeaks() {
	for _, obj := range d.s.Objects {
		state := d.s.Places.Get(placestate.NPlace{Ident: obj.Ident})
		switch state {
		case placestate.Own, placestate.Dead:
			continue
		case placestate.Alive:
			d.assertSafe(d.s.Guard(), d.s.Ctx.Bool(true), fmt.Sprintf("memory leak: %s never freed", d.s.Syms.Text(obj.Ident)), obj.Span)
		case placestate.Unknown:
			root := d.s.Ctx.Symbol(obj.Ident, obj.Type)
			d.assertSafe(d.s.Guard(), d.s.Ctx.Valid(root), fmt.Sprintf("possible memory leak: %s", d.s.Syms.Text(obj.Ident)), obj.Span)
		}
	}
}
