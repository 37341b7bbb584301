// SPDX-License-Identifier: Apache-2.0

// Package symbol provides a process-wide intern table for short textual
// identifiers: source-level variable names, field names, and the synthetic
// names the symbolic executor and SSA renamer invent. Interning gives every
// identifier a small value-typed handle so the AST, the points-to maps, and
// the SSA symbol table can compare identifiers by integer equality instead
// of string comparison.
package symbol

import "sync"

// Name is an interned identifier. The zero Name is invalid; use Store.Intern
// to obtain one. Two Names compare equal iff they were interned from equal
// strings.
type Name uint32

// Store is an intern table. The zero Store is not usable; call NewStore.
// A Store is safe for concurrent use, though the checker itself is
// single-threaded — the lock exists because Store is a
// process-wide singleton shared by every subsystem holding a handle to it.
type Store struct {
	mu sync.Mutex
	byText map[string]Name
	byIndex []string
}

// NewStore creates an empty intern table.
func NewStore() *Store {
	return &Store{
		byText: make(map[string]Name),
		byIndex: []string{""}, // index 0 reserved for the invalid Name
	}
}

// Intern returns the Name for text, assigning a fresh one on first sight.
func (s *Store) Intern(text string) Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byText[text]; ok {
		return n
	}
	n := Name(len(s.byIndex))
	s.byIndex = append(s.byIndex, text)
	s.byText[text] = n
	return n
}

// Text returns the original string for n. Panics if n was not produced by
// this Store (an invariant violation elsewhere, not a user-facing error).
func (s *Store) Text(n Name) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(n) >= len(s.byIndex) {
		panic("symbol: Name not owned by this Store")
	}
	return s.byIndex[n]
}

// Concat interns the concatenation of the texts behind a and b, without the
// caller needing to round-trip through strings itself.
func (s *Store) Concat(a, b Name) Name {
	return s.Intern(s.Text(a) + s.Text(b))
}

// Substring interns the [start:end) substring of the text behind n.
func (s *Store) Substring(n Name, start, end int) Name {
	text := s.Text(n)
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start >= end {
		return s.Intern("")
	}
	return s.Intern(text[start:end])
}
