// SPDX-License-Identifier: MPL-2.0

// Package classpath models the host side of injection: an immutable ordered
// search path of artifact locations and a reference host loader that resolves
// resources against it.
package classpath

import (
	"path/filepath"
	"slices"
	"strings"
)

// SearchPath is an immutable ordered list of artifact locations. Entries are
// cleaned and unique. The zero value and nil are both empty.
type SearchPath struct {
	entries []string
	index   map[string]struct{}
}

// NewSearchPath builds a search path from entries, dropping blanks and
// duplicates while keeping the first occurrence.
func NewSearchPath(entries ...string) *SearchPath {
	sp := &SearchPath{index: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		sp.add(e)
	}
	return sp
}

func (sp *SearchPath) add(entry string) {
	if strings.TrimSpace(entry) == "" {
		return
	}
	clean := filepath.Clean(entry)
	if _, ok := sp.index[clean]; ok {
		return
	}
	sp.index[clean] = struct{}{}
	sp.entries = append(sp.entries, clean)
}

// Entries returns a copy of the entries in order.
func (sp *SearchPath) Entries() []string {
	if sp == nil {
		return nil
	}
	return slices.Clone(sp.entries)
}

// Contains reports whether entry is on the path.
func (sp *SearchPath) Contains(entry string) bool {
	if sp == nil {
		return false
	}
	_, ok := sp.index[filepath.Clean(entry)]
	return ok
}

// Len returns the number of entries.
func (sp *SearchPath) Len() int {
	if sp == nil {
		return 0
	}
	return len(sp.entries)
}

// Union returns a new search path holding every entry of sp followed by the
// entries of extra that sp lacks. sp is not modified.
func (sp *SearchPath) Union(extra ...string) *SearchPath {
	out := NewSearchPath(sp.Entries()...)
	for _, e := range extra {
		out.add(e)
	}
	return out
}

func (sp *SearchPath) String() string {
	return strings.Join(sp.Entries(), string(filepath.ListSeparator))
}
