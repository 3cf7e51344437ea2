// SPDX-License-Identifier: MPL-2.0

package coordinate

import "slices"

// Set is an insertion-ordered collection holding at most one coordinate per
// slot. The first coordinate added for a slot wins. Not safe for concurrent use.
type Set struct {
	index map[Slot]int
	items []Coordinate
}

// NewSet returns a set seeded with coords, applying first-wins.
func NewSet(coords ...Coordinate) *Set {
	s := &Set{index: make(map[Slot]int, len(coords))}
	for _, c := range coords {
		s.Add(c)
	}
	return s
}

// Add inserts c unless its slot is already present. It reports whether c was added.
func (s *Set) Add(c Coordinate) bool {
	if s.index == nil {
		s.index = make(map[Slot]int)
	}
	if _, ok := s.index[c.Slot()]; ok {
		return false
	}
	s.index[c.Slot()] = len(s.items)
	s.items = append(s.items, c)
	return true
}

// Contains reports whether c's slot is present.
func (s *Set) Contains(c Coordinate) bool {
	return s.ContainsSlot(c.Slot())
}

// ContainsSlot reports whether slot is present.
func (s *Set) ContainsSlot(slot Slot) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[slot]
	return ok
}

// Get returns the coordinate occupying slot.
func (s *Set) Get(slot Slot) (Coordinate, bool) {
	if s == nil {
		return Coordinate{}, false
	}
	i, ok := s.index[slot]
	if !ok {
		return Coordinate{}, false
	}
	return s.items[i], true
}

// Len returns the number of slots held.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns the coordinates in insertion order.
func (s *Set) Items() []Coordinate {
	if s == nil {
		return nil
	}
	return slices.Clone(s.items)
}
