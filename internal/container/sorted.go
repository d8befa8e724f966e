// Package container provides the two reusable shapes spec.md names but
// doesn't detail: a small sorted slice with binary-search insert (used for
// StatusChunk's free-field list) and a fixed-growth static vector (used for
// ExpressionChunk's parallel element arrays). Both stay deliberately thin —
// the free list is small in practice, so an interval tree would be
// over-engineering.
package container

import (
	"golang.org/x/exp/slices"
)

// SortedSlice keeps elements in ascending order according to less. Insert
// finds its position by binary search; insert, remove and FindFirst are
// O(n) (acceptable: the free-field lists this backs rarely hold more than
// a few dozen entries).
type SortedSlice[T any] struct {
	items []T
	less  func(a, b T) bool
}

// NewSortedSlice creates an empty SortedSlice ordered by less.
func NewSortedSlice[T any](less func(a, b T) bool) *SortedSlice[T] {
	return &SortedSlice[T]{less: less}
}

// Len returns the number of elements.
func (s *SortedSlice[T]) Len() int { return len(s.items) }

// At returns the element at position i.
func (s *SortedSlice[T]) At(i int) T { return s.items[i] }

// Items returns the backing slice, read-only by convention.
func (s *SortedSlice[T]) Items() []T { return s.items }

// Insert places v at its sorted position.
func (s *SortedSlice[T]) Insert(v T) {
	i, _ := slices.BinarySearchFunc(s.items, v, s.cmp)
	s.items = slices.Insert(s.items, i, v)
}

// RemoveAt deletes the element at position i.
func (s *SortedSlice[T]) RemoveAt(i int) {
	s.items = slices.Delete(s.items, i, i+1)
}

// FindFirst returns the index of the first element satisfying pred, or -1.
// Used for "smallest free region with width >= requested" style scans: the
// caller supplies pred rather than a key so callers can search on a
// derived ordering (e.g. width only, ignoring position) without this
// package knowing the element's shape.
func (s *SortedSlice[T]) FindFirst(pred func(T) bool) int {
	for i, v := range s.items {
		if pred(v) {
			return i
		}
	}
	return -1
}

func (s *SortedSlice[T]) cmp(a, b T) int {
	switch {
	case s.less(a, b):
		return -1
	case s.less(b, a):
		return 1
	default:
		return 0
	}
}

// Clear empties the slice, keeping its backing array for reuse.
func (s *SortedSlice[T]) Clear() {
	s.items = s.items[:0]
}
