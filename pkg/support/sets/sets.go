// Package sets implements a set of ordered keys, with deterministic (sorted) enumeration.
package sets

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// Set of keys of type T.
type Set[T cmp.Ordered] map[T]struct{}

// Make returns an empty Set.
func Make[T cmp.Ordered]() Set[T] {
	return make(Set[T])
}

// Of creates a Set with the given keys.
func Of[T cmp.Ordered](keys ...T) Set[T] {
	s := make(Set[T], len(keys))
	s.Insert(keys...)
	return s
}

// Collect creates a Set with the keys of seq, e.g.: `sets.Collect(maps.Keys(m))`.
func Collect[T cmp.Ordered](seq iter.Seq[T]) Set[T] {
	s := Make[T]()
	for key := range seq {
		s[key] = struct{}{}
	}
	return s
}

// Has returns whether key is in the set.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into the set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Missing returns the keys not in the set, in the order given.
func (s Set[T]) Missing(keys ...T) []T {
	var missing []T
	for _, key := range keys {
		if !s.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// Sorted returns the keys of the set in increasing order.
func (s Set[T]) Sorted() []T {
	return slices.Sorted(maps.Keys(s))
}
