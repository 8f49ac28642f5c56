// Package orderedmap implements spec.md §4.1: a keyed container
// supporting insertion, lookup, removal, and in-order iteration under a
// caller-supplied total order. It is backed by github.com/google/btree,
// giving amortized-logarithmic insert/remove/lookup and O(n) ordered
// iteration.
package orderedmap

import "github.com/google/btree"

// Map is an ordered key-value container. K need not be comparable in
// the Go sense (map-key sense); it only needs the total order supplied
// to New.
type Map[K any, V any] struct {
	less func(a, b K) bool
	tree *btree.BTreeG[entry[K, V]]
	size int
}

type entry[K any, V any] struct {
	key   K
	value V
}

// New constructs an empty Map ordered by less.
func New[K any, V any](less func(a, b K) bool) *Map[K, V] {
	lessEntry := func(a, b entry[K, V]) bool { return less(a.key, b.key) }
	return &Map[K, V]{
		less: less,
		tree: btree.NewG(32, lessEntry),
	}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return m.size }

// Get returns the value for key and whether it was present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	found, ok := m.tree.Get(entry[K, V]{key: k})
	return found.value, ok
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(k K) bool {
	_, ok := m.tree.Get(entry[K, V]{key: k})
	return ok
}

// Set inserts or replaces the value for key, returning the previous
// value (if any) and whether it existed.
func (m *Map[K, V]) Set(k K, v V) (V, bool) {
	old, had := m.tree.ReplaceOrInsert(entry[K, V]{key: k, value: v})
	if !had {
		m.size++
	}
	return old.value, had
}

// Delete removes key, returning the removed value and whether it was
// present.
func (m *Map[K, V]) Delete(k K) (V, bool) {
	old, had := m.tree.Delete(entry[K, V]{key: k})
	if had {
		m.size--
	}
	return old.value, had
}

// Min returns the smallest key's entry.
func (m *Map[K, V]) Min() (K, V, bool) {
	e, ok := m.tree.Min()
	return e.key, e.value, ok
}

// Range calls fn for every entry in ascending key order, stopping
// early if fn returns false.
func (m *Map[K, V]) Range(fn func(k K, v V) bool) {
	m.tree.Ascend(func(e entry[K, V]) bool {
		return fn(e.key, e.value)
	})
}

// Keys returns every key in ascending order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, 0, m.size)
	m.Range(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}

// Values returns every value, ordered by ascending key.
func (m *Map[K, V]) Values() []V {
	out := make([]V, 0, m.size)
	m.Range(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

// RangeFrom iterates entries with key >= from in ascending order.
func (m *Map[K, V]) RangeFrom(from K, fn func(k K, v V) bool) {
	m.tree.AscendGreaterOrEqual(entry[K, V]{key: from}, func(e entry[K, V]) bool {
		return fn(e.key, e.value)
	})
}

// Clone returns a shallow copy of m; mutating the clone does not
// affect m (google/btree's BTreeG.Clone is copy-on-write).
func (m *Map[K, V]) Clone() *Map[K, V] {
	return &Map[K, V]{
		less: m.less,
		tree: m.tree.Clone(),
		size: m.size,
	}
}
