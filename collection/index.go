package collection

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/samwillis/reactive-db/key"
)

// CompareOp enumerates the comparison operators an indexed range scan
// supports, per spec.md §4.3.5.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpLt
	OpLte
	OpGt
	OpGte
)

// indexBucket is one distinct indexed value and the set of record
// keys currently producing it.
type indexBucket struct {
	value any
	keys  mapset.Set[key.Key]
}

// Index is a per-collection ordered secondary index built from an
// expression evaluated over each visible row (spec.md §4.3.5). It
// maintains a valueMap (value identity -> bucket of record keys) plus
// orderedEntries (buckets sorted by the universal comparator, nulls
// first) so that equality lookups are O(1) amortized and range scans
// need only walk the ordered slice.
type Index[T any] struct {
	Name string
	expr func(T) any

	valueMap map[string]*indexBucket
	ordered  []*indexBucket

	// keyValue remembers, per record key, the encoded value it last
	// contributed, so update/delete can find and remove the old
	// bucket entry without re-evaluating expr against a stale row.
	keyValue map[key.Key]string
}

func newIndex[T any](name string, expr func(T) any) *Index[T] {
	return &Index[T]{
		Name:     name,
		expr:     expr,
		valueMap: map[string]*indexBucket{},
		keyValue: map[key.Key]string{},
	}
}

func (ix *Index[T]) encode(v any) string {
	if v == nil {
		return "\x00nil"
	}
	return "\x01" + indexValueKey(v)
}

// build evaluates expr against every row in rows and populates the
// index from scratch; used when a collection creates an index on an
// already-populated store.
func (ix *Index[T]) build(rows map[key.Key]T) {
	for k, row := range rows {
		ix.onInsert(k, row)
	}
}

func (ix *Index[T]) onInsert(k key.Key, row T) {
	v := ix.expr(row)
	enc := ix.encode(v)
	ix.keyValue[k] = enc
	ix.addTo(enc, v, k)
}

func (ix *Index[T]) onUpdate(k key.Key, row T) {
	ix.onDelete(k)
	ix.onInsert(k, row)
}

func (ix *Index[T]) onDelete(k key.Key) {
	enc, ok := ix.keyValue[k]
	if !ok {
		return
	}
	delete(ix.keyValue, k)
	b, ok := ix.valueMap[enc]
	if !ok {
		return
	}
	b.keys.Remove(k)
	if b.keys.Cardinality() == 0 {
		delete(ix.valueMap, enc)
		ix.removeOrdered(b)
	}
}

func (ix *Index[T]) addTo(enc string, v any, k key.Key) {
	b, ok := ix.valueMap[enc]
	if !ok {
		b = &indexBucket{value: v, keys: mapset.NewThreadUnsafeSet[key.Key]()}
		ix.valueMap[enc] = b
		ix.insertOrdered(b)
	}
	b.keys.Add(k)
}

func (ix *Index[T]) insertOrdered(b *indexBucket) {
	i := sort.Search(len(ix.ordered), func(i int) bool {
		return compareIndexValues(ix.ordered[i].value, b.value) >= 0
	})
	ix.ordered = append(ix.ordered, nil)
	copy(ix.ordered[i+1:], ix.ordered[i:])
	ix.ordered[i] = b
}

func (ix *Index[T]) removeOrdered(b *indexBucket) {
	for i, e := range ix.ordered {
		if e == b {
			ix.ordered = append(ix.ordered[:i], ix.ordered[i+1:]...)
			return
		}
	}
}

// Range returns the record keys whose indexed value satisfies (op,
// value), per spec.md §4.3.5: eq is a direct valueMap lookup; the
// ordered comparisons walk orderedEntries collecting matching
// buckets.
func (ix *Index[T]) Range(op CompareOp, value any) []key.Key {
	if op == OpEq {
		b, ok := ix.valueMap[ix.encode(value)]
		if !ok {
			return nil
		}
		return keysOf(b)
	}

	var out []key.Key
	for _, b := range ix.ordered {
		c := compareIndexValues(b.value, value)
		match := false
		switch op {
		case OpLt:
			match = c < 0
		case OpLte:
			match = c <= 0
		case OpGt:
			match = c > 0
		case OpGte:
			match = c >= 0
		}
		if match {
			out = append(out, keysOf(b)...)
		}
	}
	return out
}

func keysOf(b *indexBucket) []key.Key {
	return b.keys.ToSlice()
}

// compareIndexValues orders nil first (stable), then delegates to the
// universal comparator for defined values.
func compareIndexValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	return key.CompareValues(a, b)
}

func indexValueKey(v any) string {
	return key.ValueIdentity(v)
}
