package dataflow

import (
	"github.com/samwillis/reactive-db/key"
)

// JoinKind enumerates the join kinds dataflow.Join supports, per
// spec.md §4.2/§4.7.3. Cross and Outer are normalized by
// query.Builder.Join before reaching this operator (cross -> inner with a true predicate,
// outer -> full); Join itself only ever sees these four.
type JoinKind int

const (
	Inner JoinKind = iota
	Left
	Right
	Full
)

// Pair is the payload Join emits: the matching left/right values, with
// Present flags distinguishing a real nil value from "no match on this
// side" for outer joins.
type Pair struct {
	Left        any
	LeftPresent bool

	Right        any
	RightPresent bool
}

// Join performs a full equi-join on the records' Keys (spec.md §4.2):
// both input streams must already be keyed by the join attribute's
// value (the compiler arranges this with a Map stage before calling
// Join; see applyJoin in compiler/compiler.go). Outer sides produce a Pair with the
// corresponding Present flag false.
//
// Join is stateful per Key: it keeps both sides' live (value,
// multiplicity) buckets and, on every incoming change, recomputes the
// desired output multiset for that Key from scratch and diffs it
// against what was previously emitted, so that retractions (a match
// disappearing, an unmatched row becoming matched) are always correct
// regardless of arrival order.
func Join(left, right *Stream, kind JoinKind, valueKey valueKeyFunc) *Stream {
	out := New()
	j := &joinState{
		perKey:   map[key.Key]*joinKeyState{},
		kind:     kind,
		valueKey: valueKey,
	}

	left.Subscribe(func(b Batch) { out.Push(j.apply(b, true)) })
	right.Subscribe(func(b Batch) { out.Push(j.apply(b, false)) })

	return out
}

type joinKeyState struct {
	left, right map[string]*groupEntry
	emitted     map[string]emittedEntry
}

type emittedEntry struct {
	pair  Pair
	delta int
}

type joinState struct {
	perKey   map[key.Key]*joinKeyState
	kind     JoinKind
	valueKey valueKeyFunc
}

func (j *joinState) apply(b Batch, fromLeft bool) Batch {
	var out Batch
	for _, r := range b {
		ks, ok := j.perKey[r.Key]
		if !ok {
			ks = &joinKeyState{
				left:    map[string]*groupEntry{},
				right:   map[string]*groupEntry{},
				emitted: map[string]emittedEntry{},
			}
			j.perKey[r.Key] = ks
		}

		bucket := ks.left
		if !fromLeft {
			bucket = ks.right
		}
		vk := j.valueKey(r.Value)
		entry, ok := bucket[vk]
		if !ok {
			entry = &groupEntry{value: r.Value}
			bucket[vk] = entry
		}
		entry.delta += r.Delta
		entry.value = r.Value
		if entry.delta == 0 {
			delete(bucket, vk)
		}

		out = append(out, j.reconcile(r.Key, ks)...)

		if len(ks.left) == 0 && len(ks.right) == 0 && len(ks.emitted) == 0 {
			delete(j.perKey, r.Key)
		}
	}
	return out
}

// reconcile recomputes the desired output multiset for one Key from
// its current left/right buckets and emits the diff against what was
// previously emitted.
func (j *joinState) reconcile(k key.Key, ks *joinKeyState) Batch {
	desired := map[string]emittedEntry{}

	switch {
	case len(ks.left) > 0 && len(ks.right) > 0:
		for lvk, l := range ks.left {
			for rvk, r := range ks.right {
				sig := "L:" + lvk + "|R:" + rvk
				desired[sig] = emittedEntry{
					pair:  Pair{Left: l.value, LeftPresent: true, Right: r.value, RightPresent: true},
					delta: l.delta * r.delta,
				}
			}
		}
	case len(ks.left) > 0:
		if j.kind == Left || j.kind == Full {
			for lvk, l := range ks.left {
				sig := "L:" + lvk + "|R:<none>"
				desired[sig] = emittedEntry{pair: Pair{Left: l.value, LeftPresent: true}, delta: l.delta}
			}
		}
	case len(ks.right) > 0:
		if j.kind == Right || j.kind == Full {
			for rvk, r := range ks.right {
				sig := "L:<none>|R:" + rvk
				desired[sig] = emittedEntry{pair: Pair{Right: r.value, RightPresent: true}, delta: r.delta}
			}
		}
	}

	var out Batch
	for sig, want := range desired {
		had := ks.emitted[sig]
		if diff := want.delta - had.delta; diff != 0 {
			out = append(out, Record{Key: k, Value: want.pair, Delta: diff})
		}
	}
	for sig, had := range ks.emitted {
		if _, stillWanted := desired[sig]; !stillWanted && had.delta != 0 {
			out = append(out, Record{Key: k, Value: had.pair, Delta: -had.delta})
		}
	}

	for sig := range ks.emitted {
		if _, ok := desired[sig]; !ok {
			delete(ks.emitted, sig)
		}
	}
	for sig, want := range desired {
		ks.emitted[sig] = want
	}

	return out
}
