package dataflow

import "github.com/samwillis/reactive-db/key"

// GroupMember is one live constituent of a group passed to a Reduce
// Combine function: the original value and its current net
// multiplicity.
type GroupMember struct {
	Value any
	Delta int
}

// Combine computes a group's aggregate result from its full current
// multiset of members. It is called with every live member each time
// the group changes, per spec.md §4.2 ("input multiplicities feed
// combine") — this is a full recompute rather than an incremental
// fold, since member retraction (Delta < 0) cannot in general be
// undone by a partial aggregate.
type Combine func(members []GroupMember) any

// Reduce groups records by groupKey (the GROUP BY key, spec.md
// §4.7.1 step 8) and applies combine to each group's current members,
// emitting a retraction of the previous result and an insertion of the
// new one whenever a group's aggregate changes. An empty group (all
// members retracted) retracts its last-emitted result and emits
// nothing further.
func Reduce(in *Stream, groupKey func(Record) key.Key, combine Combine) *Stream {
	out := New()
	groups := map[key.Key]map[string]*GroupMember{}
	lastResult := map[key.Key]any{}
	hasResult := map[key.Key]bool{}

	in.Subscribe(func(b Batch) {
		touched := map[key.Key]bool{}
		for _, r := range b {
			gk := groupKey(r)
			bucket, ok := groups[gk]
			if !ok {
				bucket = map[string]*GroupMember{}
				groups[gk] = bucket
			}
			vk := memberKey(r)
			m, ok := bucket[vk]
			if !ok {
				m = &GroupMember{Value: r.Value}
				bucket[vk] = m
			}
			m.Delta += r.Delta
			m.Value = r.Value
			if m.Delta == 0 {
				delete(bucket, vk)
			}
			touched[gk] = true
		}

		var outBatch Batch
		for gk := range touched {
			bucket := groups[gk]
			var members []GroupMember
			for _, m := range bucket {
				if m.Delta != 0 {
					members = append(members, *m)
				}
			}

			if len(members) == 0 {
				if hasResult[gk] {
					outBatch = append(outBatch, Record{Key: gk, Value: lastResult[gk], Delta: -1})
					delete(lastResult, gk)
					delete(hasResult, gk)
				}
				delete(groups, gk)
				continue
			}

			result := combine(members)
			if hasResult[gk] {
				if equalAny(lastResult[gk], result) {
					continue
				}
				outBatch = append(outBatch, Record{Key: gk, Value: lastResult[gk], Delta: -1})
			}
			outBatch = append(outBatch, Record{Key: gk, Value: result, Delta: 1})
			lastResult[gk] = result
			hasResult[gk] = true
		}
		out.Push(outBatch)
	})

	return out
}

func memberKey(r Record) string {
	return DefaultValueKey(r.Value)
}
