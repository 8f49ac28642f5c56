package dataflow

import "github.com/samwillis/reactive-db/key"

// Map applies f to each Record, preserving Delta, per spec.md §4.2.
func Map(in *Stream, f func(Record) Record) *Stream {
	out := New()
	in.Subscribe(func(b Batch) {
		mapped := make(Batch, len(b))
		for i, r := range b {
			mapped[i] = f(r)
		}
		out.Push(mapped)
	})
	return out
}

// Filter drops Records where p is false, preserving Delta on
// survivors, per spec.md §4.2.
func Filter(in *Stream, p func(Record) bool) *Stream {
	out := New()
	in.Subscribe(func(b Batch) {
		var kept Batch
		for _, r := range b {
			if p(r) {
				kept = append(kept, r)
			}
		}
		out.Push(kept)
	})
	return out
}

// Output is the terminal operator: it delivers every Batch to sink and
// returns an unsubscribe function, per spec.md §4.2.
func Output(in *Stream, sink Sink) (unsubscribe func()) {
	return in.Subscribe(sink)
}

// valueKeyFunc renders a Value to a string suitable for use as a
// distinctness key within Consolidate/Reduce/Join. Callers needing
// value-level identity (rather than reference identity) must supply a
// stable encoding; json.Marshal is used elsewhere in this module for
// NamespacedRow values.
type valueKeyFunc func(any) string

// groupEntry tracks an accumulated distinct value's net multiplicity
// within one key-group, used by Consolidate, Reduce, and Join.
type groupEntry struct {
	value any
	delta int
}

// Consolidate merges multiplicities per spec.md §4.2: for every
// (Key, Value) pair seen since the Stream began, the net Delta is
// tracked, and only the *change* in net Delta since the last
// consolidated batch is re-emitted. This mirrors the
// last-write-survives bookkeeping in the teacher's
// internal/util/msort.UniqueByKey, generalized from "latest write per
// key wins" to "net multiplicity per (key,value) is tracked", since
// the dataflow layer must support multiple logical values alive under
// one Key during a transient batch.
func Consolidate(in *Stream, valueKey valueKeyFunc) *Stream {
	out := New()
	state := map[key.Key]map[string]*groupEntry{}

	in.Subscribe(func(b Batch) {
		touched := map[key.Key]map[string]int{} // key -> valueKey -> deltaInThisBatch

		for _, r := range b {
			bucket, ok := state[r.Key]
			if !ok {
				bucket = map[string]*groupEntry{}
				state[r.Key] = bucket
			}
			vk := valueKey(r.Value)
			entry, ok := bucket[vk]
			if !ok {
				entry = &groupEntry{value: r.Value}
				bucket[vk] = entry
			}
			before := entry.delta
			entry.delta += r.Delta
			entry.value = r.Value

			if touched[r.Key] == nil {
				touched[r.Key] = map[string]int{}
			}
			touched[r.Key][vk] += entry.delta - before
		}

		var outBatch Batch
		for k, vks := range touched {
			for vk, netChange := range vks {
				if netChange == 0 {
					continue
				}
				entry := state[k][vk]
				outBatch = append(outBatch, Record{Key: k, Value: entry.value, Delta: netChange})
				if entry.delta == 0 {
					delete(state[k], vk)
					if len(state[k]) == 0 {
						delete(state, k)
					}
				}
			}
		}
		out.Push(outBatch)
	})

	return out
}
