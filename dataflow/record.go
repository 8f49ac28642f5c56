// Package dataflow implements spec.md §4.2: the differential-dataflow
// change-stream primitives the compiler (§4.7) composes into pipelines.
// A Stream carries batches of Records, each an opaque (key, value, Δ)
// differential record; operators subscribe to an upstream Stream and
// push transformed batches to their own subscribers, cooperatively and
// synchronously — no operator may suspend on I/O (spec.md §5).
package dataflow

import "github.com/samwillis/reactive-db/key"

// Record is the dataflow layer's multiplicity record: a key, an opaque
// value, and a signed multiplicity. Positive Delta adds copies of
// (Key, Value); negative Delta retracts them. At steady state, the net
// Delta for any (Key, Value) pair is 0 or 1 (spec.md §3).
type Record struct {
	Key   key.Key
	Value any
	Delta int
}

// Batch is a slice of Records delivered to subscribers as one logical
// step; within a Stream, operators see batches in the source's push
// order (spec.md §4.2 "Ordering").
type Batch []Record
