// Package compiler translates a query.Query (after optimizer.Optimize)
// into a dataflow pipeline per spec.md §4.7, terminating in a stream
// of compiler.Row values a live-query collection (../livequery) drains
// through the begin/write/commit sync contract.
package compiler

import "github.com/samwillis/reactive-db/key"

// Row is one materialized output record of a compiled query: its
// stable key (the original record's key when there is no join, a
// synthesized `[leftKey, rightKey]` composite once joins are
// involved, per spec.md §4.7.1 step 4) and its projected value, plus
// the synthetic ordering index spec.md §4.7.1 step 9 assigns when
// ORDER BY is present.
type Row struct {
	Key           key.Key
	Value         any
	OrderIndex    float64
	HasOrderIndex bool
}

// GetKey is the collection.Config.GetKey function every live-query
// collection uses: a Row carries its own key rather than requiring
// the projected Value to be able to derive one.
func GetKey(r Row) key.Key { return r.Key }
