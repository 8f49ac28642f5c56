package dataflow

import (
	"github.com/google/go-cmp/cmp"

	"github.com/samwillis/reactive-db/key"
)

// DefaultValueKey renders a Value to a string suitable for grouping
// distinct values within Consolidate/Reduce/Join's per-key buckets.
func DefaultValueKey(v any) string {
	return key.ValueIdentity(v)
}

// equalAny reports whether two aggregate results are deep-equal, used
// by Reduce to suppress a retract+insert pair when an aggregate's
// recomputed value is unchanged.
func equalAny(a, b any) bool {
	return cmp.Equal(a, b)
}
