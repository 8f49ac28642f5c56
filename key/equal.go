package key

import "github.com/google/go-cmp/cmp"

// ValuesEqual reports whether two record values are deep-equal, used
// by the collection store to suppress no-op change events (spec.md
// §4.3.3 step 6).
func ValuesEqual[T any](a, b T) bool {
	return cmp.Equal(a, b)
}
