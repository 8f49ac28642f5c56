package key

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// CompareValues implements the "universal comparator" from spec.md's
// glossary over arbitrary record field values: nil/undefined sorts
// first; same-type pairs compare by natural order (numbers
// numerically, strings lexically, []any element-wise with a length
// tiebreak, time.Time by instant); otherwise values fall back to a
// string-form comparison.
//
// This is distinct from Compare above, which only orders Key values;
// CompareValues orders the arbitrary values that flow through indexes,
// ORDER BY, and aggregates.
func CompareValues(a, b any) int {
	aNil, bNil := a == nil, b == nil
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return -1
	case bNil:
		return 1
	}

	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
	}

	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}

	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0
			case !ab && bb:
				return -1
			default:
				return 1
			}
		}
	}

	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Kind() == reflect.Slice && bv.Kind() == reflect.Slice {
		return compareSlices(av, bv)
	}

	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func compareSlices(av, bv reflect.Value) int {
	n := av.Len()
	if bv.Len() < n {
		n = bv.Len()
	}
	for i := 0; i < n; i++ {
		if c := CompareValues(av.Index(i).Interface(), bv.Index(i).Interface()); c != 0 {
			return c
		}
	}
	switch {
	case av.Len() < bv.Len():
		return -1
	case av.Len() > bv.Len():
		return 1
	default:
		return 0
	}
}

// ValueIdentity renders an arbitrary field value to a string that can
// be used as a map key to bucket "the same value" together (index
// buckets, GROUP BY keys, DISTINCT-like dedup). It prefers a JSON
// encoding and falls back to fmt.Sprintf for values JSON cannot
// encode (e.g. NaN, channels).
func ValueIdentity(v any) string {
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%#v", v)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
