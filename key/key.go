// Package key defines the Key type shared by every collection, index,
// and dataflow record in this module, along with the "universal
// comparator" total order described in spec.md's glossary.
package key

import "fmt"

// kind tags which branch of the Key union is populated.
type kind uint8

const (
	kindString kind = iota
	kindInt
)

// Key is a collection record's primary identifier: either a string or
// an integer, per spec.md §3 ("Key is string | integer").
type Key struct {
	kind kind
	str  string
	num  int64
}

// String constructs a string Key.
func String(s string) Key { return Key{kind: kindString, str: s} }

// Int constructs an integer Key.
func Int(n int64) Key { return Key{kind: kindInt, num: n} }

// IsString reports whether k was constructed with String.
func (k Key) IsString() bool { return k.kind == kindString }

// IsInt reports whether k was constructed with Int.
func (k Key) IsInt() bool { return k.kind == kindInt }

// StringValue returns the string payload; it is only meaningful when
// IsString is true.
func (k Key) StringValue() string { return k.str }

// IntValue returns the integer payload; it is only meaningful when
// IsInt is true.
func (k Key) IntValue() int64 { return k.num }

func (k Key) String() string {
	if k.kind == kindInt {
		return fmt.Sprintf("%d", k.num)
	}
	return k.str
}

// Compare implements a total order over Key: same-kind keys compare
// naturally, mixed-kind keys compare by kind rank (string < int) so
// that a single ordered index is always well-defined even if a caller
// mixes key kinds within one collection (not recommended, but never
// undefined).
func Compare(a, b Key) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case kindString:
		switch {
		case a.str < b.str:
			return -1
		case a.str > b.str:
			return 1
		default:
			return 0
		}
	default: // kindInt
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
}

// Less adapts Compare for use with github.com/google/btree's ordering
// contract.
func Less(a, b Key) bool { return Compare(a, b) < 0 }
