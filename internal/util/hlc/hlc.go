// Package hlc implements a small hybrid logical clock used to order
// transactions and optimistic-overlay recomputations deterministically
// even when several mutations are created within the same wall-clock
// nanosecond.
package hlc

import "fmt"

// Time is a (nanos, logical) pair: nanos is a wall-clock reading and
// logical disambiguates events that land on the same nanosecond.
type Time struct {
	nanos   int64
	logical int
}

// Zero is the smallest possible Time.
func Zero() Time { return Time{} }

// New constructs a Time from its components.
func New(nanos int64, logical int) Time {
	return Time{nanos: nanos, logical: logical}
}

// Nanos returns the wall-clock component.
func (t Time) Nanos() int64 { return t.nanos }

// Logical returns the tie-breaking component.
func (t Time) Logical() int { return t.logical }

// IsZero reports whether t is the Zero value.
func (t Time) IsZero() bool { return t.nanos == 0 && t.logical == 0 }

func (t Time) String() string {
	return fmt.Sprintf("%d.%d", t.nanos, t.logical)
}

// Compare implements the total order over Time: nanos first, then the
// logical counter.
func Compare(a, b Time) int {
	switch {
	case a.nanos < b.nanos:
		return -1
	case a.nanos > b.nanos:
		return 1
	case a.logical < b.logical:
		return -1
	case a.logical > b.logical:
		return 1
	default:
		return 0
	}
}

// Clock hands out strictly increasing Time values from a single
// goroutine's perspective; it is the source of createdAt ordering for
// transactions (spec §4.4, testable property 9).
type Clock struct {
	last Time
}

// Next returns a Time guaranteed to be greater than every Time
// previously returned by this Clock, advancing the logical counter
// when two calls land on the same nanosecond and the wall clock has
// not advanced.
func (c *Clock) Next(nowNanos int64) Time {
	if nowNanos <= c.last.nanos {
		c.last = Time{nanos: c.last.nanos, logical: c.last.logical + 1}
	} else {
		c.last = Time{nanos: nowNanos, logical: 0}
	}
	return c.last
}
