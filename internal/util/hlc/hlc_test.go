package hlc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareOrdersByNanosThenLogical(t *testing.T) {
	require.Equal(t, 0, Compare(New(10, 0), New(10, 0)))
	require.Equal(t, -1, Compare(New(10, 0), New(11, 0)))
	require.Equal(t, 1, Compare(New(11, 0), New(10, 0)))
	require.Equal(t, -1, Compare(New(10, 0), New(10, 1)))
	require.Equal(t, 1, Compare(New(10, 1), New(10, 0)))
}

func TestZeroIsSmallestAndIsZero(t *testing.T) {
	require.True(t, Zero().IsZero())
	require.False(t, New(1, 0).IsZero())
	require.Equal(t, -1, Compare(Zero(), New(1, 0)))
}

func TestClockNextAdvancesOnSameNanosecond(t *testing.T) {
	var c Clock
	a := c.Next(100)
	b := c.Next(100)
	d := c.Next(100)
	require.Equal(t, 1, Compare(b, a))
	require.Equal(t, 1, Compare(d, b))
	require.Equal(t, int64(100), a.Nanos())
	require.Equal(t, int64(100), b.Nanos())
	require.Equal(t, 0, a.Logical())
	require.Equal(t, 1, b.Logical())
	require.Equal(t, 2, d.Logical())
}

func TestClockNextResetsLogicalOnAdvancingWallClock(t *testing.T) {
	var c Clock
	c.Next(100)
	c.Next(100)
	next := c.Next(200)
	require.Equal(t, int64(200), next.Nanos())
	require.Equal(t, 0, next.Logical())
}

func TestClockNextIgnoresNonMonotonicWallClock(t *testing.T) {
	var c Clock
	first := c.Next(500)
	second := c.Next(400)
	require.Equal(t, 1, Compare(second, first), "Next must never go backwards even if nowNanos does")
}
