package orderedmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samwillis/reactive-db/orderedmap"
)

func intLess(a, b int) bool { return a < b }

func TestSetGetDelete(t *testing.T) {
	m := orderedmap.New[int, string](intLess)
	_, had := m.Set(3, "c")
	require.False(t, had)
	m.Set(1, "a")
	m.Set(2, "b")
	require.Equal(t, 3, m.Len())

	v, ok := m.Get(2)
	require.True(t, ok)
	require.Equal(t, "b", v)

	require.Equal(t, []int{1, 2, 3}, m.Keys())

	old, had := m.Delete(2)
	require.True(t, had)
	require.Equal(t, "b", old)
	require.Equal(t, 2, m.Len())
	require.Equal(t, []int{1, 3}, m.Keys())
}

func TestOrderedIteration(t *testing.T) {
	m := orderedmap.New[int, int](intLess)
	for _, n := range []int{5, 1, 4, 2, 3} {
		m.Set(n, n*10)
	}
	var seen []int
	m.Range(func(k, v int) bool {
		seen = append(seen, k)
		return true
	})
	require.Equal(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestRangeFrom(t *testing.T) {
	m := orderedmap.New[int, int](intLess)
	for _, n := range []int{1, 2, 3, 4, 5} {
		m.Set(n, n)
	}
	var seen []int
	m.RangeFrom(3, func(k, v int) bool {
		seen = append(seen, k)
		return true
	})
	require.Equal(t, []int{3, 4, 5}, seen)
}

func TestCloneIsIndependent(t *testing.T) {
	m := orderedmap.New[int, int](intLess)
	m.Set(1, 1)
	clone := m.Clone()
	clone.Set(2, 2)
	require.Equal(t, 1, m.Len())
	require.Equal(t, 2, clone.Len())
}
