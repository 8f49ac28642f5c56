package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsCurrentValueAndWakesOnSet(t *testing.T) {
	var v Var[int]
	val, changed := v.Get()
	require.Equal(t, 0, val)

	select {
	case <-changed:
		t.Fatal("changed should not be closed before Set")
	default:
	}

	v.Set(7)

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("changed was not closed by Set")
	}

	val, _ = v.Get()
	require.Equal(t, 7, val)
}

func TestUpdateAppliesFnAndWakesWaiters(t *testing.T) {
	var v Var[int]
	v.Set(1)
	_, changed := v.Get()

	got := v.Update(func(cur int) int { return cur + 41 })
	require.Equal(t, 42, got)

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("changed was not closed by Update")
	}
	require.Equal(t, 42, v.Peek())
}

func TestPeekDoesNotAllocateAWakeupChannel(t *testing.T) {
	var v Var[string]
	require.Equal(t, "", v.Peek())
	v.Set("ready")
	require.Equal(t, "ready", v.Peek())
}
