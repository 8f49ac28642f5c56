package stopper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoppingClosesOnStop(t *testing.T) {
	c := WithContext(context.Background())
	select {
	case <-c.Stopping():
		t.Fatal("Stopping must not be closed before Stop")
	default:
	}

	require.NoError(t, c.Stop(time.Second))

	select {
	case <-c.Stopping():
	default:
		t.Fatal("Stopping should be closed after Stop")
	}
	require.Error(t, c.Err(), "the underlying context.Context should be canceled")
}

func TestGoWaitsForTrackedGoroutines(t *testing.T) {
	c := WithContext(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var finished bool

	c.Go(func() error {
		close(started)
		<-release
		finished = true
		return nil
	})

	<-started
	stopDone := make(chan struct{})
	go func() {
		_ = c.Stop(time.Second)
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned before its tracked goroutine finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-stopDone
	require.True(t, finished)
}

func TestGoFailureBeginsStoppingAndIsReturnedByStop(t *testing.T) {
	c := WithContext(context.Background())
	failure := errors.New("boom")
	c.Go(func() error { return failure })

	select {
	case <-c.Stopping():
	case <-time.After(time.Second):
		t.Fatal("a failing goroutine must begin stopping")
	}

	require.ErrorIs(t, c.Stop(time.Second), failure)
}

func TestStopTimesOutIfAGoroutineNeverExits(t *testing.T) {
	c := WithContext(context.Background())
	c.Go(func() error {
		<-context.Background().Done() // never returns
		return nil
	})

	start := time.Now()
	require.NoError(t, c.Stop(20*time.Millisecond))
	require.Less(t, time.Since(start), time.Second, "Stop must still return after its timeout elapses")
}
