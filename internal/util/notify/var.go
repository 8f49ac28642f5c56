// Package notify provides a minimal reactive variable: a value plus a
// channel that closes whenever the value changes. It carries a
// collection's status and a transaction's status.
package notify

import "sync"

// Var holds a value of type T and lets callers wait for the next
// change. The zero Var holds the zero value of T.
//
// Get returns the current value and a channel that will be closed the
// next time Set is called. Callers should re-Get after the channel
// closes to observe the new value and obtain a fresh wakeup channel;
// this mirrors the pattern cdc-sink's resolver loop uses around
// r.marked.Get()/r.marked.Set(ts).
type Var[T any] struct {
	mu      sync.Mutex
	value   T
	changed chan struct{}
}

// Get returns the current value and a channel that closes on the next
// Set call.
func (v *Var[T]) Get() (T, <-chan struct{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.changed == nil {
		v.changed = make(chan struct{})
	}
	return v.value, v.changed
}

// Set updates the value and wakes up every goroutine waiting on a
// channel returned by a previous Get.
func (v *Var[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	if v.changed != nil {
		close(v.changed)
	}
	v.changed = make(chan struct{})
}

// Update atomically reads the current value, applies fn, and stores
// the result, waking waiters exactly once.
func (v *Var[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = fn(v.value)
	if v.changed != nil {
		close(v.changed)
	}
	v.changed = make(chan struct{})
	return v.value
}

// Peek returns the current value without creating a wakeup channel.
func (v *Var[T]) Peek() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}
