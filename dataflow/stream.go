package dataflow

import "sync"

// Sink receives a Batch pushed by a Stream.
type Sink func(Batch)

// Stream is a push-based, single-threaded sequence of Batches. It has
// no buffering: Push delivers synchronously to every current
// subscriber before returning, which is what lets the compiler treat a
// chain of operators as one synchronous pipeline (spec.md §5: none of
// the synchronous paths may suspend).
type Stream struct {
	mu   sync.Mutex
	subs []Sink
}

// New constructs an empty, unconnected Stream. Most callers obtain a
// Stream from an operator constructor (Map, Filter, ...) rather than
// calling New directly; New is exported for collection stores and
// sync drivers that originate a Stream from scratch.
func New() *Stream {
	return &Stream{}
}

// Subscribe registers sink to receive every future Push. It returns an
// unsubscribe function.
func (s *Stream) Subscribe(sink Sink) (unsubscribe func()) {
	s.mu.Lock()
	idx := len(s.subs)
	s.subs = append(s.subs, sink)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.subs) {
			s.subs[idx] = nil
		}
	}
}

// Push delivers batch to every current subscriber, in subscription
// order.
func (s *Stream) Push(batch Batch) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	subs := make([]Sink, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		if sub != nil {
			sub(batch)
		}
	}
}
