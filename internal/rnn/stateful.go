package rnn

import (
	"sync"

	"github.com/born-ml/seqnet/internal/tensor"
)

// StateStore holds the states a stateful layer carries from one call to
// the next. Every read-modify-write goes through Update under one lock, so
// concurrent calls on the same layer run one after another.
type StateStore[B tensor.Backend] struct {
	mu     sync.Mutex
	states State[B]
}

// NewStateStore returns an empty store.
func NewStateStore[B tensor.Backend]() *StateStore[B] {
	return &StateStore[B]{}
}

// Update runs fn with the held states and stores what it returns. The store
// takes ownership of the returned states and releases the previous ones
// that were not carried over. If fn fails the held states are unchanged.
func (s *StateStore[B]) Update(fn func(prev State[B]) (State[B], error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.states)
	if err != nil {
		return err
	}
	s.replace(next, true)
	return nil
}

// Reset replaces the held states with states, taking ownership of them.
// With release the previous states are released; otherwise they are left
// to whoever still references them.
func (s *StateStore[B]) Reset(states State[B], release bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(states, release)
}

func (s *StateStore[B]) replace(next State[B], release bool) {
	if release {
		carried := make(map[*tensor.RawTensor]bool, len(next))
		for _, t := range next {
			carried[t.Raw()] = true
		}
		for _, t := range s.states {
			if !carried[t.Raw()] {
				t.Release()
			}
		}
	}
	s.states = next
}

// Snapshot returns copies of the held states, or nil if the store is empty.
func (s *StateStore[B]) Snapshot() State[B] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states.Clone()
}

// BatchSize returns the batch dimension of the held states, or 0 if empty.
func (s *StateStore[B]) BatchSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return 0
	}
	return s.states[0].Shape()[0]
}

// Clear releases and drops the held states.
func (s *StateStore[B]) Clear() {
	s.Reset(nil, true)
}
