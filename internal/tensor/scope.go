package tensor

import "sync"

// Scope collects intermediate tensors of one computation and releases them
// together when the computation ends, whether it returned normally or with
// an error.
//
// Only tensors explicitly passed to Track are considered. Tensors marked
// with Protect (caller-owned inputs) or Keep (results handed back to the
// caller) are never released. Because views hold their own buffer
// reference, releasing a tracked view never invalidates the tensor it
// was taken from.
//
// Example:
//
//	scope := tensor.NewScope()
//	defer scope.Close()
//	scope.Protect(input.Raw())
//	h := step(input)
//	scope.Track(h.Raw())
//	...
//	scope.Keep(result.Raw())
type Scope struct {
	mu        sync.Mutex
	tracked   []*RawTensor
	seen      map[*RawTensor]struct{}
	protected map[*RawTensor]struct{}
	kept      map[*RawTensor]struct{}
	closed    bool
	released  int
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{
		seen:      make(map[*RawTensor]struct{}),
		protected: make(map[*RawTensor]struct{}),
		kept:      make(map[*RawTensor]struct{}),
	}
}

// Protect marks caller-owned tensors that must survive Close.
func (s *Scope) Protect(tensors ...*RawTensor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tensors {
		if t != nil {
			s.protected[t] = struct{}{}
		}
	}
}

// Track registers tensors for release on Close. Tracking the same tensor
// twice is harmless.
func (s *Scope) Track(tensors ...*RawTensor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		panic("tensor: Track on closed scope")
	}
	for _, t := range tensors {
		if t == nil {
			continue
		}
		if _, ok := s.seen[t]; ok {
			continue
		}
		s.seen[t] = struct{}{}
		s.tracked = append(s.tracked, t)
	}
}

// Keep marks tensors that escape the scope.
func (s *Scope) Keep(tensors ...*RawTensor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tensors {
		if t != nil {
			s.kept[t] = struct{}{}
		}
	}
}

// Close releases every tracked tensor that is neither protected nor kept.
// It is safe to call Close more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, t := range s.tracked {
		if _, ok := s.protected[t]; ok {
			continue
		}
		if _, ok := s.kept[t]; ok {
			continue
		}
		if !t.Released() {
			t.Release()
			s.released++
		}
	}
	s.tracked = nil
}

// Released returns how many tensors Close released.
func (s *Scope) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
