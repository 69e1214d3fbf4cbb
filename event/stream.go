// Package event provides typed event streams with revocable subscriptions.
//
// Each event kind of a socket or server is one Stream. Handlers run on the
// goroutine that calls Emit, in registration order.
package event

import "sync"

// Subscription is returned by On and Once. Cancel is idempotent.
type Subscription struct {
	cancel func()
}

// Cancel removes the handler. Cancelling inside the handler's own
// invocation is allowed.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

type handler[T any] struct {
	fn   func(T)
	id   uint64
	once bool
}

// Stream delivers values of type T to registered handlers. The zero value
// is ready to use.
type Stream[T any] struct {
	mu       sync.Mutex
	handlers []handler[T]
	nextID   uint64
}

// On registers fn for every emitted value.
func (s *Stream[T]) On(fn func(T)) Subscription {
	return s.add(fn, false)
}

// Once registers fn for the next emitted value only.
func (s *Stream[T]) Once(fn func(T)) Subscription {
	return s.add(fn, true)
}

func (s *Stream[T]) add(fn func(T), once bool) Subscription {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, handler[T]{fn: fn, id: id, once: once})
	s.mu.Unlock()
	return Subscription{cancel: func() { s.remove(id) }}
}

func (s *Stream[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}

// Emit calls every handler registered at the time of the call. Handlers
// added during Emit see the next value, not this one.
func (s *Stream[T]) Emit(v T) {
	s.mu.Lock()
	if len(s.handlers) == 0 {
		s.mu.Unlock()
		return
	}
	snap := make([]handler[T], len(s.handlers))
	copy(snap, s.handlers)
	kept := s.handlers[:0:0]
	for _, h := range s.handlers {
		if !h.once {
			kept = append(kept, h)
		}
	}
	s.handlers = kept
	s.mu.Unlock()

	for _, h := range snap {
		if !h.once && !s.has(h.id) {
			continue
		}
		h.fn(v)
	}
}

func (s *Stream[T]) has(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.handlers {
		if h.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of registered handlers.
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// Signal is a Stream without a payload.
type Signal = Stream[struct{}]

// Fire emits on a Signal.
func Fire(s *Signal) {
	s.Emit(struct{}{})
}
