package event

import "sync"

// Listener receives events from a Source.
type Listener[T any] func(T)

// Source is a mutation-safe listener registry. The zero value is ready to use.
type Source[T any] struct {
	mu        sync.Mutex
	listeners []*subscription[T]
	added     []*subscription[T] // subscribed while notifying
	notifying int
}

type subscription[T any] struct {
	fn       Listener[T]
	active   bool
	buffered bool
}

// Add subscribes fn and returns its unsubscribe function. The returned
// function is idempotent.
func (s *Source[T]) Add(fn Listener[T]) func() {
	sub := &subscription[T]{fn: fn, active: true}

	s.mu.Lock()
	if s.notifying > 0 {
		sub.buffered = true
		s.added = append(s.added, sub)
	} else {
		s.listeners = append(s.listeners, sub)
	}
	s.mu.Unlock()

	return func() { s.remove(sub) }
}

func (s *Source[T]) remove(sub *subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sub.active {
		return
	}
	sub.active = false
	sub.fn = nil

	switch {
	case sub.buffered:
		s.added = without(s.added, sub)
	case s.notifying > 0:
		// Spliced out when the outermost Notify finishes.
	default:
		s.listeners = without(s.listeners, sub)
	}
}

// Notify delivers ev to every listener subscribed before the call began.
func (s *Source[T]) Notify(ev T) {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	s.notifying++
	snapshot := s.listeners
	s.mu.Unlock()

	defer s.settle()

	for _, sub := range snapshot {
		s.mu.Lock()
		fn := sub.fn
		active := sub.active
		s.mu.Unlock()

		if active {
			fn(ev)
		}
	}
}

// settle merges buffered additions and drops removed listeners once no
// notification is running.
func (s *Source[T]) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifying--
	if s.notifying > 0 {
		return
	}

	kept := make([]*subscription[T], 0, len(s.listeners)+len(s.added))
	for _, sub := range s.listeners {
		if sub.active {
			kept = append(kept, sub)
		}
	}
	for _, sub := range s.added {
		sub.buffered = false
		kept = append(kept, sub)
	}
	s.listeners = kept
	s.added = nil
}

// Len returns the number of listeners eligible for the next Notify.
func (s *Source[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.added)
	for _, sub := range s.listeners {
		if sub.active {
			n++
		}
	}
	return n
}

// Clear removes every listener.
func (s *Source[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.listeners {
		sub.active = false
		sub.fn = nil
	}
	for _, sub := range s.added {
		sub.active = false
		sub.fn = nil
	}
	if s.notifying > 0 {
		s.added = nil
		return
	}
	s.listeners = nil
	s.added = nil
}

func without[T any](subs []*subscription[T], target *subscription[T]) []*subscription[T] {
	for i, sub := range subs {
		if sub == target {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
