package printer

import (
	"sync"

	"filament-monitor-backend/internal/sdcp"
)

// Observer is notified after every applied status document.
type Observer func(prev, next State)

// Store holds the current State. Only the session loop writes to it; any
// goroutine may take a snapshot.
type Store struct {
	mu        sync.RWMutex
	state     State
	observers []Observer
}

func NewStore() *Store {
	return &Store{state: NewState()}
}

// Observe registers fn. Call it before the session starts.
func (s *Store) Observe(fn Observer) {
	s.observers = append(s.observers, fn)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ApplyStatus decodes doc into the state and notifies observers.
func (s *Store) ApplyStatus(doc sdcp.Document) bool {
	s.mu.Lock()
	prev := s.state
	next := prev
	if !Apply(doc, &next) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.mu.Unlock()

	for _, fn := range s.observers {
		fn(prev, next)
	}
	return true
}
