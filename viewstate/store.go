package viewstate

import (
	"maps"
	"slices"
	"sync"
)

// Store is the single writer for a State. Subscribers are called after each
// change, in registration order, with the new snapshot.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

func NewStore() *Store {
	return &Store{subs: map[int]func(State){}}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.state)
}

// Apply replaces the state with fn(current) and notifies subscribers.
// Subscribers run while the store is held and must not call Apply.
func (s *Store) Apply(fn func(State) State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		s.subs[id](clone(s.state))
	}
	return clone(s.state)
}

// Subscribe registers fn and returns a func that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func clone(st State) State {
	st.Notes = slices.Clone(st.Notes)
	st.Tasks = slices.Clone(st.Tasks)
	st.Summaries = maps.Clone(st.Summaries)
	return st
}
