package lock

import (
	"context"
	"sync"
)

// Sessions hands out one exclusive slot per session id. Holders of different
// ids never block each other; entries are dropped once nobody holds or waits.
type Sessions struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewSessions creates an empty lock table.
func NewSessions() *Sessions {
	return &Sessions{slots: make(map[string]*slot)}
}

// Lock blocks until the slot for id is free or ctx is done. The returned
// unlock func is safe to call more than once.
func (s *Sessions) Lock(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	sl, ok := s.slots[id]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		s.slots[id] = sl
	}
	sl.refs++
	s.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-sl.ch
				s.release(id, sl)
			})
		}, nil
	case <-ctx.Done():
		s.release(id, sl)
		return nil, ctx.Err()
	}
}

func (s *Sessions) release(id string, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, id)
	}
}

// Len reports how many session ids currently have holders or waiters.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
