package debounce

import (
	"sync"
	"time"
)

// Scheduler defers one pending function per key. Scheduling a new function for
// a key supersedes any pending one: the superseded function will never run.
type Scheduler struct {
	mu     sync.Mutex
	gens   map[string]uint64
	timers map[string]*time.Timer
	closed bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		gens:   make(map[string]uint64),
		timers: make(map[string]*time.Timer),
	}
}

// Schedule runs fn after d unless a newer Schedule or Cancel for the same key
// arrives first. fn runs on the timer goroutine. The return value reports
// whether a pending task for the same key was superseded.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	superseded := false
	if t, ok := s.timers[key]; ok {
		t.Stop()
		superseded = true
	}
	s.gens[key]++
	gen := s.gens[key]

	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		current := s.gens[key]
		closed := s.closed
		if current == gen {
			delete(s.timers, key)
		}
		s.mu.Unlock()

		if closed || current != gen {
			return
		}
		fn()
	})

	return superseded
}

// Cancel discards any pending function for key.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gens[key]++
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending reports whether a function is scheduled for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Close cancels everything and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
