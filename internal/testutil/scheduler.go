// Package testutil provides deterministic doubles for the sync engine: a
// scheduler whose time only moves when a test says so, and a committer that
// records batches and can be told to fail or block.
package testutil

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler runs timer callbacks only when Advance moves its clock
// past their deadline.
//
// Thread-safety: All methods are safe for concurrent use. Callbacks run on
// the goroutine that calls Advance, outside the scheduler's lock.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int64
	timers map[int64]*manualTimer
}

type manualTimer struct {
	id       int64
	deadline time.Duration
	fn       func()
}

// NewManualScheduler creates a scheduler at time zero with no timers.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{timers: make(map[int64]*manualTimer)}
}

// AfterFunc registers fn to run once d has elapsed. The returned function
// cancels the timer and reports whether it was still pending.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.timers[id] = &manualTimer{id: id, deadline: s.now + d, fn: fn}

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.timers[id]; !ok {
			return false
		}
		delete(s.timers, id)
		return true
	}
}

// Advance moves the clock forward by d and runs every timer that falls due,
// in deadline order.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTimer
	for id, t := range s.timers {
		if t.deadline <= s.now {
			due = append(due, t)
			delete(s.timers, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Now returns the elapsed logical time.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
