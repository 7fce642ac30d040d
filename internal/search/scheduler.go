// Package search implements search-as-you-type: a debounced, last-write-wins
// remote lookup and the keyboard cursor of the result list.
package search

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc starts a timer calling f after d. Implementations must call f on
// another goroutine, never synchronously from AfterFunc itself.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc schedules on the runtime timer.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scheduler runs at most one pending task. Scheduling a new task cancels the
// previous one if it has not started yet.
type Scheduler struct {
	mu      sync.Mutex
	after   AfterFunc
	current *Handle
}

// Handle identifies a scheduled task.
type Handle struct {
	s     *Scheduler
	timer Timer
}

// NewScheduler constructs a Scheduler. A nil after uses RealAfterFunc.
func NewScheduler(after AfterFunc) *Scheduler {
	if after == nil {
		after = RealAfterFunc
	}
	return &Scheduler{after: after}
}

// Schedule runs fn after delay, cancelling any task still pending.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.timer.Stop()
		s.current = nil
	}
	h := &Handle{s: s}
	h.timer = s.after(delay, func() {
		s.mu.Lock()
		if s.current != h {
			s.mu.Unlock()
			return
		}
		s.current = nil
		s.mu.Unlock()
		fn()
	})
	s.current = h
	return h
}

// Cancel stops the pending task, if any. It reports whether one was stopped.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	s.current.timer.Stop()
	s.current = nil
	return true
}

// Pending reports whether a task is waiting to run.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Cancel stops this task if it is still the pending one.
func (h *Handle) Cancel() bool {
	if h == nil || h.s == nil {
		return false
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.s.current != h {
		return false
	}
	h.timer.Stop()
	h.s.current = nil
	return true
}
