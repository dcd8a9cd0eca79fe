package scheduler

import (
	"sync"
	"time"
)

// Scheduler runs one delayed task per key.
type Scheduler interface {
	Schedule(id uint64, delay time.Duration, fn func())
	Cancel(id uint64) bool
	Stop()
}

type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	stopped bool
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: map[uint64]*time.Timer{}}
}

// Schedule arms fn to run after delay. An existing timer for id is replaced.
func (s *TimerScheduler) Schedule(id uint64, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if existing, ok := s.timers[id]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if current, ok := s.timers[id]; ok && current == timer {
			delete(s.timers, id)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[id] = timer
}

// Cancel stops the pending timer for id. It reports false when nothing was armed
// or the task already started.
func (s *TimerScheduler) Cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	return timer.Stop()
}

func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
