// Package retry schedules bounded, delayed re-invocations of a fetch using a
// fixed backoff schedule. A Scheduler owns at most one armed timer.
package retry

import (
	"errors"
	"sync"
	"time"
)

// ErrExhausted is returned by Schedule once every delay in the schedule has
// been used. No further automatic attempts are made.
var ErrExhausted = errors.New("retry schedule exhausted")

// DefaultSchedule is used when none is configured.
var DefaultSchedule = []time.Duration{
	1500 * time.Millisecond,
	3000 * time.Millisecond,
	6000 * time.Millisecond,
}

type Timer interface {
	Stop() bool
}

// Clock abstracts time.AfterFunc so tests can fire timers by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is backed by the runtime timer.
var RealClock Clock = realClock{}

type State int

const (
	StateIdle State = iota
	StateScheduled
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

type Scheduler struct {
	schedule []time.Duration
	clock    Clock

	mu    sync.Mutex
	timer Timer
	gen   uint64
	state State
}

func New(schedule []time.Duration, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock
	}
	return &Scheduler{
		schedule: append([]time.Duration(nil), schedule...),
		clock:    clock,
	}
}

// Schedule arms a timer that calls fn(attempt+1) after schedule[attempt],
// replacing any timer already armed. When attempt is past the end of the
// schedule the scheduler moves to StateExhausted and returns ErrExhausted.
func (s *Scheduler) Schedule(attempt int, fn func(next int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(s.schedule) {
		s.state = StateExhausted
		return ErrExhausted
	}

	s.gen++
	gen := s.gen
	next := attempt + 1
	s.state = StateScheduled
	s.timer = s.clock.AfterFunc(s.schedule[attempt], func() {
		s.mu.Lock()
		if s.gen != gen {
			// Cancelled or superseded after the runtime already fired.
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.state = StateIdle
		s.mu.Unlock()
		fn(next)
	})
	return nil
}

// Cancel stops any armed timer. An exhausted scheduler stays exhausted.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if s.state == StateScheduled {
		s.state = StateIdle
	}
}

// Reset cancels and clears exhaustion for the next independent cycle.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.state = StateIdle
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Len is the number of automatic retries the schedule allows.
func (s *Scheduler) Len() int { return len(s.schedule) }

// Delay returns the delay used for attempt.
func (s *Scheduler) Delay(attempt int) (time.Duration, bool) {
	if attempt < 0 || attempt >= len(s.schedule) {
		return 0, false
	}
	return s.schedule[attempt], true
}

func (s *Scheduler) stopLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
