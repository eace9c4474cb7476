package combat

import "time"

// Scheduler defers work without blocking. The engine hands every timed
// continuation (animation resets, resolution dwell) through here so tests can
// drive time by hand.
type Scheduler interface {
	After(d time.Duration, fn func())
}

type realScheduler struct{}

func (realScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// NewScheduler returns the wall-clock scheduler used outside of tests.
func NewScheduler() Scheduler { return realScheduler{} }
