// Package clock abstracts wall-clock time and deferred callbacks so that
// TTL-based eviction can be driven deterministically in tests.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled before it fires.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback has already fired or been stopped.
	Stop() bool
}

// Clock provides the current time and delayed execution.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
