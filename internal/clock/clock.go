// Package clock abstracts the time operations the helpdesk core depends
// on so tests can drive the simulated load delay deterministically.
package clock

import "time"

// Clock provides the current time and single-shot timers
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d, then calls f. The returned Timer can
	// cancel the call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer represents a pending AfterFunc call
type Timer struct {
	stop func() bool
}

// Stop prevents the call from happening. Returns false if it already
// ran or was stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Real returns a Clock backed by the time package
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stop: timer.Stop}
}
