package mrisync

import "time"

// Clock is the time source boundary of the sync sessions. Sessions never call
// time.Now or time.Sleep directly, so tests can run a whole session against a
// scripted clock.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// SystemClock is the wall clock every session uses unless its config injects
// another one.
var SystemClock Clock = systemClock{}
