package interact

import "time"

// Timer is a pending deferred callback.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already
	// ran or was already stopped.
	Stop() bool
}

// Clock schedules deferred callbacks. Implementations decide which goroutine
// runs them: SystemClock uses the runtime timer goroutine, the TUI routes
// them through its event loop, and tests advance a fake clock by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock schedules callbacks with time.AfterFunc.
type SystemClock struct{}

// AfterFunc implements Clock.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func(d time.Duration, f func()) Timer

// AfterFunc implements Clock.
func (fn ClockFunc) AfterFunc(d time.Duration, f func()) Timer {
	return fn(d, f)
}
