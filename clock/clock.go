// Package clock abstracts the time source used by geodrive's wait and
// poll loops. Production code uses System; tests use a Fake that
// advances instantly and can run hooks at each sleep, so an "hour" of
// polling takes no wall time.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source injected into every bounded wait.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time        { return time.Now() }
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a manually advanced clock. Sleep advances Now by the full
// duration immediately and then invokes the step hook, letting a test
// mutate the world "while" the code under test was sleeping.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	step func(now time.Time)
}

// NewFake returns a Fake starting at an arbitrary fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// OnSleep registers a hook invoked after every Sleep advance.
func (f *Fake) OnSleep(fn func(now time.Time)) {
	f.mu.Lock()
	f.step = fn
	f.mu.Unlock()
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	step := f.step
	f.mu.Unlock()
	if step != nil {
		step(now)
	}
}

// Advance moves the clock forward without a sleep, for tests that
// drive time directly.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
