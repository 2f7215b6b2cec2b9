package clock

import (
	"testing"
	"time"
)

func TestFakeSleepAdvances(t *testing.T) {
	f := NewFake()
	start := f.Now()

	f.Sleep(10 * time.Second)
	if got := f.Now().Sub(start); got != 10*time.Second {
		t.Fatalf("expected 10s advance, got %s", got)
	}
}

func TestFakeOnSleepHook(t *testing.T) {
	f := NewFake()
	var calls int
	f.OnSleep(func(time.Time) { calls++ })

	f.Sleep(time.Second)
	f.Sleep(time.Second)
	if calls != 2 {
		t.Fatalf("expected 2 hook calls, got %d", calls)
	}
}

func TestFakeAdvanceNoHook(t *testing.T) {
	f := NewFake()
	var calls int
	f.OnSleep(func(time.Time) { calls++ })

	f.Advance(time.Minute)
	if calls != 0 {
		t.Fatalf("Advance must not trigger the sleep hook")
	}
}
