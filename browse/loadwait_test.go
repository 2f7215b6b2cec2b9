package browse

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hazyhaar/geodrive/clock"
)

func testWaiter(accept func() bool, ready func() (bool, error)) (*loadWaiter, *clock.Fake) {
	clk := clock.NewFake()
	w := &loadWaiter{
		acceptDialog:   accept,
		ready:          ready,
		clk:            clk,
		dialogInterval: 3 * time.Second,
		readyInterval:  500 * time.Millisecond,
		log:            slog.Default(),
	}
	return w, clk
}

func TestLoadWaitDismissesEveryDialogBeforeReadiness(t *testing.T) {
	const dialogs = 4
	dismissed := 0
	readyProbes := 0

	w, _ := testWaiter(
		func() bool {
			if dismissed < dialogs {
				if readyProbes > 0 {
					t.Fatal("readiness polled before all dialogs were dismissed")
				}
				dismissed++
				return true
			}
			return false
		},
		func() (bool, error) {
			readyProbes++
			return true, nil
		},
	)

	if !w.run(30 * time.Second) {
		t.Fatal("expected success")
	}
	if dismissed != dialogs {
		t.Fatalf("expected %d dismissals, got %d", dialogs, dismissed)
	}
	if readyProbes == 0 {
		t.Fatal("readiness was never polled")
	}
}

func TestLoadWaitReadyImmediately(t *testing.T) {
	w, _ := testWaiter(
		func() bool { return false },
		func() (bool, error) { return true, nil },
	)
	if !w.run(time.Second) {
		t.Fatal("expected success")
	}
}

func TestLoadWaitTimesOutWhenNeverReady(t *testing.T) {
	w, clk := testWaiter(
		func() bool { return false },
		func() (bool, error) { return false, nil },
	)
	start := clk.Now()
	if w.run(5 * time.Second) {
		t.Fatal("expected timeout")
	}
	if elapsed := clk.Now().Sub(start); elapsed < 5*time.Second {
		t.Fatalf("gave up after %s, before the deadline", elapsed)
	}
}

func TestLoadWaitRestartsOnDialogDuringReadiness(t *testing.T) {
	// First readiness probe is interrupted by a dialog; the protocol
	// must dismiss it and restart from the dialog-check phase.
	probes := 0
	dialogPending := false
	dismissals := 0

	w, _ := testWaiter(
		func() bool {
			if dialogPending {
				dialogPending = false
				dismissals++
				return true
			}
			return false
		},
		func() (bool, error) {
			probes++
			if probes == 1 {
				dialogPending = true
				return false, errors.New("dialog is open")
			}
			return true, nil
		},
	)

	if !w.run(30 * time.Second) {
		t.Fatal("expected success after restart")
	}
	if dismissals != 1 {
		t.Fatalf("expected exactly 1 dismissal, got %d", dismissals)
	}
	if probes < 2 {
		t.Fatalf("expected readiness re-probe after restart, got %d probes", probes)
	}
}

func TestLoadWaitSwallowsProbeFaults(t *testing.T) {
	// A readiness fault with no dialog behind it is transient: keep
	// polling until the deadline, then report false. Never panic.
	w, _ := testWaiter(
		func() bool { return false },
		func() (bool, error) { return false, errors.New("target crashed") },
	)
	if w.run(2 * time.Second) {
		t.Fatal("expected failure")
	}
}

func TestLoadWaitDeadlineResetsAfterRestart(t *testing.T) {
	// The dialog appears late in the ready phase; after the restart the
	// protocol gets a fresh deadline, so a slow-but-finite readiness
	// still succeeds.
	probes := 0
	dialogPending := false

	w, _ := testWaiter(
		func() bool {
			if dialogPending {
				dialogPending = false
				return true
			}
			return false
		},
		func() (bool, error) {
			probes++
			if probes == 8 {
				dialogPending = true
				return false, errors.New("dialog is open")
			}
			return probes >= 12, nil
		},
	)

	if !w.run(5 * time.Second) {
		t.Fatal("expected success with the reset deadline")
	}
}
