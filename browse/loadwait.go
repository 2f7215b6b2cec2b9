package browse

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/geodrive/clock"
)

// The load-wait protocol runs after every navigation and click. The
// portal interrupts page loads with javascript dialogs ("confirm" style
// modals) at unpredictable points, so readiness polling alone deadlocks.
//
// It is an explicit state machine rather than recursion:
//
//	checkingAlert -> waitingReady -> done | timedOut
//	waitingReady  -> checkingAlert   (a dialog surfaced mid-wait;
//	                                  the whole protocol restarts)
//
// The dialog phase is deliberately unbounded: a modal must eventually
// clear, and abandoning the page with a dialog open leaves the session
// unusable. The readiness phase is bounded by the caller's timeout,
// which resets on every restart.
type loadState int

const (
	stateCheckingAlert loadState = iota
	stateWaitingReady
	stateDone
	stateTimedOut
)

type loadWaiter struct {
	// acceptDialog accepts one open dialog, reporting whether one was open.
	acceptDialog func() bool
	// ready probes the page readiness signal.
	ready func() (bool, error)

	clk            clock.Clock
	dialogInterval time.Duration
	readyInterval  time.Duration
	log            *slog.Logger
}

// run executes the protocol. The result is always a boolean; no probe
// fault escapes.
func (w *loadWaiter) run(timeout time.Duration) bool {
	state := stateCheckingAlert
	var deadline time.Time
	dismissed := 0

	for {
		switch state {
		case stateCheckingAlert:
			for w.acceptDialog() {
				dismissed++
				w.log.Info("browse: dialog accepted", "total", dismissed)
				w.clk.Sleep(w.dialogInterval)
			}
			deadline = w.clk.Now().Add(timeout)
			state = stateWaitingReady

		case stateWaitingReady:
			done, err := w.ready()
			switch {
			case err == nil && done:
				state = stateDone
			case err != nil && w.acceptDialog():
				// A dialog interrupted the readiness probe. Count the
				// dismissal and restart the protocol from the top.
				dismissed++
				w.log.Info("browse: dialog accepted mid-wait", "total", dismissed)
				w.clk.Sleep(w.dialogInterval)
				state = stateCheckingAlert
			case !w.clk.Now().Before(deadline):
				state = stateTimedOut
			default:
				if err != nil {
					w.log.Debug("browse: readiness probe failed", "error", err)
				}
				w.clk.Sleep(w.readyInterval)
			}

		case stateDone:
			return true

		case stateTimedOut:
			w.log.Error("browse: page did not become ready", "timeout", timeout)
			return false
		}
	}
}

// loadWait runs the protocol against the current window.
func (s *Session) loadWait(timeout time.Duration) bool {
	p := s.page
	w := &loadWaiter{
		acceptDialog: func() bool {
			err := proto.PageHandleJavaScriptDialog{Accept: true}.Call(p)
			return err == nil
		},
		ready: func() (bool, error) {
			res, err := p.Eval(`() => document.readyState`)
			if err != nil {
				return false, err
			}
			return strings.EqualFold(res.Value.Str(), "complete"), nil
		},
		clk:            s.clk,
		dialogInterval: 3 * time.Second,
		readyInterval:  500 * time.Millisecond,
		log:            s.log,
	}
	return w.run(timeout)
}
