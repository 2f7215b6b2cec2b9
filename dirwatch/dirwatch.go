// Package dirwatch detects download completion by watching a directory.
//
// Chrome exposes no portable "download finished" signal to automation,
// so geodrive treats the download directory itself as the signal:
// snapshot the listing, fire the action that starts the download, then
// poll for a newly appeared file that is not a browser spill file
// (.crdownload, .tmp). The combinator is generic over the trigger: any
// func() bool that starts a download can be wrapped.
package dirwatch

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/geodrive/clock"
)

// Options tunes detection.
type Options struct {
	// Timeout bounds the whole wait. Default: 1h (remote jobs can sit
	// in the portal queue for most of that).
	Timeout time.Duration
	// Interval is the polling frequency. Default: 10s.
	Interval time.Duration
	// ProvisionalSuffixes mark files still being written. Matched
	// case-insensitively. Default: .crdownload, .tmp.
	ProvisionalSuffixes []string
	Clock               clock.Clock
	Logger              *slog.Logger
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = time.Hour
	}
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if len(o.ProvisionalSuffixes) == 0 {
		o.ProvisionalSuffixes = []string{".crdownload", ".tmp"}
	}
	if o.Clock == nil {
		o.Clock = clock.System{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Snapshot is the set of file names present in a directory at one
// instant. It exists only to compute a delta against a later listing.
type Snapshot map[string]struct{}

// TakeSnapshot lists dir. A listing error yields an empty snapshot:
// the dir may not exist yet, and an empty baseline only widens the
// delta, never hides a finished file.
func TakeSnapshot(dir string) Snapshot {
	snap := Snapshot{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return snap
	}
	for _, e := range entries {
		snap[e.Name()] = struct{}{}
	}
	return snap
}

// Detect snapshots dir, invokes trigger, and reports whether a new
// finished file appeared before the timeout. A trigger that reports
// failure short-circuits to false without polling. A provisional file
// alone never counts; the first finished newcomer wins immediately.
func Detect(dir string, trigger func() bool, opts Options) bool {
	opts.defaults()

	snap := TakeSnapshot(dir)
	deadline := opts.Clock.Now().Add(opts.Timeout)

	if !trigger() {
		opts.Logger.Error("dirwatch: trigger failed, not polling", "dir", dir)
		return false
	}

	for {
		if name, ok := finishedNewcomer(dir, snap, opts.ProvisionalSuffixes); ok {
			opts.Logger.Info("dirwatch: download complete", "file", name)
			return true
		}
		if !opts.Clock.Now().Before(deadline) {
			opts.Logger.Error("dirwatch: no download within timeout", "dir", dir, "timeout", opts.Timeout)
			return false
		}
		opts.Clock.Sleep(opts.Interval)
	}
}

// AwaitQuiet reports true once dir holds no provisional file, polling
// until the timeout. Used before terminating a session so in-flight
// downloads are not truncated.
func AwaitQuiet(dir string, opts Options) bool {
	opts.defaults()

	deadline := opts.Clock.Now().Add(opts.Timeout)
	for {
		if !hasProvisional(dir, opts.ProvisionalSuffixes) {
			return true
		}
		if !opts.Clock.Now().Before(deadline) {
			opts.Logger.Error("dirwatch: provisional files remain at timeout", "dir", dir)
			return false
		}
		opts.Clock.Sleep(opts.Interval)
	}
}

func finishedNewcomer(dir string, snap Snapshot, suffixes []string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		name := e.Name()
		if _, existed := snap[name]; existed {
			continue
		}
		if provisional(name, suffixes) {
			continue
		}
		return name, true
	}
	return "", false
}

func hasProvisional(dir string, suffixes []string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if provisional(e.Name(), suffixes) {
			return true
		}
	}
	return false
}

func provisional(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
