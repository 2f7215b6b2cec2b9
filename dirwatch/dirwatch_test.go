package dirwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/geodrive/clock"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testOpts(clk *clock.Fake, timeout time.Duration) Options {
	return Options{
		Timeout:  timeout,
		Interval: 10 * time.Second,
		Clock:    clk,
	}
}

func TestDetectFinishedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "existing.xlsx") // pre-existing, must not count

	clk := clock.NewFake()
	sleeps := 0
	clk.OnSleep(func(time.Time) {
		sleeps++
		switch sleeps {
		case 1:
			writeFile(t, dir, "result.tmp")
		case 3:
			writeFile(t, dir, "result.shp")
		}
	})

	triggered := false
	ok := Detect(dir, func() bool { triggered = true; return true }, testOpts(clk, time.Hour))
	if !ok {
		t.Fatal("expected detection of result.shp")
	}
	if !triggered {
		t.Fatal("trigger was not invoked")
	}
	// Polls at sleeps 1 and 2 saw only the provisional file; success
	// must come only after sleep 3 created the finished file.
	if sleeps != 3 {
		t.Fatalf("expected success after 3 poll sleeps, got %d", sleeps)
	}
}

func TestDetectNeverSucceedsOnProvisionalOnly(t *testing.T) {
	dir := t.TempDir()

	clk := clock.NewFake()
	clk.OnSleep(func(time.Time) {
		writeFile(t, dir, "partial.crdownload")
	})

	if Detect(dir, func() bool { return true }, testOpts(clk, time.Minute)) {
		t.Fatal("a provisional file must never count as a finished download")
	}
}

func TestDetectTimesOutWithNoNewFile(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewFake()

	start := clk.Now()
	if Detect(dir, func() bool { return true }, testOpts(clk, time.Minute)) {
		t.Fatal("expected timeout")
	}
	if elapsed := clk.Now().Sub(start); elapsed < time.Minute {
		t.Fatalf("returned false after only %s", elapsed)
	}
}

func TestDetectFailedTriggerSkipsPolling(t *testing.T) {
	dir := t.TempDir()
	// Even a finished newcomer must be ignored when the trigger failed.
	clk := clock.NewFake()
	sleeps := 0
	clk.OnSleep(func(time.Time) { sleeps++ })

	ok := Detect(dir, func() bool {
		writeFile(t, dir, "orphan.zip")
		return false
	}, testOpts(clk, time.Hour))

	if ok {
		t.Fatal("expected immediate false on trigger failure")
	}
	if sleeps != 0 {
		t.Fatalf("expected no polling after failed trigger, got %d sleeps", sleeps)
	}
}

func TestDetectSnapshotPrecedesTrigger(t *testing.T) {
	dir := t.TempDir()
	// A file created by the trigger itself is absent from the snapshot
	// and therefore counts as the download.
	clk := clock.NewFake()
	ok := Detect(dir, func() bool {
		writeFile(t, dir, "immediate.zip")
		return true
	}, testOpts(clk, time.Hour))
	if !ok {
		t.Fatal("file created by the trigger must be detected")
	}
}

func TestAwaitQuiet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inflight.crdownload")

	clk := clock.NewFake()
	sleeps := 0
	clk.OnSleep(func(time.Time) {
		sleeps++
		if sleeps == 2 {
			if err := os.Remove(filepath.Join(dir, "inflight.crdownload")); err != nil {
				t.Fatal(err)
			}
			writeFile(t, dir, "inflight.zip")
		}
	})

	if !AwaitQuiet(dir, testOpts(clk, time.Hour)) {
		t.Fatal("expected quiet once the provisional file resolved")
	}
}

func TestAwaitQuietTimeout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stuck.tmp")

	clk := clock.NewFake()
	if AwaitQuiet(dir, testOpts(clk, time.Minute)) {
		t.Fatal("expected timeout while a provisional file remains")
	}
}
