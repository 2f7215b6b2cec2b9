// Package browse drives one Chrome process through Rod and exposes the
// bounded-wait action primitives the portal orchestration is built on:
// navigate, locate, type, click, select, and window/frame switching.
//
// Every primitive returns a boolean (or a handle plus a boolean) instead
// of an error: absence and timeout are expected outcomes of talking to a
// non-deterministic remote UI, not faults. Only Launch can fail hard.
package browse

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/geodrive/clock"
)

// LaunchConfig configures the browser session.
type LaunchConfig struct {
	// DownloadDir receives every file the portal serves. It is created
	// if missing and must not be written by anyone else for the run's
	// duration: download completion is detected by diffing its listing.
	DownloadDir string

	// Headless runs Chrome without a display. Default: true.
	Headless *bool

	// InsecureOrigin is an http:// origin to treat as secure, so the
	// portal's plain-http downloads are not blocked. Optional.
	InsecureOrigin string

	// FindTimeout bounds element waits and post-action load waits.
	// Default: 30s.
	FindTimeout time.Duration

	// WindowPoll is the interval for window-count polling. Default: 500ms.
	WindowPoll time.Duration

	Logger *slog.Logger
	Clock  clock.Clock
}

func (c *LaunchConfig) defaults() {
	if c.Headless == nil {
		t := true
		c.Headless = &t
	}
	if c.FindTimeout <= 0 {
		c.FindTimeout = 30 * time.Second
	}
	if c.WindowPoll <= 0 {
		c.WindowPoll = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clock.System{}
	}
}

// Session owns one Chrome process, its download directory, and the
// current window/frame context. One Session drives one portal run.
type Session struct {
	cfg     LaunchConfig
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	frames  []*rod.Page // innermost frame last; empty means top document
	log     *slog.Logger
	clk     clock.Clock
	closed  bool
}

// Launch starts Chrome with the portal-hardened flag set and pins its
// download directory. A launch failure is fatal to the run and is never
// retried here.
func Launch(cfg LaunchConfig) (*Session, error) {
	cfg.defaults()

	if cfg.DownloadDir == "" {
		return nil, fmt.Errorf("browse: download dir is required")
	}
	dir, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("browse: download dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("browse: create download dir: %w", err)
	}
	cfg.DownloadDir = dir

	l := launcher.New().
		Headless(*cfg.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-notifications").
		Set("enable-unsafe-swiftshader").
		Set("start-maximized").
		Set("log-level", "3")
	if cfg.InsecureOrigin != "" {
		l = l.Set("unsafely-treat-insecure-origin-as-secure", cfg.InsecureOrigin)
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browse: launch chrome: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browse: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		cfg.Logger.Warn("browse: ignore cert errors failed", "error", err)
	}

	err = proto.BrowserSetDownloadBehavior{
		Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath: dir,
	}.Call(b)
	if err != nil {
		b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("browse: set download dir: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("browse: open page: %w", err)
	}

	cfg.Logger.Info("browse: session started", "download_dir", dir, "headless", *cfg.Headless)

	return &Session{
		cfg:     cfg,
		browser: b,
		lnch:    l,
		page:    page,
		log:     cfg.Logger,
		clk:     cfg.Clock,
	}, nil
}

// DownloadDir returns the directory Chrome downloads into.
func (s *Session) DownloadDir() string { return s.cfg.DownloadDir }

// Terminate releases the browser process. Safe to call multiple times.
func (s *Session) Terminate() {
	if s.closed {
		return
	}
	s.closed = true
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.log.Warn("browse: close browser", "error", err)
		}
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	s.log.Info("browse: session terminated")
}

// CurrentURL reports the current window's URL, or "" if unavailable.
func (s *Session) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// CloseWindow closes the current window and switches to the most
// recently opened remaining handle, if any.
func (s *Session) CloseWindow() {
	if err := s.page.Close(); err != nil {
		s.log.Warn("browse: close window", "error", err)
	}
	s.frames = nil

	pages, err := s.browser.Pages()
	if err != nil || len(pages) == 0 {
		return
	}
	s.page = pages[len(pages)-1]
	if _, err := s.page.Activate(); err != nil {
		s.log.Debug("browse: activate window", "error", err)
	}
}

// Screenshot captures the current window into dir as a timestamped PNG.
// The capture dir must be distinct from the download dir, which is
// reserved for portal artifacts.
func (s *Session) Screenshot(dir string) bool {
	bin, err := s.page.Screenshot(false, nil)
	if err != nil {
		s.log.Error("browse: screenshot", "error", err)
		return false
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Error("browse: screenshot dir", "error", err)
		return false
	}
	name := s.clk.Now().Format("2006-01-02_150405") + ".png"
	if err := os.WriteFile(filepath.Join(dir, name), bin, 0o644); err != nil {
		s.log.Error("browse: write screenshot", "error", err)
		return false
	}
	s.log.Info("browse: screenshot saved", "file", name)
	return true
}

// active returns the page or innermost frame that primitives act on.
func (s *Session) active() *rod.Page {
	if n := len(s.frames); n > 0 {
		return s.frames[n-1]
	}
	return s.page
}
