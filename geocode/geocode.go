// Package geocode orchestrates one remote geocoding job per data chunk
// against the portal: upload the chunk workbook, trigger the job, poll
// the monitoring view until the result is downloadable, download it,
// and clear the job's history entry.
//
// The remote job has no local state. Its lifecycle — queued, processing
// (row or control absent, or control present but disabled), ready
// (control enabled), downloaded, cleared — is re-derived from the live
// monitoring page on every poll.
package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/geodrive/clock"
	"github.com/hazyhaar/geodrive/dirwatch"
)

// control is a located monitoring-page element whose enabled state
// gates the download.
type control interface {
	Attribute(name string) (string, bool)
}

// driver is the narrow browser surface the orchestrator needs. It is
// satisfied by sessionDriver over browse.Session; tests script a fake.
type driver interface {
	Navigate(url string) bool
	TypeText(locator, value string) bool
	AttachFile(locator, path string) bool
	Click(locator string) bool
	SelectOption(locator, value string) bool
	FindControl(locator string, timeout time.Duration) (control, bool)
	SwitchWindow(substr string, minWindows int, timeout time.Duration) bool
	Refresh() bool
	Screenshot(dir string) bool
	CloseWindow()
	DownloadDir() string
}

// Client runs remote geocoding jobs over one browser session.
type Client struct {
	d   driver
	cfg Config
	clk clock.Clock
	log *slog.Logger
}

func newClient(d driver, cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{d: d, cfg: cfg, clk: cfg.Clock, log: cfg.Logger}
}

// Login authenticates against the portal. A failure here is a setup
// failure: the caller should abort the run rather than process chunks.
func (c *Client) Login(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if !c.d.Navigate(c.cfg.Portal.LoginURL) {
		return fmt.Errorf("geocode: open login page: %w", ErrLoginFailed)
	}
	c.d.TypeText(c.cfg.Locators.LoginID, c.cfg.Portal.UserID)
	c.d.TypeText(c.cfg.Locators.LoginPassword, c.cfg.Portal.Password)
	c.d.Click(c.cfg.Locators.LoginSubmit)

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := c.d.FindControl(c.cfg.Locators.LoginProbe, c.cfg.Limits.FindTimeout); !ok {
		return fmt.Errorf("geocode: %w", ErrLoginFailed)
	}
	c.log.Info("geocode: logged in", "portal", c.cfg.Portal.LoginURL)
	return nil
}

// ProcessChunk runs one chunk end to end. The artifact is identified on
// the monitoring page by the uploaded file's base name. Any returned
// error is the chunk's failure; there is no partial-progress result and
// no whole-chunk retry here.
func (c *Client) ProcessChunk(ctx context.Context, path string) error {
	artifact := filepath.Base(path)
	log := c.log.With("artifact", artifact)
	log.Info("geocode: chunk started")

	c.upload(path)
	// The job runs server-side; clicking only enqueues it, so no
	// download detection wraps this click.
	c.d.Click(c.cfg.Locators.StartButton)

	// Window cleanup runs on success and failure alike: a dangling
	// monitoring window would leak into the next chunk.
	defer c.closeMonitoring()

	c.openMonitoring()

	if err := c.awaitRow(ctx, artifact); err != nil {
		log.Error("geocode: chunk failed", "stage", "row_poll", "error", err)
		return err
	}
	if err := c.awaitEnabled(ctx, artifact); err != nil {
		log.Error("geocode: chunk failed", "stage", "readiness", "error", err)
		return err
	}
	if err := c.download(artifact); err != nil {
		log.Error("geocode: chunk failed", "stage", "download", "error", err)
		return err
	}
	log.Info("geocode: chunk complete")
	return nil
}

// upload fills the submission form. Individual step failures are logged
// by the primitives but not fatal: if the page is truly unusable the
// monitoring poll fails definitively later.
func (c *Client) upload(path string) {
	l := c.cfg.Locators
	c.d.Navigate(c.cfg.Portal.UploadURL)
	c.d.AttachFile(l.FileInput, path)
	c.d.Click(l.ColumnPicker)
	c.d.Click(l.ColumnOption)
	c.d.SelectOption(l.CharsetSelect, l.CharsetValue)
}

// openMonitoring switches to the monitoring popup if the portal opened
// one, falling back to direct navigation in the current window.
func (c *Client) openMonitoring() {
	p := c.cfg.Portal
	if c.d.SwitchWindow(p.MonitoringWindow, 2, c.cfg.Limits.WindowTimeout) {
		return
	}
	c.log.Info("geocode: no monitoring popup, navigating directly")
	c.d.Navigate(p.MonitoringURL)
}

// awaitRow polls the monitoring view for the artifact's download
// control, refreshing between attempts. One counter covers both the
// row-absent and the probe-fault branches; the budget is the initial
// probe plus RowRetries retries.
func (c *Client) awaitRow(ctx context.Context, artifact string) error {
	loc := c.downloadLocator(artifact)
	m := c.cfg.Limits

	for attempt := 0; attempt <= m.RowRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			if !c.d.Refresh() {
				c.log.Warn("geocode: monitoring refresh failed", "attempt", attempt)
			}
		}
		found, faulted := c.probeRow(loc)
		if found {
			c.log.Info("geocode: monitoring row located", "artifact", artifact, "probes", attempt+1)
			return nil
		}
		if faulted {
			c.log.Warn("geocode: transient probe fault", "artifact", artifact, "attempt", attempt)
			c.clk.Sleep(m.ProbeBackoff)
		}
	}
	return fmt.Errorf("geocode: %s after %d probes: %w", artifact, m.RowRetries+1, ErrRetryBudgetExhausted)
}

// probeRow performs one bounded monitoring probe. A panic out of the
// driver is contained here and reported as a transient fault; it counts
// against the same budget as an absent row.
func (c *Client) probeRow(locator string) (found, faulted bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("geocode: probe panic contained", "cause", r)
			found, faulted = false, true
		}
	}()
	_, ok := c.d.FindControl(locator, c.cfg.Limits.ProbeTimeout)
	return ok, false
}

// awaitEnabled refreshes until the download control loses its disabled
// class. The control is re-located after every refresh; a handle from
// before a reload is stale by contract.
func (c *Client) awaitEnabled(ctx context.Context, artifact string) error {
	loc := c.downloadLocator(artifact)
	m := c.cfg.Limits

	for check := 0; check < m.EnableChecks; check++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctl, ok := c.d.FindControl(loc, m.FindTimeout)
		if ok && !isDisabled(ctl) {
			c.log.Info("geocode: download control enabled", "artifact", artifact, "refreshes", check)
			return nil
		}
		if !c.d.Refresh() {
			c.log.Warn("geocode: refresh during readiness wait failed", "artifact", artifact)
		}
		c.clk.Sleep(m.EnableBackoff)
	}
	return fmt.Errorf("geocode: %s after %d refreshes: %w", artifact, m.EnableChecks, ErrEnableDeadline)
}

func isDisabled(ctl control) bool {
	cls, ok := ctl.Attribute("class")
	return ok && strings.Contains(cls, "disabled")
}

// download clicks the control wrapped in the directory detector. On
// success the row's history entry is cleared; on failure it is left in
// place so the job stays queryable for manual recovery.
func (c *Client) download(artifact string) error {
	c.d.Screenshot(c.cfg.CaptureDir)

	m := c.cfg.Limits
	ok := dirwatch.Detect(c.d.DownloadDir(), func() bool {
		return c.d.Click(c.downloadLocator(artifact))
	}, dirwatch.Options{
		Timeout:  m.DownloadTimeout,
		Interval: m.PollInterval,
		Clock:    c.clk,
		Logger:   c.log,
	})
	if !ok {
		return fmt.Errorf("geocode: %s: %w", artifact, ErrDownloadTimeout)
	}

	if !c.d.Click(c.clearLocator(artifact)) {
		c.log.Warn("geocode: clear history failed", "artifact", artifact)
	}
	return nil
}

func (c *Client) closeMonitoring() {
	c.d.CloseWindow()
}

func (c *Client) rowLocator(artifact string) string {
	return fmt.Sprintf(c.cfg.Locators.RowByFile, artifact)
}

func (c *Client) downloadLocator(artifact string) string {
	return c.rowLocator(artifact) + c.cfg.Locators.RowDownload
}

func (c *Client) clearLocator(artifact string) string {
	return c.rowLocator(artifact) + c.cfg.Locators.RowClear
}
