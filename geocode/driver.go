package geocode

import (
	"time"

	"github.com/hazyhaar/geodrive/browse"
)

// sessionDriver adapts browse.Session to the orchestrator's driver
// interface. The only impedance mismatch is Find returning the concrete
// element type.
type sessionDriver struct {
	s *browse.Session
}

// New builds a Client over a live browser session.
func New(sess *browse.Session, cfg Config) *Client {
	return newClient(sessionDriver{s: sess}, cfg)
}

func (d sessionDriver) Navigate(url string) bool        { return d.s.Navigate(url) }
func (d sessionDriver) TypeText(loc, value string) bool { return d.s.TypeText(loc, value) }
func (d sessionDriver) AttachFile(loc, path string) bool {
	return d.s.AttachFile(loc, path)
}
func (d sessionDriver) Click(loc string) bool { return d.s.Click(loc) }
func (d sessionDriver) SelectOption(loc, value string) bool {
	return d.s.SelectOption(loc, value)
}

func (d sessionDriver) FindControl(loc string, timeout time.Duration) (control, bool) {
	el, ok := d.s.FindWithin(loc, timeout)
	if !ok {
		return nil, false
	}
	return el, true
}

func (d sessionDriver) SwitchWindow(substr string, minWindows int, timeout time.Duration) bool {
	return d.s.SwitchWindow(substr, minWindows, timeout)
}

func (d sessionDriver) Refresh() bool              { return d.s.Refresh() }
func (d sessionDriver) Screenshot(dir string) bool { return d.s.Screenshot(dir) }
func (d sessionDriver) CloseWindow()               { d.s.CloseWindow() }
func (d sessionDriver) DownloadDir() string        { return d.s.DownloadDir() }
