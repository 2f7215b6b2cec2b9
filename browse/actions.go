package browse

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Element is a transient handle returned by Find. It is valid only
// until the next navigation, refresh, or DOM mutation; callers must
// re-locate rather than cache across waits.
type Element struct {
	el   *rod.Element
	sess *Session
}

// Attribute reads an attribute value. The boolean is false when the
// attribute is absent or the handle went stale.
func (e *Element) Attribute(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

// Text reads the visible text of the element.
func (e *Element) Text() (string, bool) {
	txt, err := e.el.Text()
	if err != nil {
		return "", false
	}
	return txt, true
}

// Click clicks the already-located element and runs the load-wait
// protocol, returning its result.
func (e *Element) Click() bool {
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		e.sess.log.Error("browse: element click", "error", err)
		return false
	}
	return e.sess.loadWait(e.sess.cfg.FindTimeout)
}

// Navigate loads url in the current window and runs the load-wait
// protocol. False means the load did not reach readiness in time.
func (s *Session) Navigate(url string) bool {
	s.frames = nil
	if err := s.page.Timeout(s.cfg.FindTimeout).Navigate(url); err != nil {
		s.log.Error("browse: navigate failed", "url", url, "error", err)
		return false
	}
	if !s.loadWait(s.cfg.FindTimeout) {
		s.log.Error("browse: page load failed", "url", url)
		return false
	}
	s.log.Info("browse: page loaded", "url", url)
	return true
}

// Find waits up to the session default for a visible element matching
// the XPath locator.
func (s *Session) Find(locator string) (*Element, bool) {
	return s.FindWithin(locator, s.cfg.FindTimeout)
}

// FindWithin is Find with an explicit bound. Absence is an expected
// outcome and surfaces only as the boolean.
func (s *Session) FindWithin(locator string, timeout time.Duration) (*Element, bool) {
	el, err := s.active().Timeout(timeout).ElementX(locator)
	if err != nil {
		s.log.Debug("browse: element not found", "locator", locator, "timeout", timeout)
		return nil, false
	}
	if err := el.Timeout(timeout).WaitVisible(); err != nil {
		s.log.Debug("browse: element not visible", "locator", locator)
		return nil, false
	}
	return &Element{el: el, sess: s}, true
}

// FindAll waits for at least one match, then returns every matching
// element in document order.
func (s *Session) FindAll(locator string) ([]*Element, bool) {
	p := s.active()
	if _, err := p.Timeout(s.cfg.FindTimeout).ElementX(locator); err != nil {
		s.log.Debug("browse: elements not found", "locator", locator)
		return nil, false
	}
	els, err := p.ElementsX(locator)
	if err != nil || len(els) == 0 {
		s.log.Debug("browse: elements listing failed", "locator", locator, "error", err)
		return nil, false
	}
	out := make([]*Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el, sess: s})
	}
	return out, true
}

// TypeText types value into the element at locator. True only if the
// element existed and accepted the input.
func (s *Session) TypeText(locator, value string) bool {
	el, ok := s.Find(locator)
	if !ok {
		s.log.Error("browse: type target missing", "locator", locator)
		return false
	}
	if err := el.el.Input(value); err != nil {
		s.log.Error("browse: type failed", "locator", locator, "error", err)
		return false
	}
	s.log.Info("browse: text entered", "locator", locator)
	return true
}

// AttachFile sets a file input's value to path. File inputs are often
// kept invisible by the portal's styling, so no visibility wait applies.
func (s *Session) AttachFile(locator, path string) bool {
	el, err := s.active().Timeout(s.cfg.FindTimeout).ElementX(locator)
	if err != nil {
		s.log.Error("browse: file input missing", "locator", locator)
		return false
	}
	if err := el.SetFiles([]string{path}); err != nil {
		s.log.Error("browse: attach file failed", "locator", locator, "error", err)
		return false
	}
	s.log.Info("browse: file attached", "path", path)
	return true
}

// Click waits for the element to be clickable, clicks it, and runs the
// load-wait protocol, returning its result.
func (s *Session) Click(locator string) bool {
	el, err := s.active().Timeout(s.cfg.FindTimeout).ElementX(locator)
	if err != nil {
		s.log.Error("browse: click target missing", "locator", locator)
		return false
	}
	t := el.Timeout(s.cfg.FindTimeout)
	if err := t.WaitVisible(); err != nil {
		s.log.Error("browse: click target not visible", "locator", locator)
		return false
	}
	if err := t.WaitEnabled(); err != nil {
		s.log.Error("browse: click target not clickable", "locator", locator)
		return false
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.log.Error("browse: click failed", "locator", locator, "error", err)
		return false
	}
	if !s.loadWait(s.cfg.FindTimeout) {
		s.log.Error("browse: page not ready after click", "locator", locator)
		return false
	}
	s.log.Info("browse: clicked", "locator", locator)
	return true
}

// ClickAll clicks every element matching locator in document order,
// aborting on the first click whose post-click load wait fails.
func (s *Session) ClickAll(locator string) bool {
	els, ok := s.FindAll(locator)
	if !ok {
		s.log.Error("browse: click-all targets missing", "locator", locator)
		return false
	}
	for i, el := range els {
		if err := el.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			s.log.Error("browse: click-all failed", "locator", locator, "index", i, "error", err)
			return false
		}
		if !s.loadWait(s.cfg.FindTimeout) {
			s.log.Error("browse: page not ready during click-all", "locator", locator, "index", i)
			return false
		}
	}
	s.log.Info("browse: clicked all", "locator", locator, "count", len(els))
	return true
}

// SelectOption picks the option with the given value attribute in the
// <select> at locator. True only if the element exists and the value is
// a valid option.
func (s *Session) SelectOption(locator, value string) bool {
	el, ok := s.Find(locator)
	if !ok {
		s.log.Error("browse: select missing", "locator", locator)
		return false
	}
	sel := fmt.Sprintf(`option[value=%q]`, value)
	if err := el.el.Select([]string{sel}, true, rod.SelectorTypeCSSSector); err != nil {
		s.log.Error("browse: option not selectable", "locator", locator, "value", value, "error", err)
		return false
	}
	s.log.Info("browse: option selected", "locator", locator, "value", value)
	return true
}

// SwitchWindow waits until at least minWindows handles exist, then
// switches to the first one whose URL contains substr. False on timeout
// or when no handle matches.
func (s *Session) SwitchWindow(substr string, minWindows int, timeout time.Duration) bool {
	deadline := s.clk.Now().Add(timeout)
	for {
		pages, err := s.browser.Pages()
		if err == nil && len(pages) >= minWindows {
			for _, p := range pages {
				info, err := p.Info()
				if err != nil {
					continue
				}
				if strings.Contains(info.URL, substr) {
					s.page = p
					s.frames = nil
					if _, err := p.Activate(); err != nil {
						s.log.Debug("browse: activate window", "error", err)
					}
					s.log.Info("browse: switched window", "url", info.URL)
					return true
				}
			}
			s.log.Error("browse: no window matches", "substr", substr)
			return false
		}
		if !s.clk.Now().Before(deadline) {
			s.log.Error("browse: window wait timed out", "substr", substr, "min_windows", minWindows)
			return false
		}
		s.clk.Sleep(s.cfg.WindowPoll)
	}
}

// SwitchFrame locates an iframe and makes it the active context for
// subsequent primitives.
func (s *Session) SwitchFrame(locator string) bool {
	el, ok := s.Find(locator)
	if !ok {
		s.log.Error("browse: iframe missing", "locator", locator)
		return false
	}
	frame, err := el.el.Frame()
	if err != nil {
		s.log.Error("browse: iframe switch failed", "locator", locator, "error", err)
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

// SwitchToParentFrame leaves the innermost frame. Unconditional: at the
// top document it is a no-op.
func (s *Session) SwitchToParentFrame() {
	if n := len(s.frames); n > 0 {
		s.frames = s.frames[:n-1]
	}
}

// Refresh reloads the current window and runs the load-wait protocol.
func (s *Session) Refresh() bool {
	s.frames = nil
	if err := s.page.Reload(); err != nil {
		s.log.Error("browse: reload failed", "error", err)
		return false
	}
	return s.loadWait(s.cfg.FindTimeout)
}
