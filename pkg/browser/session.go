package browser

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/coverscope/harvest/pkg/config"
	"github.com/coverscope/harvest/pkg/logging"
)

// Session is one authenticated browser context against the portal. It
// exclusively owns its Playwright handles; callers must not issue
// concurrent navigations against the same session.
type Session struct {
	cfg config.Config
	log *logging.Logger

	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	mu    sync.Mutex
	state AuthState
	creds config.Credentials // retained for transparent re-login

	closeOnce sync.Once
}

// State returns the session's authentication state.
func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// URL returns the page's current location.
func (s *Session) URL() string {
	return s.page.URL()
}

// IsLoginURL reports whether a URL addresses the login surface.
func (s *Session) IsLoginURL(url string) bool {
	return strings.Contains(url, s.cfg.LoginPath)
}

// Navigate loads url and waits for quiescence. If the portal redirects
// to the login surface the session is marked expired and
// ErrSessionExpired is returned.
func (s *Session) Navigate(url string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}

	if err := s.rawGoto(url); err != nil {
		return err
	}

	if s.IsLoginURL(s.page.URL()) && !s.IsLoginURL(url) {
		s.setState(StateExpired)
		s.log.Warnf("navigation to %s redirected to login", url)
		return ErrSessionExpired
	}
	return nil
}

// rawGoto performs the raw navigation without the expiry check. Used
// directly when the destination is the login surface itself.
func (s *Session) rawGoto(url string) error {
	waitUntil := playwright.WaitUntilState("networkidle")
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
		Timeout:   playwright.Float(s.cfg.NavigationTimeoutMs),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Fill fills an input element with the specified value.
func (s *Session) Fill(selector, value string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	if err := s.page.Fill(selector, value); err != nil {
		return fmt.Errorf("fill %s failed: %w", selector, err)
	}
	return nil
}

// Click clicks the element matching the selector.
func (s *Session) Click(selector string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	if err := s.page.Click(selector); err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	return nil
}

// WaitForQuiescence blocks until no further network activity is
// expected on the current page.
func (s *Session) WaitForQuiescence() error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	state := playwright.LoadState("networkidle")
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   &state,
		Timeout: playwright.Float(s.cfg.NavigationTimeoutMs),
	})
	if err != nil {
		return fmt.Errorf("wait for quiescence failed: %w", err)
	}

	if s.IsLoginURL(s.page.URL()) {
		s.setState(StateExpired)
		return ErrSessionExpired
	}
	return nil
}

// Content returns the page's full HTML.
func (s *Session) Content() (string, error) {
	if s.State() == StateClosed {
		return "", ErrSessionClosed
	}
	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return content, nil
}

// Cookies exports the context's cookies as net/http cookies, for the
// hybrid HTTP fast path.
func (s *Session) Cookies() ([]*http.Cookie, error) {
	if s.State() == StateClosed {
		return nil, ErrSessionClosed
	}
	raw, err := s.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
			Secure: c.Secure,
		})
	}
	return cookies, nil
}

// Close releases page, context, and browser. Safe to call multiple
// times and on partially failed sessions.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		if s.page != nil {
			_ = s.page.Close() // Ignore errors, continue cleanup
		}
		if s.context != nil {
			_ = s.context.Close()
		}
		if s.browser != nil {
			_ = s.browser.Close()
		}
		if s.log != nil {
			s.log.Infof("browser session closed")
		}
	})
	return nil
}

// isTimeoutErr reports whether an error is a navigation/wait timeout.
// Playwright surfaces these as "Timeout Nms exceeded" messages.
func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
