// Package browser owns the browser session lifecycle for the Harvest
// engine: Playwright startup, login, expiry detection, re-login, and
// teardown. No other package touches session state directly; all
// navigation against the portal is serialized through a single Session.
package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/coverscope/harvest/pkg/config"
	"github.com/coverscope/harvest/pkg/logging"
)

// Manager owns the Playwright instance and at most one live Session.
type Manager struct {
	mu          sync.Mutex
	cfg         config.Config
	log         *logging.Logger
	playwright  *playwright.Playwright
	session     *Session
	initialized bool
}

// NewManager creates a session manager for the configured portal.
func NewManager(cfg config.Config) *Manager {
	log, _ := logging.NewLogger("browser")
	return &Manager{
		cfg: cfg,
		log: log,
	}
}

// Initialize installs (if needed) and starts Playwright. Must be called
// before NewSession.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Install and run Playwright quietly; driver output would interleave
	// with the progress stream on stderr.
	opts := &playwright.RunOptions{
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
		Browsers: []string{"chromium"},
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	m.log.Infof("playwright initialized")
	return nil
}

// NewSession launches a browser and returns the unauthenticated session.
// Only one live session per manager; a second call fails until the first
// session is closed.
func (m *Manager) NewSession() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	if m.session != nil && m.session.State() != StateClosed {
		return nil, fmt.Errorf("a live session already exists")
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		Args:     defaultLaunchArgs,
	}
	b, err := m.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	}
	context, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(m.cfg.NavigationTimeoutMs)
	page.SetDefaultNavigationTimeout(m.cfg.NavigationTimeoutMs)

	session := &Session{
		cfg:     m.cfg,
		log:     m.log,
		browser: b,
		context: context,
		page:    page,
		state:   StateUnauthenticated,
	}

	m.session = session
	m.log.Infof("browser session launched (headless=%v)", m.cfg.Headless)
	return session, nil
}

// Session returns the current live session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil && m.session.State() == StateClosed {
		return nil
	}
	return m.session
}

// Shutdown closes any live session and stops Playwright. Safe to call
// on all exit paths, including after a failed Initialize.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.Close()
		m.session = nil
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}

	return nil
}
