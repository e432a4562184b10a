// Package browser owns the single persistent browser session used by the
// automator and the generic locator primitives every flow step is built on.
package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/meetsync/zoomsync/pkg/logging"
)

// Manager owns at most one live Session and the Playwright driver behind it.
// Opening is lazy; closing is idempotent and bounded. The close-event handler
// registered on the context fires for every cause of closure (explicit close,
// crash, remote kill) so callers can never be left with stale state.
type Manager struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	session  *Session
	closing  chan struct{}
	opts     Options
	log      *logging.Logger
	onClosed func()
}

// NewManager creates a session manager. No browser is launched until Ensure.
func NewManager(opts Options, log *logging.Logger) *Manager {
	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.CloseTimeout == 0 {
		opts.CloseTimeout = DefaultCloseTimeout
	}
	if opts.ForceCloseTimeout == 0 {
		opts.ForceCloseTimeout = DefaultForceCloseTimeout
	}
	return &Manager{opts: opts, log: log}
}

// SetOnClosed registers a callback invoked whenever the session goes away,
// regardless of cause. The callback must be cheap and idempotent: it can fire
// from the browser's own close event after the main flow has already moved on
// to cleanup.
func (m *Manager) SetOnClosed(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClosed = fn
}

// Active reports whether a session is currently open.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Ensure returns the live session, opening one if needed. If a session
// already exists it is returned as-is (the headless flag of an existing
// session is not renegotiated). Any in-flight close is waited out first;
// that wait is bounded because Close itself is bounded.
func (m *Manager) Ensure(headless bool) (*Session, error) {
	m.mu.Lock()
	if m.session != nil {
		s := m.session
		m.mu.Unlock()
		return s, nil
	}
	closing := m.closing
	m.mu.Unlock()

	if closing != nil {
		<-closing
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		return m.session, nil
	}

	if m.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright driver: %w", err)
		}
		m.pw = pw
	}

	m.log.Infof("opening session (headless=%v, profile=%s)", headless, m.opts.ProfileDir)

	ctx, err := m.pw.Chromium.LaunchPersistentContext(m.opts.ProfileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(headless),
			Viewport: &playwright.Size{
				Width:  m.opts.ViewportWidth,
				Height: m.opts.ViewportHeight,
			},
			Args:    m.opts.ExtraArgs,
			Timeout: playwright.Float(float64(DefaultLaunchTimeout.Milliseconds())),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to open persistent context: %w", err)
	}

	session := &Session{
		Context:   ctx,
		Headless:  headless,
		CreatedAt: time.Now(),
	}

	// Fires for every cause of closure, including crashes and manual close
	// of a headed window. Must stay minimal: flip state, nothing else.
	ctx.On("close", func() {
		m.handleContextClosed(session)
	})

	m.session = session
	return session, nil
}

// handleContextClosed clears the session reference if it still points at the
// closed context and notifies the automator. Nil-checks are required: the
// event can fire after Close has already swapped the session out.
func (m *Manager) handleContextClosed(closed *Session) {
	m.mu.Lock()
	if m.session != closed {
		m.mu.Unlock()
		return
	}
	m.session = nil
	fn := m.onClosed
	m.mu.Unlock()

	m.log.Warnf("browser context closed")
	if fn != nil {
		fn()
	}
}

// Page returns the session's primary page. The first existing page of the
// context is reused (a persistent context opens with one); a new page is
// created only when none exists.
func (m *Manager) Page() (playwright.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, fmt.Errorf("no active session")
	}
	if m.session.page != nil && !m.session.page.IsClosed() {
		return m.session.page, nil
	}

	pages := m.session.Context.Pages()
	if len(pages) > 0 {
		m.session.page = pages[0]
		return pages[0], nil
	}

	page, err := m.session.Context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	m.session.page = page
	return page, nil
}

// AdoptPage replaces the cached primary page. Used when triggering an action
// opened the meeting UI in a new tab.
func (m *Manager) AdoptPage(page playwright.Page) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.page = page
	}
}

// Close tears the session down. It is idempotent and bounded: a graceful
// context close gets CloseTimeout, after which the owning browser process is
// force-closed with ForceCloseTimeout, and any outcome counts as closed.
// A hung native close must never block future operations. Close failures are
// logged and swallowed; the goal is freeing resources, not proving they were
// freed cleanly.
func (m *Manager) Close() {
	m.mu.Lock()
	session := m.session
	if session == nil {
		m.mu.Unlock()
		return
	}
	m.session = nil
	done := make(chan struct{})
	m.closing = done
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.closing == done {
			m.closing = nil
		}
		m.mu.Unlock()
		close(done)

		fn := m.onClosedFn()
		if fn != nil {
			fn()
		}
	}()

	if m.closeWithTimeout(func() error { return session.Context.Close() }, m.opts.CloseTimeout) {
		m.log.Infof("session closed")
		return
	}

	m.log.Warnf("graceful close timed out after %s, force-closing browser", m.opts.CloseTimeout)

	// For persistent contexts the owning Browser may be unavailable; then
	// there is nothing further to do and the session is abandoned.
	browser := session.Context.Browser()
	if browser == nil {
		m.log.Warnf("no browser handle for force close, abandoning session")
		return
	}
	if m.closeWithTimeout(func() error { return browser.Close() }, m.opts.ForceCloseTimeout) {
		m.log.Infof("browser force-closed")
		return
	}
	m.log.Errorf("force close timed out after %s, abandoning session", m.opts.ForceCloseTimeout)
}

func (m *Manager) onClosedFn() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onClosed
}

// closeWithTimeout runs fn and reports whether it finished (successfully or
// not) within the deadline. An error return still counts as finished: the
// resource is gone either way.
func (m *Manager) closeWithTimeout(fn func() error, timeout time.Duration) bool {
	result := make(chan error, 1)
	go func() {
		result <- fn()
	}()

	select {
	case err := <-result:
		if err != nil {
			m.log.Warnf("close returned error (ignored): %v", err)
		}
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stop closes any session and stops the Playwright driver. Used at daemon
// shutdown only.
func (m *Manager) Stop() {
	m.Close()

	m.mu.Lock()
	pw := m.pw
	m.pw = nil
	m.mu.Unlock()

	if pw != nil {
		if err := pw.Stop(); err != nil {
			m.log.Warnf("failed to stop playwright driver: %v", err)
		}
	}
}
