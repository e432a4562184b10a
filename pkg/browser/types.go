package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session represents the single live browser session: one persistent context
// bound to the on-disk profile directory, plus its primary page. At most one
// Session exists at a time; the automator's operation queue guarantees it is
// never touched by two operations concurrently.
type Session struct {
	// Context is the persistent browser context (owns the profile dir)
	Context playwright.BrowserContext

	// Headless indicates if the browser is running without a visible window
	Headless bool

	// CreatedAt is the timestamp when the session was opened
	CreatedAt time.Time

	// page is the cached primary page, created lazily
	page playwright.Page
}

// Options configures how the session manager opens sessions.
type Options struct {
	// ProfileDir is the persistent profile directory. Login cookies live
	// here so authentication survives daemon restarts.
	ProfileDir string

	// ViewportWidth and ViewportHeight fix the page viewport
	ViewportWidth  int
	ViewportHeight int

	// ExtraArgs are additional Chromium launch flags
	ExtraArgs []string

	// CloseTimeout bounds the graceful context close
	CloseTimeout time.Duration

	// ForceCloseTimeout bounds the fallback browser-process close
	ForceCloseTimeout time.Duration
}

// Default values for session management.
const (
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 800
	DefaultCloseTimeout      = 10 * time.Second
	DefaultForceCloseTimeout = 5 * time.Second
	DefaultLaunchTimeout     = 30 * time.Second
)
