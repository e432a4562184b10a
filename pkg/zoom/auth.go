// Package zoom implements the Zoom web client automation: authentication
// detection and the meeting-start procedure. Everything here is heuristic:
// the web UI offers no authoritative signals, so detection favors redundancy
// (ordered fallback locator chains, multiple weak signals) over any single
// "correct" selector.
package zoom

import (
	"context"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/playwright-community/playwright-go"

	"github.com/meetsync/zoomsync/pkg/browser"
	"github.com/meetsync/zoomsync/pkg/logging"
)

// signInControls locate a visible sign-in button or link. Seeing one means
// the session is signed out even when the URL looks clean.
var signInControls = []browser.Strategy{
	browser.Role("link", "sign ?in"),
	browser.Role("button", "sign ?in"),
	browser.CSS("a[href*='signin']"),
	browser.CSS("button:has-text('Sign In')"),
}

// Detector decides, from URL and DOM alone, whether the web session is
// signed in. No network calls. False negatives are safe (they route to the
// login path); false positives are the failure to avoid, so anything
// ambiguous counts as not authenticated.
type Detector struct {
	patterns []glob.Glob
	log      *logging.Logger
}

// NewDetector compiles the sign-in URL patterns.
func NewDetector(patterns []glob.Glob, log *logging.Logger) *Detector {
	return &Detector{patterns: patterns, log: log}
}

// IsAuthenticated inspects the page's current URL and scans for a visible
// sign-in control.
func (d *Detector) IsAuthenticated(ctx context.Context, page playwright.Page) bool {
	url := page.URL()
	if urlLooksUnauthenticated(url, d.patterns) {
		d.log.Infof("auth: url %q classified as signed out", url)
		return false
	}

	if _, found := browser.FindFirstVisible(ctx, page, signInControls, 1200*time.Millisecond); found {
		d.log.Infof("auth: visible sign-in control found, classified as signed out")
		return false
	}
	return true
}

// urlLooksUnauthenticated classifies a URL as belonging to the sign-in /
// SSO / verification flow. An empty or unreadable URL is ambiguous and
// therefore counts as unauthenticated.
func urlLooksUnauthenticated(url string, patterns []glob.Glob) bool {
	if url == "" || url == "about:blank" {
		return true
	}
	lower := strings.ToLower(url)
	for _, g := range patterns {
		if g.Match(lower) {
			return true
		}
	}
	return false
}
