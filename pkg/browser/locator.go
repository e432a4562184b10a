package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// The target UI's structure is not a stable contract, so every flow step is
// expressed as an ordered fallback list of locator strategies, most specific
// first. The resolver returns the first currently-visible match in list
// order, not DOM order.

// StrategyKind discriminates locator strategy variants.
type StrategyKind string

const (
	// KindRole matches by ARIA role and accessible name
	KindRole StrategyKind = "role"

	// KindText matches by rendered text
	KindText StrategyKind = "text"

	// KindCSS matches by CSS selector
	KindCSS StrategyKind = "css"
)

// Strategy is one way of locating a UI element. Strategies are plain values
// so fallback chains can be declared, logged and tested as data.
type Strategy struct {
	Kind StrategyKind

	// Role and Name for KindRole. Name is a regular expression matched
	// case-insensitively against the accessible name.
	Role string
	Name string

	// Text for KindText. Substring, case-insensitive unless Exact.
	Text  string
	Exact bool

	// CSS for KindCSS
	CSS string
}

// Role builds a role strategy. name is a regular expression matched
// case-insensitively against the accessible name; empty matches any name.
func Role(role, name string) Strategy {
	return Strategy{Kind: KindRole, Role: role, Name: name}
}

// Text builds a substring text strategy.
func Text(text string) Strategy {
	return Strategy{Kind: KindText, Text: text}
}

// TextExact builds an exact text strategy.
func TextExact(text string) Strategy {
	return Strategy{Kind: KindText, Text: text, Exact: true}
}

// CSS builds a CSS selector strategy.
func CSS(selector string) Strategy {
	return Strategy{Kind: KindCSS, CSS: selector}
}

// Selector compiles the strategy to a Playwright selector string.
func (s Strategy) Selector() string {
	switch s.Kind {
	case KindRole:
		if s.Name == "" {
			return fmt.Sprintf("role=%s", s.Role)
		}
		return fmt.Sprintf("role=%s[name=/%s/i]", s.Role, s.Name)
	case KindText:
		if s.Exact {
			return fmt.Sprintf("text=%q", s.Text)
		}
		return fmt.Sprintf("text=%s", s.Text)
	default:
		return s.CSS
	}
}

// String describes the strategy for log output.
func (s Strategy) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.Selector())
}

// Match is a resolved strategy: the locator that matched and, for cross-frame
// lookups, the frame it matched in (nil means the main document).
type Match struct {
	Strategy Strategy
	Locator  playwright.Locator
	Frame    playwright.Frame
}

// PollInterval is the re-check cadence for visibility polling.
const PollInterval = 150 * time.Millisecond

// FindFirstVisible polls the page until one of the strategies yields a
// visible element or the timeout elapses. Strategies are evaluated in list
// order each round, so earlier (more reliable) strategies win even when a
// later one also matches. Returns (nil, false) on timeout; it never errors,
// because "not found" is an expected outcome for optional UI.
func FindFirstVisible(ctx context.Context, page playwright.Page, strategies []Strategy, timeout time.Duration) (*Match, bool) {
	deadline := time.Now().Add(timeout)
	for {
		for _, s := range strategies {
			loc := page.Locator(s.Selector()).First()
			if isVisible(loc) {
				return &Match{Strategy: s, Locator: loc}, true
			}
		}
		if !sleepUntil(ctx, deadline) {
			return nil, false
		}
	}
}

// FindAcrossFrames is FindFirstVisible extended to every frame of the page.
// The meeting UI renders its controls inside nested iframes, so main-document
// lookups alone miss them. The returned Match carries the owning frame so the
// caller can keep acting in the right context.
func FindAcrossFrames(ctx context.Context, page playwright.Page, strategies []Strategy, timeout time.Duration) (*Match, bool) {
	deadline := time.Now().Add(timeout)
	for {
		for _, s := range strategies {
			sel := s.Selector()

			loc := page.Locator(sel).First()
			if isVisible(loc) {
				return &Match{Strategy: s, Locator: loc}, true
			}
			for _, frame := range page.Frames() {
				floc := frame.Locator(sel).First()
				if isVisible(floc) {
					return &Match{Strategy: s, Locator: floc, Frame: frame}, true
				}
			}
		}
		if !sleepUntil(ctx, deadline) {
			return nil, false
		}
	}
}

// TryClick finds a visible match and clicks it. Click failures (element went
// stale between find and click, overlay intercepted the pointer) are treated
// as "click did not happen", not as fatal: callers re-check state instead of
// trusting the click.
func TryClick(ctx context.Context, page playwright.Page, strategies []Strategy, timeout time.Duration) bool {
	match, ok := FindFirstVisible(ctx, page, strategies, timeout)
	if !ok {
		return false
	}
	return clickMatch(match)
}

// TryClickAcrossFrames is TryClick extended to every frame of the page.
func TryClickAcrossFrames(ctx context.Context, page playwright.Page, strategies []Strategy, timeout time.Duration) bool {
	match, ok := FindAcrossFrames(ctx, page, strategies, timeout)
	if !ok {
		return false
	}
	return clickMatch(match)
}

func clickMatch(match *Match) bool {
	err := match.Locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(2000),
	})
	return err == nil
}

// isVisible reports visibility, treating errors (detached frame, stale
// locator) as not visible.
func isVisible(loc playwright.Locator) bool {
	visible, err := loc.IsVisible()
	return err == nil && visible
}

// sleepUntil waits one poll interval, reporting false when the deadline has
// passed or the context is done.
func sleepUntil(ctx context.Context, deadline time.Time) bool {
	if time.Now().Add(PollInterval).After(deadline) {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(PollInterval):
		return true
	}
}
