package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/playwright-community/playwright-go"

	"github.com/meetsync/zoomsync/pkg/logging"
)

// Snapshotter captures full-page screenshots and visible-control dumps for
// offline debugging of stuck states. It is not part of the functional
// contract: every method is best-effort and never returns an error to the
// caller.
type Snapshotter struct {
	dir     string
	enabled bool
	log     *logging.Logger
	counter atomic.Uint64
}

// NewSnapshotter creates a snapshotter writing into dir. When disabled, all
// captures are no-ops.
func NewSnapshotter(dir string, enabled bool, log *logging.Logger) *Snapshotter {
	if enabled {
		if err := os.MkdirAll(dir, 0750); err != nil {
			log.Warnf("failed to create diagnostics dir %s, disabling capture: %v", dir, err)
			enabled = false
		}
	}
	return &Snapshotter{dir: dir, enabled: enabled, log: log}
}

// Enabled reports whether captures are active.
func (s *Snapshotter) Enabled() bool {
	return s.enabled
}

// Capture writes a full-page screenshot named with a monotonic counter and
// the stage label, and logs the currently visible buttons and headings.
func (s *Snapshotter) Capture(page playwright.Page, stage string) {
	if !s.enabled || page == nil || page.IsClosed() {
		return
	}

	n := s.counter.Add(1)
	path := filepath.Join(s.dir, fmt.Sprintf("%04d-%s.png", n, sanitizeStage(stage)))

	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Path:     playwright.String(path),
	}); err != nil {
		s.log.Warnf("screenshot %s failed: %v", stage, err)
		return
	}
	s.log.Infof("diagnostic screenshot %s written (stage=%s)", path, stage)

	s.log.Infof("visible buttons at %s: %s", stage, s.visibleText(page, "button, [role='button']"))
	s.log.Infof("visible headings at %s: %s", stage, s.visibleText(page, "h1, h2, h3"))
}

// visibleText collects trimmed text of visible elements matching the
// selector, capped so a busy page cannot flood the log.
func (s *Snapshotter) visibleText(page playwright.Page, selector string) string {
	const maxItems = 25

	locators, err := page.Locator(selector).All()
	if err != nil {
		return fmt.Sprintf("<dump failed: %v>", err)
	}

	var items []string
	for _, loc := range locators {
		if len(items) >= maxItems {
			items = append(items, "…")
			break
		}
		if !isVisible(loc) {
			continue
		}
		text, err := loc.TextContent()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			items = append(items, fmt.Sprintf("%q", text))
		}
	}
	if len(items) == 0 {
		return "<none>"
	}
	return strings.Join(items, ", ")
}

func sanitizeStage(stage string) string {
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}
	return strings.Map(mapper, stage)
}
