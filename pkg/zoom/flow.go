package zoom

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/meetsync/zoomsync/pkg/automator"
	"github.com/meetsync/zoomsync/pkg/browser"
	"github.com/meetsync/zoomsync/pkg/config"
	"github.com/meetsync/zoomsync/pkg/logging"
)

// Flow drives the Zoom web client through the meeting-start procedure:
//
//	auth check -> navigate home -> disable sticky personal meeting ID ->
//	trigger create -> new-page race -> entry-prompt cascade ->
//	mic/camera off (best effort) -> wait for active signal
//
// Required steps fail the whole procedure; optional steps (sticky-ID
// suppression, prompts, mic/camera) are skipped silently when their UI
// cannot be found, because their absence is a normal page variation.
type Flow struct {
	cfg      config.ZoomConfig
	detector *Detector
	snap     *browser.Snapshotter
	log      *logging.Logger

	// diagInterval enables periodic snapshots inside the active-signal poll
	diagInterval time.Duration
}

// NewFlow builds the Zoom flow from configuration.
func NewFlow(cfg *config.Config, snap *browser.Snapshotter, log *logging.Logger) (*Flow, error) {
	patterns, err := cfg.CompileSigninPatterns()
	if err != nil {
		return nil, err
	}
	return &Flow{
		cfg:          cfg.Zoom,
		detector:     NewDetector(patterns, log),
		snap:         snap,
		log:          log,
		diagInterval: cfg.Diagnostics.Interval,
	}, nil
}

// EnsureAuthenticated navigates to the home page and reports whether the
// session is signed in.
func (f *Flow) EnsureAuthenticated(ctx context.Context, page playwright.Page) (bool, error) {
	f.log.Infof("navigating to home %s", f.cfg.HomeURL)
	if _, err := page.Goto(f.cfg.HomeURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(20000),
	}); err != nil {
		return false, fmt.Errorf("failed to open home page: %w", err)
	}
	return f.detector.IsAuthenticated(ctx, page), nil
}

// StartMeeting runs the procedure after authentication has been verified.
// It returns the page hosting the meeting, which may be a new tab.
func (f *Flow) StartMeeting(ctx context.Context, session *browser.Session, page playwright.Page) (playwright.Page, error) {
	f.snap.Capture(page, "before-create")

	f.disablePersonalMeetingID(ctx, page)

	meetingPage, err := f.triggerNewMeeting(ctx, session, page)
	if err != nil {
		f.snap.Capture(page, "create-failed")
		return nil, err
	}

	f.clearEntryPrompts(ctx, meetingPage)
	f.ensureMicCameraOff(ctx, meetingPage)

	if err := f.waitForActiveMeeting(ctx, meetingPage); err != nil {
		f.snap.Capture(meetingPage, "active-timeout")
		return nil, err
	}

	f.snap.Capture(meetingPage, "meeting-active")
	return meetingPage, nil
}

// newMeetingMenu opens the options dropdown attached to the new-meeting
// control.
var newMeetingMenu = []browser.Strategy{
	browser.CSS("button[aria-label*='new meeting' i][aria-haspopup]"),
	browser.CSS("button[aria-label*='meeting options' i]"),
	browser.Role("button", "new meeting options"),
	browser.CSS("#newMeetingOptions"),
}

// personalIDToggle locates the sticky "use my Personal Meeting ID" setting
// inside the options menu.
var personalIDToggle = []browser.Strategy{
	browser.Role("menuitemcheckbox", "personal meeting id"),
	browser.CSS("label:has-text('Use my Personal Meeting ID')"),
	browser.Text("Use my Personal Meeting ID"),
}

// disablePersonalMeetingID turns the sticky personal-ID setting off so every
// join creates a fresh disposable meeting instead of colliding with the
// user's real persistent meeting. Best effort: a missing menu skips the step
// rather than aborting the join.
func (f *Flow) disablePersonalMeetingID(ctx context.Context, page playwright.Page) {
	if !browser.TryClick(ctx, page, newMeetingMenu, f.cfg.MenuTimeout) {
		f.log.Infof("sticky-id: options menu not found, skipping")
		return
	}

	match, found := browser.FindFirstVisible(ctx, page, personalIDToggle, f.cfg.MenuTimeout)
	if !found {
		f.log.Infof("sticky-id: toggle not found, skipping")
	} else if toggleIsOn(match.Locator) {
		if err := match.Locator.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err != nil {
			f.log.Warnf("sticky-id: failed to turn toggle off: %v", err)
		} else {
			f.log.Infof("sticky-id: personal meeting ID disabled")
		}
	} else {
		f.log.Infof("sticky-id: already off")
	}

	// Close the menu again so it cannot cover the create control
	if err := page.Keyboard().Press("Escape"); err != nil {
		f.log.Warnf("sticky-id: failed to dismiss menu: %v", err)
	}
}

// toggleIsOn reads checked state, falling back to aria-checked for controls
// that are not real checkboxes.
func toggleIsOn(loc playwright.Locator) bool {
	if checked, err := loc.IsChecked(); err == nil {
		return checked
	}
	attr, err := loc.GetAttribute("aria-checked")
	return err == nil && attr == "true"
}

// createMeeting triggers meeting creation. This is a required step.
var createMeeting = []browser.Strategy{
	browser.Role("button", "^new meeting"),
	browser.CSS("div[role='button']:has-text('New Meeting')"),
	browser.CSS("button:has-text('New Meeting')"),
	browser.CSS("a[aria-label*='new meeting' i]"),
}

// triggerNewMeeting clicks the create control and races the context's
// new-page event against a short timeout: the meeting UI may open in a new
// tab or take over the current page, and nothing announces which. A missing
// create control is classified as timeout so the join-level retry gets a
// second chance after a session rebuild; a slow-loading home page is its
// most common cause.
func (f *Flow) triggerNewMeeting(ctx context.Context, session *browser.Session, page playwright.Page) (playwright.Page, error) {
	const createTimeout = 8 * time.Second

	newPage := make(chan playwright.Page, 1)
	session.Context.Once("page", func(p playwright.Page) {
		select {
		case newPage <- p:
		default:
		}
	})

	if !browser.TryClick(ctx, page, createMeeting, createTimeout) {
		return nil, fmt.Errorf("new meeting control not found: %w", automator.NewStepTimeout("trigger-create", createTimeout))
	}
	f.log.Infof("create: new meeting triggered")

	select {
	case p := <-newPage:
		f.log.Infof("create: meeting opened in new tab")
		if err := p.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateDomcontentloaded,
			Timeout: playwright.Float(15000),
		}); err != nil {
			f.log.Warnf("create: new tab load wait failed: %v", err)
		}
		return p, nil
	case <-time.After(f.cfg.NewPageTimeout):
		f.log.Infof("create: no new tab within %s, staying on current page", f.cfg.NewPageTimeout)
		return page, nil
	case <-ctx.Done():
		return nil, automator.NewStepTimeout("new-page-race", f.cfg.NewPageTimeout)
	}
}

// entryPrompts are the known interstitial dialogs between meeting creation
// and the live meeting UI. Their order and count vary, several render inside
// iframes, and new ones appear with UI updates, so the cascade clicks
// through whatever is currently visible and re-checks instead of assuming a
// fixed sequence.
var entryPrompts = []browser.Strategy{
	browser.Role("button", "join audio by computer"),
	browser.Role("button", "join with computer audio"),
	browser.CSS("button:has-text('Join Audio by Computer')"),
	browser.Role("button", "^(continue|got it|ok|agree|agree and proceed|accept|start)$"),
	browser.CSS("button:has-text('Start this Meeting')"),
	browser.CSS("button[aria-label*='dismiss' i]"),
}

// clearEntryPrompts clicks through the entry-prompt cascade until one round
// finds nothing to click. Bounded so a prompt that reappears forever cannot
// spin the join.
func (f *Flow) clearEntryPrompts(ctx context.Context, page playwright.Page) {
	const maxRounds = 6

	for round := 0; round < maxRounds; round++ {
		if !browser.TryClickAcrossFrames(ctx, page, entryPrompts, 1500*time.Millisecond) {
			f.log.Infof("prompts: none visible after %d round(s)", round)
			return
		}
		f.log.Infof("prompts: dismissed one (round %d)", round+1)

		select {
		case <-time.After(400 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
	f.log.Warnf("prompts: still appearing after %d rounds, moving on", maxRounds)
}

// muteControls match the toolbar control while audio is live ("Mute"), not
// while already muted ("Unmute" would match a bare substring check).
var muteControls = []browser.Strategy{
	browser.Role("button", "^mute"),
	browser.CSS("button[aria-label*='mute' i]:not([aria-label*='unmute' i])"),
}

var stopVideoControls = []browser.Strategy{
	browser.Role("button", "^stop video"),
	browser.CSS("button[aria-label*='stop video' i]"),
}

// ensureMicCameraOff silences the placeholder meeting. Best effort: the
// controls are often already off, and a missed click here never fails the
// join.
func (f *Flow) ensureMicCameraOff(ctx context.Context, page playwright.Page) {
	if browser.TryClickAcrossFrames(ctx, page, muteControls, f.cfg.MenuTimeout) {
		f.log.Infof("media: microphone muted")
	}
	if browser.TryClickAcrossFrames(ctx, page, stopVideoControls, f.cfg.MenuTimeout) {
		f.log.Infof("media: camera stopped")
	}
}

// strongSignals are sufficient on their own to declare the meeting active.
var strongSignals = []browser.Strategy{
	browser.Role("button", "^(leave|end)"),
	browser.CSS("button[aria-label*='leave' i]"),
	browser.CSS("button[aria-label*='end meeting' i]"),
	browser.Role("button", "^(mute|unmute)$"),
	browser.Role("button", "^(start video|stop video)$"),
}

// preJoinIndicators veto weak signals: some prompts contain text that
// false-positives against title or URL heuristics, so "active" additionally
// requires that no pre-join prompt is showing.
var preJoinIndicators = []browser.Strategy{
	browser.Text("Join Audio by Computer"),
	browser.Text("Start this Meeting"),
	browser.CSS("button:has-text('Join Audio by Computer')"),
}

// waitForActiveMeeting polls for the in-meeting condition: a strong signal,
// or enough weak signals to clear the configured threshold, while no
// pre-join prompt is visible. There is no authoritative "meeting started"
// event; this combination is the best available approximation.
func (f *Flow) waitForActiveMeeting(ctx context.Context, page playwright.Page) error {
	deadline := time.Now().Add(f.cfg.ActiveSignalTimeout)
	lastCapture := time.Now()

	for {
		strong, weak := f.observeSignals(ctx, page)
		if strong || weak >= f.cfg.WeakSignalThreshold {
			if _, prejoin := browser.FindAcrossFrames(ctx, page, preJoinIndicators, 0); !prejoin {
				f.log.Infof("active: confirmed (strong=%v weak=%d)", strong, weak)
				return nil
			}
			f.log.Infof("active: signals present but pre-join prompt still showing")
		}

		if f.diagInterval > 0 && time.Since(lastCapture) >= f.diagInterval {
			f.snap.Capture(page, "waiting-for-active")
			lastCapture = time.Now()
		}

		if time.Now().After(deadline) {
			return automator.NewStepTimeout("wait-for-active", f.cfg.ActiveSignalTimeout)
		}
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return automator.NewStepTimeout("wait-for-active", f.cfg.ActiveSignalTimeout)
		}
	}
}

// observeSignals gathers one round of evidence. Strong: an End/Leave control
// or a live toolbar control, anywhere in the frame tree. Weak: the URL has
// left the home/sign-in routes, or the title looks like a meeting.
func (f *Flow) observeSignals(ctx context.Context, page playwright.Page) (strong bool, weak int) {
	if _, found := browser.FindAcrossFrames(ctx, page, strongSignals, 0); found {
		strong = true
	}

	url := strings.ToLower(page.URL())
	if url != "" && !strings.Contains(url, "/signin") && url != strings.ToLower(f.cfg.HomeURL) && strings.Contains(url, "/wc/") {
		weak++
	}
	if title, err := page.Title(); err == nil && strings.Contains(strings.ToLower(title), "zoom meeting") {
		weak++
	}
	return strong, weak
}

// AwaitLogin navigates to the sign-in page and polls until the interactive
// login completes. The navigation error is not fatal: an already
// authenticated profile gets redirected and still passes the poll.
func (f *Flow) AwaitLogin(ctx context.Context, page playwright.Page, timeout time.Duration) error {
	if _, err := page.Goto(f.cfg.SigninURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(20000),
	}); err != nil {
		f.log.Warnf("login: navigation to sign-in failed (continuing): %v", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		if page.IsClosed() {
			return fmt.Errorf("login window closed: %w", automator.ErrAuthRequired)
		}
		if f.detector.IsAuthenticated(ctx, page) {
			return nil
		}
		if time.Now().After(deadline) {
			return automator.NewStepTimeout("await-login", timeout)
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return automator.NewStepTimeout("await-login", timeout)
		}
	}
}
