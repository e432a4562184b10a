// Package automator orchestrates the presence meeting: it owns the public
// state machine, serializes all operations against the single browser
// session, and applies the retry and cleanup policy around the meeting-start
// procedure. Success and failure are heuristic judgements of the web UI, so
// every operation logs entry, sub-steps and exit with the current snapshot.
package automator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/meetsync/zoomsync/pkg/browser"
	"github.com/meetsync/zoomsync/pkg/logging"
)

// SessionDriver is the slice of the browser session manager the automator
// needs. *browser.Manager satisfies it; tests substitute a fake.
type SessionDriver interface {
	// Ensure opens the session if needed and returns it
	Ensure(headless bool) (*browser.Session, error)

	// Page returns the session's primary page, creating one if needed
	Page() (playwright.Page, error)

	// AdoptPage replaces the primary page after a new tab took over
	AdoptPage(page playwright.Page)

	// Active reports whether a session is open
	Active() bool

	// Close tears the session down; idempotent, bounded, never fails
	Close()

	// SetOnClosed registers the session-loss callback
	SetOnClosed(fn func())
}

// Flow is the platform-specific page automation the automator drives.
// zoom.Flow is the real implementation; tests substitute a fake.
type Flow interface {
	// EnsureAuthenticated navigates to the home page and reports whether
	// the web session is signed in
	EnsureAuthenticated(ctx context.Context, page playwright.Page) (bool, error)

	// StartMeeting runs the meeting-start procedure and returns the page
	// the meeting ended up on (a new tab may have taken over)
	StartMeeting(ctx context.Context, session *browser.Session, page playwright.Page) (playwright.Page, error)

	// AwaitLogin navigates to sign-in and polls until the user completes
	// the interactive login or the timeout elapses
	AwaitLogin(ctx context.Context, page playwright.Page, timeout time.Duration) error
}

// Options tunes the automator.
type Options struct {
	// JoinTimeout bounds one whole join attempt
	JoinTimeout time.Duration

	// LoginTimeout is the default interactive login wait
	LoginTimeout time.Duration
}

// Automator is the orchestrator. All public operations funnel through a
// serial FIFO queue; the state fields are mutated only via transition and
// its helpers, including from the session-loss callback.
type Automator struct {
	queue  opQueue
	driver SessionDriver
	flow   Flow
	log    *logging.Logger
	opts   Options

	mu            sync.Mutex
	state         State
	authenticated Tristate
	inMeeting     bool
	message       string
}

// New creates an automator and wires itself up as the driver's session-loss
// callback.
func New(driver SessionDriver, flow Flow, opts Options, log *logging.Logger) *Automator {
	if opts.JoinTimeout == 0 {
		opts.JoinTimeout = 90 * time.Second
	}
	if opts.LoginTimeout == 0 {
		opts.LoginTimeout = 3 * time.Minute
	}
	a := &Automator{
		driver:        driver,
		flow:          flow,
		log:           log,
		opts:          opts,
		state:         StateAvailable,
		authenticated: TriUnknown,
		message:       "idle",
	}
	driver.SetOnClosed(a.sessionLost)
	return a
}

// Status returns the current read-only snapshot.
func (a *Automator) Status() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		State:         a.state,
		Authenticated: a.authenticated,
		InMeeting:     a.inMeeting,
		Message:       a.message,
	}
}

// transition is the single mutation entry point for the state machine.
// The in-meeting flag is derived from the state so it can never survive a
// transition away from in_meeting.
func (a *Automator) transition(state State, message string) {
	a.mu.Lock()
	a.state = state
	a.message = message
	a.inMeeting = state == StateInMeeting
	if state == StateAuthRequired {
		a.authenticated = TriFalse
	}
	snap := Snapshot{State: a.state, Authenticated: a.authenticated, InMeeting: a.inMeeting, Message: a.message}
	a.mu.Unlock()

	a.log.Infof("state -> %s (%s) [auth=%s inMeeting=%v]", snap.State, snap.Message, snap.Authenticated, snap.InMeeting)
}

func (a *Automator) setAuthenticated(authed bool) {
	a.mu.Lock()
	if authed {
		a.authenticated = TriTrue
	} else {
		a.authenticated = TriFalse
	}
	a.mu.Unlock()
}

// sessionLost fires whenever the browser session goes away, by any cause.
// It routes through transition so the in-meeting flag can never go stale.
// It deliberately does nothing beyond normalizing state: it can race the
// main flow's own cleanup.
func (a *Automator) sessionLost() {
	a.mu.Lock()
	state := a.state
	authenticated := a.authenticated
	a.inMeeting = false
	a.mu.Unlock()

	if state != StateInMeeting && state != StateStarting {
		return
	}
	a.transition(baseline(authenticated), "session closed")
}

// baseline is the safe state to return to once no session exists.
func baseline(authenticated Tristate) State {
	if authenticated == TriFalse {
		return StateAuthRequired
	}
	return StateAvailable
}

// Join starts the placeholder meeting. Calling it while already in a meeting
// is a no-op returning success. Timeout-class failures are retried exactly
// once with a full session teardown between attempts; any failure closes the
// session before the error propagates so a failed join never leaks a browser
// context.
func (a *Automator) Join() error {
	return a.queue.Do(a.doJoin)
}

func (a *Automator) doJoin() error {
	if a.Status().InMeeting {
		a.log.Infof("join: already in meeting, nothing to do")
		return nil
	}

	a.log.Infof("join: starting")
	a.transition(StateStarting, "starting presence meeting")

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			a.log.Warnf("join: retrying after timeout (attempt %d of 2)", attempt+1)
			a.driver.Close()
			a.transition(StateStarting, "retrying presence meeting")
		}

		err := a.attemptJoin()
		if err == nil {
			a.transition(StateInMeeting, "presence meeting active")
			a.log.Infof("join: succeeded")
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrAuthRequired) {
			a.driver.Close()
			a.transition(StateAuthRequired, "sign-in required")
			a.log.Warnf("join: authentication required")
			return err
		}
		if !IsTimeout(err) {
			break
		}
		a.log.Warnf("join: attempt %d timed out: %v", attempt+1, err)
	}

	a.driver.Close()
	a.transition(StateError, lastErr.Error())
	a.log.Errorf("join: failed: %v (snapshot=%+v)", lastErr, a.Status())
	return lastErr
}

func (a *Automator) attemptJoin() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.JoinTimeout)
	defer cancel()

	session, err := a.driver.Ensure(true)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	page, err := a.driver.Page()
	if err != nil {
		return fmt.Errorf("failed to get page: %w", err)
	}

	authed, err := a.flow.EnsureAuthenticated(ctx, page)
	if err != nil {
		return fmt.Errorf("auth check failed: %w", err)
	}
	a.setAuthenticated(authed)
	if !authed {
		return ErrAuthRequired
	}

	meetingPage, err := a.flow.StartMeeting(ctx, session, page)
	if err != nil {
		return err
	}
	if meetingPage != nil {
		a.driver.AdoptPage(meetingPage)
	}
	return nil
}

// Login force-closes any existing session, opens a visible browser on the
// sign-in page and waits for the user to complete authentication. A zero
// timeout uses the configured default. The session is closed again on both
// outcomes; only the profile directory needs to survive.
func (a *Automator) Login(timeout time.Duration) error {
	return a.queue.Do(func() error { return a.doLogin(timeout) })
}

func (a *Automator) doLogin(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = a.opts.LoginTimeout
	}

	a.log.Infof("login: starting interactive sign-in (timeout=%s)", timeout)
	a.driver.Close()
	a.transition(StateStarting, "waiting for interactive sign-in")

	if _, err := a.driver.Ensure(false); err != nil {
		a.transition(StateError, "failed to open login browser")
		return fmt.Errorf("failed to open login session: %w", err)
	}
	page, err := a.driver.Page()
	if err != nil {
		a.driver.Close()
		a.transition(StateError, "failed to open login page")
		return fmt.Errorf("failed to get login page: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	waitErr := a.flow.AwaitLogin(ctx, page, timeout)
	a.driver.Close()

	if waitErr != nil {
		if IsTimeout(waitErr) || errors.Is(waitErr, ErrAuthRequired) {
			a.transition(StateAuthRequired, "sign-in not completed")
			a.log.Warnf("login: not completed: %v", waitErr)
			return waitErr
		}
		a.transition(StateError, waitErr.Error())
		a.log.Errorf("login: failed: %v", waitErr)
		return waitErr
	}

	a.setAuthenticated(true)
	a.transition(StateAvailable, "signed in")
	a.log.Infof("login: succeeded")
	return nil
}

// Leave tears the session down. There is no attempt to click a leave button
// in the meeting UI: destroying the whole session is simpler and strictly
// more reliable. Leave is a cheap no-op when no session exists, and in every
// case resolves within the session manager's bounded close timeouts.
func (a *Automator) Leave() error {
	return a.queue.Do(a.doLeave)
}

func (a *Automator) doLeave() error {
	if !a.driver.Active() {
		a.log.Infof("leave: no active session")
		a.normalize("no active session")
		return nil
	}

	a.log.Infof("leave: closing session")
	a.driver.Close()
	a.normalize("session closed")
	a.log.Infof("leave: done")
	return nil
}

// normalize resets to the safe baseline after the session is gone.
func (a *Automator) normalize(message string) {
	a.mu.Lock()
	authenticated := a.authenticated
	a.mu.Unlock()
	a.transition(baseline(authenticated), message)
}

// Dispose is Leave for process shutdown.
func (a *Automator) Dispose() error {
	return a.queue.Do(func() error {
		a.log.Infof("dispose: shutting down")
		a.driver.Close()
		a.normalize("disposed")
		return nil
	})
}
