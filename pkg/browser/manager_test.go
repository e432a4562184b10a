package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetsync/zoomsync/pkg/logging"
)

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	logging.SetDirectory(t.TempDir())
	t.Cleanup(func() { logging.SetDirectory("") })
	log, err := logging.NewLogger("browser-test")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return NewManager(opts, log)
}

func TestNewManager_AppliesDefaults(t *testing.T) {
	m := newTestManager(t, Options{ProfileDir: "/tmp/profile"})

	assert.Equal(t, DefaultViewportWidth, m.opts.ViewportWidth)
	assert.Equal(t, DefaultViewportHeight, m.opts.ViewportHeight)
	assert.Equal(t, DefaultCloseTimeout, m.opts.CloseTimeout)
	assert.Equal(t, DefaultForceCloseTimeout, m.opts.ForceCloseTimeout)
}

func TestNewManager_KeepsExplicitOptions(t *testing.T) {
	m := newTestManager(t, Options{
		ViewportWidth:     800,
		ViewportHeight:    600,
		CloseTimeout:      time.Second,
		ForceCloseTimeout: 2 * time.Second,
	})

	assert.Equal(t, 800, m.opts.ViewportWidth)
	assert.Equal(t, 600, m.opts.ViewportHeight)
	assert.Equal(t, time.Second, m.opts.CloseTimeout)
	assert.Equal(t, 2*time.Second, m.opts.ForceCloseTimeout)
}

func TestPage_WithoutSession(t *testing.T) {
	m := newTestManager(t, Options{})

	_, err := m.Page()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active session")
}

func TestActive_FalseBeforeEnsure(t *testing.T) {
	m := newTestManager(t, Options{})
	assert.False(t, m.Active())
}

func TestClose_NoSessionIsNoOp(t *testing.T) {
	m := newTestManager(t, Options{})

	closedFired := false
	m.SetOnClosed(func() { closedFired = true })

	m.Close()
	m.Close()

	assert.False(t, closedFired, "close with no session must not notify")
	assert.False(t, m.Active())
}

func TestCloseWithTimeout_FastCloseFinishes(t *testing.T) {
	m := newTestManager(t, Options{})

	ok := m.closeWithTimeout(func() error { return nil }, time.Second)
	assert.True(t, ok)
}

func TestCloseWithTimeout_ErrorStillCountsAsFinished(t *testing.T) {
	m := newTestManager(t, Options{})

	ok := m.closeWithTimeout(func() error { return errors.New("target closed") }, time.Second)
	assert.True(t, ok, "an errored close still frees the session")
}

func TestCloseWithTimeout_HungCloseIsBounded(t *testing.T) {
	m := newTestManager(t, Options{})

	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	ok := m.closeWithTimeout(func() error {
		<-block
		return nil
	}, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Less(t, elapsed, time.Second, "hung close must not block past its deadline")
}
