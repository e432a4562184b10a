package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultHomeURL, cfg.Zoom.HomeURL)
	assert.Equal(t, DefaultSigninURL, cfg.Zoom.SigninURL)
	assert.Equal(t, DefaultWeakSignalThreshold, cfg.Zoom.WeakSignalThreshold)
	assert.Equal(t, DefaultCloseTimeout, cfg.Browser.CloseTimeout)
	assert.Equal(t, DefaultForceCloseTimeout, cfg.Browser.ForceCloseTimeout)
	assert.NotEmpty(t, cfg.Browser.ProfileDir)
	assert.Equal(t, DefaultSigninURLPatterns, cfg.Zoom.SigninURLPatterns)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: "127.0.0.1:9999"
zoom:
  home_url: "https://example.test/home"
  weak_signal_threshold: 3
  active_signal_timeout: 10s
browser:
  profile_dir: "/tmp/test-profile"
  extra_args:
    - "--no-sandbox"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "https://example.test/home", cfg.Zoom.HomeURL)
	assert.Equal(t, 3, cfg.Zoom.WeakSignalThreshold)
	assert.Equal(t, 10*time.Second, cfg.Zoom.ActiveSignalTimeout)
	assert.Equal(t, "/tmp/test-profile", cfg.Browser.ProfileDir)
	assert.Equal(t, []string{"--no-sandbox"}, cfg.Browser.ExtraArgs)

	// Unset fields still get defaults
	assert.Equal(t, DefaultSigninURL, cfg.Zoom.SigninURL)
	assert.Equal(t, DefaultJoinTimeout, cfg.Zoom.JoinTimeout)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_RejectsBadGlobPattern(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Zoom.SigninURLPatterns = []string{"[unterminated"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signin_url_pattern")
}

func TestCompileSigninPatterns(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	globs, err := cfg.CompileSigninPatterns()
	require.NoError(t, err)
	require.Len(t, globs, len(DefaultSigninURLPatterns))

	assert.True(t, globs[0].Match("https://zoom.us/signin"))
	assert.False(t, globs[0].Match("https://app.zoom.us/wc/home"))
}
