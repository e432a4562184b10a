// Package config loads and validates the zoomsync daemon configuration.
// Configuration is read from a YAML file; every field has a working default
// so an empty (or missing) file yields a runnable daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the daemon.
type Config struct {
	// Server configures the local HTTP control API
	Server ServerConfig `yaml:"server"`

	// Browser configures the persistent automation browser
	Browser BrowserConfig `yaml:"browser"`

	// Zoom configures URLs and heuristics for the Zoom web client
	Zoom ZoomConfig `yaml:"zoom"`

	// Diagnostics configures screenshot capture for failure triage
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`

	// Logging configures the structured log output
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP control API consumed by the extension.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8765"
	Addr string `yaml:"addr"`
}

// BrowserConfig configures the persistent browser session.
type BrowserConfig struct {
	// ProfileDir is the on-disk profile directory. Login state lives here;
	// deleting it fully resets authentication.
	ProfileDir string `yaml:"profile_dir"`

	// ViewportWidth and ViewportHeight fix the page viewport
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`

	// ExtraArgs are additional Chromium launch flags (container environments
	// typically need --no-sandbox and --disable-dev-shm-usage)
	ExtraArgs []string `yaml:"extra_args"`

	// CloseTimeout bounds the graceful context close
	CloseTimeout time.Duration `yaml:"close_timeout"`

	// ForceCloseTimeout bounds the fallback browser-process close
	ForceCloseTimeout time.Duration `yaml:"force_close_timeout"`
}

// ZoomConfig configures the Zoom web client flow.
type ZoomConfig struct {
	// HomeURL is the authenticated landing page of the web client
	HomeURL string `yaml:"home_url"`

	// SigninURL is the interactive sign-in page used by the login flow
	SigninURL string `yaml:"signin_url"`

	// SigninURLPatterns are glob patterns that classify a URL as part of the
	// sign-in / SSO / verification flow. A page whose URL matches any pattern
	// is treated as not authenticated.
	SigninURLPatterns []string `yaml:"signin_url_patterns"`

	// JoinTimeout bounds one whole join attempt
	JoinTimeout time.Duration `yaml:"join_timeout"`

	// ActiveSignalTimeout bounds the in-meeting confirmation poll
	ActiveSignalTimeout time.Duration `yaml:"active_signal_timeout"`

	// NewPageTimeout bounds the race for a new tab after triggering create
	NewPageTimeout time.Duration `yaml:"new_page_timeout"`

	// MenuTimeout bounds best-effort menu and prompt discovery
	MenuTimeout time.Duration `yaml:"menu_timeout"`

	// LoginTimeout bounds the interactive login wait
	LoginTimeout time.Duration `yaml:"login_timeout"`

	// WeakSignalThreshold is the number of weak in-meeting signals that,
	// absent a strong signal, are together accepted as "meeting active".
	// The active-meeting heuristic is tunable, not a contract.
	WeakSignalThreshold int `yaml:"weak_signal_threshold"`
}

// DiagnosticsConfig configures stuck-state snapshots.
type DiagnosticsConfig struct {
	// Enabled turns screenshot capture on
	Enabled bool `yaml:"enabled"`

	// Dir is the directory screenshots are written to
	Dir string `yaml:"dir"`

	// Interval, when non-zero, enables periodic snapshots while a join is
	// still in the starting state
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Dir is the log directory; empty means ~/.zoomsync/logs
	Dir string `yaml:"dir"`
}

// Default values applied by Load when the file leaves fields unset.
const (
	DefaultAddr                = "127.0.0.1:8765"
	DefaultViewportWidth       = 1280
	DefaultViewportHeight      = 800
	DefaultCloseTimeout        = 10 * time.Second
	DefaultForceCloseTimeout   = 5 * time.Second
	DefaultHomeURL             = "https://app.zoom.us/wc/home"
	DefaultSigninURL           = "https://zoom.us/signin"
	DefaultJoinTimeout         = 90 * time.Second
	DefaultActiveSignalTimeout = 26 * time.Second
	DefaultNewPageTimeout      = 4 * time.Second
	DefaultMenuTimeout         = 3 * time.Second
	DefaultLoginTimeout        = 3 * time.Minute
	DefaultWeakSignalThreshold = 2
)

// DefaultSigninURLPatterns match Zoom's sign-in, SSO and verification routes.
var DefaultSigninURLPatterns = []string{
	"*signin*",
	"*login*",
	"*sso*",
	"*verify*",
	"*auth*",
}

// Load reads configuration from path. A missing file is not an error; the
// defaults are returned. An unreadable or malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Browser.ProfileDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.Browser.ProfileDir = filepath.Join(home, ".zoomsync", "profile")
		} else {
			c.Browser.ProfileDir = filepath.Join(os.TempDir(), "zoomsync-profile")
		}
	}
	if c.Browser.ViewportWidth == 0 {
		c.Browser.ViewportWidth = DefaultViewportWidth
	}
	if c.Browser.ViewportHeight == 0 {
		c.Browser.ViewportHeight = DefaultViewportHeight
	}
	if c.Browser.CloseTimeout == 0 {
		c.Browser.CloseTimeout = DefaultCloseTimeout
	}
	if c.Browser.ForceCloseTimeout == 0 {
		c.Browser.ForceCloseTimeout = DefaultForceCloseTimeout
	}
	if c.Zoom.HomeURL == "" {
		c.Zoom.HomeURL = DefaultHomeURL
	}
	if c.Zoom.SigninURL == "" {
		c.Zoom.SigninURL = DefaultSigninURL
	}
	if len(c.Zoom.SigninURLPatterns) == 0 {
		c.Zoom.SigninURLPatterns = append([]string(nil), DefaultSigninURLPatterns...)
	}
	if c.Zoom.JoinTimeout == 0 {
		c.Zoom.JoinTimeout = DefaultJoinTimeout
	}
	if c.Zoom.ActiveSignalTimeout == 0 {
		c.Zoom.ActiveSignalTimeout = DefaultActiveSignalTimeout
	}
	if c.Zoom.NewPageTimeout == 0 {
		c.Zoom.NewPageTimeout = DefaultNewPageTimeout
	}
	if c.Zoom.MenuTimeout == 0 {
		c.Zoom.MenuTimeout = DefaultMenuTimeout
	}
	if c.Zoom.LoginTimeout == 0 {
		c.Zoom.LoginTimeout = DefaultLoginTimeout
	}
	if c.Zoom.WeakSignalThreshold == 0 {
		c.Zoom.WeakSignalThreshold = DefaultWeakSignalThreshold
	}
	if c.Diagnostics.Dir == "" {
		c.Diagnostics.Dir = filepath.Join(os.TempDir(), "zoomsync-diagnostics")
	}
}

// Validate checks internal consistency beyond what defaulting can fix.
func (c *Config) Validate() error {
	if c.Zoom.WeakSignalThreshold < 1 {
		return fmt.Errorf("zoom.weak_signal_threshold must be >= 1, got %d", c.Zoom.WeakSignalThreshold)
	}
	for _, pattern := range c.Zoom.SigninURLPatterns {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid signin_url_pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// CompileSigninPatterns compiles the sign-in URL glob patterns. Validate
// guarantees they compile, so an error here indicates a programming mistake.
func (c *Config) CompileSigninPatterns() ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(c.Zoom.SigninURLPatterns))
	for _, pattern := range c.Zoom.SigninURLPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid signin_url_pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
