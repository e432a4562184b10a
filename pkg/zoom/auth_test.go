package zoom

import (
	"testing"

	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetsync/zoomsync/pkg/config"
)

func compileDefaults(t *testing.T) []glob.Glob {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	patterns, err := cfg.CompileSigninPatterns()
	require.NoError(t, err)
	return patterns
}

func TestURLLooksUnauthenticated(t *testing.T) {
	patterns := compileDefaults(t)

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"sign-in page", "https://zoom.us/signin", true},
		{"sso page", "https://company.zoom.us/sso", true},
		{"google oauth redirect", "https://accounts.google.com/o/oauth2/v2/auth?client_id=x", true},
		{"verification page", "https://zoom.us/signin/verify_email", true},
		{"empty url is ambiguous", "", true},
		{"blank page is ambiguous", "about:blank", true},
		{"home page", "https://app.zoom.us/wc/home", false},
		{"meeting page", "https://app.zoom.us/wc/123456/start", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, urlLooksUnauthenticated(tt.url, patterns))
		})
	}
}

func TestURLLooksUnauthenticated_CaseInsensitive(t *testing.T) {
	patterns := compileDefaults(t)
	assert.True(t, urlLooksUnauthenticated("https://zoom.us/SignIn", patterns))
}
