package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategy_Selector(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		want     string
	}{
		{
			name:     "role with name regex",
			strategy: Role("button", "New meeting"),
			want:     "role=button[name=/New meeting/i]",
		},
		{
			name:     "role without name",
			strategy: Role("dialog", ""),
			want:     "role=dialog",
		},
		{
			name:     "substring text",
			strategy: Text("Join Audio"),
			want:     "text=Join Audio",
		},
		{
			name:     "exact text",
			strategy: TextExact("Leave"),
			want:     `text="Leave"`,
		},
		{
			name:     "css passthrough",
			strategy: CSS("button[aria-label*='leave' i]"),
			want:     "button[aria-label*='leave' i]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.strategy.Selector())
		})
	}
}

func TestStrategy_String(t *testing.T) {
	s := Role("button", "Leave")
	assert.Equal(t, "role(role=button[name=/Leave/i])", s.String())
}

func TestSanitizeStage(t *testing.T) {
	assert.Equal(t, "wait-for-active", sanitizeStage("Wait For Active"))
	assert.Equal(t, "step-3-prompts", sanitizeStage("step 3/prompts"))
}
