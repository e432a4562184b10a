package automator

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"step timeout", NewStepTimeout("wait-for-active", 26*time.Second), true},
		{"wrapped step timeout", fmt.Errorf("join failed: %w", NewStepTimeout("x", time.Second)), true},
		{"playwright navigation timeout", errors.New("playwright: Timeout 30000ms exceeded"), true},
		{"auth required", ErrAuthRequired, false},
		{"plain failure", errors.New("create control vanished"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTimeout(tt.err))
		})
	}
}

func TestStepTimeoutError_Message(t *testing.T) {
	err := NewStepTimeout("new-page-race", 4*time.Second)
	assert.Equal(t, "step new-page-race timed out after 4s", err.Error())
}

func TestErrAuthRequired_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("login window closed: %w", ErrAuthRequired)
	assert.ErrorIs(t, wrapped, ErrAuthRequired)
	assert.False(t, IsTimeout(wrapped))
}
