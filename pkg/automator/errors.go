package automator

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAuthRequired is the distinct, non-retryable failure reported when the
// web session is signed out. Callers are expected to run login before
// retrying join.
var ErrAuthRequired = errors.New("authentication required")

// StepTimeoutError marks a bounded step that ran out of time. Join retries
// timeout-class failures exactly once with a fresh session; all other
// failures propagate immediately.
type StepTimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %s timed out after %s", e.Step, e.Timeout)
}

// NewStepTimeout builds a StepTimeoutError for the named step.
func NewStepTimeout(step string, timeout time.Duration) *StepTimeoutError {
	return &StepTimeoutError{Step: step, Timeout: timeout}
}

// IsTimeout classifies an error as timeout-class. It covers our own step
// deadlines and Playwright's navigation/element-wait timeouts, which only
// announce themselves in the error message.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var stepErr *StepTimeoutError
	if errors.As(err, &stepErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
