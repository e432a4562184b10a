package automator

// State is the orchestrator's public state. It is the only persistent-feeling
// data in the system and always resets to a safe baseline (available or
// auth_required) when the browser session disappears.
type State string

const (
	// StateAvailable means no meeting is running and the automator is ready
	StateAvailable State = "available"

	// StateStarting means a join or login operation is in progress
	StateStarting State = "starting"

	// StateInMeeting means the placeholder meeting is believed active
	StateInMeeting State = "in_meeting"

	// StateAuthRequired means the web session is signed out; join will fail
	// until login succeeds
	StateAuthRequired State = "auth_required"

	// StateError means the last operation failed unexpectedly
	StateError State = "error"
)

// Label returns the human-readable label exposed by the status endpoint.
func (s State) Label() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateAuthRequired:
		return "Auth Required"
	case StateError:
		return "Error"
	case StateInMeeting:
		return "In Meeting"
	default:
		return "Available"
	}
}

// Tristate is a boolean with an explicit unknown, used for the authenticated
// flag before any page has been inspected.
type Tristate string

const (
	TriTrue    Tristate = "true"
	TriFalse   Tristate = "false"
	TriUnknown Tristate = "unknown"
)

// Snapshot is the read-only projection of the automator's state exposed to
// callers. It never drives behavior, only observability.
type Snapshot struct {
	State         State    `json:"state"`
	Authenticated Tristate `json:"authenticated"`
	InMeeting     bool     `json:"inMeeting"`
	Message       string   `json:"message"`
}

// Label returns the human-readable label for the snapshot's state, with the
// in-meeting flag taking precedence.
func (s Snapshot) Label() string {
	if s.InMeeting {
		return "In Meeting"
	}
	return s.State.Label()
}
