package climate

import "fmt"

// SessionState is a position in the product generation workflow.
type SessionState int

const (
	StateUnknown   SessionState = -1
	StateStarted   SessionState = 0
	StateCreated   SessionState = 1
	StateDisplay   SessionState = 2
	StateDisplayed SessionState = 3
	StateFormatted SessionState = 4
	StateReview    SessionState = 5
	StateSent      SessionState = 6
	StateCancelled SessionState = 7
	StateFailed    SessionState = 8
)

var stateNames = map[SessionState]string{
	StateUnknown:   "UNKNOWN",
	StateStarted:   "STARTED",
	StateCreated:   "CREATED",
	StateDisplay:   "DISPLAY",
	StateDisplayed: "DISPLAYED",
	StateFormatted: "FORMATTED",
	StateReview:    "REVIEW",
	StateSent:      "SENT",
	StateCancelled: "CANCELLED",
	StateFailed:    "FAILED",
}

// String returns the state name.
func (s SessionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// StateFromValue maps a persisted code back to a state. Unrecognized codes
// become StateUnknown.
func StateFromValue(v int) SessionState {
	s := SessionState(v)
	if _, ok := stateNames[s]; ok {
		return s
	}
	return StateUnknown
}

// Next returns the following state on the forward chain. It is only used to
// describe progress; SENT and off-chain states return themselves.
func (s SessionState) Next() SessionState {
	if s >= StateStarted && s < StateSent {
		return s + 1
	}
	return s
}

// Describe renders the progress text stored with a state change.
func (s SessionState) Describe() string {
	return fmt.Sprintf("%s Next: %s", s, s.Next())
}

// StatusCode is the outcome of the current state.
type StatusCode int

const (
	StatusSuccess   StatusCode = 1
	StatusWorking   StatusCode = 2
	StatusFailed    StatusCode = 3
	StatusCancelled StatusCode = 4
	StatusUnknown   StatusCode = 5
)

// String returns the status code name.
func (c StatusCode) String() string {
	switch c {
	case StatusSuccess:
		return "SUCCESS"
	case StatusWorking:
		return "WORKING"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// StatusFromValue maps a persisted code back to a status code.
func StatusFromValue(v int) StatusCode {
	c := StatusCode(v)
	if c >= StatusSuccess && c <= StatusUnknown {
		return c
	}
	return StatusUnknown
}

// Status pairs a status code with a human readable description.
type Status struct {
	Code        StatusCode `json:"code"`
	Description string     `json:"description"`
}

// IsTerminated reports whether a session with this state and status can no
// longer progress.
func IsTerminated(state SessionState, code StatusCode) bool {
	return state == StateSent || state == StateCancelled || state == StateFailed ||
		code == StatusCancelled || code == StatusFailed
}
