package workorder

import "errors"

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status is not a valid lifecycle state
	ErrInvalidStatus = errors.New("invalid status")
)

// ValidationError is a guard failure with a user-facing, actionable message.
// These are surfaced verbatim, unlike infrastructure errors.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// guard failure types
const (
	ValidationEstimateNotSubmitted = "estimate_not_submitted"
	ValidationEstimateNotApproved  = "estimate_not_approved"
	ValidationTerminalState        = "terminal_state"
	ValidationUnknownTarget        = "unknown_target"
	ValidationNotPermitted         = "not_permitted"
)
