package workorder

// Status represents a work order lifecycle state
type Status string

const (
	StatusReceived                Status = "received"
	StatusAssigned                Status = "assigned"
	StatusEstimateNeeded          Status = "estimate_needed"
	StatusEstimatePendingApproval Status = "estimate_pending_approval"
	StatusEstimateApproved        Status = "estimate_approved"
	StatusInProgress              Status = "in_progress"
	StatusCompleted               Status = "completed"
	StatusCancelled               Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusReceived:                true,
	StatusAssigned:                true,
	StatusEstimateNeeded:          true,
	StatusEstimatePendingApproval: true,
	StatusEstimateApproved:        true,
	StatusInProgress:              true,
	StatusCompleted:               true,
	StatusCancelled:               true,
}

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusCancelled: true,
}

// lifecycleOrder lists every status in its natural progression order
var lifecycleOrder = []Status{
	StatusReceived,
	StatusAssigned,
	StatusEstimateNeeded,
	StatusEstimatePendingApproval,
	StatusEstimateApproved,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// AllStatuses returns every lifecycle status in progression order
func AllStatuses() []Status {
	out := make([]Status, len(lifecycleOrder))
	copy(out, lifecycleOrder)
	return out
}

// IsTerminal returns true if the status is terminal (no further transitions allowed)
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a valid lifecycle state
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
