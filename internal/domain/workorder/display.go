package workorder

// Display holds the user-facing presentation of a status
type Display struct {
	Label       string `json:"label"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

var statusDisplays = map[Status]Display{
	StatusReceived:                {"Received", "gray", "Submitted by the partner, awaiting assignment"},
	StatusAssigned:                {"Assigned", "blue", "Assigned to a subcontractor or employee"},
	StatusEstimateNeeded:          {"Estimate Needed", "orange", "An estimate must be prepared and submitted"},
	StatusEstimatePendingApproval: {"Estimate Pending Approval", "yellow", "Estimate submitted, awaiting partner approval"},
	StatusEstimateApproved:        {"Estimate Approved", "teal", "Partner approved the estimate"},
	StatusInProgress:              {"In Progress", "indigo", "Work is underway"},
	StatusCompleted:               {"Completed", "green", "Work finished and reported"},
	StatusCancelled:               {"Cancelled", "red", "Work order was cancelled"},
}

// DisplayFor returns the presentation for a status, falling back to the raw
// value for anything outside the closed enum.
func DisplayFor(s Status) Display {
	if d, ok := statusDisplays[s]; ok {
		return d
	}
	return Display{Label: string(s), Color: "gray", Description: ""}
}
