package workorder

import (
	"fmt"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

// estimateApprovedGuard blocks any entry into in_progress until the partner
// has approved the estimate. This is the single authoritative "estimate
// before work" rule; it is attached to every edge into in_progress so no
// originating state can bypass it.
func estimateApprovedGuard(order *entity.WorkOrder) *ValidationError {
	if order.PartnerEstimateApproved {
		return nil
	}
	return &ValidationError{
		Type:    ValidationEstimateNotApproved,
		Message: "Estimate must be approved by partner before work can begin",
		Action:  "Request partner approval of the estimate",
	}
}

// NewLifecycleMachine builds the standard work order transition table
func NewLifecycleMachine() Machine {
	b := NewBuilder()

	b.Configure(StatusReceived).
		Permit(StatusAssigned).
		Permit(StatusEstimateNeeded).
		Permit(StatusCancelled)

	b.Configure(StatusAssigned).
		Permit(StatusEstimateNeeded).
		PermitIf(StatusInProgress, estimateApprovedGuard).
		Permit(StatusCancelled)

	// From estimate_needed only cancellation or estimate submission is
	// reachable; everything else is rejected by ValidateTransition with an
	// estimate_not_submitted error.
	b.Configure(StatusEstimateNeeded).
		Permit(StatusEstimatePendingApproval).
		Permit(StatusCancelled)

	b.Configure(StatusEstimatePendingApproval).
		Permit(StatusEstimateApproved).
		Permit(StatusEstimateNeeded).
		PermitIf(StatusInProgress, estimateApprovedGuard).
		Permit(StatusCancelled)

	b.Configure(StatusEstimateApproved).
		PermitIf(StatusInProgress, estimateApprovedGuard).
		Permit(StatusCancelled)

	b.Configure(StatusInProgress).
		Permit(StatusCompleted).
		Permit(StatusCancelled)

	return b.Build()
}

// ValidateTransition is the authoritative guard for a status change. Guard
// failures come back as *ValidationError with a verbatim, actionable
// message; structurally illegal edges come back wrapped in
// ErrInvalidTransition.
func ValidateTransition(m Machine, order *entity.WorkOrder, to Status) error {
	from := Status(order.Status)

	if !to.IsValid() {
		return &ValidationError{
			Type:    ValidationUnknownTarget,
			Message: fmt.Sprintf("Unknown target status %q", string(to)),
			Action:  "Choose a valid work order status",
		}
	}

	if from.IsTerminal() {
		return &ValidationError{
			Type:    ValidationTerminalState,
			Message: fmt.Sprintf("Work order is already %s and cannot change status", from),
			Action:  "No further action is possible on this work order",
		}
	}

	if from == StatusEstimateNeeded && to != StatusCancelled && to != StatusEstimatePendingApproval {
		return &ValidationError{
			Type:    ValidationEstimateNotSubmitted,
			Message: "Estimate must be submitted first",
			Action:  "Submit the estimate for partner approval",
		}
	}

	return m.Validate(order, to)
}
