// Package allocation validates how a receipt's fixed total is distributed
// across work orders. It is stateless: all checks run over values already in
// memory and produce typed, user-facing errors and warnings.
package allocation

import (
	"fmt"
	"math"
)

const (
	// amounts above this raise a non-blocking warning
	largeAmountThreshold = 1000.00

	// tolerance for treating the allocated sum as equal to the total
	centEpsilon = 0.01
)

// Proposed is one (work order, amount) pair in a proposed allocation set
type Proposed struct {
	WorkOrderID int64   `json:"work_order_id"`
	Amount      float64 `json:"amount"`
}

// Issue is a single validation finding with an actionable message
type Issue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// Issue types
const (
	IssueSelection        = "selection"
	IssueAllocation       = "allocation"
	IssueInvalidSelection = "invalid_selection"
	IssueDuplicate        = "duplicate"
	IssueAmount           = "amount"
	IssueTotal            = "total"
	IssueLargeAmount      = "large_amount"
	IssueUnallocated      = "unallocated"
)

// Result is the outcome of validating a proposed allocation set
type Result struct {
	IsValid   bool    `json:"is_valid"`
	Errors    []Issue `json:"errors"`
	Warnings  []Issue `json:"warnings"`
	CanSubmit bool    `json:"can_submit"`
}

// Validate checks a proposed allocation set against the receipt total and
// the set of selected work orders. Rules are applied in a fixed order;
// errors block submission, warnings do not.
func Validate(total float64, proposed []Proposed, selectedIDs []int64) Result {
	var errs, warns []Issue

	if len(selectedIDs) == 0 {
		errs = append(errs, Issue{
			Type:    IssueSelection,
			Message: "At least one work order must be selected",
			Action:  "Select one or more work orders to allocate against",
		})
	}

	if len(selectedIDs) > 0 && len(proposed) == 0 {
		errs = append(errs, Issue{
			Type:    IssueAllocation,
			Message: "At least one allocation is required",
			Action:  "Enter an amount for at least one selected work order",
		})
	}

	selected := make(map[int64]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	seen := make(map[int64]bool, len(proposed))
	sum := 0.0

	for _, p := range proposed {
		if p.WorkOrderID <= 0 || !selected[p.WorkOrderID] {
			errs = append(errs, Issue{
				Type:    IssueInvalidSelection,
				Message: fmt.Sprintf("Allocation references work order %d which is not selected", p.WorkOrderID),
				Action:  "Remove the allocation or select the work order",
			})
		} else if seen[p.WorkOrderID] {
			errs = append(errs, Issue{
				Type:    IssueDuplicate,
				Message: fmt.Sprintf("Work order %d appears more than once in the allocation set", p.WorkOrderID),
				Action:  "Combine the duplicate allocations into one amount",
			})
		}
		seen[p.WorkOrderID] = true

		if p.Amount <= 0 {
			errs = append(errs, Issue{
				Type:    IssueAmount,
				Message: fmt.Sprintf("Allocation for work order %d must be greater than zero", p.WorkOrderID),
				Action:  "Enter a positive amount",
			})
		} else if p.Amount > total {
			errs = append(errs, Issue{
				Type:    IssueAmount,
				Message: fmt.Sprintf("Allocation for work order %d exceeds the receipt total", p.WorkOrderID),
				Action:  "Reduce the amount to at most the receipt total",
			})
		} else if p.Amount > largeAmountThreshold {
			warns = append(warns, Issue{
				Type:    IssueLargeAmount,
				Message: fmt.Sprintf("Allocation of %.2f for work order %d is unusually large", p.Amount, p.WorkOrderID),
				Action:  "Double-check the amount before submitting",
			})
		}

		sum += p.Amount
	}

	if len(proposed) > 0 {
		diff := roundCents(sum - total)
		switch {
		case diff > 0:
			errs = append(errs, Issue{
				Type:    IssueTotal,
				Message: fmt.Sprintf("Allocations exceed the receipt total by %.2f", diff),
				Action:  "Reduce allocations so the sum does not exceed the receipt total",
			})
		case diff < -centEpsilon:
			warns = append(warns, Issue{
				Type:    IssueUnallocated,
				Message: fmt.Sprintf("%.2f of the receipt total is unallocated", -diff),
				Action:  "Allocate the remainder or submit a partial allocation",
			})
		}
	}

	return Result{
		IsValid:   len(errs) == 0,
		Errors:    errs,
		Warnings:  warns,
		CanSubmit: len(errs) == 0 && len(proposed) > 0,
	}
}

// Suggested produces an even split of the total across the selected work
// orders, assigning the rounding remainder to the last item so the sum
// equals the total exactly to the cent.
func Suggested(total float64, selectedIDs []int64) []Proposed {
	if len(selectedIDs) == 0 || total <= 0 {
		return nil
	}

	totalCents := int64(math.Round(total * 100))
	share := totalCents / int64(len(selectedIDs))

	out := make([]Proposed, len(selectedIDs))
	assigned := int64(0)
	for i, id := range selectedIDs {
		cents := share
		if i == len(selectedIDs)-1 {
			cents = totalCents - assigned
		}
		assigned += cents
		out[i] = Proposed{WorkOrderID: id, Amount: float64(cents) / 100}
	}

	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
