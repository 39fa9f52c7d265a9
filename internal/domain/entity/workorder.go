package entity

import "time"

// WorkOrder is a unit of requested work tracked through a fixed lifecycle.
// Work orders are never physically deleted in the normal flow; inactive
// records are soft-deactivated via the Active flag.
type WorkOrder struct {
	ID                      int64
	Number                  string // server-generated, WO-{year}-{seq}
	Title                   string
	Description             string
	Status                  string
	OrganizationID          int64
	Trade                   string
	PartnerEstimateApproved bool
	Active                  bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// AssignmentType distinguishes the single conceptual lead from secondary assignees
type AssignmentType string

const (
	AssignmentLead      AssignmentType = "lead"
	AssignmentSecondary AssignmentType = "secondary"
)

// Assignment links a work order to an assignee (user or organization)
type Assignment struct {
	ID             int64
	WorkOrderID    int64
	AssigneeID     int64
	AssigneeOrgID  int64
	Type           AssignmentType
	ReportComplete bool
	CreatedAt      time.Time
}

// Report approval statuses
const (
	ReportStatusSubmitted = "submitted"
	ReportStatusReviewed  = "reviewed"
	ReportStatusApproved  = "approved"
	ReportStatusRejected  = "rejected"
)

// Report is a subcontractor/employee record of work performed against a
// work order. Only approved reports feed billing.
type Report struct {
	ID               int64
	WorkOrderID      int64
	AuthorID         int64
	Status           string
	Notes            string
	InvoiceAmount    *float64 // optional; set when the report is billable
	PartnerInvoiceID *int64   // stamped when consumed by a partner invoice
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
