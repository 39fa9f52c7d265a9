package entity

import "time"

// SubcontractorBill statuses
const (
	BillStatusDraft     = "draft"
	BillStatusSubmitted = "submitted"
	BillStatusApproved  = "approved"
	BillStatusRejected  = "rejected"
	BillStatusPaid      = "paid"
)

// Partner billing statuses for a bill consumed (or not) by a partner invoice
const (
	PartnerBillingPending  = "pending"
	PartnerBillingInvoiced = "invoiced"
)

// SubcontractorBill aggregates amounts owed to a subcontractor for one or
// more work orders. Invariant: TotalAmount equals the sum of its line items.
type SubcontractorBill struct {
	ID                   int64
	Number               string
	ExternalNumber       string
	SubcontractorOrgID   int64
	TotalAmount          float64
	Status               string
	PartnerBillingStatus string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PartnerInvoice statuses
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusSubmitted = "submitted"
	InvoiceStatusApproved  = "approved"
	InvoiceStatusRejected  = "rejected"
	InvoiceStatusPaid      = "paid"
)

// PartnerInvoice is generated from approved bills/reports for a single
// partner organization. Total = Subtotal * (1 + MarkupPercentage/100).
type PartnerInvoice struct {
	ID               int64
	Number           string // PI-{year}-{5-digit seq}
	PartnerOrgID     int64
	MarkupPercentage float64
	Subtotal         float64
	TotalAmount      float64
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PartnerInvoiceLineItem references exactly one source bill or report,
// never both. The markup is already applied to Amount.
type PartnerInvoiceLineItem struct {
	ID           int64
	InvoiceID    int64
	Description  string
	Amount       float64
	SourceBillID *int64
	SourceRepID  *int64
	CreatedAt    time.Time
}
