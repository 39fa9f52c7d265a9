package entity

import "time"

// Email event kinds; each maps to a stored template
const (
	EmailEventReportSubmitted      = "report_submitted"
	EmailEventWorkOrderCompleted   = "work_order_completed"
	EmailEventWorkOrderAssigned    = "work_order_assigned"
	EmailEventWelcome              = "welcome"
	EmailEventInvoiceSubmitted     = "invoice_submitted"
	EmailEventInvoiceStatusChanged = "invoice_status_changed"
)

// Email log statuses
const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// EmailTemplate is a stored subject/html/text template with {{field}}
// placeholders interpolated at send time.
type EmailTemplate struct {
	ID        int64
	Event     string
	Subject   string
	HTMLBody  string
	TextBody  string
	UpdatedAt time.Time
}

// EmailLog records every dispatch attempt through the email provider
type EmailLog struct {
	ID                int64
	Event             string
	Recipient         string
	Subject           string
	HTMLBody          string
	TextBody          string
	Status            string
	ProviderMessageID string
	ErrorDetail       string
	Attempts          int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AuditLog records an authoritative server-side mutation
type AuditLog struct {
	ID         int64
	Entity     string
	EntityID   int64
	Action     string
	Detail     string
	ActorID    int64
	OccurredAt time.Time
}
